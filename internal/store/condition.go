/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"fmt"
	"strings"

	"github.com/friendsincode/playlist_gen/internal/criteria"
)

// condition is a parameterized WHERE fragment over the tracks table.
type condition struct {
	SQL  string
	Args []any
}

const (
	hasLabelSQL = "EXISTS (SELECT 1 FROM track_labels WHERE track_labels.track_id = tracks.id AND track_labels.label_id = ?)"
	// Smart labels never have join rows that count, so membership is checked
	// against non-smart labels only.
	anyLabelSQL = "EXISTS (SELECT 1 FROM track_labels JOIN labels ON labels.id = track_labels.label_id " +
		"WHERE track_labels.track_id = tracks.id AND labels.smart_criteria IS NULL)"
)

// buildCondition translates a filter tree into SQL for the given gorm dialect
// name ("postgres", "mysql" or "sqlite").
func buildCondition(f criteria.Filter, dialect string) (condition, error) {
	switch f.Kind {
	case criteria.FilterAnd, criteria.FilterOr:
		if len(f.Children) == 0 {
			return condition{}, fmt.Errorf("%s filter has no children", f.Kind)
		}
		joiner := " AND "
		if f.Kind == criteria.FilterOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(f.Children))
		var args []any
		for _, child := range f.Children {
			c, err := buildCondition(child, dialect)
			if err != nil {
				return condition{}, err
			}
			parts = append(parts, c.SQL)
			args = append(args, c.Args...)
		}
		return condition{SQL: "(" + strings.Join(parts, joiner) + ")", Args: args}, nil

	case criteria.FilterNot:
		if len(f.Children) != 1 {
			return condition{}, fmt.Errorf("not filter needs one child, has %d", len(f.Children))
		}
		c, err := buildCondition(f.Children[0], dialect)
		if err != nil {
			return condition{}, err
		}
		return condition{SQL: "NOT (" + c.SQL + ")", Args: c.Args}, nil

	case criteria.FilterExplicitEquals:
		return condition{SQL: "tracks.explicit = ?", Args: []any{f.Bool}}, nil

	case criteria.FilterDateAddedInRange:
		return rangeCondition("tracks.date_added", f.Range), nil

	case criteria.FilterDateReleasedInRange:
		return rangeCondition("tracks.date_released", f.Range), nil

	case criteria.FilterHasLabel:
		return condition{SQL: hasLabelSQL, Args: []any{f.LabelID}}, nil

	case criteria.FilterHasNoLabels:
		if f.Bool {
			return condition{SQL: "NOT " + anyLabelSQL}, nil
		}
		return condition{SQL: anyLabelSQL}, nil

	case criteria.FilterArtistContains:
		// Case sensitive substring match on every backend.
		switch dialect {
		case "postgres":
			return condition{SQL: "STRPOS(tracks.artist, ?) > 0", Args: []any{f.Text}}, nil
		case "mysql":
			return condition{SQL: "INSTR(BINARY tracks.artist, BINARY ?) > 0", Args: []any{f.Text}}, nil
		default:
			return condition{SQL: "INSTR(tracks.artist, ?) > 0", Args: []any{f.Text}}, nil
		}

	case criteria.FilterAlbumNameEquals:
		return condition{SQL: "tracks.album_name = ?", Args: []any{f.Text}}, nil
	}
	return condition{}, fmt.Errorf("unknown filter kind %q", f.Kind)
}

func rangeCondition(column string, r criteria.Range) condition {
	var parts []string
	var args []any
	if r.From != nil {
		op := " > ?"
		if r.From.Inclusive {
			op = " >= ?"
		}
		parts = append(parts, column+op)
		args = append(args, r.From.At.UTC())
	}
	if r.To != nil {
		op := " < ?"
		if r.To.Inclusive {
			op = " <= ?"
		}
		parts = append(parts, column+op)
		args = append(args, r.To.At.UTC())
	}
	if len(parts) == 0 {
		return condition{SQL: "1 = 1"}
	}
	return condition{SQL: "(" + strings.Join(parts, " AND ") + ")", Args: args}
}
