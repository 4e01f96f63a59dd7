/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package criteria

import (
	"encoding/json"
	"fmt"
	"time"
)

// FilterKind identifies a Filter node.
type FilterKind string

const (
	FilterAnd                 FilterKind = "and"
	FilterOr                  FilterKind = "or"
	FilterNot                 FilterKind = "not"
	FilterExplicitEquals      FilterKind = "explicitEquals"
	FilterDateAddedInRange    FilterKind = "dateAddedInRange"
	FilterDateReleasedInRange FilterKind = "dateReleasedInRange"
	FilterHasLabel            FilterKind = "hasLabel"
	FilterArtistContains      FilterKind = "artistContains"
	FilterAlbumNameEquals     FilterKind = "albumNameEquals"
	FilterHasNoLabels         FilterKind = "hasNoLabels"
)

// Filter is a backend-neutral filter tree handed to a track store for
// server-side evaluation. Only the fields relevant to Kind are set.
type Filter struct {
	Kind     FilterKind
	Children []Filter // and, or, not (one child)
	Bool     bool     // explicitEquals
	Range    Range    // date ranges
	LabelID  int64    // hasLabel
	Text     string   // artistContains, albumNameEquals
}

// CompileOptions fixes the clock and location used for date literals.
type CompileOptions struct {
	Now      time.Time
	Location *time.Location
}

// ToFilter translates a predicate tree into a Filter. Relative dates are
// resolved against opts.Now, so the result is only valid for that instant.
func ToFilter(n Node, opts CompileOptions) (Filter, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	switch v := n.(type) {
	case *Not:
		inner, err := ToFilter(v.Operand, opts)
		if err != nil {
			return Filter{}, err
		}
		return Filter{Kind: FilterNot, Children: []Filter{inner}}, nil
	case *And:
		return binaryFilter(FilterAnd, v.Left, v.Right, opts)
	case *Or:
		return binaryFilter(FilterOr, v.Left, v.Right, opts)
	case *Literal:
		return literalFilter(v, opts)
	}
	return Filter{}, fmt.Errorf("unsupported node %T", n)
}

func binaryFilter(kind FilterKind, left, right Node, opts CompileOptions) (Filter, error) {
	lhs, err := ToFilter(left, opts)
	if err != nil {
		return Filter{}, err
	}
	rhs, err := ToFilter(right, opts)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Kind: kind, Children: []Filter{lhs, rhs}}, nil
}

func literalFilter(lit *Literal, opts CompileOptions) (Filter, error) {
	switch lit.Keyword {
	case KeywordClean:
		return Filter{Kind: FilterExplicitEquals, Bool: false}, nil
	case KeywordExplicit:
		return Filter{Kind: FilterExplicitEquals, Bool: true}, nil
	case KeywordUnlabeled:
		return Filter{Kind: FilterHasNoLabels, Bool: true}, nil
	case KeywordLabel:
		return Filter{Kind: FilterHasLabel, LabelID: lit.LabelID}, nil
	case KeywordArtist:
		return Filter{Kind: FilterArtistContains, Text: lit.Text}, nil
	case KeywordAlbum:
		return Filter{Kind: FilterAlbumNameEquals, Text: lit.Text}, nil
	case KeywordAdded, KeywordReleased:
		r, err := lit.Date.Range(lit.Op, opts.Now, opts.Location)
		if err != nil {
			return Filter{}, err
		}
		kind := FilterDateAddedInRange
		if lit.Keyword == KeywordReleased {
			kind = FilterDateReleasedInRange
		}
		return Filter{Kind: kind, Range: r}, nil
	}
	return Filter{}, fmt.Errorf("unsupported keyword %d", lit.Keyword)
}

type jsonBound struct {
	At        time.Time `json:"at"`
	Inclusive bool      `json:"inclusive"`
}

type jsonRange struct {
	From *jsonBound `json:"from,omitempty"`
	To   *jsonBound `json:"to,omitempty"`
}

func (r Range) MarshalJSON() ([]byte, error) {
	out := jsonRange{}
	if r.From != nil {
		out.From = &jsonBound{At: r.From.At, Inclusive: r.From.Inclusive}
	}
	if r.To != nil {
		out.To = &jsonBound{At: r.To.At, Inclusive: r.To.Inclusive}
	}
	return json.Marshal(out)
}

// MarshalJSON encodes the filter as {"<kind>": <operand>}, e.g. {"and":[...]}.
func (f Filter) MarshalJSON() ([]byte, error) {
	var operand any
	switch f.Kind {
	case FilterAnd, FilterOr:
		operand = f.Children
	case FilterNot:
		if len(f.Children) != 1 {
			return nil, fmt.Errorf("not filter needs one child, has %d", len(f.Children))
		}
		operand = f.Children[0]
	case FilterExplicitEquals, FilterHasNoLabels:
		operand = f.Bool
	case FilterDateAddedInRange, FilterDateReleasedInRange:
		operand = f.Range
	case FilterHasLabel:
		operand = f.LabelID
	case FilterArtistContains, FilterAlbumNameEquals:
		operand = f.Text
	default:
		return nil, fmt.Errorf("unknown filter kind %q", f.Kind)
	}
	return json.Marshal(map[FilterKind]any{f.Kind: operand})
}
