/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package smartlabel

import (
	"fmt"
	"strings"

	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/store"
)

// Predicate decides whether a single track matches.
type Predicate func(store.TrackSnapshot) bool

// Compile turns a predicate tree into a Predicate over data. Label references
// are checked here, so a tree that compiles cannot fail during matching.
func Compile(n criteria.Node, data *FilterData, opts criteria.CompileOptions) (Predicate, error) {
	switch v := n.(type) {
	case *criteria.Not:
		inner, err := Compile(v.Operand, data, opts)
		if err != nil {
			return nil, err
		}
		return func(t store.TrackSnapshot) bool { return !inner(t) }, nil

	case *criteria.And:
		left, right, err := compilePair(v.Left, v.Right, data, opts)
		if err != nil {
			return nil, err
		}
		return func(t store.TrackSnapshot) bool { return left(t) && right(t) }, nil

	case *criteria.Or:
		left, right, err := compilePair(v.Left, v.Right, data, opts)
		if err != nil {
			return nil, err
		}
		return func(t store.TrackSnapshot) bool { return left(t) || right(t) }, nil

	case *criteria.Literal:
		return compileLiteral(v, data, opts)
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

func compilePair(l, r criteria.Node, data *FilterData, opts criteria.CompileOptions) (Predicate, Predicate, error) {
	left, err := Compile(l, data, opts)
	if err != nil {
		return nil, nil, err
	}
	right, err := Compile(r, data, opts)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func compileLiteral(lit *criteria.Literal, data *FilterData, opts criteria.CompileOptions) (Predicate, error) {
	switch lit.Keyword {
	case criteria.KeywordClean:
		return func(t store.TrackSnapshot) bool { return !t.Explicit }, nil

	case criteria.KeywordExplicit:
		return func(t store.TrackSnapshot) bool { return t.Explicit }, nil

	case criteria.KeywordUnlabeled:
		return func(t store.TrackSnapshot) bool {
			_, ok := data.Unlabeled[t.ID]
			return ok
		}, nil

	case criteria.KeywordLabel:
		members, ok := data.IndexedLabels[lit.LabelID]
		if !ok {
			return nil, &criteria.UnknownLabelError{LabelID: lit.LabelID}
		}
		return func(t store.TrackSnapshot) bool {
			_, has := members[t.ID]
			return has
		}, nil

	case criteria.KeywordArtist:
		text := lit.Text
		return func(t store.TrackSnapshot) bool { return strings.Contains(t.Artist, text) }, nil

	case criteria.KeywordAlbum:
		text := lit.Text
		return func(t store.TrackSnapshot) bool { return t.Album == text }, nil

	case criteria.KeywordAdded:
		r, err := lit.Date.Range(lit.Op, opts.Now, opts.Location)
		if err != nil {
			return nil, err
		}
		return func(t store.TrackSnapshot) bool { return r.Contains(t.DateAdded) }, nil

	case criteria.KeywordReleased:
		r, err := lit.Date.Range(lit.Op, opts.Now, opts.Location)
		if err != nil {
			return nil, err
		}
		return func(t store.TrackSnapshot) bool { return r.Contains(t.DateReleased) }, nil
	}
	return nil, fmt.Errorf("unsupported keyword %d", lit.Keyword)
}

// Evaluate returns the tracks of data matching the tree, in data order.
func Evaluate(n criteria.Node, data *FilterData, opts criteria.CompileOptions) (MatchResult, error) {
	pred, err := Compile(n, data, opts)
	if err != nil {
		return MatchResult{}, err
	}
	matched := make([]store.TrackSnapshot, 0)
	for _, t := range data.Tracks {
		if pred(t) {
			matched = append(matched, t)
		}
	}
	return MatchResult{Tracks: matched}, nil
}
