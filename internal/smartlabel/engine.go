/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package smartlabel evaluates smart label criteria against a user's library,
// either in memory over a cached index or by pushing a filter to the store.
package smartlabel

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/store"
	"github.com/friendsincode/playlist_gen/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TrackStore is the data access the engine needs.
type TrackStore interface {
	FindTracksByUser(ctx context.Context, userID string) ([]store.TrackSnapshot, error)
	FindNonSmartLabelsByUser(ctx context.Context, userID string) ([]store.LabelMembership, error)
	FindTracksMatching(ctx context.Context, userID string, filter criteria.Filter) ([]store.TrackSnapshot, error)
	FindNonSmartLabelIDs(ctx context.Context, userID string, ids []int64) ([]int64, error)
}

// Mode selects where criteria are evaluated.
type Mode string

const (
	ModeMemory   Mode = "memory"
	ModePushdown Mode = "pushdown"
)

// MatchResult is the outcome of evaluating one criteria string.
type MatchResult struct {
	Tracks []store.TrackSnapshot
}

// Names returns up to n track names in result order.
func (r MatchResult) Names(n int) []string {
	if n > len(r.Tracks) {
		n = len(r.Tracks)
	}
	names := make([]string, 0, n)
	for _, t := range r.Tracks[:n] {
		names = append(names, t.Name)
	}
	return names
}

// SmartLabel is a label whose membership is defined by criteria.
type SmartLabel struct {
	ID       int64
	Criteria string
}

// Options configures an Engine.
type Options struct {
	Mode     Mode
	Location *time.Location   // absolute dates; defaults to UTC
	Now      func() time.Time // defaults to time.Now
	// Concurrency bounds parallel evaluations in CountMatches and MatchAll.
	Concurrency int
}

// Engine evaluates criteria strings for users.
type Engine struct {
	store  TrackStore
	logger zerolog.Logger
	opts   Options
}

// New creates an engine over s.
func New(s TrackStore, logger zerolog.Logger, opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeMemory
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	return &Engine{
		store:  s,
		logger: logger.With().Str("component", "smartlabel").Logger(),
		opts:   opts,
	}
}

// Mode returns the engine's evaluation mode.
func (e *Engine) Mode() Mode {
	return e.opts.Mode
}

// FilterData returns the user's evaluation context. With a token, concurrent
// and repeated calls share a single load; without one every call loads afresh.
func (e *Engine) FilterData(ctx context.Context, userID string, tok *Token) (data *FilterData, err error) {
	ctx, span := telemetry.StartSpan(ctx, "smartlabel.filter_data",
		telemetry.AttrUserID.String(userID),
		telemetry.AttrTokenID.String(tok.ID()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if tok == nil {
		data, err = loadFilterData(ctx, e.store, userID)
		e.recordLoad(err, false)
		return data, err
	}

	data, shared, err := tok.load(ctx, userID, func() (*FilterData, error) {
		e.logger.Debug().Str("user_id", userID).Str("token", tok.ID()).Msg("loading filter data")
		return loadFilterData(ctx, e.store, userID)
	})
	span.SetAttributes(telemetry.AttrLoadShare.Bool(shared))
	e.recordLoad(err, shared)
	return data, err
}

func (e *Engine) recordLoad(err error, shared bool) {
	switch {
	case err != nil:
		telemetry.FilterDataLoadsTotal.WithLabelValues("failed").Inc()
	case shared:
		telemetry.FilterDataLoadsTotal.WithLabelValues("shared").Inc()
	default:
		telemetry.FilterDataLoadsTotal.WithLabelValues("loaded").Inc()
	}
}

// Evaluate parses input and returns the user's matching tracks. A nil token
// falls back to the one carried by ctx, if any. Invalid criteria produce an
// error matching criteria.ErrInvalidCriteria.
func (e *Engine) Evaluate(ctx context.Context, userID, input string, tok *Token) (MatchResult, error) {
	if tok == nil {
		tok = TokenFromContext(ctx)
	}
	ctx, span := telemetry.StartSpan(ctx, "smartlabel.evaluate",
		telemetry.AttrUserID.String(userID),
		telemetry.AttrEvalMode.String(string(e.opts.Mode)),
	)

	start := time.Now()
	result, err := e.evaluate(ctx, userID, input, tok)
	telemetry.CriteriaEvaluationDuration.WithLabelValues(string(e.opts.Mode)).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case errors.Is(err, criteria.ErrInvalidCriteria):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	default:
		span.SetAttributes(telemetry.AttrMatches.Int(len(result.Tracks)))
	}
	telemetry.CriteriaEvaluationsTotal.WithLabelValues(string(e.opts.Mode), outcome).Inc()
	telemetry.EndSpan(span, err, criteria.ErrInvalidCriteria)
	return result, err
}

func (e *Engine) evaluate(ctx context.Context, userID, input string, tok *Token) (MatchResult, error) {
	node, err := criteria.ParseString(input)
	if err != nil {
		return MatchResult{}, err
	}
	opts := criteria.CompileOptions{Now: e.opts.Now(), Location: e.opts.Location}

	if e.opts.Mode == ModePushdown {
		return e.evaluatePushdown(ctx, userID, node, opts)
	}

	data, err := e.FilterData(ctx, userID, tok)
	if err != nil {
		return MatchResult{}, err
	}
	return Evaluate(node, data, opts)
}

func (e *Engine) evaluatePushdown(ctx context.Context, userID string, node criteria.Node, opts criteria.CompileOptions) (MatchResult, error) {
	if refs := criteria.LabelRefs(node); len(refs) > 0 {
		found, err := e.store.FindNonSmartLabelIDs(ctx, userID, refs)
		if err != nil {
			return MatchResult{}, err
		}
		known := make(map[int64]struct{}, len(found))
		for _, id := range found {
			known[id] = struct{}{}
		}
		for _, id := range refs {
			if _, ok := known[id]; !ok {
				return MatchResult{}, &criteria.UnknownLabelError{LabelID: id}
			}
		}
	}

	filter, err := criteria.ToFilter(node, opts)
	if err != nil {
		return MatchResult{}, err
	}
	tracks, err := e.store.FindTracksMatching(ctx, userID, filter)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{Tracks: tracks}, nil
}

// Check reports why input is not usable for the user, or nil when it parses
// and evaluates against the user's library.
func (e *Engine) Check(ctx context.Context, userID, input string) error {
	_, err := e.Evaluate(ctx, userID, input, nil)
	return err
}

// Validate reports whether input parses and evaluates without error.
func (e *Engine) Validate(ctx context.Context, userID, input string) bool {
	err := e.Check(ctx, userID, input)
	if err != nil {
		e.logger.Debug().Err(err).Str("user_id", userID).Str("criteria", input).Msg("criteria rejected")
	}
	return err == nil
}

// CountMatches evaluates every label concurrently and returns the number of
// matches per label id. A label that fails to evaluate counts as 0 and never
// affects its siblings. Without a token the batch shares a fresh one.
func (e *Engine) CountMatches(ctx context.Context, userID string, labels []SmartLabel, tok *Token) map[int64]int {
	matches := e.MatchAll(ctx, userID, labels, tok)
	counts := make(map[int64]int, len(matches))
	for id, tracks := range matches {
		counts[id] = len(tracks)
	}
	return counts
}

// MatchAll evaluates every label concurrently and returns the matching tracks
// per label id. A failing label maps to an empty list.
func (e *Engine) MatchAll(ctx context.Context, userID string, labels []SmartLabel, tok *Token) map[int64][]store.TrackSnapshot {
	if tok == nil {
		tok = TokenFromContext(ctx)
	}
	if tok == nil {
		tok = NewToken()
	}

	results := make([][]store.TrackSnapshot, len(labels))
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, label := range labels {
		i, label := i, label
		g.Go(func() error {
			res, err := e.Evaluate(ctx, userID, label.Criteria, tok)
			if err != nil {
				e.logger.Warn().
					Err(err).
					Str("user_id", userID).
					Int64("label_id", label.ID).
					Str("token", tok.ID()).
					Msg("smart label evaluation failed")
				results[i] = []store.TrackSnapshot{}
				return nil
			}
			results[i] = res.Tracks
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int64][]store.TrackSnapshot, len(labels))
	for i, label := range labels {
		out[label.ID] = results[i]
	}
	return out
}

