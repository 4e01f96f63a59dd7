/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/friendsincode/playlist_gen/internal/config"
	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/db"
	"github.com/friendsincode/playlist_gen/internal/smartlabel"
	"github.com/friendsincode/playlist_gen/internal/store"
)

// Flags shared by check and counts
var (
	evalUserID string
	evalMode   string
	checkLimit int
)

var checkCmd = &cobra.Command{
	Use:   "check <criteria>",
	Short: "Evaluate a criteria string against a user's library",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Print the match count of every smart label of a user",
	RunE:  runCounts,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(countsCmd)

	for _, c := range []*cobra.Command{checkCmd, countsCmd} {
		c.Flags().StringVar(&evalUserID, "user", "", "Spotify user id (required)")
		c.Flags().StringVar(&evalMode, "mode", "", "Evaluation mode: memory or pushdown (defaults to PLAYLISTGEN_EVAL_MODE)")
		_ = c.MarkFlagRequired("user")
	}
	checkCmd.Flags().IntVar(&checkLimit, "limit", 5, "Number of matching track names to print")
}

// newEngine builds an engine from the loaded configuration and --mode.
func newEngine(st *store.GormStore) *smartlabel.Engine {
	mode := smartlabel.Mode(cfg.EvalMode)
	if evalMode != "" {
		mode = smartlabel.Mode(evalMode)
	}
	return smartlabel.New(st, logger, smartlabel.Options{
		Mode:        mode,
		Location:    cfg.Location,
		Concurrency: cfg.BatchConcurrency,
	})
}

func openEvalStore(ctx context.Context) (*store.GormStore, func(), error) {
	if evalMode != "" && evalMode != string(config.EvalMemory) && evalMode != string(config.EvalPushdown) {
		return nil, nil, fmt.Errorf("unsupported mode %q", evalMode)
	}
	database, err := initDatabase()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}
	closeFn := func() { _ = db.Close(database) }

	st := store.New(database, logger)
	if err := st.EnsureUser(ctx, evalUserID); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("user %s: %w", evalUserID, err)
	}
	return st, closeFn, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := context.Background()
	st, closeFn, err := openEvalStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := newEngine(st).Evaluate(ctx, evalUserID, args[0], nil)
	if errors.Is(err, criteria.ErrInvalidCriteria) {
		fmt.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", err)
		return err
	}
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d matching tracks\n", len(res.Tracks))
	for _, name := range res.Names(checkLimit) {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

func runCounts(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := context.Background()
	st, closeFn, err := openEvalStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := st.FindSmartLabels(ctx, evalUserID)
	if err != nil {
		return err
	}
	batch := make([]smartlabel.SmartLabel, 0, len(rows))
	names := make(map[int64]string, len(rows))
	for _, row := range rows {
		batch = append(batch, smartlabel.SmartLabel{ID: row.ID, Criteria: *row.SmartCriteria})
		names[row.ID] = row.Name
	}

	counts := newEngine(st).CountMatches(ctx, evalUserID, batch, nil)
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := cmd.OutOrStdout()
	for _, id := range ids {
		fmt.Fprintf(out, "%6d  %-30s %d\n", id, names[id], counts[id])
	}
	return nil
}
