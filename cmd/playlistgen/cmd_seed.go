/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/playlist_gen/internal/db"
	"github.com/friendsincode/playlist_gen/internal/seed"
	"github.com/friendsincode/playlist_gen/internal/store"
)

var (
	seedFixturePath string
	seedSkipCheck   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users, tracks and labels from a YAML fixture",
	Long:  "Load users, tracks and labels from a YAML fixture. Smart label criteria are validated against the seeded library unless --skip-check is given.",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedFixturePath, "file", "", "Path to the YAML fixture (required)")
	seedCmd.Flags().BoolVar(&seedSkipCheck, "skip-check", false, "Store smart label criteria without validating them")
	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	f, err := os.Open(seedFixturePath)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	fixture, err := seed.Load(f)
	if err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	st := store.New(database, logger)
	var check seed.CheckFunc
	if !seedSkipCheck {
		check = newEngine(st).Check
	}

	res, err := seed.Apply(context.Background(), st, fixture, check)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d tracks, %d labels, %d smart labels\n",
		res.Users, res.Tracks, res.PlainLabels, res.SmartLabels)
	return nil
}
