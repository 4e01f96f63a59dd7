/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package seed loads demo and test libraries from YAML fixtures.
package seed

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/playlist_gen/internal/models"
	"github.com/friendsincode/playlist_gen/internal/store"
)

// Fixture is the root of a seed file.
type Fixture struct {
	Users []User `yaml:"users"`
}

// User is one library to seed.
type User struct {
	ID          string  `yaml:"id"`
	DisplayName string  `yaml:"display_name"`
	Tracks      []Track `yaml:"tracks"`
	Labels      []Label `yaml:"labels"`
}

// Track mirrors a saved Spotify track.
type Track struct {
	SpotifyID    string    `yaml:"spotify_id"`
	Name         string    `yaml:"name"`
	Artist       string    `yaml:"artist"`
	Album        string    `yaml:"album"`
	Thumbnail    string    `yaml:"thumbnail"`
	Explicit     bool      `yaml:"explicit"`
	DateAdded    time.Time `yaml:"date_added"`
	DateReleased time.Time `yaml:"date_released"`
}

// Label is a plain label listing Spotify ids, or a smart label with criteria.
// Criteria may name other labels of the same user as {name}; the placeholder
// is replaced by the label id once that label exists.
type Label struct {
	Name     string   `yaml:"name"`
	Tracks   []string `yaml:"tracks"`
	Criteria string   `yaml:"criteria"`
}

// CheckFunc validates smart label criteria for a user before they are stored.
type CheckFunc func(ctx context.Context, userID, criteria string) error

// Result counts what Apply wrote.
type Result struct {
	Users       int
	Tracks      int
	PlainLabels int
	SmartLabels int
}

// Load decodes a fixture.
func Load(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i, u := range fx.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user %d: id is required", i)
		}
		for _, t := range u.Tracks {
			if t.SpotifyID == "" {
				return nil, fmt.Errorf("user %s: track %q has no spotify_id", u.ID, t.Name)
			}
		}
	}
	return &fx, nil
}

// Apply writes the fixture through st. Plain labels are created before smart
// ones so that criteria can reference them. A nil check stores criteria
// unvalidated.
func Apply(ctx context.Context, st *store.GormStore, fx *Fixture, check CheckFunc) (Result, error) {
	var res Result
	for _, u := range fx.Users {
		if err := applyUser(ctx, st, u, check, &res); err != nil {
			return res, fmt.Errorf("user %s: %w", u.ID, err)
		}
		res.Users++
	}
	return res, nil
}

func applyUser(ctx context.Context, st *store.GormStore, u User, check CheckFunc, res *Result) error {
	if err := st.UpsertUser(ctx, u.ID, u.DisplayName); err != nil {
		return err
	}

	rows := make([]models.Track, 0, len(u.Tracks))
	spotifyIDs := make([]string, 0, len(u.Tracks))
	for _, t := range u.Tracks {
		rows = append(rows, models.Track{
			SpotifyID:    t.SpotifyID,
			Name:         t.Name,
			Artist:       t.Artist,
			AlbumName:    t.Album,
			ThumbnailURL: t.Thumbnail,
			Explicit:     t.Explicit,
			DateAdded:    t.DateAdded.UTC(),
			DateReleased: t.DateReleased.UTC(),
		})
		spotifyIDs = append(spotifyIDs, t.SpotifyID)
	}
	if err := st.UpsertTracks(ctx, u.ID, rows); err != nil {
		return err
	}
	res.Tracks += len(rows)

	trackIDs, err := st.FindTrackIDsBySpotifyID(ctx, u.ID, spotifyIDs)
	if err != nil {
		return err
	}

	labelIDs := map[string]int64{}
	for _, l := range u.Labels {
		if l.Criteria != "" {
			continue
		}
		label, err := st.CreateLabel(ctx, u.ID, store.LabelInput{Name: l.Name})
		if err != nil {
			return fmt.Errorf("label %q: %w", l.Name, err)
		}
		labelIDs[l.Name] = label.ID
		for _, sid := range l.Tracks {
			trackID, ok := trackIDs[sid]
			if !ok {
				return fmt.Errorf("label %q: unknown track %q", l.Name, sid)
			}
			if err := st.AddTrackLabel(ctx, u.ID, trackID, label.ID); err != nil {
				return fmt.Errorf("label %q: %w", l.Name, err)
			}
		}
		res.PlainLabels++
	}

	pairs := make([]string, 0, 2*len(labelIDs))
	for name, id := range labelIDs {
		pairs = append(pairs, "{"+name+"}", strconv.FormatInt(id, 10))
	}
	resolve := strings.NewReplacer(pairs...)

	for _, l := range u.Labels {
		if l.Criteria == "" {
			continue
		}
		criteria := resolve.Replace(l.Criteria)
		if check != nil {
			if err := check(ctx, u.ID, criteria); err != nil {
				return fmt.Errorf("label %q: %w", l.Name, err)
			}
		}
		if _, err := st.CreateLabel(ctx, u.ID, store.LabelInput{Name: l.Name, SmartCriteria: &criteria}); err != nil {
			return fmt.Errorf("label %q: %w", l.Name, err)
		}
		res.SmartLabels++
	}
	return nil
}
