/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store reads a user's tracks and labels for criteria evaluation.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when a user id has no row.
var ErrUserNotFound = errors.New("user not found")

// TrackSnapshot is the read-only view of a track used by criteria evaluation.
type TrackSnapshot struct {
	ID           int64     `json:"id"`
	SpotifyID    string    `json:"spotify_id"`
	Name         string    `json:"name"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	Explicit     bool      `json:"explicit"`
	DateAdded    time.Time `json:"date_added"`
	DateReleased time.Time `json:"date_released"`
}

// LabelMembership lists the tracks carrying a non-smart label.
type LabelMembership struct {
	ID       int64
	TrackIDs []int64
}

// LabelSummary is a label with its member count. For smart labels the count is
// filled in by the caller after evaluating the criteria.
type LabelSummary struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	SmartCriteria *string `json:"smart_criteria,omitempty"`
	TrackCount    int     `json:"track_count"`
}

// GormStore implements track and label lookups on a gorm database.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a store backed by db.
func New(db *gorm.DB, logger zerolog.Logger) *GormStore {
	return &GormStore{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// FindTracksByUser returns every track of the user ordered by id.
func (s *GormStore) FindTracksByUser(ctx context.Context, userID string) ([]TrackSnapshot, error) {
	var tracks []models.Track
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("find tracks: %w", err)
	}
	return snapshots(tracks), nil
}

// FindNonSmartLabelsByUser returns every non-smart label of the user with the
// ids of its tracks. Labels without tracks are included with an empty list.
func (s *GormStore) FindNonSmartLabelsByUser(ctx context.Context, userID string) ([]LabelMembership, error) {
	var labels []models.Label
	if err := s.db.WithContext(ctx).
		Select("id").
		Where("user_id = ? AND smart_criteria IS NULL", userID).
		Order("id").
		Find(&labels).Error; err != nil {
		return nil, fmt.Errorf("find labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(labels))
	index := make(map[int64]int, len(labels))
	out := make([]LabelMembership, 0, len(labels))
	for i, l := range labels {
		ids = append(ids, l.ID)
		index[l.ID] = i
		out = append(out, LabelMembership{ID: l.ID, TrackIDs: []int64{}})
	}

	var links []models.TrackLabel
	if err := s.db.WithContext(ctx).
		Where("label_id IN ?", ids).
		Order("label_id, track_id").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("find label memberships: %w", err)
	}
	for _, link := range links {
		i := index[link.LabelID]
		out[i].TrackIDs = append(out[i].TrackIDs, link.TrackID)
	}
	return out, nil
}

// FindNonSmartLabelIDs returns the subset of ids that name non-smart labels
// owned by the user.
func (s *GormStore) FindNonSmartLabelIDs(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []int64
	if err := s.db.WithContext(ctx).
		Model(&models.Label{}).
		Where("user_id = ? AND smart_criteria IS NULL AND id IN ?", userID, ids).
		Order("id").
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("find label ids: %w", err)
	}
	return found, nil
}

// FindTracksMatching returns the user's tracks that satisfy filter, evaluated
// by the database.
func (s *GormStore) FindTracksMatching(ctx context.Context, userID string, filter criteria.Filter) ([]TrackSnapshot, error) {
	cond, err := buildCondition(filter, s.db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(cond.SQL, cond.Args...).
		Order("id").
		Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("find matching tracks: %w", err)
	}
	s.logger.Debug().Str("user_id", userID).Str("where", cond.SQL).Int("matches", len(tracks)).Msg("pushdown query")
	return snapshots(tracks), nil
}

// ListLabels returns one page of the user's labels ordered by id, and the total
// number of labels. Smart labels have TrackCount 0.
func (s *GormStore) ListLabels(ctx context.Context, userID string, page, pageSize int) ([]LabelSummary, int64, error) {
	if page < 0 {
		page = 0
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Label{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count labels: %w", err)
	}

	var labels []models.Label
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Offset(page * pageSize).
		Limit(pageSize).
		Find(&labels).Error; err != nil {
		return nil, 0, fmt.Errorf("list labels: %w", err)
	}

	out := make([]LabelSummary, 0, len(labels))
	var plain []int64
	for _, l := range labels {
		out = append(out, LabelSummary{ID: l.ID, Name: l.Name, SmartCriteria: l.SmartCriteria})
		if !l.IsSmart() {
			plain = append(plain, l.ID)
		}
	}
	if len(plain) == 0 {
		return out, total, nil
	}

	var counts []struct {
		LabelID int64
		N       int
	}
	if err := s.db.WithContext(ctx).
		Model(&models.TrackLabel{}).
		Select("label_id, COUNT(*) AS n").
		Where("label_id IN ?", plain).
		Group("label_id").
		Scan(&counts).Error; err != nil {
		return nil, 0, fmt.Errorf("count label tracks: %w", err)
	}
	byID := make(map[int64]int, len(counts))
	for _, c := range counts {
		byID[c.LabelID] = c.N
	}
	for i := range out {
		out[i].TrackCount = byID[out[i].ID]
	}
	return out, total, nil
}

// FindSmartLabels returns the user's smart labels ordered by id.
func (s *GormStore) FindSmartLabels(ctx context.Context, userID string) ([]models.Label, error) {
	var labels []models.Label
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND smart_criteria IS NOT NULL", userID).
		Order("id").
		Find(&labels).Error; err != nil {
		return nil, fmt.Errorf("find smart labels: %w", err)
	}
	return labels, nil
}

// EnsureUser reports ErrUserNotFound when the user id has no row.
func (s *GormStore) EnsureUser(ctx context.Context, userID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func snapshots(tracks []models.Track) []TrackSnapshot {
	out := make([]TrackSnapshot, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, Snapshot(t))
	}
	return out
}

// Snapshot converts a track row into its evaluation view.
func Snapshot(t models.Track) TrackSnapshot {
	return TrackSnapshot{
		ID:           t.ID,
		SpotifyID:    t.SpotifyID,
		Name:         t.Name,
		Artist:       t.Artist,
		Album:        t.AlbumName,
		Explicit:     t.Explicit,
		DateAdded:    t.DateAdded,
		DateReleased: t.DateReleased,
	}
}
