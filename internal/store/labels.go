/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/friendsincode/playlist_gen/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLabelNotFound is returned when a label id does not name a label of the user.
	ErrLabelNotFound = errors.New("label not found")
	// ErrTrackNotFound is returned when a track id does not name a track of the user.
	ErrTrackNotFound = errors.New("track not found")
	// ErrSmartLabel is returned when tracks are attached to or detached from a smart label.
	ErrSmartLabel = errors.New("smart label membership is derived from its criteria")
	// ErrEmptyName is returned when a label name is blank.
	ErrEmptyName = errors.New("label name is required")
)

// LabelInput carries the editable fields of a label. A nil SmartCriteria makes
// a plain label.
type LabelInput struct {
	Name          string
	SmartCriteria *string
}

func (in LabelInput) normalize() (LabelInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrEmptyName
	}
	return in, nil
}

// FindLabel returns one label of the user.
func (s *GormStore) FindLabel(ctx context.Context, userID string, labelID int64) (models.Label, error) {
	var label models.Label
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", labelID, userID).First(&label).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Label{}, ErrLabelNotFound
	}
	if err != nil {
		return models.Label{}, fmt.Errorf("find label: %w", err)
	}
	return label, nil
}

// CreateLabel stores a new label for the user.
func (s *GormStore) CreateLabel(ctx context.Context, userID string, in LabelInput) (models.Label, error) {
	in, err := in.normalize()
	if err != nil {
		return models.Label{}, err
	}
	label := models.Label{UserID: userID, Name: in.Name, SmartCriteria: in.SmartCriteria}
	if err := s.db.WithContext(ctx).Create(&label).Error; err != nil {
		return models.Label{}, fmt.Errorf("create label: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Int64("label_id", label.ID).Bool("smart", label.IsSmart()).Msg("label created")
	return label, nil
}

// UpdateLabel replaces the name and criteria of a label. Turning a plain label
// into a smart one drops its track links.
func (s *GormStore) UpdateLabel(ctx context.Context, userID string, labelID int64, in LabelInput) (models.Label, error) {
	in, err := in.normalize()
	if err != nil {
		return models.Label{}, err
	}

	var label models.Label
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", labelID, userID).First(&label).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLabelNotFound
			}
			return fmt.Errorf("find label: %w", err)
		}

		if err := tx.Model(&label).Select("name", "smart_criteria").Updates(models.Label{
			Name:          in.Name,
			SmartCriteria: in.SmartCriteria,
		}).Error; err != nil {
			return fmt.Errorf("update label: %w", err)
		}
		label.Name = in.Name
		label.SmartCriteria = in.SmartCriteria

		if label.IsSmart() {
			if err := tx.Where("label_id = ?", labelID).Delete(&models.TrackLabel{}).Error; err != nil {
				return fmt.Errorf("drop track links: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Label{}, err
	}
	return label, nil
}

// DeleteLabel removes a label and its track links.
func (s *GormStore) DeleteLabel(ctx context.Context, userID string, labelID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", labelID, userID).Delete(&models.Label{})
		if res.Error != nil {
			return fmt.Errorf("delete label: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrLabelNotFound
		}
		if err := tx.Where("label_id = ?", labelID).Delete(&models.TrackLabel{}).Error; err != nil {
			return fmt.Errorf("delete track links: %w", err)
		}
		return nil
	})
}

// AddTrackLabel attaches a plain label to a track. Attaching twice is a no-op.
func (s *GormStore) AddTrackLabel(ctx context.Context, userID string, trackID, labelID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkMembershipTarget(tx, userID, trackID, labelID); err != nil {
			return err
		}
		link := models.TrackLabel{TrackID: trackID, LabelID: labelID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return fmt.Errorf("add track label: %w", err)
		}
		return nil
	})
}

// RemoveTrackLabel detaches a plain label from a track. Removing a missing link
// is a no-op.
func (s *GormStore) RemoveTrackLabel(ctx context.Context, userID string, trackID, labelID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkMembershipTarget(tx, userID, trackID, labelID); err != nil {
			return err
		}
		if err := tx.Where("track_id = ? AND label_id = ?", trackID, labelID).Delete(&models.TrackLabel{}).Error; err != nil {
			return fmt.Errorf("remove track label: %w", err)
		}
		return nil
	})
}

func checkMembershipTarget(tx *gorm.DB, userID string, trackID, labelID int64) error {
	var label models.Label
	if err := tx.Where("id = ? AND user_id = ?", labelID, userID).First(&label).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLabelNotFound
		}
		return fmt.Errorf("find label: %w", err)
	}
	if label.IsSmart() {
		return ErrSmartLabel
	}

	var n int64
	if err := tx.Model(&models.Track{}).Where("id = ? AND user_id = ?", trackID, userID).Count(&n).Error; err != nil {
		return fmt.Errorf("find track: %w", err)
	}
	if n == 0 {
		return ErrTrackNotFound
	}
	return nil
}

// UpsertUser creates the user or refreshes its display name.
func (s *GormStore) UpsertUser(ctx context.Context, userID, displayName string) error {
	user := models.User{ID: userID, DisplayName: displayName}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpsertTracks inserts the user's tracks, updating rows that already exist for
// the same Spotify id.
func (s *GormStore) UpsertTracks(ctx context.Context, userID string, tracks []models.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	for i := range tracks {
		tracks[i].UserID = userID
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "spotify_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "artist", "album_name", "thumbnail_url", "explicit", "date_added", "date_released", "updated_at",
		}),
	}).CreateInBatches(&tracks, 200).Error
	if err != nil {
		return fmt.Errorf("upsert tracks: %w", err)
	}
	s.logger.Debug().Str("user_id", userID).Int("tracks", len(tracks)).Msg("tracks upserted")
	return nil
}

// FindTrackIDsBySpotifyID maps Spotify ids to the user's track ids. Unknown
// Spotify ids are absent from the result.
func (s *GormStore) FindTrackIDsBySpotifyID(ctx context.Context, userID string, spotifyIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(spotifyIDs))
	if len(spotifyIDs) == 0 {
		return out, nil
	}
	var rows []models.Track
	if err := s.db.WithContext(ctx).
		Select("id", "spotify_id").
		Where("user_id = ? AND spotify_id IN ?", userID, spotifyIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find tracks by spotify id: %w", err)
	}
	for _, r := range rows {
		out[r.SpotifyID] = r.ID
	}
	return out, nil
}
