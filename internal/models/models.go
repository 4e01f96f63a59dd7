/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// User owns a Spotify library mirror. ID is the Spotify user id.
type User struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	DisplayName string
	Tracks      []Track `gorm:"foreignKey:UserID"`
	Labels      []Label `gorm:"foreignKey:UserID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Track is one saved track from the user's library.
type Track struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"type:varchar(64);index;uniqueIndex:idx_tracks_user_spotify"`
	SpotifyID    string `gorm:"type:varchar(64);uniqueIndex:idx_tracks_user_spotify"`
	Name         string
	Artist       string `gorm:"index"`
	AlbumName    string `gorm:"index"`
	ThumbnailURL string
	Explicit     bool
	DateAdded    time.Time `gorm:"index"`
	DateReleased time.Time
	Labels       []Label `gorm:"many2many:track_labels"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Label groups tracks. A label with SmartCriteria set is a smart label: its
// membership is derived from the criteria and its track_labels rows are ignored.
type Label struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	UserID        string `gorm:"type:varchar(64);index"`
	Name          string
	SmartCriteria *string `gorm:"type:text"`
	Tracks        []Track `gorm:"many2many:track_labels"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsSmart reports whether the label's membership comes from criteria.
func (l Label) IsSmart() bool {
	return l.SmartCriteria != nil
}

// TrackLabel is the join row between tracks and labels.
type TrackLabel struct {
	TrackID int64 `gorm:"primaryKey"`
	LabelID int64 `gorm:"primaryKey;index"`
}

// TableName pins the join table shared with the many2many associations.
func (TrackLabel) TableName() string {
	return "track_labels"
}
