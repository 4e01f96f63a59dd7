/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/playlist_gen/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.Track{},
		&models.Label{},
		&models.TrackLabel{},
	); err != nil {
		return err
	}

	if err := applyNonSmartLabelIndex(database); err != nil {
		return err
	}
	if err := pruneSmartLabelLinks(database); err != nil {
		return err
	}

	return nil
}

// applyNonSmartLabelIndex adds a partial index for the label lookups done on
// every criteria evaluation. MySQL has no partial indexes and keeps the plain
// user_id index.
func applyNonSmartLabelIndex(database *gorm.DB) error {
	switch database.Dialector.Name() {
	case "postgres", "sqlite":
	default:
		return nil
	}

	stmt := "CREATE INDEX IF NOT EXISTS idx_labels_user_non_smart ON labels (user_id, id) WHERE smart_criteria IS NULL"
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply non-smart label index: %w", err)
	}
	return nil
}

// pruneSmartLabelLinks removes join rows pointing at smart labels. Such rows
// are left behind when a plain label is turned into a smart one and would
// otherwise skew label counts.
func pruneSmartLabelLinks(database *gorm.DB) error {
	err := database.Exec(
		"DELETE FROM track_labels WHERE label_id IN (SELECT id FROM labels WHERE smart_criteria IS NOT NULL)",
	).Error
	if err != nil {
		return fmt.Errorf("prune smart label links: %w", err)
	}
	return nil
}
