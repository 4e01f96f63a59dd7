/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"github.com/friendsincode/playlist_gen/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const _startTime = "telemetry:start_time"

// SlowQueryThreshold is the duration above which a statement is logged at warn level.
var SlowQueryThreshold = 200 * time.Millisecond

// RegisterCallbacks installs timing callbacks around every gorm operation.
// Durations feed the database metrics; slow statements are logged.
func RegisterCallbacks(database *gorm.DB, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "db").Logger()
	cb := database.Callback()

	steps := []error{
		cb.Query().Before("gorm:query").Register("telemetry:before_query", beforeCallback),
		cb.Query().After("gorm:query").Register("telemetry:after_query", afterCallback("query", logger)),
		cb.Create().Before("gorm:create").Register("telemetry:before_create", beforeCallback),
		cb.Create().After("gorm:create").Register("telemetry:after_create", afterCallback("create", logger)),
		cb.Update().Before("gorm:update").Register("telemetry:before_update", beforeCallback),
		cb.Update().After("gorm:update").Register("telemetry:after_update", afterCallback("update", logger)),
		cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", beforeCallback),
		cb.Delete().After("gorm:delete").Register("telemetry:after_delete", afterCallback("delete", logger)),
		cb.Row().Before("gorm:row").Register("telemetry:before_row", beforeCallback),
		cb.Row().After("gorm:row").Register("telemetry:after_row", afterCallback("row", logger)),
	}
	return errors.Join(steps...)
}

func beforeCallback(tx *gorm.DB) {
	tx.InstanceSet(_startTime, time.Now())
}

func afterCallback(operation string, logger zerolog.Logger) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(_startTime)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)

		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())

		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, "query_error").Inc()
		}
		if elapsed > SlowQueryThreshold {
			logger.Warn().
				Str("operation", operation).
				Str("table", table).
				Dur("elapsed", elapsed).
				Msg("slow database statement")
		}
	}
}

// UpdateConnectionMetrics refreshes the connection pool gauge.
func UpdateConnectionMetrics(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
