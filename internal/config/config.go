/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EvalMode selects where smart label criteria are evaluated.
type EvalMode string

const (
	EvalMemory   EvalMode = "memory"
	EvalPushdown EvalMode = "pushdown"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MetricsBind   string

	// Criteria evaluation
	Timezone         string // location used for absolute dates such as released=2020
	Location         *time.Location
	EvalMode         EvalMode
	BatchConcurrency int // max smart labels evaluated in parallel for one request

	// Label count cache
	RedisAddr     string // empty disables the cache
	RedisPassword string
	RedisDB       int
	CountCacheTTL time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"PLAYLISTGEN_ENV", "NODE_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"PLAYLISTGEN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"PLAYLISTGEN_HTTP_PORT", "PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"PLAYLISTGEN_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"PLAYLISTGEN_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"PLAYLISTGEN_JWT_SIGNING_KEY", "COOKIE_SECRET"}, ""),
		MetricsBind:   getEnvAny([]string{"PLAYLISTGEN_METRICS_BIND"}, "127.0.0.1:9000"),

		Timezone:         getEnvAny([]string{"PLAYLISTGEN_TIMEZONE", "TZ"}, "UTC"),
		EvalMode:         EvalMode(getEnvAny([]string{"PLAYLISTGEN_EVAL_MODE"}, string(EvalMemory))),
		BatchConcurrency: getEnvIntAny([]string{"PLAYLISTGEN_BATCH_CONCURRENCY"}, 8),

		RedisAddr:     getEnvAny([]string{"PLAYLISTGEN_REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"PLAYLISTGEN_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"PLAYLISTGEN_REDIS_DB"}, 0),
		CountCacheTTL: time.Duration(getEnvIntAny([]string{"PLAYLISTGEN_COUNT_CACHE_TTL_SECONDS"}, 300)) * time.Second,

		TracingEnabled:    getEnvBoolAny([]string{"PLAYLISTGEN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"PLAYLISTGEN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"PLAYLISTGEN_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("PLAYLISTGEN_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("PLAYLISTGEN_JWT_SIGNING_KEY or COOKIE_SECRET must be provided")
	}

	if cfg.EvalMode != EvalMemory && cfg.EvalMode != EvalPushdown {
		return nil, fmt.Errorf("unsupported eval mode %q", cfg.EvalMode)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}

	if strings.EqualFold(cfg.Environment, "production") && len(cfg.JWTSigningKey) < 32 {
		return nil, fmt.Errorf("PLAYLISTGEN_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"DATABASE_URL":  "use PLAYLISTGEN_DB_DSN",
		"COOKIE_SECRET": "use PLAYLISTGEN_JWT_SIGNING_KEY",
		"NODE_ENV":      "use PLAYLISTGEN_ENV",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the host:port the API listens on.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
