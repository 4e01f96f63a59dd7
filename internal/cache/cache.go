/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache keeps per-user smart label counts in Redis between requests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/friendsincode/playlist_gen/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultLabelCountTTL bounds how stale a cached count can get when an
// invalidation is missed, e.g. for relative date criteria such as added<7d.
const DefaultLabelCountTTL = 5 * time.Minute

// KeyLabelCounts prefixes the per-user count hash. Fields are label ids.
const KeyLabelCounts = "playlistgen:cache:label_counts:" // + user_id

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LabelCountTTL time.Duration

	// DisableOnError turns the cache off after the first Redis failure.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		LabelCountTTL:  DefaultLabelCountTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A disabled
// cache reports misses and accepts writes silently.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a cache. An empty address or an unreachable server yields a
// disabled cache rather than an error.
func New(cfg Config, logger zerolog.Logger) *Cache {
	logger = logger.With().Str("component", "cache").Logger()
	if cfg.LabelCountTTL <= 0 {
		cfg.LabelCountTTL = DefaultLabelCountTTL
	}
	if cfg.RedisAddr == "" {
		logger.Info().Msg("label count cache disabled")
		return &Cache{logger: logger, config: cfg, disabled: true}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{logger: logger, config: cfg, disabled: true}
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: logger, config: cfg}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// GetLabelCounts returns the cached smart label counts of a user. Counts
// live in one hash per user, keyed by label id.
func (c *Cache) GetLabelCounts(ctx context.Context, userID string) (map[int64]int, bool) {
	if !c.IsAvailable() {
		telemetry.LabelCountCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	raw, err := c.client.HGetAll(ctx, KeyLabelCounts+userID).Result()
	if err != nil || len(raw) == 0 {
		c.handleError(err, "hgetall")
		telemetry.LabelCountCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	counts := make(map[int64]int, len(raw))
	for field, value := range raw {
		id, idErr := strconv.ParseInt(field, 10, 64)
		n, nErr := strconv.Atoi(value)
		if idErr != nil || nErr != nil {
			c.logger.Debug().Str("user_id", userID).Str("field", field).Msg("dropping malformed cached count")
			telemetry.LabelCountCacheTotal.WithLabelValues("miss").Inc()
			return nil, false
		}
		counts[id] = n
	}

	telemetry.LabelCountCacheTotal.WithLabelValues("hit").Inc()
	c.logger.Debug().Str("user_id", userID).Int("labels", len(counts)).Msg("label count cache hit")
	return counts, true
}

// SetLabelCounts replaces the cached smart label counts of a user. An empty
// map clears the entry.
func (c *Cache) SetLabelCounts(ctx context.Context, userID string, counts map[int64]int) error {
	if !c.IsAvailable() {
		return nil
	}

	key := KeyLabelCounts + userID
	fields := make([]any, 0, 2*len(counts))
	for id, n := range counts {
		fields = append(fields, strconv.FormatInt(id, 10), n)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields...)
			pipe.Expire(ctx, key, c.config.LabelCountTTL)
		}
		return nil
	})
	if err != nil {
		c.handleError(err, "hset")
		return fmt.Errorf("cache label counts: %w", err)
	}
	return nil
}

// InvalidateUser drops everything cached for a user. Call it after any change
// to the user's tracks, labels or label memberships.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	if !c.IsAvailable() {
		return nil
	}

	c.logger.Debug().Str("user_id", userID).Msg("invalidating label counts")
	if err := c.client.Del(ctx, KeyLabelCounts+userID).Err(); err != nil {
		c.handleError(err, "del")
		return err
	}
	return nil
}
