/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for Twitch lookups.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mustard/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultCategoryTTL = 1 * time.Hour
	DefaultChannelTTL  = 2 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyCategorySearch = "mustard:cache:categories:" // + normalized query
	KeyChannelInfo    = "mustard:cache:channel:"    // + broadcaster id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	CategoryTTL time.Duration
	ChannelTTL  time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		CategoryTTL:    DefaultCategoryTTL,
		ChannelTTL:     DefaultChannelTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
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
		_ = client.Close()
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return Disabled(logger), nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: withDefaults(cfg),
	}, nil
}

// Disabled returns a cache that never stores anything.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.CategoryTTL <= 0 {
		cfg.CategoryTTL = DefaultCategoryTTL
	}
	if cfg.ChannelTTL <= 0 {
		cfg.ChannelTTL = DefaultChannelTTL
	}
	return cfg
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
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

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Category search caching

// CachedCategory represents a cached Twitch category.
type CachedCategory struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// CategoryKey normalizes a search query into its cache key.
func CategoryKey(query string) string {
	return KeyCategorySearch + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// GetCategories retrieves cached search results for query.
func (c *Cache) GetCategories(ctx context.Context, query string) ([]CachedCategory, bool) {
	var categories []CachedCategory
	found, err := c.get(ctx, CategoryKey(query), &categories)
	if err != nil || !found {
		telemetry.CacheLookupsTotal.WithLabelValues("categories", "miss").Inc()
		return nil, false
	}
	telemetry.CacheLookupsTotal.WithLabelValues("categories", "hit").Inc()
	c.logger.Debug().Str("query", query).Int("count", len(categories)).Msg("category search cache hit")
	return categories, true
}

// SetCategories stores search results for query.
func (c *Cache) SetCategories(ctx context.Context, query string, categories []CachedCategory) error {
	return c.set(ctx, CategoryKey(query), categories, c.config.CategoryTTL)
}

// Channel info caching

// CachedChannel represents the live metadata of a broadcaster.
type CachedChannel struct {
	BroadcasterID string   `json:"broadcaster_id"`
	Login         string   `json:"login"`
	CategoryID    string   `json:"category_id"`
	Category      string   `json:"category"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags"`
}

// GetChannel retrieves cached metadata for a broadcaster.
func (c *Cache) GetChannel(ctx context.Context, broadcasterID string) (*CachedChannel, bool) {
	var channel CachedChannel
	found, err := c.get(ctx, KeyChannelInfo+broadcasterID, &channel)
	if err != nil || !found {
		telemetry.CacheLookupsTotal.WithLabelValues("channel", "miss").Inc()
		return nil, false
	}
	telemetry.CacheLookupsTotal.WithLabelValues("channel", "hit").Inc()
	return &channel, true
}

// SetChannel stores broadcaster metadata.
func (c *Cache) SetChannel(ctx context.Context, channel *CachedChannel) error {
	return c.set(ctx, KeyChannelInfo+channel.BroadcasterID, channel, c.config.ChannelTTL)
}

// InvalidateChannel drops cached metadata after an update.
func (c *Cache) InvalidateChannel(ctx context.Context, broadcasterID string) error {
	return c.delete(ctx, KeyChannelInfo+broadcasterID)
}

// FlushAll clears all cache entries (use with caution).
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}

	c.logger.Warn().Msg("flushing all cache entries")
	return c.deletePattern(ctx, "mustard:cache:*")
}
