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

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string

	// Redis backs the category search cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Twitch Helix API
	TwitchClientID string
	TwitchToken    string // user access token with channel:manage:broadcast
	TwitchAPIURL   string

	// Announcements
	AnnounceWebhookURL    string // empty means announcements are only logged
	AnnounceWebhookSecret string
	AnnounceMaxWeight     int
	ConfirmWindow         time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"MUSTARD_ENV", "STREAM_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"MUSTARD_HTTP_BIND", "STREAM_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"MUSTARD_HTTP_PORT", "STREAM_HTTP_PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"MUSTARD_DB_BACKEND", "STREAM_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:         getEnvAny([]string{"MUSTARD_DB_DSN", "STREAM_DB_DSN"}, ""),
		JWTSigningKey: getEnvAny([]string{"MUSTARD_JWT_SIGNING_KEY", "STREAM_JWT_SIGNING_KEY"}, ""),

		CacheEnabled:  getEnvBoolAny([]string{"MUSTARD_CACHE_ENABLED", "STREAM_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"MUSTARD_REDIS_ADDR", "STREAM_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"MUSTARD_REDIS_PASSWORD", "STREAM_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"MUSTARD_REDIS_DB", "STREAM_REDIS_DB"}, 0),
		CacheTTL:      time.Duration(getEnvIntAny([]string{"MUSTARD_CACHE_TTL_SECONDS", "STREAM_CACHE_TTL_SECONDS"}, 3600)) * time.Second,

		TwitchClientID: getEnvAny([]string{"MUSTARD_TWITCH_CLIENT_ID", "STREAM_TWITCH_CLIENT_ID"}, ""),
		TwitchToken:    getEnvAny([]string{"MUSTARD_TWITCH_TOKEN", "STREAM_TWITCH_TOKEN"}, ""),
		TwitchAPIURL:   getEnvAny([]string{"MUSTARD_TWITCH_API_URL", "STREAM_TWITCH_API_URL"}, "https://api.twitch.tv/helix"),

		AnnounceWebhookURL:    getEnvAny([]string{"MUSTARD_ANNOUNCE_WEBHOOK_URL", "STREAM_ANNOUNCE_WEBHOOK_URL"}, ""),
		AnnounceWebhookSecret: getEnvAny([]string{"MUSTARD_ANNOUNCE_WEBHOOK_SECRET", "STREAM_ANNOUNCE_WEBHOOK_SECRET"}, ""),
		AnnounceMaxWeight:     getEnvIntAny([]string{"MUSTARD_ANNOUNCE_MAX_WEIGHT", "STREAM_ANNOUNCE_MAX_WEIGHT"}, 280),
		ConfirmWindow:         time.Duration(getEnvIntAny([]string{"MUSTARD_CONFIRM_WINDOW_SECONDS", "STREAM_CONFIRM_WINDOW_SECONDS"}, 5)) * time.Second,

		TracingEnabled:    getEnvBoolAny([]string{"MUSTARD_TRACING_ENABLED", "STREAM_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"MUSTARD_OTLP_ENDPOINT", "STREAM_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"MUSTARD_TRACING_SAMPLE_RATE", "STREAM_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("MUSTARD_DB_DSN or STREAM_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("MUSTARD_JWT_SIGNING_KEY or STREAM_JWT_SIGNING_KEY must be provided")
	}

	if cfg.AnnounceMaxWeight <= 0 {
		return nil, fmt.Errorf("MUSTARD_ANNOUNCE_MAX_WEIGHT must be positive, got %d", cfg.AnnounceMaxWeight)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if len(cfg.JWTSigningKey) < 32 || strings.EqualFold(cfg.JWTSigningKey, "changeme") {
			return nil, fmt.Errorf("MUSTARD_JWT_SIGNING_KEY must be at least 32 characters and non-default in production")
		}
		if cfg.AnnounceWebhookURL != "" && cfg.AnnounceWebhookSecret == "" {
			return nil, fmt.Errorf("MUSTARD_ANNOUNCE_WEBHOOK_SECRET is required when an announce webhook is set in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"TWITCH_CLIENT_ID": "use MUSTARD_TWITCH_CLIENT_ID",
		"TWITCH_TOKEN":     "use MUSTARD_TWITCH_TOKEN",
		"JWT_SIGNING_KEY":  "use MUSTARD_JWT_SIGNING_KEY (or STREAM_JWT_SIGNING_KEY)",
		"TRACING_ENABLED":  "use MUSTARD_TRACING_ENABLED (or STREAM_TRACING_ENABLED)",
		"OTLP_ENDPOINT":    "use MUSTARD_OTLP_ENDPOINT (or STREAM_OTLP_ENDPOINT)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
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
