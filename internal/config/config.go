// Package config loads the demo binary's settings from the environment.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"

	"safecache/internal/cache"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Cache defaults
	CacheSizeLimit        int64
	CacheDefaultTTL       time.Duration
	CacheDefaultItemSize  int64
	CacheEvictionFraction float64
	CachePollingInterval  time.Duration

	// Observability settings
	LogLevel          string // log level: debug, info, warn, error
	AdminAddr         string // admin HTTP listen address; empty disables the server
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
}

// Load reads a .env file from the working directory when there is one, then
// builds the configuration from the environment. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		CacheSizeLimit:        GetEnvAsInt64("CACHE_SIZE_LIMIT", 100),
		CacheDefaultTTL:       GetEnvAsMillis("CACHE_DEFAULT_TTL_MS", time.Minute),
		CacheDefaultItemSize:  GetEnvAsInt64("CACHE_DEFAULT_ITEM_SIZE", 1),
		CacheEvictionFraction: GetEnvAsFloat("CACHE_EVICTION_FRACTION", 0.5),
		CachePollingInterval:  GetEnvAsMillis("CACHE_POLLING_INTERVAL_MS", time.Second),

		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		AdminAddr:         GetEnv("ADMIN_ADDR", ""),
		SentryDSN:         GetEnv("SENTRY_DSN", ""),
		SentryEnvironment: GetEnv("SENTRY_ENVIRONMENT", GetEnv("ENV", "development")),
		SentryRelease:     GetEnv("SENTRY_RELEASE", "dev"),
	}
}

// CacheConfig returns the cache settings as a validated cache.Config.
func (c *Config) CacheConfig() (*cache.Config, error) {
	cfg := &cache.Config{
		SizeLimit:             c.CacheSizeLimit,
		DefaultItemExpiration: c.CacheDefaultTTL,
		DefaultItemSize:       c.CacheDefaultItemSize,
		EvictionFraction:      c.CacheEvictionFraction,
		PollingInterval:       c.CachePollingInterval,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
