package cache

import (
	"fmt"
	"log/slog"
	"time"
)

// Config is the plain value bag a cache is created from.
//
// Zero values:
//   - DefaultItemExpiration == 0 means items are outdated as soon as they are
//     written unless a TTL is passed per call.
//   - DefaultItemSize == 0 means 1.
//   - PollingInterval == 0 disables the background sweep; expiry still happens
//     lazily on reads and on writes under size pressure.
type Config struct {
	SizeLimit             int64
	DefaultItemExpiration time.Duration
	DefaultItemSize       int64
	EvictionFraction      float64 // share of the oldest items dropped when the limit is reached, 0..1
	PollingInterval       time.Duration

	// Logger defaults to the process logger with component=cache.
	Logger *slog.Logger

	// OnSweepError is called with every recovered background sweep failure.
	// It runs on the sweep goroutine.
	OnSweepError func(error)
}

// Validate checks the configuration without modifying it.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalidArgument)
	}
	if c.SizeLimit < 1 {
		return fmt.Errorf("%w: size limit %d must be at least 1", ErrOutOfRange, c.SizeLimit)
	}
	if c.DefaultItemSize < 0 {
		return fmt.Errorf("%w: default item size %d is negative", ErrOutOfRange, c.DefaultItemSize)
	}
	if c.DefaultItemSize > c.SizeLimit {
		return fmt.Errorf("%w: default item size %d exceeds size limit %d",
			ErrInvariantViolation, c.DefaultItemSize, c.SizeLimit)
	}
	// Written as a negation so NaN is rejected too.
	if !(c.EvictionFraction >= 0 && c.EvictionFraction <= 1) {
		return fmt.Errorf("%w: eviction fraction %v must be within [0, 1]", ErrOutOfRange, c.EvictionFraction)
	}
	if c.PollingInterval < 0 {
		return fmt.Errorf("%w: polling interval %s is negative", ErrOutOfRange, c.PollingInterval)
	}
	return nil
}

func (c *Config) defaultItemSize() int64 {
	if c.DefaultItemSize == 0 {
		return 1
	}
	return c.DefaultItemSize
}
