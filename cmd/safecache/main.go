package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safecache/internal/admin"
	"safecache/internal/cache"
	"safecache/internal/config"
	"safecache/internal/errorreporting"
	"safecache/internal/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("safecache demo failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Signal-aware context is the root of ownership for long-lived background work.
	// When SIGINT/SIGTERM arrives, ctx is canceled and we initiate a clean shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
	}); err != nil {
		logger.Warn("error reporting init failed", "err", err)
	}
	logger.Info("error reporting", "enabled", errorreporting.Enabled())
	defer errorreporting.Flush(2 * time.Second)

	m := cache.Default()
	defer func() {
		// RemoveAll closes every cache and waits for its sweep goroutine.
		if err := m.RemoveAll(); err != nil {
			logger.Error("cache shutdown", "err", err)
		}
	}()

	logger.Info("safecache demo starting")

	if err := evictionDemo(m); err != nil {
		return err
	}
	if err := expiryDemo(ctx, m, cfg); err != nil {
		return err
	}

	if cfg.AdminAddr == "" {
		fmt.Println("Done. Set ADMIN_ADDR to keep the admin server running.")
		return nil
	}
	return serveAdmin(ctx, m, cfg.AdminAddr)
}

// evictionDemo fills a cache past its limit: with limit 100, item size 10 and
// fraction 0.5, every write that reaches the limit drops half of the oldest
// items, leaving the five newest keys.
func evictionDemo(m *cache.Manager) error {
	c, err := cache.Create[string, int](m, "eviction-demo", &cache.Config{
		SizeLimit:             100,
		DefaultItemExpiration: time.Hour,
		DefaultItemSize:       10,
		EvictionFraction:      0.5,
	})
	if err != nil {
		return err
	}

	unsubscribe := c.OnSizeLimitReached(func(ev cache.SizeLimitEvent) {
		logger.Info("size limit reached",
			"cache", ev.Cache,
			"size", ev.CurrentSize,
			"projected", ev.ProjectedSize,
			"source", ev.Source.String(),
		)
	})
	defer unsubscribe()

	for i := range 10 {
		if err := c.AddOrUpdate(fmt.Sprintf("key-%d", i), i); err != nil {
			return err
		}
	}

	logger.Info("after filling past the limit",
		"size", c.CurrentSize(),
		"keys", c.Keys(),
	)
	if v, err := c.Get("key-0", -1); err == nil && v == -1 {
		logger.Info("GET key-0: missing (evicted as one of the oldest)")
	}
	return nil
}

// expiryDemo adds a short-lived item and never reads it; the background sweep
// is what removes it. It uses the configured cache defaults so the sweep
// settings can be tried from the environment.
func expiryDemo(ctx context.Context, m *cache.Manager, cfg *config.Config) error {
	cc, err := cfg.CacheConfig()
	if err != nil {
		return err
	}
	if cc.PollingInterval == 0 {
		cc.PollingInterval = 100 * time.Millisecond
	}
	cc.OnSweepError = errorreporting.SweepErrorHandler("expiry-demo")

	c, err := cache.Create[string, []byte](m, "expiry-demo", cc)
	if err != nil {
		return err
	}

	ttl := 2 * cc.PollingInterval
	if err := c.AddOrUpdate("ttl", []byte("short"), cache.WithTTL(ttl)); err != nil {
		return err
	}
	logger.Info("short-lived item added", "ttl", ttl, "items", c.Len())

	// Wait long enough for expiry + at least one sweep.
	wait := time.NewTimer(ttl + 3*cc.PollingInterval)
	defer wait.Stop()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		return nil
	case <-wait.C:
	}

	logger.Info("after ttl + sweep", "items", c.Len(), "stats", c.Stats())
	return nil
}

func serveAdmin(ctx context.Context, m *cache.Manager, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           admin.NewRouter(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
