package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"safecache/internal/logger"
)

// handle is the type-erased view of a *Cache[K, V] kept by the Manager.
type handle interface {
	Name() string
	KeyType() reflect.Type
	ValueType() reflect.Type
	Stats() Stats
	Clear() error
	Close() error
}

// Manager is a registry of named caches. It is the only way to construct a
// cache, and removing a cache from it closes the cache.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]handle
	log    *slog.Logger
}

var defaultManager = sync.OnceValue(NewManager)

// Default returns the process-wide Manager, creating it on first use.
// It is never torn down; remove caches individually or with RemoveAll.
func Default() *Manager {
	return defaultManager()
}

// NewManager returns an empty, independent Manager.
// Most programs should use Default.
func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]handle),
		log:    logger.WithComponent("cache_manager"),
	}
}

// Create builds a cache from cfg and registers it under name.
func Create[K comparable, V any](m *Manager, name string, cfg *Config) (*Cache[K, V], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: cache name is empty", ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.caches[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	c, err := newCache[K, V](name, cfg)
	if err != nil {
		return nil, err
	}
	m.caches[name] = c

	m.log.Info("cache registered",
		"cache", name,
		"key_type", c.KeyType().String(),
		"value_type", c.ValueType().String(),
	)
	return c, nil
}

// Lookup returns the cache registered under name.
//
// ok is false when no such cache exists. The key and value types must match
// the ones the cache was created with, otherwise ErrTypeMismatch is returned.
// Every successful call returns the same instance.
func Lookup[K comparable, V any](m *Manager, name string) (c *Cache[K, V], ok bool, err error) {
	if name == "" {
		return nil, false, fmt.Errorf("%w: cache name is empty", ErrInvalidArgument)
	}

	m.mu.RLock()
	h, found := m.caches[name]
	m.mu.RUnlock()

	if !found {
		return nil, false, nil
	}

	if want := reflect.TypeFor[K](); h.KeyType() != want {
		return nil, false, fmt.Errorf("%w: cache %q has key type %s, not %s",
			ErrTypeMismatch, name, h.KeyType(), want)
	}
	if want := reflect.TypeFor[V](); h.ValueType() != want {
		return nil, false, fmt.Errorf("%w: cache %q has value type %s, not %s",
			ErrTypeMismatch, name, h.ValueType(), want)
	}

	c, ok = h.(*Cache[K, V])
	if !ok {
		return nil, false, fmt.Errorf("%w: cache %q is a %T", ErrTypeMismatch, name, h)
	}
	return c, true, nil
}

// Exists reports whether a cache is registered under name.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.caches[name]
	return ok
}

// Names returns the registered cache names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Stats returns the statistics of the named cache without knowing its types.
func (m *Manager) Stats(name string) (Stats, bool) {
	m.mu.RLock()
	h, ok := m.caches[name]
	m.mu.RUnlock()

	if !ok {
		return Stats{}, false
	}
	return h.Stats(), true
}

// Clear empties the named cache without knowing its types. found is false
// when no cache is registered under name.
func (m *Manager) Clear(name string) (found bool, err error) {
	m.mu.RLock()
	h, ok := m.caches[name]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return true, h.Clear()
}

// Remove unregisters and closes the named cache. It is a no-op when no
// cache is registered under name.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	h, ok := m.caches[name]
	delete(m.caches, name)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	// Close outside the lock: it waits for the sweep goroutine.
	if err := h.Close(); err != nil {
		return fmt.Errorf("close cache %q: %w", name, err)
	}
	m.log.Info("cache removed", "cache", name)
	return nil
}

// RemoveAll removes every registered cache.
func (m *Manager) RemoveAll() error {
	var errs []error
	for _, name := range m.Names() {
		if err := m.Remove(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
