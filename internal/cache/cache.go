package cache

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"safecache/internal/logger"
	"safecache/internal/metrics"
)

// Cache is a concurrency-safe in-memory key–value cache with per-item TTL,
// a total size budget, and eviction of outdated and oldest items.
//
// The core design stays explicit: a map gives key lookup, and a
// doubly-linked list keeps items in refresh order (Front = oldest refresh,
// Back = most recently written). Oldest-items eviction walks from the front.
//
// Ownership model:
// Cache owns its sweep goroutine. Caches are created and closed through a
// Manager; Close stops the goroutine and drops every item.
type Cache[K comparable, V any] struct {
	mu sync.RWMutex

	name  string
	items map[K]*item[K, V]
	order *list.List
	size  int64

	sizeLimit   int64
	defaultTTL  time.Duration
	defaultSize int64
	fraction    float64
	pollEvery   time.Duration

	// Goroutine ownership.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	observers    observers
	stats        counters
	sf           singleflight.Group
	rec          *metrics.Recorder
	log          *slog.Logger
	onSweepError func(error)
	now          func() time.Time
}

// setOptions holds optional parameters for AddOrUpdate and GetOrAdd.
type setOptions struct {
	ttl     time.Duration
	ttlSet  bool
	size    int64
	sizeSet bool
}

// SetOption is a functional option for [Cache.AddOrUpdate] and [Cache.GetOrAdd].
type SetOption func(*setOptions)

// WithTTL overrides the cache's default item expiration for this write.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithSize sets an explicit item size for this write. It must be within
// [1, SizeLimit]; without it the cache's default item size is used.
func WithSize(size int64) SetOption {
	return func(o *setOptions) {
		o.size = size
		o.sizeSet = true
	}
}

// newCache validates cfg and starts background maintenance (if enabled).
// Only the Manager constructs caches.
func newCache[K comparable, V any](name string, cfg *Config) (*Cache[K, V], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: cache name is empty", ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithComponent("cache")
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cache[K, V]{
		name:         name,
		items:        make(map[K]*item[K, V]),
		order:        list.New(),
		sizeLimit:    cfg.SizeLimit,
		defaultTTL:   cfg.DefaultItemExpiration,
		defaultSize:  cfg.defaultItemSize(),
		fraction:     cfg.EvictionFraction,
		pollEvery:    cfg.PollingInterval,
		ctx:          ctx,
		cancel:       cancel,
		rec:          metrics.For(name),
		log:          log.With("cache", name),
		onSweepError: cfg.OnSweepError,
		now:          time.Now,
	}
	c.rec.SetLimit(c.sizeLimit)
	c.rec.SetOccupancy(0, 0)

	if c.pollEvery > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}

	c.log.Debug("cache created",
		"size_limit", c.sizeLimit,
		"default_ttl", c.defaultTTL,
		"default_size", c.defaultSize,
		"eviction_fraction", c.fraction,
		"polling_interval", c.pollEvery,
	)
	return c, nil
}

func (c *Cache[K, V]) Name() string { return c.name }
func (c *Cache[K, V]) SizeLimit() int64 { return c.sizeLimit }
func (c *Cache[K, V]) DefaultTTL() time.Duration { return c.defaultTTL }
func (c *Cache[K, V]) DefaultSize() int64 { return c.defaultSize }
func (c *Cache[K, V]) EvictionFraction() float64 { return c.fraction }
func (c *Cache[K, V]) PollingInterval() time.Duration { return c.pollEvery }
func (c *Cache[K, V]) KeyType() reflect.Type { return reflect.TypeFor[K]() }
func (c *Cache[K, V]) ValueType() reflect.Type { return reflect.TypeFor[V]() }

// CurrentSize returns the aggregate size of the stored items.
func (c *Cache[K, V]) CurrentSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Len returns the number of stored items.
//
// Note: Len includes items that are outdated but haven't been evicted yet.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the keys of live items, oldest refresh first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		it := el.Value.(*item[K, V])
		if !it.Outdated(now) {
			out = append(out, it.key)
		}
	}
	return out
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.RLock()
	s := Stats{
		Name:      c.name,
		Size:      c.size,
		SizeLimit: c.sizeLimit,
		Items:     len(c.items),
	}
	c.mu.RUnlock()

	c.stats.fill(&s)
	return s
}

// OnSizeLimitReached subscribes fn to size-limit-reached notifications and
// returns a function that unsubscribes it.
//
// Notifications are informational; they never block or reject the write that
// raised them. fn runs after the cache lock is released, before the
// triggering call returns, so it may call back into the cache. A panic in fn
// is returned to the caller of that operation as an *OperationError.
func (c *Cache[K, V]) OnSizeLimitReached(fn func(SizeLimitEvent)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return c.observers.add(fn)
}

// AddOrUpdate writes value under key.
//
// A missing key is added. A live item is updated in place (value, TTL and
// size), which refreshes it. An outdated item is removed first and a fresh
// item takes its place.
//
// When the projected size reaches the limit, outdated items are flushed; if
// that is not enough, the configured fraction of the oldest items is flushed.
// Each of those steps raises a size-limit-reached notification. The key being
// written is never chosen as an oldest item.
//
// AddOrUpdate on a closed cache does nothing.
func (c *Cache[K, V]) AddOrUpdate(key K, value V, opts ...SetOption) (err error) {
	if c.isClosed(OpAddOrUpdate) {
		return nil
	}

	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if isNil(key) {
		return fmt.Errorf("%w: key is nil", ErrInvalidArgument)
	}
	if isNil(value) {
		return fmt.Errorf("%w: value is nil", ErrInvalidArgument)
	}

	size := c.defaultSize
	if o.sizeSet {
		if o.size < 1 || o.size > c.sizeLimit {
			return fmt.Errorf("%w: item size %d must be within [1, %d]", ErrOutOfRange, o.size, c.sizeLimit)
		}
		size = o.size
	}
	ttl := c.defaultTTL
	if o.ttlSet {
		ttl = o.ttl
	}

	defer c.recoverOp(OpAddOrUpdate, &err)

	events, err := c.addOrUpdate(key, value, ttl, size)
	if err != nil {
		return err
	}
	c.notify(events)
	return nil
}

func (c *Cache[K, V]) addOrUpdate(key K, value V, ttl time.Duration, size int64) ([]SizeLimitEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil
	}

	now := c.now()
	var events []SizeLimitEvent

	it, exists := c.items[key]
	if exists && it.Outdated(now) {
		c.removeLocked(it)
		c.evictedLocked(metrics.ReasonOutdated, 1)
		exists = false
	}

	var current int64
	if exists {
		current = it.size
	}

	if projected := c.size - current + size; projected >= c.sizeLimit {
		events = append(events, c.limitReachedLocked(OpAddOrUpdate, projected))
		c.flushOutdatedLocked(now)
	}

	if projected := c.size - current + size; projected >= c.sizeLimit {
		events = append(events, c.limitReachedLocked(OpAddOrUpdate, projected))

		n := len(c.items)
		if !exists {
			n++
		}
		c.flushOldestLocked(evictCount(n, c.fraction), &key)
	}

	if exists {
		c.size += size - it.size
		it.size = size
		it.ttl = ttl
		it.setValue(value, now)
		c.order.MoveToBack(it.elem)
		c.stats.updates.Add(1)
	} else {
		fresh, err := newItem(key, value, ttl, size, now)
		if err != nil {
			return events, err
		}
		fresh.elem = c.order.PushBack(fresh)
		c.items[key] = fresh
		c.size += size
		c.stats.adds.Add(1)
	}

	c.publishLocked()
	return events, nil
}

// ContainsKey reports whether a live item is stored under key.
// An outdated item found on the way is evicted.
func (c *Cache[K, V]) ContainsKey(key K) (bool, error) {
	_, ok, err := c.lookup(OpContainsKey, key)
	return ok, err
}

// Get returns the value stored under key, or def when there is no live item.
// An outdated item found on the way is evicted.
func (c *Cache[K, V]) Get(key K, def V) (V, error) {
	v, ok, err := c.lookup(OpGet, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// TryGet is Get reporting presence instead of taking a default.
func (c *Cache[K, V]) TryGet(key K) (V, bool, error) {
	return c.lookup(OpGet, key)
}

// GetOrAdd returns the live value under key or stores the result of compute.
// Concurrent misses on the same key share one compute call.
func (c *Cache[K, V]) GetOrAdd(key K, compute func() (V, error), opts ...SetOption) (V, error) {
	// fast path: check if item exists and is not outdated
	if v, ok, err := c.TryGet(key); err != nil || ok {
		return v, err
	}

	res, err, _ := c.sf.Do(fmt.Sprintf("%T:%v", key, key), func() (any, error) {
		v, err := c.getOrCompute(key, compute, opts...)
		return flight[K, V]{key: key, value: v}, err
	})
	// Distinct keys can format alike and share a flight; that result (or
	// error) belongs to the other key.
	f, ok := res.(flight[K, V])
	if !ok || f.key != key {
		return c.getOrCompute(key, compute, opts...)
	}
	return f.value, err
}

// flight is the result of one shared GetOrAdd call.
type flight[K comparable, V any] struct {
	key   K
	value V
}

func (c *Cache[K, V]) getOrCompute(key K, compute func() (V, error), opts ...SetOption) (V, error) {
	// check again in case another caller stored it while we waited
	if v, ok, err := c.TryGet(key); err != nil || ok {
		return v, err
	}

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	if err := c.AddOrUpdate(key, v, opts...); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// lookup is the shared read path.
//
// Reads take the read lock. Evicting an outdated item is a write, so the
// lock is promoted: release the read lock, take the write lock, and re-check
// because the item could have been refreshed or removed in between.
func (c *Cache[K, V]) lookup(op Operation, key K) (v V, found bool, err error) {
	if c.isClosed(op) {
		return v, false, nil
	}
	if isNil(key) {
		return v, false, fmt.Errorf("%w: key is nil", ErrInvalidArgument)
	}

	defer c.recoverOp(op, &err)

	v, state := c.peek(key)
	switch state {
	case peekLive:
		c.hit()
		return v, true, nil
	case peekOutdated:
		v, found = c.evictIfOutdated(key)
		if found {
			c.hit()
		} else {
			c.miss()
		}
		return v, found, nil
	case peekMissing:
		c.miss()
	case peekClosed:
		// Closed between isClosed and peek: a no-op, neither hit nor miss.
	}
	return v, false, nil
}

type peekState int

const (
	peekClosed peekState = iota
	peekMissing
	peekLive
	peekOutdated
)

func (c *Cache[K, V]) peek(key K) (V, peekState) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	if c.closed {
		return zero, peekClosed
	}
	it, ok := c.items[key]
	if !ok {
		return zero, peekMissing
	}
	if it.Outdated(c.now()) {
		return zero, peekOutdated
	}
	return it.value, peekLive
}

func (c *Cache[K, V]) evictIfOutdated(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if c.closed {
		return zero, false
	}
	it, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !it.Outdated(c.now()) {
		// Refreshed by a writer between the two locks.
		return it.value, true
	}

	c.removeLocked(it)
	c.evictedLocked(metrics.ReasonOutdated, 1)
	c.publishLocked()
	return zero, false
}

// Remove deletes key if present.
func (c *Cache[K, V]) Remove(key K) (err error) {
	if c.isClosed(OpRemove) {
		return nil
	}
	if isNil(key) {
		return fmt.Errorf("%w: key is nil", ErrInvalidArgument)
	}

	defer c.recoverOp(OpRemove, &err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	it, ok := c.items[key]
	if !ok {
		return nil
	}
	c.removeLocked(it)
	c.stats.removals.Add(1)
	c.publishLocked()
	return nil
}

// Clear removes every item and resets the aggregate size to zero.
func (c *Cache[K, V]) Clear() (err error) {
	if c.isClosed(OpClear) {
		return nil
	}

	defer c.recoverOp(OpClear, &err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.stats.removals.Add(uint64(len(c.items)))
	c.clearLocked()
	return nil
}

// Close detaches every size-limit subscriber, stops the sweep goroutine,
// waits for it, and drops all items. Every later call on the cache is a no-op.
//
// Close is safe to call multiple times. Caches registered with a Manager
// should be closed through Manager.Remove so the name is released too.
func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.observers.reset()

	// Cancel outside the lock so the sweep can finish an iteration in progress.
	c.cancel()
	c.wg.Wait()

	// The closed gate suppresses every other mutation; this flush ignores it.
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()

	c.rec.Forget()
	c.log.Debug("cache closed")
	return nil
}

func (c *Cache[K, V]) isClosed(op Operation) bool {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		c.log.Debug("operation ignored", "op", op.String(), "reason", ErrClosed)
	}
	return closed
}

// recoverOp converts a panic raised inside op into an *OperationError.
// It must be deferred directly.
func (c *Cache[K, V]) recoverOp(op Operation, err *error) {
	if r := recover(); r != nil {
		*err = c.operationError(op, panicError(r))
	}
}

func (c *Cache[K, V]) operationError(op Operation, cause error) *OperationError {
	oe := &OperationError{Cache: c.name, Op: op, Err: cause}
	c.log.Error("cache operation failed", "op", op.String(), "err", cause)
	return oe
}

// notify delivers events to the current subscribers.
func (c *Cache[K, V]) notify(events []SizeLimitEvent) {
	if len(events) == 0 {
		return
	}
	subs := c.observers.snapshot()
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func (c *Cache[K, V]) hit() {
	c.stats.hits.Add(1)
	c.rec.Hit()
}

func (c *Cache[K, V]) miss() {
	c.stats.misses.Add(1)
	c.rec.Miss()
}

// Helpers below must be called with the write lock held.

func (c *Cache[K, V]) limitReachedLocked(source Operation, projected int64) SizeLimitEvent {
	c.stats.sizeLimitReached.Add(1)
	c.rec.LimitReached()
	c.log.Debug("size limit reached",
		"source", source.String(),
		"size", c.size,
		"projected", projected,
		"size_limit", c.sizeLimit,
	)
	return SizeLimitEvent{
		Cache:         c.name,
		CurrentSize:   c.size,
		ProjectedSize: projected,
		SizeLimit:     c.sizeLimit,
		Source:        source,
	}
}

func (c *Cache[K, V]) removeLocked(it *item[K, V]) {
	delete(c.items, it.key)
	c.order.Remove(it.elem)
	it.elem = nil
	c.size -= it.size
}

func (c *Cache[K, V]) clearLocked() {
	c.items = make(map[K]*item[K, V])
	c.order.Init()
	c.size = 0
	c.publishLocked()
}

func (c *Cache[K, V]) evictedLocked(reason string, n int) {
	if n <= 0 {
		return
	}
	switch reason {
	case metrics.ReasonOldest:
		c.stats.oldestEvictions.Add(uint64(n))
	default:
		c.stats.outdatedEvictions.Add(uint64(n))
	}
	c.rec.Evicted(reason, n)
}

func (c *Cache[K, V]) publishLocked() {
	c.rec.SetOccupancy(c.size, len(c.items))
}

// flushOutdatedLocked removes every outdated item.
//
// This is O(n) and intentionally simple: items are ordered by refresh time,
// not by expiry, because TTLs differ per item.
func (c *Cache[K, V]) flushOutdatedLocked(now time.Time) int {
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		it := el.Value.(*item[K, V])
		if it.Outdated(now) {
			c.removeLocked(it)
			removed++
		}
		el = next
	}
	c.evictedLocked(metrics.ReasonOutdated, removed)
	return removed
}

// flushOldestLocked removes up to n items with the oldest refresh time,
// skipping the item stored under keep when keep is set.
func (c *Cache[K, V]) flushOldestLocked(n int, keep *K) int {
	removed := 0
	for el := c.order.Front(); el != nil && removed < n; {
		next := el.Next()
		it := el.Value.(*item[K, V])
		if keep == nil || it.key != *keep {
			c.removeLocked(it)
			removed++
		}
		el = next
	}
	c.evictedLocked(metrics.ReasonOldest, removed)
	return removed
}

// evictCount is floor(n × fraction).
func evictCount(n int, fraction float64) int {
	return int(math.Floor(float64(n) * fraction))
}
