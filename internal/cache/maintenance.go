package cache

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxSweepBackoff caps the wait after repeated sweep failures, in polling intervals.
const maxSweepBackoff = 32

// sweepLoop periodically removes outdated items and, while the cache is at
// or above its size limit, the configured fraction of the oldest items.
//
// A failed iteration does not stop the loop: the failure is logged, counted
// and handed to Config.OnSweepError, and the next iteration is delayed by an
// exponential backoff that resets after the next clean run.
func (c *Cache[K, V]) sweepLoop() {
	defer c.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollEvery
	b.MaxInterval = maxSweepBackoff * c.pollEvery

	timer := time.NewTimer(c.pollEvery)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}

		wait := c.pollEvery
		if err := c.sweep(); err != nil {
			c.sweepFailed(err)
			if next := b.NextBackOff(); next > 0 {
				wait = next
			}
		} else {
			b.Reset()
		}
		timer.Reset(wait)
	}
}

// sweep runs one iteration. The scan happens under the read lock; the write
// lock is only taken when there is something to remove.
func (c *Cache[K, V]) sweep() (err error) {
	start := time.Now()
	defer func() {
		c.stats.sweepRuns.Add(1)
		c.rec.SweepDone(time.Since(start), err)
	}()
	defer c.recoverOp(OpBackgroundSweep, &err)

	if !c.sweepNeeded() {
		return nil
	}
	c.notify(c.sweepLocked())
	return nil
}

func (c *Cache[K, V]) sweepNeeded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	if c.size >= c.sizeLimit {
		return true
	}
	now := c.now()
	for el := c.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*item[K, V]).Outdated(now) {
			return true
		}
	}
	return false
}

func (c *Cache[K, V]) sweepLocked() []SizeLimitEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var events []SizeLimitEvent
	outdated := c.flushOutdatedLocked(c.now())

	oldest := 0
	if c.size >= c.sizeLimit {
		events = append(events, c.limitReachedLocked(OpBackgroundSweep, c.size))
		oldest = c.flushOldestLocked(evictCount(len(c.items), c.fraction), nil)
		if oldest == 0 {
			// fraction 0 (or an empty cache) leaves only expiry to relieve pressure.
			c.log.Warn("cache over size limit but no item could be evicted",
				"size", c.size,
				"size_limit", c.sizeLimit,
				"eviction_fraction", c.fraction,
			)
		}
	}

	c.publishLocked()
	c.log.Debug("sweep finished",
		"removed_outdated", outdated,
		"removed_oldest", oldest,
		"size", c.size,
		"items", len(c.items),
	)
	return events
}

func (c *Cache[K, V]) sweepFailed(err error) {
	c.stats.sweepFailures.Add(1)
	if c.onSweepError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("sweep error handler panicked", "panic", r)
		}
	}()
	c.onSweepError(err)
}
