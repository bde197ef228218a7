// Package cache implements single-process, in-memory, generic key–value caches
// with per-item TTL and a total size budget, plus the Manager registry that
// creates, hands out and closes named caches.
//
// Goals for this package:
//   - Make the core data structures explicit (map index + refresh-ordered list)
//   - Be concurrency-safe (RWMutex); no structural change ever happens under the read lock
//   - Expire items lazily on read, on writes under size pressure, and in a background sweep
//   - When the size limit is reached, drop outdated items first, then a fixed share of the oldest
//   - Own and cleanly stop long-lived goroutines (no leaks on shutdown)
//
// Typical use goes through the process-wide Manager:
//
//	c, err := cache.Create[string, []byte](cache.Default(), "pages", &cache.Config{
//		SizeLimit:             1 << 20,
//		DefaultItemExpiration: time.Minute,
//		EvictionFraction:      0.25,
//		PollingInterval:       time.Second,
//	})
//	_ = c.AddOrUpdate("index", body, cache.WithSize(int64(len(body))))
//	page, err := c.Get("index", nil)
//
// After Close (or Manager.Remove) every operation on the cache is a silent no-op.
package cache
