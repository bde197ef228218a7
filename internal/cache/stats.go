package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of a cache's counters.
type Stats struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeLimit int64  `json:"size_limit"`
	Items     int    `json:"items"`

	Hits              uint64 `json:"hits"`
	Misses            uint64 `json:"misses"`
	Adds              uint64 `json:"adds"`
	Updates           uint64 `json:"updates"`
	Removals          uint64 `json:"removals"`
	OutdatedEvictions uint64 `json:"outdated_evictions"`
	OldestEvictions   uint64 `json:"oldest_evictions"`
	SizeLimitReached  uint64 `json:"size_limit_reached"`
	SweepRuns         uint64 `json:"sweep_runs"`
	SweepFailures     uint64 `json:"sweep_failures"`
}

// counters are updated without the cache lock.
type counters struct {
	hits              atomic.Uint64
	misses            atomic.Uint64
	adds              atomic.Uint64
	updates           atomic.Uint64
	removals          atomic.Uint64
	outdatedEvictions atomic.Uint64
	oldestEvictions   atomic.Uint64
	sizeLimitReached  atomic.Uint64
	sweepRuns         atomic.Uint64
	sweepFailures     atomic.Uint64
}

func (c *counters) fill(s *Stats) {
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Adds = c.adds.Load()
	s.Updates = c.updates.Load()
	s.Removals = c.removals.Load()
	s.OutdatedEvictions = c.outdatedEvictions.Load()
	s.OldestEvictions = c.oldestEvictions.Load()
	s.SizeLimitReached = c.sizeLimitReached.Load()
	s.SweepRuns = c.sweepRuns.Load()
	s.SweepFailures = c.sweepFailures.Load()
}
