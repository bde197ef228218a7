// Package metrics exposes Prometheus collectors for every cache instance,
// labelled by cache name.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Eviction reasons.
const (
	ReasonOutdated = "outdated"
	ReasonOldest   = "oldest"
)

var (
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safecache_size",
			Help: "Current aggregate size of the items held by a cache",
		},
		[]string{"cache"},
	)

	CacheSizeLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safecache_size_limit",
			Help: "Configured size limit of a cache",
		},
		[]string{"cache"},
	)

	CacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safecache_items",
			Help: "Current number of items held by a cache",
		},
		[]string{"cache"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safecache_hits_total",
			Help: "Total number of reads that found a live item",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safecache_misses_total",
			Help: "Total number of reads that found no live item",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safecache_evictions_total",
			Help: "Total number of evicted items",
		},
		[]string{"cache", "reason"}, // reason: outdated, oldest
	)

	CacheSizeLimitReached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safecache_size_limit_reached_total",
			Help: "Total number of size-limit-reached notifications",
		},
		[]string{"cache"},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safecache_sweep_runs_total",
			Help: "Total number of background sweep iterations",
		},
		[]string{"cache", "status"}, // status: success, failed
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safecache_sweep_duration_seconds",
			Help:    "Duration of background sweep iterations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"cache"},
	)
)

// Recorder is bound to one cache name so hot paths skip the label lookup.
//
// Caches in different Managers may share a name. Their recorders then share
// the series: counters add up, and gauges hold the sum of every recorder's
// last published value. The series are deleted when the last recorder for
// the name is forgotten.
type Recorder struct {
	name string

	size      prometheus.Gauge
	limit     prometheus.Gauge
	items     prometheus.Gauge
	hits      prometheus.Counter
	misses    prometheus.Counter
	outdated  prometheus.Counter
	oldest    prometheus.Counter
	reached   prometheus.Counter
	sweepOK   prometheus.Counter
	sweepFail prometheus.Counter
	sweepDur  prometheus.Observer

	mu        sync.Mutex
	forgotten bool
	lastSize  float64
	lastItems float64
	lastLimit float64
}

var (
	ownersMu sync.Mutex
	owners   = make(map[string]int)
)

// For returns a recorder for the named cache. Every recorder must be
// released with Forget.
func For(name string) *Recorder {
	ownersMu.Lock()
	owners[name]++
	ownersMu.Unlock()

	return &Recorder{
		name:      name,
		size:      CacheSize.WithLabelValues(name),
		limit:     CacheSizeLimit.WithLabelValues(name),
		items:     CacheItems.WithLabelValues(name),
		hits:      CacheHits.WithLabelValues(name),
		misses:    CacheMisses.WithLabelValues(name),
		outdated:  CacheEvictions.WithLabelValues(name, ReasonOutdated),
		oldest:    CacheEvictions.WithLabelValues(name, ReasonOldest),
		reached:   CacheSizeLimitReached.WithLabelValues(name),
		sweepOK:   SweepRuns.WithLabelValues(name, "success"),
		sweepFail: SweepRuns.WithLabelValues(name, "failed"),
		sweepDur:  SweepDuration.WithLabelValues(name),
	}
}

func (r *Recorder) SetLimit(limit int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forgotten {
		return
	}
	r.limit.Add(float64(limit) - r.lastLimit)
	r.lastLimit = float64(limit)
}

// SetOccupancy publishes the aggregate size and item count.
func (r *Recorder) SetOccupancy(size int64, items int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forgotten {
		return
	}
	r.size.Add(float64(size) - r.lastSize)
	r.items.Add(float64(items) - r.lastItems)
	r.lastSize, r.lastItems = float64(size), float64(items)
}

func (r *Recorder) Hit()  { r.hits.Inc() }
func (r *Recorder) Miss() { r.misses.Inc() }

func (r *Recorder) Evicted(reason string, n int) {
	if n <= 0 {
		return
	}
	switch reason {
	case ReasonOldest:
		r.oldest.Add(float64(n))
	default:
		r.outdated.Add(float64(n))
	}
}

func (r *Recorder) LimitReached() { r.reached.Inc() }

// SweepDone records one background sweep iteration.
func (r *Recorder) SweepDone(d time.Duration, err error) {
	r.sweepDur.Observe(d.Seconds())
	if err != nil {
		r.sweepFail.Inc()
		return
	}
	r.sweepOK.Inc()
}

// Forget withdraws the recorder's gauge contribution and, when no other
// recorder holds the name, drops every series of the cache. It is safe to
// call more than once.
func (r *Recorder) Forget() {
	r.mu.Lock()
	if r.forgotten {
		r.mu.Unlock()
		return
	}
	r.forgotten = true
	r.size.Sub(r.lastSize)
	r.items.Sub(r.lastItems)
	r.limit.Sub(r.lastLimit)
	r.mu.Unlock()

	ownersMu.Lock()
	defer ownersMu.Unlock()

	owners[r.name]--
	if owners[r.name] > 0 {
		return
	}
	delete(owners, r.name)

	labels := prometheus.Labels{"cache": r.name}
	CacheSize.DeletePartialMatch(labels)
	CacheSizeLimit.DeletePartialMatch(labels)
	CacheItems.DeletePartialMatch(labels)
	CacheHits.DeletePartialMatch(labels)
	CacheMisses.DeletePartialMatch(labels)
	CacheEvictions.DeletePartialMatch(labels)
	CacheSizeLimitReached.DeletePartialMatch(labels)
	SweepRuns.DeletePartialMatch(labels)
	SweepDuration.DeletePartialMatch(labels)
}
