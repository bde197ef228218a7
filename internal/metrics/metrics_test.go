package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := For("metrics-test-counters")
	t.Cleanup(r.Forget)

	r.Hit()
	r.Hit()
	r.Miss()
	r.Evicted(ReasonOutdated, 2)
	r.Evicted(ReasonOldest, 5)
	r.Evicted(ReasonOldest, 0)
	r.LimitReached()

	require.Equal(t, 2.0, testutil.ToFloat64(CacheHits.WithLabelValues("metrics-test-counters")))
	require.Equal(t, 1.0, testutil.ToFloat64(CacheMisses.WithLabelValues("metrics-test-counters")))
	require.Equal(t, 2.0, testutil.ToFloat64(CacheEvictions.WithLabelValues("metrics-test-counters", ReasonOutdated)))
	require.Equal(t, 5.0, testutil.ToFloat64(CacheEvictions.WithLabelValues("metrics-test-counters", ReasonOldest)))
	require.Equal(t, 1.0, testutil.ToFloat64(CacheSizeLimitReached.WithLabelValues("metrics-test-counters")))
}

func TestRecorder_Gauges(t *testing.T) {
	r := For("metrics-test-gauges")
	t.Cleanup(r.Forget)

	r.SetLimit(100)
	r.SetOccupancy(40, 4)

	require.Equal(t, 100.0, testutil.ToFloat64(CacheSizeLimit.WithLabelValues("metrics-test-gauges")))
	require.Equal(t, 40.0, testutil.ToFloat64(CacheSize.WithLabelValues("metrics-test-gauges")))
	require.Equal(t, 4.0, testutil.ToFloat64(CacheItems.WithLabelValues("metrics-test-gauges")))
}

func TestRecorder_SweepDone(t *testing.T) {
	r := For("metrics-test-sweep")
	t.Cleanup(r.Forget)

	r.SweepDone(time.Millisecond, nil)
	r.SweepDone(time.Millisecond, errors.New("boom"))
	r.SweepDone(time.Millisecond, nil)

	require.Equal(t, 2.0, testutil.ToFloat64(SweepRuns.WithLabelValues("metrics-test-sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(SweepRuns.WithLabelValues("metrics-test-sweep", "failed")))
}

func TestRecorder_Forget(t *testing.T) {
	r := For("metrics-test-forget")
	r.SetOccupancy(10, 1)
	r.Evicted(ReasonOldest, 1)

	before := testutil.CollectAndCount(CacheEvictions)
	r.Forget()
	after := testutil.CollectAndCount(CacheEvictions)

	require.Less(t, after, before)
	require.Equal(t, 0, testutil.CollectAndCount(CacheSize, "safecache_size"), "only the forgotten cache wrote a size series")
}

func TestRecorder_SharedName(t *testing.T) {
	a := For("metrics-test-dup")
	b := For("metrics-test-dup")
	t.Cleanup(a.Forget)
	t.Cleanup(b.Forget)

	a.SetLimit(100)
	b.SetLimit(50)
	a.SetOccupancy(10, 1)
	b.SetOccupancy(99, 9)

	size := CacheSize.WithLabelValues("metrics-test-dup")
	require.Equal(t, 109.0, testutil.ToFloat64(size), "gauges sum every recorder's contribution")
	require.Equal(t, 150.0, testutil.ToFloat64(CacheSizeLimit.WithLabelValues("metrics-test-dup")))

	a.Forget()
	a.Forget()
	a.SetOccupancy(500, 50) // ignored once forgotten

	b.SetOccupancy(42, 4)
	require.Equal(t, 42.0, testutil.ToFloat64(CacheSize.WithLabelValues("metrics-test-dup")))
	require.Equal(t, 4.0, testutil.ToFloat64(CacheItems.WithLabelValues("metrics-test-dup")))
	require.Equal(t, 50.0, testutil.ToFloat64(CacheSizeLimit.WithLabelValues("metrics-test-dup")))
	require.Same(t, size, CacheSize.WithLabelValues("metrics-test-dup"), "the survivor's series is still registered")

	b.Forget()
	require.Equal(t, 0, testutil.CollectAndCount(CacheItems, "safecache_items"))
}
