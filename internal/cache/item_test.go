package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	it, err := newItem("k", []byte("v"), time.Minute, 3, now)
	require.NoError(t, err)
	require.Equal(t, "k", it.key)
	require.Equal(t, []byte("v"), it.value)
	require.Equal(t, int64(3), it.size)
	require.Equal(t, time.Minute, it.ttl)
	require.Equal(t, now, it.refreshed)
}

func TestItem_KeepsMonotonicReading(t *testing.T) {
	now := time.Now()
	require.Contains(t, now.String(), "m=")

	it, err := newItem("k", 1, time.Minute, 1, now)
	require.NoError(t, err)
	require.Contains(t, it.refreshed.String(), "m=", "refresh time must keep the monotonic clock")

	later := now.Add(30 * time.Second)
	it.setValue(2, later)
	require.Contains(t, it.refreshed.String(), "m=")

	require.False(t, it.Outdated(later.Add(59*time.Second)))
	require.True(t, it.Outdated(later.Add(time.Minute)))
}

func TestNewItem_Rejects(t *testing.T) {
	now := time.Now()

	_, err := newItem[*int, string](nil, "v", time.Minute, 1, now)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = newItem[string, map[string]int]("k", nil, time.Minute, 1, now)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = newItem[string, any]("k", nil, time.Minute, 1, now)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = newItem("k", "v", time.Minute, 0, now)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestItem_Outdated(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		ttl  time.Duration
		age  time.Duration
		want bool
	}{
		"zero ttl, zero age": {ttl: 0, age: 0, want: true},
		"negative ttl":       {ttl: -time.Second, age: 0, want: true},
		"before expiry":      {ttl: time.Minute, age: time.Minute - time.Nanosecond, want: false},
		"exactly at ttl":     {ttl: time.Minute, age: time.Minute, want: true},
		"after expiry":       {ttl: time.Minute, age: 2 * time.Minute, want: true},
		"clock moved back":   {ttl: time.Minute, age: -time.Hour, want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			it, err := newItem("k", 1, tc.ttl, 1, start)
			require.NoError(t, err)
			require.Equal(t, tc.want, it.Outdated(start.Add(tc.age)))
		})
	}
}

func TestItem_SetValueRefreshes(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	it, err := newItem("k", 1, time.Minute, 1, start)
	require.NoError(t, err)

	later := start.Add(50 * time.Second)
	it.setValue(2, later)

	require.Equal(t, 2, it.value)
	require.Equal(t, later, it.refreshed)
	require.False(t, it.Outdated(start.Add(100*time.Second)))
}

func TestIsNil(t *testing.T) {
	var nilPtr *int
	var nilMap map[string]int
	var nilFunc func()
	var nilErr error

	require.True(t, isNil(nil))
	require.True(t, isNil(nilPtr))
	require.True(t, isNil(nilMap))
	require.True(t, isNil(nilFunc))
	require.True(t, isNil(nilErr))
	require.True(t, isNil([]byte(nil)))

	require.False(t, isNil(0))
	require.False(t, isNil(""))
	require.False(t, isNil(struct{}{}))
	require.False(t, isNil([]byte{}))
	require.False(t, isNil(new(int)))
}
