package errorreporting

import (
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"

	"safecache/internal/cache"
)

const testDSN = "https://examplePublicKey@o0.ingest.sentry.io/0"

// captureEvents binds a client to the current hub that runs beforeSend and
// records the result instead of sending it.
func captureEvents(t *testing.T) func() []*sentry.Event {
	t.Helper()

	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	opts := clientOptions(Options{DSN: testDSN, Environment: "test"})
	opts.BeforeSend = func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
		event = beforeSend(event, hint)
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
		return nil
	}

	client, err := sentry.NewClient(opts)
	require.NoError(t, err)

	hub := sentry.CurrentHub()
	prev := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(prev) })

	return func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}
}

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		removed  string
	}{
		{name: "email address", input: "panic: key user:jane@example.com", contains: "panic: key user:", removed: "jane@example.com"},
		{name: "bearer token", input: "auth bearer abc123def456ghi789jkl", contains: "[REDACTED]", removed: "abc123def456ghi789jkl"},
		{name: "API key", input: "api_key: sk_test_1234567890abcdef", contains: "[REDACTED]", removed: "sk_test_1234567890abcdef"},
		{name: "IP address", input: "client 192.168.1.1", contains: "client [REDACTED]", removed: "192.168.1.1"},
		{name: "no PII", input: "sweep failed", contains: "sweep failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scrubPII(tt.input)
			require.Contains(t, result, tt.contains)
			if tt.removed != "" {
				require.NotContains(t, result, tt.removed)
			}
		})
	}
}

func TestInit(t *testing.T) {
	require.NoError(t, Init(Options{}), "an empty DSN disables reporting")
	require.Error(t, Init(Options{DSN: "not-a-dsn"}))
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(Options{DSN: testDSN, Environment: "staging", SampleRate: 0.25})
	require.Equal(t, testDSN, opts.Dsn)
	require.Equal(t, "staging", opts.Environment)
	require.Equal(t, "dev", opts.Release)
	require.Equal(t, 0.25, opts.SampleRate)
	require.NotNil(t, opts.BeforeSend)
}

func TestBeforeSend(t *testing.T) {
	event := &sentry.Event{
		Message:   "failure for test@example.com",
		Exception: []sentry.Exception{{Value: "panic: bearer abc123def456ghi789jkl"}},
		Extra:     map[string]any{"error": "key admin@example.com", "count": 3},
	}

	result := beforeSend(event, nil)
	require.NotContains(t, result.Message, "test@example.com")
	require.NotContains(t, result.Exception[0].Value, "abc123def456ghi789jkl")
	require.NotContains(t, result.Extra["error"], "admin@example.com")
	require.Equal(t, 3, result.Extra["count"])
}

func TestCaptureCacheError(t *testing.T) {
	events := captureEvents(t)

	CaptureCacheError(nil)
	CaptureCacheError(&cache.OperationError{
		Cache: "sessions",
		Op:    cache.OpGet,
		Err:   errors.New("panic: key bob@example.com"),
	})

	got := events()
	require.Len(t, got, 1)
	require.Equal(t, "sessions", got[0].Tags["cache"])
	require.Equal(t, "get", got[0].Tags["op"])
	require.Equal(t, "cache", got[0].Tags["component"])
	require.NotContains(t, got[0].Extra["error"], "bob@example.com")
}

func TestSweepErrorHandler(t *testing.T) {
	events := captureEvents(t)

	report := SweepErrorHandler("users")
	report(errors.New("plain failure"))
	report(&cache.OperationError{Cache: "users", Op: cache.OpBackgroundSweep, Err: errors.New("panic: x")})

	got := events()
	require.Len(t, got, 2)
	for _, ev := range got {
		require.Equal(t, "users", ev.Tags["cache"])
		require.Equal(t, "background_sweep", ev.Tags["op"])
	}
	require.True(t, Enabled())
}
