// Package errorreporting forwards unexpected cache failures to Sentry.
package errorreporting

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"safecache/internal/cache"
)

// PII patterns to scrub from error messages. Cache keys end up in panic
// messages, and keys are often user identifiers.
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9_-]{16,}`),
	// IP addresses
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// Options configures the Sentry client.
type Options struct {
	DSN         string
	Environment string
	Release     string
	// SampleRate is the share of error events sent, 0..1. Zero means all.
	SampleRate float64
}

// Init initializes Sentry error reporting. An empty DSN leaves reporting
// disabled and is not an error.
func Init(opts Options) error {
	if opts.DSN == "" {
		return nil
	}
	if err := ValidateDSN(opts.DSN); err != nil {
		return err
	}
	if err := sentry.Init(clientOptions(opts)); err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

func clientOptions(opts Options) sentry.ClientOptions {
	release := opts.Release
	if release == "" {
		release = "dev"
	}
	return sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          release,
		SampleRate:       opts.SampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	}
}

// Enabled reports whether a Sentry client is bound to the current hub.
func Enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// ValidateDSN checks if the provided DSN is valid
func ValidateDSN(dsn string) error {
	if !strings.HasPrefix(dsn, "https://") && !strings.HasPrefix(dsn, "http://") {
		return fmt.Errorf("invalid Sentry DSN format")
	}
	return nil
}

// beforeSend scrubs PII before an event leaves the process.
func beforeSend(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
	}
	if event.Message != "" {
		event.Message = scrubPII(event.Message)
	}
	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}
	return event
}

func scrubPII(text string) string {
	result := text
	for _, pattern := range piiPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// CaptureErrorWithContext captures an error with additional context
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]any) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		// Extras are scrubbed by beforeSend.
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CaptureCacheError reports err tagged with the cache name and the operation
// that failed, when err carries them.
func CaptureCacheError(err error) {
	if err == nil {
		return
	}

	tags := map[string]string{"component": "cache"}
	var opErr *cache.OperationError
	if errors.As(err, &opErr) {
		tags["cache"] = opErr.Cache
		tags["op"] = opErr.Op.String()
	}
	CaptureErrorWithContext(err, tags, map[string]any{"error": err.Error()})
}

// SweepErrorHandler returns a cache.Config.OnSweepError hook that reports
// background sweep failures of the named cache.
func SweepErrorHandler(name string) func(error) {
	return func(err error) {
		var opErr *cache.OperationError
		if !errors.As(err, &opErr) {
			err = &cache.OperationError{Cache: name, Op: cache.OpBackgroundSweep, Err: err}
		}
		CaptureCacheError(err)
	}
}

// Flush waits for all events to be sent to Sentry
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
