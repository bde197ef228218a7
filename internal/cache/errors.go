package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports an empty name, a missing configuration, or a nil key or value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange reports a limit, size, fraction or interval outside its allowed range.
	ErrOutOfRange = errors.New("out of range")

	// ErrInvariantViolation reports a configuration whose fields contradict each other,
	// e.g. a default item size larger than the size limit.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrAlreadyExists reports a second Create under a registered name.
	ErrAlreadyExists = errors.New("cache already exists")

	// ErrTypeMismatch reports a Lookup whose key or value type differs from the registered cache.
	ErrTypeMismatch = errors.New("cache type mismatch")

	// ErrClosed is never returned to callers (operations on a closed cache are no-ops);
	// it is only used to label debug logs.
	ErrClosed = errors.New("cache is closed")
)

// Operation identifies the cache operation that was running when an unexpected failure happened.
type Operation int

const (
	OpAddOrUpdate Operation = iota + 1
	OpContainsKey
	OpGet
	OpRemove
	OpClear
	OpBackgroundSweep
)

func (o Operation) String() string {
	switch o {
	case OpAddOrUpdate:
		return "add_or_update"
	case OpContainsKey:
		return "contains_key"
	case OpGet:
		return "get"
	case OpRemove:
		return "remove"
	case OpClear:
		return "clear"
	case OpBackgroundSweep:
		return "background_sweep"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// OperationError wraps an unexpected failure with the operation that was in progress.
type OperationError struct {
	Cache string
	Op    Operation
	Err   error
}

func (e *OperationError) Error() string {
	if e.Cache == "" {
		return "cache " + e.Op.String() + ": " + e.Err.Error()
	}
	return "cache " + e.Cache + ": " + e.Op.String() + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// panicError turns a recovered panic value into an error, keeping the value
// itself reachable when it already was one.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
