package cache

import (
	"container/list"
	"fmt"
	"reflect"
	"time"
)

// item is one cached value.
//
// Every value write refreshes the item; freshness is never extended by reads.
type item[K comparable, V any] struct {
	key       K
	value     V
	size      int64
	ttl       time.Duration
	refreshed time.Time

	elem *list.Element // position in the owning cache's refresh order
}

func newItem[K comparable, V any](key K, value V, ttl time.Duration, size int64, now time.Time) (*item[K, V], error) {
	if isNil(key) {
		return nil, fmt.Errorf("%w: key is nil", ErrInvalidArgument)
	}
	if isNil(value) {
		return nil, fmt.Errorf("%w: value is nil", ErrInvalidArgument)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: item size %d must be at least 1", ErrOutOfRange, size)
	}

	it := &item[K, V]{
		key:  key,
		ttl:  ttl,
		size: size,
	}
	it.setValue(value, now)
	return it, nil
}

// Outdated reports whether the item's TTL has elapsed at now.
// An item is outdated from the instant its age reaches the TTL, so a TTL of
// zero or less is outdated immediately.
func (i *item[K, V]) Outdated(now time.Time) bool {
	return now.Sub(i.refreshed) >= i.ttl
}

// setValue keeps now as given: converting it would strip the monotonic
// reading and make expiry follow wall-clock steps.
func (i *item[K, V]) setValue(value V, now time.Time) {
	i.value = value
	i.refreshed = now
}

// isNil reports whether v is absent: a nil interface or a nil value of a
// nilable kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
