package cache

import "sync"

// SizeLimitEvent describes one size-limit-reached notification.
type SizeLimitEvent struct {
	Cache string

	// CurrentSize is the aggregate size when the check ran.
	CurrentSize int64
	// ProjectedSize is the size the cache would reach; equal to CurrentSize for sweeps.
	ProjectedSize int64
	SizeLimit     int64

	// Source is OpAddOrUpdate or OpBackgroundSweep.
	Source Operation
}

type observer struct {
	id uint64
	fn func(SizeLimitEvent)
}

// observers is the subscriber list of one cache.
type observers struct {
	mu     sync.Mutex
	nextID uint64
	list   []observer
}

func (o *observers) add(fn func(SizeLimitEvent)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.list = append(o.list, observer{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, ob := range o.list {
		if ob.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

func (o *observers) reset() {
	o.mu.Lock()
	o.list = nil
	o.mu.Unlock()
}

// snapshot copies the subscribers so they can be called without holding o.mu.
func (o *observers) snapshot() []func(SizeLimitEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.list) == 0 {
		return nil
	}
	out := make([]func(SizeLimitEvent), len(o.list))
	for i, ob := range o.list {
		out[i] = ob.fn
	}
	return out
}
