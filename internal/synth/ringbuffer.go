package synth

import "sync/atomic"

// Ring is a lock-free single-producer single-consumer ring buffer
// (spec.md §5, §9 design note "off-thread message passing: use
// lock-free SPSC ring buffers"). It is used in both directions between
// the control thread and the audio thread: control->audio MIDI/
// parameter messages, and audio->control event publication. The
// capacity is always a power of two (NewRing rounds up).
type Ring[T any] struct {
	buf     []T
	mask    uint64
	head    atomic.Uint64 // next write index, producer-owned
	tail    atomic.Uint64 // next read index, consumer-owned
	dropped atomic.Uint64
}

// NewRing creates a ring buffer with the given capacity, rounded up to
// the next power of two.
func NewRing[T any](capacity int) *Ring[T] {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// TryPush attempts to enqueue an item without blocking. It returns
// false (and increments the drop counter) if the ring is full — the
// producer never waits (spec.md §5: "the audio thread never waits; if
// the outbound queue is full the event is dropped").
func (r *Ring[T]) TryPush(v T) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
	return true
}

// TryPop attempts to dequeue one item without blocking. Returns the
// zero value and false if the ring is empty.
func (r *Ring[T]) TryPop() (T, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		var zero T
		return zero, false
	}
	v := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return v, true
}

// DrainInto pops every available item into fn, in FIFO order, stopping
// when the ring is empty. Used at the top of each audio block to apply
// all queued control-thread messages at once (spec.md §5: "a controller
// change takes effect on the next block").
func (r *Ring[T]) DrainInto(fn func(T)) {
	for {
		v, ok := r.TryPop()
		if !ok {
			return
		}
		fn(v)
	}
}

// Dropped returns the monotonically increasing count of items lost to a
// full ring (spec.md §5's drop counter).
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}
