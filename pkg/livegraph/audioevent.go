package livegraph

import "sync/atomic"

// EventKind identifies a control event delivered to the audio domain.
type EventKind uint8

// Event kinds.
const (
	EventNoteOn EventKind = iota + 1
	EventNoteOff
	EventTrigger
	EventParamChange
	EventReset
)

// Event is one control message from the control/visual side to the
// audio domain: note on/off, a trigger pulse, a parameter change, or a
// reset. Events are small value types so the ring hand-off never
// allocates.
type Event struct {
	Kind EventKind
	// Target names the receiving operator; empty broadcasts to every
	// handler in the audio order.
	Target string
	// Key is the parameter name for EventParamChange.
	Key string
	// Value carries the note number, trigger value, or parameter value.
	Value float64
	// Velocity carries note velocity in [0, 1].
	Velocity float64
}

// EventRing is a fixed-capacity single-producer/single-consumer ring
// buffer carrying Events from the control thread to the audio thread.
// Push runs on the control side and drops (with a count) when the ring
// is full; Pop runs on the audio callback and never blocks or
// allocates. Exactly one goroutine may push and one may pop.
type EventRing struct {
	buf  []Event
	mask uint64

	head    atomic.Uint64 // consumer position
	tail    atomic.Uint64 // producer position
	dropped atomic.Uint64
}

// defaultEventRingSize is the ring capacity when none is given.
const defaultEventRingSize = 1024

// NewEventRing creates a ring with at least the requested capacity,
// rounded up to a power of two. Capacities below 2 use the default.
func NewEventRing(capacity int) *EventRing {
	if capacity < 2 {
		capacity = defaultEventRingSize
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &EventRing{
		buf:  make([]Event, size),
		mask: uint64(size - 1),
	}
}

// Push enqueues an event from the control thread. Returns false and
// counts a drop when the ring is full; live control traffic is lossy,
// never a stall on the producer.
func (r *EventRing) Push(ev Event) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[tail&r.mask] = ev
	r.tail.Store(tail + 1) // publish after the slot is written
	return true
}

// Pop dequeues the next event on the audio thread. Returns false when
// the ring is empty.
func (r *EventRing) Pop() (Event, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return Event{}, false
	}
	ev := r.buf[head&r.mask]
	r.head.Store(head + 1)
	return ev, true
}

// Len returns the number of queued events. Approximate under concurrent
// use; exact when called from either endpoint alone.
func (r *EventRing) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the ring capacity.
func (r *EventRing) Cap() int {
	return len(r.buf)
}

// Dropped returns how many events were discarded because the ring was
// full.
func (r *EventRing) Dropped() uint64 {
	return r.dropped.Load()
}
