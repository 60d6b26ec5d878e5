package bus

import (
	"sync"
	"time"
	"unsafe"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
)

// DefaultRingSize bounds the recent-event buffer when no override is given.
const DefaultRingSize = 100

// Bus is an in-process synchronous publish/subscribe hub. Producers (timer
// machines, completion logging) and consumers (adaptive subscribers, UI
// notifiers) are decoupled without either knowing the other's identity.
//
// Guarantees:
//   - Handlers for a single publish run in registration order and have all
//     completed before Publish returns.
//   - A failing handler (error or panic) is logged and swallowed; sibling
//     handlers still run.
//   - Subscribing the same handler twice for a kind registers it once.
//   - Published events are retained in a bounded ring, oldest dropped first.
//
// No cross-publish ordering is guaranteed for concurrent publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[core.EventKind][]subscription
	ring        []core.BusEvent
	ringSize    int
	logger      logging.Logger
}

// subscription pairs a handler with its identity key so duplicate
// registrations and unsubscribes can be matched. Function values are not
// comparable in Go; the funcval address stands in. Copies of one func value
// share it, while each closure instance gets its own allocation, so two
// handlers built from the same function literal never collide.
type subscription struct {
	key uintptr
	fn  core.Handler
}

// Options configures a Bus.
type Options struct {
	// RingSize bounds the recent-event buffer. Values < 1 fall back to
	// DefaultRingSize.
	RingSize int
	// Logger receives handler failures and publish traces.
	Logger logging.Logger
}

// New constructs an event bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{RingSize: DefaultRingSize, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RingSize < 1 {
		opts.RingSize = DefaultRingSize
	}
	return &Bus{
		subscribers: make(map[core.EventKind][]subscription),
		ring:        make([]core.BusEvent, 0, opts.RingSize),
		ringSize:    opts.RingSize,
		logger:      opts.Logger,
	}
}

// Subscribe registers a handler for a kind. Subscribing the same handler
// twice for the same kind is a no-op, not a duplicate registration.
func (b *Bus) Subscribe(kind core.EventKind, handler core.Handler) {
	if handler == nil {
		return
	}
	key := handlerKey(handler)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers[kind] {
		if sub.key == key {
			return
		}
	}
	b.subscribers[kind] = append(b.subscribers[kind], subscription{key: key, fn: handler})
}

// Unsubscribe removes a handler for a kind. Removing a handler that is not
// registered is a no-op.
func (b *Bus) Unsubscribe(kind core.EventKind, handler core.Handler) {
	if handler == nil {
		return
	}
	key := handlerKey(handler)
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[kind]
	for i, sub := range subs {
		if sub.key == key {
			b.subscribers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll clears every handler for a kind.
func (b *Bus) UnsubscribeAll(kind core.EventKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, kind)
}

// Publish appends the event to the bounded recent-event log, then invokes
// every currently registered handler for the kind in registration order,
// synchronously awaiting each. Handler failures are isolated: an error or
// panic is logged at the bus boundary and does not prevent subsequent
// handlers from running.
func (b *Bus) Publish(kind core.EventKind, payload map[string]any) {
	event := core.BusEvent{Kind: kind, Payload: payload, Timestamp: time.Now().UTC()}

	b.mu.Lock()
	b.ring = append(b.ring, event)
	if over := len(b.ring) - b.ringSize; over > 0 {
		b.ring = append(b.ring[:0:0], b.ring[over:]...)
	}
	// Snapshot so handlers may (un)subscribe during dispatch.
	subs := append([]subscription(nil), b.subscribers[kind]...)
	b.mu.Unlock()

	b.logger.Debug("Publishing event", "kind", string(kind), "handlers", len(subs))
	for _, sub := range subs {
		b.dispatch(sub, event)
	}
}

// dispatch runs one handler, converting panics into logged failures so a
// misbehaving subscriber never aborts its siblings or the publisher.
func (b *Bus) dispatch(sub subscription, event core.BusEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", "kind", string(event.Kind), "panic", r)
		}
	}()
	if err := sub.fn(event); err != nil {
		b.logger.Error("Event handler failed", "kind", string(event.Kind), "error", err)
	}
}

// RecentEvents returns up to count most recent events, oldest first. A count
// larger than the retained buffer returns everything retained.
func (b *Bus) RecentEvents(count int) []core.BusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if count <= 0 {
		return []core.BusEvent{}
	}
	start := len(b.ring) - count
	if start < 0 {
		start = 0
	}
	out := make([]core.BusEvent, len(b.ring)-start)
	copy(out, b.ring[start:])
	return out
}

// handlerKey returns the address of the funcval backing h. A func value is
// represented as a pointer to that struct, so reading the first word of h
// yields an identity that distinguishes closure instances. The code pointer
// from reflect.Value.Pointer would not: every closure created from the same
// function literal shares it.
func handlerKey(h core.Handler) uintptr {
	return *(*uintptr)(unsafe.Pointer(&h))
}

// Interface compliance (compile-time assertion)
var _ core.Bus = (*Bus)(nil)
