package core

import "time"

// EventKind enumerates the typed events carried by the in-process bus.
// The set is closed: collaborators (agent layer, dashboard) switch on these
// values, so new kinds are additive and existing ones never change meaning.
type EventKind string

const (
	// TaskStarted fires when a tracked task begins.
	TaskStarted EventKind = "task_started"
	// TaskCompleted fires when a task completion is logged, carrying the
	// estimated/actual ratio used for calibration learning.
	TaskCompleted EventKind = "task_completed"
	// FocusBlockStarted fires when an accountability session begins.
	FocusBlockStarted EventKind = "focus_block_started"
	// FocusBlockEnded fires when an accountability session completes or is
	// abandoned; the payload carries a "status" field with either value.
	FocusBlockEnded EventKind = "focus_block_ended"
	// CheckinDue fires on every scheduled accountability check-in and on
	// each hyperfocus guardrail warning.
	CheckinDue EventKind = "checkin_due"
	// EnergyUpdated fires when the recorded energy level changes.
	EnergyUpdated EventKind = "energy_updated"
	// PatternDetected fires when a subscriber spots a recurring behavior,
	// e.g. estimates that consistently run long for a category.
	PatternDetected EventKind = "pattern_detected"
	// SessionSummarized fires when a conversation session is wrapped up.
	SessionSummarized EventKind = "session_summarized"
)

// BusEvent is the transient unit published on the Bus. It is retained only in
// the bus's bounded recent-events buffer; durable history belongs to the
// session event log instead.
type BusEvent struct {
	Kind      EventKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler consumes a published BusEvent. A non-nil error is logged at the bus
// boundary and never aborts sibling handlers or the publisher.
type Handler func(event BusEvent) error

// Bus decouples event producers (machines, completion logging) from
// consumers (adaptive subscribers, UI notifiers). Publish is synchronous:
// every registered handler has run before Publish returns.
type Bus interface {
	// Subscribe registers a handler for a kind. Registering the same
	// handler twice for the same kind is a no-op.
	Subscribe(kind EventKind, handler Handler)
	// Unsubscribe removes a handler; removing an unknown handler is a no-op.
	Unsubscribe(kind EventKind, handler Handler)
	// UnsubscribeAll clears every handler for a kind.
	UnsubscribeAll(kind EventKind)
	// Publish records the event and invokes handlers in registration order.
	Publish(kind EventKind, payload map[string]any)
	// RecentEvents returns up to count most recent events, oldest first.
	RecentEvents(count int) []BusEvent
}
