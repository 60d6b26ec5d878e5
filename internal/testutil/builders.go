package testutil

import (
	"time"

	"github.com/pacekeeper/pacekeeper/core"
)

// SessionBuilder provides a fluent helper for constructing sessions in tests.
// Example:
//
//	sess := NewSessionBuilder().ID("s1").User("u1").State("energy_level", 7).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type SessionBuilder struct {
	id      string
	userID  string
	appName string
	state   map[string]any
	events  []core.SessionEvent
}

// NewSessionBuilder creates a builder with default app name "pacekeeper" and
// user "test-user".
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		userID:  "test-user",
		appName: "pacekeeper",
		state:   map[string]any{},
	}
}

// ID overrides the auto-generated session ID (chainable).
func (b *SessionBuilder) ID(id string) *SessionBuilder { b.id = id; return b }

// User sets the session owner (chainable).
func (b *SessionBuilder) User(userID string) *SessionBuilder { b.userID = userID; return b }

// App sets the owning application name (chainable).
func (b *SessionBuilder) App(name string) *SessionBuilder { b.appName = name; return b }

// State sets one state key (chainable).
func (b *SessionBuilder) State(key string, value any) *SessionBuilder {
	b.state[key] = value
	return b
}

// Event appends a session event (chainable).
func (b *SessionBuilder) Event(eventType string, data map[string]any) *SessionBuilder {
	b.events = append(b.events, core.NewSessionEvent(eventType, data))
	return b
}

// Build assembles the session.
func (b *SessionBuilder) Build() *core.Session {
	id := b.id
	if id == "" {
		id = core.NewID()
	}
	now := time.Now().UTC()
	return &core.Session{
		ID:      id,
		UserID:  b.userID,
		AppName: b.appName,
		State:   b.state,
		Events:  b.events,
		Created: now,
		Updated: now,
	}
}

// SeedHistory writes n completion records for category, each with the given
// estimated and actual minutes, into any HistoryStore.
func SeedHistory(store core.HistoryStore, category string, n, estimated, actual int) error {
	for i := 0; i < n; i++ {
		if err := store.LogTaskCompletion(category, estimated, actual, 6, false); err != nil {
			return err
		}
	}
	return nil
}
