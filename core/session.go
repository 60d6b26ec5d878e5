package core

import (
	"time"

	"github.com/google/uuid"
)

// SessionEvent is one persisted entry in a session's append-only event log.
// Events are ordered by insertion and belong to exactly one session.
type SessionEvent struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewSessionEvent creates a session event stamped with the current UTC time.
func NewSessionEvent(eventType string, data map[string]any) SessionEvent {
	return SessionEvent{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

// Session is a durable conversation container: a mutable JSON state blob plus
// an ordered event history, owned exclusively by the session service. The
// state blob is only ever mutated through the store's atomic
// read-modify-write primitive, never by concurrent read-then-write.
type Session struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	AppName string         `json:"app_name"`
	State   map[string]any `json:"state"`
	Events  []SessionEvent `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:      s.ID,
		UserID:  s.UserID,
		AppName: s.AppName,
		State:   make(map[string]any, len(s.State)),
		Events:  make([]SessionEvent, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionInfo is the lightweight listing projection used by the dashboard and
// the session service's List operation.
type SessionInfo struct {
	ID         string    `json:"id"`
	Created    time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// SessionStore persists sessions, their state blobs and event logs.
type SessionStore interface {
	// Create stores a new session. An empty id means a fresh opaque id is
	// generated.
	Create(appName, userID, id string, state map[string]any) (*Session, error)
	// Get returns a session with its full event log, or ErrNotFound.
	Get(id string) (*Session, error)
	// List returns the user's sessions, most recently active first.
	List(userID string, limit int) ([]SessionInfo, error)
	// Delete removes a session and its events. Unknown ids are a no-op.
	Delete(id string) error
	// AppendEvent persists an event and bumps the session's last-update
	// timestamp in the same logical step.
	AppendEvent(sessionID string, event SessionEvent) error
	// ApplyStatePatch merges patch into the session state under the store's
	// atomic update boundary. Returns ErrNotFound for unknown sessions.
	ApplyStatePatch(sessionID string, patch map[string]any) error
}

// NewID generates a fresh opaque session identifier.
func NewID() string { return uuid.NewString() }
