package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
	"github.com/pacekeeper/pacekeeper/store"
)

// Service is the SQLite-backed core.SessionStore. Reads go straight to the
// connection pool; every mutation runs under the store's write discipline.
type Service struct {
	store  *store.Store
	logger logging.Logger
}

// Options configure a Service.
type Options struct {
	Logger logging.Logger
}

// NewService wires a session service over an open store.
func NewService(st *store.Store, optFns ...func(o *Options)) *Service {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{store: st, logger: opts.Logger}
}

// Create stores a new session row. An empty id means a fresh opaque id is
// generated; a nil state starts the session with an empty blob.
func (s *Service) Create(appName, userID, id string, state map[string]any) (*core.Session, error) {
	if id == "" {
		id = core.NewID()
	}
	if state == nil {
		state = map[string]any{}
	}

	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}

	stamp := store.Timestamp()
	_, err = s.store.ExecWrite(
		`INSERT INTO sessions (id, user_id, app_name, created_at, last_updated_at, state_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, appName, stamp, stamp, string(blob),
	)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}

	s.logger.Info("Session created", "session_id", id, "user_id", userID, "app_name", appName)

	sess := &core.Session{
		ID:      id,
		UserID:  userID,
		AppName: appName,
		State:   state,
		Created: store.ParseTimestamp(stamp),
		Updated: store.ParseTimestamp(stamp),
	}
	return sess.Clone(), nil
}

// Get loads a session together with its full event log, oldest event first.
func (s *Service) Get(id string) (*core.Session, error) {
	var (
		userID, appName, created, updated, stateJSON string
	)
	err := s.store.DB().QueryRow(
		`SELECT user_id, app_name, created_at, last_updated_at, state_json FROM sessions WHERE id = ?`, id,
	).Scan(&userID, &appName, &created, &updated, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	state := map[string]any{}
	if stateJSON != "" {
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			s.logger.Warn("Corrupt session state, starting empty", "session_id", id, "error", err)
			state = map[string]any{}
		}
	}

	events, err := s.loadEvents(id)
	if err != nil {
		return nil, err
	}

	return &core.Session{
		ID:      id,
		UserID:  userID,
		AppName: appName,
		State:   state,
		Events:  events,
		Created: store.ParseTimestamp(created),
		Updated: store.ParseTimestamp(updated),
	}, nil
}

func (s *Service) loadEvents(sessionID string) ([]core.SessionEvent, error) {
	rows, err := s.store.DB().Query(
		`SELECT id, type, data_json, timestamp FROM events WHERE session_id = ? ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []core.SessionEvent
	for rows.Next() {
		var (
			evt      core.SessionEvent
			dataJSON string
			ts       string
		)
		if err := rows.Scan(&evt.ID, &evt.Type, &dataJSON, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if dataJSON != "" {
			if err := json.Unmarshal([]byte(dataJSON), &evt.Data); err != nil {
				s.logger.Warn("Corrupt event data, dropping payload", "session_id", sessionID, "event_id", evt.ID, "error", err)
				evt.Data = nil
			}
		}
		evt.Timestamp = store.ParseTimestamp(ts)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// List returns the user's sessions ordered by most recent activity. A
// non-positive limit returns everything.
func (s *Service) List(userID string, limit int) ([]core.SessionInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.DB().Query(
		`SELECT id, created_at, last_updated_at FROM sessions
		 WHERE user_id = ? ORDER BY last_updated_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	var infos []core.SessionInfo
	for rows.Next() {
		var info core.SessionInfo
		var created, updated string
		if err := rows.Scan(&info.ID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		info.Created = store.ParseTimestamp(created)
		info.LastActive = store.ParseTimestamp(updated)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a session and its events in one transaction. Deleting an
// unknown id succeeds without effect.
func (s *Service) Delete(id string) error {
	err := s.store.WriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM events WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.logger.Info("Session deleted", "session_id", id)
	return nil
}

// AppendEvent persists an event and bumps the session's last-update stamp in
// the same transaction, so the log and the listing projection never diverge.
func (s *Service) AppendEvent(sessionID string, event core.SessionEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	stamp := store.Timestamp()
	ts := stamp
	if !event.Timestamp.IsZero() {
		ts = event.Timestamp.UTC().Format(store.TimeFormat)
	}

	return s.store.WriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE sessions SET last_updated_at = ? WHERE id = ?`, stamp, sessionID)
		if err != nil {
			return fmt.Errorf("touch session %s: %w", sessionID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
		}
		if _, err := tx.Exec(
			`INSERT INTO events (session_id, type, data_json, timestamp) VALUES (?, ?, ?, ?)`,
			sessionID, event.Type, string(dataJSON), ts,
		); err != nil {
			return fmt.Errorf("append event to %s: %w", sessionID, err)
		}
		return nil
	})
}

// ApplyStatePatch merges patch into the session's state blob under the
// store's atomic update boundary. Keys in patch overwrite existing keys;
// everything else is preserved.
func (s *Service) ApplyStatePatch(sessionID string, patch map[string]any) error {
	err := s.store.AtomicUpdate(
		`SELECT state_json FROM sessions WHERE id = ?`, []any{sessionID},
		`UPDATE sessions SET state_json = ?, last_updated_at = ? WHERE id = ?`,
		func(current string) ([]any, error) {
			state := map[string]any{}
			if current != "" {
				if err := json.Unmarshal([]byte(current), &state); err != nil {
					s.logger.Warn("Corrupt session state, rebuilding from patch", "session_id", sessionID, "error", err)
					state = map[string]any{}
				}
			}
			for k, v := range patch {
				state[k] = v
			}
			blob, err := json.Marshal(state)
			if err != nil {
				return nil, fmt.Errorf("encode patched state: %w", err)
			}
			return []any{string(blob), store.Timestamp(), sessionID}, nil
		},
	)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	return err
}

var _ core.SessionStore = (*Service)(nil)
