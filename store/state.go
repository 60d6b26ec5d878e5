package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveState upserts a JSON-serializable value under key, recording the write
// timestamp. Last write wins; there is no versioning.
func (s *Store) SaveState(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}
	_, err = s.ExecWrite(
		"INSERT OR REPLACE INTO user_state (key, value, updated_at) VALUES (?, ?, ?)",
		key, string(encoded), Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("save state %q: %w", key, err)
	}
	return nil
}

// GetState returns the decoded value for key, or def when the key is absent.
// A stored value that fails to decode is treated as absent: the default is
// returned and a warning is logged, never an error.
func (s *Store) GetState(key string, def any) (any, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM user_state WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get state %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		s.logger.Warn("Stored state failed to decode, returning default", "key", key, "error", err)
		return def, nil
	}
	return value, nil
}
