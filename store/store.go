package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pacekeeper/pacekeeper/core"
	"github.com/pacekeeper/pacekeeper/logging"
)

// TimeFormat is the canonical encoding for every persisted timestamp, shared
// by every package that reads or writes store rows.
// RFC3339Nano keeps insertion ordering stable under rapid writes and stays
// parseable by SQLite's date functions.
const TimeFormat = time.RFC3339Nano

// Store is the single durable source of truth: key/value user state, the
// append-only task history, and the plan cache, all in one SQLite file.
//
// Concurrency discipline: reads run concurrently through the connection
// pool; every mutation funnels through one write mutex per Store instance.
// WAL journal mode lets readers proceed while a write is in flight, and the
// busy_timeout pragma makes momentarily-locked writes retry briefly instead
// of failing immediately. Connection pooling is a read optimization only,
// never a way to parallelize writes.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	path    string
	logger  logging.Logger
}

// Options configures a Store.
type Options struct {
	// Logger receives store traces and decode-failure warnings.
	Logger logging.Logger
	// BusyTimeout is how long SQLite retries a locked database before
	// surfacing an error. Defaults to 5s.
	BusyTimeout time.Duration
}

// Open initializes (creating if necessary) the SQLite database at path and
// prepares the schema. The parent directory is created when missing.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}, BusyTimeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Pragmas ride in the DSN so the driver applies them to every pooled
	// connection. busy_timeout, synchronous and foreign_keys are
	// per-connection settings; a bare db.Exec would reach only one.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on",
		path, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, path: path, logger: opts.Logger}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	opts.Logger.Info("Store opened", "path", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS user_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			app_name TEXT,
			created_at TEXT,
			last_updated_at TEXT,
			state_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT REFERENCES sessions(id),
			type TEXT,
			data_json TEXT,
			timestamp TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE TABLE IF NOT EXISTS task_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT,
			estimated_minutes INTEGER,
			actual_minutes INTEGER,
			energy_level INTEGER,
			in_peak_window BOOLEAN,
			timestamp TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_history_category ON task_history(category)`,
		`CREATE TABLE IF NOT EXISTS task_cache (
			hash TEXT PRIMARY KEY,
			task_description TEXT,
			plan_json TEXT,
			energy_level INTEGER,
			created_at TEXT
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.logger.Debug("Closing store", "path", s.path)
	return s.db.Close()
}

// DB exposes the underlying connection pool for read-only projections
// (dashboard queries). Mutations must go through ExecWrite, WriteTx or
// AtomicUpdate so write serialization is preserved.
func (s *Store) DB() *sql.DB { return s.db }

// ExecWrite runs a single mutating statement under the store's write mutex.
func (s *Store) ExecWrite(query string, args ...any) (sql.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Exec(query, args...)
}

// WriteTx runs fn inside a transaction under the write mutex. Either every
// statement in fn commits or none do.
func (s *Store) WriteTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

// AtomicUpdate executes readQuery (expected to select one text column),
// applies transform to the value to produce writeQuery's arguments, and
// executes writeQuery, all inside the store's single mutual-exclusion
// region. Two concurrent read-modify-write updates therefore serialize
// instead of losing each other's changes.
//
// When the read finds no row the update is a no-op and core.ErrNotFound is
// returned so callers can branch.
func (s *Store) AtomicUpdate(readQuery string, readArgs []any, writeQuery string, transform func(current string) ([]any, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var current string
	if err := s.db.QueryRow(readQuery, readArgs...).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		return fmt.Errorf("atomic update read: %w", err)
	}

	writeArgs, err := transform(current)
	if err != nil {
		return fmt.Errorf("atomic update transform: %w", err)
	}
	if _, err := s.db.Exec(writeQuery, writeArgs...); err != nil {
		return fmt.Errorf("atomic update write: %w", err)
	}
	return nil
}

// Timestamp returns the canonical encoded timestamp for writes.
func Timestamp() string { return time.Now().UTC().Format(TimeFormat) }

// ParseTimestamp decodes a stored timestamp, returning the zero time on failure.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
