// Package catalog indexes recorded sessions in a SQLite database so
// operators can list past runs and their outcomes.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Status values stored for a session.
const (
	StatusRecording = "recording"
	StatusFinished  = "finished"
)

// Session is one recorder run.
type Session struct {
	ID            string
	Sensor        string
	Root          string
	Debug         bool
	Status        string
	StartedAt     time.Time
	EndedAt       time.Time
	FramesWritten uint64
	FramesDropped uint64
	WriteFailures uint64
	StopReason    string
}

// Summary is the outcome recorded when a run ends.
type Summary struct {
	FramesWritten uint64
	FramesDropped uint64
	WriteFailures uint64
	StopReason    string
}

// Store is the SQLite-backed session catalog.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the catalog database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a new session in the recording state.
func (s *Store) Begin(ctx context.Context, session Session) error {
	if session.ID == "" {
		return errors.New("catalog begin: session id required")
	}
	started := session.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, sensor, root, debug, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Sensor,
		session.Root,
		boolToInt(session.Debug),
		StatusRecording,
		started.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Finish marks a session finished with its outcome.
func (s *Store) Finish(ctx context.Context, id string, summary Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
            SET status = ?, ended_at = ?, frames_written = ?, frames_dropped = ?,
                write_failures = ?, stop_reason = ?
          WHERE id = ?`,
		StatusFinished,
		s.now().UTC().Format(time.RFC3339Nano),
		int64(summary.FramesWritten),
		int64(summary.FramesDropped),
		int64(summary.WriteFailures),
		nullableString(summary.StopReason),
		id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get fetches one session.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, selectSessions+` WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return session, err
}

// List returns up to limit sessions, newest first. A non-positive limit
// returns all sessions.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	query := selectSessions + ` ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

const selectSessions = `SELECT id, sensor, root, debug, status, started_at, ended_at,
       frames_written, frames_dropped, write_failures, stop_reason
  FROM sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		s                         Session
		debug                     int
		started                   string
		ended, reason             sql.NullString
		written, dropped, failure int64
	)
	if err := row.Scan(&s.ID, &s.Sensor, &s.Root, &debug, &s.Status, &started, &ended,
		&written, &dropped, &failure, &reason); err != nil {
		return Session{}, err
	}
	s.Debug = debug != 0
	s.FramesWritten = uint64(written)
	s.FramesDropped = uint64(dropped)
	s.WriteFailures = uint64(failure)
	s.StopReason = reason.String
	var err error
	if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	if ended.Valid {
		if s.EndedAt, err = time.Parse(time.RFC3339Nano, ended.String); err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
	}
	return s, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
