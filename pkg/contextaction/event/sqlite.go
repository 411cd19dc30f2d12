package event

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteArchive persists archived events to SQLite.
type SQLiteArchive struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteArchive opens or creates an archive database.
// The path is a file path (e.g. "./events.db") or ":memory:".
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases intact across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			data BLOB,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_name
		ON events(name, seq)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

// Append implements Archive.
func (s *SQLiteArchive) Append(ctx context.Context, evt Event) error {
	data, err := encodeData(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrArchiveClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (name, data, timestamp) VALUES (?, ?, ?)
	`, evt.Name, data, evt.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List implements Archive.
func (s *SQLiteArchive) List(ctx context.Context, name string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrArchiveClosed
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, data, timestamp
		FROM events
		WHERE ? = '' OR name = ?
		ORDER BY seq
		LIMIT ?
	`, name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var timestamp string
		if err := rows.Scan(&r.Seq, &r.Name, &r.Data, &timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// Count implements Archive.
func (s *SQLiteArchive) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrArchiveClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close implements Archive.
func (s *SQLiteArchive) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
