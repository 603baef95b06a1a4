package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore creates a new SQLite store and applies migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{sqlStore{db: db, placeholder: func(int) string { return "?" }}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL,
		project_source TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		bazel_commit TEXT NOT NULL,
		project_commit TEXT NOT NULL,
		run INTEGER NOT NULL,
		wall REAL NOT NULL,
		cpu REAL NOT NULL,
		system REAL NOT NULL,
		memory INTEGER,
		exit_status INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		command TEXT NOT NULL,
		options TEXT NOT NULL,
		targets TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_uid ON sessions(uid);
	`
	_, err := s.db.Exec(query)
	return err
}
