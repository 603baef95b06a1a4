package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	sqlStore
}

func postgresPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// NewPostgresStore creates a new Postgres store and applies migrations
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := newPostgresStore(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore{db: db, placeholder: postgresPlaceholder}}
}

func (s *PostgresStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			uid TEXT NOT NULL,
			project_source TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			bazel_commit TEXT NOT NULL,
			project_commit TEXT NOT NULL,
			run INTEGER NOT NULL,
			wall DOUBLE PRECISION NOT NULL,
			cpu DOUBLE PRECISION NOT NULL,
			system DOUBLE PRECISION NOT NULL,
			memory BIGINT,
			exit_status INTEGER NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			command TEXT NOT NULL,
			options TEXT NOT NULL,
			targets TEXT NOT NULL
		);`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	// Performance indexes
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_uid ON sessions(uid)`); err != nil {
		slog.Debug("failed to create sessions index", "error", err)
	}
	return nil
}
