package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
)

// sqlStore holds the queries shared by the SQL backends. placeholder
// renders the n-th (1-based) bind parameter.
type sqlStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

func (s *sqlStore) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// SaveSession implements Store.
func (s *sqlStore) SaveSession(ctx context.Context, session *benchmark.Session) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.bind(`INSERT INTO sessions (id, uid, project_source, platform, started_at) VALUES (?, ?, ?, ?, ?)`),
		id, session.UID, session.ProjectSource, session.Platform, session.StartedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	insertRun := s.bind(`INSERT INTO runs (session_id, bazel_commit, project_commit, run, wall, cpu, system, memory, exit_status, started_at, command, options, targets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, u := range session.Units {
		for i, run := range u.Runs {
			var memory sql.NullInt64
			if run.Memory != nil {
				memory = sql.NullInt64{Int64: *run.Memory, Valid: true}
			}
			_, err := tx.ExecContext(ctx, insertRun,
				id, u.Tool.Identifier(), u.ProjectCommit, i+1,
				run.Wall, run.CPU, run.System, memory, run.ExitStatus, run.StartedAt.UTC(),
				u.Invocation.Command,
				strings.Join(u.Invocation.Options, " "),
				strings.Join(u.Invocation.Targets, " "))
			if err != nil {
				return "", fmt.Errorf("failed to insert run %d of %s: %w", i+1, u.Tool.Identifier(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// QueryRuns implements Store.
func (s *sqlStore) QueryRuns(ctx context.Context, uid string) ([]RunRow, error) {
	query := s.bind(`SELECT s.id, s.uid, s.project_source, s.platform,
		r.bazel_commit, r.project_commit, r.run, r.wall, r.cpu, r.system, r.memory, r.exit_status, r.started_at,
		r.command, r.options, r.targets
		FROM runs r JOIN sessions s ON s.id = r.session_id
		WHERE s.uid = ?
		ORDER BY r.id`)
	rows, err := s.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunRow
	for rows.Next() {
		var r RunRow
		var memory sql.NullInt64
		if err := rows.Scan(&r.SessionID, &r.UID, &r.ProjectSource, &r.Platform,
			&r.BazelCommit, &r.ProjectCommit, &r.Run, &r.Wall, &r.CPU, &r.System, &memory, &r.ExitStatus, &r.StartedAt,
			&r.Command, &r.Options, &r.Targets); err != nil {
			return nil, err
		}
		if memory.Valid {
			m := memory.Int64
			r.Memory = &m
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
