// Package history keeps an append-only index of stage invocations in
// SQLite. It is observability only: manifests on disk remain the source
// of truth for stage ordering.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded stage invocation.
type Run struct {
	JobID      string
	Stage      string
	ArtifactID string
	Status     string
	Digest     string
	Error      string
	StartedAt  time.Time
	DurationMs int64
}

// Store records and queries stage runs.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one run. Job ids are unique, so re-inserting the same
// job is an error.
func (s *Store) Append(ctx context.Context, r Run) error {
	if r.JobID == "" {
		return fmt.Errorf("job id is empty")
	}
	if r.Stage == "" {
		return fmt.Errorf("stage is empty")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stage_runs(job_id, stage, artifact_id, status, digest, error, started_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, r.JobID, r.Stage, r.ArtifactID, r.Status, r.Digest, r.Error,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.DurationMs)
	if err != nil {
		return fmt.Errorf("insert stage run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, stage, artifact_id, status, digest, error, started_at, duration_ms
FROM stage_runs
ORDER BY job_id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.JobID, &r.Stage, &r.ArtifactID, &r.Status, &r.Digest, &r.Error, &started, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		r.StartedAt = ts
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage runs: %w", err)
	}
	return out, nil
}
