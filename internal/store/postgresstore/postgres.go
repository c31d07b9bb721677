// Package postgresstore implements the persistence gateway against
// PostgreSQL, for multi-host or long-lived scanforge deployments.
package postgresstore

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/store"
)

// Store is the Postgres-backed Gateway implementation.
type Store struct {
	db *sql.DB
}

// Open opens a connection pool against dsn (a postgres:// URL).
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres db")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close postgres db")
}

// EnsureSchema creates job_results if absent and lazily adds the status
// column to a pre-existing table that predates it.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS job_results (
			job_id UUID PRIMARY KEY,
			result_data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create job_results table")
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'job_results' AND column_name = 'status'
		)
	`).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "failed to inspect job_results columns")
	}
	if !exists {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE job_results ADD COLUMN status TEXT NOT NULL DEFAULT 'pending'`); err != nil {
			return errors.Wrap(err, "failed to add status column")
		}
	}
	return nil
}

// SaveJob upserts the job's full JSON snapshot plus its denormalized status.
func (s *Store) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := store.MarshalJob(job)
	if err != nil {
		slog.Warn("postgresstore: failed to marshal job", "job_id", job.ID, "error", err)
		return errors.Wrapf(err, "failed to marshal job %s", job.ID)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_results (job_id, result_data, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id) DO UPDATE SET
			result_data = EXCLUDED.result_data,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, job.ID, data, string(job.Status()), now, now)
	if err != nil {
		slog.Warn("postgresstore: failed to save job", "job_id", job.ID, "error", err)
		return errors.Wrapf(err, "failed to save job %s", job.ID)
	}
	return nil
}

// UpdateStatus updates only the denormalized status column.
func (s *Store) UpdateStatus(ctx context.Context, jobID uuid.UUID, status model.JobStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_results SET status = $1, updated_at = $2 WHERE job_id = $3
	`, string(status), time.Now(), jobID)
	if err != nil {
		slog.Warn("postgresstore: failed to update status", "job_id", jobID, "error", err)
		return errors.Wrapf(err, "failed to update status for job %s", jobID)
	}
	return nil
}

// GetJob reads and deserializes a job. Returns (nil, nil) on not-found.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT result_data FROM job_results WHERE job_id = $1`, jobID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Warn("postgresstore: failed to get job", "job_id", jobID, "error", err)
		return nil, errors.Wrapf(err, "failed to get job %s", jobID)
	}

	job, err := store.UnmarshalJob(data)
	if err != nil {
		slog.Warn("postgresstore: failed to deserialize job", "job_id", jobID, "error", err)
		return nil, nil
	}
	return job, nil
}

var _ store.Gateway = (*Store)(nil)
