// Package sqlitestore implements the persistence gateway against an
// embedded SQLite database, the default backend for a single-host scan run.
package sqlitestore

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/store"
)

// Store is the SQLite-backed Gateway implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dsn, enabling WAL
// mode and pinning a single connection. SQLite serializes writers anyway,
// and a single shared connection avoids "database is locked" errors under
// concurrent task completions.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite db with dsn: %s", dsn)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to set journal_mode pragma")
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to set foreign_keys pragma")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close sqlite db")
}

// EnsureSchema creates job_results if absent and lazily adds the status
// column to a pre-existing table that predates it.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS job_results (
			job_id TEXT PRIMARY KEY,
			result_data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create job_results table")
	}

	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(job_results)`)
	if err != nil {
		return errors.Wrap(err, "failed to inspect job_results columns")
	}
	defer rows.Close()

	hasStatus := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return errors.Wrap(err, "failed to scan table_info row")
		}
		if name == "status" {
			hasStatus = true
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to iterate table_info rows")
	}

	if !hasStatus {
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
		slog.Warn("sqlitestore: failed to marshal job", "job_id", job.ID, "error", err)
		return errors.Wrapf(err, "failed to marshal job %s", job.ID)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_results (job_id, result_data, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			result_data = excluded.result_data,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, job.ID.String(), string(data), string(job.Status()), now, now)
	if err != nil {
		slog.Warn("sqlitestore: failed to save job", "job_id", job.ID, "error", err)
		return errors.Wrapf(err, "failed to save job %s", job.ID)
	}
	return nil
}

// UpdateStatus updates only the denormalized status column.
func (s *Store) UpdateStatus(ctx context.Context, jobID uuid.UUID, status model.JobStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_results SET status = ?, updated_at = ? WHERE job_id = ?
	`, string(status), time.Now(), jobID.String())
	if err != nil {
		slog.Warn("sqlitestore: failed to update status", "job_id", jobID, "error", err)
		return errors.Wrapf(err, "failed to update status for job %s", jobID)
	}
	return nil
}

// GetJob reads and deserializes a job. Returns (nil, nil) on not-found.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result_data FROM job_results WHERE job_id = ?`, jobID.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Warn("sqlitestore: failed to get job", "job_id", jobID, "error", err)
		return nil, errors.Wrapf(err, "failed to get job %s", jobID)
	}

	job, err := store.UnmarshalJob([]byte(data))
	if err != nil {
		slog.Warn("sqlitestore: failed to deserialize job", "job_id", jobID, "error", err)
		return nil, nil
	}
	return job, nil
}

var _ store.Gateway = (*Store)(nil)
