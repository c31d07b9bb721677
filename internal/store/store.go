// Package store defines the persistence gateway contract shared by the
// Postgres and SQLite backends: idempotent job snapshot upserts, a cheap
// status-only update, and read-through lookup.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/scanforge/scanforge/internal/model"
)

// Gateway persists Job snapshots. Implementations log storage errors and
// return them. The scheduler logs and ignores SaveJob and UpdateStatus
// errors; a GetJob error is returned to the scheduler's caller.
type Gateway interface {
	EnsureSchema(ctx context.Context) error
	SaveJob(ctx context.Context, job *model.Job) error
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status model.JobStatus) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error)
	Close() error
}

// snapshot is the JSON document stored in the result_data column. It is a
// plain-data mirror of model.Job/model.Task since those types guard their
// mutable fields behind mutexes that don't round-trip through JSON.
type snapshot struct {
	ID              uuid.UUID          `json:"id"`
	Target          string             `json:"target"`
	Status          model.JobStatus    `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	Tasks           []taskSnapshot     `json:"tasks"`
	Assets          []model.Host       `json:"assets,omitempty"`
	Vulnerabilities []model.Vulnerability `json:"vulnerabilities,omitempty"`
}

type taskSnapshot struct {
	ID           uuid.UUID        `json:"id"`
	ToolName     string           `json:"tool_name"`
	Params       map[string]any   `json:"params"`
	Dependencies []uuid.UUID      `json:"dependencies,omitempty"`
	Status       model.TaskStatus `json:"status"`
	Result       *model.Result    `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

func toSnapshot(job *model.Job) snapshot {
	tasks := job.Tasks()
	snapTasks := make([]taskSnapshot, len(tasks))
	for i, t := range tasks {
		ts := taskSnapshot{
			ID:           t.ID,
			ToolName:     t.ToolName,
			Params:       t.Params,
			Dependencies: t.Dependencies,
			Status:       t.Status(),
			Result:       t.Result(),
			Error:        t.Error(),
			CreatedAt:    t.CreatedAt,
		}
		if !t.StartedAt().IsZero() {
			sa := t.StartedAt()
			ts.StartedAt = &sa
		}
		if !t.CompletedAt().IsZero() {
			ca := t.CompletedAt()
			ts.CompletedAt = &ca
		}
		snapTasks[i] = ts
	}
	return snapshot{
		ID:              job.ID,
		Target:          job.Target,
		Status:          job.Status(),
		CreatedAt:       job.CreatedAt,
		Tasks:           snapTasks,
		Assets:          job.Assets(),
		Vulnerabilities: job.Vulnerabilities(),
	}
}

func fromSnapshot(s snapshot) *model.Job {
	job := model.NewJob(s.Target)
	job.ID = s.ID
	job.CreatedAt = s.CreatedAt
	job.SetStatus(s.Status)

	for _, ts := range s.Tasks {
		t := model.NewTask(ts.ToolName, ts.Params, ts.Dependencies...)
		t.ID = ts.ID
		t.CreatedAt = ts.CreatedAt
		var startedAt, completedAt time.Time
		if ts.StartedAt != nil {
			startedAt = *ts.StartedAt
		}
		if ts.CompletedAt != nil {
			completedAt = *ts.CompletedAt
		}
		t.Restore(ts.Status, ts.Result, ts.Error, startedAt, completedAt)
		job.AddTask(t)
	}
	for _, h := range s.Assets {
		job.AddAsset(h)
	}
	for _, v := range s.Vulnerabilities {
		job.AddVulnerability(v)
	}
	return job
}

// MarshalJob serializes a Job into the JSON document stored in a backend's
// result_data column.
func MarshalJob(job *model.Job) ([]byte, error) {
	return json.Marshal(toSnapshot(job))
}

// UnmarshalJob reconstructs a Job from a stored JSON document.
func UnmarshalJob(data []byte) (*model.Job, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return fromSnapshot(s), nil
}
