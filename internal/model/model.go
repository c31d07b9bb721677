// Package model defines the core scan job data model: jobs, tasks, and the
// discovered-asset types a scan's tasks may surface along the way.
package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a Task. Transitions are one-way:
// Pending -> Running -> {Completed, Failed}.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Severity ranks discovered vulnerabilities.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the severity's position in the total order, highest last.
// Unknown severities rank -1, below SeverityInfo, so they never land mid-pack:
// Vulnerabilities lists them after every known severity.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Result is the outcome of a single tool invocation.
type Result struct {
	Success    bool           `json:"success"`
	ReturnCode int            `json:"return_code"`
	Stdout     string         `json:"stdout,omitempty"`
	Stderr     string         `json:"stderr,omitempty"`
	TimedOut   bool           `json:"timed_out"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Task is a single tool invocation within a Job's dependency graph.
//
// Status, Result, Error and the timestamps are mutated only through the
// guarded transition methods below; every other field is set once at
// creation and read freely.
type Task struct {
	ID           uuid.UUID      `json:"id"`
	ToolName     string         `json:"tool_name"`
	Params       map[string]any `json:"params"`
	Dependencies []uuid.UUID    `json:"dependencies,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`

	mu          sync.RWMutex
	status      TaskStatus
	result      *Result
	errMsg      string
	startedAt   time.Time
	completedAt time.Time
}

// NewTask creates a pending task. toolName and params are validated by the
// scheduler against the tool registry, not here.
func NewTask(toolName string, params map[string]any, deps ...uuid.UUID) *Task {
	return &Task{
		ID:           uuid.New(),
		ToolName:     toolName,
		Params:       params,
		Dependencies: deps,
		CreatedAt:    time.Now(),
		status:       TaskStatusPending,
	}
}

func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Task) Result() *Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

func (t *Task) Error() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errMsg
}

func (t *Task) StartedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startedAt
}

func (t *Task) CompletedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completedAt
}

// MarkRunning transitions Pending -> Running.
func (t *Task) MarkRunning() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskStatusPending {
		return ErrInvalidTransition
	}
	t.status = TaskStatusRunning
	t.startedAt = time.Now()
	return nil
}

// Complete transitions Running -> Completed, recording the tool result.
func (t *Task) Complete(result *Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskStatusRunning {
		return ErrInvalidTransition
	}
	t.status = TaskStatusCompleted
	t.result = result
	t.completedAt = time.Now()
	return nil
}

// Fail transitions Running -> Failed, recording errMsg.
func (t *Task) Fail(errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskStatusRunning {
		return ErrInvalidTransition
	}
	t.status = TaskStatusFailed
	t.errMsg = errMsg
	t.completedAt = time.Now()
	return nil
}

// Restore sets a task's state directly from persisted fields, bypassing
// the guarded transitions. It exists solely for the persistence gateway to
// reconstruct a Job read back from storage without stamping fresh
// timestamps over the ones that were actually persisted.
func (t *Task) Restore(status TaskStatus, result *Result, errMsg string, startedAt, completedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.result = result
	t.errMsg = errMsg
	t.startedAt = startedAt
	t.completedAt = completedAt
}

// Host is a discovered network asset.
type Host struct {
	Address  string    `json:"address"`
	Services []Service `json:"services,omitempty"`
}

// Service is an open port/service observed on a Host.
type Service struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Name     string `json:"name,omitempty"`
}

// Vulnerability is a finding attached to a Job, typically surfaced by a
// nuclei/sqlmap/metasploit task.
type Vulnerability struct {
	TaskID      uuid.UUID `json:"task_id"`
	Name        string    `json:"name"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description,omitempty"`
}

// Job is a single scan run against a target, owning an append-only set of
// Tasks and the assets/vulnerabilities they discover.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`

	mu              sync.RWMutex
	status          JobStatus
	tasks           []*Task
	assets          []Host
	vulnerabilities []Vulnerability
}

// NewJob creates a pending job for target with no tasks yet.
func NewJob(target string) *Job {
	return &Job{
		ID:        uuid.New(),
		Target:    target,
		CreatedAt: time.Now(),
		status:    JobStatusPending,
	}
}

func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// SetStatus sets the job's status. It does not check the transition: any
// status may be set from any state, including a terminal one.
func (j *Job) SetStatus(s JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

// AddTask appends a task to the job's task list. Safe for concurrent use;
// the scheduler calls this both at job creation and when follow-up rules
// grow the DAG mid-run.
func (j *Job) AddTask(t *Task) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tasks = append(j.tasks, t)
}

// Tasks returns a snapshot of the job's current task list.
func (j *Job) Tasks() []*Task {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]*Task, len(j.tasks))
	copy(out, j.tasks)
	return out
}

// TaskByID returns the task with the given id, or nil if not found.
func (j *Job) TaskByID(id uuid.UUID) *Task {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, t := range j.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AddAsset records a discovered host.
func (j *Job) AddAsset(h Host) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.assets = append(j.assets, h)
}

// Assets returns a snapshot of discovered hosts.
func (j *Job) Assets() []Host {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Host, len(j.assets))
	copy(out, j.assets)
	return out
}

// AddVulnerability records a finding.
func (j *Job) AddVulnerability(v Vulnerability) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.vulnerabilities = append(j.vulnerabilities, v)
}

// Vulnerabilities returns a snapshot of findings, ordered by Severity.Rank
// descending (highest severity first), matching report ordering.
func (j *Job) Vulnerabilities() []Vulnerability {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Vulnerability, len(j.vulnerabilities))
	copy(out, j.vulnerabilities)
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k].Severity.Rank() > out[k-1].Severity.Rank(); k-- {
			out[k], out[k-1] = out[k-1], out[k]
		}
	}
	return out
}
