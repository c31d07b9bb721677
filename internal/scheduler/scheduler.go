// Package scheduler implements the DAG-growing job execution loop: tasks
// dispatch as their dependencies complete, successful tasks may append new
// tasks to the same job's graph (the nmap-to-web-scan follow-up rule), and
// the job reaches a terminal status once no task remains pending or running.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/store"
)

// Config tunes the scheduler's concurrency and loop cadence. Defaults are
// set by DefaultConfig; PollInterval is correctness-irrelevant (the loop
// converges regardless of its value) and only affects how quickly it
// notices state changes.
type Config struct {
	MaxParallelTasks int
	PollInterval     time.Duration
}

// DefaultConfig returns the scheduler's default tuning.
func DefaultConfig() Config {
	return Config{
		MaxParallelTasks: 5,
		PollInterval:     200 * time.Millisecond,
	}
}

// Scheduler owns the in-memory job index and drives job execution.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*model.Job
	gateway store.Gateway
	runner  ToolRunner
	cfg     Config
	rules   []FollowUpRule
	onEvent EventCallback
}

// New builds a Scheduler backed by gateway for persistence and runner for
// tool execution.
func New(gateway store.Gateway, runner ToolRunner, cfg Config) *Scheduler {
	return &Scheduler{
		jobs:    make(map[uuid.UUID]*model.Job),
		gateway: gateway,
		runner:  runner,
		cfg:     cfg,
		rules:   defaultFollowUpRules,
	}
}

// SetEventCallback installs a callback invoked for task_start/task_end/
// job_done events during RunJob. Pass nil to disable event streaming.
func (s *Scheduler) SetEventCallback(cb EventCallback) {
	s.onEvent = cb
}

func (s *Scheduler) persist(ctx context.Context, job *model.Job) {
	if err := s.gateway.SaveJob(ctx, job); err != nil {
		slog.Warn("scheduler: failed to persist job", "job_id", job.ID, "error", err)
	}
}

// CreateJob creates a Job with a seed nmap task against target, scanning the
// top-1000 ports, and persists it.
func (s *Scheduler) CreateJob(ctx context.Context, target string) (*model.Job, error) {
	return s.CreateJobWithProfile(ctx, target, "fast")
}

// CreateJobWithProfile creates a Job whose seed nmap task's port range is
// widened when profile is "deep". A profile only parameterizes the seed
// task; it has no other effect on scheduling.
func (s *Scheduler) CreateJobWithProfile(ctx context.Context, target, profile string) (*model.Job, error) {
	if target == "" {
		return nil, model.NewInvalidTargetError("target is required")
	}

	ports := "top-1000"
	if profile == "deep" {
		ports = "all"
	}

	job := model.NewJob(target)
	seed := model.NewTask("nmap", map[string]any{"target": target, "ports": ports})
	job.AddTask(seed)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.persist(ctx, job)
	return job, nil
}

// GetJob returns a job by id, preferring the in-memory index and falling
// through to the persistence gateway (re-caching on a hit).
func (s *Scheduler) GetJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if ok {
		return job, nil
	}

	job, err := s.gateway.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job, nil
}

// RunJob drives the job's execution loop to completion: dispatching ready
// tasks concurrently, growing the DAG via follow-up rules, and settling the
// job into COMPLETED or FAILED.
func (s *Scheduler) RunJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return model.NewSchedulerError(fmt.Sprintf("unknown job %s", jobID))
	}

	job.SetStatus(model.JobStatusRunning)
	// Status-only update: the full snapshot was written at creation (or on
	// read-through) and no task state has changed yet.
	if err := s.gateway.UpdateStatus(ctx, job.ID, model.JobStatusRunning); err != nil {
		slog.Warn("scheduler: failed to update job status", "job_id", job.ID, "error", err)
	}

	dispatcher := newEventDispatcher(s.onEvent)
	defer dispatcher.close()

	sem := semaphore.NewWeighted(int64(s.cfg.MaxParallelTasks))
	var wg sync.WaitGroup
	// inflight counts workers that have not yet finished their post-run
	// bookkeeping. A task flips to a terminal status before its worker
	// appends follow-up tasks; without this count the loop could observe
	// "nothing pending, nothing running" in that window and conclude the
	// job while follow-ups are still about to be added.
	var inflight atomic.Int64
	dispatched := make(map[uuid.UUID]bool)

	for {
		if ctx.Err() != nil {
			wg.Wait()
			return ctx.Err()
		}

		tasks := job.Tasks()
		pending := 0
		running := 0
		for _, t := range tasks {
			switch t.Status() {
			case model.TaskStatusPending:
				pending++
			case model.TaskStatusRunning:
				running++
			}
		}

		if pending == 0 && running == 0 && inflight.Load() == 0 {
			break
		}

		ready := readyTasks(tasks, dispatched)
		if len(ready) == 0 && running == 0 && inflight.Load() == 0 && pending > 0 {
			slog.Warn("scheduler: job stalled with unschedulable tasks", "job_id", job.ID, "pending", pending)
			job.SetStatus(model.JobStatusFailed)
			s.persist(ctx, job)
			dispatcher.send(EventJobDone, job.ID.String(), "", job.Status())
			wg.Wait()
			return nil
		}

		for _, t := range ready {
			dispatched[t.ID] = true
			if err := t.MarkRunning(); err != nil {
				continue
			}
			s.persist(ctx, job)

			wg.Add(1)
			inflight.Add(1)
			go func(task *model.Task) {
				defer wg.Done()
				defer inflight.Add(-1)
				s.executeTask(ctx, job, task, dispatcher, sem)
			}(t)
		}

		time.Sleep(s.cfg.PollInterval)
	}

	if job.Status() != model.JobStatusFailed {
		job.SetStatus(model.JobStatusCompleted)
	}
	s.persist(ctx, job)
	dispatcher.send(EventJobDone, job.ID.String(), "", job.Status())
	return nil
}

// readyTasks returns the pending, not-yet-dispatched tasks whose every
// dependency has completed. A dependency that resolves to a failed or
// missing task makes its dependent permanently unschedulable: it is never
// returned as ready, which the caller observes as stalled residue once no
// task is running.
func readyTasks(tasks []*model.Task, dispatched map[uuid.UUID]bool) []*model.Task {
	byID := make(map[uuid.UUID]*model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var ready []*model.Task
	for _, t := range tasks {
		if t.Status() != model.TaskStatusPending || dispatched[t.ID] {
			continue
		}
		allDepsComplete := true
		for _, depID := range t.Dependencies {
			dep, ok := byID[depID]
			if !ok || dep.Status() == model.TaskStatusFailed {
				allDepsComplete = false
				break
			}
			if dep.Status() != model.TaskStatusCompleted {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, t)
		}
	}
	return ready
}

// executeTask runs one task to completion, applies follow-up rules on
// success, and persists the job after every state change.
func (s *Scheduler) executeTask(ctx context.Context, job *model.Job, task *model.Task, dispatcher *eventDispatcher, sem *semaphore.Weighted) {
	if err := sem.Acquire(ctx, 1); err != nil {
		_ = task.Fail(err.Error())
		s.persist(ctx, job)
		return
	}
	defer sem.Release(1)

	dispatcher.send(EventTaskStart, job.ID.String(), task.ID.String(), task)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler: recovered from panic in task execution", "job_id", job.ID, "task_id", task.ID, "panic", r)
			if task.Status() == model.TaskStatusRunning {
				_ = task.Fail(fmt.Sprintf("panic: %v", r))
			}
			s.persist(ctx, job)
			dispatcher.send(EventTaskEnd, job.ID.String(), task.ID.String(), task)
		}
	}()

	result, err := s.runner.Run(ctx, task.ToolName, task.Params)
	switch {
	case err != nil:
		_ = task.Fail(err.Error())
	case !result.Success:
		_ = task.Fail(describeFailure(result))
	default:
		_ = task.Complete(result)
		s.applyFollowUps(job, task)
		s.captureEvidence(job, task, result)
	}

	s.persist(ctx, job)
	dispatcher.send(EventTaskEnd, job.ID.String(), task.ID.String(), task)
}

func describeFailure(result *model.Result) string {
	if result.TimedOut {
		return "tool execution timed out"
	}
	if result.Stderr != "" {
		return result.Stderr
	}
	return fmt.Sprintf("tool exited with code %d", result.ReturnCode)
}

func (s *Scheduler) applyFollowUps(job *model.Job, completed *model.Task) {
	for _, rule := range s.rules {
		for _, t := range rule(job, completed) {
			job.AddTask(t)
		}
	}
}

func (s *Scheduler) captureEvidence(job *model.Job, task *model.Task, result *model.Result) {
	if task.ToolName != "nmap" {
		return
	}
	target := job.Target
	if t, ok := task.Params["target"].(string); ok && t != "" {
		target = t
	}
	for _, host := range extractOpenPorts(target, result.Stdout) {
		job.AddAsset(host)
	}
}
