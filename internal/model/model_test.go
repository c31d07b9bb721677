package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskTransitions(t *testing.T) {
	task := NewTask("nmap", map[string]any{"target": "10.0.0.1"})
	assert.Equal(t, TaskStatusPending, task.Status())

	require.NoError(t, task.MarkRunning())
	assert.Equal(t, TaskStatusRunning, task.Status())
	assert.False(t, task.StartedAt().IsZero())

	// Cannot mark running twice.
	assert.ErrorIs(t, task.MarkRunning(), ErrInvalidTransition)

	require.NoError(t, task.Complete(&Result{Success: true, ReturnCode: 0}))
	assert.Equal(t, TaskStatusCompleted, task.Status())
	assert.True(t, task.Status().IsTerminal())
	assert.False(t, task.CompletedAt().IsZero())

	// Cannot complete twice, cannot fail a completed task.
	assert.ErrorIs(t, task.Complete(&Result{}), ErrInvalidTransition)
	assert.ErrorIs(t, task.Fail("boom"), ErrInvalidTransition)
}

func TestTaskFail(t *testing.T) {
	task := NewTask("nuclei", nil)
	require.NoError(t, task.MarkRunning())
	require.NoError(t, task.Fail("adapter rejected params"))
	assert.Equal(t, TaskStatusFailed, task.Status())
	assert.Equal(t, "adapter rejected params", task.Error())
}

func TestJobTaskLifecycle(t *testing.T) {
	job := NewJob("10.0.0.1")
	assert.Equal(t, JobStatusPending, job.Status())

	seed := NewTask("nmap", map[string]any{"target": job.Target})
	job.AddTask(seed)
	assert.Len(t, job.Tasks(), 1)

	follow := NewTask("nuclei", map[string]any{"target": job.Target}, seed.ID)
	job.AddTask(follow)
	assert.Len(t, job.Tasks(), 2)

	assert.Equal(t, seed.ID, job.TaskByID(seed.ID).ID)
	assert.Nil(t, job.TaskByID([16]byte{}))
}

func TestSeverityOrdering(t *testing.T) {
	job := NewJob("example.com")
	job.AddVulnerability(Vulnerability{Name: "low-finding", Severity: SeverityLow})
	job.AddVulnerability(Vulnerability{Name: "critical-finding", Severity: SeverityCritical})
	job.AddVulnerability(Vulnerability{Name: "medium-finding", Severity: SeverityMedium})

	ordered := job.Vulnerabilities()
	require.Len(t, ordered, 3)
	assert.Equal(t, "critical-finding", ordered[0].Name)
	assert.Equal(t, "medium-finding", ordered[1].Name)
	assert.Equal(t, "low-finding", ordered[2].Name)
}

func TestErrorTaxonomyCodes(t *testing.T) {
	assert.Equal(t, "E1001", string(NewInvalidTargetError("bad target").Code))
	assert.Equal(t, "E2001", string(NewToolNotFoundError("ghost").Code))
	assert.Equal(t, "E3001", string(NewSchedulerError("deadlock").Code))
	assert.Equal(t, "E4001", string(NewExecutionError("spawn failed").Code))
}
