package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetJobRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := model.NewJob("10.0.0.1")
	seed := model.NewTask("nmap", map[string]any{"target": "10.0.0.1", "ports": "top-1000"})
	job.AddTask(seed)

	follow := model.NewTask("nuclei", map[string]any{"target": "10.0.0.1"}, seed.ID)
	job.AddTask(follow)

	require.NoError(t, seed.MarkRunning())
	require.NoError(t, seed.Complete(&model.Result{Success: true, ReturnCode: 0, Stdout: "80/tcp open http"}))
	require.NoError(t, follow.MarkRunning())
	require.NoError(t, follow.Fail("adapter timeout"))
	job.SetStatus(model.JobStatusFailed)

	require.NoError(t, s.SaveJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Target, got.Target)
	assert.Equal(t, model.JobStatusFailed, got.Status())

	tasks := got.Tasks()
	require.Len(t, tasks, 2)

	gotSeed := got.TaskByID(seed.ID)
	require.NotNil(t, gotSeed)
	assert.Equal(t, model.TaskStatusCompleted, gotSeed.Status())
	assert.Equal(t, "80/tcp open http", gotSeed.Result().Stdout)

	gotFollow := got.TaskByID(follow.ID)
	require.NotNil(t, gotFollow)
	assert.Equal(t, model.TaskStatusFailed, gotFollow.Status())
	assert.Equal(t, "adapter timeout", gotFollow.Error())
	require.Len(t, gotFollow.Dependencies, 1)
	assert.Equal(t, seed.ID, gotFollow.Dependencies[0])
}

func TestGetJobNotFound(t *testing.T) {
	s := openTestStore(t)
	job := model.NewJob("unused")
	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestUpdateStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := model.NewJob("10.0.0.2")
	require.NoError(t, s.SaveJob(ctx, job))
	require.NoError(t, s.UpdateStatus(ctx, job.ID, model.JobStatusRunning))

	var status string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT status FROM job_results WHERE job_id = ?`, job.ID.String()).Scan(&status))
	assert.Equal(t, "running", status)
}
