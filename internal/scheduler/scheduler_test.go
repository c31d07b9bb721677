package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/model"
)

// mockRunner is a testify mock standing in for the tools/executor stack so
// these tests never spawn a real process.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, toolName string, params map[string]any) (*model.Result, error) {
	args := m.Called(ctx, toolName, params)
	var res *model.Result
	if v := args.Get(0); v != nil {
		res = v.(*model.Result)
	}
	return res, args.Error(1)
}

// memGateway is an in-memory store.Gateway stand-in for scheduler tests,
// avoiding a dependency on either storage backend.
type memGateway struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*model.Job
}

func newMemGateway() *memGateway {
	return &memGateway{jobs: make(map[uuid.UUID]*model.Job)}
}

func (g *memGateway) EnsureSchema(ctx context.Context) error { return nil }

func (g *memGateway) SaveJob(ctx context.Context, job *model.Job) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.jobs[job.ID] = job
	return nil
}

func (g *memGateway) UpdateStatus(ctx context.Context, jobID uuid.UUID, status model.JobStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if j, ok := g.jobs[jobID]; ok {
		j.SetStatus(status)
	}
	return nil
}

func (g *memGateway) GetJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.jobs[jobID], nil
}

func (g *memGateway) Close() error { return nil }

func fastConfig() Config {
	return Config{MaxParallelTasks: 4, PollInterval: 5 * time.Millisecond}
}

func TestCreateJobSeedsNmapTask(t *testing.T) {
	s := New(newMemGateway(), &mockRunner{}, fastConfig())
	job, err := s.CreateJob(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	tasks := job.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "nmap", tasks[0].ToolName)
	assert.Equal(t, model.JobStatusPending, job.Status())
}

func TestCreateJobRejectsEmptyTarget(t *testing.T) {
	s := New(newMemGateway(), &mockRunner{}, fastConfig())
	_, err := s.CreateJob(context.Background(), "")
	require.Error(t, err)
	var scanErr *model.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, model.CodeInvalidTarget, scanErr.Code)
}

func TestRunJobGrowsDAGOnWebDetection(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "nmap", mock.Anything).
		Return(&model.Result{Success: true, ReturnCode: 0, Stdout: "80/tcp open http\n443/tcp open https\n"}, nil).Once()
	runner.On("Run", mock.Anything, "nuclei", mock.Anything).
		Return(&model.Result{Success: true, ReturnCode: 0, Stdout: "no findings"}, nil).Once()
	runner.On("Run", mock.Anything, "gobuster", mock.Anything).
		Return(&model.Result{Success: true, ReturnCode: 0, Stdout: "no paths"}, nil).Once()

	s := New(newMemGateway(), runner, fastConfig())
	job, err := s.CreateJob(context.Background(), "example.com")
	require.NoError(t, err)

	err = s.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	tasks := job.Tasks()
	require.Len(t, tasks, 3)
	for _, tk := range tasks {
		assert.Equal(t, model.TaskStatusCompleted, tk.Status())
	}
	assert.Equal(t, model.JobStatusCompleted, job.Status())
	assert.Len(t, job.Assets(), 1)
	runner.AssertExpectations(t)

	for _, tk := range tasks {
		switch tk.ToolName {
		case "nuclei":
			assert.Equal(t, "http://example.com", tk.Params["target"])
		case "gobuster":
			assert.Equal(t, "http://example.com", tk.Params["url"])
		}
	}
}

func TestRunJobNoFollowUpWithoutWebIndicator(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "nmap", mock.Anything).
		Return(&model.Result{Success: true, ReturnCode: 0, Stdout: "22/tcp open ssh\n"}, nil).Once()

	s := New(newMemGateway(), runner, fastConfig())
	job, err := s.CreateJob(context.Background(), "example.com")
	require.NoError(t, err)

	err = s.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	require.Len(t, job.Tasks(), 1)
	assert.Equal(t, model.JobStatusCompleted, job.Status())
	runner.AssertExpectations(t)
}

func TestTaskFailureIsTaskLocal(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "nmap", mock.Anything).
		Return(nil, model.NewToolNotFoundError("nmap")).Once()

	s := New(newMemGateway(), runner, fastConfig())
	job, err := s.CreateJob(context.Background(), "example.com")
	require.NoError(t, err)

	err = s.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	// The task failed, but nothing depended on it, so the job still ran to
	// quiescence and completed.
	tasks := job.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskStatusFailed, tasks[0].Status())
	assert.Equal(t, model.JobStatusCompleted, job.Status())
}

func TestRunJobFailsOnUnschedulableResidue(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "nmap", mock.Anything).
		Return(&model.Result{Success: false, ReturnCode: 1, Stderr: "host down"}, nil).Once()

	s := New(newMemGateway(), runner, fastConfig())
	job, err := s.CreateJob(context.Background(), "example.com")
	require.NoError(t, err)

	seed := job.Tasks()[0]
	dependent := model.NewTask("nuclei", map[string]any{"target": "http://example.com"}, seed.ID)
	job.AddTask(dependent)

	err = s.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	// The dependent can never become ready once its dependency failed; the
	// stall detector marks the job failed rather than spinning forever.
	assert.Equal(t, model.TaskStatusFailed, seed.Status())
	assert.Equal(t, model.TaskStatusPending, dependent.Status())
	assert.Equal(t, model.JobStatusFailed, job.Status())
}

func TestRunJobFailsOnMissingDependency(t *testing.T) {
	s := New(newMemGateway(), &mockRunner{}, fastConfig())
	job := model.NewJob("example.com")
	job.AddTask(model.NewTask("nuclei", map[string]any{"target": "http://example.com"}, uuid.New()))

	require.NoError(t, s.gateway.SaveJob(context.Background(), job))

	err := s.RunJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status())
}

func TestRunJobUnknownJobID(t *testing.T) {
	s := New(newMemGateway(), &mockRunner{}, fastConfig())
	err := s.RunJob(context.Background(), uuid.New())
	require.Error(t, err)
	var scanErr *model.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, model.CodeScheduler, scanErr.Code)
}

func TestGetJobFallsThroughToGateway(t *testing.T) {
	gw := newMemGateway()
	seed := model.NewJob("10.0.0.1")
	require.NoError(t, gw.SaveJob(context.Background(), seed))

	s := New(gw, &mockRunner{}, fastConfig())
	got, err := s.GetJob(context.Background(), seed.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seed.ID, got.ID)
}

func TestEventCallbackReceivesLifecycleEvents(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "nmap", mock.Anything).
		Return(&model.Result{Success: true, ReturnCode: 0, Stdout: "22/tcp open ssh\n"}, nil).Once()

	s := New(newMemGateway(), runner, fastConfig())
	job, err := s.CreateJob(context.Background(), "example.com")
	require.NoError(t, err)

	var mu sync.Mutex
	var events []string
	s.SetEventCallback(func(eventType string, jobID, taskID string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, eventType)
	})

	require.NoError(t, s.RunJob(context.Background(), job.ID))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, EventTaskStart)
	assert.Contains(t, events, EventTaskEnd)
	assert.Contains(t, events, EventJobDone)
}
