package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	e := New()
	result := e.Run(context.Background(), "echo hello", 2*time.Second)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.False(t, result.TimedOut)
	assert.Equal(t, 0, result.ReturnCode)
	assert.Contains(t, result.Stdout, "hello")
}

func TestRunNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	e := New()
	result := e.Run(context.Background(), "exit 3", 2*time.Second)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.ReturnCode)
}

func TestRunTimeoutEscalates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	e := New()
	start := time.Now()
	result := e.Run(context.Background(), "sleep 5", 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, result.TimedOut)
	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ReturnCode)
	// Should be killed well before the 5s sleep and well within the grace period.
	assert.Less(t, elapsed, 4*time.Second)
}

func TestRunCapturesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	e := New()
	result := e.Run(context.Background(), "echo oops 1>&2; exit 1", 2*time.Second)
	assert.False(t, result.Success)
	assert.Contains(t, result.Stderr, "oops")
}

func TestDispatchRateThrottlesLaunches(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	e := NewWithDispatchRate(2, 1)
	start := time.Now()
	e.Run(context.Background(), "true", time.Second)
	e.Run(context.Background(), "true", time.Second)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
}
