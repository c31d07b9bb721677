// Package executor runs shell commands with bounded output capture and
// timeout escalation: a timed-out command is asked to terminate gracefully
// before being force-killed.
package executor

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/time/rate"

	"github.com/scanforge/scanforge/internal/model"
)

// maxOutputBytes bounds each of stdout/stderr to guard against a runaway
// tool filling memory (nmap -v against a /8 can emit a lot of text).
const maxOutputBytes = 10 * 1024 * 1024

// gracePeriod is how long a timed-out process is given to exit after the
// graceful signal before it is force-killed.
const gracePeriod = 5 * time.Second

// Executor launches shell commands.
type Executor struct {
	dispatchLimiter *rate.Limiter
}

// New creates an Executor with no dispatch throttling.
func New() *Executor {
	return &Executor{}
}

// NewWithDispatchRate creates an Executor that throttles how often it starts
// new commands, independent of the scheduler's MaxParallelTasks concurrency
// bound. This caps launch rate, not concurrent in-flight count, to keep a
// burst of task-ready events from forking many tools in the same instant.
func NewWithDispatchRate(commandsPerSecond float64, burst int) *Executor {
	return &Executor{dispatchLimiter: rate.NewLimiter(rate.Limit(commandsPerSecond), burst)}
}

// Run executes command through the platform shell, enforcing timeout. It
// never returns an error itself: spawn failures and timeouts are reported
// through the returned model.Result, matching the adapters' contract that
// a failed command is data, not an exception.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) *model.Result {
	if e.dispatchLimiter != nil {
		if err := e.dispatchLimiter.Wait(ctx); err != nil {
			return spawnFailure(err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(runCtx, command)

	var stdout, stderr boundedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// On timeout, ask the process to terminate gracefully first; WaitDelay
	// is the grace window after which os/exec force-kills and unblocks Wait
	// (closing the output copiers with it, so no captured line is lost).
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = gracePeriod

	if err := cmd.Start(); err != nil {
		return spawnFailure(err)
	}

	waitErr := cmd.Wait()

	timedOut := runCtx.Err() == context.DeadlineExceeded
	result := &model.Result{
		Success:    waitErr == nil,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		TimedOut:   timedOut,
		ReturnCode: exitCode(cmd, waitErr),
	}
	if timedOut {
		result.ReturnCode = -1
		result.Success = false
	}
	return result
}

func spawnFailure(err error) *model.Result {
	slog.Warn("executor: failed to spawn command", "error", err)
	return &model.Result{Success: false, ReturnCode: -1, Stderr: err.Error()}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// boundedBuffer is an io.Writer that silently drops bytes past
// maxOutputBytes instead of growing without limit.
type boundedBuffer struct {
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := maxOutputBytes - b.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	return b.buf.Write(p)
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
