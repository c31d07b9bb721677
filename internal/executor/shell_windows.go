//go:build windows

package executor

import (
	"context"
	"os/exec"
)

// shellCommand builds a command run through cmd.exe /C.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", command)
}

// terminate has no graceful-signal equivalent on Windows; the caller's
// grace period simply elapses and the process is force-killed.
func terminate(cmd *exec.Cmd) error {
	return nil
}
