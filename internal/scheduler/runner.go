package scheduler

import (
	"context"
	"strings"

	"github.com/scanforge/scanforge/internal/executor"
	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/tools"
)

// ToolRunner executes one tool invocation and returns its result. It is the
// scheduler's only dependency on the tools/executor packages, kept as an
// interface so scheduler tests can substitute a mock runner instead of
// spawning real processes.
type ToolRunner interface {
	Run(ctx context.Context, toolName string, params map[string]any) (*model.Result, error)
}

// ToolOverride customizes where one tool's binary lives and which extra
// arguments every invocation carries, sourced from the config file's tools
// section.
type ToolOverride struct {
	Path        string
	DefaultArgs string
}

// defaultRunner dispatches by tool name through a tools.Registry and
// executes the resulting command through an executor.Executor.
type defaultRunner struct {
	registry  *tools.Registry
	exec      *executor.Executor
	overrides map[string]ToolOverride
}

// NewDefaultRunner builds the production ToolRunner.
func NewDefaultRunner(registry *tools.Registry, exec *executor.Executor) ToolRunner {
	return &defaultRunner{registry: registry, exec: exec}
}

// NewDefaultRunnerWithOverrides builds the production ToolRunner with
// per-tool path and default-argument overrides applied after each adapter
// validates and assembles its command.
func NewDefaultRunnerWithOverrides(registry *tools.Registry, exec *executor.Executor, overrides map[string]ToolOverride) ToolRunner {
	return &defaultRunner{registry: registry, exec: exec, overrides: overrides}
}

func (r *defaultRunner) Run(ctx context.Context, toolName string, params map[string]any) (*model.Result, error) {
	adapter, ok := r.registry.Lookup(toolName)
	if !ok {
		return nil, model.NewToolNotFoundError(toolName)
	}

	command, cleanup, err := adapter.BuildCommand(params)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return &model.Result{Success: false, ReturnCode: -1, Stderr: err.Error()}, nil
	}

	command = r.applyOverride(toolName, command)
	return r.exec.Run(ctx, command, adapter.Timeout()), nil
}

// applyOverride swaps the adapter-chosen binary for the configured path and
// appends the configured default arguments. Override values come from the
// operator's own config file, but the metacharacter denylist still applies
// to the appended arguments since they end up on a shell command line.
func (r *defaultRunner) applyOverride(toolName, command string) string {
	ov, ok := r.overrides[toolName]
	if !ok {
		return command
	}
	if ov.Path != "" {
		if _, rest, found := strings.Cut(command, " "); found {
			command = ov.Path + " " + rest
		} else {
			command = ov.Path
		}
	}
	if ov.DefaultArgs != "" && !strings.ContainsAny(ov.DefaultArgs, ";|&") {
		command += " " + ov.DefaultArgs
	}
	return command
}
