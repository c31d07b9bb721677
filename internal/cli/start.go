package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/executor"
	"github.com/scanforge/scanforge/internal/metrics"
	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/remote"
	"github.com/scanforge/scanforge/internal/scheduler"
	"github.com/scanforge/scanforge/internal/tools"
)

const metricsShutdownTimeout = 5 * time.Second

var (
	startTarget  string
	startProfile string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new scan job and run it to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		if startTarget == "" {
			return fmt.Errorf("--target is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals()...)
		defer stop()

		gw, err := openGateway(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return err
		}
		defer gw.Close()

		registry := tools.NewRegistry()
		runner := buildRunner(registry)

		m := metrics.New(metrics.DefaultConfig())
		stopMetrics := serveMetrics(m, cfg.MetricsAddr)
		defer stopMetrics()

		sched := scheduler.New(gw, runner, scheduler.Config{
			MaxParallelTasks: cfg.MaxParallelTasks,
			PollInterval:     200 * time.Millisecond,
		})

		sched.SetEventCallback(func(eventType, jobID, taskID string, payload any) {
			switch eventType {
			case scheduler.EventTaskEnd:
				if task, ok := payload.(*model.Task); ok {
					m.RecordTaskRun(task.ToolName, task.CompletedAt().Sub(task.StartedAt()), task.Status() == model.TaskStatusCompleted)
					fmt.Printf("[%s] %s -> %s\n", taskID[:8], task.ToolName, task.Status())
				}
			case scheduler.EventJobDone:
				if status, ok := payload.(model.JobStatus); ok {
					m.SetJobsByStatus(string(status), 1)
					fmt.Printf("job %s: %s\n", jobID, status)
				}
			}
		})

		fmt.Printf("Starting scan on %s (profile: %s)\n", startTarget, startProfile)
		job, err := sched.CreateJobWithProfile(ctx, startTarget, startProfile)
		if err != nil {
			return err
		}
		fmt.Printf("Job ID: %s\n", job.ID)

		m.SetJobsRunning(1)
		err = sched.RunJob(ctx, job.ID)
		m.SetJobsRunning(0)
		if err != nil {
			return fmt.Errorf("running job: %w", err)
		}

		fmt.Printf("Scan finished with status %s\n", job.Status())
		return printJobTable(job)
	},
}

// buildRunner picks the execution transport: remote HTTP dispatch when a
// remote server is configured, the local shell executor otherwise. Adapters
// validate and assemble commands identically on either path.
func buildRunner(registry *tools.Registry) scheduler.ToolRunner {
	if cfg.RemoteServer != "" {
		return remote.New(cfg.RemoteServer, registry)
	}
	overrides := make(map[string]scheduler.ToolOverride, len(cfg.Tools))
	for name, tc := range cfg.Tools {
		overrides[name] = scheduler.ToolOverride{Path: tc.Path, DefaultArgs: tc.DefaultArgs}
	}
	exec := executor.NewWithDispatchRate(float64(cfg.MaxParallelTasks), cfg.MaxParallelTasks)
	return scheduler.NewDefaultRunnerWithOverrides(registry, exec, overrides)
}

// serveMetrics exposes the exporter's /metrics endpoint for the life of the
// scan so a Prometheus sidecar can scrape the running process. Returns a
// func that shuts the listener down. A busy or unavailable address is
// logged, not fatal: metrics are an observability aid, never a reason a
// scan cannot run.
func serveMetrics(m *metrics.Exporter, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("cli: metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("cli: metrics server shutdown failed", "error", err)
		}
	}
}

func init() {
	startCmd.Flags().StringVar(&startTarget, "target", "", "target IP address or hostname (required)")
	startCmd.Flags().StringVar(&startProfile, "profile", "fast", "scan profile: fast (top-1000 ports) or deep (all ports)")
	_ = startCmd.MarkFlagRequired("target")
}
