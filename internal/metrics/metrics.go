// Package metrics exports scan execution metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter owns the registry and metric families for a running scheduler.
type Exporter struct {
	registry *prometheus.Registry

	taskRuns     *prometheus.CounterVec
	taskLatency  *prometheus.HistogramVec
	taskRejects  *prometheus.CounterVec
	jobsActive   prometheus.Gauge
	jobsByStatus *prometheus.GaugeVec
}

// Config configures the exporter.
type Config struct {
	Registry       *prometheus.Registry
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}
}

// New creates a metrics exporter and registers its collectors.
func New(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.taskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scanforge",
		Name:      "task_runs_total",
		Help:      "Total number of tool task executions",
	}, []string{"tool_name", "status"})

	e.taskLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scanforge",
		Name:      "task_duration_seconds",
		Help:      "Tool task execution latency in seconds",
		Buckets:   cfg.LatencyBuckets,
	}, []string{"tool_name"})

	e.taskRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scanforge",
		Name:      "task_rejected_total",
		Help:      "Total number of tasks rejected by an adapter before execution",
	}, []string{"tool_name", "reason"})

	e.jobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scanforge",
		Name:      "jobs_running",
		Help:      "Number of scan jobs currently running",
	})

	e.jobsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scanforge",
		Name:      "jobs_by_status",
		Help:      "Number of jobs currently in each status",
	}, []string{"status"})

	registry.MustRegister(e.taskRuns, e.taskLatency, e.taskRejects, e.jobsActive, e.jobsByStatus)
	return e
}

// RecordTaskRun records one completed tool execution.
func (e *Exporter) RecordTaskRun(toolName string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	e.taskRuns.WithLabelValues(toolName, status).Inc()
	e.taskLatency.WithLabelValues(toolName).Observe(latency.Seconds())
}

// RecordTaskRejected records an adapter rejecting a task before execution
// (bad parameters, shell-metacharacter injection, disallowed module).
func (e *Exporter) RecordTaskRejected(toolName, reason string) {
	e.taskRejects.WithLabelValues(toolName, reason).Inc()
}

// SetJobsRunning sets the current count of running jobs.
func (e *Exporter) SetJobsRunning(count int) {
	e.jobsActive.Set(float64(count))
}

// SetJobsByStatus sets the gauge for one job status bucket.
func (e *Exporter) SetJobsByStatus(status string, count int) {
	e.jobsByStatus.WithLabelValues(status).Set(float64(count))
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
