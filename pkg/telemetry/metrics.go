package telemetry

import (
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/process"
)

// Metrics provides Prometheus metrics for installer phases. It implements
// engine.Observer. A disabled Metrics accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	// Phase metrics
	phasesCompleted *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec

	// Task metrics
	tasksExecuted *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec

	// Provisioning metrics
	readinessAttempts *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Process metrics
	processRuns     *prometheus.CounterVec
	processDuration *prometheus.HistogramVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		phasesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_completed_total",
				Help:      "Total number of phases completed",
			},
			[]string{"phase", "status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of phase execution in seconds",
				Buckets:   buckets,
			},
			[]string{"phase", "status"},
		),

		tasksExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_executed_total",
				Help:      "Total number of tasks that reached a terminal status",
			},
			[]string{"phase", "task", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of task execution in seconds",
				Buckets:   buckets,
			},
			[]string{"phase", "task"},
		),

		readinessAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readiness_attempts_total",
				Help:      "Total number of readiness probes sent to the node",
			},
			[]string{"outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of provisioning requests sent to the node",
			},
			[]string{"method", "path", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of provisioning requests in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "path"},
		),

		processRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "process_runs_total",
				Help:      "Total number of external processes run",
			},
			[]string{"executable", "exit_code"},
		),
		processDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "process_duration_seconds",
				Help:      "Duration of external processes in seconds",
				Buckets:   buckets,
			},
			[]string{"executable"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of phase failures by error class and code",
			},
			[]string{"class", "code"},
		),
	}

	registry.MustRegister(
		m.phasesCompleted,
		m.phaseDuration,
		m.tasksExecuted,
		m.taskDuration,
		m.readinessAttempts,
		m.httpRequests,
		m.httpDuration,
		m.processRuns,
		m.processDuration,
		m.errorsByCode,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TaskCompleted records a task reaching a terminal status.
func (m *Metrics) TaskCompleted(phase engine.PhaseKind, task string, status engine.TaskStatus, d time.Duration) {
	if !m.enabled() {
		return
	}
	m.tasksExecuted.WithLabelValues(string(phase), task, string(status)).Inc()
	if status != engine.TaskStatusSkipped {
		m.taskDuration.WithLabelValues(string(phase), task).Observe(d.Seconds())
	}
}

// PhaseCompleted records a finished phase.
func (m *Metrics) PhaseCompleted(phase engine.PhaseKind, status engine.PhaseStatus, d time.Duration) {
	if !m.enabled() {
		return
	}
	m.phasesCompleted.WithLabelValues(string(phase), string(status)).Inc()
	m.phaseDuration.WithLabelValues(string(phase), string(status)).Observe(d.Seconds())
}

// RecordReadinessAttempt records one readiness probe. It matches the
// signature of provision.PollConfig.OnAttempt.
func (m *Metrics) RecordReadinessAttempt(_ int, status int, err error) {
	if !m.enabled() {
		return
	}
	outcome := "ready"
	switch {
	case err != nil:
		outcome = "error"
	case status >= 500:
		outcome = "unavailable"
	}
	m.readinessAttempts.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records a provisioning request. It matches the
// signature of provision.Client.OnRequest.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if !m.enabled() {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordProcess records a finished external process. It matches the
// signature of process.Runner.Observe.
func (m *Metrics) RecordProcess(cmd process.Command, exitCode int, d time.Duration) {
	if !m.enabled() {
		return
	}
	exe := filepath.Base(cmd.Path)
	m.processRuns.WithLabelValues(exe, strconv.Itoa(exitCode)).Inc()
	m.processDuration.WithLabelValues(exe).Observe(d.Seconds())
}

// RecordError records a phase failure by its classification.
func (m *Metrics) RecordError(err error) {
	if !m.enabled() || err == nil {
		return
	}
	class, code := "unclassified", "UNKNOWN"
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		class = string(ee.Class)
		if ee.Code != "" {
			code = ee.Code
		}
	}
	m.errorsByCode.WithLabelValues(class, code).Inc()
}

// WriteTextfile writes every collected metric to path in the text
// exposition format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if !m.enabled() || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
