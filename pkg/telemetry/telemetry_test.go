package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/process"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "empty output", mutate: func(c *Config) { c.Logging.Output = "" }, wantErr: true},
		{
			name: "unknown exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
			},
			wantErr: true,
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			wantErr: true,
		},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: true},
		{name: "unknown exporter ignored when disabled", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace": zerolog.TraceLevel,
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "install.log")
	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.NewComponentLogger("tasks").Info("hello from the installer")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"component":"tasks"`) || !strings.Contains(string(data), "hello from the installer") {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestSessionTracksActionProgress(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(zerolog.Nop(), &out)

	var calls int
	s.OnProgress = func(action string, done, total int) {
		calls++
		if action != "wait" || total != 300 {
			t.Errorf("OnProgress(%s, %d, %d)", action, done, total)
		}
	}

	s.ActionStart(300, "wait", "Waiting for the node")
	s.Progress(10, "attempt 1")
	s.Progress(290, "")
	s.Log("Node is up")

	action, done, total := s.Snapshot()
	if action != "wait" || done != 300 || total != 300 {
		t.Errorf("Snapshot() = %s %d/%d", action, done, total)
	}
	if calls != 2 {
		t.Errorf("OnProgress called %d times, want 2", calls)
	}
	if out.String() != "Node is up\n" {
		t.Errorf("out = %q", out.String())
	}

	s.ActionStart(100, "license", "")
	if _, done, _ := s.Snapshot(); done != 0 {
		t.Errorf("ActionStart must reset the counter, done = %d", done)
	}
}

// exposition renders the registry in the text format.
func exposition(t *testing.T, m *Metrics) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	return string(data)
}

func assertSample(t *testing.T, text, sample string) {
	t.Helper()
	if !strings.Contains(text, sample+"\n") {
		t.Errorf("missing sample %s in:\n%s", sample, text)
	}
}

func TestMetricsObserver(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatal(err)
	}

	m.TaskCompleted(engine.PhaseInstall, "StartService", engine.TaskStatusSucceeded, time.Second)
	m.TaskCompleted(engine.PhaseInstall, "InstallCerts", engine.TaskStatusSkipped, 0)
	m.PhaseCompleted(engine.PhaseInstall, engine.PhaseStatusSucceeded, 2*time.Second)

	text := exposition(t, m)
	assertSample(t, text, `esinstall_tasks_executed_total{phase="install",status="succeeded",task="StartService"} 1`)
	assertSample(t, text, `esinstall_tasks_executed_total{phase="install",status="skipped",task="InstallCerts"} 1`)
	assertSample(t, text, `esinstall_phases_completed_total{phase="install",status="succeeded"} 1`)
	assertSample(t, text, `esinstall_task_duration_seconds_count{phase="install",task="StartService"} 1`)
	if strings.Contains(text, `task_duration_seconds_count{phase="install",task="InstallCerts"}`) {
		t.Error("skipped tasks must not observe a duration")
	}
}

func TestMetricsProvisioningAndProcess(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatal(err)
	}

	m.RecordReadinessAttempt(1, 0, errors.New("refused"))
	m.RecordReadinessAttempt(2, 503, nil)
	m.RecordReadinessAttempt(3, 200, nil)
	m.RecordHTTPRequest("PUT", "/_xpack/license", 200, 10*time.Millisecond)
	m.RecordProcess(process.Command{Path: "/opt/es/bin/certgen"}, 0, time.Second)
	m.RecordError(engine.NewPermanentError("boom", nil).WithCode(engine.ErrCodeTimeout))
	m.RecordError(errors.New("plain"))

	text := exposition(t, m)
	for _, outcome := range []string{"error", "unavailable", "ready"} {
		assertSample(t, text, `esinstall_readiness_attempts_total{outcome="`+outcome+`"} 1`)
	}
	assertSample(t, text, `esinstall_http_requests_total{code="200",method="PUT",path="/_xpack/license"} 1`)
	assertSample(t, text, `esinstall_process_runs_total{executable="certgen",exit_code="0"} 1`)
	assertSample(t, text, `esinstall_errors_total{class="permanent",code="TIMEOUT"} 1`)
	assertSample(t, text, `esinstall_errors_total{class="unclassified",code="UNKNOWN"} 1`)
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	m.TaskCompleted(engine.PhaseCommit, "x", engine.TaskStatusFailed, 0)
	m.RecordHTTPRequest("GET", "/", 200, 0)
	if m.Registry() != nil {
		t.Error("disabled metrics must not own a registry")
	}
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteTextfile on disabled metrics: %v", err)
	}
}

func TestShutdownWritesTextfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = filepath.Join(t.TempDir(), "install.log")
	cfg.Metrics.TextfilePath = filepath.Join(t.TempDir(), "esinstall.prom")

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	tel.Metrics.PhaseCompleted(engine.PhaseCommit, engine.PhaseStatusSucceeded, time.Second)

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	data, err := os.ReadFile(cfg.Metrics.TextfilePath)
	if err != nil {
		t.Fatalf("textfile not written: %v", err)
	}
	if !strings.Contains(string(data), `esinstall_phases_completed_total{phase="commit",status="succeeded"} 1`) {
		t.Errorf("unexpected textfile:\n%s", data)
	}
}

func TestInstrumentRunner(t *testing.T) {
	cfg := DefaultConfig()
	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatal(err)
	}
	r := tel.InstrumentRunner(process.NewRunner(zerolog.Nop()))
	if r.Observe == nil {
		t.Fatal("runner not instrumented")
	}
	r.Observe(process.Command{Path: "java"}, 1, time.Millisecond)
	assertSample(t, exposition(t, tel.Metrics), `esinstall_process_runs_total{executable="java",exit_code="1"} 1`)
}

func TestLoggerWithPhase(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{zlog: zerolog.New(&buf).Level(zerolog.DebugLevel)}
	phaseLog := base.NewComponentLogger("esinstall").WithPhase("install", "run-7")

	phaseLog.Infof("Phase completed in %s", 3*time.Second)
	phaseLog.Errorf("Phase failed after %s", time.Second)
	base.Debugf("Progress %d%%", 50)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %q", len(lines), buf.String())
	}
	for _, line := range lines[:2] {
		for _, field := range []string{`"component":"esinstall"`, `"phase":"install"`, `"run_id":"run-7"`} {
			if !strings.Contains(line, field) {
				t.Errorf("line %s missing %s", line, field)
			}
		}
	}
	if !strings.Contains(lines[0], `"level":"info"`) || !strings.Contains(lines[0], "Phase completed in 3s") {
		t.Errorf("unexpected info line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"error"`) {
		t.Errorf("unexpected error line: %s", lines[1])
	}
	if strings.Contains(lines[2], "run_id") || !strings.Contains(lines[2], "Progress 50%") {
		t.Errorf("unexpected debug line: %s", lines[2])
	}
}
