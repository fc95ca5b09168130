package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/stores"
)

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("ESINSTALL_LOG_LEVEL", "error")

	cmd := newRootCommand("test", "none", "today")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestPhaseRunRecord(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &engine.PhaseRun{
		ID:          "run-1",
		Phase:       engine.PhaseInstall,
		Status:      engine.PhaseStatusFailed,
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
		Duration:    2 * time.Second,
		Err:         errors.New("StartService: not registered"),
		Tasks: []engine.TaskResult{
			{Name: "StoreTemporaryState", Status: engine.TaskStatusSucceeded, StartedAt: started, Duration: 30 * time.Millisecond},
			{Name: "InstallCerts", Status: engine.TaskStatusSkipped},
			{Name: "StartService", Status: engine.TaskStatusFailed, StartedAt: started, Error: "not registered"},
		},
	}

	rec := phaseRunRecord(run, "6.2.0")
	if rec.ID != "run-1" || rec.Phase != "install" || rec.Status != "failed" || rec.Version != "6.2.0" {
		t.Errorf("record = %+v", rec)
	}
	if rec.DurationMS != 2000 || rec.CompletedAt == nil || rec.Error == nil {
		t.Errorf("timing or error missing: %+v", rec)
	}
	if len(rec.Tasks) != 3 {
		t.Fatalf("tasks = %d", len(rec.Tasks))
	}

	skipped := rec.Tasks[1]
	if skipped.Position != 1 || skipped.StartedAt != nil || skipped.Error != nil {
		t.Errorf("skipped task = %+v", skipped)
	}
	failed := rec.Tasks[2]
	if failed.PhaseRunID != "run-1" || failed.Error == nil || *failed.Error != "not registered" {
		t.Errorf("failed task = %+v", failed)
	}
	if rec.Tasks[0].ID == rec.Tasks[2].ID {
		t.Error("task rows need distinct ids")
	}
}

func TestJournalRecorderStampsTraceID(t *testing.T) {
	ctx := context.Background()
	journal, err := openJournal(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("openJournal: %v", err)
	}
	defer journal.Close()

	provider := sdktrace.NewTracerProvider()
	defer func() { _ = provider.Shutdown(ctx) }()

	spanCtx, span := provider.Tracer("test").Start(ctx, "phase.validate")
	defer span.End()

	rec := &journalRecorder{journal: journal, version: "6.2.0"}
	traced := &engine.PhaseRun{ID: "traced", Phase: engine.PhaseValidate, Status: engine.PhaseStatusSucceeded}
	untraced := &engine.PhaseRun{ID: "untraced", Phase: engine.PhaseValidate, Status: engine.PhaseStatusSucceeded}

	if err := rec.RecordPhase(spanCtx, traced); err != nil {
		t.Fatalf("RecordPhase traced: %v", err)
	}
	if err := rec.RecordPhase(ctx, untraced); err != nil {
		t.Fatalf("RecordPhase untraced: %v", err)
	}

	got, err := journal.GetPhaseRun(ctx, "traced")
	if err != nil {
		t.Fatalf("GetPhaseRun: %v", err)
	}
	if want := span.SpanContext().TraceID().String(); got.TraceID != want {
		t.Errorf("trace id = %q, want %q", got.TraceID, want)
	}

	got, err = journal.GetPhaseRun(ctx, "untraced")
	if err != nil {
		t.Fatalf("GetPhaseRun: %v", err)
	}
	if got.TraceID != "" {
		t.Errorf("untraced run has trace id %q", got.TraceID)
	}
}

func TestLoadModelOverrides(t *testing.T) {
	t.Cleanup(func() { overrides, modelPath, tempDir = nil, "", "" })

	modelPath = filepath.Join(t.TempDir(), "install.yaml")
	writeModel(t, modelPath)
	overrides = []string{"node.http_port=9300", "xpack.license=trial"}
	tempDir = "/var/tmp/esinstall"

	m, err := loadModel()
	if err != nil {
		t.Fatalf("loadModel() error = %v", err)
	}
	if m.Node.HTTPPort != 9300 || m.XPack.License != model.LicenseTrial {
		t.Errorf("overrides not applied: port=%d license=%s", m.Node.HTTPPort, m.XPack.License)
	}
	if m.Locations.TempDir != "/var/tmp/esinstall" {
		t.Errorf("temp dir = %q", m.Locations.TempDir)
	}

	overrides = []string{"missing-equals"}
	if _, err := loadModel(); !engine.HasCode(err, engine.ErrCodeValidation) {
		t.Errorf("bad override: %v", err)
	}

	overrides = nil
	modelPath = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := loadModel(); !engine.HasCode(err, engine.ErrCodeValidation) {
		t.Errorf("missing model file: %v", err)
	}
}

func TestTelemetryConfig(t *testing.T) {
	t.Cleanup(func() { traceExporter, traceEndpoint, logFormat, logFile = "none", "", "console", "" })

	tests := []struct {
		name     string
		env      string
		exporter string
		wantLvl  string
		wantOn   bool
	}{
		{name: "defaults", exporter: "none", wantLvl: "info"},
		{name: "env level", env: "DEBUG", exporter: "none", wantLvl: "debug"},
		{name: "stdout tracing", exporter: "stdout", wantLvl: "info", wantOn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ESINSTALL_LOG_LEVEL", tt.env)
			t.Setenv("LOG_LEVEL", "")
			traceExporter = tt.exporter
			logFormat = "json"
			logFile = filepath.Join(t.TempDir(), "esinstall.log")

			cfg := telemetryConfig()
			if cfg.Logging.Level != tt.wantLvl {
				t.Errorf("level = %s, want %s", cfg.Logging.Level, tt.wantLvl)
			}
			if cfg.Tracing.Enabled != tt.wantOn {
				t.Errorf("tracing enabled = %v", cfg.Tracing.Enabled)
			}
			if cfg.Logging.Output != logFile || cfg.Logging.Format != "json" {
				t.Errorf("logging = %+v", cfg.Logging)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestStateCommand(t *testing.T) {
	base := t.TempDir()
	store := stores.NewTempDirectory(base, model.DefaultProductName).StateStore(zerolog.Nop())
	_ = store.WriteBool(stores.KeyServiceRunning, true)
	_ = store.WriteString(stores.KeyHomeDirectoryMachineVariable, `C:\es`)
	_ = store.WriteString("Scratch", "left over")

	out, _, err := runRoot(t, "state", "--temp-dir", base)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	for _, want := range []string{
		"ServiceRunning = True",
		`HomeDirectoryMachineVariable = C:\es`,
		"Scratch = left over (unknown key)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, stores.KeySeesService) {
		t.Errorf("absent key listed:\n%s", out)
	}
}

func TestStateCommandEmpty(t *testing.T) {
	out, _, err := runRoot(t, "state", "--temp-dir", t.TempDir(), "--json")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var dump struct {
		Directory string            `json:"directory"`
		Values    map[string]string `json:"values"`
	}
	if err := json.Unmarshal([]byte(out), &dump); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if !strings.HasSuffix(dump.Directory, "Elasticsearch_Installation") || len(dump.Values) != 0 {
		t.Errorf("dump = %+v", dump)
	}
}

func TestValidateFailureIsJournaled(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	// The default model has no locations, so validation fails.
	out, errOut, err := runRoot(t, "validate", "--temp-dir", t.TempDir(), "--journal-db", db)
	if !engine.HasCode(err, engine.ErrCodeValidation) {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(errOut, engine.FailureHeader) {
		t.Errorf("stderr missing fault header:\n%s", errOut)
	}
	if !strings.Contains(out, "Existing Version Installed: false") {
		t.Errorf("session output:\n%s", out)
	}

	out, _, err = runRoot(t, "journal", "--db", db, "--phase", "validate", "--json")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	var runs []stores.PhaseRunRecord
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if len(runs) != 1 || runs[0].Status != "failed" || runs[0].Error == nil {
		t.Fatalf("runs = %+v", runs)
	}

	out, _, err = runRoot(t, "journal", "--db", db, "--id", runs[0].ID)
	if err != nil {
		t.Fatalf("journal --id: %v", err)
	}
	for _, want := range []string{"ValidateArguments", "ProbeJavaRuntime", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("run detail missing %q:\n%s", want, out)
		}
	}
}

func TestJournalCommandErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	if _, _, err := runRoot(t, "journal"); err == nil {
		t.Error("journal without --db should fail")
	}
	if _, _, err := runRoot(t, "journal", "--db", db, "--phase", "upgrade"); err == nil {
		t.Error("unknown phase filter should fail")
	}

	out, _, err := runRoot(t, "journal", "--db", db)
	if err != nil || !strings.Contains(out, "No phase runs recorded") {
		t.Errorf("empty journal = %q, %v", out, err)
	}
}

func writeModel(t *testing.T, path string) {
	t.Helper()
	dir := t.TempDir()
	doc := `product_name: Elasticsearch
version: 6.2.0
locations:
  install_dir: ` + filepath.Join(dir, "es") + `
  config_dir: ` + filepath.Join(dir, "config") + `
  data_dir: ` + filepath.Join(dir, "data") + `
  logs_dir: ` + filepath.Join(dir, "logs") + `
node:
  cluster_name: test
  http_port: 9200
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}
