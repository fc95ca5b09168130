package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/environment"
	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/process"
	"github.com/openfroyo/esinstall/pkg/provision"
	"github.com/openfroyo/esinstall/pkg/stores"
	"github.com/openfroyo/esinstall/pkg/tasks"
	"github.com/openfroyo/esinstall/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// loadModel builds the installation model from --model and --set.
func loadModel() (*model.Installation, error) {
	m := model.New()
	if modelPath != "" {
		var err error
		if m, err = model.Load(modelPath); err != nil {
			return nil, engine.NewPermanentError("failed to load installation model", err).
				WithCode(engine.ErrCodeValidation).
				WithResource(modelPath)
		}
	}

	pairs, err := model.ParseOverrides(overrides)
	if err != nil {
		return nil, engine.NewPermanentError("invalid --set value", err).WithCode(engine.ErrCodeValidation)
	}
	if err := m.ApplyOverrides(pairs); err != nil {
		return nil, engine.NewPermanentError("invalid --set value", err).WithCode(engine.ErrCodeValidation)
	}
	if tempDir != "" {
		m.Locations.TempDir = tempDir
	}
	return m, nil
}

// telemetryConfig derives the telemetry configuration from flags and the
// environment.
func telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = installerVersion
	if level := LogLevelFromEnv(); level != "" {
		cfg.Logging.Level = level
	}
	cfg.Logging.Format = logFormat
	if logFile != "" {
		cfg.Logging.Output = logFile
	}
	cfg.Metrics.TextfilePath = metricsTextfile
	if traceExporter != "" && traceExporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = traceExporter
		cfg.Tracing.Endpoint = traceEndpoint
	}
	return cfg
}

// runtime holds everything one phase invocation needs.
type runtime struct {
	tel     *telemetry.Telemetry
	log     *telemetry.Logger
	deps    tasks.Deps
	tc      *engine.TaskContext
	orch    *engine.Orchestrator
	journal *stores.SQLiteJournal
}

func newRuntime(ctx context.Context, out io.Writer, m *model.Installation) (*runtime, error) {
	tel, err := telemetry.NewTelemetry(telemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	component := tel.Logger.NewComponentLogger("esinstall")
	logger := component.Zerolog()
	rt := &runtime{tel: tel, log: component}

	rt.deps = tasks.Deps{
		Env:      environment.NewReconciler(environment.NewSystemStore(), logger),
		Registry: environment.NewRegistryLookup(),
		Services: tasks.NewSystemServices(),
		Runner:   tel.InstrumentRunner(process.NewRunner(logger)),
		Client:   tel.InstrumentClient(provision.NewClient(m.Node.NetworkHost, m.Node.HTTPPort, logger)),
		Logger:   logger,
	}
	rt.tc = &engine.TaskContext{
		Model:   m,
		State:   stores.NewInstallState(tasks.TempDirectory(m).StateStore(logger)),
		Session: telemetry.NewSession(logger, out),
		Logger:  logger,
	}

	opts := []engine.Option{
		engine.WithObserver(tel.Metrics),
		engine.WithTracer(tel.Tracer.Tracer()),
		engine.WithProgress(func(p engine.Progress) {
			component.Debugf("Progress %.0f%% (%d/%d tasks)", p.Percent(), p.Done, p.Total)
		}),
	}
	if journalDB != "" {
		journal, err := openJournal(ctx, journalDB)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.journal = journal
		opts = append(opts, engine.WithRecorder(&journalRecorder{journal: journal, version: m.Version}))
	}
	rt.orch = engine.NewOrchestrator(logger, opts...)

	return rt, nil
}

// close releases the journal and flushes telemetry. The phase logger is
// closed by then, so failures go to the global logger.
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close phase journal")
		}
	}
	if err := rt.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}
