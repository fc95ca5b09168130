package telemetry

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/openfroyo/esinstall/pkg/process"
	"github.com/openfroyo/esinstall/pkg/provision"
)

// Telemetry combines logging, tracing and metrics for one phase process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// InstrumentRunner makes r report every finished process to the metrics.
func (t *Telemetry) InstrumentRunner(r *process.Runner) *process.Runner {
	r.Observe = t.Metrics.RecordProcess
	return r
}

// InstrumentClient makes c report readiness attempts and requests to the
// metrics.
func (t *Telemetry) InstrumentClient(c *provision.Client) *provision.Client {
	c.OnRequest = t.Metrics.RecordHTTPRequest
	c.Poll.OnAttempt = t.Metrics.RecordReadinessAttempt
	return c
}

// Shutdown flushes spans, writes the metrics textfile when configured and
// closes the log file. Every step runs even when an earlier one fails.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var result *multierror.Error

	if err := t.Tracer.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("tracer: %w", err))
	}
	if err := t.Metrics.WriteTextfile(t.Config.Metrics.TextfilePath); err != nil {
		result = multierror.Append(result, fmt.Errorf("metrics textfile: %w", err))
	}
	if err := t.Logger.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("log file: %w", err))
	}

	return result.ErrorOrNil()
}
