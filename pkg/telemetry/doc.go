// Package telemetry provides the observability stack for installer phases.
//
// It combines structured logging (zerolog, with lumberjack rotation for file
// output), distributed tracing (OpenTelemetry) and Prometheus metrics behind
// one Telemetry value built from a Config.
//
// # Usage
//
// Initialize telemetry at process start:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Output = "/var/log/esinstall/install.log"
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/esinstall.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// # Session sink
//
// Session implements engine.Session. Tasks write their log lines and
// progress ticks to it, and it forwards them to the logger and, optionally,
// to a plain writer the host installer reads:
//
//	session := telemetry.NewSession(tel.Logger.Zerolog(), os.Stdout)
//
// # Metrics
//
// Metrics implements engine.Observer and records phase and task outcomes.
// InstrumentRunner and InstrumentClient hook process runs, readiness
// attempts and provisioning requests into the same registry.
//
// Phases are short-lived processes, so metrics are not served over HTTP.
// Shutdown writes the registry to Config.Metrics.TextfilePath in the text
// exposition format for the node_exporter textfile collector.
//
// # Tracing
//
// The orchestrator opens one span per phase and one per task on the tracer
// returned by Tracer.Tracer. Supported exporters are otlp (gRPC), stdout and
// none.
package telemetry
