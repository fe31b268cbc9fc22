// Package telemetry sets up OpenTelemetry tracing and metrics for chatmatch.
//
// Spans and OTel metrics are exported over OTLP/gRPC. When telemetry is
// disabled the global no-op providers stay in place, so instrumented code
// never needs to check whether it is on.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSection(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Exporter failures at startup do not stop the daemon. The instance is
// marked degraded instead and Health reports it.
package telemetry
