// Package telemetry provides OpenTelemetry tracing and metrics for concord.
//
// Spans and counters are exported over OTLP (gRPC by default, HTTP/protobuf
// optionally) to a collector. Telemetry is disabled by default; when
// disabled, Tracer and Meter fall back to the global no-op providers, so
// instrumented components never need to check.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("concord/orchestrator")
//	ctx, span := tracer.Start(ctx, "orchestrator.run")
//	defer span.End()
//
// # Testing
//
// NewTestTelemetry records spans in memory and exposes a manual metric
// reader:
//
//	tt := telemetry.NewTestTelemetry()
//	... run code with tt.Telemetry ...
//	tt.AssertSpanExists(t, "execution.dispatch")
//	tt.AssertCounter(t, "concord.execution.dispatches_total", 1)
package telemetry
