// Package observability provides OpenTelemetry tracing and metrics for the
// compilation pipeline.
//
// Both exporters share one Config and are off by default:
//
//	cfg.ApplyDefaults("omopetl")
//	tp, err := observability.InitTracer(ctx, cfg, log)
//	defer tp.Shutdown(ctx)
//
// Compilation steps are traced as Operations:
//
//	ctx, op := observability.StartOperation(ctx, tracer, observability.SpanCompileWorkflow)
//	status := op.End(err)
//	metrics.RecordCompile(ctx, workflow, status, op.Duration())
//
// Without InitTracer/InitMeter the global providers are no-ops, so library
// code can always create spans and record metrics.
package observability
