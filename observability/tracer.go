package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/CoReason-AI/omopcloudetl-core/logger"
)

// InstrumentationName names the tracer and meter of this module.
const InstrumentationName = "github.com/CoReason-AI/omopcloudetl-core"

// Span names.
const (
	SpanCompileWorkflow    = "compile.workflow"
	SpanCompileStepPrefix  = "compile.step."
	SpanSpecificationFetch = "specification.fetch"
)

// Attribute keys.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrEnvironment    = "deployment.environment"
	AttrWorkflow       = "omopetl.workflow"
	AttrExecutionID    = "omopetl.execution_id"
	AttrStep           = "omopetl.step"
	AttrStepType       = "omopetl.step_type"
	AttrStatements     = "omopetl.statements"
	AttrStepCount      = "omopetl.step_count"
	AttrCDMVersion     = "omopetl.cdm_version"
	AttrSpecSource     = "omopetl.spec_source"
	AttrCacheHit       = "omopetl.cache_hit"
	AttrErrorCode      = "error.code"
)

// InitTracer exports spans to the configured collector and installs the
// provider globally. Shut the provider down before exit to flush it.
func InitTracer(ctx context.Context, cfg Config, log *logger.Logger) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Traces.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if log != nil {
		log.Info("tracer initialized", logger.Fields("endpoint", cfg.Endpoint, "sample_rate", cfg.Traces.SampleRate))
	}
	return tp, nil
}

// sampler honours a parent's decision and samples root spans at rate.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
