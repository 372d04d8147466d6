package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/CoReason-AI/omopcloudetl-core/logger"
)

// InitMeter exports metrics to the configured collector every
// cfg.Metrics.Interval and installs the provider globally.
func InitMeter(ctx context.Context, cfg Config, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Metrics.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Metrics.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if log != nil {
		log.Info("meter initialized", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.Metrics.Interval.String()))
	}
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricCompileDuration = "omopetl.compile.duration"
	MetricStepsTotal      = "omopetl.compile.steps"
	MetricStatementsTotal = "omopetl.compile.statements"
	MetricErrorsTotal     = "omopetl.compile.errors"
	MetricSpecFetches     = "omopetl.specification.fetches"
)

// CompileMetrics holds the metric instruments of the compilation pipeline.
// A nil *CompileMetrics is valid and records nothing.
type CompileMetrics struct {
	compileDuration metric.Float64Histogram
	stepsTotal      metric.Int64Counter
	statementsTotal metric.Int64Counter
	errorsTotal     metric.Int64Counter
	specFetches     metric.Int64Counter
}

// NewCompileMetrics creates metric instruments on the given meter.
func NewCompileMetrics(meter metric.Meter) (*CompileMetrics, error) {
	compileDuration, err := meter.Float64Histogram(MetricCompileDuration,
		metric.WithDescription("Duration of workflow compilations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricCompileDuration, err)
	}

	stepsTotal, err := meter.Int64Counter(MetricStepsTotal,
		metric.WithDescription("Total number of compiled steps by type and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricStepsTotal, err)
	}

	statementsTotal, err := meter.Int64Counter(MetricStatementsTotal,
		metric.WithDescription("Total number of SQL statements emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricStatementsTotal, err)
	}

	errorsTotal, err := meter.Int64Counter(MetricErrorsTotal,
		metric.WithDescription("Total compilation errors by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrorsTotal, err)
	}

	specFetches, err := meter.Int64Counter(MetricSpecFetches,
		metric.WithDescription("CDM specification lookups by source and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricSpecFetches, err)
	}

	return &CompileMetrics{
		compileDuration: compileDuration,
		stepsTotal:      stepsTotal,
		statementsTotal: statementsTotal,
		errorsTotal:     errorsTotal,
		specFetches:     specFetches,
	}, nil
}

// RecordCompile records one workflow compilation.
func (m *CompileMetrics) RecordCompile(ctx context.Context, workflow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.compileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("status", status),
	))
}

// RecordStep records one compiled step and the statements it produced.
func (m *CompileMetrics) RecordStep(ctx context.Context, stepType, status string, statements int) {
	if m == nil {
		return
	}
	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step_type", stepType),
		attribute.String("status", status),
	))
	if statements > 0 {
		m.statementsTotal.Add(ctx, int64(statements), metric.WithAttributes(
			attribute.String("step_type", stepType),
		))
	}
}

// RecordError records a compilation error by code and step type.
func (m *CompileMetrics) RecordError(ctx context.Context, code, stepType string) {
	if m == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("step_type", stepType),
	))
}

// RecordSpecFetch records a specification lookup. source is "local" or
// "remote", outcome is "cache_hit", "fetched" or "error".
func (m *CompileMetrics) RecordSpecFetch(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	m.specFetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}
