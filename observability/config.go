package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/CoReason-AI/omopcloudetl-core/version"
)

// Config is the telemetry section of a project file. Traces and metrics
// share one OTLP/HTTP collector and one resource.
type Config struct {
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version"`
	Environment    string `mapstructure:"environment" yaml:"environment"`
	// Endpoint is the collector host:port.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`

	Traces  TracesConfig  `mapstructure:"traces" yaml:"traces"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type TracesConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// SampleRate is the fraction of compilations traced, 0 to 1.
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

const (
	DefaultEndpoint       = "localhost:4318"
	DefaultEnvironment    = "development"
	DefaultExportInterval = 15 * time.Second
)

// ApplyDefaults fills unset fields. Export stays off unless enabled.
func (c *Config) ApplyDefaults(serviceName string) {
	if c.ServiceName == "" {
		c.ServiceName = serviceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = version.Get().Version
	}
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
		c.Insecure = true
	}
	if c.Traces.SampleRate == 0 {
		c.Traces.SampleRate = 1
	}
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = DefaultExportInterval
	}
}

func (c *Config) Validate() error {
	if c.Traces.SampleRate < 0 || c.Traces.SampleRate > 1 {
		return fmt.Errorf("telemetry.traces.sample_rate must be between 0 and 1 (got: %v)", c.Traces.SampleRate)
	}
	return nil
}

func (c *Config) resource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String(AttrServiceName, c.ServiceName),
			attribute.String(AttrServiceVersion, c.ServiceVersion),
			attribute.String(AttrEnvironment, c.Environment),
		),
	)
}
