package config

import (
	"maps"
	"strings"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/observability"
	"github.com/CoReason-AI/omopcloudetl-core/specification"
	"github.com/CoReason-AI/omopcloudetl-core/validation"
)

// ServiceName tags logs and telemetry.
const ServiceName = "omopetl"

// ProjectConfig is the root of a project file.
type ProjectConfig struct {
	Connection    ConnectionConfig     `yaml:"connection" mapstructure:"connection"`
	Orchestrator  OrchestratorConfig   `yaml:"orchestrator" mapstructure:"orchestrator"`
	Schemas       map[string]string    `yaml:"schemas" mapstructure:"schemas" validate:"required"`
	Secrets       *SecretsConfig       `yaml:"secrets,omitempty" mapstructure:"secrets"`
	Specification specification.Config `yaml:"specification" mapstructure:"specification"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Telemetry     observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ConnectionConfig describes the target warehouse connection. The core
// never opens it; it is handed to the connection plugin untouched.
type ConnectionConfig struct {
	ProviderType     string         `yaml:"provider_type" mapstructure:"provider_type" validate:"required"`
	Host             string         `yaml:"host,omitempty" mapstructure:"host"`
	User             string         `yaml:"user,omitempty" mapstructure:"user"`
	Password         Secret         `yaml:"password,omitempty" mapstructure:"password"`
	PasswordSecretID string         `yaml:"password_secret_id,omitempty" mapstructure:"password_secret_id"`
	ExtraSettings    map[string]any `yaml:"extra_settings,omitempty" mapstructure:"extra_settings"`
}

// OrchestratorConfig names the orchestrator plugin and its settings.
type OrchestratorConfig struct {
	Type          string         `yaml:"type" mapstructure:"type" validate:"required"`
	Configuration map[string]any `yaml:"configuration,omitempty" mapstructure:"configuration"`
}

// SecretsConfig names the secrets provider and its settings.
type SecretsConfig struct {
	ProviderType  string         `yaml:"provider_type" mapstructure:"provider_type" validate:"required"`
	Configuration map[string]any `yaml:"configuration,omitempty" mapstructure:"configuration"`
}

// ApplyDefaults fills unset ambient settings.
func (c *ProjectConfig) ApplyDefaults() {
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = ServiceName
	}
	c.Logging.ApplyDefaults()
	c.Specification.ApplyDefaults()
	c.Telemetry.ApplyDefaults(ServiceName)
}

// Validate checks required fields and cross-field rules. Failures are
// CONFIGURATION_ERROR.
func (c *ProjectConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return errors.ConfigurationError("configuration validation failed", err).
			WithDetails(detailsOf(err))
	}
	conn := c.Connection
	if conn.PasswordSecretID != "" && conn.Password == "" && c.Secrets == nil {
		return errors.ConfigurationError(
			"a 'password_secret_id' was provided for the connection without a password, "+
				"but no 'secrets' provider configuration was found in the project file", nil)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return errors.ConfigurationError(err.Error(), err)
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.ConfigurationError(err.Error(), err)
	}
	return c.Specification.Validate()
}

// Schema resolves a logical schema reference to its physical name. A ref
// mapped to a blank name is treated as unmapped.
func (c *ProjectConfig) Schema(ref string) (string, error) {
	name, ok := c.Schemas[ref]
	if !ok || strings.TrimSpace(name) == "" {
		return "", errors.SchemaRefNotFound(ref)
	}
	return name, nil
}

// Clone returns a copy of c whose maps can be modified independently.
// Values inside the free-form settings maps are copied one level deep.
func (c *ProjectConfig) Clone() *ProjectConfig {
	out := *c
	out.Schemas = maps.Clone(c.Schemas)
	out.Connection.ExtraSettings = maps.Clone(c.Connection.ExtraSettings)
	out.Orchestrator.Configuration = maps.Clone(c.Orchestrator.Configuration)
	if c.Secrets != nil {
		s := *c.Secrets
		s.Configuration = maps.Clone(c.Secrets.Configuration)
		out.Secrets = &s
	}
	return &out
}

func detailsOf(err error) map[string]any {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Details
	}
	return nil
}
