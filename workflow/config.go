package workflow

import (
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/validation"
)

// DefaultConcurrency is used when a workflow does not set concurrency.
const DefaultConcurrency = 1

// Config is a user-defined workflow.
type Config struct {
	WorkflowName string `yaml:"workflow_name" validate:"required"`
	// Concurrency is a hint for the executor; compilation ignores it.
	Concurrency int    `yaml:"concurrency" validate:"gte=1"`
	Steps       []Step `yaml:"steps"`
}

// UnmarshalYAML decodes a workflow, defaulting Concurrency.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	raw := rawConfig{Concurrency: DefaultConcurrency}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Config(raw)
	return nil
}

// Parse decodes and validates a workflow from YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeWorkflowValidation {
			return nil, appErr
		}
		return nil, errors.WorkflowValidation("malformed workflow definition").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a workflow file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WorkflowValidation("cannot read workflow file").WithPath(path).WithCause(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Path == "" {
			appErr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks the workflow fields and every step body. Dependency
// rules are checked separately by dag.Validate.
func (c *Config) Validate() error {
	r := validation.NewReport()
	r.Merge("", validation.Validate(c))
	for i, s := range c.Steps {
		field := validation.Item("steps", i)
		r.Require(validation.Join(field, "name"), s.Name)
		if s.Spec == nil {
			r.Add(validation.Join(field, "type"), "is required")
			continue
		}
		r.Merge(field, validation.Validate(s.Spec))
		if bl, ok := s.Spec.(BulkLoadStep); ok {
			for _, group := range []string{OptionSourceFormat, OptionLoad} {
				if v, present := bl.Options[group]; present && v != nil {
					if _, isMap := v.(map[string]any); !isMap {
						r.Add(validation.Join(field, "options."+group), "must be a mapping")
					}
				}
			}
		}
	}
	if err := r.Err(); err != nil {
		return errors.WorkflowValidation(err.Message).WithDetails(err.Details).WithCause(err)
	}
	return nil
}

// StepNames returns the step names in declaration order.
func (c *Config) StepNames() []string {
	names := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		names[i] = s.Name
	}
	return names
}
