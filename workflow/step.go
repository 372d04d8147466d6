package workflow

import (
	"go.yaml.in/yaml/v3"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// StepKind discriminates step variants.
type StepKind string

const (
	StepDML      StepKind = "dml"
	StepBulkLoad StepKind = "bulk_load"
	StepDDL      StepKind = "ddl"
	StepSQL      StepKind = "sql"
)

// Bulk load option groups read from BulkLoadStep.Options.
const (
	OptionSourceFormat = "source_format"
	OptionLoad         = "load"
)

// StepSpec is the type-specific body of a step. The set of implementations
// is closed: DMLStep, BulkLoadStep, DDLStep and SQLStep.
type StepSpec interface {
	Kind() StepKind
	isStepSpec()
}

// Step is one node of a workflow.
type Step struct {
	Name      string
	DependsOn []string
	Spec      StepSpec
}

// StepName returns the step name.
func (s Step) StepName() string { return s.Name }

// Dependencies returns the names of the steps s depends on.
func (s Step) Dependencies() []string { return s.DependsOn }

// Kind returns the kind of the step body, or "" when it has none.
func (s Step) Kind() StepKind {
	if s.Spec == nil {
		return ""
	}
	return s.Spec.Kind()
}

// DMLStep compiles a DML definition file.
type DMLStep struct {
	DMLFile string `yaml:"dml_file" validate:"required,relpath"`
}

// BulkLoadStep loads files matching a URI pattern into a table.
// Options holds the free-form "source_format" and "load" option groups.
type BulkLoadStep struct {
	SourceURIPattern string         `yaml:"source_uri_pattern" validate:"required"`
	TargetTable      string         `yaml:"target_table" validate:"required"`
	TargetSchemaRef  string         `yaml:"target_schema_ref" validate:"required"`
	Options          map[string]any `yaml:"options,omitempty"`
}

// DDLStep creates the CDM tables of a version in a schema.
type DDLStep struct {
	CDMVersion      string         `yaml:"cdm_version" validate:"required"`
	TargetSchemaRef string         `yaml:"target_schema_ref" validate:"required"`
	Options         map[string]any `yaml:"options,omitempty"`
}

// SQLStep runs the statements of a SQL file. SQLFile must be relative.
type SQLStep struct {
	SQLFile string `yaml:"sql_file" validate:"required,relpath"`
}

func (DMLStep) Kind() StepKind      { return StepDML }
func (BulkLoadStep) Kind() StepKind { return StepBulkLoad }
func (DDLStep) Kind() StepKind      { return StepDDL }
func (SQLStep) Kind() StepKind      { return StepSQL }

func (DMLStep) isStepSpec()      {}
func (BulkLoadStep) isStepSpec() {}
func (DDLStep) isStepSpec()      {}
func (SQLStep) isStepSpec()      {}

// OptionGroup returns the named option group of a bulk load, or an empty map.
func (s BulkLoadStep) OptionGroup(name string) map[string]any {
	group, _ := s.Options[name].(map[string]any)
	if group == nil {
		return map[string]any{}
	}
	return group
}

type stepHeader struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Type      StepKind `yaml:"type"`
}

// UnmarshalYAML decodes the common step fields and the body selected by type.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	var head stepHeader
	if err := node.Decode(&head); err != nil {
		return err
	}

	var spec StepSpec
	switch head.Type {
	case StepDML:
		var b DMLStep
		if err := node.Decode(&b); err != nil {
			return err
		}
		spec = b
	case StepBulkLoad:
		var b BulkLoadStep
		if err := node.Decode(&b); err != nil {
			return err
		}
		spec = b
	case StepDDL:
		var b DDLStep
		if err := node.Decode(&b); err != nil {
			return err
		}
		spec = b
	case StepSQL:
		var b SQLStep
		if err := node.Decode(&b); err != nil {
			return err
		}
		spec = b
	case "":
		return errors.WorkflowValidation("step is missing its type").
			WithStep(head.Name).WithDetail("line", node.Line)
	default:
		return errors.Newf(errors.ErrCodeWorkflowValidation, "unknown step type %q", head.Type).
			WithStep(head.Name).WithDetail("line", node.Line)
	}

	*s = Step{Name: head.Name, DependsOn: head.DependsOn, Spec: spec}
	if s.DependsOn == nil {
		s.DependsOn = []string{}
	}
	return nil
}

// MarshalYAML writes the step as a flat mapping with its type key.
func (s Step) MarshalYAML() (any, error) {
	node := &yaml.Node{}
	if err := node.Encode(stepHeader{Name: s.Name, DependsOn: s.DependsOn, Type: s.Kind()}); err != nil {
		return nil, err
	}
	if s.Spec == nil {
		return node, nil
	}
	body := &yaml.Node{}
	if err := body.Encode(s.Spec); err != nil {
		return nil, err
	}
	node.Content = append(node.Content, body.Content...)
	return node, nil
}
