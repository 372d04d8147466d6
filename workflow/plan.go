package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CompiledStep is one executable step of a plan. The set of implementations
// is closed: CompiledSQLStep and CompiledBulkLoadStep.
type CompiledStep interface {
	StepName() string
	Dependencies() []string
	Kind() StepKind
	isCompiledStep()
}

// CompiledSQLStep carries fully rendered, tagged statements in execution order.
type CompiledSQLStep struct {
	Name          string   `json:"name"`
	DependsOn     []string `json:"depends_on"`
	SQLStatements []string `json:"sql_statements"`
}

// CompiledBulkLoadStep carries the resolved parameters of a bulk load.
type CompiledBulkLoadStep struct {
	Name                string         `json:"name"`
	DependsOn           []string       `json:"depends_on"`
	SourceURI           string         `json:"source_uri"`
	TargetSchema        string         `json:"target_schema"`
	TargetTable         string         `json:"target_table"`
	SourceFormatOptions map[string]any `json:"source_format_options"`
	LoadOptions         map[string]any `json:"load_options"`
}

func (s *CompiledSQLStep) StepName() string      { return s.Name }
func (s *CompiledBulkLoadStep) StepName() string { return s.Name }

func (s *CompiledSQLStep) Dependencies() []string      { return s.DependsOn }
func (s *CompiledBulkLoadStep) Dependencies() []string { return s.DependsOn }

func (*CompiledSQLStep) Kind() StepKind      { return StepSQL }
func (*CompiledBulkLoadStep) Kind() StepKind { return StepBulkLoad }

func (*CompiledSQLStep) isCompiledStep()      {}
func (*CompiledBulkLoadStep) isCompiledStep() {}

// MarshalJSON writes the step with its type discriminator.
func (s *CompiledSQLStep) MarshalJSON() ([]byte, error) {
	type plain CompiledSQLStep
	return json.Marshal(struct {
		Type StepKind `json:"type"`
		plain
	}{StepSQL, plain(*s)})
}

// MarshalJSON writes the step with its type discriminator.
func (s *CompiledBulkLoadStep) MarshalJSON() ([]byte, error) {
	type plain CompiledBulkLoadStep
	return json.Marshal(struct {
		Type StepKind `json:"type"`
		plain
	}{StepBulkLoad, plain(*s)})
}

// CompiledSteps is an ordered list of compiled steps decoded by type.
type CompiledSteps []CompiledStep

// UnmarshalJSON decodes each element into the variant named by its type.
func (cs *CompiledSteps) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(CompiledSteps, 0, len(raws))
	for i, raw := range raws {
		step, err := UnmarshalCompiledStep(raw)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		out = append(out, step)
	}
	*cs = out
	return nil
}

// UnmarshalCompiledStep decodes one compiled step using its type field.
func UnmarshalCompiledStep(data []byte) (CompiledStep, error) {
	var head struct {
		Type StepKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case StepSQL:
		var s CompiledSQLStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case StepBulkLoad:
		var s CompiledBulkLoadStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("unknown compiled step type %q", head.Type)
	}
}

// CompiledPlan is the execution-ready output of compilation. A plan is built
// once and must not be modified afterwards.
type CompiledPlan struct {
	ExecutionID     uuid.UUID      `json:"execution_id"`
	WorkflowName    string         `json:"workflow_name"`
	Concurrency     int            `json:"concurrency"`
	Steps           CompiledSteps  `json:"steps"`
	ContextSnapshot map[string]any `json:"context_snapshot"`
}

// Step returns the compiled step with the given name.
func (p *CompiledPlan) Step(name string) (CompiledStep, bool) {
	for _, s := range p.Steps {
		if s.StepName() == name {
			return s, true
		}
	}
	return nil, false
}

// StatementCount returns the number of SQL statements across all steps.
func (p *CompiledPlan) StatementCount() int {
	n := 0
	for _, s := range p.Steps {
		if sql, ok := s.(*CompiledSQLStep); ok {
			n += len(sql.SQLStatements)
		}
	}
	return n
}
