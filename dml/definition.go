package dml

import (
	"go.yaml.in/yaml/v3"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/validation"
)

// JoinType is the SQL join kind of a Join.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// SourceTable is a table read by a transformation. SchemaRef names a schema
// in the project schema mapping.
type SourceTable struct {
	Table     string `yaml:"table" json:"table" validate:"required"`
	Alias     string `yaml:"alias" json:"alias" validate:"required"`
	SchemaRef string `yaml:"schema_ref" json:"schema_ref" validate:"required"`
}

// Join adds a source table to a transformation.
type Join struct {
	Target      SourceTable `yaml:"target" json:"target"`
	OnCondition string      `yaml:"on_condition" json:"on_condition" validate:"required"`
	Type        JoinType    `yaml:"type" json:"type" validate:"oneof=inner left right full"`
}

// UnmarshalYAML decodes a join, defaulting Type to left.
func (j *Join) UnmarshalYAML(node *yaml.Node) error {
	type rawJoin Join
	raw := rawJoin{Type: JoinLeft}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*j = Join(raw)
	return nil
}

// Definition is a complete DML transformation.
type Definition struct {
	TargetTable     string      `yaml:"target_table" json:"target_table" validate:"required"`
	TargetSchemaRef string      `yaml:"target_schema_ref" json:"target_schema_ref" validate:"required"`
	IdempotencyKeys []string    `yaml:"idempotency_keys" json:"idempotency_keys" validate:"min=1,dive,required"`
	PrimarySource   SourceTable `yaml:"primary_source" json:"primary_source"`
	Joins           []Join      `yaml:"joins,omitempty" json:"joins,omitempty" validate:"dive"`
	WhereClause     string      `yaml:"where_clause,omitempty" json:"where_clause,omitempty"`
	Mappings        Mappings    `yaml:"mappings" json:"mappings" validate:"min=1"`
}

// Parse decodes and validates a DML definition from YAML.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Validation("malformed DML definition").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition and every mapping in it.
func (d *Definition) Validate() error {
	r := validation.NewReport()
	r.Merge("", validation.Validate(d))
	for i, m := range d.Mappings {
		field := validation.Item("mappings", i)
		if m == nil {
			r.Add(field, "is required")
			continue
		}
		r.Merge(field, validation.Validate(m))
	}
	if err := r.Err(); err != nil {
		return err
	}
	return nil
}

// SchemaRefs returns every schema reference the definition uses: the target
// first, then the primary source and joins in order, without duplicates.
func (d *Definition) SchemaRefs() []string {
	refs := make([]string, 0, 2+len(d.Joins))
	seen := make(map[string]struct{}, cap(refs))
	add := func(ref string) {
		if _, ok := seen[ref]; ok || ref == "" {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	add(d.TargetSchemaRef)
	add(d.PrimarySource.SchemaRef)
	for _, j := range d.Joins {
		add(j.Target.SchemaRef)
	}
	return refs
}

// TargetFields returns the mapped target fields in mapping order.
func (d *Definition) TargetFields() []string {
	fields := make([]string, 0, len(d.Mappings))
	for _, m := range d.Mappings {
		fields = append(fields, m.Target())
	}
	return fields
}
