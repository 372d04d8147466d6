package dml

import (
	"go.yaml.in/yaml/v3"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// MappingKind discriminates the Mapping variants.
type MappingKind string

const (
	MappingDirect     MappingKind = "direct"
	MappingExpression MappingKind = "expression"
	MappingConstant   MappingKind = "constant"
)

// Mapping fills one target field. The set of implementations is closed:
// DirectMapping, ExpressionMapping and ConstantMapping.
type Mapping interface {
	Kind() MappingKind
	Target() string
	isMapping()
}

// DirectMapping copies a source column, e.g. "p.patient_id".
type DirectMapping struct {
	TargetField string `yaml:"target_field" json:"target_field" validate:"required"`
	SourceField string `yaml:"source_field" json:"source_field" validate:"required"`
}

// ExpressionMapping computes the target from a SQL expression.
type ExpressionMapping struct {
	TargetField string `yaml:"target_field" json:"target_field" validate:"required"`
	SQL         string `yaml:"sql" json:"sql" validate:"required"`
}

// ConstantMapping sets the target to a literal value. Value may be any YAML
// scalar, including null.
type ConstantMapping struct {
	TargetField string `yaml:"target_field" json:"target_field" validate:"required"`
	Value       any    `yaml:"value" json:"value"`
}

func (DirectMapping) Kind() MappingKind     { return MappingDirect }
func (ExpressionMapping) Kind() MappingKind { return MappingExpression }
func (ConstantMapping) Kind() MappingKind   { return MappingConstant }

func (m DirectMapping) Target() string     { return m.TargetField }
func (m ExpressionMapping) Target() string { return m.TargetField }
func (m ConstantMapping) Target() string   { return m.TargetField }

func (DirectMapping) isMapping()     {}
func (ExpressionMapping) isMapping() {}
func (ConstantMapping) isMapping()   {}

// MarshalYAML writes the mapping with its type key.
func (m DirectMapping) MarshalYAML() (any, error) {
	type plain DirectMapping
	return struct {
		Type  MappingKind `yaml:"type"`
		plain `yaml:",inline"`
	}{MappingDirect, plain(m)}, nil
}

// MarshalYAML writes the mapping with its type key.
func (m ExpressionMapping) MarshalYAML() (any, error) {
	type plain ExpressionMapping
	return struct {
		Type  MappingKind `yaml:"type"`
		plain `yaml:",inline"`
	}{MappingExpression, plain(m)}, nil
}

// MarshalYAML writes the mapping with its type key.
func (m ConstantMapping) MarshalYAML() (any, error) {
	type plain ConstantMapping
	return struct {
		Type  MappingKind `yaml:"type"`
		plain `yaml:",inline"`
	}{MappingConstant, plain(m)}, nil
}

// Mappings is an ordered list of mappings decoded by their type key.
type Mappings []Mapping

// UnmarshalYAML decodes each entry into the variant named by its type key.
// Entries without a type or with an unknown type are rejected.
func (ms *Mappings) UnmarshalYAML(node *yaml.Node) error {
	var nodes []yaml.Node
	if err := node.Decode(&nodes); err != nil {
		return err
	}
	out := make(Mappings, 0, len(nodes))
	for i := range nodes {
		m, err := decodeMapping(&nodes[i])
		if err != nil {
			return err
		}
		out = append(out, m)
	}
	*ms = out
	return nil
}

func decodeMapping(node *yaml.Node) (Mapping, error) {
	var head struct {
		Type MappingKind `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}

	switch head.Type {
	case MappingDirect:
		var m DirectMapping
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case MappingExpression:
		var m ExpressionMapping
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case MappingConstant:
		if !hasKey(node, "value") {
			return nil, errors.Validation("constant mapping requires a value").
				WithDetail("line", node.Line)
		}
		var m ConstantMapping
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case "":
		return nil, errors.Validation("mapping is missing its type").
			WithDetail("line", node.Line)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "unknown mapping type %q", head.Type).
			WithDetail("line", node.Line)
	}
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
