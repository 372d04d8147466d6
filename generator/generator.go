// Package generator declares the contracts dialect plugins implement.
//
// A dialect turns a parsed DML definition into one idempotent transform
// statement and a CDM catalog into DDL for a target schema. The compiler
// depends only on these interfaces; implementations live in plugin
// packages that register themselves with the plugins package.
package generator

import (
	"github.com/CoReason-AI/omopcloudetl-core/dml"
	"github.com/CoReason-AI/omopcloudetl-core/specification"
)

// SQLGenerator renders DML definitions for one dialect.
type SQLGenerator interface {
	// GenerateTransformSQL returns a single idempotent statement (for
	// example a MERGE) for def. vars holds the compilation context:
	// schemas, execution_id and workflow.
	GenerateTransformSQL(def *dml.Definition, vars map[string]any) (string, error)
}

// DDLGenerator renders CDM catalogs for one dialect.
type DDLGenerator interface {
	// GenerateDDL returns the statements creating spec's tables in schema.
	GenerateDDL(spec *specification.CDMSpecification, schema string, opts map[string]any) ([]string, error)
}

// Dialect bundles the generators of one SQL dialect.
type Dialect interface {
	Name() string
	SQLGenerator() SQLGenerator
	DDLGenerator() DDLGenerator
}

// SQLGeneratorFunc adapts a function to SQLGenerator.
type SQLGeneratorFunc func(def *dml.Definition, vars map[string]any) (string, error)

// GenerateTransformSQL calls f.
func (f SQLGeneratorFunc) GenerateTransformSQL(def *dml.Definition, vars map[string]any) (string, error) {
	return f(def, vars)
}

// DDLGeneratorFunc adapts a function to DDLGenerator.
type DDLGeneratorFunc func(spec *specification.CDMSpecification, schema string, opts map[string]any) ([]string, error)

// GenerateDDL calls f.
func (f DDLGeneratorFunc) GenerateDDL(spec *specification.CDMSpecification, schema string, opts map[string]any) ([]string, error) {
	return f(spec, schema, opts)
}

type dialect struct {
	name string
	sql  SQLGenerator
	ddl  DDLGenerator
}

// NewDialect returns a Dialect made of the given generators.
func NewDialect(name string, sql SQLGenerator, ddl DDLGenerator) Dialect {
	return &dialect{name: name, sql: sql, ddl: ddl}
}

func (d *dialect) Name() string               { return d.name }
func (d *dialect) SQLGenerator() SQLGenerator { return d.sql }
func (d *dialect) DDLGenerator() DDLGenerator { return d.ddl }
