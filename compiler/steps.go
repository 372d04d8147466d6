package compiler

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"strings"

	"github.com/CoReason-AI/omopcloudetl-core/dml"
	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/sqltools"
	"github.com/CoReason-AI/omopcloudetl-core/workflow"
)

// stepContext is what every step compiler needs besides its body.
type stepContext struct {
	workflow.Step
	vars map[string]any
	tag  map[string]any
	base fs.FS
}

func (s stepContext) dependsOn() []string {
	if s.DependsOn == nil {
		return []string{}
	}
	return append([]string(nil), s.DependsOn...)
}

func (s stepContext) tagAll(statements []string) []string {
	out := make([]string, len(statements))
	for i, stmt := range statements {
		out[i] = sqltools.ApplyQueryTag(stmt, s.tag)
	}
	return out
}

// render reads file from the workflow directory and renders it.
func (s stepContext) render(file string) (string, error) {
	if s.base == nil {
		return "", fmt.Errorf("no workflow directory to read %s from", file)
	}
	name := path.Clean(strings.ReplaceAll(file, "\\", "/"))
	content, err := fs.ReadFile(s.base, name)
	if err != nil {
		return "", errors.WorkflowValidation(fmt.Sprintf("cannot read %s", file)).
			WithPath(file).WithCause(err)
	}
	return sqltools.Render(file, string(content), s.vars)
}

func (c *Compiler) compileDML(s stepContext, step workflow.DMLStep) (workflow.CompiledStep, error) {
	rendered, err := s.render(step.DMLFile)
	if err != nil {
		return nil, errors.DMLValidation(step.DMLFile, err)
	}
	def, err := dml.Parse([]byte(rendered))
	if err != nil {
		return nil, errors.DMLValidation(step.DMLFile, err)
	}

	if c.sqlGen == nil {
		return nil, errors.GeneratorError("sql", fmt.Errorf("no SQL generator configured"))
	}
	sql, err := c.sqlGen.GenerateTransformSQL(def, cloneVars(s.vars))
	if err != nil {
		return nil, errors.GeneratorError("sql", err)
	}

	return &workflow.CompiledSQLStep{
		Name:          s.Name,
		DependsOn:     s.dependsOn(),
		SQLStatements: s.tagAll([]string{sql}),
	}, nil
}

func (c *Compiler) compileDDL(ctx context.Context, s stepContext, step workflow.DDLStep) (workflow.CompiledStep, error) {
	schema, err := c.project.Schema(step.TargetSchemaRef)
	if err != nil {
		return nil, err
	}

	if c.specs == nil {
		return nil, errors.SpecificationError("no specification resolver configured", nil)
	}
	spec, err := c.specs.Fetch(ctx, step.CDMVersion, "")
	if err != nil {
		return nil, err
	}

	if c.ddlGen == nil {
		return nil, errors.GeneratorError("ddl", fmt.Errorf("no DDL generator configured"))
	}
	opts := maps.Clone(step.Options)
	if opts == nil {
		opts = map[string]any{}
	}
	statements, err := c.ddlGen.GenerateDDL(spec, schema, opts)
	if err != nil {
		return nil, errors.GeneratorError("ddl", err)
	}

	return &workflow.CompiledSQLStep{
		Name:          s.Name,
		DependsOn:     s.dependsOn(),
		SQLStatements: s.tagAll(statements),
	}, nil
}

func (c *Compiler) compileSQL(s stepContext, step workflow.SQLStep) (workflow.CompiledStep, error) {
	rendered, err := s.render(step.SQLFile)
	if err != nil {
		return nil, err
	}
	return &workflow.CompiledSQLStep{
		Name:          s.Name,
		DependsOn:     s.dependsOn(),
		SQLStatements: s.tagAll(sqltools.SplitScript(rendered)),
	}, nil
}

func (c *Compiler) compileBulkLoad(s stepContext, step workflow.BulkLoadStep) (workflow.CompiledStep, error) {
	schema, err := c.project.Schema(step.TargetSchemaRef)
	if err != nil {
		return nil, err
	}
	uri, err := sqltools.Render("source_uri_pattern", step.SourceURIPattern, s.vars)
	if err != nil {
		return nil, err
	}
	return &workflow.CompiledBulkLoadStep{
		Name:                s.Name,
		DependsOn:           s.dependsOn(),
		SourceURI:           uri,
		TargetSchema:        schema,
		TargetTable:         step.TargetTable,
		SourceFormatOptions: maps.Clone(step.OptionGroup(workflow.OptionSourceFormat)),
		LoadOptions:         maps.Clone(step.OptionGroup(workflow.OptionLoad)),
	}, nil
}
