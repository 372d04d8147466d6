package compiler

import (
	"context"
	"io/fs"
	"maps"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CoReason-AI/omopcloudetl-core/config"
	"github.com/CoReason-AI/omopcloudetl-core/dag"
	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/generator"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/observability"
	"github.com/CoReason-AI/omopcloudetl-core/specification"
	"github.com/CoReason-AI/omopcloudetl-core/workflow"
)

// Rendering context keys.
const (
	KeySchemas     = "schemas"
	KeyExecutionID = "execution_id"
	KeyWorkflow    = "workflow"
	KeyStep        = "step"
)

// Compiler compiles workflows against one project configuration. It holds
// no per-compilation state and may be reused.
type Compiler struct {
	project *config.ProjectConfig
	sqlGen  generator.SQLGenerator
	ddlGen  generator.DDLGenerator
	specs   specification.Resolver
	log     *logger.Logger
	tracer  trace.Tracer
	metrics *observability.CompileMetrics
	newID   func() uuid.UUID
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(c *Compiler) { c.log = l.WithComponent("compiler") }
}

// WithTracer sets the tracer. The default uses the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Compiler) { c.tracer = t }
}

// WithMetrics sets the metrics sink. The default records nothing.
func WithMetrics(m *observability.CompileMetrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithIDGenerator replaces the execution id source.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(c *Compiler) { c.newID = fn }
}

// New creates a Compiler. Generators and the resolver may be nil when the
// workflows compiled never need them.
func New(project *config.ProjectConfig, sqlGen generator.SQLGenerator, ddlGen generator.DDLGenerator,
	specs specification.Resolver, opts ...Option) *Compiler {
	c := &Compiler{
		project: project,
		sqlGen:  sqlGen,
		ddlGen:  ddlGen,
		specs:   specs,
		log:     logger.Nop(),
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles wf into a plan. Step files are resolved against base.
func (c *Compiler) Compile(ctx context.Context, wf *workflow.Config, base fs.FS) (plan *workflow.CompiledPlan, err error) {
	if wf == nil {
		return nil, errors.WorkflowValidation("workflow is required")
	}
	if c.project == nil {
		return nil, errors.ConfigurationError("compiler has no project configuration", nil)
	}

	ctx, op := observability.StartOperation(ctx, c.tracer, observability.SpanCompileWorkflow,
		attribute.String(observability.AttrWorkflow, wf.WorkflowName),
		attribute.Int(observability.AttrStepCount, len(wf.Steps)),
	)
	defer func() {
		status := op.End(err)
		c.metrics.RecordCompile(ctx, wf.WorkflowName, status, op.Duration())
	}()

	if err := dag.Validate(dagSteps(wf.Steps)); err != nil {
		c.metrics.RecordError(ctx, observability.ErrorCode(err), "")
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		c.metrics.RecordError(ctx, observability.ErrorCode(err), "")
		return nil, err
	}

	executionID := c.newID()
	op.Span().SetAttributes(attribute.String(observability.AttrExecutionID, executionID.String()))
	vars := map[string]any{
		KeySchemas:     maps.Clone(c.project.Schemas),
		KeyExecutionID: executionID.String(),
		KeyWorkflow:    wf.WorkflowName,
	}
	if vars[KeySchemas] == nil {
		vars[KeySchemas] = map[string]string{}
	}

	log := c.log.WithExecution(executionID.String(), wf.WorkflowName)

	steps := make(workflow.CompiledSteps, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		compiled, err := c.compileStep(ctx, log, step, vars, base)
		if err != nil {
			return nil, err
		}
		steps = append(steps, compiled)
	}

	plan = &workflow.CompiledPlan{
		ExecutionID:     executionID,
		WorkflowName:    wf.WorkflowName,
		Concurrency:     wf.Concurrency,
		Steps:           steps,
		ContextSnapshot: cloneVars(vars),
	}
	log.Info("workflow compiled", logger.Fields(
		"steps", len(steps),
		logger.FieldStatements, plan.StatementCount(),
		logger.FieldDuration, op.Duration().Milliseconds(),
	))
	return plan, nil
}

func (c *Compiler) compileStep(ctx context.Context, log *logger.Logger, step workflow.Step, vars map[string]any,
	base fs.FS) (compiled workflow.CompiledStep, err error) {
	kind := string(step.Kind())
	log = log.WithStep(step.Name, kind)
	ctx, op := observability.StartOperation(ctx, c.tracer, observability.SpanCompileStepPrefix+kind,
		attribute.String(observability.AttrStep, step.Name),
		attribute.String(observability.AttrStepType, kind),
	)
	defer func() {
		statements := statementCount(compiled)
		status := op.End(err, attribute.Int(observability.AttrStatements, statements))
		c.metrics.RecordStep(ctx, kind, status, statements)
	}()

	tag := map[string]any{
		KeyExecutionID: vars[KeyExecutionID],
		KeyWorkflow:    vars[KeyWorkflow],
		KeyStep:        step.Name,
	}
	s := stepContext{Step: step, vars: vars, tag: tag, base: base}

	switch spec := step.Spec.(type) {
	case workflow.DMLStep:
		compiled, err = c.compileDML(s, spec)
	case *workflow.DMLStep:
		compiled, err = c.compileDML(s, *spec)
	case workflow.DDLStep:
		compiled, err = c.compileDDL(ctx, s, spec)
	case *workflow.DDLStep:
		compiled, err = c.compileDDL(ctx, s, *spec)
	case workflow.SQLStep:
		compiled, err = c.compileSQL(s, spec)
	case *workflow.SQLStep:
		compiled, err = c.compileSQL(s, *spec)
	case workflow.BulkLoadStep:
		compiled, err = c.compileBulkLoad(s, spec)
	case *workflow.BulkLoadStep:
		compiled, err = c.compileBulkLoad(s, *spec)
	default:
		err = errors.WorkflowValidation("unsupported step type")
	}
	if err != nil {
		c.metrics.RecordError(ctx, observability.ErrorCode(err), kind)
		err = errors.CompilationFailed(step.Name, kind, err)
		log.WithError(err).Error("step compilation failed")
		return nil, err
	}

	log.Debug("step compiled", logger.Fields(logger.FieldStatements, statementCount(compiled)))
	return compiled, nil
}

func dagSteps(steps []workflow.Step) []dag.Step {
	out := make([]dag.Step, len(steps))
	for i, s := range steps {
		out[i] = s
	}
	return out
}

func statementCount(s workflow.CompiledStep) int {
	if sql, ok := s.(*workflow.CompiledSQLStep); ok {
		return len(sql.SQLStatements)
	}
	return 0
}

// cloneVars copies the rendering context so callers cannot reach the
// schema mapping through it.
func cloneVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		if m, ok := v.(map[string]string); ok {
			v = maps.Clone(m)
		}
		out[k] = v
	}
	return out
}
