package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/CoReason-AI/omopcloudetl-core/compiler"
	"github.com/CoReason-AI/omopcloudetl-core/config"
	"github.com/CoReason-AI/omopcloudetl-core/dag"
	"github.com/CoReason-AI/omopcloudetl-core/generator"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/observability"
	"github.com/CoReason-AI/omopcloudetl-core/plugins"
	"github.com/CoReason-AI/omopcloudetl-core/specification"
	"github.com/CoReason-AI/omopcloudetl-core/workflow"
)

type compileOptions struct {
	project  string
	workflow string
	dialect  string
	envFile  string
	output   string
	levels   bool
}

// compileOutput is written when --levels is set.
type compileOutput struct {
	Plan   *workflow.CompiledPlan `json:"plan"`
	Levels [][]string             `json:"levels"`
}

func newCompileCommand() *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a workflow into an execution plan",
		Example: `  omopetl compile --project project.yaml --workflow workflows/nightly.yaml --dialect snowflake
  omopetl compile -p project.yaml -w nightly.yaml --levels -o plan.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.project, "project", "p", "project.yaml", "project configuration file")
	f.StringVarP(&opts.workflow, "workflow", "w", "", "workflow definition file")
	f.StringVarP(&opts.dialect, "dialect", "d", "", "registered SQL dialect used for dml and ddl steps")
	f.StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before the project (default: .env next to the project)")
	f.StringVarP(&opts.output, "output", "o", "", "write the plan to a file instead of stdout")
	f.BoolVar(&opts.levels, "levels", false, "include the parallel execution levels of the workflow")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

func runCompile(ctx context.Context, opts *compileOptions, stdout io.Writer) error {
	loaderOpts := []config.LoaderOption{config.WithLogger(cliLogger(nil))}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.envFile))
	}
	project, err := config.LoadProjectConfig(opts.project, loaderOpts...)
	if err != nil {
		return err
	}
	log := cliLogger(&project.Logging)

	tracer, metrics, shutdown, err := initTelemetry(ctx, project, log)
	if err != nil {
		return err
	}
	defer shutdown()

	wf, err := workflow.LoadFile(opts.workflow)
	if err != nil {
		return err
	}

	var sqlGen generator.SQLGenerator
	var ddlGen generator.DDLGenerator
	if opts.dialect != "" {
		d, err := plugins.ResolveDialect(opts.dialect, project.Connection.ExtraSettings)
		if err != nil {
			return err
		}
		sqlGen, ddlGen = d.SQLGenerator(), d.DDLGenerator()
		log.Debug("dialect resolved", logger.Fields(logger.FieldDialect, d.Name()))
	}

	specs, err := specification.NewManager(project.Specification,
		specification.WithLogger(log),
		specification.WithTracer(tracer),
		specification.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := specs.Close(); err != nil {
			log.WithError(err).Warn("closing specification cache failed")
		}
	}()

	c := compiler.New(project, sqlGen, ddlGen, specs,
		compiler.WithLogger(log),
		compiler.WithTracer(tracer),
		compiler.WithMetrics(metrics),
	)
	plan, err := c.Compile(ctx, wf, os.DirFS(filepath.Dir(opts.workflow)))
	if err != nil {
		return err
	}

	var result any = plan
	if opts.levels {
		levels, err := dag.Levels(dagSteps(wf))
		if err != nil {
			return err
		}
		result = compileOutput{Plan: plan, Levels: levels}
	}
	return writePlan(result, opts.output, stdout)
}

func writePlan(v any, output string, stdout io.Writer) error {
	if output == "" {
		return encodePlan(stdout, v)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	return writeAndClose(f, v)
}

// writeAndClose encodes v into wc and reports the close error, which is
// where a buffered file write first surfaces a full disk.
func writeAndClose(wc io.WriteCloser, v any) error {
	if err := encodePlan(wc, v); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func encodePlan(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dagSteps(wf *workflow.Config) []dag.Step {
	out := make([]dag.Step, len(wf.Steps))
	for i, s := range wf.Steps {
		out[i] = s
	}
	return out
}

// initTelemetry starts the exporters enabled in the project. The returned
// shutdown flushes them.
func initTelemetry(ctx context.Context, project *config.ProjectConfig, log *logger.Logger) (
	trace.Tracer, *observability.CompileMetrics, func(), error) {
	var shutdowns []func(context.Context) error
	shutdown := func() {
		for _, fn := range shutdowns {
			if err := fn(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("telemetry shutdown failed")
			}
		}
	}

	if project.Telemetry.Traces.Enabled {
		tp, err := observability.InitTracer(ctx, project.Telemetry, log)
		if err != nil {
			return nil, nil, shutdown, err
		}
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	var metrics *observability.CompileMetrics
	if project.Telemetry.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, project.Telemetry, log)
		if err != nil {
			shutdown()
			return nil, nil, func() {}, err
		}
		shutdowns = append(shutdowns, mp.Shutdown)
		metrics, err = observability.NewCompileMetrics(observability.Meter(observability.InstrumentationName))
		if err != nil {
			shutdown()
			return nil, nil, func() {}, err
		}
	}
	return observability.Tracer(observability.InstrumentationName), metrics, shutdown, nil
}
