// Package cli implements the omopetl command tree.
package cli

import (
	"cmp"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CoReason-AI/omopcloudetl-core/config"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/version"
)

var (
	logLevel  string
	logFormat string
)

// NewRootCommand builds the omopetl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   config.ServiceName,
		Short: "Compile OMOP CDM ETL workflows into execution plans",
		Long: `omopetl validates a workflow definition against its project configuration
and compiles every step into fully rendered, tagged SQL or bulk load
parameters. The resulting plan is written as JSON for an executor to run.`,
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "override the configured log format (json, console)")

	root.AddCommand(newCompileCommand(), newPluginsCommand(), newVersionCommand())
	return root
}

// Execute runs the root command until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		cliLogger(nil).WithError(err).Error("command failed")
		return err
	}
	return nil
}

// cliLogger builds a stderr logger from cfg, applying flag overrides.
func cliLogger(cfg *logger.Config) *logger.Logger {
	c := logger.Config{}
	if cfg != nil {
		c = *cfg
	}
	c.ApplyDefaults()
	if logLevel != "" {
		c.Level = logLevel
	}
	if logFormat != "" {
		c.Format = logFormat
	}
	c.Output = "stderr"
	return logger.New(&c, cmp.Or(c.ServiceName, config.ServiceName))
}
