package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CoReason-AI/omopcloudetl-core/plugins"
	"github.com/CoReason-AI/omopcloudetl-core/secrets"
)

func newPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered dialects and secrets providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "dialects:")
			for _, name := range plugins.DialectNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "secrets providers:")
			for _, name := range secrets.Types() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
