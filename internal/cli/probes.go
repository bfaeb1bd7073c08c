package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gumshoe-dev/gumshoe/internal/probes"
)

func newProbesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probes",
		Short: "Print the probe catalog",
		Long:  "Prints every registered probe with its scope, arguments, and an example call. This is the same catalog text the LLM plans against.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := probes.BuildRegistry()
			if err != nil {
				return fmt.Errorf("build probe registry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d probes registered\n\n", registry.Len())
			fmt.Fprint(cmd.OutOrStdout(), registry.CatalogText())
			return nil
		},
	}
}
