package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/pkg/lookup"
)

func NewRemapCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remap NAME...",
		Short: "Show the secret name a property name maps to",
		Long: `Show the secret name looked up for each property name when there is no
exact match. Every character that is not a letter, digit or '-' becomes '-'.

The cached strategy falls back to this name; the direct strategy does not.

Example:
  kvconfig remap db.password my_api.key`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "PROPERTY\tSECRET\n")
			for _, name := range args {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, lookup.ToSecretName(name))
			}
			return w.Flush()
		},
	}

	return cmd
}
