package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/internal/logging"
)

func NewPropertiesCommand(cfg *config.Config) *cobra.Command {
	var (
		reveal     bool
		jsonOutput bool
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Show every property with its value",
		Long: `Show every secret the store exposes together with its value.

Values are redacted unless --reveal is given.

Examples:
  # Table of names with redacted values
  kvconfig properties

  # Full snapshot as JSON
  kvconfig properties --reveal --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := loadSources(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			ctx := context.Background()
			var props map[string]string
			if all {
				props, err = src.chain.Properties(ctx)
			} else {
				props, err = src.secrets.Properties(ctx)
			}
			if err != nil {
				return err
			}

			if !reveal {
				for k, v := range props {
					props[k] = logging.Secret(v).String()
				}
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(props); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tVALUE\n")
			_, _ = fmt.Fprintf(w, "----\t-----\n")
			for _, name := range slices.Sorted(maps.Keys(props)) {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, props[name])
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values instead of redacting them")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&all, "all", false, "Include environment variables and defaults")

	return cmd
}
