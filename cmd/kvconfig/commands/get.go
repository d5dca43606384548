package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/internal/configsource"
	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/pkg/lookup"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		sourceOnly bool
	)

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Get a single property value",
		Long: `Resolve a property and print its value.

The property is looked up in environment variables, then in the secret
store, then in the configured defaults. The first source that has it wins.
By default only the raw value is printed, making it suitable for scripting.

Examples:
  # Get a single value
  kvconfig get db.password

  # Only consult the secret store
  kvconfig get db.password --source-only

  # Value with the answering source in JSON format
  kvconfig get db.password --json

  # Use in scripts
  export DB_PASSWORD=$(kvconfig get db.password)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			src, err := loadSources(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			ctx := context.Background()

			var res configsource.Resolution
			var found bool
			if sourceOnly {
				v, ok, err := src.secrets.Value(ctx, name)
				if err != nil {
					return err
				}
				res, found = configsource.Resolution{Value: v, Source: src.secrets.Name()}, ok
			} else {
				res, found, err = src.chain.Resolve(ctx, name)
				if err != nil {
					return err
				}
			}

			if !found {
				suggestion := fmt.Sprintf("Run 'kvconfig names' to list properties. The secret looked up for '%s' is '%s'", name, lookup.ToSecretName(name))
				if !src.secrets.Enabled() {
					suggestion = fmt.Sprintf("No store is configured. Set store.url in %s or %s", cfg.Path, config.EnvURL)
				}
				return dserrors.UserError{
					Message:    fmt.Sprintf("Property '%s' not found", name),
					Suggestion: suggestion,
				}
			}

			if jsonOutput {
				output := map[string]interface{}{
					"name":   name,
					"value":  res.Value,
					"source": res.Source,
				}
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(output); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			// Raw value output (default)
			fmt.Print(res.Value)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with the answering source")
	cmd.Flags().BoolVar(&sourceOnly, "source-only", false, "Only consult the secret store")

	return cmd
}
