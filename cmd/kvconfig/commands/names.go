package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/internal/config"
)

func NewNamesCommand(cfg *config.Config) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "names",
		Short: "List property names",
		Long: `List the names of every secret the store exposes, one per line, sorted.

With --all the names of environment variables and configured defaults are
included as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := loadSources(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			ctx := context.Background()
			var names []string
			if all {
				names, err = src.chain.PropertyNames(ctx)
			} else {
				names, err = src.secrets.PropertyNames(ctx)
			}
			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Println(name)
			}
			cfg.Logger.Debug("%d properties", len(names))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include environment variables and defaults")

	return cmd
}
