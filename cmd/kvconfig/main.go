package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/cmd/kvconfig/commands"
	"github.com/systmms/kvconfig/internal/config"
	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "kvconfig",
		Short: "Read configuration properties from a cloud secret store",
		Long: `kvconfig exposes the secrets of an Azure Key Vault, AWS Secrets Manager or
GCP Secret Manager as configuration properties, layered under environment
variables and above configured defaults.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Explicit = cmd.Flags().Changed("config")
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewGetCommand(cfg),
		commands.NewNamesCommand(cfg),
		commands.NewPropertiesCommand(cfg),
		commands.NewRemapCommand(cfg),
		commands.NewServeCommand(cfg, version),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd.Execute()
}
