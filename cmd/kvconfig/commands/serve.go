package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/internal/server"
)

func NewServeCommand(cfg *config.Config, version string) *cobra.Command {
	var (
		addr        string
		reveal      bool
		corsOrigins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve properties over HTTP",
		Long: `Serve the property chain over HTTP until interrupted.

Endpoints:
  GET /config/value/NAME      value as text/plain, 404 when absent
  GET /config/propertyNames   JSON array of names
  GET /config/properties      JSON object, values redacted unless --reveal
  GET /health                 liveness and the source order
  GET /metrics                Prometheus metrics when metrics.enabled is set`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := loadSources(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			serverCfg := server.DefaultConfig()
			serverCfg.Addr = addr
			serverCfg.Reveal = reveal
			serverCfg.CORSAllowedOrigins = corsOrigins
			serverCfg.MetricsEnabled = src.settings.MetricsEnabled
			serverCfg.MetricsPath = src.settings.MetricsPath

			if reveal {
				cfg.Logger.Warn("Serving secret values in clear text on /config/properties")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(serverCfg, src.chain, cfg.Logger, version).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultConfig().Addr, "Address to listen on")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Serve secret values from /config/properties")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable, '*' for any)")

	return cmd
}
