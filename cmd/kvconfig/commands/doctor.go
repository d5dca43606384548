package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/kvconfig/internal/config"
	dserrors "github.com/systmms/kvconfig/internal/errors"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and store connectivity",
		Long: `Verify that kvconfig is properly configured and the store is reachable.

This command checks:
- Configuration file validity and environment overrides
- The store URL and which store it addresses
- Store authentication and connectivity, with a single list call`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking kvconfig configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			settings, err := cfg.Settings()
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("✓ Configuration loaded successfully")

			registry := newRegistry()
			storeType := "-"
			if settings.Enabled() {
				if storeType, err = registry.TypeFor(settings.Store.URL); err != nil {
					return err
				}
			}
			displaySettings(settings, storeType)

			if !settings.Enabled() {
				return dserrors.UserError{
					Message:    "No store configured; the secret source is disabled",
					Suggestion: fmt.Sprintf("Set store.url in %s or %s", cfg.Path, config.EnvURL),
				}
			}

			ctx := context.Background()
			store, err := registry.Open(ctx, settings.Store, cfg.Logger)
			if err != nil {
				cfg.Logger.Error("Store setup error: %v", err)
				return err
			}
			if c, ok := store.(io.Closer); ok {
				defer func() { _ = c.Close() }()
			}

			start := time.Now()
			names, err := store.ListSecretNames(ctx)
			if err != nil {
				fmt.Printf("\n✗ %s unreachable: %v\n", store.Name(), err)
				return err
			}
			elapsed := time.Since(start).Round(time.Millisecond)

			fmt.Printf("\n✓ %s listed %d secrets in %s\n", store.Name(), len(names), elapsed)
			if !settings.Cached {
				filter := regexp.MustCompile(settings.SecretNamePattern)
				matching := 0
				for _, n := range names {
					if filter.MatchString(n) {
						matching++
					}
				}
				fmt.Printf("  %d of them match %s\n", matching, settings.SecretNamePattern)
			}

			cfg.Logger.Info("✓ All systems operational!")
			return nil
		},
	}

	return cmd
}

// displaySettings prints the resolved settings as a table.
func displaySettings(s config.Settings, storeType string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	url := s.Store.URL
	if url == "" {
		url = "(none)"
	}
	strategy := "direct"
	if s.Cached {
		strategy = fmt.Sprintf("cached (ttl %s, %d workers)", s.TTL, s.FetchConcurrency)
	}

	_, _ = fmt.Fprintf(w, "SETTING\tVALUE\n")
	_, _ = fmt.Fprintf(w, "-------\t-----\n")
	_, _ = fmt.Fprintf(w, "store url\t%s\n", url)
	_, _ = fmt.Fprintf(w, "store type\t%s\n", storeType)
	_, _ = fmt.Fprintf(w, "strategy\t%s\n", strategy)
	_, _ = fmt.Fprintf(w, "secret name pattern\t%s\n", s.SecretNamePattern)
	_, _ = fmt.Fprintf(w, "source\t%s (ordinal %d)\n", s.SourceName, s.Ordinal)
	_, _ = fmt.Fprintf(w, "defaults\t%d\n", len(s.Defaults))
	_, _ = fmt.Fprintf(w, "metrics\t%t\n", s.MetricsEnabled)
	_ = w.Flush()
}
