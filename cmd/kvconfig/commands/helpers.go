package commands

import (
	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/internal/configsource"
	"github.com/systmms/kvconfig/internal/metrics"
	"github.com/systmms/kvconfig/internal/stores"
)

// newRegistry builds the store registry used by every command. Tests replace
// it to serve in-memory stores.
var newRegistry = stores.NewRegistry

// sources is everything a command needs once configuration is loaded.
type sources struct {
	settings config.Settings
	secrets  *configsource.Source
	chain    *configsource.Chain
}

// Close releases the secret store client.
func (s *sources) Close() error {
	return s.secrets.Close()
}

// loadSources loads configuration and assembles the property chain:
// environment variables, the secret source, then configured defaults.
func loadSources(cfg *config.Config) (*sources, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	if settings.MetricsEnabled {
		metrics.Init()
	}

	secrets := configsource.New(settings,
		configsource.WithRegistry(newRegistry()),
		configsource.WithLogger(cfg.Logger),
	)
	if !secrets.Enabled() {
		cfg.Logger.Debug("No store URL configured; %s is disabled", secrets.Name())
	}

	chain := configsource.NewChain(
		configsource.NewEnvSource(),
		secrets,
		configsource.NewDefaultsSource(settings.Defaults),
	)

	return &sources{settings: settings, secrets: secrets, chain: chain}, nil
}
