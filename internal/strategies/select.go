// Package strategies implements the two lookup strategies behind a
// secret-backed property source: Cached, which serves reads from a
// periodically rebuilt snapshot, and Direct, which calls the store on every
// read.
package strategies

import (
	"time"

	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/metrics"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// Settings selects and tunes a strategy.
type Settings struct {
	// Cached selects the cached strategy. Otherwise the direct strategy is used.
	Cached bool

	// RefreshInterval is the snapshot lifetime of the cached strategy. Zero
	// refreshes on every read.
	RefreshInterval time.Duration

	// FetchConcurrency bounds parallel fetches during a cached refresh.
	FetchConcurrency int

	// SecretNamePattern gates lookups of the direct strategy.
	SecretNamePattern string
}

// New builds the strategy selected by settings. The choice is fixed for the
// lifetime of the returned value.
func New(store lookup.Store, settings Settings, logger *logging.Logger, recorder *metrics.Recorder) (lookup.Strategy, error) {
	opts := []Option{
		WithLogger(logger),
		WithRecorder(recorder),
	}

	if settings.Cached {
		logger.Debug("Using cached lookup strategy against %s (refresh interval %s)", store.Name(), settings.RefreshInterval)
		opts = append(opts,
			WithRefreshInterval(settings.RefreshInterval),
			WithFetchConcurrency(settings.FetchConcurrency),
		)
		return NewCached(store, opts...), nil
	}

	logger.Debug("Using direct lookup strategy against %s", store.Name())
	d, err := NewDirect(store, settings.SecretNamePattern, opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}
