package strategies

import (
	"time"

	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/metrics"
	"github.com/systmms/kvconfig/pkg/lookup"
)

type options struct {
	refreshInterval  time.Duration
	now              func() time.Time
	fetchConcurrency int
	logger           *logging.Logger
	recorder         *metrics.Recorder
}

func defaultOptions() options {
	return options{
		refreshInterval:  lookup.DefaultRefreshInterval,
		now:              time.Now,
		fetchConcurrency: 1,
		logger:           logging.Nop(),
		recorder:         metrics.NewRecorder(),
	}
}

// Option configures a strategy.
type Option func(*options)

// WithRefreshInterval sets how long a cached snapshot stays fresh. Zero
// refreshes on every access. Ignored by the direct strategy.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.refreshInterval = d
		}
	}
}

// WithClock replaces time.Now for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFetchConcurrency bounds how many per-secret fetches a refresh runs at
// once. Values below 1 are ignored.
func WithFetchConcurrency(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.fetchConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}
