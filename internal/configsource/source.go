// Package configsource exposes a lookup strategy as a named, ordered property
// source and combines it with environment and default sources into a chain.
package configsource

import (
	"context"
	"io"
	"sync"

	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/metrics"
	"github.com/systmms/kvconfig/internal/stores"
	"github.com/systmms/kvconfig/internal/strategies"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// Source is the secret-backed property source.
//
// With no store URL configured the source is disabled: it reports no
// properties and never builds a store client. Otherwise the store client and
// strategy are built on first use and reused for the life of the Source. If
// building fails the error is returned to that caller only.
type Source struct {
	settings config.Settings
	registry *stores.Registry
	logger   *logging.Logger
	recorder *metrics.Recorder
	enabled  bool

	// mu guards store and strategy. A failed build records nothing, so the
	// next call tries again.
	mu       sync.RWMutex
	store    lookup.Store
	strategy lookup.Strategy
}

// Option configures a Source.
type Option func(*Source)

// WithStrategy makes the source serve from s instead of building a store
// client. The source counts as enabled.
func WithStrategy(s lookup.Strategy) Option {
	return func(src *Source) {
		src.strategy = s
	}
}

// WithRegistry replaces the store registry.
func WithRegistry(r *stores.Registry) Option {
	return func(src *Source) {
		src.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(src *Source) {
		src.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(src *Source) {
		src.recorder = r
	}
}

// New creates a Source. Nothing is contacted until the first read.
func New(settings config.Settings, opts ...Option) *Source {
	src := &Source{
		settings: settings,
		registry: stores.NewRegistry(),
		logger:   logging.Nop(),
		recorder: metrics.NewRecorder(),
	}
	for _, opt := range opts {
		opt(src)
	}
	src.enabled = src.strategy != nil || settings.Enabled()
	return src
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.settings.SourceName
}

// Ordinal returns the source priority. Higher ordinals win.
func (s *Source) Ordinal() int {
	return s.settings.Ordinal
}

// Enabled reports whether the source can return any property.
func (s *Source) Enabled() bool {
	return s.enabled
}

func (s *Source) init(ctx context.Context) (lookup.Strategy, error) {
	if !s.Enabled() {
		return nil, nil
	}

	s.mu.RLock()
	strategy := s.strategy
	s.mu.RUnlock()
	if strategy != nil {
		return strategy, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have finished building while we waited for the lock.
	if s.strategy != nil {
		return s.strategy, nil
	}

	store, err := s.registry.Open(ctx, s.settings.Store, s.logger)
	if err != nil {
		s.logger.Warn("%s could not open %s: %v", s.Name(), s.settings.Store.URL, err)
		return nil, err
	}
	strategy, err = strategies.New(store, s.settings.Strategy(), s.logger, s.recorder)
	if err != nil {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	s.store = store
	s.strategy = strategy
	s.logger.Debug("%s reading from %s", s.Name(), store.Name())
	return strategy, nil
}

// PropertyNames returns the sorted identifiers of every secret.
func (s *Source) PropertyNames(ctx context.Context) ([]string, error) {
	strategy, err := s.init(ctx)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return []string{}, nil
	}
	return strategy.PropertyNames(ctx)
}

// Properties returns every secret with its value.
func (s *Source) Properties(ctx context.Context) (map[string]string, error) {
	strategy, err := s.init(ctx)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return map[string]string{}, nil
	}
	return strategy.Properties(ctx)
}

// Value returns the value for key and whether it was found.
func (s *Source) Value(ctx context.Context, key string) (string, bool, error) {
	res, err := s.Lookup(ctx, key)
	if err != nil {
		return "", false, err
	}
	v, ok := res.Get()
	return v, ok, nil
}

// Lookup is Value with the full lookup result.
func (s *Source) Lookup(ctx context.Context, key string) (lookup.Result, error) {
	strategy, err := s.init(ctx)
	if err != nil {
		return lookup.Result{}, err
	}
	if strategy == nil {
		return lookup.NotFoundResult(), nil
	}
	return strategy.Value(ctx, key)
}

// StoreType returns the type of store the configured URL addresses, or ""
// when the source is disabled or the URL is not recognized.
func (s *Source) StoreType() string {
	if !s.settings.Enabled() {
		return ""
	}
	t, err := s.registry.TypeFor(s.settings.Store.URL)
	if err != nil {
		return ""
	}
	return t
}

// Close releases the store client if it holds resources.
func (s *Source) Close() error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
