package strategies

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/metrics"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// Cached serves every read from an in-memory snapshot of the whole store.
//
// The snapshot is rebuilt when a read finds it older than the refresh
// interval. Only one rebuild runs at a time; callers that queued behind it
// see the fresh snapshot and make no remote calls. A failed rebuild is
// returned to the caller that triggered it and the next read tries again.
type Cached struct {
	store    lookup.Store
	ttl      time.Duration
	now      func() time.Time
	workers  int
	logger   *logging.Logger
	recorder *metrics.Recorder

	// mu guards snapshot and lastRefresh.
	mu          sync.RWMutex
	snapshot    map[string]string
	lastRefresh time.Time
}

var _ lookup.Strategy = (*Cached)(nil)

// NewCached creates a cached strategy over store. No remote call is made
// until the first read.
func NewCached(store lookup.Store, opts ...Option) *Cached {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Cached{
		store:    store,
		ttl:      o.refreshInterval,
		now:      o.now,
		workers:  o.fetchConcurrency,
		logger:   o.logger.With("strategy", "cached"),
		recorder: o.recorder,
		snapshot: map[string]string{},
	}
}

// PropertyNames returns the sorted identifiers of the current snapshot.
func (c *Cached) PropertyNames(ctx context.Context) ([]string, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.snapshot)), nil
}

// Properties returns a copy of the current snapshot.
func (c *Cached) Properties(ctx context.Context) (map[string]string, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.snapshot), nil
}

// Value resolves name against the snapshot: exact identifier first, then the
// remapped identifier when remapping changes the name.
func (c *Cached) Value(ctx context.Context, name string) (lookup.Result, error) {
	if name == "" {
		return lookup.NotFoundResult(), nil
	}
	if err := c.ensureFresh(ctx); err != nil {
		return lookup.Result{}, err
	}

	res := c.resolve(name)
	c.recorder.RecordLookup("cached", res.Outcome.String())
	return res, nil
}

func (c *Cached) resolve(name string) lookup.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.snapshot[name]; ok {
		return lookup.FoundResult(name, v)
	}
	if remapped := lookup.ToSecretName(name); remapped != name {
		if v, ok := c.snapshot[remapped]; ok {
			return lookup.FoundResult(remapped, v)
		}
	}
	return lookup.NotFoundResult()
}

// LastRefresh reports when the current snapshot finished building. The zero
// time means no refresh has completed yet.
func (c *Cached) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *Cached) stale(now time.Time) bool {
	return c.lastRefresh.IsZero() || now.Sub(c.lastRefresh) > c.ttl
}

func (c *Cached) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	stale := c.stale(c.now())
	c.mu.RUnlock()
	if !stale {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if !c.stale(c.now()) {
		return nil
	}
	return c.refreshLocked(ctx)
}

// refreshLocked rebuilds the snapshot. Callers must hold mu exclusively.
func (c *Cached) refreshLocked(ctx context.Context) error {
	store := c.store.Name()
	start := time.Now()

	next, err := c.fetchAll(ctx)
	c.recorder.RecordRefresh(store, err, time.Since(start), len(next))
	if err != nil {
		c.logger.Warn("Snapshot refresh from %s failed: %v", store, err)
		return err
	}

	c.snapshot = next
	c.lastRefresh = c.now()
	c.logger.Debug("Refreshed snapshot from %s: %d secrets in %s", store, len(next), time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Cached) fetchAll(ctx context.Context) (map[string]string, error) {
	store := c.store.Name()

	names, err := c.store.ListSecretNames(ctx)
	c.recorder.RecordRemoteCall(store, "list")
	if err != nil {
		return nil, fmt.Errorf("list secrets in %s: %w", store, err)
	}

	values := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, name := range names {
		g.Go(func() error {
			v, err := c.store.GetSecret(gctx, name)
			c.recorder.RecordRemoteCall(store, "get")
			if err != nil {
				return fmt.Errorf("fetch secret %s from %s: %w", name, store, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := make(map[string]string, len(names))
	for i, name := range names {
		next[name] = values[i]
	}
	return next, nil
}
