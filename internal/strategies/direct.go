package strategies

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/metrics"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// Direct forwards every read to the store. It holds no state besides the
// compiled name filter and is safe for concurrent use.
//
// Value only asks the store for names matching the filter, and it looks the
// name up exactly as given. Store failures during Value are reported in the
// Result rather than returned.
type Direct struct {
	store    lookup.Store
	filter   *regexp.Regexp
	logger   *logging.Logger
	recorder *metrics.Recorder
}

var _ lookup.Strategy = (*Direct)(nil)

// NewDirect creates a direct strategy. An empty pattern selects
// lookup.DefaultSecretNamePattern.
func NewDirect(store lookup.Store, pattern string, opts ...Option) (*Direct, error) {
	if pattern == "" {
		pattern = lookup.DefaultSecretNamePattern
	}
	filter, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile secret name pattern %q: %w", pattern, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Direct{
		store:    store,
		filter:   filter,
		logger:   o.logger.With("strategy", "direct"),
		recorder: o.recorder,
	}, nil
}

// PropertyNames lists the store and returns the identifiers sorted.
func (d *Direct) PropertyNames(ctx context.Context) ([]string, error) {
	store := d.store.Name()

	names, err := d.store.ListSecretNames(ctx)
	d.recorder.RecordRemoteCall(store, "list")
	if err != nil {
		return nil, fmt.Errorf("list secrets in %s: %w", store, err)
	}

	names = slices.Clone(names)
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Properties lists the store and fetches every value one at a time.
func (d *Direct) Properties(ctx context.Context) (map[string]string, error) {
	store := d.store.Name()

	names, err := d.store.ListSecretNames(ctx)
	d.recorder.RecordRemoteCall(store, "list")
	if err != nil {
		return nil, fmt.Errorf("list secrets in %s: %w", store, err)
	}

	props := make(map[string]string, len(names))
	for _, name := range names {
		v, err := d.store.GetSecret(ctx, name)
		d.recorder.RecordRemoteCall(store, "get")
		if err != nil {
			return nil, fmt.Errorf("fetch secret %s from %s: %w", name, store, err)
		}
		props[name] = v
	}
	return props, nil
}

// Value fetches name from the store if it passes the name filter. The
// returned error is always nil.
func (d *Direct) Value(ctx context.Context, name string) (lookup.Result, error) {
	res := d.value(ctx, name)
	d.recorder.RecordLookup("direct", res.Outcome.String())
	return res, nil
}

func (d *Direct) value(ctx context.Context, name string) lookup.Result {
	if name == "" {
		return lookup.NotFoundResult()
	}
	if !d.filter.MatchString(name) {
		return lookup.Result{Outcome: lookup.Filtered}
	}

	store := d.store.Name()
	v, err := d.store.GetSecret(ctx, name)
	d.recorder.RecordRemoteCall(store, "get")
	switch {
	case err == nil:
		return lookup.FoundResult(name, v)
	case lookup.IsNotFound(err):
		return lookup.NotFoundResult()
	default:
		d.logger.Debug("Lookup of %s in %s failed: %v", name, store, err)
		return lookup.Result{Outcome: lookup.Failed, Err: err}
	}
}
