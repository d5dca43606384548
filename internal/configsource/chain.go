package configsource

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"
	"unicode"
)

// PropertySource is one layer of a Chain.
type PropertySource interface {
	Name() string
	Ordinal() int
	PropertyNames(ctx context.Context) ([]string, error)
	Value(ctx context.Context, key string) (string, bool, error)
}

// Ordinals of the built-in sources.
const (
	EnvOrdinal      = 300
	DefaultsOrdinal = 10
)

// Resolution records which source answered a lookup.
type Resolution struct {
	Value  string
	Source string
}

// Chain resolves a property against several sources, highest ordinal first.
type Chain struct {
	sources []PropertySource
}

// NewChain orders sources by descending ordinal. Sources with equal ordinals
// keep their argument order.
func NewChain(sources ...PropertySource) *Chain {
	ordered := slices.Clone(sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Ordinal() > ordered[j].Ordinal()
	})
	return &Chain{sources: ordered}
}

// Sources returns the sources in lookup order.
func (c *Chain) Sources() []PropertySource {
	return slices.Clone(c.sources)
}

// Resolve returns the first source holding key. A source error stops the
// walk.
func (c *Chain) Resolve(ctx context.Context, key string) (Resolution, bool, error) {
	for _, src := range c.sources {
		v, ok, err := src.Value(ctx, key)
		if err != nil {
			return Resolution{}, false, fmt.Errorf("%s: %w", src.Name(), err)
		}
		if ok {
			return Resolution{Value: v, Source: src.Name()}, true, nil
		}
	}
	return Resolution{}, false, nil
}

// Value returns the value of key from the highest priority source that has it.
func (c *Chain) Value(ctx context.Context, key string) (string, bool, error) {
	res, ok, err := c.Resolve(ctx, key)
	return res.Value, ok, err
}

// PropertyNames returns the sorted union of every source's names.
func (c *Chain) PropertyNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, src := range c.sources {
		names, err := src.PropertyNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name(), err)
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Properties resolves every name in PropertyNames against the chain.
func (c *Chain) Properties(ctx context.Context) (map[string]string, error) {
	names, err := c.PropertyNames(ctx)
	if err != nil {
		return nil, err
	}
	props := make(map[string]string, len(names))
	for _, name := range names {
		v, ok, err := c.Value(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			props[name] = v
		}
	}
	return props, nil
}

// EnvSource reads properties from environment variables. A property name is
// tried as is, then with every non-alphanumeric character replaced by '_',
// then upper-cased, so "app.db-url" also matches APP_DB_URL.
type EnvSource struct {
	ordinal int
}

// NewEnvSource creates an environment source with EnvOrdinal.
func NewEnvSource() *EnvSource {
	return &EnvSource{ordinal: EnvOrdinal}
}

// Name implements PropertySource.
func (e *EnvSource) Name() string { return "EnvironmentVariables" }

// Ordinal implements PropertySource.
func (e *EnvSource) Ordinal() int { return e.ordinal }

// PropertyNames returns the names of all environment variables.
func (e *EnvSource) PropertyNames(context.Context) ([]string, error) {
	env := os.Environ()
	names := make([]string, 0, len(env))
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok && k != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Value implements PropertySource.
func (e *EnvSource) Value(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	for _, candidate := range EnvNames(key) {
		if v, ok := os.LookupEnv(candidate); ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// EnvNames returns the environment variable names tried for a property, in
// order, without duplicates.
func EnvNames(key string) []string {
	sanitized := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, key)
	upper := strings.ToUpper(sanitized)

	names := []string{key}
	for _, n := range []string{sanitized, upper} {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

// MapSource serves a fixed set of properties, typically configured defaults.
type MapSource struct {
	name    string
	ordinal int
	props   map[string]string
}

// NewMapSource copies props into a new source.
func NewMapSource(name string, ordinal int, props map[string]string) *MapSource {
	return &MapSource{name: name, ordinal: ordinal, props: maps.Clone(props)}
}

// NewDefaultsSource serves configured defaults at DefaultsOrdinal.
func NewDefaultsSource(props map[string]string) *MapSource {
	return NewMapSource("Defaults", DefaultsOrdinal, props)
}

// Name implements PropertySource.
func (m *MapSource) Name() string { return m.name }

// Ordinal implements PropertySource.
func (m *MapSource) Ordinal() int { return m.ordinal }

// PropertyNames implements PropertySource.
func (m *MapSource) PropertyNames(context.Context) ([]string, error) {
	return slices.Sorted(maps.Keys(m.props)), nil
}

// Value implements PropertySource.
func (m *MapSource) Value(_ context.Context, key string) (string, bool, error) {
	v, ok := m.props[key]
	return v, ok, nil
}
