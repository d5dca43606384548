package configsource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kvconfig/tests/fakes"
)

type failingSource struct {
	err error
}

func (f failingSource) Name() string { return "Broken" }
func (f failingSource) Ordinal() int { return 200 }
func (f failingSource) PropertyNames(context.Context) ([]string, error) {
	return nil, f.err
}
func (f failingSource) Value(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func TestChain_OrdersByDescendingOrdinal(t *testing.T) {
	low := NewMapSource("low", 1, nil)
	high := NewMapSource("high", 500, nil)
	mid := NewMapSource("mid", 90, nil)
	midLater := NewMapSource("mid-later", 90, nil)

	chain := NewChain(low, mid, high, midLater)

	var names []string
	for _, src := range chain.Sources() {
		names = append(names, src.Name())
	}
	assert.Equal(t, []string{"high", "mid", "mid-later", "low"}, names)
}

func TestChain_HighestOrdinalWins(t *testing.T) {
	ctx := context.Background()
	store := fakes.NewFakeStore("fake").WithSecret("db-password", "from-vault")
	secrets := New(testSettings("https://v.vault.azure.net/", true),
		WithStrategy(newTestStrategy(t, store)))
	defaults := NewDefaultsSource(map[string]string{
		"db-password": "from-defaults",
		"app.name":    "demo",
	})
	override := NewMapSource("Override", 400, map[string]string{"db-password": "from-override"})

	chain := NewChain(defaults, secrets)

	res, ok, err := chain.Resolve(ctx, "db-password")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Resolution{Value: "from-vault", Source: "KeyVaultConfigSource"}, res)

	res, ok, err = chain.Resolve(ctx, "app.name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Defaults", res.Source)

	v, ok, err := NewChain(defaults, secrets, override).Value(ctx, "db-password")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-override", v)

	_, ok, err = chain.Value(ctx, "nothing.here")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChain_EnvironmentOverridesSecrets(t *testing.T) {
	t.Setenv("APP_DB_URL", "postgres://env")
	ctx := context.Background()

	store := fakes.NewFakeStore("fake").WithSecret("app-db-url", "postgres://vault")
	secrets := New(testSettings("https://v.vault.azure.net/", true),
		WithStrategy(newTestStrategy(t, store)))
	chain := NewChain(secrets, NewEnvSource())

	res, ok, err := chain.Resolve(ctx, "app.db.url")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Resolution{Value: "postgres://env", Source: "EnvironmentVariables"}, res)
}

func TestChain_SourceErrorStopsLookup(t *testing.T) {
	boom := errors.New("vault down")
	defaults := NewDefaultsSource(map[string]string{"a": "1"})
	chain := NewChain(defaults, failingSource{err: boom})

	_, ok, err := chain.Resolve(context.Background(), "a")
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Broken: ")

	_, err = chain.PropertyNames(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestChain_PropertyNamesUnion(t *testing.T) {
	ctx := context.Background()
	store := fakes.NewFakeStore("fake").
		WithSecret("secret", "1234").
		WithSecret("shared", "vault")
	secrets := New(testSettings("https://v.vault.azure.net/", true),
		WithStrategy(newTestStrategy(t, store)))
	defaults := NewDefaultsSource(map[string]string{"shared": "d", "app.name": "demo"})

	names, err := NewChain(secrets, defaults).PropertyNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.name", "secret", "shared"}, names)
}

func TestChain_Properties(t *testing.T) {
	ctx := context.Background()
	store := fakes.NewFakeStore("fake").
		WithSecret("secret", "1234").
		WithSecret("shared", "vault")
	secrets := New(testSettings("https://v.vault.azure.net/", true),
		WithStrategy(newTestStrategy(t, store)))
	defaults := NewDefaultsSource(map[string]string{"shared": "d", "app.name": "demo"})

	props, err := NewChain(defaults, secrets).Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"app.name": "demo",
		"secret":   "1234",
		"shared":   "vault",
	}, props)
}

func TestChain_DisabledSecretSourceIsTransparent(t *testing.T) {
	ctx := context.Background()
	secrets := New(testSettings("", true))
	defaults := NewDefaultsSource(map[string]string{"app.name": "demo"})
	chain := NewChain(secrets, defaults)

	res, ok, err := chain.Resolve(ctx, "app.name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Defaults", res.Source)

	names, err := chain.PropertyNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.name"}, names)
}

func TestEnvNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want []string
	}{
		{key: "PORT", want: []string{"PORT"}},
		{key: "port", want: []string{"port", "PORT"}},
		{key: "app.db-url", want: []string{"app.db-url", "app_db_url", "APP_DB_URL"}},
		{key: "APP_NAME", want: []string{"APP_NAME"}},
		{key: "Mixed.Case", want: []string{"Mixed.Case", "Mixed_Case", "MIXED_CASE"}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, EnvNames(tt.key))
		})
	}
}

func TestEnvSource_Value(t *testing.T) {
	t.Setenv("KVCONFIG_TEST_EXACT", "exact")
	t.Setenv("kvconfig.test.dotted", "dotted")
	t.Setenv("KVCONFIG_TEST_UPPER", "upper")
	ctx := context.Background()
	env := NewEnvSource()

	assert.Equal(t, "EnvironmentVariables", env.Name())
	assert.Equal(t, EnvOrdinal, env.Ordinal())

	v, ok, err := env.Value(ctx, "KVCONFIG_TEST_EXACT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "exact", v)

	v, ok, _ = env.Value(ctx, "kvconfig.test.dotted")
	assert.True(t, ok)
	assert.Equal(t, "dotted", v)

	v, ok, _ = env.Value(ctx, "kvconfig.test-upper")
	assert.True(t, ok)
	assert.Equal(t, "upper", v)

	_, ok, _ = env.Value(ctx, "")
	assert.False(t, ok)

	names, err := env.PropertyNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "KVCONFIG_TEST_EXACT")
}

func TestMapSource_CopiesInput(t *testing.T) {
	t.Parallel()

	props := map[string]string{"a": "1"}
	src := NewMapSource("m", 5, props)
	props["a"] = "changed"
	props["b"] = "2"

	v, ok, err := src.Value(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	names, _ := src.PropertyNames(context.Background())
	assert.Equal(t, []string{"a"}, names)
}
