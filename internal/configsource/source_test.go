package configsource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kvconfig/internal/config"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/stores"
	"github.com/systmms/kvconfig/internal/strategies"
	"github.com/systmms/kvconfig/pkg/lookup"
	"github.com/systmms/kvconfig/tests/fakes"
)

func testSettings(url string, cached bool) config.Settings {
	return config.Settings{
		Store:             stores.Config{URL: url},
		Cached:            cached,
		TTL:               lookup.DefaultRefreshInterval,
		FetchConcurrency:  1,
		SecretNamePattern: lookup.DefaultSecretNamePattern,
		SourceName:        config.DefaultSourceName,
		Ordinal:           config.DefaultOrdinal,
	}
}

// countingRegistry returns a registry whose https factory serves store and
// counts how often it was invoked.
func countingRegistry(store lookup.Store, err error, opens *atomic.Int32) *stores.Registry {
	r := stores.NewRegistry()
	r.RegisterFactory("https", stores.TypeAzureKeyVault, func(ctx context.Context, cfg stores.Config, logger *logging.Logger) (lookup.Store, error) {
		opens.Add(1)
		if err != nil {
			return nil, err
		}
		return store, nil
	})
	return r
}

func TestSource_Disabled(t *testing.T) {
	var opens atomic.Int32
	store := fakes.NewFakeStore("fake").WithSecret("secret", "1234")
	src := New(testSettings("", true), WithRegistry(countingRegistry(store, nil, &opens)))
	ctx := context.Background()

	assert.False(t, src.Enabled())
	assert.Equal(t, "KeyVaultConfigSource", src.Name())
	assert.Equal(t, 90, src.Ordinal())

	names, err := src.PropertyNames(ctx)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	props, err := src.Properties(ctx)
	require.NoError(t, err)
	assert.NotNil(t, props)
	assert.Empty(t, props)

	v, ok, err := src.Value(ctx, "secret")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	assert.Equal(t, int32(0), opens.Load(), "disabled source must not build a store")
	assert.Equal(t, 0, store.ListCalls()+store.GetCalls())
	assert.Empty(t, src.StoreType())
	assert.NoError(t, src.Close())
}

func TestSource_EnabledEndToEnd(t *testing.T) {
	for _, cached := range []bool{true, false} {
		name := "direct"
		if cached {
			name = "cached"
		}
		t.Run(name, func(t *testing.T) {
			var opens atomic.Int32
			store := fakes.NewFakeStore("fake").
				WithSecret("secret", "1234").
				WithSecret("anotherSecret", "5678")
			src := New(testSettings("https://test-vault.vault.azure.net/", cached),
				WithRegistry(countingRegistry(store, nil, &opens)))
			ctx := context.Background()

			assert.True(t, src.Enabled())
			assert.Equal(t, int32(0), opens.Load(), "store is built lazily")

			v, ok, err := src.Value(ctx, "secret")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "1234", v)

			names, err := src.PropertyNames(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"anotherSecret", "secret"}, names)

			props, err := src.Properties(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"secret": "1234", "anotherSecret": "5678"}, props)

			_, ok, err = src.Value(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.Equal(t, int32(1), opens.Load())
			assert.Equal(t, stores.TypeAzureKeyVault, src.StoreType())
		})
	}
}

func TestSource_RemapOnlyWhenCached(t *testing.T) {
	store := fakes.NewFakeStore("fake").WithSecret("my-secret-name", "v")
	ctx := context.Background()

	var opens atomic.Int32
	cached := New(testSettings("https://v.vault.azure.net/", true), WithRegistry(countingRegistry(store, nil, &opens)))
	v, ok, err := cached.Value(ctx, "my.secret.name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	direct := New(testSettings("https://v.vault.azure.net/", false), WithRegistry(countingRegistry(store, nil, &opens)))
	res, err := direct.Lookup(ctx, "my.secret.name")
	require.NoError(t, err)
	assert.Equal(t, lookup.Filtered, res.Outcome)
}

func TestSource_InitErrorIsNotRemembered(t *testing.T) {
	var opens atomic.Int32
	locked := errors.New("keyring locked")
	store := fakes.NewFakeStore("fake").WithSecret("a", "1")

	r := stores.NewRegistry()
	r.RegisterFactory("https", stores.TypeAzureKeyVault, func(context.Context, stores.Config, *logging.Logger) (lookup.Store, error) {
		if opens.Add(1) == 1 {
			return nil, locked
		}
		return store, nil
	})
	src := New(testSettings("https://v.vault.azure.net/", true), WithRegistry(r))
	ctx := context.Background()

	_, _, err := src.Value(ctx, "a")
	assert.ErrorIs(t, err, locked)
	assert.Equal(t, 0, store.ListCalls())

	v, ok, err := src.Value(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	names, err := src.PropertyNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
	assert.Equal(t, int32(2), opens.Load(), "a successful build is reused")
}

func TestSource_InitErrorRetriedEveryCall(t *testing.T) {
	var opens atomic.Int32
	boom := errors.New("no credentials")
	src := New(testSettings("https://v.vault.azure.net/", true), WithRegistry(countingRegistry(nil, boom, &opens)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := src.Value(ctx, "a")
		assert.ErrorIs(t, err, boom)
	}
	_, err := src.PropertyNames(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), opens.Load())
	assert.NoError(t, src.Close())
}

func TestSource_CloseDuringFirstUse(t *testing.T) {
	var opens atomic.Int32
	store := fakes.NewFakeStore("fake").WithSecret("a", "1")
	src := New(testSettings("https://v.vault.azure.net/", true), WithRegistry(countingRegistry(store, nil, &opens)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := src.Value(ctx, "a")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, src.Close())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
}

func TestSource_ConcurrentFirstUseBuildsOnce(t *testing.T) {
	var opens atomic.Int32
	store := fakes.NewFakeStore("fake").WithSecret("a", "1")
	src := New(testSettings("https://v.vault.azure.net/", true), WithRegistry(countingRegistry(store, nil, &opens)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := src.Value(ctx, "a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, 1, store.ListCalls())
}

func TestSource_CachedRefreshErrorSurfaces(t *testing.T) {
	boom := errors.New("vault unreachable")
	store := fakes.NewFakeStore("fake").WithSecret("a", "1").WithListError(boom)
	var opens atomic.Int32
	src := New(testSettings("https://v.vault.azure.net/", true), WithRegistry(countingRegistry(store, nil, &opens)))

	_, _, err := src.Value(context.Background(), "a")
	assert.ErrorIs(t, err, boom)
}

func TestSource_WithStrategy(t *testing.T) {
	store := fakes.NewFakeStore("fake").WithSecret("a", "1")
	settings := testSettings("", true)
	settings.SourceName = "Injected"
	settings.Ordinal = 150

	src := New(settings, WithStrategy(newTestStrategy(t, store)))
	assert.True(t, src.Enabled())
	assert.Equal(t, "Injected", src.Name())
	assert.Equal(t, 150, src.Ordinal())

	v, ok, err := src.Value(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

// newTestStrategy returns a cached strategy that never goes stale.
func newTestStrategy(t *testing.T, store lookup.Store) lookup.Strategy {
	t.Helper()
	s, err := strategies.New(store, strategies.Settings{
		Cached:           true,
		RefreshInterval:  time.Hour,
		FetchConcurrency: 1,
	}, nil, nil)
	require.NoError(t, err)
	return s
}
