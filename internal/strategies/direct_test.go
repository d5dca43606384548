package strategies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kvconfig/pkg/lookup"
	"github.com/systmms/kvconfig/tests/fakes"
)

func newDirect(t *testing.T, store lookup.Store) *Direct {
	t.Helper()
	d, err := NewDirect(store, "")
	require.NoError(t, err)
	return d
}

func TestDirect_Contract(t *testing.T) {
	lookup.RunContractTests(t, lookup.ContractTest{
		Secrets: map[string]string{
			"secret":        "1234",
			"anotherSecret": "5678",
			"db-password":   "hunter2",
		},
		CreateStrategy: func(t *testing.T, secrets map[string]string) lookup.Strategy {
			return newDirect(t, fakes.NewFakeStore("fake").WithSecrets(secrets))
		},
	})
}

func TestDirect_FilterGate(t *testing.T) {
	store := fakes.NewFakeStore("fake").WithSecret("my-secret", "v")
	d := newDirect(t, store)
	ctx := context.Background()

	res, err := d.Value(ctx, "invalid.secret.name")
	require.NoError(t, err)
	assert.Equal(t, lookup.Filtered, res.Outcome)
	_, ok := res.Get()
	assert.False(t, ok)
	assert.Equal(t, 0, store.GetCalls())

	res, err = d.Value(ctx, "my-secret")
	require.NoError(t, err)
	assert.Equal(t, lookup.FoundResult("my-secret", "v"), res)
	assert.Equal(t, 1, store.GetCallsFor("my-secret"))
	assert.Equal(t, 0, store.ListCalls())
}

func TestDirect_NoRemapFallback(t *testing.T) {
	store := fakes.NewFakeStore("fake").WithSecret("my-secret-name", "v")
	d := newDirect(t, store)

	res, err := d.Value(context.Background(), "my.secret.name")
	require.NoError(t, err)
	assert.Equal(t, lookup.Filtered, res.Outcome)
	assert.Equal(t, 0, store.GetCalls())
}

func TestDirect_EveryLookupCallsStore(t *testing.T) {
	store := fakes.NewFakeStore("fake").WithSecret("a", "1")
	d := newDirect(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := d.Value(ctx, "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.GetCallsFor("a"))
}

func TestDirect_ErrorsBecomeAbsence(t *testing.T) {
	boom := errors.New("connection reset")
	store := fakes.NewFakeStore("fake").
		WithSecret("ok", "1").
		WithGetError("broken", boom)
	d := newDirect(t, store)
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		outcome lookup.Outcome
		err     error
	}{
		{name: "missing", key: "missing", outcome: lookup.NotFound},
		{name: "store_failure", key: "broken", outcome: lookup.Failed, err: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Value(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.err, res.Err)
			_, ok := res.Get()
			assert.False(t, ok)
		})
	}
}

func TestDirect_CustomPattern(t *testing.T) {
	store := fakes.NewFakeStore("fake").
		WithSecret("app-token", "t").
		WithSecret("other-token", "o")
	d, err := NewDirect(store, "^app-[a-z]+$")
	require.NoError(t, err)
	ctx := context.Background()

	res, err := d.Value(ctx, "app-token")
	require.NoError(t, err)
	assert.Equal(t, lookup.Found, res.Outcome)

	res, err = d.Value(ctx, "other-token")
	require.NoError(t, err)
	assert.Equal(t, lookup.Filtered, res.Outcome)
	assert.Equal(t, 0, store.GetCallsFor("other-token"))
}

func TestDirect_InvalidPattern(t *testing.T) {
	_, err := NewDirect(fakes.NewFakeStore("fake"), "^[a-z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile secret name pattern")
}

func TestDirect_ListErrorsPropagate(t *testing.T) {
	boom := errors.New("forbidden")
	store := fakes.NewFakeStore("fake").WithSecret("a", "1").WithListError(boom)
	d := newDirect(t, store)
	ctx := context.Background()

	_, err := d.PropertyNames(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = d.Properties(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestDirect_PropertiesFetchesEach(t *testing.T) {
	store := fakes.NewFakeStore("fake").
		WithSecret("c", "3").
		WithSecret("a", "1").
		WithSecret("b", "2")
	d := newDirect(t, store)

	props, err := d.Properties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, props)
	assert.Equal(t, 1, store.ListCalls())
	assert.Equal(t, 3, store.GetCalls())
}
