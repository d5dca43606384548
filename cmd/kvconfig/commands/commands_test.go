package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kvconfig/internal/config"
	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/internal/stores"
	"github.com/systmms/kvconfig/pkg/lookup"
	"github.com/systmms/kvconfig/tests/fakes"
	"github.com/systmms/kvconfig/tests/testutil"
)

const testConfig = `version: 0
store:
  url: https://test-vault.vault.azure.net/
defaults:
  app.name: demo
  secret: from-defaults
`

// useStore makes every command read from store instead of a real vault.
func useStore(t *testing.T, store lookup.Store) {
	t.Helper()
	orig := newRegistry
	newRegistry = func() *stores.Registry {
		r := stores.NewRegistry()
		r.RegisterFactory("https", stores.TypeAzureKeyVault, func(context.Context, stores.Config, *logging.Logger) (lookup.Store, error) {
			return store, nil
		})
		return r
	}
	t.Cleanup(func() { newRegistry = orig })
}

func newTestStore() *fakes.FakeStore {
	return fakes.NewFakeStore("fake").
		WithSecret("secret", "1234").
		WithSecret("anotherSecret", "5678")
}

// newTestConfig writes content to a temporary config file and clears the
// environment overrides.
func newTestConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	for _, k := range []string{config.EnvURL, config.EnvCache, config.EnvCacheTTL, config.EnvSecretNamePattern} {
		t.Setenv(k, "")
	}

	return &config.Config{
		Path:     testutil.WriteTestConfig(t, content),
		Logger:   logging.New(false, true),
		Explicit: true,
	}
}

// captureOutput executes cmd with args and returns what it wrote to stdout.
func captureOutput(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	runErr := cmd.Execute()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String(), runErr
}

func TestGetCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "exact secret", args: []string{"anotherSecret"}, want: "5678"},
		{name: "secret beats defaults", args: []string{"secret"}, want: "1234"},
		{name: "defaults fallback", args: []string{"app.name"}, want: "demo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, testConfig)
			useStore(t, newTestStore())

			out, err := captureOutput(t, NewGetCommand(cfg), tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGetCommand_RemapFallback(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, fakes.NewFakeStore("fake").WithSecret("db-password", "pw"))

	out, err := captureOutput(t, NewGetCommand(cfg), []string{"db.password"})
	require.NoError(t, err)
	assert.Equal(t, "pw", out)
}

func TestGetCommand_EnvironmentWins(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, newTestStore())
	t.Setenv("SECRET", "from-env")

	out, err := captureOutput(t, NewGetCommand(cfg), []string{"secret"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", out)

	out, err = captureOutput(t, NewGetCommand(cfg), []string{"secret", "--source-only"})
	require.NoError(t, err)
	assert.Equal(t, "1234", out)
}

func TestGetCommand_JSONOutput(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, newTestStore())

	out, err := captureOutput(t, NewGetCommand(cfg), []string{"secret", "--json"})
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "secret", result["name"])
	assert.Equal(t, "1234", result["value"])
	assert.Equal(t, "KeyVaultConfigSource", result["source"])
}

func TestGetCommand_NotFound(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, newTestStore())

	_, err := captureOutput(t, NewGetCommand(cfg), []string{"missing.key"})
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "missing.key")
	assert.Contains(t, userErr.Suggestion, "missing-key")
}

func TestGetCommand_NoStoreConfigured(t *testing.T) {
	cfg := newTestConfig(t, "version: 0\ndefaults:\n  app.name: demo\n")
	store := newTestStore()
	useStore(t, store)

	out, err := captureOutput(t, NewGetCommand(cfg), []string{"app.name"})
	require.NoError(t, err)
	assert.Equal(t, "demo", out)

	_, err = captureOutput(t, NewGetCommand(cfg), []string{"secret", "--source-only"})
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Suggestion, config.EnvURL)
	assert.Equal(t, 0, store.ListCalls()+store.GetCalls())
}

func TestGetCommand_StoreError(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, newTestStore().WithListError(assert.AnError))

	_, err := captureOutput(t, NewGetCommand(cfg), []string{"secret"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGetCommand_RequiresName(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	_, err := captureOutput(t, NewGetCommand(cfg), []string{})
	assert.Error(t, err)
}

func TestNamesCommand(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	t.Setenv("KVCONFIG_NAMES_TEST", "1")
	useStore(t, newTestStore())

	out, err := captureOutput(t, NewNamesCommand(cfg), []string{})
	require.NoError(t, err)
	assert.Equal(t, "anotherSecret\nsecret\n", out)

	out, err = captureOutput(t, NewNamesCommand(cfg), []string{"--all"})
	require.NoError(t, err)
	assert.Contains(t, out, "app.name\n")
	assert.Contains(t, out, "KVCONFIG_NAMES_TEST\n")
}

func TestPropertiesCommand_Redacted(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, newTestStore())

	out, err := captureOutput(t, NewPropertiesCommand(cfg), []string{})
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "anotherSecret")
	testutil.AssertNoSecretLeak(t, out, []string{"1234", "5678"})
}

func TestPropertiesCommand_RevealJSON(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	useStore(t, newTestStore())

	out, err := captureOutput(t, NewPropertiesCommand(cfg), []string{"--reveal", "--json"})
	require.NoError(t, err)

	var props map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &props))
	assert.Equal(t, map[string]string{"secret": "1234", "anotherSecret": "5678"}, props)
}

func TestRemapCommand(t *testing.T) {
	out, err := captureOutput(t, NewRemapCommand(&config.Config{Logger: logging.Nop()}), []string{"db.password", "my_api.key", "plain"})
	require.NoError(t, err)
	assert.Regexp(t, `db\.password\s+db-password`, out)
	assert.Regexp(t, `my_api\.key\s+my-api-key`, out)
	assert.Regexp(t, `plain\s+plain`, out)
}

func TestDoctorCommand(t *testing.T) {
	cfg := newTestConfig(t, testConfig)
	store := newTestStore()
	useStore(t, store)

	out, err := captureOutput(t, NewDoctorCommand(cfg), []string{})
	require.NoError(t, err)
	assert.Contains(t, out, "https://test-vault.vault.azure.net/")
	assert.Contains(t, out, stores.TypeAzureKeyVault)
	assert.Contains(t, out, "listed 2 secrets")
	assert.Equal(t, 1, store.ListCalls())
	assert.Equal(t, 0, store.GetCalls())
}

func TestDoctorCommand_DirectReportsMatches(t *testing.T) {
	cfg := newTestConfig(t, testConfig+"cache:\n  enabled: false\n")
	useStore(t, newTestStore().WithSecret("not_valid", "x"))

	out, err := captureOutput(t, NewDoctorCommand(cfg), []string{})
	require.NoError(t, err)
	assert.Contains(t, out, "listed 3 secrets")
	assert.Contains(t, out, "2 of them match")
}

func TestDoctorCommand_Failures(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		cfg := newTestConfig(t, "version: 0\n")
		_, err := captureOutput(t, NewDoctorCommand(cfg), []string{})
		var userErr dserrors.UserError
		assert.ErrorAs(t, err, &userErr)
	})

	t.Run("unreachable", func(t *testing.T) {
		cfg := newTestConfig(t, testConfig)
		useStore(t, newTestStore().WithListError(assert.AnError))
		out, err := captureOutput(t, NewDoctorCommand(cfg), []string{})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, out, "unreachable")
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := newTestConfig(t, "version: 0\ncache:\n  ttl_ms: -5\n")
		_, err := captureOutput(t, NewDoctorCommand(cfg), []string{})
		var cfgErr dserrors.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})
}
