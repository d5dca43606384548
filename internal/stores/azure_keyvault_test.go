package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
	"github.com/systmms/kvconfig/tests/fakes"
	"github.com/systmms/kvconfig/tests/testutil"
)

func newAzureStore(t *testing.T, fake *fakes.FakeAzureKeyVaultClient) *AzureKeyVaultStore {
	t.Helper()
	s, err := NewAzureKeyVaultStore(
		Config{URL: "https://test-vault.vault.azure.net/"},
		logging.Nop(),
		WithAzureKeyVaultClient(fake),
	)
	require.NoError(t, err)
	return s
}

func TestAzureKeyVaultStore_InvalidURL(t *testing.T) {
	tests := []string{
		"",
		"http://test-vault.vault.azure.net/",
		"https://",
		"not a url",
	}
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			_, err := NewAzureKeyVaultStore(Config{URL: u}, logging.Nop(), WithAzureKeyVaultClient(fakes.NewFakeAzureKeyVaultClient()))
			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "store.url", cfgErr.Field)
		})
	}
}

func TestAzureKeyVaultStore_ListSecretNames(t *testing.T) {
	fake := fakes.NewFakeAzureKeyVaultClient()
	fake.PageSize = 2
	fake.AddSecretString("secret", "1234")
	fake.AddSecretString("anotherSecret", "5678")
	fake.AddSecretString("db-password", "hunter2")
	fake.AddSecretString("api-key", "k")
	fake.AddSecretString("zeta", "z")
	fake.AddDisabledSecret("retired", "old")

	s := newAzureStore(t, fake)
	names, err := s.ListSecretNames(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"secret", "anotherSecret", "db-password", "api-key", "zeta"}, names)
	assert.Equal(t, 3, fake.PageCalls(), "six secrets at two per page")
}

func TestAzureKeyVaultStore_ListEmptyVault(t *testing.T) {
	fake := fakes.NewFakeAzureKeyVaultClient()
	s := newAzureStore(t, fake)

	names, err := s.ListSecretNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestAzureKeyVaultStore_ListErrorOnLaterPage(t *testing.T) {
	fake := fakes.NewFakeAzureKeyVaultClient()
	fake.PageSize = 1
	fake.AddSecretString("a", "1")
	fake.AddSecretString("b", "2")
	fake.ListError = fakes.AzureForbiddenError()
	fake.ListErrorPage = 1

	s := newAzureStore(t, fake)
	_, err := s.ListSecretNames(context.Background())
	require.Error(t, err)

	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "azure.keyvault store error during list")
	assert.Contains(t, userErr.Suggestion, "access policies")
}

func TestAzureKeyVaultStore_GetSecret(t *testing.T) {
	fake := fakes.NewFakeAzureKeyVaultClient()
	fake.AddSecretString("secret", "1234")
	fake.AddError("throttled", fakes.AzureThrottledError())
	s := newAzureStore(t, fake)
	ctx := context.Background()

	v, err := s.GetSecret(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "1234", v)

	_, err = s.GetSecret(ctx, "missing")
	assert.True(t, lookup.IsNotFound(err), "expected NotFoundError, got %v", err)

	_, err = s.GetSecret(ctx, "throttled")
	require.Error(t, err)
	assert.False(t, lookup.IsNotFound(err))
	assert.Contains(t, err.Error(), "cache TTL")

	assert.Equal(t, 3, fake.GetCalls())
}

func TestIsAzureNotFoundError(t *testing.T) {
	assert.True(t, isAzureNotFoundError(fakes.AzureNotFoundError("x")))
	assert.False(t, isAzureNotFoundError(fakes.AzureForbiddenError()))
	assert.False(t, isAzureNotFoundError(errors.New("SecretNotFound in message only")))
}

func TestAzureKeyVaultStore_DoesNotLogSecrets(t *testing.T) {
	fake := fakes.NewFakeAzureKeyVaultClient()
	fake.AddSecretString("db-password", "hunter2-value")

	tl := testutil.NewTestLogger(t, true)
	s, err := NewAzureKeyVaultStore(
		Config{URL: "https://test-vault.vault.azure.net/"},
		tl.Logger(),
		WithAzureKeyVaultClient(fake),
	)
	require.NoError(t, err)

	v, err := s.GetSecret(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2-value", v)

	tl.AssertRedacted(t, "hunter2-value")
	tl.AssertNotContains(t, "db-password")
}
