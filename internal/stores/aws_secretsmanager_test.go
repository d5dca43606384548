package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
	"github.com/systmms/kvconfig/tests/fakes"
)

func newAWSStore(t *testing.T, fake *fakes.FakeSecretsManagerClient) *AWSSecretsManagerStore {
	t.Helper()
	s, err := NewAWSSecretsManagerStore(
		context.Background(),
		Config{URL: "awssm://eu-west-1"},
		logging.Nop(),
		WithSecretsManagerClient(fake),
	)
	require.NoError(t, err)
	return s
}

func TestAWSSecretsManagerStore_Region(t *testing.T) {
	s := newAWSStore(t, fakes.NewFakeSecretsManagerClient())
	assert.Equal(t, "eu-west-1", s.region)
	assert.Equal(t, TypeAWSSecretsManager, s.Name())
}

func TestAWSSecretsManagerStore_ListSecretNamesPages(t *testing.T) {
	fake := fakes.NewFakeSecretsManagerClient()
	fake.PageSize = 2
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		fake.AddSecretString(name, "v-"+name)
	}

	s := newAWSStore(t, fake)
	names, err := s.ListSecretNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
	assert.Equal(t, 3, fake.ListCalls())
}

func TestAWSSecretsManagerStore_ListError(t *testing.T) {
	fake := fakes.NewFakeSecretsManagerClient()
	fake.ListError = errors.New("AccessDeniedException: not authorized")

	s := newAWSStore(t, fake)
	_, err := s.ListSecretNames(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secretsmanager:ListSecrets")
	assert.ErrorIs(t, err, fake.ListError)
}

func TestAWSSecretsManagerStore_GetSecret(t *testing.T) {
	fake := fakes.NewFakeSecretsManagerClient()
	fake.AddSecretString("db-password", "hunter2")
	fake.AddSecretBinary("tls-key", []byte("raw-bytes"))
	fake.AddError("flaky", errors.New("ThrottlingException: rate exceeded"))
	s := newAWSStore(t, fake)
	ctx := context.Background()

	v, err := s.GetSecret(ctx, "db-password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	v, err = s.GetSecret(ctx, "tls-key")
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes", v)

	_, err = s.GetSecret(ctx, "missing")
	assert.True(t, lookup.IsNotFound(err))

	_, err = s.GetSecret(ctx, "flaky")
	require.Error(t, err)
	assert.False(t, lookup.IsNotFound(err))
}
