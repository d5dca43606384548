package stores

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// AzureKeyVaultAPI is the subset of *azsecrets.Client the store uses.
type AzureKeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
}

// AzureKeyVaultStore reads secrets from an Azure Key Vault.
type AzureKeyVaultStore struct {
	client   AzureKeyVaultAPI
	vaultURL string
	logger   *logging.Logger
}

var _ lookup.Store = (*AzureKeyVaultStore)(nil)

// AzureStoreOption is a functional option for configuring the Azure store.
type AzureStoreOption func(*AzureKeyVaultStore)

// WithAzureKeyVaultClient sets a custom Key Vault client (for testing).
func WithAzureKeyVaultClient(client AzureKeyVaultAPI) AzureStoreOption {
	return func(s *AzureKeyVaultStore) {
		s.client = client
	}
}

// NewAzureKeyVaultStore creates an Azure Key Vault store for cfg.URL.
func NewAzureKeyVaultStore(cfg Config, logger *logging.Logger, opts ...AzureStoreOption) (*AzureKeyVaultStore, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return nil, dserrors.ConfigError{
			Field:      "store.url",
			Value:      cfg.URL,
			Message:    "invalid Key Vault URL",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	s := &AzureKeyVaultStore{
		vaultURL: cfg.URL,
		logger:   logger.With("store", TypeAzureKeyVault),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createAzureKeyVaultClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// NewAzureKeyVaultStoreFactory is the registry Factory for Azure Key Vault.
func NewAzureKeyVaultStoreFactory(_ context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error) {
	s, err := NewAzureKeyVaultStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// createAzureKeyVaultClient creates a Key Vault client with the configured authentication
func createAzureKeyVaultClient(cfg Config) (*azsecrets.Client, error) {
	cred, err := azureCredential(cfg.Azure)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	opts := &azsecrets.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{TryTimeout: cfg.Timeout},
		},
	}
	return azsecrets.NewClient(cfg.URL, cred, opts)
}

func azureCredential(cfg AzureConfig) (azcore.TokenCredential, error) {
	if cfg.UseManagedIdentity {
		if cfg.UserAssignedIdentityID != "" {
			return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
				ID: azidentity.ClientID(cfg.UserAssignedIdentityID),
			})
		}
		return azidentity.NewManagedIdentityCredential(nil)
	}

	secret := cfg.ClientSecret
	if secret == "" && !cfg.ClientSecretKeyring.IsZero() {
		var err error
		secret, err = cfg.ClientSecretKeyring.Read()
		if err != nil {
			return nil, err
		}
	}
	if secret != "" {
		if cfg.TenantID == "" || cfg.ClientID == "" {
			return nil, dserrors.ConfigError{
				Field:      "store.azure",
				Message:    "client secret authentication needs tenant_id and client_id",
				Suggestion: "Set store.azure.tenant_id and store.azure.client_id for the service principal",
			}
		}
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, secret, nil)
	}

	// Environment, workload identity, managed identity or Azure CLI.
	return azidentity.NewDefaultAzureCredential(nil)
}

// Name implements lookup.Store.
func (s *AzureKeyVaultStore) Name() string {
	return TypeAzureKeyVault
}

// ListSecretNames pages through the vault and returns the names of all
// enabled secrets.
func (s *AzureKeyVaultStore) ListSecretNames(ctx context.Context) ([]string, error) {
	var names []string

	pager := s.client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, dserrors.StoreError(TypeAzureKeyVault, "list", err)
		}
		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			// Disabled secrets cannot be read.
			if props.Attributes != nil && props.Attributes.Enabled != nil && !*props.Attributes.Enabled {
				s.logger.Debug("Skipping disabled secret %s", props.ID.Name())
				continue
			}
			names = append(names, props.ID.Name())
		}
	}

	return names, nil
}

// GetSecret fetches the latest version of a secret.
func (s *AzureKeyVaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	s.logger.Debug("Accessing Azure Key Vault secret: %s", logging.Secret(name))

	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return "", lookup.NotFoundError{Store: TypeAzureKeyVault, Key: name}
		}
		return "", dserrors.StoreError(TypeAzureKeyVault, "get", err)
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}

// isAzureNotFoundError checks if the error indicates a secret was not found
func isAzureNotFoundError(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound || respErr.ErrorCode == "SecretNotFound"
	}
	return false
}
