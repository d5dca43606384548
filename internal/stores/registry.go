// Package stores provides lookup.Store clients for the remote secret stores
// kvconfig can read from. The store is chosen by the scheme of the
// configured URL.
package stores

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// Store types, used in errors, logs and metrics.
const (
	TypeAzureKeyVault     = "azure.keyvault"
	TypeAWSSecretsManager = "aws.secretsmanager"
	TypeAWSParameterStore = "aws.ssm"
	TypeGCPSecretManager  = "gcp.secretmanager"
	TypeAkeyless          = "akeyless"
)

// Config holds everything needed to connect to a store.
type Config struct {
	// URL selects and addresses the store:
	//   https://<vault>.vault.azure.net/  Azure Key Vault
	//   awssm://<region>                  AWS Secrets Manager
	//   awsssm://<region>[/path]          AWS Systems Manager Parameter Store
	//   gcpsm://<project>                 GCP Secret Manager
	//   akeyless://<gateway>[/folder]     Akeyless
	URL string

	// Timeout bounds a single request to the store. Zero keeps the SDK default.
	Timeout time.Duration

	Azure    AzureConfig
	AWS      AWSConfig
	GCP      GCPConfig
	Akeyless AkeylessConfig
}

// AzureConfig holds Azure Key Vault authentication settings.
type AzureConfig struct {
	TenantID               string
	ClientID               string
	ClientSecret           string
	ClientSecretKeyring    KeyringRef
	UseManagedIdentity     bool
	UserAssignedIdentityID string
}

// AWSConfig holds AWS Secrets Manager settings.
type AWSConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// GCPConfig holds GCP Secret Manager settings.
type GCPConfig struct {
	CredentialsFile string
}

// AkeylessConfig holds Akeyless authentication settings.
type AkeylessConfig struct {
	// GatewayURL overrides https://<host> derived from the store URL.
	GatewayURL       string
	AccessID         string
	AccessKey        string
	AccessKeyKeyring KeyringRef
	// AccessType is access_key (default), aws_iam, azure_ad or gcp.
	AccessType string
}

// Factory creates a store from configuration.
type Factory func(ctx context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error)

type registration struct {
	storeType string
	factory   Factory
}

// Registry maps URL schemes to store factories.
type Registry struct {
	schemes map[string]registration
}

// NewRegistry creates a registry with the built-in stores.
func NewRegistry() *Registry {
	r := &Registry{
		schemes: make(map[string]registration),
	}

	r.RegisterFactory("https", TypeAzureKeyVault, NewAzureKeyVaultStoreFactory)
	r.RegisterFactory("awssm", TypeAWSSecretsManager, NewAWSSecretsManagerStoreFactory)
	r.RegisterFactory("awsssm", TypeAWSParameterStore, NewAWSParameterStoreFactory)
	r.RegisterFactory("gcpsm", TypeGCPSecretManager, NewGCPSecretManagerStoreFactory)
	r.RegisterFactory("akeyless", TypeAkeyless, NewAkeylessStoreFactory)

	return r
}

// RegisterFactory registers a factory for a URL scheme.
func (r *Registry) RegisterFactory(scheme, storeType string, factory Factory) {
	r.schemes[strings.ToLower(scheme)] = registration{storeType: storeType, factory: factory}
}

// TypeFor returns the store type addressed by rawURL.
func (r *Registry) TypeFor(rawURL string) (string, error) {
	reg, err := r.lookup(rawURL)
	if err != nil {
		return "", err
	}
	return reg.storeType, nil
}

// Open creates the store addressed by cfg.URL.
func (r *Registry) Open(ctx context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error) {
	reg, err := r.lookup(cfg.URL)
	if err != nil {
		return nil, err
	}
	logger.Debug("Opening %s store at %s", reg.storeType, cfg.URL)
	return reg.factory(ctx, cfg, logger)
}

// SupportedSchemes returns the registered URL schemes, sorted.
func (r *Registry) SupportedSchemes() []string {
	schemes := make([]string, 0, len(r.schemes))
	for s := range r.schemes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

func (r *Registry) lookup(rawURL string) (registration, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return registration{}, dserrors.ConfigError{
			Field:      "store.url",
			Value:      rawURL,
			Message:    "store URL must be an absolute URL with a host",
			Suggestion: "Use https://<vault>.vault.azure.net/, awssm://<region>, awsssm://<region>, gcpsm://<project> or akeyless://<gateway>/<folder>",
		}
	}

	reg, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return registration{}, dserrors.ConfigError{
			Field:      "store.url",
			Value:      rawURL,
			Message:    fmt.Sprintf("unsupported store scheme %q", u.Scheme),
			Suggestion: "Supported schemes: " + strings.Join(r.SupportedSchemes(), ", "),
		}
	}
	return reg, nil
}

// hostOf returns the host part of a store URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
