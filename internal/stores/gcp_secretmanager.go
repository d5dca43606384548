package stores

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// GCPSecretIterator iterates over ListSecrets results. It is satisfied by
// *secretmanager.SecretIterator.
type GCPSecretIterator = interface {
	Next() (*secretmanagerpb.Secret, error)
}

// GCPSecretManagerAPI is the subset of Secret Manager calls the store uses.
type GCPSecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) GCPSecretIterator
}

// gcpClient adapts *secretmanager.Client to GCPSecretManagerAPI.
type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g gcpClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) GCPSecretIterator {
	return g.c.ListSecrets(ctx, req)
}

// GCPSecretManagerStore reads secrets from a GCP project's Secret Manager.
type GCPSecretManagerStore struct {
	client    GCPSecretManagerAPI
	closer    func() error
	projectID string
	timeout   time.Duration
	logger    *logging.Logger
}

var _ lookup.Store = (*GCPSecretManagerStore)(nil)

// GCPStoreOption is a functional option for configuring the GCP store.
type GCPStoreOption func(*GCPSecretManagerStore)

// WithGCPSecretManagerClient sets a custom Secret Manager client (for testing).
func WithGCPSecretManagerClient(client GCPSecretManagerAPI) GCPStoreOption {
	return func(s *GCPSecretManagerStore) {
		s.client = client
	}
}

// NewGCPSecretManagerStore creates a store for gcpsm://<project>.
func NewGCPSecretManagerStore(ctx context.Context, cfg Config, logger *logging.Logger, opts ...GCPStoreOption) (*GCPSecretManagerStore, error) {
	projectID := hostOf(cfg.URL)
	if projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "store.url",
			Value:      cfg.URL,
			Message:    "GCP Secret Manager URL must name a project",
			Suggestion: "Use format: gcpsm://my-project-id",
		}
	}

	s := &GCPSecretManagerStore{
		projectID: projectID,
		timeout:   cfg.Timeout,
		logger:    logger.With("store", TypeGCPSecretManager),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createGCPSecretManagerClient(ctx, cfg.GCP)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		s.client = gcpClient{c: client}
		s.closer = client.Close
	}

	return s, nil
}

// NewGCPSecretManagerStoreFactory is the registry Factory for GCP Secret Manager.
func NewGCPSecretManagerStoreFactory(ctx context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error) {
	s, err := NewGCPSecretManagerStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func createGCPSecretManagerClient(ctx context.Context, cfg GCPConfig) (*secretmanager.Client, error) {
	var clientOptions []option.ClientOption

	if path := cfg.CredentialsFile; path != "" {
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(path))
	}

	return secretmanager.NewClient(ctx, clientOptions...)
}

// Name implements lookup.Store.
func (s *GCPSecretManagerStore) Name() string {
	return TypeGCPSecretManager
}

// Close releases the underlying gRPC connection.
func (s *GCPSecretManagerStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *GCPSecretManagerStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ListSecretNames iterates over every secret in the project and returns the
// short secret IDs.
func (s *GCPSecretManagerStore) ListSecretNames(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var names []string
	it := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: "projects/" + s.projectID,
	})
	for {
		secret, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, dserrors.StoreError(TypeGCPSecretManager, "list", err)
		}
		name := secret.GetName()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		if name != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

// GetSecret reads the latest version of a secret.
func (s *GCPSecretManagerStore) GetSecret(ctx context.Context, name string) (string, error) {
	s.logger.Debug("Accessing GCP secret: %s", logging.Secret(name))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", lookup.NotFoundError{Store: TypeGCPSecretManager, Key: name}
		}
		return "", dserrors.StoreError(TypeGCPSecretManager, "get", err)
	}

	return string(resp.GetPayload().GetData()), nil
}
