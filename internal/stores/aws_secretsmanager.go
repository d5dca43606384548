package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// SecretsManagerAPI is the subset of *secretsmanager.Client the store uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSSecretsManagerStore reads secrets from AWS Secrets Manager.
type AWSSecretsManagerStore struct {
	client SecretsManagerAPI
	region string
	logger *logging.Logger
}

var _ lookup.Store = (*AWSSecretsManagerStore)(nil)

// AWSStoreOption is a functional option for configuring the AWS store.
type AWSStoreOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) AWSStoreOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// NewAWSSecretsManagerStore creates a store for awssm://<region>. The region
// may also come from cfg.AWS.Region or the SDK's default chain.
func NewAWSSecretsManagerStore(ctx context.Context, cfg Config, logger *logging.Logger, opts ...AWSStoreOption) (*AWSSecretsManagerStore, error) {
	region := hostOf(cfg.URL)
	if region == "" {
		region = cfg.AWS.Region
	}

	s := &AWSSecretsManagerStore{
		region: region,
		logger: logger.With("store", TypeAWSSecretsManager),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsCfg, err := loadAWSConfig(ctx, region, cfg)
		if err != nil {
			return nil, err
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint := cfg.AWS.Endpoint; endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		s.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

// NewAWSSecretsManagerStoreFactory is the registry Factory for AWS Secrets Manager.
func NewAWSSecretsManagerStoreFactory(ctx context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error) {
	s, err := NewAWSSecretsManagerStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements lookup.Store.
func (s *AWSSecretsManagerStore) Name() string {
	return TypeAWSSecretsManager
}

// ListSecretNames pages through ListSecrets and returns every secret name.
func (s *AWSSecretsManagerStore) ListSecretNames(ctx context.Context) ([]string, error) {
	var names []string

	paginator := secretsmanager.NewListSecretsPaginator(s.client, &secretsmanager.ListSecretsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dserrors.StoreError(TypeAWSSecretsManager, "list", err)
		}
		for _, entry := range page.SecretList {
			if name := aws.ToString(entry.Name); name != "" {
				names = append(names, name)
			}
		}
	}

	return names, nil
}

// GetSecret fetches the current version of a secret. Binary secrets are
// returned as their raw bytes.
func (s *AWSSecretsManagerStore) GetSecret(ctx context.Context, name string) (string, error) {
	s.logger.Debug("Accessing AWS secret: %s", logging.Secret(name))

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if isAWSNotFoundError(err) {
			return "", lookup.NotFoundError{Store: TypeAWSSecretsManager, Key: name}
		}
		return "", dserrors.StoreError(TypeAWSSecretsManager, "get", err)
	}

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}

// loadAWSConfig builds the SDK configuration shared by the AWS stores.
func loadAWSConfig(ctx context.Context, region string, cfg Config) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}
	if cfg.AWS.AccessKeyID != "" && cfg.AWS.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}
	if cfg.Timeout > 0 {
		configOpts = append(configOpts, config.WithHTTPClient(
			awshttp.NewBuildableClient().WithTimeout(cfg.Timeout),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func isAWSNotFoundError(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}
