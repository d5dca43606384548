package stores

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// SSMAPI is the subset of *ssm.Client the Parameter Store store uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// AWSParameterStore reads parameters from AWS Systems Manager Parameter Store.
//
// The URL path selects a hierarchy: awsssm://eu-west-1/myapp lists only
// parameters under /myapp/ and reports them without that prefix, so the
// parameter /myapp/db-password is the secret db-password. SecureString
// parameters are decrypted.
type AWSParameterStore struct {
	client SSMAPI
	region string
	prefix string
	logger *logging.Logger
}

var _ lookup.Store = (*AWSParameterStore)(nil)

// SSMStoreOption is a functional option for configuring the Parameter Store store.
type SSMStoreOption func(*AWSParameterStore)

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMAPI) SSMStoreOption {
	return func(s *AWSParameterStore) {
		s.client = client
	}
}

// NewAWSParameterStore creates a store for awsssm://<region>[/path].
func NewAWSParameterStore(ctx context.Context, cfg Config, logger *logging.Logger, opts ...SSMStoreOption) (*AWSParameterStore, error) {
	region := hostOf(cfg.URL)
	if region == "" {
		region = cfg.AWS.Region
	}

	s := &AWSParameterStore{
		region: region,
		prefix: ssmPrefix(cfg.URL),
		logger: logger.With("store", TypeAWSParameterStore),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsCfg, err := loadAWSConfig(ctx, region, cfg)
		if err != nil {
			return nil, err
		}

		var clientOpts []func(*ssm.Options)
		if endpoint := cfg.AWS.Endpoint; endpoint != "" {
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		s.client = ssm.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

// NewAWSParameterStoreFactory is the registry Factory for Parameter Store.
func NewAWSParameterStoreFactory(ctx context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error) {
	s, err := NewAWSParameterStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ssmPrefix turns the URL path into a parameter hierarchy prefix: "" or
// "/a/b/".
func ssmPrefix(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return ""
	}
	return "/" + p + "/"
}

// Name implements lookup.Store.
func (s *AWSParameterStore) Name() string {
	return TypeAWSParameterStore
}

// ListSecretNames pages through DescribeParameters and returns every
// parameter name below the prefix, with the prefix removed.
func (s *AWSParameterStore) ListSecretNames(ctx context.Context) ([]string, error) {
	input := &ssm.DescribeParametersInput{}
	if s.prefix != "" {
		input.ParameterFilters = []ssmtypes.ParameterStringFilter{{
			Key:    aws.String("Name"),
			Option: aws.String("BeginsWith"),
			Values: []string{s.prefix},
		}}
	}

	var names []string
	paginator := ssm.NewDescribeParametersPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dserrors.StoreError(TypeAWSParameterStore, "list", err)
		}
		for _, p := range page.Parameters {
			name := strings.TrimPrefix(aws.ToString(p.Name), s.prefix)
			if name != "" {
				names = append(names, name)
			}
		}
	}

	return names, nil
}

// GetSecret fetches and decrypts one parameter.
func (s *AWSParameterStore) GetSecret(ctx context.Context, name string) (string, error) {
	parameterName := s.prefix + name
	s.logger.Debug("Fetching parameter from SSM: %s", logging.Secret(parameterName))

	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(parameterName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if isSSMNotFoundError(err) {
			return "", lookup.NotFoundError{Store: TypeAWSParameterStore, Key: name}
		}
		return "", dserrors.StoreError(TypeAWSParameterStore, "get", err)
	}

	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", lookup.NotFoundError{Store: TypeAWSParameterStore, Key: name}
	}
	return *out.Parameter.Value, nil
}

func isSSMNotFoundError(err error) bool {
	var notFound *ssmtypes.ParameterNotFound
	return errors.As(err, &notFound)
}
