package stores

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	akeyless "github.com/akeylesslabs/akeyless-go/v3"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// akeylessTokenTTL is how long an Akeyless token is reused. Tokens last 30
// minutes.
const akeylessTokenTTL = 25 * time.Minute

// errAkeylessItemNotFound is returned by the SDK client when the response
// does not contain the requested path.
var errAkeylessItemNotFound = errors.New("akeyless item not found")

// AkeylessAPI abstracts the Akeyless calls the store makes.
type AkeylessAPI interface {
	// Authenticate obtains an access token and how long it may be reused.
	Authenticate(ctx context.Context) (token string, ttl time.Duration, err error)

	// ListItems returns the full item names below path.
	ListItems(ctx context.Context, token, path string) ([]string, error)

	// GetSecret returns the current value of the static secret at path.
	GetSecret(ctx context.Context, token, path string) (string, error)
}

// AkeylessStore reads static secrets from one Akeyless folder.
//
// The store is addressed as akeyless://<gateway-host>/<folder>. Items are
// reported relative to the folder, so /prod/app/db-password in folder
// /prod/app is the secret db-password.
type AkeylessStore struct {
	client AkeylessAPI
	folder string
	logger *logging.Logger
	now    func() time.Time

	// mu guards token and expires.
	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ lookup.Store = (*AkeylessStore)(nil)

// AkeylessStoreOption is a functional option for configuring the Akeyless store.
type AkeylessStoreOption func(*AkeylessStore)

// WithAkeylessClient sets a custom Akeyless client (for testing).
func WithAkeylessClient(client AkeylessAPI) AkeylessStoreOption {
	return func(s *AkeylessStore) {
		s.client = client
	}
}

// WithAkeylessClock replaces time.Now for token expiry.
func WithAkeylessClock(now func() time.Time) AkeylessStoreOption {
	return func(s *AkeylessStore) {
		s.now = now
	}
}

// NewAkeylessStore creates a store for akeyless://<gateway-host>/<folder>.
func NewAkeylessStore(cfg Config, logger *logging.Logger, opts ...AkeylessStoreOption) (*AkeylessStore, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, dserrors.ConfigError{
			Field:      "store.url",
			Value:      cfg.URL,
			Message:    "invalid Akeyless URL",
			Suggestion: "Use akeyless://api.akeyless.io/<folder>",
		}
	}

	s := &AkeylessStore{
		folder: akeylessFolder(u.Path),
		logger: logger.With("store", TypeAkeyless),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := newAkeylessSDKClient(cfg, "https://"+u.Host)
		if err != nil {
			return nil, err
		}
		s.client = client
	}

	return s, nil
}

// NewAkeylessStoreFactory is the registry Factory for Akeyless.
func NewAkeylessStoreFactory(_ context.Context, cfg Config, logger *logging.Logger) (lookup.Store, error) {
	s, err := NewAkeylessStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// akeylessFolder normalizes a URL path to "" or "/a/b".
func akeylessFolder(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Name implements lookup.Store.
func (s *AkeylessStore) Name() string {
	return TypeAkeyless
}

// ListSecretNames lists the folder and returns item names relative to it.
func (s *AkeylessStore) ListSecretNames(ctx context.Context) ([]string, error) {
	token, err := s.getToken(ctx)
	if err != nil {
		return nil, err
	}

	path := s.folder
	if path == "" {
		path = "/"
	}
	items, err := s.client.ListItems(ctx, token, path)
	if err != nil {
		s.dropTokenOnAuthError(err)
		return nil, dserrors.StoreError(TypeAkeyless, "list", err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if !strings.HasPrefix(item, s.folder+"/") {
			continue
		}
		if name := strings.TrimPrefix(item, s.folder+"/"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// GetSecret fetches the static secret folder/name.
func (s *AkeylessStore) GetSecret(ctx context.Context, name string) (string, error) {
	token, err := s.getToken(ctx)
	if err != nil {
		return "", err
	}

	path := s.folder + "/" + name
	s.logger.Debug("Fetching Akeyless secret: %s", logging.Secret(path))

	value, err := s.client.GetSecret(ctx, token, path)
	if err != nil {
		if isAkeylessNotFoundError(err) {
			return "", lookup.NotFoundError{Store: TypeAkeyless, Key: name}
		}
		s.dropTokenOnAuthError(err)
		return "", dserrors.StoreError(TypeAkeyless, "get", err)
	}
	return value, nil
}

// getToken returns the cached token or authenticates for a new one.
func (s *AkeylessStore) getToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}

	token, ttl, err := s.client.Authenticate(ctx)
	if err != nil {
		return "", dserrors.StoreError(TypeAkeyless, "auth", err)
	}
	s.token = token
	s.expires = s.now().Add(ttl)
	s.logger.Debug("Authenticated to Akeyless, token valid for %s", ttl)
	return token, nil
}

// dropTokenOnAuthError forgets the token when the gateway rejected it so the
// next call authenticates again.
func (s *AkeylessStore) dropTokenOnAuthError(err error) {
	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "unauthorized") && !strings.Contains(errStr, "401") {
		return
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func isAkeylessNotFoundError(err error) bool {
	if errors.Is(err, errAkeylessItemNotFound) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "itemNotFound")
}

// akeylessSDKClient implements AkeylessAPI with the official SDK.
type akeylessSDKClient struct {
	api       *akeyless.APIClient
	accessID  string
	accessKey string
	method    string
}

func newAkeylessSDKClient(cfg Config, gateway string) (*akeylessSDKClient, error) {
	ak := cfg.Akeyless
	if ak.GatewayURL != "" {
		gateway = ak.GatewayURL
	}
	if ak.AccessID == "" {
		return nil, dserrors.ConfigError{
			Field:      "store.akeyless.access_id",
			Message:    "Akeyless access ID is required",
			Suggestion: "Set store.akeyless.access_id to the auth method's access ID",
		}
	}

	accessKey := ak.AccessKey
	if accessKey == "" && !ak.AccessKeyKeyring.IsZero() {
		var err error
		accessKey, err = ak.AccessKeyKeyring.Read()
		if err != nil {
			return nil, err
		}
	}
	method := ak.AccessType
	if (method == "" || method == "access_key") && accessKey == "" {
		return nil, dserrors.ConfigError{
			Field:      "store.akeyless.access_key",
			Message:    "API key authentication needs an access key",
			Suggestion: "Set store.akeyless.access_key or access_key_keyring, or choose access_type aws_iam, azure_ad or gcp",
		}
	}

	configuration := akeyless.NewConfiguration()
	configuration.Servers = []akeyless.ServerConfiguration{{URL: gateway}}
	if cfg.Timeout > 0 {
		configuration.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &akeylessSDKClient{
		api:       akeyless.NewAPIClient(configuration),
		accessID:  ak.AccessID,
		accessKey: accessKey,
		method:    method,
	}, nil
}

func (c *akeylessSDKClient) Authenticate(ctx context.Context) (string, time.Duration, error) {
	body := akeyless.NewAuthWithDefaults()
	body.SetAccessId(c.accessID)
	switch c.method {
	case "", "access_key":
		body.SetAccessKey(c.accessKey)
	default:
		body.SetAccessType(c.method)
	}

	res, _, err := c.api.V2Api.Auth(ctx).Body(*body).Execute()
	if err != nil {
		return "", 0, fmt.Errorf("%s authentication failed: %w", c.methodName(), err)
	}
	return res.GetToken(), akeylessTokenTTL, nil
}

func (c *akeylessSDKClient) methodName() string {
	if c.method == "" {
		return "access_key"
	}
	return c.method
}

func (c *akeylessSDKClient) ListItems(ctx context.Context, token, path string) ([]string, error) {
	body := akeyless.NewListItems()
	body.SetPath(path)
	body.SetToken(token)

	res, _, err := c.api.V2Api.ListItems(ctx).Body(*body).Execute()
	if err != nil {
		return nil, err
	}

	items := res.GetItems()
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.GetItemName()
	}
	return names, nil
}

func (c *akeylessSDKClient) GetSecret(ctx context.Context, token, path string) (string, error) {
	body := akeyless.NewGetSecretValue([]string{path})
	body.SetToken(token)

	res, _, err := c.api.V2Api.GetSecretValue(ctx).Body(*body).Execute()
	if err != nil {
		return "", err
	}

	value, ok := res[path]
	if !ok {
		return "", errAkeylessItemNotFound
	}
	return value, nil
}
