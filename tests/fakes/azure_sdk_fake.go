package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

const fakeVaultURL = "https://test-vault.vault.azure.net"

// FakeAzureKeyVaultClient is an in-memory stand-in for *azsecrets.Client.
//
// It serves GetSecret and NewListSecretPropertiesPager from the Secrets map.
// Listing is split into pages of PageSize entries so callers exercise the
// pager loop.
type FakeAzureKeyVaultClient struct {
	// Secrets maps secret names to their data
	Secrets map[string]*AzureSecretData
	// Errors maps secret names to errors returned by GetSecret
	Errors map[string]error
	// ListError is returned by the page fetch at index ListErrorPage
	ListError     error
	ListErrorPage int
	// PageSize is the number of secrets per list page (default 2)
	PageSize int

	mu        sync.Mutex
	getCalls  int
	pageCalls int
}

// AzureSecretData holds the data for a fake Key Vault secret
type AzureSecretData struct {
	Value   *string
	Enabled bool
}

// NewFakeAzureKeyVaultClient creates an empty fake client
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets:  make(map[string]*AzureSecretData),
		Errors:   make(map[string]error),
		PageSize: 2,
	}
}

// AddSecretString adds an enabled secret
func (f *FakeAzureKeyVaultClient) AddSecretString(name, value string) {
	f.Secrets[name] = &AzureSecretData{Value: to.Ptr(value), Enabled: true}
}

// AddDisabledSecret adds a secret whose Enabled attribute is false
func (f *FakeAzureKeyVaultClient) AddDisabledSecret(name, value string) {
	f.Secrets[name] = &AzureSecretData{Value: to.Ptr(value), Enabled: false}
}

// AddError configures GetSecret to fail for a specific secret
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// GetCalls returns how many times GetSecret was called
func (f *FakeAzureKeyVaultClient) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// PageCalls returns how many list pages were fetched
func (f *FakeAzureKeyVaultClient) PageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls
}

// GetSecret mocks the GetSecret operation
func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()

	if err, exists := f.Errors[name]; exists {
		return azsecrets.GetSecretResponse{}, err
	}

	data, exists := f.Secrets[name]
	if !exists {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}

	id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s/%s", fakeVaultURL, name, "0123456789abcdef"))
	now := time.Now()
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    &id,
			Value: data.Value,
			Attributes: &azsecrets.SecretAttributes{
				Enabled: to.Ptr(data.Enabled),
				Updated: &now,
			},
		},
	}, nil
}

// NewListSecretPropertiesPager mocks the paged list operation. Secrets are
// listed in name order.
func (f *FakeAzureKeyVaultClient) NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse] {
	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 1
	}

	return runtime.NewPager(runtime.PagingHandler[azsecrets.ListSecretPropertiesResponse]{
		More: func(page azsecrets.ListSecretPropertiesResponse) bool {
			return page.NextLink != nil && *page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, page *azsecrets.ListSecretPropertiesResponse) (azsecrets.ListSecretPropertiesResponse, error) {
			start := 0
			if page != nil && page.NextLink != nil {
				start, _ = strconv.Atoi(*page.NextLink)
			}

			f.mu.Lock()
			index := f.pageCalls
			f.pageCalls++
			f.mu.Unlock()
			if f.ListError != nil && index == f.ListErrorPage {
				return azsecrets.ListSecretPropertiesResponse{}, f.ListError
			}

			end := min(start+pageSize, len(names))
			var props []*azsecrets.SecretProperties
			for _, name := range names[start:end] {
				id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s", fakeVaultURL, name))
				props = append(props, &azsecrets.SecretProperties{
					ID: &id,
					Attributes: &azsecrets.SecretAttributes{
						Enabled: to.Ptr(f.Secrets[name].Enabled),
					},
				})
			}

			var next *string
			if end < len(names) {
				next = to.Ptr(strconv.Itoa(end))
			}
			return azsecrets.ListSecretPropertiesResponse{
				SecretPropertiesListResult: azsecrets.SecretPropertiesListResult{
					Value:    props,
					NextLink: next,
				},
			}, nil
		},
	})
}

// AzureNotFoundError creates a fake Azure not found error
func AzureNotFoundError(secretName string) error {
	return &azcore.ResponseError{
		StatusCode: 404,
		ErrorCode:  "SecretNotFound",
	}
}

// AzureForbiddenError creates a fake Azure forbidden error
func AzureForbiddenError() error {
	return &azcore.ResponseError{
		StatusCode: 403,
		ErrorCode:  "Forbidden",
	}
}

// AzureThrottledError creates a fake Azure throttled error
func AzureThrottledError() error {
	return &azcore.ResponseError{
		StatusCode: 429,
		ErrorCode:  "TooManyRequests",
	}
}
