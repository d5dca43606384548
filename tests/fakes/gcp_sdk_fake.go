package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SecretIterator iterates over fake ListSecrets results. It is the same type
// as the store's iterator interface.
type SecretIterator = interface {
	Next() (*secretmanagerpb.Secret, error)
}

// FakeGCPSecretManagerClient is an in-memory stand-in for the Secret Manager
// client, keyed by full resource name.
type FakeGCPSecretManagerClient struct {
	// Secrets maps secret resource names (projects/X/secrets/Y) to the
	// payload of their latest version
	Secrets map[string][]byte
	// Errors maps resource names to errors to return
	Errors map[string]error
	// ListError is returned by the iterator instead of any secret
	ListError error

	mu          sync.Mutex
	accessCalls int
}

// NewFakeGCPSecretManagerClient creates an empty fake client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets: make(map[string][]byte),
		Errors:  make(map[string]error),
	}
}

// AddSecretString adds a secret whose latest version holds value
func (f *FakeGCPSecretManagerClient) AddSecretString(projectID, secretName, value string) {
	f.Secrets[fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)] = []byte(value)
}

// AddError configures AccessSecretVersion to fail for a resource name
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.Errors[resourceName] = err
}

// AccessCalls returns how many times AccessSecretVersion was called
func (f *FakeGCPSecretManagerClient) AccessCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessCalls
}

// AccessSecretVersion mocks the AccessSecretVersion operation. Only the
// "latest" alias is supported.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	f.accessCalls++
	f.mu.Unlock()

	if err, exists := f.Errors[req.Name]; exists {
		return nil, err
	}

	secretName, found := strings.CutSuffix(req.Name, "/versions/latest")
	if !found {
		return nil, GCPNotFoundError(req.Name)
	}
	data, exists := f.Secrets[secretName]
	if !exists {
		return nil, GCPNotFoundError(req.Name)
	}

	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    secretName + "/versions/1",
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

// ListSecrets mocks the ListSecrets operation for req.Parent
func (f *FakeGCPSecretManagerClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator {
	if f.ListError != nil {
		return NewFakeSecretIterator(nil, f.ListError)
	}

	prefix := req.Parent + "/secrets/"
	var names []string
	for name := range f.Secrets {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	secrets := make([]*secretmanagerpb.Secret, 0, len(names))
	for _, name := range names {
		secrets = append(secrets, &secretmanagerpb.Secret{Name: name})
	}
	return NewFakeSecretIterator(secrets, nil)
}

// FakeSecretIterator yields a fixed list of secrets, then iterator.Done
type FakeSecretIterator struct {
	secrets []*secretmanagerpb.Secret
	index   int
	err     error
}

// NewFakeSecretIterator creates an iterator. A non-nil err is returned by
// the first call to Next.
func NewFakeSecretIterator(secrets []*secretmanagerpb.Secret, err error) *FakeSecretIterator {
	return &FakeSecretIterator{secrets: secrets, err: err}
}

// Next returns the next secret or iterator.Done
func (it *FakeSecretIterator) Next() (*secretmanagerpb.Secret, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.index >= len(it.secrets) {
		return nil, iterator.Done
	}
	s := it.secrets[it.index]
	it.index++
	return s, nil
}

// GCPNotFoundError creates a gRPC NotFound error
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions", resourceName)
}

// GCPPermissionDeniedError creates a gRPC PermissionDenied error
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}
