package fakes

import (
	"context"
	"sync"

	"github.com/systmms/kvconfig/pkg/lookup"
)

// FakeStore is an in-memory lookup.Store.
//
// It counts list and get calls so tests can assert how many round trips a
// strategy made, and it can be told to fail or to block inside a list call.
//
// Example usage:
//
//	fake := fakes.NewFakeStore("test").
//	    WithSecret("db-password", "secret123").
//	    WithGetError("api-key", errors.New("connection failed"))
//
//	s := strategies.NewCached(fake)
//	res, err := s.Value(ctx, "db.password")
type FakeStore struct {
	name string

	mu      sync.Mutex
	secrets map[string]string
	listErr error
	getErrs map[string]error
	onList  func()

	listCalls int
	getCalls  map[string]int
}

var _ lookup.Store = (*FakeStore)(nil)

// NewFakeStore creates an empty FakeStore.
func NewFakeStore(name string) *FakeStore {
	return &FakeStore{
		name:     name,
		secrets:  make(map[string]string),
		getErrs:  make(map[string]error),
		getCalls: make(map[string]int),
	}
}

// WithSecret stores a secret.
func (f *FakeStore) WithSecret(name, value string) *FakeStore {
	f.SetSecret(name, value)
	return f
}

// WithSecrets stores every entry of secrets.
func (f *FakeStore) WithSecrets(secrets map[string]string) *FakeStore {
	for k, v := range secrets {
		f.SetSecret(k, v)
	}
	return f
}

// WithListError makes ListSecretNames fail with err until cleared with nil.
func (f *FakeStore) WithListError(err error) *FakeStore {
	f.SetListError(err)
	return f
}

// WithGetError makes GetSecret fail with err for name.
func (f *FakeStore) WithGetError(name string, err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrs[name] = err
	return f
}

// OnList registers a hook run at the start of every ListSecretNames call.
// The hook runs without the fake's lock held, so it may block.
func (f *FakeStore) OnList(hook func()) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onList = hook
	return f
}

// SetSecret creates or replaces a secret.
func (f *FakeStore) SetSecret(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[name] = value
}

// DeleteSecret removes a secret.
func (f *FakeStore) DeleteSecret(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, name)
}

// SetListError sets or clears the list failure.
func (f *FakeStore) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// Name implements lookup.Store.
func (f *FakeStore) Name() string {
	return f.name
}

// ListSecretNames implements lookup.Store. Names come back in map order.
func (f *FakeStore) ListSecretNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	hook := f.onList
	f.listCalls++
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.secrets))
	for k := range f.secrets {
		names = append(names, k)
	}
	return names, nil
}

// GetSecret implements lookup.Store.
func (f *FakeStore) GetSecret(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls[name]++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := f.getErrs[name]; ok {
		return "", err
	}
	v, ok := f.secrets[name]
	if !ok {
		return "", lookup.NotFoundError{Store: f.name, Key: name}
	}
	return v, nil
}

// ListCalls returns how many times ListSecretNames was called.
func (f *FakeStore) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// GetCalls returns how many times GetSecret was called for any name.
func (f *FakeStore) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.getCalls {
		total += n
	}
	return total
}

// GetCallsFor returns how many times GetSecret was called for name.
func (f *FakeStore) GetCallsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[name]
}

// ResetCalls zeroes every call counter.
func (f *FakeStore) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = 0
	f.getCalls = make(map[string]int)
}
