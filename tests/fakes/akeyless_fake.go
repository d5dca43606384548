package fakes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrFakeAkeylessSecretNotFound is returned when a path holds no secret.
var ErrFakeAkeylessSecretNotFound = errors.New("akeyless: secret not found (itemNotFound)")

// ErrFakeAkeylessUnauthorized is returned when a call presents a token that
// was never issued or has been revoked.
var ErrFakeAkeylessUnauthorized = errors.New("akeyless: 401 Unauthorized")

// FakeAkeylessClient is a test double for the Akeyless gateway.
//
// Every Authenticate issues a fresh token (Token plus a sequence number).
// Only the most recent token is accepted until RevokeToken is called.
type FakeAkeylessClient struct {
	// Token is the prefix of issued tokens
	Token string
	// TokenTTL is the TTL returned by Authenticate
	TokenTTL time.Duration
	// Secrets maps full item paths to values
	Secrets map[string]string
	// Errors maps item paths to errors returned by GetSecret
	Errors map[string]error
	// AuthErr is returned by Authenticate if set
	AuthErr error
	// ListErr is returned by ListItems if set
	ListErr error

	mu        sync.Mutex
	valid     string
	authCalls int
	getCalls  int
	listCalls int
}

// NewFakeAkeylessClient creates a new fake Akeyless client with defaults
func NewFakeAkeylessClient() *FakeAkeylessClient {
	return &FakeAkeylessClient{
		Token:    "fake-akeyless-token",
		TokenTTL: 30 * time.Second,
		Secrets:  make(map[string]string),
		Errors:   make(map[string]error),
	}
}

// SetSecret adds a static secret at path
func (f *FakeAkeylessClient) SetSecret(path, value string) {
	f.Secrets[path] = value
}

// RevokeToken makes the gateway reject the current token
func (f *FakeAkeylessClient) RevokeToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = ""
}

// AuthCalls returns how many times Authenticate was called
func (f *FakeAkeylessClient) AuthCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

// GetCalls returns how many times GetSecret was called
func (f *FakeAkeylessClient) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// ListCalls returns how many times ListItems was called
func (f *FakeAkeylessClient) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// Authenticate issues a new token
func (f *FakeAkeylessClient) Authenticate(ctx context.Context) (string, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authCalls++
	if f.AuthErr != nil {
		return "", 0, f.AuthErr
	}
	f.valid = fmt.Sprintf("%s-%d", f.Token, f.authCalls)
	return f.valid, f.TokenTTL, nil
}

// GetSecret retrieves a secret by path
func (f *FakeAkeylessClient) GetSecret(ctx context.Context, token, path string) (string, error) {
	f.mu.Lock()
	f.getCalls++
	valid := f.valid
	f.mu.Unlock()

	if token == "" || token != valid {
		return "", ErrFakeAkeylessUnauthorized
	}
	if err, ok := f.Errors[path]; ok {
		return "", err
	}
	if value, ok := f.Secrets[path]; ok {
		return value, nil
	}
	return "", ErrFakeAkeylessSecretNotFound
}

// ListItems lists every item at or below path, in path order
func (f *FakeAkeylessClient) ListItems(ctx context.Context, token, path string) ([]string, error) {
	f.mu.Lock()
	f.listCalls++
	valid := f.valid
	f.mu.Unlock()

	if token == "" || token != valid {
		return nil, ErrFakeAkeylessUnauthorized
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	prefix := strings.TrimSuffix(path, "/") + "/"
	paths := make([]string, 0, len(f.Secrets))
	for p := range f.Secrets {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
