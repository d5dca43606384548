package stores

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrKeyringItemNotFound is returned when a referenced keyring entry does not exist.
var ErrKeyringItemNotFound = errors.New("keyring item not found")

// KeyringRef names an entry in the OS keyring (macOS Keychain, Secret
// Service on Linux, Windows Credential Manager).
type KeyringRef struct {
	Service string
	Account string
}

// IsZero reports whether the reference is unset.
func (k KeyringRef) IsZero() bool {
	return k.Service == "" && k.Account == ""
}

// Read returns the secret stored under the reference.
func (k KeyringRef) Read() (string, error) {
	if k.Service == "" || k.Account == "" {
		return "", fmt.Errorf("keyring reference needs both service and account")
	}
	secret, err := keyring.Get(k.Service, k.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s/%s", ErrKeyringItemNotFound, k.Service, k.Account)
		}
		return "", fmt.Errorf("read keyring %s/%s: %w", k.Service, k.Account, err)
	}
	return secret, nil
}
