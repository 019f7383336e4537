package credstore

import (
	"context"
	"errors"
	"fmt"

	zkr "github.com/zalando/go-keyring"
)

// DefaultService is the keychain service name used when none is given.
const DefaultService = "ancpanel"

// Keyring is a Store backed by the operating system keychain.
type Keyring struct {
	service string
}

// NewKeyring returns a keychain Store. Secrets are stored as accounts under
// service.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultService
	}
	return &Keyring{service: service}
}

func (k *Keyring) Get(_ context.Context, name string) (string, error) {
	v, err := zkr.Get(k.service, name)
	if errors.Is(err, zkr.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credstore: keychain get: %w", err)
	}
	return v, nil
}

func (k *Keyring) Set(_ context.Context, name, value string) error {
	if err := zkr.Set(k.service, name, value); err != nil {
		return fmt.Errorf("credstore: keychain set: %w", err)
	}
	return nil
}

func (k *Keyring) Delete(_ context.Context, name string) error {
	err := zkr.Delete(k.service, name)
	if err != nil && !errors.Is(err, zkr.ErrNotFound) {
		return fmt.Errorf("credstore: keychain delete: %w", err)
	}
	return nil
}

func (k *Keyring) Close() error { return nil }
