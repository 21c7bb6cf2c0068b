package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/lalithlochan/sentinel/internal/kv"
)

const keyringService = "sentinel-console"

// KeyringStore keeps secrets in the operating system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the platform keyring, falling back to an encrypted file
// under dir when no native backend is available.
func OpenKeyring(dir, filePassword string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

var _ kv.Store = (*KeyringStore)(nil)

func (k *KeyringStore) Get(_ context.Context, key string) ([]byte, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", key, err)
	}
	return item.Data, nil
}

func (k *KeyringStore) Set(_ context.Context, key string, value []byte) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  value,
		Label: keyringService + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

func (k *KeyringStore) Delete(_ context.Context, key string) error {
	err := k.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
