// Package credstore persists small named secrets, such as the API key used
// by the REST client, across process restarts.
//
// Three backends are provided: Badger for an on-disk store under the user's
// config directory, Keyring for the operating system keychain, and Memory
// for tests.
package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when no secret is stored under the name.
var ErrNotFound = errors.New("credstore: not found")

// Store holds secrets by name.
type Store interface {
	// Get returns the secret stored under name, or ErrNotFound.
	Get(ctx context.Context, name string) (string, error)

	// Set stores value under name, replacing any previous value.
	Set(ctx context.Context, name, value string) error

	// Delete removes name. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the store.
	Close() error
}

// record is the encoded form of a secret in byte-oriented backends.
type record struct {
	Value     string    `msgpack:"value"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

func encodeRecord(value string) ([]byte, error) {
	return msgpack.Marshal(&record{Value: value, UpdatedAt: time.Now().UTC()})
}

func decodeRecord(b []byte) (record, error) {
	var r record
	err := msgpack.Unmarshal(b, &r)
	return r, err
}
