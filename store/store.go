// Package store persists vault-key bundles and encrypted items. It sits
// outside the zero-knowledge boundary: everything it handles is either an
// opaque ciphertext blob or metadata that already passed the boundary
// validator, and it re-validates metadata before every write as defense in
// depth.
package store

import (
	"context"
	"errors"

	"github.com/zkvault/zkvault/internal/vault"
)

// ErrNotFound is returned when a bundle or item does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract consumed by the engine.
type Store interface {
	SaveBundle(ctx context.Context, b vault.Bundle) error
	LoadBundle(ctx context.Context) (vault.Bundle, error)

	PutItem(ctx context.Context, item vault.EncryptedItem) error
	GetItem(ctx context.Context, id string) (vault.EncryptedItem, error)
	ListItems(ctx context.Context) ([]vault.EncryptedItem, error)
	DeleteItem(ctx context.Context, id string) error

	Close() error
}
