package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no live record exists for the key.
var ErrNotFound = errors.New("session not found")

// Store is the keyed session storage abstraction. Implementations own the
// TTL: every Save (re)arms the full session lifetime, which gives the rolling
// expiry the HTTP layer relies on. Writes are last-write-wins; concurrent
// requests on the same session are not serialized.
type Store interface {
	// Get retrieves the record stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Save stores the record under id and resets its TTL.
	Save(ctx context.Context, id string, rec *Record) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error

	// Kind identifies the backing implementation ("redis" or "memory").
	Kind() string

	// Close releases store resources.
	Close() error
}
