// Package storage provides the key-value backends that hold the persisted
// snapshot: a legacy file store, the primary SQLite store, an in-memory
// store, and the migrating adapter that moves data from legacy to primary.
package storage

import "context"

// PersistKey is the well-known key under which the persisted snapshot lives.
const PersistKey = "memory-atlas-storage"

// Store is a key-value store over opaque string values.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
