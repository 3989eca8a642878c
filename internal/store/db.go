// Package store provides the typed byte store the consensus core reads
// and writes through: one namespace per record kind, point lookups by
// content hash, and the small iteration surface startup replay needs.
package store

import "errors"

// ErrNotFound is returned by Get for a key that has never been written
// (or was since deleted). Every DB implementation wraps its own
// not-found condition (Badger's ErrKeyNotFound, the memory map's
// missing entry) in this sentinel so callers — chain.loadCheckpoint's
// Has-then-Get dance aside — can use errors.Is instead of matching on
// backend-specific error strings.
var ErrNotFound = errors.New("store: key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix. The callback
	// receives a copy of the key; the value slice may be the store's own
	// buffer and is only valid until fn returns. Return a non-nil error
	// from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
