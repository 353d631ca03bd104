package keyvalue

import (
	"context"
)

// Store is the interface through which blob storage backends interact
// with the remote key-value service. It intentionally exposes only the
// small set of primitives the backends require, so that the chunking
// and pooling logic remains independent of the client library in use.
type Store interface {
	// Get returns the value stored under a key. If the key does
	// not exist, an error with code NOT_FOUND is returned.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value under a key, overwriting any existing
	// value atomically.
	Set(ctx context.Context, key string, value []byte) error
	// Exists reports for each provided key whether it is present.
	// The result has the same length and order as the input.
	Exists(ctx context.Context, keys []string) ([]bool, error)
	// Rename atomically moves the value stored under a key to
	// another key, overwriting the destination. Renaming a key
	// that does not exist is an infrastructure error.
	Rename(ctx context.Context, oldKey, newKey string) error
}
