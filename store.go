package vs

import (
	"context"
	"io"
)

// Getter is a read-only Store (qv).
type Getter interface {
	// Get opens the body stored under hash.
	// It returns the body's size along with a reader for it.
	// The caller must close the reader.
	// If there is no such body the error is ErrNotFound.
	Get(ctx context.Context, hash Hash) (io.ReadCloser, int64, error)

	// List calls a function for each hash in the store in lexical order.
	// If the callback returns an error,
	// List exits with that error.
	List(ctx context.Context, f func(Hash) error) error
}

// Store is the content store.
// It persists one body per hash.
type Store interface {
	Getter

	// Put reads exactly size bytes from r and stores them under hash.
	// Put is atomic:
	// if it returns an error,
	// nothing new is visible under hash.
	// An existing body under the same hash is replaced;
	// deciding whether a hash is new is the job of the content index, not the store.
	Put(ctx context.Context, hash Hash, size int64, r io.Reader) error

	// Delete removes the body stored under hash.
	// It is not an error if there is none.
	Delete(ctx context.Context, hash Hash) error
}
