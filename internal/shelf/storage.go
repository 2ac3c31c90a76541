package shelf

import (
	"context"
	"io"
)

// Storage is a byte-storage backend. Content is addressed by namespace path
// and key; the engine uses the content hash as key, so a namespace stores
// each distinct content once and tree moves never touch bytes.
type Storage interface {
	// Write stores the bytes read from r under key and returns the number of
	// bytes consumed. Writing an existing key replaces it.
	Write(ctx context.Context, namespace, key string, r io.Reader) (int64, error)

	// Read opens the content stored under key. Missing keys yield an error
	// wrapping ErrNotFound.
	Read(ctx context.Context, namespace, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, namespace, key string) error

	// Copy duplicates content between namespaces.
	Copy(ctx context.Context, fromNamespace, toNamespace, key string) error

	// Exists reports whether key is stored.
	Exists(ctx context.Context, namespace, key string) (bool, error)

	// ValidateSetup verifies that the backend is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
