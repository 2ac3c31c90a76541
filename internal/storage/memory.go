package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"shelf-go/internal/shelf"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// It keeps all content in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStorage struct {
	mu      sync.RWMutex
	content map[string]map[string][]byte // namespace -> key -> content
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{content: make(map[string]map[string][]byte)}
}

// Write stores the bytes read from r under key.
func (m *MemoryStorage) Write(ctx context.Context, namespace, key string, r io.Reader) (int64, error) {
	if err := checkAddress(namespace, key); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.content[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.content[namespace] = ns
	}
	ns[key] = data
	return int64(len(data)), nil
}

// Read returns a reader over the content stored under key.
func (m *MemoryStorage) Read(ctx context.Context, namespace, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[namespace][key]
	if !ok {
		return nil, fmt.Errorf("%w: content %s/%s", shelf.ErrNotFound, namespace, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryStorage) Delete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.content[namespace], key)
	return nil
}

// Copy duplicates content between namespaces.
func (m *MemoryStorage) Copy(ctx context.Context, fromNamespace, toNamespace, key string) error {
	if err := checkAddress(toNamespace, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.content[fromNamespace][key]
	if !ok {
		return fmt.Errorf("%w: content %s/%s", shelf.ErrNotFound, fromNamespace, key)
	}
	ns, ok := m.content[toNamespace]
	if !ok {
		ns = make(map[string][]byte)
		m.content[toNamespace] = ns
	}
	ns[key] = data
	return nil
}

// Exists reports whether key is stored.
func (m *MemoryStorage) Exists(ctx context.Context, namespace, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.content[namespace][key]
	return ok, nil
}

// Keys returns the number of keys stored for namespace.
func (m *MemoryStorage) Keys(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.content[namespace])
}

// ValidateSetup always succeeds for in-memory storage.
func (m *MemoryStorage) ValidateSetup(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryStorage implements shelf.Storage interface
var _ shelf.Storage = (*MemoryStorage)(nil)
