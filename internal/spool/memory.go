package spool

import (
	"bytes"
	"io"

	"shelf-go/internal/shelf"
)

// NewMemorySpool creates a spool that holds uploads in memory.
// maxSize of 0 means unlimited.
func NewMemorySpool(maxSize int64) shelf.Spool {
	return &spool{store: memoryStore{}, maxSize: maxSize}
}

type memoryStore struct{}

func (memoryStore) NewBuffer() (buffer, error) {
	return &memoryBuffer{}, nil
}

type memoryBuffer struct {
	bytes.Buffer
	data []byte
}

func (b *memoryBuffer) Seal() error {
	b.data = b.Bytes()
	return nil
}

func (b *memoryBuffer) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b *memoryBuffer) Remove() error {
	b.data = nil
	b.Reset()
	return nil
}
