package spool

import (
	"fmt"
	"io"
	"os"

	"shelf-go/internal/shelf"
)

// NewFileSystemSpool creates a spool that writes uploads to temp files
// under dir. maxSize of 0 means unlimited.
func NewFileSystemSpool(dir string, maxSize int64) (shelf.Spool, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &spool{store: fileStore{dir: dir}, maxSize: maxSize}, nil
}

type fileStore struct {
	dir string
}

func (s fileStore) NewBuffer() (buffer, error) {
	f, err := os.CreateTemp(s.dir, "spool-*")
	if err != nil {
		return nil, err
	}
	return &fileBuffer{f: f, path: f.Name()}, nil
}

type fileBuffer struct {
	f    *os.File
	path string
}

func (b *fileBuffer) Write(p []byte) (int, error) {
	return b.f.Write(p)
}

func (b *fileBuffer) Seal() error {
	if err := b.f.Close(); err != nil {
		return fmt.Errorf("closing spool file: %w", err)
	}
	return nil
}

func (b *fileBuffer) Open() (io.ReadCloser, error) {
	return os.Open(b.path)
}

func (b *fileBuffer) Remove() error {
	b.f.Close()
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing spool file: %w", err)
	}
	return nil
}
