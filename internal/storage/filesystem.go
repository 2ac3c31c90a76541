package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"shelf-go/internal/shelf"
)

// FileSystemStorage is a filesystem-based implementation of the Storage
// interface. Content is stored as files in a directory structure:
//
//	<root>/
//	  <namespace>/
//	    <key[:2]>/
//	      <key>
type FileSystemStorage struct {
	root string
}

// NewFileSystemStorage creates a new filesystem storage rooted at the given path.
func NewFileSystemStorage(root string) (*FileSystemStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileSystemStorage{root: root}, nil
}

func (v *FileSystemStorage) objectPath(namespace, key string) (string, error) {
	if err := checkAddress(namespace, key); err != nil {
		return "", err
	}
	return filepath.Join(v.root, namespace, shard(key), key), nil
}

// Write stores the bytes read from r under key using an atomic write
// (temp file + rename).
func (v *FileSystemStorage) Write(ctx context.Context, namespace, key string, r io.Reader) (int64, error) {
	destPath, err := v.objectPath(namespace, key)
	if err != nil {
		return 0, err
	}
	return v.writeFile(ctx, destPath, r)
}

// Read opens the content stored under key.
func (v *FileSystemStorage) Read(ctx context.Context, namespace, key string) (io.ReadCloser, error) {
	srcPath, err := v.objectPath(namespace, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: content %s/%s", shelf.ErrNotFound, namespace, key)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

// Delete removes key. Missing keys are not an error.
func (v *FileSystemStorage) Delete(ctx context.Context, namespace, key string) error {
	p, err := v.objectPath(namespace, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// Copy duplicates content between namespaces.
func (v *FileSystemStorage) Copy(ctx context.Context, fromNamespace, toNamespace, key string) error {
	src, err := v.Read(ctx, fromNamespace, key)
	if err != nil {
		return err
	}
	defer src.Close()

	destPath, err := v.objectPath(toNamespace, key)
	if err != nil {
		return err
	}
	_, err = v.writeFile(ctx, destPath, src)
	return err
}

// Exists reports whether key is stored.
func (v *FileSystemStorage) Exists(ctx context.Context, namespace, key string) (bool, error) {
	p, err := v.objectPath(namespace, key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat content: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the storage root is a writable directory.
func (v *FileSystemStorage) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("storage root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemStorage) writeFile(ctx context.Context, destPath string, r io.Reader) (int64, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create content directory: %w", err)
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, &contextReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

// contextReader stops a copy once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time check that FileSystemStorage implements shelf.Storage interface
var _ shelf.Storage = (*FileSystemStorage)(nil)
