package storage

import (
	"context"
	"fmt"

	"shelf-go/internal/config"
	"shelf-go/internal/shelf"
)

// NewStorageFromConfig creates a Storage implementation based on the storage
// config type. When cfg.Encrypted is set the backend is wrapped in an
// EncryptedStorage using encryptor; the caller unlocks it for reads.
func NewStorageFromConfig(ctx context.Context, cfg config.StorageConfig, encryptor shelf.Encryptor) (shelf.Storage, error) {
	var backend shelf.Storage
	switch cfg.Type {
	case "memory":
		backend = NewMemoryStorage()
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires root to be set")
		}
		fs, err := NewFileSystemStorage(cfg.Root)
		if err != nil {
			return nil, err
		}
		backend = fs
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires s3_bucket to be set")
		}
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend = NewS3Storage(client, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}

	if !cfg.Encrypted {
		return backend, nil
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encrypted storage requires an encryptor")
	}
	return NewEncryptedStorage(backend, encryptor, nil), nil
}
