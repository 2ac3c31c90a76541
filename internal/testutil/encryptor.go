package testutil

import (
	"shelf-go/internal/encryption"
	"shelf-go/internal/shelf"
	"shelf-go/internal/storage"
)

// NewTestEncryptor returns the deterministic test encryptor.
func NewTestEncryptor() shelf.Encryptor {
	return encryption.NewTestEncryptor()
}

// NewEncryptedTestStorage returns unlocked encrypted storage over memory,
// along with the memory backend holding the ciphertext.
func NewEncryptedTestStorage() (*storage.EncryptedStorage, *storage.MemoryStorage) {
	inner := storage.NewMemoryStorage()
	enc := encryption.NewTestEncryptor()
	return storage.NewEncryptedStorage(inner, enc, encryption.TestDecryptionContext{}), inner
}
