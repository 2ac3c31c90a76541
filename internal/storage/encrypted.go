package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"shelf-go/internal/shelf"
)

// ErrLocked is returned when reading encrypted content before the private
// key has been unlocked.
var ErrLocked = errors.New("encrypted storage is locked")

// EncryptedStorage encrypts content on its way into another backend and
// decrypts it on the way out. Writes only need the public key; reads need a
// DecryptionContext obtained from Encryptor.Unlock.
type EncryptedStorage struct {
	inner     shelf.Storage
	encryptor shelf.Encryptor
	dec       shelf.DecryptionContext
}

// NewEncryptedStorage wraps inner. dec may be nil for write-only use.
func NewEncryptedStorage(inner shelf.Storage, encryptor shelf.Encryptor, dec shelf.DecryptionContext) *EncryptedStorage {
	return &EncryptedStorage{inner: inner, encryptor: encryptor, dec: dec}
}

// Unlock sets the DecryptionContext used by Read.
func (e *EncryptedStorage) Unlock(dec shelf.DecryptionContext) {
	e.dec = dec
}

// Write encrypts r into the inner backend and returns the plaintext length.
func (e *EncryptedStorage) Write(ctx context.Context, namespace, key string, r io.Reader) (int64, error) {
	plain := &countingReader{r: r}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(e.encryptor.Encrypt(plain, pw))
	}()

	_, err := e.inner.Write(ctx, namespace, key, pr)
	// Unblock the encryptor if the inner write stopped early.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return 0, fmt.Errorf("writing encrypted content: %w", err)
	}
	return plain.n, nil
}

// Read decrypts the stored content as it is read.
func (e *EncryptedStorage) Read(ctx context.Context, namespace, key string) (io.ReadCloser, error) {
	if e.dec == nil {
		return nil, ErrLocked
	}
	sealed, err := e.inner.Read(ctx, namespace, key)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := e.dec.Decrypt(sealed, pw)
		sealed.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (e *EncryptedStorage) Delete(ctx context.Context, namespace, key string) error {
	return e.inner.Delete(ctx, namespace, key)
}

// Copy moves ciphertext as-is; every namespace shares one key pair.
func (e *EncryptedStorage) Copy(ctx context.Context, fromNamespace, toNamespace, key string) error {
	return e.inner.Copy(ctx, fromNamespace, toNamespace, key)
}

func (e *EncryptedStorage) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return e.inner.Exists(ctx, namespace, key)
}

// ValidateSetup checks the inner backend and that keys are in place.
func (e *EncryptedStorage) ValidateSetup(ctx context.Context) error {
	if !e.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys are not configured; run `shelf key setup`")
	}
	return e.inner.ValidateSetup(ctx)
}

var _ shelf.Storage = (*EncryptedStorage)(nil)
