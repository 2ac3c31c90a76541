// Package chash computes content hashes in the Dropbox content-hash format:
// the SHA-256 of the concatenated SHA-256 digests of each 4 MiB block,
// hex-encoded. Empty content hashes to the empty string.
package chash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// BlockSize is the size of the blocks hashed individually.
const BlockSize = 4 * 1024 * 1024

// Empty is the content hash of zero bytes.
const Empty = ""

// Hash is a streaming content hasher. The zero value is not usable; call New.
type Hash struct {
	block    hash.Hash
	blockLen int
	digests  []byte
	n        int64
}

// New returns an empty Hash.
func New() *Hash {
	return &Hash{block: sha256.New()}
}

// Write adds p to the hash. It never returns an error.
func (h *Hash) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		chunk := p
		if room := BlockSize - h.blockLen; len(chunk) > room {
			chunk = chunk[:room]
		}
		h.block.Write(chunk)
		h.blockLen += len(chunk)
		h.n += int64(len(chunk))
		p = p[len(chunk):]

		if h.blockLen == BlockSize {
			h.digests = h.block.Sum(h.digests)
			h.block.Reset()
			h.blockLen = 0
		}
	}
	return total, nil
}

// Len returns the number of bytes written.
func (h *Hash) Len() int64 {
	return h.n
}

// Sum returns the hex content hash of everything written so far.
func (h *Hash) Sum() string {
	if h.n == 0 {
		return Empty
	}
	digests := h.digests
	if h.blockLen > 0 {
		digests = h.block.Sum(append([]byte(nil), digests...))
	}
	sum := sha256.Sum256(digests)
	return hex.EncodeToString(sum[:])
}

// Sum hashes everything read from r and returns the hash and byte count.
func Sum(r io.Reader) (string, int64, error) {
	h := New()
	if _, err := io.Copy(h, r); err != nil {
		return "", 0, fmt.Errorf("hashing content: %w", err)
	}
	return h.Sum(), h.Len(), nil
}
