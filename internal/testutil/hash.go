package testutil

import (
	"crypto/sha256"
	"encoding/hex"

	"shelf-go/internal/chash"
)

// SHA256Hex returns the lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ContentHash returns the block content hash stored for data.
func ContentHash(data []byte) string {
	h := chash.New()
	h.Write(data)
	return h.Sum()
}
