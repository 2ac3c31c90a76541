// Package storage provides byte-storage backends for the engine. Content is
// laid out per namespace and addressed by key, which the engine sets to the
// content hash.
package storage

import (
	"fmt"
	"strings"

	"shelf-go/internal/shelf"
)

// checkAddress rejects namespace and key values that could escape the
// backend's layout.
func checkAddress(namespace, key string) error {
	for _, v := range []string{namespace, key} {
		if v == "" || v == "." || v == ".." || strings.ContainsAny(v, "/\\\x00") {
			return fmt.Errorf("%w: invalid storage address %q/%q", shelf.ErrInvalidPath, namespace, key)
		}
	}
	return nil
}

// shard returns the fan-out directory for key.
func shard(key string) string {
	if len(key) < 2 {
		return "_"
	}
	return key[:2]
}
