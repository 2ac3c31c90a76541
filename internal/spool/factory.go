package spool

import (
	"fmt"

	"shelf-go/internal/config"
	"shelf-go/internal/shelf"
)

// NewSpoolFromConfig creates a Spool implementation based on the config type.
func NewSpoolFromConfig(cfg config.SpoolConfig) (shelf.Spool, error) {
	switch cfg.Type {
	case "memory":
		return NewMemorySpool(cfg.MaxUploadSize), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem spool requires dir to be set")
		}
		return NewFileSystemSpool(cfg.Dir, cfg.MaxUploadSize)
	default:
		return nil, fmt.Errorf("unknown spool type: %s", cfg.Type)
	}
}
