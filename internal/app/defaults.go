package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the default locations of the config file and of shelf's data.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SHELF_CONFIG_PATH: config file location (default: ~/.config/shelf.toml)
//   - SHELF_HOME: base directory for shelf data (default: ~/.local/share/shelf)
func GetDefaults() (*Defaults, error) {
	configPath := os.Getenv("SHELF_CONFIG_PATH")
	baseDir := os.Getenv("SHELF_HOME")

	if configPath == "" || baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(home, ".config", "shelf.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(home, ".local", "share", "shelf")
		}
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
