package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("SHELF_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("SHELF_HOME", "/custom/shelf")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := Defaults{ConfigPath: "/custom/config.toml", BaseDir: "/custom/shelf", LogDir: "/custom/shelf/log"}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("SHELF_CONFIG_PATH", "")
		t.Setenv("SHELF_HOME", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		home, _ := os.UserHomeDir()
		base := filepath.Join(home, ".local", "share", "shelf")
		want := Defaults{
			ConfigPath: filepath.Join(home, ".config", "shelf.toml"),
			BaseDir:    base,
			LogDir:     filepath.Join(base, "log"),
		}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("mixes env and home dir", func(t *testing.T) {
		t.Setenv("SHELF_CONFIG_PATH", "")
		t.Setenv("SHELF_HOME", "/data/shelf")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, ".config", "shelf.toml"); d.ConfigPath != want {
			t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, want)
		}
		if d.LogDir != "/data/shelf/log" {
			t.Errorf("LogDir = %q, want %q", d.LogDir, "/data/shelf/log")
		}
	})
}
