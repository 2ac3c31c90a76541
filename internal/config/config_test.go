package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/shelf")
	original.Storage = StorageConfig{Type: "s3", S3Bucket: "shelf-content", S3Prefix: "prod", S3Region: "eu-west-1", Encrypted: true}
	original.Queue = QueueConfig{Type: "redis", RedisAddr: "localhost:6379", RedisDB: 2}
	original.Filesystem.Ignore = []string{"*.log", ".git"}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Log != original.Log {
		t.Errorf("Log = %+v, want %+v", got.Log, original.Log)
	}
	if got.Storage != original.Storage {
		t.Errorf("Storage = %+v, want %+v", got.Storage, original.Storage)
	}
	if got.Queue != original.Queue {
		t.Errorf("Queue = %+v, want %+v", got.Queue, original.Queue)
	}
	if got.Spool != original.Spool {
		t.Errorf("Spool = %+v, want %+v", got.Spool, original.Spool)
	}
	if got.Engine != original.Engine {
		t.Errorf("Engine = %+v, want %+v", got.Engine, original.Engine)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/shelf")

	if cfg.BaseDir != "/data/shelf" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/shelf")
	}
	if cfg.Log.Dir != "/data/shelf/log" {
		t.Errorf("Log.Dir = %q, want %q", cfg.Log.Dir, "/data/shelf/log")
	}
	if cfg.Database.DataDir != "/data/shelf/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/shelf/db")
	}
	if cfg.Encryption.PublicKeyPath != "/data/shelf/keys/shelf.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/shelf/keys/shelf.pub")
	}
	if cfg.Engine.NearDuplicateDistance != 5 {
		t.Errorf("Engine.NearDuplicateDistance = %d, want 5", cfg.Engine.NearDuplicateDistance)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(NewConfig()) error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"unknown database type", func(c *Config) { c.Database.Type = "postgres" }, "Database.Type"},
		{"sqlite without data dir", func(c *Config) { c.Database.DataDir = "" }, "Database.DataDir"},
		{"s3 without bucket", func(c *Config) { c.Storage = StorageConfig{Type: "s3"} }, "Storage.S3Bucket"},
		{"filesystem storage without root", func(c *Config) { c.Storage.Root = "" }, "Storage.Root"},
		{"redis without address", func(c *Config) { c.Queue = QueueConfig{Type: "redis"} }, "Queue.RedisAddr"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "Log.Level"},
		{"distance above 64", func(c *Config) { c.Engine.NearDuplicateDistance = 65 }, "Engine.NearDuplicateDistance"},
		{"metrics without address", func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} }, "Metrics.ListenAddr"},
		{"encrypted storage without key", func(c *Config) {
			c.Storage.Encrypted = true
			c.Encryption.PublicKeyPath = ""
		}, "public_key_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/shelf")
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "shelf.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "shelf.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		cfg := NewConfig(dir)
		cfg.Queue.Type = "kafka"

		if err := Init(filepath.Join(dir, "shelf.toml"), cfg); err == nil {
			t.Fatal("Init() expected validation error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "shelf.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/shelf.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
