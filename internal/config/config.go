package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for shelf.
type Config struct {
	BaseDir    string           `toml:"base_dir" validate:"required"`
	Log        LogConfig        `toml:"log"`
	Database   DatabaseConfig   `toml:"database"`
	Storage    StorageConfig    `toml:"storage"`
	Encryption EncryptionConfig `toml:"encryption"`
	Spool      SpoolConfig      `toml:"spool"`
	Queue      QueueConfig      `toml:"queue"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Engine     EngineConfig     `toml:"engine"`
	Worker     WorkerConfig     `toml:"worker"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// LogConfig controls the log file and its rotation.
type LogConfig struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"gte=0"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite
}

// StorageConfig represents configuration for the byte-storage backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory filesystem s3"`

	// Encrypted wraps the backend so content is stored age-encrypted.
	Encrypted bool `toml:"encrypted"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty" validate:"required_if=Type filesystem"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty" validate:"required_with=S3AccessKeyID"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=age test"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// SpoolConfig represents configuration for upload spooling.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SpoolConfig struct {
	Type          string `toml:"type" validate:"required,oneof=memory filesystem"`
	Dir           string `toml:"dir,omitempty" validate:"required_if=Type filesystem"` // only used for type=filesystem
	MaxUploadSize int64  `toml:"max_upload_size" validate:"gte=0"`                     // 0 means unlimited
}

// QueueConfig represents configuration for the background task queue.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type QueueConfig struct {
	Type          string `toml:"type" validate:"required,oneof=memory redis"`
	RedisAddr     string `toml:"redis_addr,omitempty" validate:"required_if=Type redis"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty" validate:"gte=0"`
	RedisKey      string `toml:"redis_key,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr" validate:"required_if=Enabled true"`
}

// EngineConfig tunes the namespace engine.
type EngineConfig struct {
	NearDuplicateDistance int `toml:"near_duplicate_distance" validate:"gte=0,lte=64"`
	ChildrenPageSize      int `toml:"children_page_size" validate:"gte=0"`
}

// WorkerConfig tunes the background worker.
type WorkerConfig struct {
	Concurrency int `toml:"concurrency" validate:"gte=0"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with local defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		Log: LogConfig{
			Dir:        filepath.Join(baseDir, "log"),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Storage:  StorageConfig{Type: "filesystem", Root: filepath.Join(baseDir, "storage")},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "shelf.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "shelf.key"),
		},
		Spool:   SpoolConfig{Type: "filesystem", Dir: filepath.Join(baseDir, "spool"), MaxUploadSize: 1 << 30},
		Queue:   QueueConfig{Type: "memory"},
		Metrics: MetricsConfig{ListenAddr: "127.0.0.1:9464"},
		Engine:  EngineConfig{NearDuplicateDistance: 5, ChildrenPageSize: 100},
		Worker:  WorkerConfig{Concurrency: 4},
		Filesystem: FilesystemConfig{
			Ignore: []string{".DS_Store", "Thumbs.db", "*.tmp"},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
