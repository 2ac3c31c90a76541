package app

import (
	"fmt"

	"shelf-go/internal/config"
	"shelf-go/internal/database"
	"shelf-go/internal/database/migrations"
	"shelf-go/internal/encryption"
)

// Migrate applies pending schema migrations to the configured database
// and returns the resulting status.
func Migrate(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, nil, nil)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return migrations.Status{}, err
	}
	return db.MigrationStatus()
}

// DatabaseStatus reports the configured database's schema version.
func DatabaseStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, nil, nil)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return db.MigrationStatus()
}

// SetupKeys generates the encryption key pair, protecting the private key
// with passphrase. Existing keys are never overwritten.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	return nil
}
