package store

import (
	"database/sql"
	"fmt"
)

// Operational settings, distinct from the admin-authored plugin
// configuration document. Seeded by migrations.
var backupKeys = []string{
	"backup_enabled",
	"backup_s3_endpoint",
	"backup_s3_bucket",
	"backup_s3_region",
	"backup_s3_access_key",
	"backup_s3_secret_key",
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) getKeys(keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		val, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

// GetBackupSettings returns the S3 snapshot settings.
func (s *SettingsStore) GetBackupSettings() (map[string]string, error) {
	return s.getKeys(backupKeys)
}

// UpdateBackupSettings writes the given backup settings. Unknown keys
// are rejected so typos do not create orphan rows.
func (s *SettingsStore) UpdateBackupSettings(values map[string]string) error {
	allowed := map[string]bool{}
	for _, k := range backupKeys {
		allowed[k] = true
	}
	for key, value := range values {
		if !allowed[key] {
			return fmt.Errorf("unknown backup setting %q", key)
		}
		if err := s.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
