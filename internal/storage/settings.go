package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// GetFlag reads a boolean setting. ok is false when the key was never set.
func (s *SQLiteStorage) GetFlag(ctx context.Context, key string) (bool, bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, false, err
	}
	if err := validateString(key, "key"); err != nil {
		return false, false, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("setting %s has non-boolean value %q: %w", key, raw, err)
	}
	return value, true, nil
}

// SetFlag writes a boolean setting.
func (s *SQLiteStorage) SetFlag(ctx context.Context, key string, value bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, strconv.FormatBool(value))
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// DeleteFlag removes a setting. Deleting a missing key is not an error.
func (s *SQLiteStorage) DeleteFlag(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
