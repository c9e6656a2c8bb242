package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newshound/internal/services"
)

// Setting returns the JSON value stored under key, if any.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value_json FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// PutSetting stores or replaces a runtime override. Values are JSON.
func (s *Store) PutSetting(ctx context.Context, key, valueJSON, description string) error {
	if strings.TrimSpace(key) == "" {
		return services.Wrap(services.ErrValidation, "storage", "put setting", "key is required", nil)
	}
	_, err := s.execWithRetry(ctx, `
		INSERT INTO settings (key, value_json, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, description = excluded.description, updated_at = excluded.updated_at`,
		key, valueJSON, nullableString(description), timeValue(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// DeleteSetting removes a runtime override, restoring the config default.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.execWithRetry(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}

// ListSettings returns all stored overrides keyed by setting name.
func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT key, value_json FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}
