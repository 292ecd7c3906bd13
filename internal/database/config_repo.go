package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fireflower/firemail/pkg/models"
)

// GetConfigEntry returns a configuration entry by key
func (db *DB) GetConfigEntry(ctx context.Context, key string) (*models.ConfigEntry, error) {
	var entry models.ConfigEntry
	query := "SELECT * FROM system_config WHERE `key` = ?"
	err := db.GetContext(ctx, &entry, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config entry: %w", err)
	}
	return &entry, nil
}

// UpsertConfigEntry inserts or updates a configuration entry
func (db *DB) UpsertConfigEntry(ctx context.Context, key, value, description string) error {
	now := time.Now()

	result, err := db.ExecContext(ctx,
		"UPDATE system_config SET value = ?, updated_at = ? WHERE `key` = ?",
		value, now, key)
	if err != nil {
		return fmt.Errorf("failed to update config entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO system_config (`key`, value, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		key, value, description, now, now)
	if isUniqueViolation(err) {
		// Lost an insert race; the other writer's update wins
		_, err = db.ExecContext(ctx,
			"UPDATE system_config SET value = ?, updated_at = ? WHERE `key` = ?",
			value, now, key)
	}
	if err != nil {
		return fmt.Errorf("failed to insert config entry: %w", err)
	}
	return nil
}
