package database

import (
	"context"
	"fmt"
)

func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := db.QueryRowContext(ctx, `SELECT valeur FROM parametres WHERE cle = ?`, key).Scan(&value); err != nil {
		return "", notFound(err)
	}
	return value, nil
}

// GetSettings returns every stored key/value pair.
func (db *DB) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT cle, valeur FROM parametres`)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	return db.SetSettings(ctx, map[string]string{key: value})
}

// SetSettings upserts several keys atomically.
func (db *DB) SetSettings(ctx context.Context, values map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO parametres (cle, valeur) VALUES (?, ?)
			 ON CONFLICT(cle) DO UPDATE SET valeur = excluded.valeur`, key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// DeleteSetting removes a key. Missing keys are not an error.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM parametres WHERE cle = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
