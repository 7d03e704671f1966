package database

import (
	"context"
	"fmt"
	"strings"

	"pretgo/internal/models"
)

// ListLocations returns locations by name. Inactive ones are included on request.
func (db *DB) ListLocations(ctx context.Context, includeInactive bool) ([]models.Location, error) {
	query := `SELECT id, nom, COALESCE(actif, 1), date_creation FROM lieux`
	if !includeInactive {
		query += ` WHERE actif = 1`
	}
	query += ` ORDER BY nom`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Active, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (db *DB) CreateLocation(ctx context.Context, l *models.Location) error {
	l.Name = strings.TrimSpace(l.Name)
	result, err := db.ExecContext(ctx, `INSERT INTO lieux (nom) VALUES (?)`, l.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("location %q: %w", l.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create location: %w", err)
	}
	l.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	l.Active = true
	return nil
}

// UpdateLocation renames a location and sets its active flag.
func (db *DB) UpdateLocation(ctx context.Context, l *models.Location) error {
	result, err := db.ExecContext(ctx, `UPDATE lieux SET nom = ?, actif = ? WHERE id = ?`,
		strings.TrimSpace(l.Name), boolToInt(l.Active), l.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("location %q: %w", l.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update location: %w", err)
	}
	return requireAffected(result)
}

// DeleteLocation deactivates a location referenced by loans and removes it
// otherwise. It reports whether the row was kept.
func (db *DB) DeleteLocation(ctx context.Context, id int64) (deactivated bool, err error) {
	var used int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prets WHERE lieu_id = ?`, id).Scan(&used); err != nil {
		return false, fmt.Errorf("failed to count loans: %w", err)
	}

	query := `DELETE FROM lieux WHERE id = ?`
	if used > 0 {
		query = `UPDATE lieux SET actif = 0 WHERE id = ?`
		deactivated = true
	}
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete location: %w", err)
	}
	return deactivated, requireAffected(result)
}
