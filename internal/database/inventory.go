package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pretgo/internal/models"
)

// DefaultInventoryPrefix is used for item types without a configured prefix.
const DefaultInventoryPrefix = "INV"

const itemColumns = `id, type_materiel, COALESCE(marque, ''), COALESCE(modele, ''), COALESCE(numero_serie, ''),
	numero_inventaire, COALESCE(systeme_exploitation, ''), COALESCE(etat, 'disponible'), COALESCE(notes, ''),
	COALESCE(image, ''), COALESCE(actif, 1), date_creation`

func scanItem(s scanner) (*models.Item, error) {
	var it models.Item
	err := s.Scan(&it.ID, &it.Type, &it.Brand, &it.Model, &it.SerialNumber, &it.InventoryNumber,
		&it.OS, &it.State, &it.Notes, &it.Image, &it.Active, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts an item. An empty inventory number is generated from
// the prefix of the item's category.
func (db *DB) CreateItem(ctx context.Context, it *models.Item) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if strings.TrimSpace(it.InventoryNumber) == "" {
		it.InventoryNumber, err = nextInventoryNumber(ctx, tx, it.Type)
		if err != nil {
			return err
		}
	}
	if it.State == "" {
		it.State = models.ItemAvailable
	}

	if err := insertItem(ctx, tx, it); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItem(ctx context.Context, ex execer, it *models.Item) error {
	result, err := ex.ExecContext(ctx, `
		INSERT INTO inventaire (type_materiel, marque, modele, numero_serie, numero_inventaire,
		                        systeme_exploitation, etat, notes, image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.Type, it.Brand, it.Model, it.SerialNumber, it.InventoryNumber, it.OS, it.State, it.Notes, it.Image)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inventory number %s: %w", it.InventoryNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create item: %w", err)
	}
	it.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	it.Active = true
	return nil
}

// NextInventoryNumber returns the number the next item of itemType would get.
func (db *DB) NextInventoryNumber(ctx context.Context, itemType string) (string, error) {
	return nextInventoryNumber(ctx, db, itemType)
}

func nextInventoryNumber(ctx context.Context, ex execer, itemType string) (string, error) {
	var prefix string
	err := ex.QueryRowContext(ctx,
		`SELECT COALESCE(prefixe_inventaire, '') FROM categories_materiel WHERE nom = ?`, itemType).Scan(&prefix)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read category prefix: %w", err)
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultInventoryPrefix
	}

	pattern := prefix + "-%"
	var last string
	err = ex.QueryRowContext(ctx,
		`SELECT numero_inventaire FROM inventaire WHERE numero_inventaire LIKE ? ORDER BY id DESC LIMIT 1`,
		pattern).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return FormatInventoryNumber(prefix, 1), nil
	case err != nil:
		return "", fmt.Errorf("failed to read last inventory number: %w", err)
	}

	if _, suffix, ok := strings.Cut(last, "-"); ok {
		if n, err := strconv.Atoi(suffix); err == nil {
			return FormatInventoryNumber(prefix, n+1), nil
		}
	}
	var count int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventaire WHERE numero_inventaire LIKE ?`, pattern).Scan(&count); err != nil {
		return "", fmt.Errorf("failed to count inventory numbers: %w", err)
	}
	return FormatInventoryNumber(prefix, count+1), nil
}

// FormatInventoryNumber renders PREFIX-00042.
func FormatInventoryNumber(prefix string, n int) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	it, err := scanItem(db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventaire WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// FindItemByCode looks up an active item by inventory or serial number.
func (db *DB) FindItemByCode(ctx context.Context, code string) (*models.Item, error) {
	it, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventaire
		 WHERE actif = 1 AND (numero_inventaire = ? OR (numero_serie != '' AND numero_serie = ?))
		 ORDER BY CASE WHEN numero_inventaire = ? THEN 0 ELSE 1 END LIMIT 1`,
		code, code, code))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// UpdateItem saves an item. An empty inventory number keeps the current one.
func (db *DB) UpdateItem(ctx context.Context, it *models.Item) error {
	if strings.TrimSpace(it.InventoryNumber) == "" {
		current, err := db.GetItem(ctx, it.ID)
		if err != nil {
			return err
		}
		it.InventoryNumber = current.InventoryNumber
	}
	if it.State == "" {
		it.State = models.ItemAvailable
	}
	result, err := db.ExecContext(ctx, `
		UPDATE inventaire SET type_materiel = ?, marque = ?, modele = ?, numero_serie = ?, numero_inventaire = ?,
		                      systeme_exploitation = ?, etat = ?, notes = ?, image = ?
		WHERE id = ?`,
		it.Type, it.Brand, it.Model, it.SerialNumber, it.InventoryNumber, it.OS, it.State, it.Notes, it.Image, it.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inventory number %s: %w", it.InventoryNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return requireAffected(result)
}

// DeleteItem deactivates an item unless it is part of an active loan.
func (db *DB) DeleteItem(ctx context.Context, id int64) error {
	loanID, err := db.ActiveLoanForItem(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if loanID != 0 {
		return fmt.Errorf("%w: item is lent in loan %d", ErrInUse, loanID)
	}
	result, err := db.ExecContext(ctx, `UPDATE inventaire SET actif = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return requireAffected(result)
}

// ListItems returns active items. With a limit it behaves as the
// autocomplete search: more fields match and available items come first.
func (db *DB) ListItems(ctx context.Context, f models.ItemFilter) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventaire WHERE actif = 1`
	var args []any

	if f.State != "" {
		query += ` AND etat = ?`
		args = append(args, f.State)
	}
	if f.Type != "" && f.Type != "tous" {
		query += ` AND type_materiel = ?`
		args = append(args, f.Type)
	}
	q := strings.TrimSpace(f.Query)
	if f.Limit > 0 {
		if q != "" {
			query += ` AND (numero_inventaire LIKE ? OR marque LIKE ? OR modele LIKE ? OR type_materiel LIKE ? OR notes LIKE ? OR numero_serie LIKE ?)`
			for i := 0; i < 6; i++ {
				args = append(args, likePattern(q))
			}
		}
		query += ` ORDER BY CASE WHEN etat = 'disponible' THEN 0 ELSE 1 END, type_materiel, numero_inventaire LIMIT ?`
		args = append(args, f.Limit)
	} else {
		if q != "" {
			query += ` AND (numero_inventaire LIKE ? OR marque LIKE ? OR modele LIKE ? OR numero_serie LIKE ?)`
			for i := 0; i < 4; i++ {
				args = append(args, likePattern(q))
			}
		}
		query += ` ORDER BY type_materiel, numero_inventaire`
	}

	return db.queryItems(ctx, query, args...)
}

// GetItemsByIDs returns the items with the given ids, in inventory order.
func (db *DB) GetItemsByIDs(ctx context.Context, ids []int64) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return db.queryItems(ctx,
		`SELECT `+itemColumns+` FROM inventaire WHERE id IN (`+placeholders+`) ORDER BY type_materiel, numero_inventaire`,
		args...)
}

func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// CountItemsByType counts active items per type.
func (db *DB) CountItemsByType(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT type_materiel, COUNT(*) FROM inventaire WHERE actif = 1 GROUP BY type_materiel`)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// ImportItems inserts items in one transaction, skipping inventory numbers
// that already exist.
func (db *DB) ImportItems(ctx context.Context, items []models.Item) (*models.ItemImportResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res := &models.ItemImportResult{}
	for i := range items {
		it := items[i]
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM inventaire WHERE numero_inventaire = ?`, it.InventoryNumber).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check inventory number: %w", err)
		}
		if exists > 0 {
			res.Duplicates++
			continue
		}
		if it.State == "" {
			it.State = models.ItemAvailable
		}
		if err := insertItem(ctx, tx, &it); err != nil {
			return nil, err
		}
		res.Added++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return res, nil
}

// Item categories

func (db *DB) ListItemCategories(ctx context.Context) ([]models.ItemCategory, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, nom, COALESCE(prefixe_inventaire, '') FROM categories_materiel ORDER BY nom`)
	if err != nil {
		return nil, fmt.Errorf("failed to list item categories: %w", err)
	}
	defer rows.Close()

	var cats []models.ItemCategory
	for rows.Next() {
		var c models.ItemCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Prefix); err != nil {
			return nil, fmt.Errorf("failed to scan item category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (db *DB) CreateItemCategory(ctx context.Context, c *models.ItemCategory) error {
	c.Prefix = strings.ToUpper(strings.TrimSpace(c.Prefix))
	result, err := db.ExecContext(ctx, `INSERT INTO categories_materiel (nom, prefixe_inventaire) VALUES (?, ?)`, c.Name, c.Prefix)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("item category %q: %w", c.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create item category: %w", err)
	}
	c.ID, err = result.LastInsertId()
	return err
}

// UpdateItemCategoryPrefix changes the inventory prefix of a category.
func (db *DB) UpdateItemCategoryPrefix(ctx context.Context, id int64, prefix string) error {
	result, err := db.ExecContext(ctx, `UPDATE categories_materiel SET prefixe_inventaire = ? WHERE id = ?`,
		strings.ToUpper(strings.TrimSpace(prefix)), id)
	if err != nil {
		return fmt.Errorf("failed to update item category: %w", err)
	}
	return requireAffected(result)
}

// DeleteItemCategory removes a category, moving the active items of that
// type to replacementID. Without a replacement a used category is kept.
// It returns the number of items moved.
func (db *DB) DeleteItemCategory(ctx context.Context, id int64, replacementID *int64) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var name string
	if err := tx.QueryRowContext(ctx, `SELECT nom FROM categories_materiel WHERE id = ?`, id).Scan(&name); err != nil {
		return 0, notFound(err)
	}

	var used int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventaire WHERE actif = 1 AND type_materiel = ?`, name).Scan(&used); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}

	if used > 0 {
		if replacementID == nil {
			return 0, fmt.Errorf("%w: %d item(s) of type %q", ErrInUse, used, name)
		}
		var newName string
		if err := tx.QueryRowContext(ctx, `SELECT nom FROM categories_materiel WHERE id = ?`, *replacementID).Scan(&newName); err != nil {
			return 0, fmt.Errorf("replacement category: %w", notFound(err))
		}
		if newName == name {
			return 0, fmt.Errorf("%w: replacement is the deleted category", ErrInUse)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE inventaire SET type_materiel = ? WHERE actif = 1 AND type_materiel = ?`, newName, name); err != nil {
			return 0, fmt.Errorf("failed to reassign items: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories_materiel WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to delete item category: %w", err)
	}
	return used, tx.Commit()
}
