package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pretgo/internal/models"
)

const personColumns = `id, nom, prenom, categorie, COALESCE(classe, ''), COALESCE(actif, 1), date_creation`

func scanPerson(s scanner) (*models.Person, error) {
	var p models.Person
	if err := s.Scan(&p.ID, &p.LastName, &p.FirstName, &p.Category, &p.Class, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreatePerson(ctx context.Context, p *models.Person) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO personnes (nom, prenom, categorie, classe) VALUES (?, ?, ?, ?)`,
		p.LastName, p.FirstName, p.Category, p.Class)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.Active = true
	return nil
}

func (db *DB) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p, err := scanPerson(db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM personnes WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (db *DB) UpdatePerson(ctx context.Context, p *models.Person) error {
	result, err := db.ExecContext(ctx,
		`UPDATE personnes SET nom = ?, prenom = ?, categorie = ?, classe = ? WHERE id = ?`,
		p.LastName, p.FirstName, p.Category, p.Class, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	return requireAffected(result)
}

// ListPeople returns active people ordered by category and name.
func (db *DB) ListPeople(ctx context.Context, f models.PersonFilter) ([]models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM personnes WHERE actif = 1`
	var args []any

	switch f.Category {
	case "", "tous":
	case models.CategoryOther:
		query += ` AND categorie NOT IN (SELECT cle FROM categories_personnes)`
	default:
		query += ` AND categorie = ?`
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND (nom LIKE ? OR prenom LIKE ? OR classe LIKE ?)`
		args = append(args, likePattern(q), likePattern(q), likePattern(q))
	}
	if f.Limit > 0 {
		query += ` ORDER BY nom, prenom LIMIT ?`
		args = append(args, f.Limit)
	} else {
		query += ` ORDER BY categorie, nom, prenom`
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var people []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

// CountPeopleByCategory counts active people per category key.
func (db *DB) CountPeopleByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT categorie, COUNT(*) FROM personnes WHERE actif = 1 GROUP BY categorie`)
	if err != nil {
		return nil, fmt.Errorf("failed to count people: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// DeletePerson refuses people holding active loans, deactivates people with
// a loan history and removes the others. It reports whether the row was kept.
func (db *DB) DeletePerson(ctx context.Context, id int64) (deactivated bool, err error) {
	var active, total int
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN retour_confirme = 0 THEN 1 ELSE 0 END), 0), COUNT(*)
		 FROM prets WHERE personne_id = ?`, id).Scan(&active, &total)
	if err != nil {
		return false, fmt.Errorf("failed to count loans: %w", err)
	}
	if active > 0 {
		return false, fmt.Errorf("%w: %d active loan(s)", ErrInUse, active)
	}

	query := `DELETE FROM personnes WHERE id = ?`
	if total > 0 {
		query = `UPDATE personnes SET actif = 0 WHERE id = ?`
		deactivated = true
	}
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete person: %w", err)
	}
	return deactivated, requireAffected(result)
}

// ApplyPeopleImport writes an already normalised roster in one transaction.
// In sync mode known people are updated and reactivated, and active people
// missing from the roster are deactivated unless they hold active loans.
func (db *DB) ApplyPeopleImport(ctx context.Context, people []models.Person, mode string) (*models.PersonImportResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	sync := mode == models.ImportSync
	res := &models.PersonImportResult{}
	seen := make(map[int64]bool)

	for _, p := range people {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM personnes WHERE nom = ? AND prenom = ? AND categorie = ?`,
			p.LastName, p.FirstName, p.Category).Scan(&id)
		if err == nil {
			seen[id] = true
			if !sync {
				res.Skipped++
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE personnes SET classe = ?, actif = 1 WHERE id = ?`, p.Class, id); err != nil {
				return nil, fmt.Errorf("failed to update person: %w", err)
			}
			res.Updated++
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up person: %w", err)
		}

		if sync {
			// same name in another category
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM personnes WHERE nom = ? AND prenom = ? AND actif = 1`,
				p.LastName, p.FirstName).Scan(&id)
			if err == nil {
				if _, err := tx.ExecContext(ctx,
					`UPDATE personnes SET categorie = ?, classe = ?, actif = 1 WHERE id = ?`,
					p.Category, p.Class, id); err != nil {
					return nil, fmt.Errorf("failed to update person: %w", err)
				}
				seen[id] = true
				res.Updated++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to look up person: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO personnes (nom, prenom, categorie, classe) VALUES (?, ?, ?, ?)`,
			p.LastName, p.FirstName, p.Category, p.Class)
		if err != nil {
			return nil, fmt.Errorf("failed to insert person: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
		seen[id] = true
		res.Added++
	}

	if sync && len(seen) > 0 {
		if err := deactivateAbsent(ctx, tx, seen, res); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return res, nil
}

func deactivateAbsent(ctx context.Context, tx execer, seen map[int64]bool, res *models.PersonImportResult) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT p.id, p.nom, p.prenom,
		       (SELECT COUNT(*) FROM prets WHERE personne_id = p.id AND retour_confirme = 0)
		FROM personnes p WHERE p.actif = 1`)
	if err != nil {
		return fmt.Errorf("failed to list active people: %w", err)
	}

	var toDeactivate []int64
	for rows.Next() {
		var (
			id          int64
			last, first string
			activeLoans int
		)
		if err := rows.Scan(&id, &last, &first, &activeLoans); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan person: %w", err)
		}
		if seen[id] {
			continue
		}
		if activeLoans > 0 {
			res.Protected = append(res.Protected, fmt.Sprintf("%s %s (%d prêt(s))", first, last, activeLoans))
			continue
		}
		toDeactivate = append(toDeactivate, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range toDeactivate {
		if _, err := tx.ExecContext(ctx, `UPDATE personnes SET actif = 0 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to deactivate person: %w", err)
		}
		res.Deactivated++
	}
	return nil
}

// Person categories

func (db *DB) ListPersonCategories(ctx context.Context) ([]models.PersonCategory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, cle, libelle, COALESCE(icone, ''), COALESCE(couleur_bg, ''), COALESCE(couleur_text, ''),
		       COALESCE(ordre, 0), COALESCE(actif, 1)
		FROM categories_personnes ORDER BY ordre, libelle`)
	if err != nil {
		return nil, fmt.Errorf("failed to list person categories: %w", err)
	}
	defer rows.Close()

	var cats []models.PersonCategory
	for rows.Next() {
		var c models.PersonCategory
		if err := rows.Scan(&c.ID, &c.Key, &c.Label, &c.Icon, &c.BgColor, &c.TextColor, &c.Order, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan person category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CreatePersonCategory appends a category after the last one.
func (db *DB) CreatePersonCategory(ctx context.Context, c *models.PersonCategory) error {
	var maxOrder int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordre), 0) FROM categories_personnes`).Scan(&maxOrder); err != nil {
		return fmt.Errorf("failed to read category order: %w", err)
	}
	c.Order = maxOrder + 1

	result, err := db.ExecContext(ctx,
		`INSERT INTO categories_personnes (cle, libelle, icone, couleur_bg, couleur_text, ordre) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Key, c.Label, c.Icon, c.BgColor, c.TextColor, c.Order)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("person category %q: %w", c.Key, ErrDuplicate)
		}
		return fmt.Errorf("failed to create person category: %w", err)
	}
	c.ID, err = result.LastInsertId()
	c.Active = true
	return err
}

func (db *DB) UpdatePersonCategory(ctx context.Context, c *models.PersonCategory) error {
	result, err := db.ExecContext(ctx,
		`UPDATE categories_personnes SET libelle = ?, icone = ?, couleur_bg = ?, couleur_text = ? WHERE id = ?`,
		c.Label, c.Icon, c.BgColor, c.TextColor, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update person category: %w", err)
	}
	return requireAffected(result)
}

// DeletePersonCategory removes a category. Active people still using it are
// moved to replacementID; without a replacement the deletion is refused.
// It returns the number of people moved.
func (db *DB) DeletePersonCategory(ctx context.Context, id int64, replacementID *int64) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var key string
	if err := tx.QueryRowContext(ctx, `SELECT cle FROM categories_personnes WHERE id = ?`, id).Scan(&key); err != nil {
		return 0, notFound(err)
	}

	var used int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM personnes WHERE actif = 1 AND categorie = ?`, key).Scan(&used); err != nil {
		return 0, fmt.Errorf("failed to count people: %w", err)
	}

	if used > 0 {
		if replacementID == nil {
			return 0, fmt.Errorf("%w: %d person(s) in category %q", ErrInUse, used, key)
		}
		var newKey string
		if err := tx.QueryRowContext(ctx, `SELECT cle FROM categories_personnes WHERE id = ?`, *replacementID).Scan(&newKey); err != nil {
			return 0, fmt.Errorf("replacement category: %w", notFound(err))
		}
		if newKey == key {
			return 0, fmt.Errorf("%w: replacement is the deleted category", ErrInUse)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE personnes SET categorie = ? WHERE actif = 1 AND categorie = ?`, newKey, key); err != nil {
			return 0, fmt.Errorf("failed to reassign people: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories_personnes WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to delete person category: %w", err)
	}
	return used, tx.Commit()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
