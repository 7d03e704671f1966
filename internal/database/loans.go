package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pretgo/internal/models"
)

// Dates are read back as text: the DATETIME declared type would otherwise be
// converted by the driver and lose the stored layout.
const loanSelect = `
	SELECT p.id, p.personne_id, p.descriptif_objets,
	       CAST(p.date_emprunt AS TEXT), CAST(p.date_retour AS TEXT),
	       COALESCE(p.retour_confirme, 0), COALESCE(p.signature_retour, ''), COALESCE(p.notes, ''),
	       p.duree_pret_heures, p.duree_pret_jours, COALESCE(p.type_duree, ''),
	       p.lieu_id, p.materiel_id, CAST(p.date_modification AS TEXT),
	       pe.nom, pe.prenom, COALESCE(pe.classe, ''), pe.categorie, COALESCE(l.nom, '')
	FROM prets p
	JOIN personnes pe ON pe.id = p.personne_id
	LEFT JOIN lieux l ON l.id = p.lieu_id`

func scanLoan(s scanner) (*models.Loan, error) {
	var (
		l          models.Loan
		returnedAt sql.NullString
		modifiedAt sql.NullString
		hours      sql.NullFloat64
		days       sql.NullInt64
		locationID sql.NullInt64
		legacyItem sql.NullInt64
	)
	err := s.Scan(&l.ID, &l.PersonID, &l.Description, &l.StartedAt, &returnedAt,
		&l.Returned, &l.ReturnSignature, &l.Notes, &hours, &days, &l.DurationType,
		&locationID, &legacyItem, &modifiedAt,
		&l.PersonLastName, &l.PersonFirstName, &l.PersonClass, &l.PersonCategory, &l.LocationName)
	if err != nil {
		return nil, err
	}

	if returnedAt.Valid {
		l.ReturnedAt = &returnedAt.String
	}
	if modifiedAt.Valid {
		l.ModifiedAt = &modifiedAt.String
	}
	if hours.Valid {
		l.DurationHours = &hours.Float64
	}
	if days.Valid {
		d := int(days.Int64)
		l.DurationDays = &d
	}
	if locationID.Valid {
		l.LocationID = &locationID.Int64
	}
	if legacyItem.Valid {
		l.LegacyItemID = &legacyItem.Int64
	}
	return &l, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// CreateLoan stores a loan with its items and marks the inventory items as lent.
func (db *DB) CreateLoan(ctx context.Context, l *models.Loan) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := checkItemsAvailable(ctx, tx, l.Items, 0); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO prets (personne_id, descriptif_objets, date_emprunt, retour_confirme, notes,
		                   duree_pret_heures, duree_pret_jours, type_duree, lieu_id)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		l.PersonID, l.Description, l.StartedAt, l.Notes,
		nullableFloat(l.DurationHours), nullableInt(l.DurationDays), l.DurationType, nullableInt64(l.LocationID))
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	l.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := insertLoanItems(ctx, tx, l); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loan: %w", err)
	}
	return nil
}

// checkItemsAvailable refuses inventory items that are inactive or lent by
// another loan than exceptLoan.
func checkItemsAvailable(ctx context.Context, tx execer, items []models.LoanItem, exceptLoan int64) error {
	for _, it := range items {
		if it.ItemID == nil {
			continue
		}
		var active bool
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(actif, 1) FROM inventaire WHERE id = ?`, *it.ItemID).Scan(&active); err != nil {
			return fmt.Errorf("item %d: %w", *it.ItemID, notFound(err))
		}
		if !active {
			return fmt.Errorf("item %d: %w", *it.ItemID, ErrNotFound)
		}

		var lentBy int64
		err := tx.QueryRowContext(ctx, `
			SELECT p.id FROM prets p
			WHERE p.retour_confirme = 0 AND p.id != ?
			  AND (p.materiel_id = ? OR EXISTS (
			       SELECT 1 FROM pret_materiels pm WHERE pm.pret_id = p.id AND pm.materiel_id = ?))
			LIMIT 1`, exceptLoan, *it.ItemID, *it.ItemID).Scan(&lentBy)
		if err == nil {
			return fmt.Errorf("%w: item %d is lent in loan %d", ErrInUse, *it.ItemID, lentBy)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check item %d: %w", *it.ItemID, err)
		}
	}
	return nil
}

func insertLoanItems(ctx context.Context, tx execer, l *models.Loan) error {
	for i := range l.Items {
		it := &l.Items[i]
		result, err := tx.ExecContext(ctx,
			`INSERT INTO pret_materiels (pret_id, materiel_id, description) VALUES (?, ?, ?)`,
			l.ID, nullableInt64(it.ItemID), it.Description)
		if err != nil {
			return fmt.Errorf("failed to add loan item: %w", err)
		}
		it.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		it.LoanID = l.ID

		if it.ItemID != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE inventaire SET etat = ? WHERE id = ?`, models.ItemLent, *it.ItemID); err != nil {
				return fmt.Errorf("failed to mark item as lent: %w", err)
			}
		}
	}
	return nil
}

// releaseItems puts the lent inventory items of a loan back to available,
// including the single item column of older loans.
func releaseItems(ctx context.Context, tx execer, loanID int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT materiel_id FROM pret_materiels WHERE pret_id = ? AND materiel_id IS NOT NULL
		UNION
		SELECT materiel_id FROM prets WHERE id = ? AND materiel_id IS NOT NULL`, loanID, loanID)
	if err != nil {
		return fmt.Errorf("failed to list loan items: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan loan item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE inventaire SET etat = ? WHERE id = ? AND etat = ?`,
			models.ItemAvailable, id, models.ItemLent); err != nil {
			return fmt.Errorf("failed to release item %d: %w", id, err)
		}
	}
	return nil
}

func (db *DB) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	l, err := scanLoan(db.QueryRowContext(ctx, loanSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	loans := []models.Loan{*l}
	if err := db.attachItems(ctx, loans); err != nil {
		return nil, err
	}
	return &loans[0], nil
}

// ListLoans returns loans with their items, most recent first unless the
// filter asks for the oldest first.
func (db *DB) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	var (
		where []string
		args  []any
	)
	switch f.Status {
	case models.LoanFilterActive:
		where = append(where, `p.retour_confirme = 0`)
	case models.LoanFilterReturned:
		where = append(where, `p.retour_confirme = 1`)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, `(pe.nom LIKE ? OR pe.prenom LIKE ? OR pe.classe LIKE ? OR p.descriptif_objets LIKE ? OR p.notes LIKE ?)`)
		for i := 0; i < 5; i++ {
			args = append(args, likePattern(q))
		}
	}
	if f.PersonID != 0 {
		where = append(where, `p.personne_id = ?`)
		args = append(args, f.PersonID)
	}
	if f.ItemID != 0 {
		where = append(where, `(p.materiel_id = ? OR EXISTS (
			SELECT 1 FROM pret_materiels pm WHERE pm.pret_id = p.id AND pm.materiel_id = ?))`)
		args = append(args, f.ItemID, f.ItemID)
	}

	query := loanSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	switch {
	case f.OldestFirst:
		query += ` ORDER BY p.date_emprunt ASC, p.id ASC`
	case f.Status == models.LoanFilterReturned:
		query += ` ORDER BY p.date_retour DESC, p.id DESC`
	default:
		query += ` ORDER BY p.date_emprunt DESC, p.id DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	var loans []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, *l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := db.attachItems(ctx, loans); err != nil {
		return nil, err
	}
	return loans, nil
}

func (db *DB) attachItems(ctx context.Context, loans []models.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	index := make(map[int64]int, len(loans))
	args := make([]any, len(loans))
	for i, l := range loans {
		index[l.ID] = i
		args[i] = l.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(loans)), ",")

	rows, err := db.QueryContext(ctx, `
		SELECT pm.id, pm.pret_id, pm.materiel_id, pm.description,
		       COALESCE(i.numero_inventaire, ''), COALESCE(i.numero_serie, ''),
		       COALESCE(i.marque, ''), COALESCE(i.modele, '')
		FROM pret_materiels pm
		LEFT JOIN inventaire i ON i.id = pm.materiel_id
		WHERE pm.pret_id IN (`+placeholders+`)
		ORDER BY pm.id`, args...)
	if err != nil {
		return fmt.Errorf("failed to load loan items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it     models.LoanItem
			itemID sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.LoanID, &itemID, &it.Description,
			&it.InventoryNumber, &it.SerialNumber, &it.Brand, &it.Model); err != nil {
			return fmt.Errorf("failed to scan loan item: %w", err)
		}
		if itemID.Valid {
			it.ItemID = &itemID.Int64
		}
		i := index[it.LoanID]
		loans[i].Items = append(loans[i].Items, it)
	}
	return rows.Err()
}

// UpdateLoan rewrites an active loan: its items are released, replaced and
// marked as lent again. Returned loans cannot be edited.
func (db *DB) UpdateLoan(ctx context.Context, l *models.Loan) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var returned bool
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(retour_confirme, 0) FROM prets WHERE id = ?`, l.ID).Scan(&returned); err != nil {
		return notFound(err)
	}
	if returned {
		return ErrAlreadyReturned
	}

	if err := checkItemsAvailable(ctx, tx, l.Items, l.ID); err != nil {
		return err
	}
	if err := releaseItems(ctx, tx, l.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pret_materiels WHERE pret_id = ?`, l.ID); err != nil {
		return fmt.Errorf("failed to clear loan items: %w", err)
	}

	var modified any
	if l.ModifiedAt != nil {
		modified = *l.ModifiedAt
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE prets SET personne_id = ?, descriptif_objets = ?, notes = ?,
		                 duree_pret_heures = ?, duree_pret_jours = ?, type_duree = ?, lieu_id = ?,
		                 materiel_id = NULL, date_modification = ?
		WHERE id = ?`,
		l.PersonID, l.Description, l.Notes,
		nullableFloat(l.DurationHours), nullableInt(l.DurationDays), l.DurationType, nullableInt64(l.LocationID),
		modified, l.ID); err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}

	if err := insertLoanItems(ctx, tx, l); err != nil {
		return err
	}
	return tx.Commit()
}

// ReturnLoan confirms the return of one loan.
func (db *DB) ReturnLoan(ctx context.Context, id int64, returnedAt, signature string) error {
	n, err := db.ReturnLoans(ctx, []int64{id}, returnedAt, signature)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.GetLoan(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyReturned
	}
	return nil
}

// ReturnLoans confirms several returns at once and returns how many loans
// changed. Unknown or already returned ids are skipped.
func (db *DB) ReturnLoans(ctx context.Context, ids []int64, returnedAt, signature string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	count := 0
	for _, id := range ids {
		result, err := tx.ExecContext(ctx,
			`UPDATE prets SET retour_confirme = 1, date_retour = ?, signature_retour = ?
			 WHERE id = ? AND retour_confirme = 0`, returnedAt, signature, id)
		if err != nil {
			return 0, fmt.Errorf("failed to return loan %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			continue
		}
		if err := releaseItems(ctx, tx, id); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit returns: %w", err)
	}
	return count, nil
}

// DeleteLoan removes a loan and releases its items if it was still active.
func (db *DB) DeleteLoan(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var returned bool
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(retour_confirme, 0) FROM prets WHERE id = ?`, id).Scan(&returned); err != nil {
		return notFound(err)
	}
	if !returned {
		if err := releaseItems(ctx, tx, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pret_materiels WHERE pret_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete loan items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM prets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	return tx.Commit()
}

// ActiveLoanForItem returns the id of the active loan holding an item.
func (db *DB) ActiveLoanForItem(ctx context.Context, itemID int64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		SELECT p.id FROM prets p
		WHERE p.retour_confirme = 0
		  AND (p.materiel_id = ? OR EXISTS (
		       SELECT 1 FROM pret_materiels pm WHERE pm.pret_id = p.id AND pm.materiel_id = ?))
		ORDER BY p.date_emprunt DESC LIMIT 1`, itemID, itemID).Scan(&id)
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// CountLoans returns the number of active and returned loans.
func (db *DB) CountLoans(ctx context.Context) (active, returned int, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN retour_confirme = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN retour_confirme = 1 THEN 1 ELSE 0 END), 0)
		FROM prets`).Scan(&active, &returned)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count loans: %w", err)
	}
	return active, returned, nil
}
