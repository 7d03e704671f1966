// Package export writes loans, alerts, people and inventory as CSV for
// spreadsheet users, and as an XLSX workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"pretgo/internal/models"
)

// Delimiter is the CSV separator expected by French spreadsheet locales.
const Delimiter = ';'

var bom = []byte{0xEF, 0xBB, 0xBF}

// Kinds of CSV export.
const (
	KindLoans  = "loans"
	KindActive = "active"
	KindAlerts = "alerts"
	KindPeople = "people"
	KindItems  = "items"
)

var filePrefixes = map[string]string{
	KindLoans:  "export_historique_prets",
	KindActive: "export_prets_en_cours",
	KindAlerts: "export_alertes",
	KindPeople: "export_personnes",
	KindItems:  "export_inventaire",
}

// Filename returns the download name of an export, stamped with now.
func Filename(kind, ext string, now time.Time) string {
	prefix, ok := filePrefixes[kind]
	if !ok {
		prefix = "export_" + kind
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), ext)
}

// WriteCSV writes a UTF-8 BOM, the header and the rows.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

// Loans writes the full loan history.
func Loans(w io.Writer, loans []models.Loan) error {
	header := []string{"Nom", "Prénom", "Catégorie", "Classe", "Objet(s)",
		"Date emprunt", "Date retour", "Retourné", "Lieu", "Notes"}
	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []string{
			l.PersonLastName, l.PersonFirstName, l.PersonCategory, l.PersonClass,
			l.Description, l.StartedAt, deref(l.ReturnedAt), yesNo(l.Returned),
			l.LocationName, l.Notes,
		})
	}
	return WriteCSV(w, header, rows)
}

// ActiveLoans writes loans that are not returned yet.
func ActiveLoans(w io.Writer, loans []models.Loan) error {
	header := []string{"Nom", "Prénom", "Catégorie", "Classe", "Objet(s)", "Date emprunt", "Lieu", "Notes"}
	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		if l.Returned {
			continue
		}
		rows = append(rows, []string{
			l.PersonLastName, l.PersonFirstName, l.PersonCategory, l.PersonClass,
			l.Description, l.StartedAt, l.LocationName, l.Notes,
		})
	}
	return WriteCSV(w, header, rows)
}

// Alerts writes overdue loans with their overdue label.
func Alerts(w io.Writer, alerts []models.LoanView) error {
	header := []string{"Nom", "Prénom", "Catégorie", "Classe", "Objet(s)",
		"Date emprunt", "Retour prévu", "Dépassement", "Lieu", "Notes"}
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.PersonLastName, a.PersonFirstName, a.PersonCategory, a.PersonClass,
			a.Description, a.StartedAt, a.DueAt, a.OverdueLabel, a.LocationName, a.Notes,
		})
	}
	return WriteCSV(w, header, rows)
}

// People writes active people sorted by name.
func People(w io.Writer, people []models.Person) error {
	sorted := append([]models.Person(nil), people...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LastName != sorted[j].LastName {
			return sorted[i].LastName < sorted[j].LastName
		}
		return sorted[i].FirstName < sorted[j].FirstName
	})

	rows := make([][]string, 0, len(sorted))
	for _, p := range sorted {
		if !p.Active {
			continue
		}
		rows = append(rows, []string{p.LastName, p.FirstName, p.Category, p.Class})
	}
	return WriteCSV(w, []string{"Nom", "Prénom", "Catégorie", "Classe"}, rows)
}

// Items writes the active inventory sorted by type and inventory number.
func Items(w io.Writer, items []models.Item) error {
	sorted := append([]models.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].InventoryNumber < sorted[j].InventoryNumber
	})

	header := []string{"Type", "Marque", "Modèle", "N° série", "N° inventaire",
		"Système d'exploitation", "État", "Notes"}
	rows := make([][]string, 0, len(sorted))
	for _, it := range sorted {
		if !it.Active {
			continue
		}
		rows = append(rows, []string{
			it.Type, it.Brand, it.Model, it.SerialNumber, it.InventoryNumber, it.OS, it.State, it.Notes,
		})
	}
	return WriteCSV(w, header, rows)
}
