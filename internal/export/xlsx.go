package export

import (
	"fmt"
	"io"

	"pretgo/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetLoans  = "Prêts"
	sheetAlerts = "Alertes"
)

var loanColumns = []string{"N°", "Nom", "Prénom", "Classe", "Objet(s)", "Date emprunt",
	"Durée", "Retour prévu", "Date retour", "Retourné", "Lieu", "Notes"}

var alertColumns = []string{"N°", "Nom", "Prénom", "Classe", "Objet(s)", "Date emprunt",
	"Retour prévu", "Dépassement", "Heures", "Lieu"}

// Workbook writes an XLSX file with every loan on one sheet and overdue
// loans on a second one.
func Workbook(w io.Writer, loans []models.LoanView, alerts []models.LoanView) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetLoans)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(sheetAlerts); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	overdueStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	if err := writeHeader(f, sheetLoans, loanColumns, headerStyle); err != nil {
		return err
	}
	for i, l := range loans {
		row := i + 2
		values := []any{l.ID, l.PersonLastName, l.PersonFirstName, l.PersonClass, l.Description,
			l.StartedAt, l.DurationLabel, l.DueAt, deref(l.ReturnedAt), yesNo(l.Returned), l.LocationName, l.Notes}
		if err := writeRow(f, sheetLoans, row, values); err != nil {
			return err
		}
		if l.Overdue {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(loanColumns), row)
			_ = f.SetCellStyle(sheetLoans, first, last, overdueStyle)
		}
	}

	if err := writeHeader(f, sheetAlerts, alertColumns, headerStyle); err != nil {
		return err
	}
	for i, a := range alerts {
		values := []any{a.ID, a.PersonLastName, a.PersonFirstName, a.PersonClass, a.Description,
			a.StartedAt, a.DueAt, a.OverdueLabel, roundHours(a.OverdueHours), a.LocationName}
		if err := writeRow(f, sheetAlerts, i+2, values); err != nil {
			return err
		}
	}

	for _, sheet := range []string{sheetLoans, sheetAlerts} {
		_ = f.SetColWidth(sheet, "A", "A", 8)
		_ = f.SetColWidth(sheet, "B", "D", 16)
		_ = f.SetColWidth(sheet, "E", "E", 40)
		_ = f.SetColWidth(sheet, "F", "L", 20)
		_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", row, err)
	}
	return nil
}

func roundHours(h float64) float64 {
	v, _ := decimal.NewFromFloat(h).Round(2).Float64()
	return v
}
