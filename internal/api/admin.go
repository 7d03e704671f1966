package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pretgo/internal/database"
	"pretgo/internal/export"
	"pretgo/internal/models"
	"pretgo/internal/service"

	"github.com/go-chi/chi/v5"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZip  = "application/zip"
)

// uploadReader returns the "file" part of a multipart form, or the raw body
// for any other content type.
func (s *Server) uploadReader(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: missing file field", service.ErrValidation)
	}
	return file, func() { file.Close() }, nil
}

func sendFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings.Public(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(r, &values); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Settings.Update(r.Context(), values); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.handleGetSettings(w, r)
}

// Exports

func loansOf(views []models.LoanView) []models.Loan {
	out := make([]models.Loan, len(views))
	for i := range views {
		out[i] = views[i].Loan
	}
	return out
}

// ExportCSV writes one of the CSV exports. Unknown kinds wrap
// database.ErrNotFound.
func (svc Services) ExportCSV(ctx context.Context, w io.Writer, kind string) error {
	switch kind {
	case export.KindLoans, export.KindActive:
		status := models.LoanFilterAll
		if kind == export.KindActive {
			status = models.LoanFilterActive
		}
		views, err := svc.Loans.List(ctx, models.LoanFilter{Status: status})
		if err != nil {
			return err
		}
		if kind == export.KindActive {
			return export.ActiveLoans(w, loansOf(views))
		}
		return export.Loans(w, loansOf(views))
	case export.KindAlerts:
		report, err := svc.Alerts.Scan(ctx)
		if err != nil {
			return err
		}
		return export.Alerts(w, report.Alerts)
	case export.KindPeople:
		people, err := svc.People.List(ctx, models.PersonFilter{})
		if err != nil {
			return err
		}
		return export.People(w, people)
	case export.KindItems:
		items, err := svc.Inventory.List(ctx, models.ItemFilter{})
		if err != nil {
			return err
		}
		return export.Items(w, items)
	default:
		return fmt.Errorf("%w: unknown export %q", database.ErrNotFound, kind)
	}
}

// ExportWorkbook writes the loans and alerts XLSX workbook.
func (svc Services) ExportWorkbook(ctx context.Context, w io.Writer) error {
	loans, err := svc.Loans.List(ctx, models.LoanFilter{Status: models.LoanFilterAll})
	if err != nil {
		return err
	}
	report, err := svc.Alerts.Scan(ctx)
	if err != nil {
		return err
	}
	return export.Workbook(w, loans, report.Alerts)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	var buf bytes.Buffer
	if err := s.svc.ExportCSV(r.Context(), &buf, kind); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	sendFile(w, contentTypeCSV, export.Filename(kind, "csv", s.now()), buf.Bytes())
}

func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportWorkbook(r.Context(), &buf); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	sendFile(w, contentTypeXLSX, export.Filename(export.KindLoans, "xlsx", s.now()), buf.Bytes())
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var (
		buf      bytes.Buffer
		filename string
		err      error
	)
	switch chi.URLParam(r, "kind") {
	case export.KindPeople:
		var cats []models.PersonCategory
		if cats, err = s.svc.People.Categories(r.Context()); err == nil {
			err = export.PeopleTemplate(&buf, cats)
		}
		filename = "modele_personnes.csv"
	case export.KindItems:
		var cats []models.ItemCategory
		if cats, err = s.svc.Inventory.Categories(r.Context()); err == nil {
			err = export.InventoryTemplate(&buf, cats)
		}
		filename = "modele_inventaire.csv"
	default:
		writeError(w, http.StatusNotFound, "unknown template")
		return
	}
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	sendFile(w, contentTypeCSV, filename, buf.Bytes())
}

// Backup

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	summary, err := s.store.WriteArchive(r.Context(), &buf, s.layout)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.logger.Info().
		Int("images", summary.Images).
		Int("documents", summary.Documents).
		Int("bytes", buf.Len()).
		Msg("Backup archive downloaded")

	name := "sauvegarde_" + s.now().Format("20060102_150405") + database.ArchiveExtension
	sendFile(w, contentTypeZip, name, buf.Bytes())
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	summary, err := s.store.RestoreArchive(r.Context(), file, header.Size, s.layout)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.logger.Warn().Str("file", header.Filename).Msg("Installation restored from backup")
	writeJSON(w, http.StatusOK, summary)
}

// Image library

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.svc.Inventory.Images()
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	name, err := s.svc.Inventory.SaveImage(header.Filename, file)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"image": name, "url": "/uploads/materiel/" + name})
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Inventory.DeleteImage(chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
