package api

import (
	"errors"
	"net/http"
	"strings"

	"pretgo/internal/models"
	"pretgo/internal/service"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Loans.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Alerts.Scan(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Inventory.Scan(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Loans

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := strings.TrimSpace(q.Get("status"))
	switch status {
	case "":
		status = models.LoanFilterAll
	case models.LoanFilterAll, models.LoanFilterActive, models.LoanFilterReturned:
	default:
		writeError(w, http.StatusBadRequest, "status must be active, returned or all")
		return
	}

	loans, err := s.svc.Loans.List(r.Context(), models.LoanFilter{
		Status: status,
		Query:  q.Get("q"),
		Limit:  limitParam(r),
	})
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": loans, "count": len(loans)})
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req service.LoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	view, err := s.svc.Loans.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	view, err := s.svc.Loans.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var req service.LoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	view, err := s.svc.Loans.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Loans.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type returnRequest struct {
	IDs       []int64 `json:"ids"`
	Signature string  `json:"signature"`
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	// The signature is optional, and so is the body.
	var body returnRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Loans.Return(r.Context(), id, body.Signature); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReturnMany(w http.ResponseWriter, r *http.Request) {
	var body returnRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	n, err := s.svc.Loans.ReturnMany(r.Context(), body.IDs, body.Signature)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"returned": n})
}

// Labels

func (s *Server) handlePreviewLabels(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	zpl, err := s.svc.Labels.Preview(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": zpl})
}

func (s *Server) handlePrintLabels(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	n, err := s.svc.Labels.Print(r.Context(), body.IDs)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"printed": n})
}
