package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pretgo/internal/database"
	"pretgo/internal/labels"
	"pretgo/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps service and database errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrPrintingDisabled),
		errors.Is(err, database.ErrInvalidArchive):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidRecovery):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, service.ErrNoItems):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicate),
		errors.Is(err, database.ErrInUse),
		errors.Is(err, database.ErrAlreadyReturned),
		errors.Is(err, service.ErrAlreadyConfigured):
		return http.StatusConflict
	case errors.Is(err, labels.ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError hides internal failures behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

var errEmptyBody = fmt.Errorf("%w: empty body", service.ErrValidation)

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid JSON body", service.ErrValidation)
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", service.ErrValidation)
	}
	return id, nil
}

// optionalID parses an optional numeric query parameter.
func optionalID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s", service.ErrValidation, name)
	}
	return &id, nil
}

// parseIDs reads "1,2,3". Blank entries are ignored.
func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", service.ErrValidation, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
