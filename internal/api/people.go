package api

import (
	"net/http"
	"strings"

	"pretgo/internal/models"
)

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		people []models.Person
		err    error
	)
	if query := strings.TrimSpace(q.Get("q")); query != "" {
		people, err = s.svc.People.Search(r.Context(), query)
	} else {
		people, err = s.svc.People.List(r.Context(), models.PersonFilter{
			Category: q.Get("categorie"),
			Limit:    limitParam(r),
		})
	}
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"people": people, "count": len(people)})
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	p, err := s.svc.People.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var p models.Person
	if err := decodeJSON(r, &p); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.People.Create(r.Context(), &p); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var p models.Person
	if err := decodeJSON(r, &p); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	p.ID = id
	if err := s.svc.People.Update(r.Context(), &p); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	deactivated, err := s.svc.People.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "deactivated": deactivated})
}

func (s *Server) handlePersonHistory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	h, err := s.svc.Loans.PersonHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleImportPeople(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := s.uploadReader(w, r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	defer closeBody()

	res, err := s.svc.People.Import(r.Context(), body, r.URL.Query().Get("mode"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Person categories

func (s *Server) handleListPersonCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.People.Categories(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleCreatePersonCategory(w http.ResponseWriter, r *http.Request) {
	var c models.PersonCategory
	if err := decodeJSON(r, &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.People.CreateCategory(r.Context(), &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdatePersonCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var c models.PersonCategory
	if err := decodeJSON(r, &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	c.ID = id
	if err := s.svc.People.UpdateCategory(r.Context(), &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeletePersonCategory moves members to ?replacement= when given.
func (s *Server) handleDeletePersonCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	replacement, err := optionalID(r, "replacement")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	moved, err := s.svc.People.DeleteCategory(r.Context(), id, replacement)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "moved": moved})
}
