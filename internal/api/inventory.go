package api

import (
	"net/http"
	"strings"

	"pretgo/internal/models"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		items []models.Item
		err   error
	)
	if query := strings.TrimSpace(q.Get("q")); query != "" {
		items, err = s.svc.Inventory.Search(r.Context(), query)
	} else {
		items, err = s.svc.Inventory.List(r.Context(), models.ItemFilter{
			Type:  q.Get("type"),
			State: q.Get("etat"),
			Limit: limitParam(r),
		})
	}
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	it, err := s.svc.Inventory.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Inventory.NextNumber(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"numero_inventaire": n})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var it models.Item
	if err := decodeJSON(r, &it); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Inventory.Create(r.Context(), &it); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var it models.Item
	if err := decodeJSON(r, &it); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	it.ID = id
	if err := s.svc.Inventory.Update(r.Context(), &it); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Inventory.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	h, err := s.svc.Loans.ItemHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleImportItems(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := s.uploadReader(w, r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	defer closeBody()

	res, err := s.svc.Inventory.Import(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Item categories

func (s *Server) handleListItemCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Inventory.Categories(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleCreateItemCategory(w http.ResponseWriter, r *http.Request) {
	var c models.ItemCategory
	if err := decodeJSON(r, &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Inventory.CreateCategory(r.Context(), &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleUpdateItemCategory only changes the prefix; the name is the key
// items refer to.
func (s *Server) handleUpdateItemCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var c models.ItemCategory
	if err := decodeJSON(r, &c); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Inventory.UpdateCategoryPrefix(r.Context(), id, c.Prefix); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteItemCategory(w http.ResponseWriter, r *http.Request) {
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
	moved, err := s.svc.Inventory.DeleteCategory(r.Context(), id, replacement)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "moved": moved})
}

// Locations

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.svc.Inventory.Locations(r.Context(), r.URL.Query().Get("all") == "1")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var l models.Location
	if err := decodeJSON(r, &l); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if err := s.svc.Inventory.CreateLocation(r.Context(), &l); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var l models.Location
	if err := decodeJSON(r, &l); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	l.ID = id
	if err := s.svc.Inventory.UpdateLocation(r.Context(), &l); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	deactivated, err := s.svc.Inventory.DeleteLocation(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "deactivated": deactivated})
}
