package http

import (
	"net/http"
	"strings"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

type categoryRequest struct {
	Name  string               `json:"name"`
	Type  core.TransactionType `json:"type"`
	Color string               `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, userID int64) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	c := core.Category{
		GroupID:   user.GroupID,
		CreatedBy: user.ID,
		Name:      strings.TrimSpace(req.Name),
		Type:      req.Type,
		Color:     req.Color,
	}
	if err := c.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.CreateCategory(r.Context(), &c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	groupID := int64(0)
	if user.GroupID != nil {
		groupID = *user.GroupID
	}
	categories, err := s.store.ListCategories(r.Context(), user.ID, groupID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// visibleCategory loads a category the caller may modify: their own,
// or one belonging to their group.
func (s *Server) visibleCategory(r *http.Request, userID, catID int64) (core.Category, error) {
	c, err := s.store.GetCategory(r.Context(), catID)
	if err != nil {
		return core.Category{}, err
	}
	if c.GroupID == nil {
		if c.CreatedBy != userID {
			return core.Category{}, storage.ErrNotFound
		}
		return c, nil
	}
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		return core.Category{}, err
	}
	if user.GroupID == nil || *user.GroupID != *c.GroupID {
		return core.Category{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.visibleCategory(r, userID, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		c.Name = name
	}
	if req.Type != "" {
		c.Type = req.Type
	}
	if req.Color != "" {
		c.Color = req.Color
	}
	if err := c.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.UpdateCategory(r.Context(), &c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.visibleCategory(r, userID, id); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
