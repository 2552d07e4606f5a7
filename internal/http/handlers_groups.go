package http

import (
	"net/http"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

type createGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	group, err := s.groups.Create(r.Context(), userID, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request, userID int64) {
	members, err := s.groups.Members(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if members == nil {
		members = []core.User{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request, userID int64) {
	invite, err := s.groups.Invite(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, invite)
}

type joinGroupRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	var req joinGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	group, err := s.groups.Join(r.Context(), userID, req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	if err := s.groups.Leave(r.Context(), userID); err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)
	w.WriteHeader(http.StatusNoContent)
}
