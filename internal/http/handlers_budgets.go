package http

import (
	"net/http"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/services"
)

type budgetRequest struct {
	Amount core.Money        `json:"amount"`
	Status core.BudgetStatus `json:"status"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request, userID int64) {
	period := r.PathValue("period")
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	b, err := s.budgets.Set(r.Context(), userID, period, req.Amount, req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, userID int64) {
	progress, err := s.budgets.Get(r.Context(), userID, r.PathValue("period"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, userID int64) {
	budgets, err := s.budgets.List(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []services.BudgetProgress{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, userID int64) {
	if err := s.budgets.Delete(r.Context(), userID, r.PathValue("period")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
