package http

import (
	"net/http"
	"strings"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/services"
)

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request, userID int64) {
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if period == "" {
		period = services.PeriodCurrentMonth
	}
	typ := core.TransactionType(strings.ToUpper(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		respondError(w, r, badRequest("unknown transaction type"))
		return
	}
	summary, err := s.statistics.CategoryBreakdown(r.Context(), userID, period, typ)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request, userID int64) {
	months := queryInt(r, "months", 6)
	if months > 24 {
		months = 24
	}
	trend, err := s.statistics.MonthlyTrend(r.Context(), userID, months)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"trend": trend})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, userID int64) {
	balance, err := s.statistics.Balance(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, userID int64) {
	key := dashboardKey(userID)
	if cached, ok := s.dashboardCache.Get(key); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	dashboard, err := s.statistics.Dashboard(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.dashboardCache.Set(key, dashboard)
	respondJSON(w, http.StatusOK, dashboard)
}
