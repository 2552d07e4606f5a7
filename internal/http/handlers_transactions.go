package http

import (
	"net/http"
	"strings"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/services"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

type transactionRequest struct {
	Type       core.TransactionType `json:"type"`
	Date       core.Date            `json:"date"`
	Amount     core.Money           `json:"amount"`
	CategoryID int64                `json:"category_id"`
	Merchant   string               `json:"merchant"`
	Memo       string               `json:"memo"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	t := core.Transaction{
		Type:       req.Type,
		Date:       req.Date,
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
		Merchant:   req.Merchant,
		Memo:       req.Memo,
	}
	if t.Date.IsZero() {
		t.Date = core.Today()
	}
	created, err := s.transactions.Create(r.Context(), userID, t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)
	respondJSON(w, http.StatusCreated, created)
}

type quickAddRequest struct {
	Amount   string               `json:"amount"`
	Category string               `json:"category"`
	Type     core.TransactionType `json:"type"`
	Date     core.Date            `json:"date"`
	Merchant string               `json:"merchant"`
	Memo     string               `json:"memo"`
}

func (s *Server) handleQuickAdd(w http.ResponseWriter, r *http.Request, userID int64) {
	var req quickAddRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := s.transactions.QuickAdd(r.Context(), userID, services.QuickAddInput{
		AmountText:   req.Amount,
		CategoryName: strings.TrimSpace(req.Category),
		Type:         req.Type,
		Date:         req.Date,
		Merchant:     req.Merchant,
		Memo:         req.Memo,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID int64) {
	f, err := s.scopedFilter(r, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	items, err := s.transactions.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Transaction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": items,
		"limit":        f.Limit,
		"offset":       f.Offset,
	})
}

// scopedFilter builds a transaction filter limited to what the caller
// may see, folding in the query parameters.
func (s *Server) scopedFilter(r *http.Request, userID int64) (storage.TransactionFilter, error) {
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		return storage.TransactionFilter{}, err
	}

	var f storage.TransactionFilter
	if user.GroupID != nil {
		f.GroupID = *user.GroupID
	} else {
		f.OwnerUserID = user.ID
	}

	if typ := core.TransactionType(strings.ToUpper(r.URL.Query().Get("type"))); typ != "" {
		if !typ.Valid() {
			return storage.TransactionFilter{}, badRequest("unknown transaction type")
		}
		f.Type = typ
	}
	f.CategoryID = int64(queryInt(r, "category_id", 0))
	f.RuleID = int64(queryInt(r, "rule_id", 0))
	if f.From, err = queryDate(r, "from"); err != nil {
		return storage.TransactionFilter{}, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return storage.TransactionFilter{}, err
	}

	f.Limit = queryInt(r, "limit", 50)
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
	f.Offset = queryInt(r, "offset", 0)
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

// visibleTransaction loads a transaction the caller is allowed to see.
// Foreign rows surface as not found rather than forbidden.
func (s *Server) visibleTransaction(r *http.Request, userID, txID int64) (core.Transaction, error) {
	t, err := s.transactions.Get(r.Context(), txID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.OwnerUserID == userID {
		return t, nil
	}
	if t.GroupID != nil {
		user, err := s.store.GetUser(r.Context(), userID)
		if err != nil {
			return core.Transaction{}, err
		}
		if user.GroupID != nil && *user.GroupID == *t.GroupID {
			return t, nil
		}
	}
	return core.Transaction{}, storage.ErrNotFound
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.visibleTransaction(r, userID, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.visibleTransaction(r, userID, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Type != "" {
		t.Type = req.Type
	}
	if !req.Date.IsZero() {
		t.Date = req.Date
	}
	if req.Amount.Cents != 0 {
		t.Amount = req.Amount
	}
	if req.CategoryID != 0 {
		t.CategoryID = req.CategoryID
	}
	t.Merchant = req.Merchant
	t.Memo = req.Memo

	updated, err := s.transactions.Update(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.visibleTransaction(r, userID, id); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.transactions.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)
	w.WriteHeader(http.StatusNoContent)
}
