package http

import (
	"context"
	"net/http"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

type ruleRequest struct {
	Template  *core.TransactionTemplate `json:"template"`
	Frequency *core.Frequency           `json:"frequency"`
	StartDate core.Date                 `json:"start_date"`
	EndDate   core.Date                 `json:"end_date"`
	IsActive  *bool                     `json:"is_active"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request, userID int64) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Template == nil || req.Frequency == nil {
		respondError(w, r, badRequest("template and frequency are required"))
		return
	}
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rule := core.RecurringRule{
		GroupID:   user.GroupID,
		CreatedBy: user.ID,
		Template:  *req.Template,
		Freq:      *req.Frequency,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := rule.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.store.GetCategory(r.Context(), rule.Template.CategoryID); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.CreateRule(r.Context(), &rule); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := storage.RuleFilter{ActiveOnly: r.URL.Query().Get("active") == "true"}
	if user.GroupID != nil {
		f.GroupID = *user.GroupID
	} else {
		f.OwnerUserID = user.ID
	}
	rules, err := s.store.ListRules(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// visibleRule loads a rule the caller owns, directly or through their
// group.
func (s *Server) visibleRule(r *http.Request, userID, ruleID int64) (core.RecurringRule, error) {
	rule, err := s.store.GetRule(r.Context(), ruleID)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if rule.CreatedBy == userID {
		return rule, nil
	}
	if rule.GroupID != nil {
		user, err := s.store.GetUser(r.Context(), userID)
		if err != nil {
			return core.RecurringRule{}, err
		}
		if user.GroupID != nil && *user.GroupID == *rule.GroupID {
			return rule, nil
		}
	}
	return core.RecurringRule{}, storage.ErrNotFound
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	rule, err := s.visibleRule(r, userID, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	rule, err := s.visibleRule(r, userID, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Template != nil {
		rule.Template = *req.Template
	}
	if req.Frequency != nil {
		rule.Freq = *req.Frequency
	}
	if !req.StartDate.IsZero() {
		rule.StartDate = req.StartDate
	}
	if !req.EndDate.IsZero() {
		rule.EndDate = req.EndDate
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := rule.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.UpdateRule(r.Context(), &rule); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.visibleRule(r, userID, id); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.DeleteRule(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProcessRules kicks off a materialization run and returns the
// job id immediately. Clients poll the jobs endpoint for the report.
func (s *Server) handleProcessRules(w http.ResponseWriter, r *http.Request, userID int64) {
	asOf := core.Today()
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			respondError(w, r, badRequest("as_of must be formatted as YYYY-MM-DD"))
			return
		}
		asOf = d
	}

	job := s.jobs.Submit(r.Context(), "rules.process", func(ctx context.Context) (any, error) {
		report, err := s.processor.Process(ctx, asOf)
		if err != nil {
			return nil, err
		}
		s.invalidateDashboard(userID)
		return report, nil
	})
	respondJSON(w, http.StatusAccepted, job)
}

// handleGenerateOne materializes the next pending occurrence of one
// rule synchronously.
func (s *Server) handleGenerateOne(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.visibleRule(r, userID, id); err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.processor.GenerateOne(r.Context(), id, core.Today())
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateDashboard(userID)
	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request, _ int64) {
	respondJSON(w, http.StatusOK, map[string]any{"jobs": s.jobs.List()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, _ int64) {
	id := r.PathValue("id")
	job, ok := s.jobs.Get(id)
	if !ok {
		respondError(w, r, storage.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
