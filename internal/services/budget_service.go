package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// BudgetService manages monthly spending limits. A budget belongs
// either to a user or to their group; when the acting user is in a
// group the group budget is the one read and written.
type BudgetService struct {
	store storage.Repository
}

func NewBudgetService(store storage.Repository) *BudgetService {
	return &BudgetService{store: store}
}

// BudgetProgress is a budget together with how much of it has been
// spent in its period.
type BudgetProgress struct {
	core.Budget
	Spent     core.Money      `json:"spent"`
	Remaining core.Money      `json:"remaining"`
	UsedShare decimal.Decimal `json:"used_share"`
}

// owner resolves the budget owner for the acting user: the group when
// they belong to one, the user otherwise.
func (s *BudgetService) owner(ctx context.Context, userID int64) (core.OwnerType, int64, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", 0, fmt.Errorf("load acting user: %w", err)
	}
	if user.GroupID != nil {
		return core.OwnerGroup, *user.GroupID, nil
	}
	return core.OwnerUser, user.ID, nil
}

// Set creates or replaces the budget for the given period. Re-setting
// an existing period keeps the budget's identity and updates amount
// and status in place.
func (s *BudgetService) Set(ctx context.Context, userID int64, period string, amount core.Money, status core.BudgetStatus) (core.Budget, error) {
	if err := core.ValidatePeriod(period); err != nil {
		return core.Budget{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.Budget{}, err
	}
	if status == "" {
		status = core.BudgetActive
	}
	if !status.Valid() {
		return core.Budget{}, fmt.Errorf("invalid budget status %q", status)
	}

	ownerType, ownerID, err := s.owner(ctx, userID)
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		Period:      period,
		TotalAmount: amount,
		Status:      status,
	}
	if err := s.store.UpsertBudget(ctx, &b); err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}

// Get returns the budget for the period with spending progress.
func (s *BudgetService) Get(ctx context.Context, userID int64, period string) (BudgetProgress, error) {
	if err := core.ValidatePeriod(period); err != nil {
		return BudgetProgress{}, err
	}
	ownerType, ownerID, err := s.owner(ctx, userID)
	if err != nil {
		return BudgetProgress{}, err
	}
	b, err := s.store.GetBudget(ctx, ownerType, ownerID, period)
	if err != nil {
		return BudgetProgress{}, err
	}
	return s.progress(ctx, b)
}

// List returns all budgets for the acting user's scope, newest period
// first, each with spending progress.
func (s *BudgetService) List(ctx context.Context, userID int64) ([]BudgetProgress, error) {
	ownerType, ownerID, err := s.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	budgets, err := s.store.ListBudgets(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		p, err := s.progress(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes the budget for the period.
func (s *BudgetService) Delete(ctx context.Context, userID int64, period string) error {
	if err := core.ValidatePeriod(period); err != nil {
		return err
	}
	ownerType, ownerID, err := s.owner(ctx, userID)
	if err != nil {
		return err
	}
	b, err := s.store.GetBudget(ctx, ownerType, ownerID, period)
	if err != nil {
		return err
	}
	return s.store.DeleteBudget(ctx, b.ID)
}

// progress sums the expenses that count against the budget's period.
func (s *BudgetService) progress(ctx context.Context, b core.Budget) (BudgetProgress, error) {
	first, err := core.ParseDate(b.Period + "-01")
	if err != nil {
		return BudgetProgress{}, fmt.Errorf("budget period %q: %w", b.Period, err)
	}
	from, to, err := monthRange(first.Year(), first.Month(), 0)
	if err != nil {
		return BudgetProgress{}, err
	}

	f := storage.TransactionFilter{From: from, To: to}
	if b.OwnerType == core.OwnerGroup {
		f.GroupID = b.OwnerID
	} else {
		f.OwnerUserID = b.OwnerID
	}
	_, spent, err := s.store.SumTotals(ctx, f)
	if err != nil {
		return BudgetProgress{}, err
	}
	return BudgetProgress{
		Budget:    b,
		Spent:     spent,
		Remaining: core.Money{Cents: b.TotalAmount.Cents - spent.Cents},
		UsedShare: core.ShareOf(spent, b.TotalAmount),
	}, nil
}
