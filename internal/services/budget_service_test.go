package services

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
	"github.com/garyjeong/household-ledger-server/internal/storage/memory"
)

func TestSetBudgetValidatesPeriod(t *testing.T) {
	repo := memory.New()
	user := seedUser(t, repo)
	svc := NewBudgetService(repo)

	for _, period := range []string{"2024-13", "2024-1", "march", ""} {
		if _, err := svc.Set(context.Background(), user.ID, period, core.Money{Cents: 100000000}, ""); !errors.Is(err, core.ErrInvalidPeriod) {
			t.Fatalf("period %q: got %v, want ErrInvalidPeriod", period, err)
		}
	}
}

func TestSetBudgetUpsertsInPlace(t *testing.T) {
	repo := memory.New()
	user := seedUser(t, repo)
	svc := NewBudgetService(repo)
	ctx := context.Background()

	first, err := svc.Set(ctx, user.ID, "2024-03", core.Money{Cents: 100000000}, "")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if first.Status != core.BudgetActive {
		t.Fatalf("default status = %s", first.Status)
	}

	second, err := svc.Set(ctx, user.ID, "2024-03", core.Money{Cents: 80000000}, core.BudgetClosed)
	if err != nil {
		t.Fatalf("re-set: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert changed identity: %d -> %d", first.ID, second.ID)
	}

	budgets, err := svc.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(budgets) != 1 || budgets[0].TotalAmount.Cents != 80000000 || budgets[0].Status != core.BudgetClosed {
		t.Fatalf("budgets = %+v", budgets)
	}
}

func TestBudgetProgressCountsPeriodExpensesOnly(t *testing.T) {
	repo := memory.New()
	user := seedUser(t, repo)
	cat := seedCategory(t, repo)
	svc := NewBudgetService(repo)
	ctx := context.Background()

	if _, err := svc.Set(ctx, user.ID, "2024-03", core.Money{Cents: 50000000}, ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	seed := []core.Transaction{
		{Type: core.Expense, Date: core.NewDate(2024, 3, 5), Amount: core.Money{Cents: 10000000}},
		{Type: core.Expense, Date: core.NewDate(2024, 3, 20), Amount: core.Money{Cents: 2500000}},
		// Income and other months never count against the budget.
		{Type: core.Income, Date: core.NewDate(2024, 3, 25), Amount: core.Money{Cents: 300000000}},
		{Type: core.Expense, Date: core.NewDate(2024, 4, 1), Amount: core.Money{Cents: 9900000}},
	}
	for i := range seed {
		seed[i].OwnerUserID = user.ID
		seed[i].CategoryID = cat.ID
		if err := repo.CreateTransaction(ctx, &seed[i]); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}

	p, err := svc.Get(ctx, user.ID, "2024-03")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Spent.Cents != 12500000 {
		t.Fatalf("spent = %d", p.Spent.Cents)
	}
	if p.Remaining.Cents != 37500000 {
		t.Fatalf("remaining = %d", p.Remaining.Cents)
	}
	if p.UsedShare.String() != "25" {
		t.Fatalf("used share = %s", p.UsedShare)
	}
}

func TestDeleteBudget(t *testing.T) {
	repo := memory.New()
	user := seedUser(t, repo)
	svc := NewBudgetService(repo)
	ctx := context.Background()

	if _, err := svc.Set(ctx, user.ID, "2024-05", core.Money{Cents: 10000000}, ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Delete(ctx, user.ID, "2024-05"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, user.ID, "2024-05"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}
