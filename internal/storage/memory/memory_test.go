package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func seedRule(t *testing.T, repo *Repository) core.RecurringRule {
	t.Helper()
	rule := core.RecurringRule{
		CreatedBy: 1,
		Template: core.TransactionTemplate{
			Type:       core.Expense,
			Amount:     core.Money{Cents: 5000000},
			CategoryID: 1,
			Merchant:   "Landlord",
		},
		Freq:      core.Frequency{Unit: core.Monthly, Interval: 1},
		StartDate: core.NewDate(2024, 1, 15),
		IsActive:  true,
	}
	if err := repo.CreateRule(context.Background(), &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return rule
}

func genTx(rule core.RecurringRule, date core.Date) core.Transaction {
	return core.Transaction{
		OwnerUserID: rule.CreatedBy,
		Type:        rule.Template.Type,
		Date:        date,
		Amount:      rule.Template.Amount,
		CategoryID:  rule.Template.CategoryID,
		Merchant:    rule.Template.Merchant,
	}
}

func TestMaterializeOccurrenceAdvancesCursor(t *testing.T) {
	repo := New()
	rule := seedRule(t, repo)
	ctx := context.Background()

	tx := genTx(rule, core.NewDate(2024, 1, 15))
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &tx); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if tx.ID == 0 || tx.RuleID == nil || *tx.RuleID != rule.ID {
		t.Fatalf("transaction not linked to rule: %+v", tx)
	}

	stored, err := repo.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if !stored.LastGeneratedThrough.Equal(tx.Date) {
		t.Fatalf("cursor not advanced: %v", stored.LastGeneratedThrough)
	}
}

func TestMaterializeOccurrenceRejectsStaleDate(t *testing.T) {
	repo := New()
	rule := seedRule(t, repo)
	ctx := context.Background()

	first := genTx(rule, core.NewDate(2024, 2, 15))
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &first); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	// Same date again: at-most-once per occurrence.
	dup := genTx(rule, core.NewDate(2024, 2, 15))
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &dup); !errors.Is(err, storage.ErrCursorConflict) {
		t.Fatalf("expected ErrCursorConflict, got %v", err)
	}

	// Earlier date: cursor never moves backwards.
	old := genTx(rule, core.NewDate(2024, 1, 15))
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &old); !errors.Is(err, storage.ErrCursorConflict) {
		t.Fatalf("expected ErrCursorConflict, got %v", err)
	}

	txs, err := repo.ListTransactions(ctx, storage.TransactionFilter{RuleID: rule.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly one generated transaction, got %d", len(txs))
	}
}

func TestUpdateRulePreservesCursor(t *testing.T) {
	repo := New()
	rule := seedRule(t, repo)
	ctx := context.Background()

	tx := genTx(rule, core.NewDate(2024, 1, 15))
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &tx); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	edited, _ := repo.GetRule(ctx, rule.ID)
	edited.Template.Amount = core.Money{Cents: 6000000}
	edited.LastGeneratedThrough = core.Date{} // callers cannot reset it
	if err := repo.UpdateRule(ctx, &edited); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := repo.GetRule(ctx, rule.ID)
	if !stored.LastGeneratedThrough.Equal(core.NewDate(2024, 1, 15)) {
		t.Fatalf("cursor lost on update: %v", stored.LastGeneratedThrough)
	}
	if stored.Template.Amount.Cents != 6000000 {
		t.Fatalf("amount not updated")
	}
}

func TestTransactionFilter(t *testing.T) {
	repo := New()
	ctx := context.Background()

	mk := func(owner int64, typ core.TransactionType, date core.Date, cents int64, cat int64) {
		tx := core.Transaction{OwnerUserID: owner, Type: typ, Date: date, Amount: core.Money{Cents: cents}, CategoryID: cat}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mk(1, core.Expense, core.NewDate(2024, 1, 10), 1000, 1)
	mk(1, core.Income, core.NewDate(2024, 1, 25), 300000, 2)
	mk(1, core.Expense, core.NewDate(2024, 2, 5), 2000, 1)
	mk(2, core.Expense, core.NewDate(2024, 1, 10), 9999, 3)

	jan, err := repo.ListTransactions(ctx, storage.TransactionFilter{
		OwnerUserID: 1,
		From:        core.NewDate(2024, 1, 1),
		To:          core.NewDate(2024, 1, 31),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jan) != 2 {
		t.Fatalf("expected 2 january rows, got %d", len(jan))
	}

	expenses, _ := repo.ListTransactions(ctx, storage.TransactionFilter{OwnerUserID: 1, Type: core.Expense})
	if len(expenses) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(expenses))
	}

	income, expense, err := repo.SumTotals(ctx, storage.TransactionFilter{OwnerUserID: 1})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if income.Cents != 300000 || expense.Cents != 3000 {
		t.Fatalf("unexpected totals: income=%d expense=%d", income.Cents, expense.Cents)
	}
}

func TestSumByCategoryShares(t *testing.T) {
	repo := New()
	ctx := context.Background()

	food := core.Category{CreatedBy: 1, Name: "식비", Type: core.Expense}
	rent := core.Category{CreatedBy: 1, Name: "주거", Type: core.Expense}
	repo.CreateCategory(ctx, &food)
	repo.CreateCategory(ctx, &rent)

	add := func(cat int64, cents int64) {
		tx := core.Transaction{OwnerUserID: 1, Type: core.Expense, Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: cents}, CategoryID: cat}
		repo.CreateTransaction(ctx, &tx)
	}
	add(food.ID, 2500)
	add(rent.ID, 7500)

	totals, err := repo.SumByCategory(ctx, storage.TransactionFilter{OwnerUserID: 1, Type: core.Expense})
	if err != nil {
		t.Fatalf("sum by category: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(totals))
	}
	if totals[0].Name != "주거" || totals[0].Share.String() != "75" {
		t.Fatalf("unexpected leader: %+v", totals[0])
	}
	if totals[1].Share.String() != "25" {
		t.Fatalf("unexpected share: %+v", totals[1])
	}
}

func TestBudgetUpsert(t *testing.T) {
	repo := New()
	ctx := context.Background()

	b := core.Budget{OwnerType: core.OwnerUser, OwnerID: 1, Period: "2024-03", TotalAmount: core.Money{Cents: 100000}}
	if err := repo.UpsertBudget(ctx, &b); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	firstID := b.ID

	b2 := core.Budget{OwnerType: core.OwnerUser, OwnerID: 1, Period: "2024-03", TotalAmount: core.Money{Cents: 200000}}
	if err := repo.UpsertBudget(ctx, &b2); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if b2.ID != firstID {
		t.Fatalf("upsert created a second row: %d != %d", b2.ID, firstID)
	}

	stored, err := repo.GetBudget(ctx, core.OwnerUser, 1, "2024-03")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.TotalAmount.Cents != 200000 {
		t.Fatalf("amount not replaced: %d", stored.TotalAmount.Cents)
	}
}

func TestDuplicateEmail(t *testing.T) {
	repo := New()
	ctx := context.Background()

	u := core.User{Email: "mina@example.com", Nickname: "mina", Settings: core.DefaultSettings()}
	if err := repo.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := core.User{Email: "MINA@example.com", Nickname: "other"}
	if err := repo.CreateUser(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDuplicateCategoryPerOwner(t *testing.T) {
	repo := New()
	ctx := context.Background()

	mine := core.Category{CreatedBy: 1, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &mine); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := core.Category{CreatedBy: 1, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same name is fine for another user, another type, or a group.
	theirs := core.Category{CreatedBy: 2, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &theirs); err != nil {
		t.Fatalf("other owner: %v", err)
	}
	income := core.Category{CreatedBy: 1, Name: "식비", Type: core.Income}
	if err := repo.CreateCategory(ctx, &income); err != nil {
		t.Fatalf("other type: %v", err)
	}
	groupID := int64(7)
	shared := core.Category{CreatedBy: 1, GroupID: &groupID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &shared); err != nil {
		t.Fatalf("group scope: %v", err)
	}
	groupDup := core.Category{CreatedBy: 2, GroupID: &groupID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &groupDup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate in group, got %v", err)
	}
}
