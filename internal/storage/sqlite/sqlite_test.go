package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *Repository, email string) core.User {
	t.Helper()
	u := core.User{
		Email:        email,
		PasswordHash: "x",
		Nickname:     "tester",
		Settings:     core.DefaultSettings(),
	}
	if err := repo.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedCategory(t *testing.T, repo *Repository, userID int64, name string) core.Category {
	t.Helper()
	c := core.Category{CreatedBy: userID, Name: name, Type: core.Expense}
	if err := repo.CreateCategory(context.Background(), &c); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func TestUserRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	if u.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := repo.GetUserByEmail(ctx, "mina@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != u.ID || got.Settings.Currency != "KRW" {
		t.Fatalf("got %+v", got)
	}

	dup := core.User{Email: "mina@example.com", PasswordHash: "y", Nickname: "again"}
	if err := repo.CreateUser(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email error = %v, want ErrDuplicate", err)
	}
}

func TestTransactionFiltering(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	food := seedCategory(t, repo, u.ID, "식비")
	transit := seedCategory(t, repo, u.ID, "교통")

	dates := []core.Date{
		core.NewDate(2024, 3, 1),
		core.NewDate(2024, 3, 15),
		core.NewDate(2024, 4, 2),
	}
	cats := []core.Category{food, food, transit}
	for i, d := range dates {
		tx := core.Transaction{
			OwnerUserID: u.ID,
			Type:        core.Expense,
			Date:        d,
			Amount:      core.Money{Cents: int64(i+1) * 1000000},
			CategoryID:  cats[i].ID,
		}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("create transaction %d: %v", i, err)
		}
	}

	march, err := repo.ListTransactions(ctx, storage.TransactionFilter{
		OwnerUserID: u.ID,
		From:        core.NewDate(2024, 3, 1),
		To:          core.NewDate(2024, 3, 31),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(march) != 2 {
		t.Fatalf("march transactions = %d, want 2", len(march))
	}
	// Newest first.
	if !march[0].Date.Equal(core.NewDate(2024, 3, 15)) {
		t.Fatalf("order wrong: first is %s", march[0].Date)
	}

	byCat, err := repo.ListTransactions(ctx, storage.TransactionFilter{
		OwnerUserID: u.ID,
		CategoryID:  transit.ID,
	})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(byCat) != 1 || byCat[0].Amount.Cents != 3000000 {
		t.Fatalf("by category = %+v", byCat)
	}
}

func TestMaterializeOccurrenceIsAtomic(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	cat := seedCategory(t, repo, u.ID, "주거")

	rule := core.RecurringRule{
		CreatedBy: u.ID,
		Template: core.TransactionTemplate{
			Type:       core.Expense,
			Amount:     core.Money{Cents: 5000000},
			CategoryID: cat.ID,
			Memo:       "월세",
		},
		Freq:      core.Frequency{Unit: core.Monthly, Interval: 1},
		StartDate: core.NewDate(2024, 1, 15),
		IsActive:  true,
	}
	if err := repo.CreateRule(ctx, &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	tx := core.Transaction{
		OwnerUserID: u.ID,
		Type:        core.Expense,
		Date:        core.NewDate(2024, 1, 15),
		Amount:      rule.Template.Amount,
		CategoryID:  cat.ID,
	}
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &tx); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if tx.ID == 0 || tx.RuleID == nil || *tx.RuleID != rule.ID {
		t.Fatalf("transaction not linked: %+v", tx)
	}

	stored, err := repo.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if !stored.LastGeneratedThrough.Equal(core.NewDate(2024, 1, 15)) {
		t.Fatalf("cursor = %s", stored.LastGeneratedThrough)
	}

	// Replaying the same occurrence must not write a second row.
	dup := core.Transaction{
		OwnerUserID: u.ID,
		Type:        core.Expense,
		Date:        core.NewDate(2024, 1, 15),
		Amount:      rule.Template.Amount,
		CategoryID:  cat.ID,
	}
	if err := repo.MaterializeOccurrence(ctx, rule.ID, &dup); !errors.Is(err, storage.ErrCursorConflict) {
		t.Fatalf("replay error = %v, want ErrCursorConflict", err)
	}

	all, err := repo.ListTransactions(ctx, storage.TransactionFilter{OwnerUserID: u.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("transactions = %d, want 1", len(all))
	}
}

func TestBudgetUpsertKeepsIdentity(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	b := core.Budget{
		OwnerType:   core.OwnerUser,
		OwnerID:     u.ID,
		Period:      "2024-03",
		TotalAmount: core.Money{Cents: 50000000},
		Status:      core.BudgetActive,
	}
	if err := repo.UpsertBudget(ctx, &b); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	firstID := b.ID

	b2 := core.Budget{
		OwnerType:   core.OwnerUser,
		OwnerID:     u.ID,
		Period:      "2024-03",
		TotalAmount: core.Money{Cents: 80000000},
		Status:      core.BudgetClosed,
	}
	if err := repo.UpsertBudget(ctx, &b2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetBudget(ctx, core.OwnerUser, u.ID, "2024-03")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != firstID {
		t.Fatalf("id changed: %d -> %d", firstID, got.ID)
	}
	if got.TotalAmount.Cents != 80000000 || got.Status != core.BudgetClosed {
		t.Fatalf("got %+v", got)
	}
}

func TestSumByCategoryAggregates(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	food := seedCategory(t, repo, u.ID, "식비")
	transit := seedCategory(t, repo, u.ID, "교통")

	amounts := map[int64]int64{food.ID: 9000000, transit.ID: 3000000}
	for catID, cents := range amounts {
		tx := core.Transaction{
			OwnerUserID: u.ID,
			Type:        core.Expense,
			Date:        core.NewDate(2024, 3, 10),
			Amount:      core.Money{Cents: cents},
			CategoryID:  catID,
		}
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	totals, err := repo.SumByCategory(ctx, storage.TransactionFilter{
		OwnerUserID: u.ID,
		Type:        core.Expense,
	})
	if err != nil {
		t.Fatalf("sum by category: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals = %d rows, want 2", len(totals))
	}
	if totals[0].Name != "식비" || totals[0].Total.Cents != 9000000 {
		t.Fatalf("largest category = %+v", totals[0])
	}

	income, expense, err := repo.SumTotals(ctx, storage.TransactionFilter{OwnerUserID: u.ID})
	if err != nil {
		t.Fatalf("sum totals: %v", err)
	}
	if income.Cents != 0 || expense.Cents != 12000000 {
		t.Fatalf("income=%d expense=%d", income.Cents, expense.Cents)
	}
}

func TestForeignKeysEnforcedOnEveryConnection(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	cat := seedCategory(t, repo, u.ID, "식비")

	tx := core.Transaction{
		OwnerUserID: u.ID,
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 1),
		Amount:      core.Money{Cents: 1000000},
		CategoryID:  cat.ID,
	}
	if err := repo.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// Forces the pool past a single connection before the check.
	repo.db.SetMaxIdleConns(0)

	if err := repo.DeleteCategory(ctx, cat.ID); err == nil {
		t.Fatal("deleting a referenced category must be rejected")
	}
	if _, err := repo.GetCategory(ctx, cat.ID); err != nil {
		t.Fatalf("category must survive the rejected delete: %v", err)
	}

	orphan := core.Transaction{
		OwnerUserID: u.ID,
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 2),
		Amount:      core.Money{Cents: 1000000},
		CategoryID:  9999,
	}
	if err := repo.CreateTransaction(ctx, &orphan); err == nil {
		t.Fatal("transaction with unknown category must be rejected")
	}
}

func TestCategoryNamesUniquePerOwner(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "mina@example.com")
	seedCategory(t, repo, u.ID, "식비")

	dup := core.Category{CreatedBy: u.ID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate category error = %v, want ErrDuplicate", err)
	}

	// A different owner reuses the name freely.
	other := seedUser(t, repo, "jun@example.com")
	theirs := core.Category{CreatedBy: other.ID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &theirs); err != nil {
		t.Fatalf("other owner's category: %v", err)
	}

	// Same name under a group scope is a separate namespace too.
	g := core.Group{Name: "우리집", OwnerID: u.ID}
	if err := repo.CreateGroup(ctx, &g); err != nil {
		t.Fatalf("create group: %v", err)
	}
	shared := core.Category{CreatedBy: u.ID, GroupID: &g.ID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &shared); err != nil {
		t.Fatalf("group category: %v", err)
	}
	groupDup := core.Category{CreatedBy: other.ID, GroupID: &g.ID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &groupDup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate group category error = %v, want ErrDuplicate", err)
	}
}
