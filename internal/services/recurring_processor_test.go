package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
	"github.com/garyjeong/household-ledger-server/internal/storage/memory"
)

func seedCategory(t *testing.T, repo *memory.Repository) core.Category {
	t.Helper()
	c := core.Category{CreatedBy: 1, Name: "주거", Type: core.Expense}
	if err := repo.CreateCategory(context.Background(), &c); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func seedMonthlyRule(t *testing.T, repo *memory.Repository, categoryID int64, start core.Date) core.RecurringRule {
	t.Helper()
	rule := core.RecurringRule{
		CreatedBy: 1,
		Template: core.TransactionTemplate{
			Type:       core.Expense,
			Amount:     core.Money{Cents: 5000000},
			CategoryID: categoryID,
			Merchant:   "Landlord",
			Memo:       "월세",
		},
		Freq:      core.Frequency{Unit: core.Monthly, Interval: 1},
		StartDate: start,
		IsActive:  true,
	}
	if err := repo.CreateRule(context.Background(), &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return rule
}

func TestProcessMaterializesAllPendingOccurrences(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))

	p := NewRecurringProcessor(repo, 4)
	report, err := p.Process(context.Background(), core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Total != 1 || report.Created != 4 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	txs, err := repo.ListTransactions(context.Background(), storage.TransactionFilter{RuleID: rule.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Amount.Cents != 5000000 || tx.Type != core.Expense || tx.CategoryID != cat.ID {
			t.Fatalf("template not copied: %+v", tx)
		}
		if tx.RuleID == nil || *tx.RuleID != rule.ID {
			t.Fatalf("transaction not linked to rule: %+v", tx)
		}
	}

	stored, _ := repo.GetRule(context.Background(), rule.ID)
	if !stored.LastGeneratedThrough.Equal(core.NewDate(2024, 4, 15)) {
		t.Fatalf("cursor expected 2024-04-15, got %v", stored.LastGeneratedThrough)
	}

	if len(report.Transactions) != 4 {
		t.Fatalf("report must list every created transaction: %+v", report.Transactions)
	}
	wantDates := []core.Date{
		core.NewDate(2024, 1, 15),
		core.NewDate(2024, 2, 15),
		core.NewDate(2024, 3, 15),
		core.NewDate(2024, 4, 15),
	}
	for i, ct := range report.Transactions {
		if ct.RuleID != rule.ID || ct.TransactionID == 0 || !ct.Date.Equal(wantDates[i]) {
			t.Fatalf("created transaction %d: %+v", i, ct)
		}
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))

	p := NewRecurringProcessor(repo, 2)
	asOf := core.NewDate(2024, 4, 20)

	if _, err := p.Process(context.Background(), asOf); err != nil {
		t.Fatalf("first process: %v", err)
	}
	second, err := p.Process(context.Background(), asOf)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if second.Created != 0 || second.Skipped != 1 {
		t.Fatalf("second run must create nothing: %+v", second)
	}

	txs, _ := repo.ListTransactions(context.Background(), storage.TransactionFilter{RuleID: rule.ID})
	if len(txs) != 4 {
		t.Fatalf("expected 4 transactions after double process, got %d", len(txs))
	}
}

func TestProcessSkipsRuleWithDeletedCategory(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	gone := seedCategory(t, repo)
	broken := seedMonthlyRule(t, repo, gone.ID, core.NewDate(2024, 1, 1))
	if err := repo.DeleteCategory(ctx, gone.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	alive := seedCategory(t, repo)
	healthy := seedMonthlyRule(t, repo, alive.ID, core.NewDate(2024, 1, 1))

	p := NewRecurringProcessor(repo, 1)
	report, err := p.Process(ctx, core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 2 {
		t.Fatalf("healthy rule must still generate: %+v", report)
	}
	if len(report.Failed) != 1 || report.Failed[0].RuleID != broken.ID {
		t.Fatalf("broken rule must be reported: %+v", report.Failed)
	}

	if txs, _ := repo.ListTransactions(ctx, storage.TransactionFilter{RuleID: broken.ID}); len(txs) != 0 {
		t.Fatalf("broken rule must not generate, got %d", len(txs))
	}
	if txs, _ := repo.ListTransactions(ctx, storage.TransactionFilter{RuleID: healthy.ID}); len(txs) != 2 {
		t.Fatalf("expected 2 from healthy rule, got %d", len(txs))
	}
}

func TestProcessRejectsForeignCategory(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	other := core.Category{CreatedBy: 2, Name: "주거", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &other); err != nil {
		t.Fatalf("create category: %v", err)
	}
	foreign := seedMonthlyRule(t, repo, other.ID, core.NewDate(2024, 1, 15))

	income := core.Category{CreatedBy: 1, Name: "급여", Type: core.Income}
	if err := repo.CreateCategory(ctx, &income); err != nil {
		t.Fatalf("create category: %v", err)
	}
	mismatched := seedMonthlyRule(t, repo, income.ID, core.NewDate(2024, 1, 15))

	p := NewRecurringProcessor(repo, 1)
	report, err := p.Process(ctx, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 0 || len(report.Failed) != 2 {
		t.Fatalf("both rules must fail validation: %+v", report)
	}

	for _, id := range []int64{foreign.ID, mismatched.ID} {
		if txs, _ := repo.ListTransactions(ctx, storage.TransactionFilter{RuleID: id}); len(txs) != 0 {
			t.Fatalf("rule %d must not generate, got %d transactions", id, len(txs))
		}
	}
}

func TestProcessRequiresGroupMembership(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	creator := core.User{Email: "a@b.c", Nickname: "a"}
	if err := repo.CreateUser(ctx, &creator); err != nil {
		t.Fatalf("create user: %v", err)
	}
	group := core.Group{Name: "우리집", OwnerID: creator.ID}
	if err := repo.CreateGroup(ctx, &group); err != nil {
		t.Fatalf("create group: %v", err)
	}

	cat := core.Category{CreatedBy: creator.ID, GroupID: &group.ID, Name: "식비", Type: core.Expense}
	if err := repo.CreateCategory(ctx, &cat); err != nil {
		t.Fatalf("create category: %v", err)
	}
	rule := core.RecurringRule{
		GroupID:   &group.ID,
		CreatedBy: creator.ID,
		Template: core.TransactionTemplate{
			Type:       core.Expense,
			Amount:     core.Money{Cents: 1000000},
			CategoryID: cat.ID,
		},
		Freq:      core.Frequency{Unit: core.Monthly, Interval: 1},
		StartDate: core.NewDate(2024, 1, 1),
		IsActive:  true,
	}
	if err := repo.CreateRule(ctx, &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	// The creator never joined the group, so the rule must not fire.
	p := NewRecurringProcessor(repo, 1)
	report, err := p.Process(ctx, core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 0 || len(report.Failed) != 1 || report.Failed[0].RuleID != rule.ID {
		t.Fatalf("non-member rule must fail validation: %+v", report)
	}

	joined, _ := repo.GetUser(ctx, creator.ID)
	joined.GroupID = &group.ID
	if err := repo.UpdateUser(ctx, &joined); err != nil {
		t.Fatalf("join group: %v", err)
	}
	report, err = p.Process(ctx, core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("process after join: %v", err)
	}
	if report.Created != 2 || len(report.Failed) != 0 {
		t.Fatalf("member rule must generate: %+v", report)
	}
}

func TestProcessRespectsEndDate(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))

	stored, _ := repo.GetRule(context.Background(), rule.ID)
	stored.EndDate = core.NewDate(2024, 2, 29)
	if err := repo.UpdateRule(context.Background(), &stored); err != nil {
		t.Fatalf("update: %v", err)
	}

	p := NewRecurringProcessor(repo, 1)
	report, err := p.Process(context.Background(), core.NewDate(2024, 12, 31))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 2 {
		t.Fatalf("expected 2 occurrences before end date, got %+v", report)
	}
}

func TestProcessFutureRuleCreatesNothing(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	seedMonthlyRule(t, repo, cat.ID, core.NewDate(2030, 1, 1))

	p := NewRecurringProcessor(repo, 1)
	report, err := p.Process(context.Background(), core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 0 || report.Skipped != 1 {
		t.Fatalf("future rule must be skipped: %+v", report)
	}
}

func TestGenerateOne(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))
	ctx := context.Background()

	p := NewRecurringProcessor(repo, 1)

	tx, err := p.GenerateOne(ctx, rule.ID, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !tx.Date.Equal(core.NewDate(2024, 1, 15)) {
		t.Fatalf("expected first pending occurrence, got %v", tx.Date)
	}

	// Next call yields the following occurrence, not a duplicate.
	tx2, err := p.GenerateOne(ctx, rule.ID, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if !tx2.Date.Equal(core.NewDate(2024, 2, 15)) {
		t.Fatalf("expected 2024-02-15, got %v", tx2.Date)
	}
}

func TestGenerateOneNotDue(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))
	ctx := context.Background()

	p := NewRecurringProcessor(repo, 1)
	if _, err := p.Process(ctx, core.NewDate(2024, 4, 20)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if _, err := p.GenerateOne(ctx, rule.ID, core.NewDate(2024, 4, 20)); !errors.Is(err, ErrNotDue) {
		t.Fatalf("expected ErrNotDue, got %v", err)
	}

	if _, err := p.GenerateOne(ctx, 9999, core.NewDate(2024, 4, 20)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown rule, got %v", err)
	}
}

// conflictStore injects cursor conflicts in front of a real store to
// exercise the retry path.
type conflictStore struct {
	*memory.Repository
	conflicts int
}

func (s *conflictStore) MaterializeOccurrence(ctx context.Context, ruleID int64, t *core.Transaction) error {
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("injected: %w", storage.ErrCursorConflict)
	}
	return s.Repository.MaterializeOccurrence(ctx, ruleID, t)
}

func TestProcessRetriesAfterCursorConflict(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))

	store := &conflictStore{Repository: repo, conflicts: 2}
	p := NewRecurringProcessor(store, 1)

	report, err := p.Process(context.Background(), core.NewDate(2024, 2, 20))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 2 || len(report.Failed) != 0 {
		t.Fatalf("conflicts should be retried through: %+v", report)
	}

	txs, _ := repo.ListTransactions(context.Background(), storage.TransactionFilter{RuleID: rule.ID})
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
}

// vanishingStore deletes the rule before its first occurrence is
// written, as a concurrent DELETE would.
type vanishingStore struct {
	*memory.Repository
}

func (s *vanishingStore) MaterializeOccurrence(ctx context.Context, ruleID int64, t *core.Transaction) error {
	if err := s.Repository.DeleteRule(ctx, ruleID); err != nil {
		return err
	}
	return s.Repository.MaterializeOccurrence(ctx, ruleID, t)
}

func TestProcessSkipsRuleDeletedMidCycle(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	rule := seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))

	p := NewRecurringProcessor(&vanishingStore{Repository: repo}, 1)
	report, err := p.Process(context.Background(), core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Created != 0 || len(report.Failed) != 0 {
		t.Fatalf("deleted rule must be skipped quietly: %+v", report)
	}
	if report.Skipped != 1 {
		t.Fatalf("deleted rule must count as skipped: %+v", report)
	}

	if txs, _ := repo.ListTransactions(context.Background(), storage.TransactionFilter{RuleID: rule.ID}); len(txs) != 0 {
		t.Fatalf("deleted rule must not generate, got %d", len(txs))
	}
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	repo := memory.New()
	cat := seedCategory(t, repo)
	seedMonthlyRule(t, repo, cat.ID, core.NewDate(2024, 1, 15))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewRecurringProcessor(repo, 1)
	if _, err := p.Process(ctx, core.NewDate(2024, 4, 20)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
