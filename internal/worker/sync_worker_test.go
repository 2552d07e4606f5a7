package worker

import (
	"context"
	"testing"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/amqp"
	"github.com/garyjeong/household-ledger-server/internal/core"
	sheetmem "github.com/garyjeong/household-ledger-server/internal/sheets/memory"
	"github.com/garyjeong/household-ledger-server/internal/storage/memory"
)

func seedTransaction(t *testing.T, repo *memory.Repository) core.Transaction {
	t.Helper()
	ctx := context.Background()
	u := core.User{Email: "mina@example.com", Nickname: "mina", Settings: core.DefaultSettings()}
	if err := repo.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	cat := core.Category{Name: "식비", Type: core.Expense, CreatedBy: u.ID}
	if err := repo.CreateCategory(ctx, &cat); err != nil {
		t.Fatalf("create category: %v", err)
	}
	tx := core.Transaction{
		OwnerUserID: u.ID,
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 15),
		Amount:      core.Money{Cents: 5000000},
		CategoryID:  cat.ID,
		Merchant:    "이마트",
	}
	if err := repo.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func TestHandleUpsertExportsRow(t *testing.T) {
	repo := memory.New()
	tx := seedTransaction(t, repo)
	sheet := sheetmem.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	msg := &amqp.TransactionSyncMessage{ID: tx.ID, Op: amqp.OpUpsert, Timestamp: time.Now()}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle upsert: %v", err)
	}

	rows := sheet.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Transaction.ID != tx.ID || rows[0].Category != "식비" {
		t.Fatalf("exported row = %+v", rows[0])
	}
}

func TestHandleUpsertForMissingTransactionIsNotAnError(t *testing.T) {
	repo := memory.New()
	sheet := sheetmem.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	msg := &amqp.TransactionSyncMessage{ID: 999, Op: amqp.OpUpsert}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("missing transaction should be skipped, got %v", err)
	}
	if len(sheet.Rows()) != 0 {
		t.Fatal("row exported for missing transaction")
	}
}

func TestHandleDeleteRemovesRow(t *testing.T) {
	repo := memory.New()
	tx := seedTransaction(t, repo)
	sheet := sheetmem.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)
	ctx := context.Background()

	if err := w.HandleMessage(ctx, &amqp.TransactionSyncMessage{ID: tx.ID, Op: amqp.OpUpsert}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := w.HandleMessage(ctx, &amqp.TransactionSyncMessage{ID: tx.ID, Op: amqp.OpDelete}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(sheet.Rows()) != 0 {
		t.Fatalf("row not removed: %+v", sheet.Rows())
	}
}

func TestHandleUnknownOp(t *testing.T) {
	repo := memory.New()
	sheet := sheetmem.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	if err := w.HandleMessage(context.Background(), &amqp.TransactionSyncMessage{ID: 1, Op: "rename"}); err == nil {
		t.Fatal("unknown op accepted")
	}
}

func TestStartupSyncCheck(t *testing.T) {
	repo := memory.New()
	tx := seedTransaction(t, repo)
	sheet := sheetmem.New()
	w := NewSyncWorker(repo, sheet, sheet, 10)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	rows := sheet.Rows()
	if len(rows) != 1 || rows[0].Transaction.ID != tx.ID {
		t.Fatalf("rows = %+v", rows)
	}
}
