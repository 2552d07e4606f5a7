// Package worker runs the background consumers: the spreadsheet sync
// worker fed by AMQP and the periodic recurring-rule processor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garyjeong/household-ledger-server/internal/amqp"
	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/sheets"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// SyncWorker mirrors transaction writes into the spreadsheet export.
// It is driven by TransactionSyncMessage events; StartupSyncCheck
// covers transactions written while the worker was down.
type SyncWorker struct {
	store     storage.Repository
	writer    sheets.TransactionWriter
	deleter   sheets.TransactionDeleter
	batchSize int
}

func NewSyncWorker(store storage.Repository, writer sheets.TransactionWriter, deleter sheets.TransactionDeleter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &SyncWorker{store: store, writer: writer, deleter: deleter, batchSize: batchSize}
}

// HandleMessage processes one sync message. Returning an error makes
// the AMQP consumer requeue the delivery.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	switch msg.Op {
	case amqp.OpUpsert:
		return w.exportTransaction(ctx, msg.ID)
	case amqp.OpDelete:
		return w.removeTransaction(ctx, msg.ID)
	default:
		return fmt.Errorf("unknown sync op %q for transaction %d", msg.Op, msg.ID)
	}
}

// Run consumes sync messages until the context is cancelled.
func (w *SyncWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionSync(ctx, func(msg *amqp.TransactionSyncMessage) error {
		return w.HandleMessage(ctx, msg)
	})
}

func (w *SyncWorker) exportTransaction(ctx context.Context, id int64) error {
	t, err := w.store.GetTransaction(ctx, id)
	if err != nil {
		// Deleted between publish and consume. Nothing to export.
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "transaction gone before export", "transaction_id", id)
			return nil
		}
		return fmt.Errorf("load transaction %d: %w", id, err)
	}

	ref, err := w.writer.Append(ctx, t, w.categoryName(ctx, t))
	if err != nil {
		return fmt.Errorf("append transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "exported transaction",
		"transaction_id", id,
		"sheet_ref", ref)
	return nil
}

func (w *SyncWorker) removeTransaction(ctx context.Context, id int64) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "no deleter configured, skipping export removal",
			"transaction_id", id)
		return nil
	}
	if err := w.deleter.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove exported transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "removed exported transaction", "transaction_id", id)
	return nil
}

// StartupSyncCheck re-exports the most recent transactions so rows
// written during worker downtime are not lost. The export target
// dedupes by ledger id, so re-appending an already exported row is
// handled by reconciliation, not here.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	recent, err := w.store.ListTransactions(ctx, storage.TransactionFilter{Limit: w.batchSize})
	if err != nil {
		return fmt.Errorf("list recent transactions: %w", err)
	}
	if len(recent) == 0 {
		slog.InfoContext(ctx, "no transactions to check on startup")
		return nil
	}

	synced, failed := 0, 0
	for _, t := range recent {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.writer.Append(ctx, t, w.categoryName(ctx, t)); err != nil {
			slog.ErrorContext(ctx, "startup export failed",
				"transaction_id", t.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "startup sync completed",
		"total", len(recent),
		"synced", synced,
		"failed", failed)
	return nil
}

func (w *SyncWorker) categoryName(ctx context.Context, t core.Transaction) string {
	cat, err := w.store.GetCategory(ctx, t.CategoryID)
	if err != nil {
		slog.WarnContext(ctx, "category lookup failed for export",
			"transaction_id", t.ID,
			"category_id", t.CategoryID,
			"error", err)
		return ""
	}
	return cat.Name
}
