package main

import (
	"context"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/cli"
	"github.com/garyjeong/household-ledger-server/internal/core"
	applog "github.com/garyjeong/household-ledger-server/internal/log"
	"github.com/garyjeong/household-ledger-server/internal/services"
)

func main() {
	logger := cli.SetupLogger("recurring-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenStorage(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("storage cleanup failed", "error", err)
		}
	}()

	processor := services.NewRecurringProcessor(store.Repository, cfg.Parallelism)
	logger.Info("recurring rule processor configured",
		"interval", cfg.ProcessInterval,
		"parallelism", cfg.Parallelism,
		"backend", cfg.StorageBackend)

	// One run on startup so a restart never delays overdue rules by a
	// full interval.
	runOnce(ctx, logger, processor)

	ticker := time.NewTicker(cfg.ProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("recurring-worker stopped")
			return
		case <-ticker.C:
			runOnce(ctx, logger, processor)
		}
	}
}

func runOnce(ctx context.Context, logger *applog.Logger, processor *services.RecurringProcessor) {
	report, err := processor.Process(ctx, core.Today())
	if err != nil {
		logger.Error("rule processing failed", "error", err)
		return
	}
	logger.Info("rule processing complete",
		"rules_total", report.Total,
		"transactions_created", report.Created,
		"rules_skipped", report.Skipped,
		"rules_failed", len(report.Failed))
	for _, f := range report.Failed {
		logger.Warn("rule failed", applog.FieldRuleID, f.RuleID, "reason", f.Reason)
	}
}
