package main

import (
	"context"
	"errors"
	"os"

	"github.com/garyjeong/household-ledger-server/internal/cli"
	gsheet "github.com/garyjeong/household-ledger-server/internal/sheets/google"
	"github.com/garyjeong/household-ledger-server/internal/worker"
)

func main() {
	logger := cli.SetupLogger("sync-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenStorage(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("storage cleanup failed", "error", err)
		}
	}()

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required, the sync worker has nothing to write to")
		os.Exit(1)
	}
	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("sheets client init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("sheets client ready", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient := cli.DialAMQP(logger, cfg)
	if amqpClient == nil {
		logger.Error("AMQP connection is required for the sync worker")
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(store.Repository, sheetsClient, sheetsClient, cfg.SyncBatchSize)

	// Catch up with transactions written while the worker was down.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("startup sync check failed", "error", err)
	}

	logger.Info("sync worker consuming", "queue", cfg.AMQPQueue)
	if err := syncWorker.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("sync-worker stopped")
}
