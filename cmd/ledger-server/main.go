package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/cli"
	apphttp "github.com/garyjeong/household-ledger-server/internal/http"
	"github.com/garyjeong/household-ledger-server/internal/services"
)

func main() {
	logger := cli.SetupLogger("ledger-server")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenStorage(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("storage cleanup failed", "error", err)
		}
	}()

	var publisher services.SyncPublisher
	amqpClient := cli.DialAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		Store:       store.Repository,
		Publisher:   publisher,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("ledger server listening",
		"port", cfg.Port,
		"backend", cfg.StorageBackend,
		"amqp_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
