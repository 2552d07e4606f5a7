// Package cli holds the bootstrap plumbing shared by the binaries
// under cmd/.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/amqp"
	"github.com/garyjeong/household-ledger-server/internal/backend"
	"github.com/garyjeong/household-ledger-server/internal/config"
	applog "github.com/garyjeong/household-ledger-server/internal/log"
)

// SetupLogger builds the process-wide logger and installs it as the
// slog default.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and exits the process when
// it is unusable.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStorage opens the configured storage backend and exits the
// process on failure.
func OpenStorage(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("storage configuration invalid", "error", err)
		os.Exit(1)
	}
	result, err := backend.Open(ctx, bcfg)
	if err != nil {
		logger.Error("storage backend open failed", "error", err, "backend", cfg.StorageBackend)
		os.Exit(1)
	}
	return result
}

// DialAMQP connects to the configured broker. An empty AMQP URL is not
// an error: the caller runs without the sync pipeline.
func DialAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, transactions will not sync to the export sheet")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing without sync", "error", err)
		return nil
	}
	return client
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownTimeout bounds graceful shutdown across the binaries.
const ShutdownTimeout = 30 * time.Second
