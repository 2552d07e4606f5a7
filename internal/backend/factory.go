package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garyjeong/household-ledger-server/internal/storage/memory"
	"github.com/garyjeong/household-ledger-server/internal/storage/postgres"
	"github.com/garyjeong/household-ledger-server/internal/storage/sqlite"
)

// Open creates the repository for the configured backend. The caller
// owns the returned cleanup.
func Open(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		repo, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		slog.InfoContext(ctx, "storage backend ready",
			"backend", cfg.Type,
			"db_path", cfg.SQLiteDBPath)
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	case PostgresBackend:
		repo, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres backend: %w", err)
		}
		slog.InfoContext(ctx, "storage backend ready", "backend", cfg.Type)
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		repo := memory.New()
		slog.InfoContext(ctx, "storage backend ready", "backend", cfg.Type)
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
