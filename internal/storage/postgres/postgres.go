// Package postgres implements storage.Repository on PostgreSQL via
// pgxpool, for deployments where several server instances share one
// database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garyjeong/household-ledger-server/internal/storage"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// Open connects the pool, runs migrations and returns a ready
// repository. dsn is a postgres:// connection string.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// mapErr converts pgx errors to the storage sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

func nullID(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func idPtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
