// Package sqlite implements storage.Repository on an embedded SQLite
// database. It is the default backend for single-host deployments.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjeong/household-ledger-server/internal/storage"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// Open creates the database file if needed, runs migrations and
// returns a ready repository.
func Open(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// Pragmas ride the DSN so every pooled connection gets them:
	// writers queue instead of failing immediately, and FKs are enforced.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// mapErr converts driver errors to the storage sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
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

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
