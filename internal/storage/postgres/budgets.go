package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) UpsertBudget(ctx context.Context, b *core.Budget) error {
	now := time.Now().UTC()
	if b.Status == "" {
		b.Status = core.BudgetActive
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO budgets (owner_type, owner_id, period, amount_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (owner_type, owner_id, period)
		DO UPDATE SET amount_cents = excluded.amount_cents, status = excluded.status, updated_at = excluded.updated_at
		RETURNING id, created_at`,
		string(b.OwnerType), b.OwnerID, b.Period, b.TotalAmount.Cents, string(b.Status), now).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", mapErr(err))
	}
	b.UpdatedAt = now
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, ownerType core.OwnerType, ownerID int64, period string) (core.Budget, error) {
	return scanBudget(r.pool.QueryRow(ctx,
		budgetSelect+` WHERE owner_type = $1 AND owner_id = $2 AND period = $3`,
		string(ownerType), ownerID, period))
}

func (r *Repository) ListBudgets(ctx context.Context, ownerType core.OwnerType, ownerID int64) ([]core.Budget, error) {
	rows, err := r.pool.Query(ctx,
		budgetSelect+` WHERE owner_type = $1 AND owner_id = $2 ORDER BY period DESC`,
		string(ownerType), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteBudget(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete budget %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

const budgetSelect = `
	SELECT id, owner_type, owner_id, period, amount_cents, status, created_at, updated_at
	FROM budgets`

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b         core.Budget
		ownerType string
		status    string
	)
	err := row.Scan(&b.ID, &ownerType, &b.OwnerID, &b.Period, &b.TotalAmount.Cents, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", mapErr(err))
	}
	b.OwnerType = core.OwnerType(ownerType)
	b.Status = core.BudgetStatus(status)
	return b, nil
}
