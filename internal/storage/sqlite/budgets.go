package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

func (r *Repository) UpsertBudget(ctx context.Context, b *core.Budget) error {
	now := time.Now().UTC()
	if b.Status == "" {
		b.Status = core.BudgetActive
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (owner_type, owner_id, period, amount_cents, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_type, owner_id, period)
		DO UPDATE SET amount_cents = excluded.amount_cents, status = excluded.status, updated_at = excluded.updated_at`,
		string(b.OwnerType), b.OwnerID, b.Period, b.TotalAmount.Cents, string(b.Status), now, now)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", mapErr(err))
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		b.ID = id
	}
	// The conflict path reuses the existing row id.
	if b.ID == 0 {
		stored, err := r.GetBudget(ctx, b.OwnerType, b.OwnerID, b.Period)
		if err != nil {
			return err
		}
		b.ID = stored.ID
		b.CreatedAt = stored.CreatedAt
	}
	b.UpdatedAt = now
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, ownerType core.OwnerType, ownerID int64, period string) (core.Budget, error) {
	return scanBudget(r.db.QueryRowContext(ctx,
		budgetSelect+` WHERE owner_type = ? AND owner_id = ? AND period = ?`,
		string(ownerType), ownerID, period))
}

func (r *Repository) ListBudgets(ctx context.Context, ownerType core.OwnerType, ownerID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		budgetSelect+` WHERE owner_type = ? AND owner_id = ? ORDER BY period DESC`,
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete budget %d: %w", id, mapErr(sql.ErrNoRows))
	}
	return nil
}

const budgetSelect = `
	SELECT id, owner_type, owner_id, period, amount_cents, status, created_at, updated_at
	FROM budgets`

func scanBudget(row rowScanner) (core.Budget, error) {
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
