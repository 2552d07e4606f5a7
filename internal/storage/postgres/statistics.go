package postgres

import (
	"context"
	"fmt"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) SumByCategory(ctx context.Context, f storage.TransactionFilter) ([]core.CategoryTotal, error) {
	where, args := transactionWhere(f)
	q := `
		SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.color, ''), SUM(t.amount_cents)::bigint
		FROM (` + transactionSelect + where + `) t
		LEFT JOIN categories c ON c.id = t.category_id
		GROUP BY t.category_id, c.name, c.color
		ORDER BY SUM(t.amount_cents) DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var (
		out   []core.CategoryTotal
		total int64
	)
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Color, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		total += ct.Total.Cents
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Share = core.ShareOf(out[i].Total, core.Money{Cents: total})
	}
	return out, nil
}

func (r *Repository) SumByMonth(ctx context.Context, f storage.TransactionFilter) ([]core.MonthlyTotal, error) {
	where, args := transactionWhere(f)
	q := `
		SELECT EXTRACT(YEAR FROM date)::int, EXTRACT(MONTH FROM date)::int,
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'INCOME'), 0)::bigint,
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'EXPENSE'), 0)::bigint
		FROM (` + transactionSelect + where + `) t
		GROUP BY 1, 2
		ORDER BY 1, 2`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by month: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyTotal
	for rows.Next() {
		var mt core.MonthlyTotal
		if err := rows.Scan(&mt.Year, &mt.Month, &mt.Income.Cents, &mt.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

func (r *Repository) SumTotals(ctx context.Context, f storage.TransactionFilter) (core.Money, core.Money, error) {
	where, args := transactionWhere(f)
	q := `
		SELECT COALESCE(SUM(amount_cents) FILTER (WHERE type = 'INCOME'), 0)::bigint,
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'EXPENSE'), 0)::bigint
		FROM (` + transactionSelect + where + `) t`

	var income, expense core.Money
	err := r.pool.QueryRow(ctx, q, args...).Scan(&income.Cents, &expense.Cents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("sum totals: %w", err)
	}
	return income, expense, nil
}
