package sqlite

import (
	"context"
	"fmt"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) SumByCategory(ctx context.Context, f storage.TransactionFilter) ([]core.CategoryTotal, error) {
	where, args := transactionWhere(f)
	q := `
		SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.color, ''), SUM(t.amount_cents)
		FROM (` + transactionSelect + where + `) t
		LEFT JOIN categories c ON c.id = t.category_id
		GROUP BY t.category_id
		ORDER BY SUM(t.amount_cents) DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
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
		SELECT CAST(strftime('%Y', date) AS INTEGER),
			CAST(strftime('%m', date) AS INTEGER),
			COALESCE(SUM(CASE WHEN type = 'INCOME' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'EXPENSE' THEN amount_cents ELSE 0 END), 0)
		FROM (` + transactionSelect + where + `)
		GROUP BY strftime('%Y-%m', date)
		ORDER BY strftime('%Y-%m', date)`

	rows, err := r.db.QueryContext(ctx, q, args...)
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
		SELECT COALESCE(SUM(CASE WHEN type = 'INCOME' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'EXPENSE' THEN amount_cents ELSE 0 END), 0)
		FROM (` + transactionSelect + where + `)`

	var income, expense core.Money
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&income.Cents, &expense.Cents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("sum totals: %w", err)
	}
	return income, expense, nil
}
