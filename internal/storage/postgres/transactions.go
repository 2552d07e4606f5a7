package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, insertTransactionSQL,
		nullID(t.GroupID), t.OwnerUserID, string(t.Type), t.Date, t.Amount.Cents,
		t.CategoryID, t.Merchant, t.Memo, nullID(t.RuleID), now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create transaction: %w", mapErr(err))
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, transactionSelect+` WHERE id = $1`, id))
}

func (r *Repository) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(f)
	q := transactionSelect + where + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET type = $1, date = $2, amount_cents = $3, category_id = $4, merchant = $5, memo = $6, updated_at = $7
		WHERE id = $8`,
		string(t.Type), t.Date, t.Amount.Cents, t.CategoryID, t.Merchant, t.Memo, now, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transaction %d: %w", t.ID, storage.ErrNotFound)
	}
	t.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete transaction %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (group_id, owner_user_id, type, date, amount_cents, category_id, merchant, memo, rule_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	RETURNING id`

const transactionSelect = `
	SELECT id, group_id, owner_user_id, type, date, amount_cents, category_id, merchant, memo, rule_id, created_at, updated_at
	FROM transactions`

func transactionWhere(f storage.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if f.GroupID != 0 {
		add("group_id = $%d", f.GroupID)
	} else if f.OwnerUserID != 0 {
		add("owner_user_id = $%d", f.OwnerUserID)
	}
	if f.CategoryID != 0 {
		add("category_id = $%d", f.CategoryID)
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if !f.From.IsZero() {
		add("date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("date <= $%d", f.To)
	}
	if f.RuleID != 0 {
		add("rule_id = $%d", f.RuleID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t       core.Transaction
		groupID *int64
		ruleID  *int64
		typ     string
	)
	err := row.Scan(&t.ID, &groupID, &t.OwnerUserID, &typ, &t.Date, &t.Amount.Cents,
		&t.CategoryID, &t.Merchant, &t.Memo, &ruleID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", mapErr(err))
	}
	t.GroupID = idPtr(groupID)
	t.RuleID = idPtr(ruleID)
	t.Type = core.TransactionType(typ)
	return t, nil
}
