package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, insertTransactionSQL,
		nullID(t.GroupID), t.OwnerUserID, string(t.Type), t.Date, t.Amount.Cents,
		t.CategoryID, t.Merchant, t.Memo, nullID(t.RuleID), now, now)
	if err != nil {
		return fmt.Errorf("create transaction: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+` WHERE id = ?`, id))
}

func (r *Repository) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(f)
	q := transactionSelect + where + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
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
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET type = ?, date = ?, amount_cents = ?, category_id = ?, merchant = ?, memo = ?, updated_at = ?
		WHERE id = ?`,
		string(t.Type), t.Date, t.Amount.Cents, t.CategoryID, t.Merchant, t.Memo, now, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update transaction %d: %w", t.ID, mapErr(sql.ErrNoRows))
	}
	t.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete transaction %d: %w", id, mapErr(sql.ErrNoRows))
	}
	return nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (group_id, owner_user_id, type, date, amount_cents, category_id, merchant, memo, rule_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const transactionSelect = `
	SELECT id, group_id, owner_user_id, type, date, amount_cents, category_id, merchant, memo, rule_id, created_at, updated_at
	FROM transactions`

// transactionWhere builds a WHERE clause from the filter's non-zero
// fields. Shared with the statistics queries.
func transactionWhere(f storage.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.GroupID != 0 {
		conds = append(conds, "group_id = ?")
		args = append(args, f.GroupID)
	} else if f.OwnerUserID != 0 {
		conds = append(conds, "owner_user_id = ?")
		args = append(args, f.OwnerUserID)
	}
	if f.CategoryID != 0 {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To)
	}
	if f.RuleID != 0 {
		conds = append(conds, "rule_id = ?")
		args = append(args, f.RuleID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		groupID sql.NullInt64
		ruleID  sql.NullInt64
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
