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

func (r *Repository) CreateRule(ctx context.Context, rule *core.RecurringRule) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (group_id, created_by, type, amount_cents, category_id, merchant, memo,
			freq_unit, freq_interval, start_date, end_date, last_generated_through, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullID(rule.GroupID), rule.CreatedBy, string(rule.Template.Type), rule.Template.Amount.Cents,
		rule.Template.CategoryID, rule.Template.Merchant, rule.Template.Memo,
		string(rule.Freq.Unit), rule.Freq.Interval, rule.StartDate, rule.EndDate,
		rule.LastGeneratedThrough, rule.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("create rule: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create rule id: %w", err)
	}
	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

func (r *Repository) GetRule(ctx context.Context, id int64) (core.RecurringRule, error) {
	return scanRule(r.db.QueryRowContext(ctx, ruleSelect+` WHERE id = ?`, id))
}

func (r *Repository) ListRules(ctx context.Context, f storage.RuleFilter) ([]core.RecurringRule, error) {
	var (
		conds []string
		args  []any
	)
	if f.GroupID != 0 {
		conds = append(conds, "group_id = ?")
		args = append(args, f.GroupID)
	} else if f.OwnerUserID != 0 {
		conds = append(conds, "group_id IS NULL AND created_by = ?")
		args = append(args, f.OwnerUserID)
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active = 1")
	}
	q := ruleSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY id`
	return r.queryRules(ctx, q, args...)
}

func (r *Repository) ListActiveRules(ctx context.Context) ([]core.RecurringRule, error) {
	return r.queryRules(ctx, ruleSelect+` WHERE is_active = 1 ORDER BY id`)
}

func (r *Repository) UpdateRule(ctx context.Context, rule *core.RecurringRule) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET type = ?, amount_cents = ?, category_id = ?, merchant = ?, memo = ?,
			freq_unit = ?, freq_interval = ?, start_date = ?, end_date = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		string(rule.Template.Type), rule.Template.Amount.Cents, rule.Template.CategoryID,
		rule.Template.Merchant, rule.Template.Memo,
		string(rule.Freq.Unit), rule.Freq.Interval, rule.StartDate, rule.EndDate,
		rule.IsActive, now, rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update rule %d: %w", rule.ID, mapErr(sql.ErrNoRows))
	}
	rule.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete rule %d: %w", id, mapErr(sql.ErrNoRows))
	}
	return nil
}

// MaterializeOccurrence inserts the generated transaction and advances
// the rule cursor in a single database transaction. The cursor update
// is guarded against concurrent generators: if another writer already
// moved the cursor to or past the occurrence date, the whole unit rolls
// back with storage.ErrCursorConflict and no transaction is written.
func (r *Repository) MaterializeOccurrence(ctx context.Context, ruleID int64, t *core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin materialize: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE recurring_rules SET last_generated_through = ?, updated_at = ?
		WHERE id = ? AND is_active = 1
		  AND (last_generated_through IS NULL OR last_generated_through < ?)`,
		t.Date, now, ruleID, t.Date)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("advance cursor for rule %d: %w", ruleID, storage.ErrCursorConflict)
	}

	ins, err := tx.ExecContext(ctx, insertTransactionSQL,
		nullID(t.GroupID), t.OwnerUserID, string(t.Type), t.Date, t.Amount.Cents,
		t.CategoryID, t.Merchant, t.Memo, ruleID, now, now)
	if err != nil {
		return fmt.Errorf("insert generated transaction: %w", mapErr(err))
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return fmt.Errorf("generated transaction id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit materialize: %w", err)
	}
	t.ID = id
	t.RuleID = &ruleID
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

const ruleSelect = `
	SELECT id, group_id, created_by, type, amount_cents, category_id, merchant, memo,
		freq_unit, freq_interval, start_date, end_date, last_generated_through, is_active, created_at, updated_at
	FROM recurring_rules`

func (r *Repository) queryRules(ctx context.Context, q string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row rowScanner) (core.RecurringRule, error) {
	var (
		rule    core.RecurringRule
		groupID sql.NullInt64
		typ     string
		unit    string
	)
	err := row.Scan(&rule.ID, &groupID, &rule.CreatedBy, &typ, &rule.Template.Amount.Cents,
		&rule.Template.CategoryID, &rule.Template.Merchant, &rule.Template.Memo,
		&unit, &rule.Freq.Interval, &rule.StartDate, &rule.EndDate,
		&rule.LastGeneratedThrough, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("scan rule: %w", mapErr(err))
	}
	rule.GroupID = idPtr(groupID)
	rule.Template.Type = core.TransactionType(typ)
	rule.Freq.Unit = core.FrequencyUnit(unit)
	return rule, nil
}
