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

func (r *Repository) CreateRule(ctx context.Context, rule *core.RecurringRule) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO recurring_rules (group_id, created_by, type, amount_cents, category_id, merchant, memo,
			freq_unit, freq_interval, start_date, end_date, last_generated_through, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING id`,
		nullID(rule.GroupID), rule.CreatedBy, string(rule.Template.Type), rule.Template.Amount.Cents,
		rule.Template.CategoryID, rule.Template.Merchant, rule.Template.Memo,
		string(rule.Freq.Unit), rule.Freq.Interval, rule.StartDate, rule.EndDate,
		rule.LastGeneratedThrough, rule.IsActive, now).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("create rule: %w", mapErr(err))
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

func (r *Repository) GetRule(ctx context.Context, id int64) (core.RecurringRule, error) {
	return scanRule(r.pool.QueryRow(ctx, ruleSelect+` WHERE id = $1`, id))
}

func (r *Repository) ListRules(ctx context.Context, f storage.RuleFilter) ([]core.RecurringRule, error) {
	var (
		conds []string
		args  []any
	)
	if f.GroupID != 0 {
		args = append(args, f.GroupID)
		conds = append(conds, fmt.Sprintf("group_id = $%d", len(args)))
	} else if f.OwnerUserID != 0 {
		args = append(args, f.OwnerUserID)
		conds = append(conds, fmt.Sprintf("group_id IS NULL AND created_by = $%d", len(args)))
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active")
	}
	q := ruleSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY id`
	return r.queryRules(ctx, q, args...)
}

func (r *Repository) ListActiveRules(ctx context.Context) ([]core.RecurringRule, error) {
	return r.queryRules(ctx, ruleSelect+` WHERE is_active ORDER BY id`)
}

func (r *Repository) UpdateRule(ctx context.Context, rule *core.RecurringRule) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_rules SET type = $1, amount_cents = $2, category_id = $3, merchant = $4, memo = $5,
			freq_unit = $6, freq_interval = $7, start_date = $8, end_date = $9, is_active = $10, updated_at = $11
		WHERE id = $12`,
		string(rule.Template.Type), rule.Template.Amount.Cents, rule.Template.CategoryID,
		rule.Template.Merchant, rule.Template.Memo,
		string(rule.Freq.Unit), rule.Freq.Interval, rule.StartDate, rule.EndDate,
		rule.IsActive, now, rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update rule %d: %w", rule.ID, storage.ErrNotFound)
	}
	rule.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recurring_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete rule %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// MaterializeOccurrence mirrors the sqlite implementation: one
// database transaction containing the guarded cursor advance and the
// transaction insert.
func (r *Repository) MaterializeOccurrence(ctx context.Context, ruleID int64, t *core.Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin materialize: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE recurring_rules SET last_generated_through = $1, updated_at = $2
		WHERE id = $3 AND is_active
		  AND (last_generated_through IS NULL OR last_generated_through < $1)`,
		t.Date, now, ruleID)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("advance cursor for rule %d: %w", ruleID, storage.ErrCursorConflict)
	}

	err = tx.QueryRow(ctx, insertTransactionSQL,
		nullID(t.GroupID), t.OwnerUserID, string(t.Type), t.Date, t.Amount.Cents,
		t.CategoryID, t.Merchant, t.Memo, ruleID, now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert generated transaction: %w", mapErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit materialize: %w", err)
	}
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
	rows, err := r.pool.Query(ctx, q, args...)
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

func scanRule(row pgx.Row) (core.RecurringRule, error) {
	var (
		rule    core.RecurringRule
		groupID *int64
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
