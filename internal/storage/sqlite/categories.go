package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (group_id, created_by, name, type, color, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullID(c.GroupID), c.CreatedBy, c.Name, string(c.Type), c.Color, c.IsDefault, now, now)
	if err != nil {
		return fmt.Errorf("create category: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create category id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE id = ?`, id))
}

func (r *Repository) GetCategoryByName(ctx context.Context, name string, userID, groupID int64) (core.Category, error) {
	if groupID != 0 {
		return scanCategory(r.db.QueryRowContext(ctx,
			categorySelect+` WHERE name = ? AND group_id = ?`, name, groupID))
	}
	return scanCategory(r.db.QueryRowContext(ctx,
		categorySelect+` WHERE name = ? AND group_id IS NULL AND created_by = ?`, name, userID))
}

// ListCategories returns the owner's visible categories: the group's
// set when the user belongs to a group, plus personal ones.
func (r *Repository) ListCategories(ctx context.Context, userID, groupID int64) ([]core.Category, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if groupID != 0 {
		rows, err = r.db.QueryContext(ctx,
			categorySelect+` WHERE group_id = ? OR (group_id IS NULL AND created_by = ?) ORDER BY name`,
			groupID, userID)
	} else {
		rows, err = r.db.QueryContext(ctx,
			categorySelect+` WHERE group_id IS NULL AND created_by = ? ORDER BY name`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateCategory(ctx context.Context, c *core.Category) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, type = ?, color = ?, updated_at = ? WHERE id = ?`,
		c.Name, string(c.Type), c.Color, now, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update category %d: %w", c.ID, mapErr(sql.ErrNoRows))
	}
	c.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete category %d: %w", id, mapErr(sql.ErrNoRows))
	}
	return nil
}

const categorySelect = `
	SELECT id, group_id, created_by, name, type, color, is_default, created_at, updated_at
	FROM categories`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c       core.Category
		groupID sql.NullInt64
		typ     string
	)
	err := row.Scan(&c.ID, &groupID, &c.CreatedBy, &c.Name, &typ, &c.Color, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", mapErr(err))
	}
	c.GroupID = idPtr(groupID)
	c.Type = core.TransactionType(typ)
	return c, nil
}
