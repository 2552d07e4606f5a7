package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (group_id, created_by, name, type, color, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		nullID(c.GroupID), c.CreatedBy, c.Name, string(c.Type), c.Color, c.IsDefault, now).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create category: %w", mapErr(err))
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, categorySelect+` WHERE id = $1`, id))
}

func (r *Repository) GetCategoryByName(ctx context.Context, name string, userID, groupID int64) (core.Category, error) {
	if groupID != 0 {
		return scanCategory(r.pool.QueryRow(ctx,
			categorySelect+` WHERE name = $1 AND group_id = $2`, name, groupID))
	}
	return scanCategory(r.pool.QueryRow(ctx,
		categorySelect+` WHERE name = $1 AND group_id IS NULL AND created_by = $2`, name, userID))
}

func (r *Repository) ListCategories(ctx context.Context, userID, groupID int64) ([]core.Category, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if groupID != 0 {
		rows, err = r.pool.Query(ctx,
			categorySelect+` WHERE group_id = $1 OR (group_id IS NULL AND created_by = $2) ORDER BY name`,
			groupID, userID)
	} else {
		rows, err = r.pool.Query(ctx,
			categorySelect+` WHERE group_id IS NULL AND created_by = $1 ORDER BY name`, userID)
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
	tag, err := r.pool.Exec(ctx, `
		UPDATE categories SET name = $1, type = $2, color = $3, updated_at = $4 WHERE id = $5`,
		c.Name, string(c.Type), c.Color, now, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update category %d: %w", c.ID, storage.ErrNotFound)
	}
	c.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete category %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

const categorySelect = `
	SELECT id, group_id, created_by, name, type, color, is_default, created_at, updated_at
	FROM categories`

func scanCategory(row pgx.Row) (core.Category, error) {
	var (
		c       core.Category
		groupID *int64
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
