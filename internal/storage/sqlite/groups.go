package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

func (r *Repository) CreateGroup(ctx context.Context, g *core.Group) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO groups (name, owner_id, created_at) VALUES (?, ?, ?)`,
		g.Name, g.OwnerID, now)
	if err != nil {
		return fmt.Errorf("create group: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create group id: %w", err)
	}
	g.ID = id
	g.CreatedAt = now
	return nil
}

func (r *Repository) GetGroup(ctx context.Context, id int64) (core.Group, error) {
	var g core.Group
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", mapErr(err))
	}
	return g, nil
}

func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete group %d: %w", id, mapErr(sql.ErrNoRows))
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, userSelect+` WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (r *Repository) CreateInvite(ctx context.Context, inv *core.GroupInvite) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO group_invites (group_id, code, created_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		inv.GroupID, inv.Code, inv.CreatedBy, inv.ExpiresAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("create invite: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create invite id: %w", err)
	}
	inv.ID = id
	inv.CreatedAt = now
	return nil
}

func (r *Repository) GetInviteByCode(ctx context.Context, code string) (core.GroupInvite, error) {
	var inv core.GroupInvite
	err := r.db.QueryRowContext(ctx, `
		SELECT id, group_id, code, created_by, expires_at, created_at
		FROM group_invites WHERE code = ?`, code).
		Scan(&inv.ID, &inv.GroupID, &inv.Code, &inv.CreatedBy, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return core.GroupInvite{}, fmt.Errorf("get invite: %w", mapErr(err))
	}
	return inv, nil
}

func (r *Repository) DeleteInvite(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM group_invites WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}
