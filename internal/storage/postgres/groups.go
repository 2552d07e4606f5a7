package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) CreateGroup(ctx context.Context, g *core.Group) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO groups (name, owner_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
		g.Name, g.OwnerID, now).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("create group: %w", mapErr(err))
	}
	g.CreatedAt = now
	return nil
}

func (r *Repository) GetGroup(ctx context.Context, id int64) (core.Group, error) {
	var g core.Group
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", mapErr(err))
	}
	return g, nil
}

func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete group %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]core.User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (r *Repository) CreateInvite(ctx context.Context, inv *core.GroupInvite) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO group_invites (group_id, code, created_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		inv.GroupID, inv.Code, inv.CreatedBy, inv.ExpiresAt.UTC(), now).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("create invite: %w", mapErr(err))
	}
	inv.CreatedAt = now
	return nil
}

func (r *Repository) GetInviteByCode(ctx context.Context, code string) (core.GroupInvite, error) {
	var inv core.GroupInvite
	err := r.pool.QueryRow(ctx, `
		SELECT id, group_id, code, created_by, expires_at, created_at
		FROM group_invites WHERE code = $1`, code).
		Scan(&inv.ID, &inv.GroupID, &inv.Code, &inv.CreatedBy, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return core.GroupInvite{}, fmt.Errorf("get invite: %w", mapErr(err))
	}
	return inv, nil
}

func (r *Repository) DeleteInvite(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM group_invites WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}
