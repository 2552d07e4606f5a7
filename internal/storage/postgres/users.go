package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, nickname, avatar_url, group_id, currency, locale, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`,
		u.Email, u.PasswordHash, u.Nickname, u.AvatarURL, nullID(u.GroupID),
		u.Settings.Currency, u.Settings.Locale, u.Settings.Timezone, now).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE id = $1`, id))
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE lower(email) = lower($1)`, email))
}

func (r *Repository) UpdateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET email = $1, password_hash = $2, nickname = $3, avatar_url = $4, group_id = $5, updated_at = $6
		WHERE id = $7`,
		u.Email, u.PasswordHash, u.Nickname, u.AvatarURL, nullID(u.GroupID), now, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %d: %w", u.ID, storage.ErrNotFound)
	}
	u.UpdatedAt = now
	return nil
}

func (r *Repository) UpdateSettings(ctx context.Context, userID int64, s core.Settings) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET currency = $1, locale = $2, timezone = $3, updated_at = $4
		WHERE id = $5`,
		s.Currency, s.Locale, s.Timezone, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update settings for user %d: %w", userID, storage.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

const userSelect = `
	SELECT id, email, password_hash, nickname, avatar_url, group_id, currency, locale, timezone, created_at, updated_at
	FROM users`

func scanUser(row pgx.Row) (core.User, error) {
	var (
		u       core.User
		groupID *int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.AvatarURL, &groupID,
		&u.Settings.Currency, &u.Settings.Locale, &u.Settings.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", mapErr(err))
	}
	u.GroupID = idPtr(groupID)
	return u, nil
}
