package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, nickname, avatar_url, group_id, currency, locale, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.Nickname, u.AvatarURL, nullID(u.GroupID),
		u.Settings.Currency, u.Settings.Locale, u.Settings.Timezone, now, now)
	if err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE email = ?`, email))
}

func (r *Repository) UpdateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email = ?, password_hash = ?, nickname = ?, avatar_url = ?, group_id = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.PasswordHash, u.Nickname, u.AvatarURL, nullID(u.GroupID), now, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update user %d: %w", u.ID, mapErr(sql.ErrNoRows))
	}
	u.UpdatedAt = now
	return nil
}

func (r *Repository) UpdateSettings(ctx context.Context, userID int64, s core.Settings) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET currency = ?, locale = ?, timezone = ?, updated_at = ?
		WHERE id = ?`,
		s.Currency, s.Locale, s.Timezone, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update settings for user %d: %w", userID, mapErr(sql.ErrNoRows))
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete user %d: %w", id, mapErr(sql.ErrNoRows))
	}
	return nil
}

const userSelect = `
	SELECT id, email, password_hash, nickname, avatar_url, group_id, currency, locale, timezone, created_at, updated_at
	FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanUser(row rowScanner) (core.User, error) {
	var (
		u       core.User
		groupID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.AvatarURL, &groupID,
		&u.Settings.Currency, &u.Settings.Locale, &u.Settings.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", mapErr(err))
	}
	u.GroupID = idPtr(groupID)
	return u, nil
}
