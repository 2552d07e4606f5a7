package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

const minPasswordLength = 8

var (
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
)

// UserService handles account lifecycle and per-user settings.
type UserService struct {
	store storage.Repository
}

func NewUserService(store storage.Repository) *UserService {
	return &UserService{store: store}
}

// Register creates an account with a bcrypt password hash and the
// default Korean-locale settings.
func (s *UserService) Register(ctx context.Context, email, password, nickname string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return core.User{}, core.ErrEmptyEmail
	}
	if len(password) < minPasswordLength {
		return core.User{}, ErrWeakPassword
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = email[:strings.Index(email, "@")]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		Email:        email,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Settings:     core.DefaultSettings(),
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateProfile changes nickname and avatar, leaving everything else.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, nickname, avatarURL string) (core.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	if nickname = strings.TrimSpace(nickname); nickname != "" {
		u.Nickname = nickname
	}
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}
	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// UpdateSettings replaces the user's preferences. Empty fields keep
// their current value.
func (s *UserService) UpdateSettings(ctx context.Context, id int64, next core.Settings) (core.Settings, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return core.Settings{}, err
	}
	merged := u.Settings
	if next.Currency != "" {
		merged.Currency = next.Currency
	}
	if next.Locale != "" {
		merged.Locale = next.Locale
	}
	if next.Timezone != "" {
		merged.Timezone = next.Timezone
	}
	if err := s.store.UpdateSettings(ctx, id, merged); err != nil {
		return core.Settings{}, err
	}
	return merged, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.store.UpdateUser(ctx, &u)
}
