package services

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
	"github.com/garyjeong/household-ledger-server/internal/storage/memory"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Mina@Example.com ", "correct horse", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "mina@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.Nickname != "mina" {
		t.Fatalf("nickname not derived: %q", u.Nickname)
	}
	if u.PasswordHash == "correct horse" || u.PasswordHash == "" {
		t.Fatal("password stored in the clear")
	}
	if u.Settings.Currency != "KRW" {
		t.Fatalf("default settings missing: %+v", u.Settings)
	}

	got, err := svc.Authenticate(ctx, "mina@example.com", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("authenticated wrong user: %d", got.ID)
	}

	if _, err := svc.Authenticate(ctx, "mina@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "long enough", "x"); !errors.Is(err, core.ErrEmptyEmail) {
		t.Fatalf("bad email: got %v", err)
	}
	if _, err := svc.Register(ctx, "a@b.com", "short", "x"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: got %v", err)
	}

	if _, err := svc.Register(ctx, "dup@example.com", "long enough", "x"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "DUP@example.com", "long enough", "y"); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestUpdateSettingsMerges(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo)
	ctx := context.Background()

	u, err := svc.Register(ctx, "mina@example.com", "correct horse", "mina")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.UpdateSettings(ctx, u.ID, core.Settings{Currency: "USD"})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if got.Currency != "USD" || got.Locale != "ko-KR" || got.Timezone != "Asia/Seoul" {
		t.Fatalf("merge broke untouched fields: %+v", got)
	}
}

func TestChangePassword(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo)
	ctx := context.Background()

	u, err := svc.Register(ctx, "mina@example.com", "correct horse", "mina")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "brand new secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "correct horse", "brand new secret"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "mina@example.com", "brand new secret"); err != nil {
		t.Fatalf("authenticate after change: %v", err)
	}
}
