package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// Invite codes are short and unambiguous, no 0/O or 1/I.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	inviteCodeLength = 10
	inviteTTL        = 72 * time.Hour
)

var (
	ErrAlreadyInGroup = fmt.Errorf("user already belongs to a group")
	ErrNotInGroup     = fmt.Errorf("user does not belong to a group")
	ErrInviteExpired  = fmt.Errorf("invite code expired")
)

// GroupService manages shared households: creating a group, inviting
// members by code, joining and leaving.
type GroupService struct {
	store storage.Repository
}

func NewGroupService(store storage.Repository) *GroupService {
	return &GroupService{store: store}
}

// Create starts a new group owned by the user and moves them into it.
func (s *GroupService) Create(ctx context.Context, userID int64, name string) (core.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Group{}, core.ErrEmptyName
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.Group{}, fmt.Errorf("load acting user: %w", err)
	}
	if user.GroupID != nil {
		return core.Group{}, ErrAlreadyInGroup
	}

	g := core.Group{Name: name, OwnerID: user.ID}
	if err := s.store.CreateGroup(ctx, &g); err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	user.GroupID = &g.ID
	if err := s.store.UpdateUser(ctx, &user); err != nil {
		return core.Group{}, fmt.Errorf("attach owner to group: %w", err)
	}
	return g, nil
}

// Invite issues a fresh single-group invite code. Anyone with the code
// can join until it expires.
func (s *GroupService) Invite(ctx context.Context, userID int64) (core.GroupInvite, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.GroupInvite{}, fmt.Errorf("load acting user: %w", err)
	}
	if user.GroupID == nil {
		return core.GroupInvite{}, ErrNotInGroup
	}

	code, err := inviteCode()
	if err != nil {
		return core.GroupInvite{}, err
	}
	inv := core.GroupInvite{
		GroupID:   *user.GroupID,
		Code:      code,
		CreatedBy: user.ID,
		ExpiresAt: time.Now().UTC().Add(inviteTTL),
	}
	if err := s.store.CreateInvite(ctx, &inv); err != nil {
		return core.GroupInvite{}, fmt.Errorf("create invite: %w", err)
	}
	return inv, nil
}

// Join redeems an invite code and moves the user into its group.
func (s *GroupService) Join(ctx context.Context, userID int64, code string) (core.Group, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.Group{}, fmt.Errorf("load acting user: %w", err)
	}
	if user.GroupID != nil {
		return core.Group{}, ErrAlreadyInGroup
	}

	inv, err := s.store.GetInviteByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return core.Group{}, err
	}
	if time.Now().UTC().After(inv.ExpiresAt) {
		return core.Group{}, ErrInviteExpired
	}
	g, err := s.store.GetGroup(ctx, inv.GroupID)
	if err != nil {
		return core.Group{}, err
	}

	user.GroupID = &g.ID
	if err := s.store.UpdateUser(ctx, &user); err != nil {
		return core.Group{}, fmt.Errorf("attach user to group: %w", err)
	}
	return g, nil
}

// Leave detaches the user from their group. When the last member
// leaves, the group itself is removed.
func (s *GroupService) Leave(ctx context.Context, userID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load acting user: %w", err)
	}
	if user.GroupID == nil {
		return ErrNotInGroup
	}
	groupID := *user.GroupID

	user.GroupID = nil
	if err := s.store.UpdateUser(ctx, &user); err != nil {
		return fmt.Errorf("detach user from group: %w", err)
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		if err := s.store.DeleteGroup(ctx, groupID); err != nil {
			return fmt.Errorf("remove empty group: %w", err)
		}
	}
	return nil
}

// Members lists everyone in the acting user's group.
func (s *GroupService) Members(ctx context.Context, userID int64) ([]core.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load acting user: %w", err)
	}
	if user.GroupID == nil {
		return nil, ErrNotInGroup
	}
	return s.store.ListMembers(ctx, *user.GroupID)
}

func inviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}
