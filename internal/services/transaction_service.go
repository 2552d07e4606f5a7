package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// SyncPublisher queues export notifications. A nil publisher disables
// the export pipeline without affecting writes.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64) error
	PublishTransactionDelete(ctx context.Context, id int64) error
}

// TransactionService orchestrates transaction writes across the
// repository and the sync queue.
type TransactionService struct {
	store     storage.Repository
	publisher SyncPublisher
}

func NewTransactionService(store storage.Repository, publisher SyncPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// Create validates and stores a transaction on behalf of userID. The
// transaction inherits the user's group so housemates see it.
func (s *TransactionService) Create(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load acting user: %w", err)
	}
	t.OwnerUserID = user.ID
	t.GroupID = user.GroupID

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.store.GetCategory(ctx, t.CategoryID); err != nil {
		return core.Transaction{}, fmt.Errorf("category %d: %w", t.CategoryID, err)
	}

	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishSync(ctx, t.ID)
	return t, nil
}

// QuickAddInput is the minimal payload for one-line entry: a decimal
// amount string and a category by name.
type QuickAddInput struct {
	AmountText   string
	CategoryName string
	Type         core.TransactionType
	Date         core.Date
	Merchant     string
	Memo         string
}

// categoryPalette colors auto-created categories, cycling in order.
var categoryPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

// QuickAdd creates a transaction from a terse input, creating the
// named category on the fly when it does not exist yet.
func (s *TransactionService) QuickAdd(ctx context.Context, userID int64, in QuickAddInput) (core.Transaction, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load acting user: %w", err)
	}

	amount, err := core.ParseMoney(in.AmountText)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", in.AmountText, err)
	}
	if in.Type == "" {
		in.Type = core.Expense
	}
	if in.Date.IsZero() {
		in.Date = core.Today()
	}

	category, err := s.resolveCategory(ctx, user, in.CategoryName, in.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		GroupID:     user.GroupID,
		OwnerUserID: user.ID,
		Type:        in.Type,
		Date:        in.Date,
		Amount:      amount,
		CategoryID:  category.ID,
		Merchant:    in.Merchant,
		Memo:        in.Memo,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishSync(ctx, t.ID)
	return t, nil
}

func (s *TransactionService) resolveCategory(ctx context.Context, user core.User, name string, typ core.TransactionType) (core.Category, error) {
	if name == "" {
		return core.Category{}, core.ErrMissingCategory
	}
	groupID := int64(0)
	if user.GroupID != nil {
		groupID = *user.GroupID
	}

	category, err := s.store.GetCategoryByName(ctx, name, user.ID, groupID)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return core.Category{}, fmt.Errorf("look up category %q: %w", name, err)
	}

	existing, err := s.store.ListCategories(ctx, user.ID, groupID)
	if err != nil {
		return core.Category{}, fmt.Errorf("list categories: %w", err)
	}

	category = core.Category{
		GroupID:   user.GroupID,
		CreatedBy: user.ID,
		Name:      name,
		Type:      typ,
		Color:     categoryPalette[len(existing)%len(categoryPalette)],
	}
	if err := category.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, &category); err != nil {
		// A concurrent quick add may have created it first.
		if errors.Is(err, storage.ErrDuplicate) {
			return s.store.GetCategoryByName(ctx, name, user.ID, groupID)
		}
		return core.Category{}, fmt.Errorf("create category %q: %w", name, err)
	}

	slog.InfoContext(ctx, "Auto-created category for quick add",
		"name", name,
		"category_id", category.ID,
		"color", category.Color)
	return category, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

// Update rewrites an existing transaction and queues a sync.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	stored, err := s.store.GetTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	// Ownership and provenance are immutable.
	t.GroupID = stored.GroupID
	t.OwnerUserID = stored.OwnerUserID
	t.RuleID = stored.RuleID

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.publishSync(ctx, t.ID)
	return t, nil
}

// Delete removes a transaction and queues a delete notification.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishTransactionDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
		// The local delete already succeeded.
	}
	return nil
}

func (s *TransactionService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
		// The local write already succeeded.
	}
}
