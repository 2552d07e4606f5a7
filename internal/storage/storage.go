// Package storage defines the persistence contracts shared by the
// sqlite, postgres and memory backends.
package storage

import (
	"context"
	"errors"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned on unique-constraint violations, such
	// as registering an email twice or redeeming a spent invite code.
	ErrDuplicate = errors.New("already exists")

	// ErrCursorConflict is returned by MaterializeOccurrence when the
	// rule's generation cursor moved past the occurrence date between
	// read and write. The caller refetches the rule and retries.
	ErrCursorConflict = errors.New("generation cursor conflict")
)

// TransactionFilter narrows List queries. Zero fields are ignored.
type TransactionFilter struct {
	OwnerUserID int64
	GroupID     int64
	CategoryID  int64
	Type        core.TransactionType
	From        core.Date
	To          core.Date
	RuleID      int64
	Limit       int
	Offset      int
}

// RuleFilter narrows recurring-rule listings.
type RuleFilter struct {
	OwnerUserID int64
	GroupID     int64
	ActiveOnly  bool
}

type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUser(ctx context.Context, u *core.User) error
	UpdateSettings(ctx context.Context, userID int64, s core.Settings) error
	DeleteUser(ctx context.Context, id int64) error
}

type GroupStore interface {
	CreateGroup(ctx context.Context, g *core.Group) error
	GetGroup(ctx context.Context, id int64) (core.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	ListMembers(ctx context.Context, groupID int64) ([]core.User, error)

	CreateInvite(ctx context.Context, inv *core.GroupInvite) error
	GetInviteByCode(ctx context.Context, code string) (core.GroupInvite, error)
	DeleteInvite(ctx context.Context, id int64) error
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	// GetCategoryByName looks a category up within an owner scope: the
	// group when groupID is non-zero, otherwise the user's personal set.
	GetCategoryByName(ctx context.Context, name string, userID, groupID int64) (core.Category, error)
	ListCategories(ctx context.Context, userID, groupID int64) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
}

type RuleStore interface {
	CreateRule(ctx context.Context, r *core.RecurringRule) error
	GetRule(ctx context.Context, id int64) (core.RecurringRule, error)
	ListRules(ctx context.Context, f RuleFilter) ([]core.RecurringRule, error)
	// ListActiveRules returns every active rule across all owners; the
	// materialization engine iterates this set.
	ListActiveRules(ctx context.Context) ([]core.RecurringRule, error)
	UpdateRule(ctx context.Context, r *core.RecurringRule) error
	DeleteRule(ctx context.Context, id int64) error

	// MaterializeOccurrence atomically inserts the transaction and
	// advances the rule's cursor to the transaction date, in one unit.
	// The cursor write is guarded: if the stored cursor is already at or
	// past the transaction date, nothing is written and
	// ErrCursorConflict is returned. Assigns t.ID on success.
	MaterializeOccurrence(ctx context.Context, ruleID int64, t *core.Transaction) error
}

type BudgetStore interface {
	// UpsertBudget inserts or, when a budget for the same owner and
	// period exists, replaces its amount and status.
	UpsertBudget(ctx context.Context, b *core.Budget) error
	GetBudget(ctx context.Context, ownerType core.OwnerType, ownerID int64, period string) (core.Budget, error)
	ListBudgets(ctx context.Context, ownerType core.OwnerType, ownerID int64) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, id int64) error
}

// StatisticsReader aggregates transactions server-side.
type StatisticsReader interface {
	SumByCategory(ctx context.Context, f TransactionFilter) ([]core.CategoryTotal, error)
	SumByMonth(ctx context.Context, f TransactionFilter) ([]core.MonthlyTotal, error)
	SumTotals(ctx context.Context, f TransactionFilter) (income, expense core.Money, err error)
}

// Repository is the full persistence surface a backend provides.
type Repository interface {
	UserStore
	GroupStore
	CategoryStore
	TransactionStore
	RuleStore
	BudgetStore
	StatisticsReader

	Close() error
}
