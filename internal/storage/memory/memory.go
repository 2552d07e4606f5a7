// Package memory implements storage.Repository with in-process maps.
// It backs tests and the throwaway "memory" backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

type Repository struct {
	mu sync.RWMutex

	users        map[int64]core.User
	groups       map[int64]core.Group
	invites      map[int64]core.GroupInvite
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	rules        map[int64]core.RecurringRule
	budgets      map[int64]core.Budget

	nextID int64
}

var _ storage.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		users:        make(map[int64]core.User),
		groups:       make(map[int64]core.Group),
		invites:      make(map[int64]core.GroupInvite),
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
		rules:        make(map[int64]core.RecurringRule),
		budgets:      make(map[int64]core.Budget),
	}
}

func (r *Repository) Close() error { return nil }

func (r *Repository) id() int64 {
	r.nextID++
	return r.nextID
}

// --- users ---

func (r *Repository) CreateUser(_ context.Context, u *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("create user: %w", storage.ErrDuplicate)
		}
	}
	u.ID = r.id()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = *u
	return nil
}

func (r *Repository) GetUser(_ context.Context, id int64) (core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user %d: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user by email: %w", storage.ErrNotFound)
}

func (r *Repository) UpdateUser(_ context.Context, u *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return fmt.Errorf("update user %d: %w", u.ID, storage.ErrNotFound)
	}
	u.CreatedAt = stored.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = *u
	return nil
}

func (r *Repository) UpdateSettings(_ context.Context, userID int64, s core.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("update settings for user %d: %w", userID, storage.ErrNotFound)
	}
	u.Settings = s
	u.UpdatedAt = time.Now().UTC()
	r.users[userID] = u
	return nil
}

func (r *Repository) DeleteUser(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("delete user %d: %w", id, storage.ErrNotFound)
	}
	delete(r.users, id)
	return nil
}

// --- groups ---

func (r *Repository) CreateGroup(_ context.Context, g *core.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.ID = r.id()
	g.CreatedAt = time.Now().UTC()
	r.groups[g.ID] = *g
	return nil
}

func (r *Repository) GetGroup(_ context.Context, id int64) (core.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return core.Group{}, fmt.Errorf("get group %d: %w", id, storage.ErrNotFound)
	}
	return g, nil
}

func (r *Repository) DeleteGroup(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[id]; !ok {
		return fmt.Errorf("delete group %d: %w", id, storage.ErrNotFound)
	}
	delete(r.groups, id)
	for uid, u := range r.users {
		if u.GroupID != nil && *u.GroupID == id {
			u.GroupID = nil
			r.users[uid] = u
		}
	}
	return nil
}

func (r *Repository) ListMembers(_ context.Context, groupID int64) ([]core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var members []core.User
	for _, u := range r.users {
		if u.GroupID != nil && *u.GroupID == groupID {
			members = append(members, u)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *Repository) CreateInvite(_ context.Context, inv *core.GroupInvite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invites {
		if existing.Code == inv.Code {
			return fmt.Errorf("create invite: %w", storage.ErrDuplicate)
		}
	}
	inv.ID = r.id()
	inv.CreatedAt = time.Now().UTC()
	r.invites[inv.ID] = *inv
	return nil
}

func (r *Repository) GetInviteByCode(_ context.Context, code string) (core.GroupInvite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invites {
		if inv.Code == code {
			return inv, nil
		}
	}
	return core.GroupInvite{}, fmt.Errorf("get invite: %w", storage.ErrNotFound)
}

func (r *Repository) DeleteInvite(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.invites, id)
	return nil
}

// --- categories ---

func (r *Repository) CreateCategory(_ context.Context, c *core.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.categories {
		if existing.Name != c.Name || existing.Type != c.Type {
			continue
		}
		if c.GroupID != nil {
			if existing.GroupID != nil && *existing.GroupID == *c.GroupID {
				return fmt.Errorf("create category: %w", storage.ErrDuplicate)
			}
		} else if existing.GroupID == nil && existing.CreatedBy == c.CreatedBy {
			return fmt.Errorf("create category: %w", storage.ErrDuplicate)
		}
	}
	c.ID = r.id()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.categories[c.ID] = *c
	return nil
}

func (r *Repository) GetCategory(_ context.Context, id int64) (core.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (r *Repository) GetCategoryByName(_ context.Context, name string, userID, groupID int64) (core.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.Name != name {
			continue
		}
		if groupID != 0 {
			if c.GroupID != nil && *c.GroupID == groupID {
				return c, nil
			}
		} else if c.GroupID == nil && c.CreatedBy == userID {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("get category by name: %w", storage.ErrNotFound)
}

func (r *Repository) ListCategories(_ context.Context, userID, groupID int64) ([]core.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Category
	for _, c := range r.categories {
		switch {
		case groupID != 0 && c.GroupID != nil && *c.GroupID == groupID:
			out = append(out, c)
		case c.GroupID == nil && c.CreatedBy == userID:
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Repository) UpdateCategory(_ context.Context, c *core.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.categories[c.ID]
	if !ok {
		return fmt.Errorf("update category %d: %w", c.ID, storage.ErrNotFound)
	}
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	r.categories[c.ID] = *c
	return nil
}

func (r *Repository) DeleteCategory(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return fmt.Errorf("delete category %d: %w", id, storage.ErrNotFound)
	}
	delete(r.categories, id)
	return nil
}

// --- transactions ---

func (r *Repository) CreateTransaction(_ context.Context, t *core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.id()
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	r.transactions[t.ID] = *t
	return nil
}

func (r *Repository) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

func (r *Repository) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.filterTransactions(f)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repository) UpdateTransaction(_ context.Context, t *core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transactions[t.ID]
	if !ok {
		return fmt.Errorf("update transaction %d: %w", t.ID, storage.ErrNotFound)
	}
	t.CreatedAt = stored.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	r.transactions[t.ID] = *t
	return nil
}

func (r *Repository) DeleteTransaction(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[id]; !ok {
		return fmt.Errorf("delete transaction %d: %w", id, storage.ErrNotFound)
	}
	delete(r.transactions, id)
	return nil
}

func (r *Repository) filterTransactions(f storage.TransactionFilter) []core.Transaction {
	var out []core.Transaction
	for _, t := range r.transactions {
		if f.GroupID != 0 {
			if t.GroupID == nil || *t.GroupID != f.GroupID {
				continue
			}
		} else if f.OwnerUserID != 0 && t.OwnerUserID != f.OwnerUserID {
			continue
		}
		if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.Date.After(f.To) {
			continue
		}
		if f.RuleID != 0 {
			if t.RuleID == nil || *t.RuleID != f.RuleID {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// --- recurring rules ---

func (r *Repository) CreateRule(_ context.Context, rule *core.RecurringRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.ID = r.id()
	rule.CreatedAt = time.Now().UTC()
	rule.UpdatedAt = rule.CreatedAt
	r.rules[rule.ID] = *rule
	return nil
}

func (r *Repository) GetRule(_ context.Context, id int64) (core.RecurringRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return core.RecurringRule{}, fmt.Errorf("get rule %d: %w", id, storage.ErrNotFound)
	}
	return rule, nil
}

func (r *Repository) ListRules(_ context.Context, f storage.RuleFilter) ([]core.RecurringRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.RecurringRule
	for _, rule := range r.rules {
		if f.GroupID != 0 {
			if rule.GroupID == nil || *rule.GroupID != f.GroupID {
				continue
			}
		} else if f.OwnerUserID != 0 {
			if rule.GroupID != nil || rule.CreatedBy != f.OwnerUserID {
				continue
			}
		}
		if f.ActiveOnly && !rule.IsActive {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) ListActiveRules(_ context.Context) ([]core.RecurringRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.RecurringRule
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) UpdateRule(_ context.Context, rule *core.RecurringRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rules[rule.ID]
	if !ok {
		return fmt.Errorf("update rule %d: %w", rule.ID, storage.ErrNotFound)
	}
	rule.CreatedAt = stored.CreatedAt
	rule.LastGeneratedThrough = stored.LastGeneratedThrough
	rule.UpdatedAt = time.Now().UTC()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *Repository) DeleteRule(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return fmt.Errorf("delete rule %d: %w", id, storage.ErrNotFound)
	}
	delete(r.rules, id)
	return nil
}

func (r *Repository) MaterializeOccurrence(_ context.Context, ruleID int64, t *core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[ruleID]
	if !ok {
		return fmt.Errorf("materialize for rule %d: %w", ruleID, storage.ErrNotFound)
	}
	if !rule.IsActive {
		return fmt.Errorf("materialize for rule %d: %w", ruleID, storage.ErrCursorConflict)
	}
	if !rule.LastGeneratedThrough.IsZero() && !rule.LastGeneratedThrough.Before(t.Date) {
		return fmt.Errorf("materialize for rule %d: %w", ruleID, storage.ErrCursorConflict)
	}

	now := time.Now().UTC()
	rule.LastGeneratedThrough = t.Date
	rule.UpdatedAt = now
	r.rules[ruleID] = rule

	t.ID = r.id()
	t.RuleID = &ruleID
	t.CreatedAt = now
	t.UpdatedAt = now
	r.transactions[t.ID] = *t
	return nil
}

// --- budgets ---

func (r *Repository) UpsertBudget(_ context.Context, b *core.Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.Status == "" {
		b.Status = core.BudgetActive
	}
	now := time.Now().UTC()
	for id, existing := range r.budgets {
		if existing.OwnerType == b.OwnerType && existing.OwnerID == b.OwnerID && existing.Period == b.Period {
			b.ID = id
			b.CreatedAt = existing.CreatedAt
			b.UpdatedAt = now
			r.budgets[id] = *b
			return nil
		}
	}
	b.ID = r.id()
	b.CreatedAt = now
	b.UpdatedAt = now
	r.budgets[b.ID] = *b
	return nil
}

func (r *Repository) GetBudget(_ context.Context, ownerType core.OwnerType, ownerID int64, period string) (core.Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.budgets {
		if b.OwnerType == ownerType && b.OwnerID == ownerID && b.Period == period {
			return b, nil
		}
	}
	return core.Budget{}, fmt.Errorf("get budget: %w", storage.ErrNotFound)
}

func (r *Repository) ListBudgets(_ context.Context, ownerType core.OwnerType, ownerID int64) ([]core.Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Budget
	for _, b := range r.budgets {
		if b.OwnerType == ownerType && b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (r *Repository) DeleteBudget(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.budgets[id]; !ok {
		return fmt.Errorf("delete budget %d: %w", id, storage.ErrNotFound)
	}
	delete(r.budgets, id)
	return nil
}

// --- statistics ---

func (r *Repository) SumByCategory(_ context.Context, f storage.TransactionFilter) ([]core.CategoryTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sums := make(map[int64]int64)
	for _, t := range r.filterTransactions(f) {
		sums[t.CategoryID] += t.Amount.Cents
	}

	var (
		out   []core.CategoryTotal
		total int64
	)
	for catID, cents := range sums {
		ct := core.CategoryTotal{CategoryID: catID, Total: core.Money{Cents: cents}}
		if c, ok := r.categories[catID]; ok {
			ct.Name = c.Name
			ct.Color = c.Color
		}
		total += cents
		out = append(out, ct)
	}
	for i := range out {
		out[i].Share = core.ShareOf(out[i].Total, core.Money{Cents: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.Cents > out[j].Total.Cents })
	return out, nil
}

func (r *Repository) SumByMonth(_ context.Context, f storage.TransactionFilter) ([]core.MonthlyTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type ym struct{ year, month int }
	sums := make(map[ym]*core.MonthlyTotal)
	for _, t := range r.filterTransactions(f) {
		key := ym{t.Date.Year(), t.Date.Month()}
		mt, ok := sums[key]
		if !ok {
			mt = &core.MonthlyTotal{Year: key.year, Month: key.month}
			sums[key] = mt
		}
		switch t.Type {
		case core.Income:
			mt.Income.Cents += t.Amount.Cents
		case core.Expense:
			mt.Expense.Cents += t.Amount.Cents
		}
	}

	var out []core.MonthlyTotal
	for _, mt := range sums {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (r *Repository) SumTotals(_ context.Context, f storage.TransactionFilter) (core.Money, core.Money, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var income, expense core.Money
	for _, t := range r.filterTransactions(f) {
		switch t.Type {
		case core.Income:
			income.Cents += t.Amount.Cents
		case core.Expense:
			expense.Cents += t.Amount.Cents
		}
	}
	return income, expense, nil
}
