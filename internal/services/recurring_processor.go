package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/schedule"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// ErrNotDue is returned by GenerateOne when the rule has no pending
// occurrence at the given date.
var ErrNotDue = errors.New("rule has no pending occurrence")

// errOccurrenceCovered marks a conflict where a concurrent generator
// already wrote the occurrence; the date is simply skipped. It still
// matches storage.ErrCursorConflict for callers that map error kinds.
var errOccurrenceCovered = fmt.Errorf("occurrence already covered: %w", storage.ErrCursorConflict)

// cursorRetries bounds how often a rule is refetched and retried after
// a generation-cursor conflict before it is reported as failed.
const cursorRetries = 3

// ProcessorStore is the slice of the repository the processor needs.
type ProcessorStore interface {
	ListActiveRules(ctx context.Context) ([]core.RecurringRule, error)
	GetRule(ctx context.Context, id int64) (core.RecurringRule, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	MaterializeOccurrence(ctx context.Context, ruleID int64, t *core.Transaction) error
}

// RuleFailure records why a single rule could not be processed.
type RuleFailure struct {
	RuleID int64  `json:"rule_id"`
	Reason string `json:"reason"`
}

// CreatedTransaction identifies one transaction written during a
// processing cycle.
type CreatedTransaction struct {
	TransactionID int64     `json:"transaction_id"`
	RuleID        int64     `json:"rule_id"`
	Date          core.Date `json:"date"`
}

// ProcessingReport summarizes one processing cycle.
type ProcessingReport struct {
	Total        int                  `json:"total_rules"`
	Created      int                  `json:"created"`
	Skipped      int                  `json:"skipped"`
	Transactions []CreatedTransaction `json:"transactions,omitempty"`
	Failed       []RuleFailure        `json:"failed,omitempty"`
}

// RecurringProcessor materializes due transactions from recurring
// rules. Each rule is an independent unit of work: one broken rule
// never blocks the rest of the cycle.
type RecurringProcessor struct {
	store       ProcessorStore
	parallelism int
}

// NewRecurringProcessor creates a processor that handles up to
// parallelism rules concurrently. parallelism < 1 means sequential.
func NewRecurringProcessor(store ProcessorStore, parallelism int) *RecurringProcessor {
	if parallelism < 1 {
		parallelism = 1
	}
	return &RecurringProcessor{store: store, parallelism: parallelism}
}

// Process generates every transaction due up to and including asOf,
// across all active rules. Rules already up to date contribute
// nothing and are not an error. The returned report is complete even
// when some rules failed; the error is non-nil only when the rule
// listing itself failed or the context was cancelled.
func (p *RecurringProcessor) Process(ctx context.Context, asOf core.Date) (ProcessingReport, error) {
	rules, err := p.store.ListActiveRules(ctx)
	if err != nil {
		return ProcessingReport{}, fmt.Errorf("list active rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"total_active", len(rules),
		"as_of", asOf.String())

	report := ProcessingReport{Total: len(rules)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for _, rule := range rules {
		// Cancellation is honored between rules, never inside a
		// rule's atomic insert+cursor unit.
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			created, failure := p.processRule(gctx, rule, asOf)

			mu.Lock()
			defer mu.Unlock()
			report.Created += len(created)
			report.Transactions = append(report.Transactions, created...)
			if failure != nil {
				report.Failed = append(report.Failed, *failure)
			} else if len(created) == 0 {
				report.Skipped++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	sort.Slice(report.Transactions, func(i, j int) bool {
		a, b := report.Transactions[i], report.Transactions[j]
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Date.Before(b.Date)
	})
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].RuleID < report.Failed[j].RuleID
	})

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"total_checked", report.Total,
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", len(report.Failed))

	return report, nil
}

// processRule generates every pending occurrence for one rule. It
// returns the transactions created and, when the rule could not be
// fully processed, a failure record.
func (p *RecurringProcessor) processRule(ctx context.Context, rule core.RecurringRule, asOf core.Date) ([]CreatedTransaction, *RuleFailure) {
	if err := p.validateRule(ctx, rule); err != nil {
		slog.WarnContext(ctx, "Skipping invalid recurring rule",
			"rule_id", rule.ID,
			"error", err)
		return nil, &RuleFailure{RuleID: rule.ID, Reason: err.Error()}
	}

	sched, err := schedule.FromRule(rule)
	if err != nil {
		return nil, &RuleFailure{RuleID: rule.ID, Reason: err.Error()}
	}

	var created []CreatedTransaction
	for due := range sched.Due(rule.LastGeneratedThrough, asOf) {
		tx, err := p.materialize(ctx, rule, due)
		if err != nil {
			if errors.Is(err, errOccurrenceCovered) {
				continue
			}
			if errors.Is(err, storage.ErrNotFound) {
				// Rule was deleted between listing and generation.
				slog.DebugContext(ctx, "Recurring rule vanished mid-processing",
					"rule_id", rule.ID,
					"occurred_on", due.String())
				return created, nil
			}
			slog.ErrorContext(ctx, "Failed to materialize occurrence",
				"rule_id", rule.ID,
				"occurred_on", due.String(),
				"error", err)
			return created, &RuleFailure{RuleID: rule.ID, Reason: err.Error()}
		}
		created = append(created, CreatedTransaction{
			TransactionID: tx.ID,
			RuleID:        rule.ID,
			Date:          due,
		})
		slog.InfoContext(ctx, "Created transaction from recurring rule",
			"rule_id", rule.ID,
			"transaction_id", tx.ID,
			"occurred_on", due.String(),
			"amount_cents", tx.Amount.Cents)
	}
	return created, nil
}

// materialize writes one occurrence, retrying after cursor conflicts.
// After a conflict the rule is refetched: if its cursor already covers
// the occurrence date, the conflict is final and bubbles up for the
// caller to skip.
func (p *RecurringProcessor) materialize(ctx context.Context, rule core.RecurringRule, due core.Date) (core.Transaction, error) {
	tx := transactionFromRule(rule, due)

	var err error
	for attempt := 0; attempt < cursorRetries; attempt++ {
		err = p.store.MaterializeOccurrence(ctx, rule.ID, &tx)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, storage.ErrCursorConflict) {
			return core.Transaction{}, err
		}

		fresh, getErr := p.store.GetRule(ctx, rule.ID)
		if getErr != nil {
			return core.Transaction{}, fmt.Errorf("refetch rule after conflict: %w", getErr)
		}
		if !fresh.LastGeneratedThrough.IsZero() && !fresh.LastGeneratedThrough.Before(due) {
			return core.Transaction{}, fmt.Errorf("rule %d at %s: %w", rule.ID, due, errOccurrenceCovered)
		}
		rule = fresh
	}
	return core.Transaction{}, fmt.Errorf("rule %d at %s after %d attempts: %w", rule.ID, due, cursorRetries, err)
}

// GenerateOne materializes the single next pending occurrence of one
// rule, up to asOf. It returns ErrNotDue when nothing is pending and
// storage.ErrNotFound when the rule does not exist.
func (p *RecurringProcessor) GenerateOne(ctx context.Context, ruleID int64, asOf core.Date) (core.Transaction, error) {
	rule, err := p.store.GetRule(ctx, ruleID)
	if err != nil {
		return core.Transaction{}, err
	}
	if !rule.IsActive {
		return core.Transaction{}, fmt.Errorf("rule %d is inactive: %w", ruleID, ErrNotDue)
	}
	if err := p.validateRule(ctx, rule); err != nil {
		return core.Transaction{}, err
	}

	sched, err := schedule.FromRule(rule)
	if err != nil {
		return core.Transaction{}, err
	}

	for due := range sched.Due(rule.LastGeneratedThrough, asOf) {
		return p.materialize(ctx, rule, due)
	}
	return core.Transaction{}, fmt.Errorf("rule %d: %w", ruleID, ErrNotDue)
}

// validateRule re-checks the rule at generation time: the template
// must still be valid, its category must still exist with a matching
// type, and the category must still be visible to the rule's owner.
func (p *RecurringProcessor) validateRule(ctx context.Context, rule core.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	category, err := p.store.GetCategory(ctx, rule.Template.CategoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("category %d no longer exists: %w", rule.Template.CategoryID, err)
		}
		return fmt.Errorf("check category %d: %w", rule.Template.CategoryID, err)
	}
	if category.Type != rule.Template.Type {
		return fmt.Errorf("category %d is %s, rule generates %s", category.ID, category.Type, rule.Template.Type)
	}
	if rule.GroupID != nil {
		if category.GroupID == nil || *category.GroupID != *rule.GroupID {
			return fmt.Errorf("category %d does not belong to group %d", category.ID, *rule.GroupID)
		}
		creator, err := p.store.GetUser(ctx, rule.CreatedBy)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("creator %d no longer exists: %w", rule.CreatedBy, err)
			}
			return fmt.Errorf("check creator %d: %w", rule.CreatedBy, err)
		}
		if creator.GroupID == nil || *creator.GroupID != *rule.GroupID {
			return fmt.Errorf("creator %d is not a member of group %d", rule.CreatedBy, *rule.GroupID)
		}
	} else if category.GroupID != nil || category.CreatedBy != rule.CreatedBy {
		return fmt.Errorf("category %d is not owned by user %d", category.ID, rule.CreatedBy)
	}
	return nil
}

func transactionFromRule(rule core.RecurringRule, due core.Date) core.Transaction {
	return core.Transaction{
		GroupID:     rule.GroupID,
		OwnerUserID: rule.CreatedBy,
		Type:        rule.Template.Type,
		Date:        due,
		Amount:      rule.Template.Amount,
		CategoryID:  rule.Template.CategoryID,
		Merchant:    rule.Template.Merchant,
		Memo:        rule.Template.Memo,
	}
}
