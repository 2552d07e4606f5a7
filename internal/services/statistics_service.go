package services

import (
	"context"
	"fmt"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// Named reporting periods accepted by the statistics endpoints, plus
// explicit "YYYY-MM" values.
const (
	PeriodCurrentMonth = "current-month"
	PeriodLastMonth    = "last-month"
	PeriodLast3Months  = "last-3-months"
	PeriodLast6Months  = "last-6-months"
	PeriodYear         = "year"
)

// ErrUnknownPeriod is returned for period strings that are neither a
// known name nor YYYY-MM.
var ErrUnknownPeriod = fmt.Errorf("unknown period")

// StatisticsService aggregates transactions for reports and the
// dashboard. All aggregation happens in the repository; this layer
// resolves period names and owner scope.
type StatisticsService struct {
	store storage.Repository
}

func NewStatisticsService(store storage.Repository) *StatisticsService {
	return &StatisticsService{store: store}
}

// ResolvePeriod translates a period string into an inclusive date
// range relative to today.
func ResolvePeriod(period string, today core.Date) (core.Date, core.Date, error) {
	y, m := today.Year(), today.Month()
	switch period {
	case PeriodCurrentMonth, "":
		return monthRange(y, m, 0)
	case PeriodLastMonth:
		return monthRange(y, m, -1)
	case PeriodLast3Months:
		from, _, err := monthRange(y, m, -2)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		_, to, err := monthRange(y, m, 0)
		return from, to, err
	case PeriodLast6Months:
		from, _, err := monthRange(y, m, -5)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		_, to, err := monthRange(y, m, 0)
		return from, to, err
	case PeriodYear:
		return core.NewDate(y, 1, 1), core.NewDate(y, 12, 31), nil
	}
	// Explicit YYYY-MM.
	if err := core.ValidatePeriod(period); err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	first, err := core.ParseDate(period + "-01")
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	return monthRange(first.Year(), first.Month(), 0)
}

// monthRange returns the first and last day of the month `offset`
// months away from year/month.
func monthRange(year, month, offset int) (core.Date, core.Date, error) {
	m := month - 1 + offset
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	first := core.NewDate(year, m+1, 1)
	last := first.AddDays(daysInMonth(year, m+1) - 1)
	return first, last, nil
}

func daysInMonth(year, month int) int {
	next := core.NewDate(year, month, 28).AddDays(4)
	return 28 + 4 - next.Day()
}

// ownerFilter scopes a filter to the user's group when they have one,
// otherwise to the user alone.
func (s *StatisticsService) ownerFilter(ctx context.Context, userID int64) (storage.TransactionFilter, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return storage.TransactionFilter{}, fmt.Errorf("load acting user: %w", err)
	}
	f := storage.TransactionFilter{OwnerUserID: user.ID}
	if user.GroupID != nil {
		f.GroupID = *user.GroupID
	}
	return f, nil
}

// CategoryBreakdown sums expenses (or income) per category over the
// period, with each category's percentage share.
func (s *StatisticsService) CategoryBreakdown(ctx context.Context, userID int64, period string, typ core.TransactionType) (core.PeriodSummary, error) {
	f, err := s.ownerFilter(ctx, userID)
	if err != nil {
		return core.PeriodSummary{}, err
	}
	from, to, err := ResolvePeriod(period, core.Today())
	if err != nil {
		return core.PeriodSummary{}, err
	}
	f.From, f.To = from, to

	income, expense, err := s.store.SumTotals(ctx, f)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	if typ == "" {
		typ = core.Expense
	}
	f.Type = typ
	byCategory, err := s.store.SumByCategory(ctx, f)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	return core.PeriodSummary{
		From:       from,
		To:         to,
		Income:     income,
		Expense:    expense,
		ByCategory: byCategory,
	}, nil
}

// MonthlyTrend returns per-month income/expense totals over the last
// `months` months, including the current one.
func (s *StatisticsService) MonthlyTrend(ctx context.Context, userID int64, months int) ([]core.MonthlyTotal, error) {
	if months < 1 {
		months = 6
	}
	f, err := s.ownerFilter(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := core.Today()
	from, _, err := monthRange(today.Year(), today.Month(), -(months - 1))
	if err != nil {
		return nil, err
	}
	_, to, err := monthRange(today.Year(), today.Month(), 0)
	if err != nil {
		return nil, err
	}
	f.From, f.To = from, to
	return s.store.SumByMonth(ctx, f)
}

// Balance is the all-time net position for the user's scope.
func (s *StatisticsService) Balance(ctx context.Context, userID int64) (core.Balance, error) {
	f, err := s.ownerFilter(ctx, userID)
	if err != nil {
		return core.Balance{}, err
	}
	income, expense, err := s.store.SumTotals(ctx, f)
	if err != nil {
		return core.Balance{}, err
	}
	return core.Balance{
		Income:  income,
		Expense: expense,
		Net:     core.Money{Cents: income.Cents - expense.Cents},
	}, nil
}

// Dashboard is the landing-page aggregate: current month summary plus
// a six month trend and the overall balance.
type Dashboard struct {
	Month   core.PeriodSummary  `json:"month"`
	Trend   []core.MonthlyTotal `json:"trend"`
	Balance core.Balance        `json:"balance"`
}

func (s *StatisticsService) Dashboard(ctx context.Context, userID int64) (Dashboard, error) {
	month, err := s.CategoryBreakdown(ctx, userID, PeriodCurrentMonth, core.Expense)
	if err != nil {
		return Dashboard{}, err
	}
	trend, err := s.MonthlyTrend(ctx, userID, 6)
	if err != nil {
		return Dashboard{}, err
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Month: month, Trend: trend, Balance: balance}, nil
}
