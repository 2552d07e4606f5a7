package core

import "github.com/shopspring/decimal"

// CategoryTotal is an amount aggregated over one category, with its
// share of the period total as a percentage.
type CategoryTotal struct {
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"name"`
	Color      string          `json:"color,omitempty"`
	Total      Money           `json:"total"`
	Share      decimal.Decimal `json:"share"`
}

// MonthlyTotal is the income/expense aggregate for one calendar month.
type MonthlyTotal struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"` // 1-12
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// Net returns income minus expense for the month.
func (m MonthlyTotal) Net() Money {
	return Money{Cents: m.Income.Cents - m.Expense.Cents}
}

// PeriodSummary is the aggregate for an arbitrary date range.
type PeriodSummary struct {
	From       Date            `json:"from"`
	To         Date            `json:"to"`
	Income     Money           `json:"income"`
	Expense    Money           `json:"expense"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// Balance is the all-time income minus expense position for a user
// or group.
type Balance struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Net     Money `json:"net"`
}

// ShareOf computes part/total as a percentage with two decimal places.
// A zero total yields a zero share.
func ShareOf(part, total Money) decimal.Decimal {
	if total.Cents == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part.Cents).
		Div(decimal.NewFromInt(total.Cents)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
