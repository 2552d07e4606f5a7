package core

import (
	"errors"
	"testing"
)

func validTemplate() TransactionTemplate {
	return TransactionTemplate{
		Type:       Expense,
		Amount:     Money{Cents: 5000000},
		CategoryID: 1,
		Merchant:   "Landlord",
		Memo:       "rent",
	}
}

func validRule() RecurringRule {
	return RecurringRule{
		CreatedBy: 1,
		Template:  validTemplate(),
		Freq:      Frequency{Unit: Monthly, Interval: 1},
		StartDate: NewDate(2024, 1, 15),
		IsActive:  true,
	}
}

func TestFrequencyValidate(t *testing.T) {
	cases := []struct {
		freq Frequency
		want error
	}{
		{Frequency{Unit: Daily, Interval: 1}, nil},
		{Frequency{Unit: Weekly, Interval: 2}, nil},
		{Frequency{Unit: Monthly, Interval: 12}, nil},
		{Frequency{Unit: Yearly, Interval: 1}, nil},
		{Frequency{Unit: "fortnightly", Interval: 1}, ErrInvalidUnit},
		{Frequency{Unit: Monthly, Interval: 0}, ErrInvalidInterval},
		{Frequency{Unit: Monthly, Interval: -3}, ErrInvalidInterval},
	}
	for i, tc := range cases {
		if err := tc.freq.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestTemplateValidate(t *testing.T) {
	if err := validTemplate().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TransactionTemplate)
		want   error
	}{
		{"transfer type", func(tt *TransactionTemplate) { tt.Type = Transfer }, ErrInvalidType},
		{"unknown type", func(tt *TransactionTemplate) { tt.Type = "REFUND" }, ErrInvalidType},
		{"zero amount", func(tt *TransactionTemplate) { tt.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tt *TransactionTemplate) { tt.Amount = Money{Cents: -100} }, ErrInvalidAmount},
		{"missing category", func(tt *TransactionTemplate) { tt.CategoryID = 0 }, ErrMissingCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := validTemplate()
			tc.mutate(&tmpl)
			if err := tmpl.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	if err := validRule().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noStart := validRule()
	noStart.StartDate = Date{}
	if err := noStart.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for missing start date, got %v", err)
	}

	inverted := validRule()
	inverted.EndDate = NewDate(2023, 12, 31)
	if err := inverted.Validate(); !errors.Is(err, ErrEndBeforeStart) {
		t.Fatalf("expected ErrEndBeforeStart, got %v", err)
	}

	sameDay := validRule()
	sameDay.EndDate = sameDay.StartDate
	if err := sameDay.Validate(); err != nil {
		t.Fatalf("end date equal to start must be allowed, got %v", err)
	}

	badFreq := validRule()
	badFreq.Freq.Interval = 0
	if err := badFreq.Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		OwnerUserID: 1,
		Type:        Expense,
		Date:        NewDate(2024, 1, 15),
		Amount:      Money{Cents: 5000000},
		CategoryID:  1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{OwnerUserID: 1, Type: "BOGUS", Date: NewDate(2024, 1, 15), Amount: Money{Cents: 1}, CategoryID: 1},
		{OwnerUserID: 1, Type: Expense, Amount: Money{Cents: 1}, CategoryID: 1}, // zero date
		{OwnerUserID: 1, Type: Expense, Date: NewDate(2024, 1, 15), CategoryID: 1},
		{OwnerUserID: 1, Type: Expense, Date: NewDate(2024, 1, 15), Amount: Money{Cents: 1}},
		{Type: Expense, Date: NewDate(2024, 1, 15), Amount: Money{Cents: 1}, CategoryID: 1}, // no owner
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		OwnerType:   OwnerUser,
		OwnerID:     1,
		Period:      "2024-03",
		TotalAmount: Money{Cents: 100000000},
		Status:      BudgetActive,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Budget)
		want   error
	}{
		{"bad owner type", func(b *Budget) { b.OwnerType = "TEAM" }, ErrInvalidOwnerType},
		{"bad period month", func(b *Budget) { b.Period = "2024-13" }, ErrInvalidPeriod},
		{"period with day", func(b *Budget) { b.Period = "2024-03-01" }, ErrInvalidPeriod},
		{"short year", func(b *Budget) { b.Period = "24-03" }, ErrInvalidPeriod},
		{"zero amount", func(b *Budget) { b.TotalAmount = Money{} }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := good
			tc.mutate(&b)
			if err := b.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{CreatedBy: 1, Name: "식비", Type: Expense, Color: "#FF6B6B"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "  ", Type: Expense}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName for blank name")
	}
	if err := (Category{Name: "ok", Type: Transfer}).Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType for transfer category")
	}
}

func TestUserValidate(t *testing.T) {
	good := User{Email: "mina@example.com", Nickname: "mina"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (User{Email: "", Nickname: "x"}).Validate(); !errors.Is(err, ErrEmptyEmail) {
		t.Fatalf("expected ErrEmptyEmail")
	}
	if err := (User{Email: "not-an-email", Nickname: "x"}).Validate(); err == nil {
		t.Fatalf("expected error for malformed email")
	}
	if err := (User{Email: "a@b.c", Nickname: ""}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName for blank nickname")
	}
}

func TestShareOf(t *testing.T) {
	share := ShareOf(Money{Cents: 2500}, Money{Cents: 10000})
	if share.String() != "25" {
		t.Fatalf("expected 25, got %s", share)
	}
	share = ShareOf(Money{Cents: 1}, Money{Cents: 3})
	if share.String() != "33.33" {
		t.Fatalf("expected 33.33, got %s", share)
	}
	if !ShareOf(Money{Cents: 500}, Money{}).IsZero() {
		t.Fatalf("zero total must yield zero share")
	}
}
