package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Transaction types.
const (
	Expense  TransactionType = "EXPENSE"
	Income   TransactionType = "INCOME"
	Transfer TransactionType = "TRANSFER"
)

// Recurrence frequency units.
const (
	Daily   FrequencyUnit = "daily"
	Weekly  FrequencyUnit = "weekly"
	Monthly FrequencyUnit = "monthly"
	Yearly  FrequencyUnit = "yearly"
)

// Budget owner types.
const (
	OwnerUser  OwnerType = "USER"
	OwnerGroup OwnerType = "GROUP"
)

// Budget statuses.
const (
	BudgetActive BudgetStatus = "ACTIVE"
	BudgetClosed BudgetStatus = "CLOSED"
	BudgetDraft  BudgetStatus = "DRAFT"
)

type (
	TransactionType string
	FrequencyUnit   string
	OwnerType       string
	BudgetStatus    string

	// Frequency describes how often a recurring rule fires: every
	// Interval days/weeks/months/years.
	Frequency struct {
		Unit     FrequencyUnit `json:"unit"`
		Interval int           `json:"interval"`
	}

	// User is an account holder. PasswordHash is a bcrypt hash and never
	// leaves the server.
	User struct {
		ID           int64     `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Nickname     string    `json:"nickname"`
		AvatarURL    string    `json:"avatar_url,omitempty"`
		GroupID      *int64    `json:"group_id,omitempty"`
		Settings     Settings  `json:"settings"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	// Settings holds per-user preferences.
	Settings struct {
		Currency string `json:"currency"`
		Locale   string `json:"locale"`
		Timezone string `json:"timezone"`
	}

	// Group is a household sharing categories, transactions and rules.
	Group struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		OwnerID   int64     `json:"owner_id"`
		CreatedAt time.Time `json:"created_at"`
	}

	// GroupInvite is a short-lived code other users redeem to join a group.
	GroupInvite struct {
		ID        int64     `json:"id"`
		GroupID   int64     `json:"group_id"`
		Code      string    `json:"code"`
		CreatedBy int64     `json:"created_by"`
		ExpiresAt time.Time `json:"expires_at"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Category classifies transactions. A category belongs either to a
	// group (GroupID set) or personally to its creator.
	Category struct {
		ID        int64           `json:"id"`
		GroupID   *int64          `json:"group_id,omitempty"`
		CreatedBy int64           `json:"created_by"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Color     string          `json:"color,omitempty"`
		IsDefault bool            `json:"is_default"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	// TransactionTemplate is the transaction-shaped payload embedded in a
	// recurring rule. It is validated at rule creation and again at
	// generation time, since the category may have been deleted meanwhile.
	TransactionTemplate struct {
		Type       TransactionType `json:"type"`
		Amount     Money           `json:"amount"`
		CategoryID int64           `json:"category_id"`
		Merchant   string          `json:"merchant,omitempty"`
		Memo       string          `json:"memo,omitempty"`
	}

	// Transaction is a financial record. Once written by the
	// materialization engine it is never touched by the engine again.
	Transaction struct {
		ID          int64           `json:"id"`
		GroupID     *int64          `json:"group_id,omitempty"`
		OwnerUserID int64           `json:"owner_user_id"`
		Type        TransactionType `json:"type"`
		Date        Date            `json:"date"`
		Amount      Money           `json:"amount"`
		CategoryID  int64           `json:"category_id"`
		Merchant    string          `json:"merchant,omitempty"`
		Memo        string          `json:"memo,omitempty"`
		RuleID      *int64          `json:"rule_id,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	// RecurringRule is a transaction template plus a schedule.
	// LastGeneratedThrough is the generation cursor: the latest occurrence
	// date for which a transaction has already been materialized. A zero
	// value means nothing has been generated yet.
	RecurringRule struct {
		ID                   int64               `json:"id"`
		GroupID              *int64              `json:"group_id,omitempty"`
		CreatedBy            int64               `json:"created_by"`
		Template             TransactionTemplate `json:"template"`
		Freq                 Frequency           `json:"frequency"`
		StartDate            Date                `json:"start_date"`
		EndDate              Date                `json:"end_date,omitempty"`
		LastGeneratedThrough Date                `json:"last_generated_through,omitempty"`
		IsActive             bool                `json:"is_active"`
		CreatedAt            time.Time           `json:"created_at"`
		UpdatedAt            time.Time           `json:"updated_at"`
	}

	// Budget caps spending for an owner (user or group) in one month.
	Budget struct {
		ID          int64        `json:"id"`
		OwnerType   OwnerType    `json:"owner_type"`
		OwnerID     int64        `json:"owner_id"`
		Period      string       `json:"period"` // YYYY-MM
		TotalAmount Money        `json:"total_amount"`
		Status      BudgetStatus `json:"status"`
		CreatedAt   time.Time    `json:"created_at"`
		UpdatedAt   time.Time    `json:"updated_at"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidInterval  = errors.New("frequency interval must be at least 1")
	ErrInvalidUnit      = errors.New("invalid frequency unit")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyEmail       = errors.New("empty email")
	ErrMissingCategory  = errors.New("missing category")
	ErrEndBeforeStart   = errors.New("end date before start date")
	ErrInvalidPeriod    = errors.New("period must be formatted as YYYY-MM")
	ErrInvalidOwnerType = errors.New("invalid owner type")
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidatePeriod checks the YYYY-MM budget period format.
func ValidatePeriod(period string) error {
	if !periodPattern.MatchString(period) {
		return ErrInvalidPeriod
	}
	return nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case Expense, Income, Transfer:
		return true
	}
	return false
}

func (u FrequencyUnit) Valid() bool {
	switch u {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (o OwnerType) Valid() bool {
	return o == OwnerUser || o == OwnerGroup
}

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetActive, BudgetClosed, BudgetDraft:
		return true
	}
	return false
}

func (f Frequency) Validate() error {
	if !f.Unit.Valid() {
		return ErrInvalidUnit
	}
	if f.Interval < 1 {
		return ErrInvalidInterval
	}
	return nil
}

func (t TransactionTemplate) Validate() error {
	if t.Type != Expense && t.Type != Income {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if len(t.Merchant) > 160 {
		return errors.New("merchant too long (max 160 characters)")
	}
	if len(t.Memo) > 1000 {
		return errors.New("memo too long (max 1000 characters)")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	if err := r.Freq.Validate(); err != nil {
		return err
	}
	return r.Template.Validate()
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if t.OwnerUserID == 0 {
		return errors.New("missing owner")
	}
	if len(t.Merchant) > 160 {
		return errors.New("merchant too long (max 160 characters)")
	}
	if len(t.Memo) > 1000 {
		return errors.New("memo too long (max 1000 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 120 {
		return errors.New("name too long (max 120 characters)")
	}
	if c.Type != Expense && c.Type != Income {
		return ErrInvalidType
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.OwnerType.Valid() {
		return ErrInvalidOwnerType
	}
	if b.OwnerID == 0 {
		return errors.New("missing owner id")
	}
	if err := ValidatePeriod(b.Period); err != nil {
		return err
	}
	if err := b.TotalAmount.Validate(); err != nil {
		return err
	}
	if b.Status != "" && !b.Status.Valid() {
		return errors.New("invalid budget status")
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("malformed email")
	}
	if strings.TrimSpace(u.Nickname) == "" {
		return ErrEmptyName
	}
	if len(u.Nickname) > 60 {
		return errors.New("nickname too long (max 60 characters)")
	}
	return nil
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 120 {
		return errors.New("name too long (max 120 characters)")
	}
	return nil
}

// DefaultSettings are applied to new users and on settings reset.
func DefaultSettings() Settings {
	return Settings{
		Currency: "KRW",
		Locale:   "ko-KR",
		Timezone: "Asia/Seoul",
	}
}
