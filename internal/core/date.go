package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateFormat is the wire and storage format for calendar dates.
const DateFormat = "2006-01-02"

// Date is a calendar date with day granularity, normalized to midnight UTC.
// The zero value means "no date" (optional end dates, empty cursors).
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as an int (1-12).
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// Before reports whether d is strictly before x.
func (d Date) Before(x Date) bool { return d.Time.Before(x.Time) }

// After reports whether d is strictly after x.
func (d Date) After(x Date) bool { return d.Time.After(x.Time) }

// Equal reports whether d and x are the same calendar date.
func (d Date) Equal(x Date) bool { return d.Time.Equal(x.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateFormat)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" strings and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer; zero dates are stored as NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for TEXT, DATE and NULL columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	// SQLite may hand back a full timestamp for date columns.
	if len(s) > len(DateFormat) {
		s = s[:len(DateFormat)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = (*Date)(nil)

// ErrInvalidDate reports a date that fails validation.
var ErrInvalidDate = errors.New("invalid date")

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
