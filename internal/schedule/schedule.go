// Package schedule computes the occurrence dates of recurring rules.
//
// All arithmetic is pure calendar math on core.Date values. Occurrence
// n is always derived from the start date, never from the previous
// occurrence, so a monthly schedule starting on January 31 lands on
// February 28 (or 29), then back on March 31.
package schedule

import (
	"iter"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

// Schedule is a validated recurrence pattern. A zero End means the
// schedule is open-ended.
type Schedule struct {
	Start core.Date
	End   core.Date
	Freq  core.Frequency
}

// New builds a Schedule, rejecting invalid frequencies and end dates
// before the start.
func New(start, end core.Date, freq core.Frequency) (Schedule, error) {
	if err := start.Validate(); err != nil {
		return Schedule{}, err
	}
	if err := freq.Validate(); err != nil {
		return Schedule{}, err
	}
	if !end.IsZero() && end.Before(start) {
		return Schedule{}, core.ErrEndBeforeStart
	}
	return Schedule{Start: start, End: end, Freq: freq}, nil
}

// FromRule builds the schedule embedded in a recurring rule.
func FromRule(rule core.RecurringRule) (Schedule, error) {
	return New(rule.StartDate, rule.EndDate, rule.Freq)
}

// Occurrence returns the date of occurrence n. Occurrence 0 is the
// start date itself. n must be non-negative.
func (s Schedule) Occurrence(n int) core.Date {
	if n < 0 {
		panic("schedule: negative occurrence index")
	}
	steps := n * s.Freq.Interval
	switch s.Freq.Unit {
	case core.Daily:
		return s.Start.AddDays(steps)
	case core.Weekly:
		return s.Start.AddDays(steps * 7)
	case core.Monthly:
		return addMonthsClamped(s.Start, steps)
	case core.Yearly:
		return addMonthsClamped(s.Start, steps*12)
	}
	panic("schedule: unknown frequency unit " + string(s.Freq.Unit))
}

// Next returns the first occurrence strictly after the given date,
// and false when the schedule has ended before then. A zero after
// yields the start date itself.
func (s Schedule) Next(after core.Date) (core.Date, bool) {
	for n := 0; ; n++ {
		occ := s.Occurrence(n)
		if !s.End.IsZero() && occ.After(s.End) {
			return core.Date{}, false
		}
		if after.IsZero() || occ.After(after) {
			return occ, true
		}
	}
}

// Due yields, in order, every occurrence strictly after `after` and no
// later than `through` (and no later than the schedule's end date).
// A zero `after` means nothing has been generated yet, so the start
// date itself is the first candidate.
func (s Schedule) Due(after, through core.Date) iter.Seq[core.Date] {
	return func(yield func(core.Date) bool) {
		for n := 0; ; n++ {
			occ := s.Occurrence(n)
			if occ.After(through) {
				return
			}
			if !s.End.IsZero() && occ.After(s.End) {
				return
			}
			if !after.IsZero() && !occ.After(after) {
				continue
			}
			if !yield(occ) {
				return
			}
		}
	}
}

// addMonthsClamped advances d by n months, clamping the day-of-month
// to the last valid day of the target month. time.AddDate is not used
// because it normalizes overflow (Jan 31 + 1 month = Mar 3).
func addMonthsClamped(d core.Date, n int) core.Date {
	year := d.Year()
	// Months counted from zero to make the division behave for all n.
	month := d.Month() - 1 + n
	year += month / 12
	month %= 12
	if month < 0 {
		month += 12
		year--
	}
	day := d.Day()
	if last := daysIn(year, month+1); day > last {
		day = last
	}
	return core.NewDate(year, month+1, day)
}

func daysIn(year, month int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
