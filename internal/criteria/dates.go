/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package criteria

import (
	"fmt"
	"time"
)

// Bound is one end of a Range.
type Bound struct {
	At        time.Time
	Inclusive bool
}

// Range is a time interval; a nil end is unbounded.
type Range struct {
	From *Bound
	To   *Bound
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if r.From != nil {
		if r.From.Inclusive && t.Before(r.From.At) {
			return false
		}
		if !r.From.Inclusive && !t.After(r.From.At) {
			return false
		}
	}
	if r.To != nil {
		if r.To.Inclusive && t.After(r.To.At) {
			return false
		}
		if !r.To.Inclusive && !t.Before(r.To.At) {
			return false
		}
	}
	return true
}

func (r Range) String() string {
	lo, hi := "(-inf", "+inf)"
	if r.From != nil {
		bracket := "("
		if r.From.Inclusive {
			bracket = "["
		}
		lo = bracket + r.From.At.Format(time.RFC3339)
	}
	if r.To != nil {
		bracket := ")"
		if r.To.Inclusive {
			bracket = "]"
		}
		hi = r.To.At.Format(time.RFC3339) + bracket
	}
	return lo + ", " + hi
}

func inclusive(t time.Time) *Bound { return &Bound{At: t, Inclusive: true} }
func exclusive(t time.Time) *Bound { return &Bound{At: t} }

// AbsoluteRange returns the dates that compare to date at the given unit:
// "=" is the whole day (or year) starting at date, "<=" extends to the end of
// it and ">" starts after it.
func AbsoluteRange(op Operator, date time.Time, unit Unit) (Range, error) {
	next := Shift(date, unit, 1)
	switch op {
	case OpEqual:
		return Range{From: inclusive(date), To: exclusive(next)}, nil
	case OpLess:
		return Range{To: exclusive(date)}, nil
	case OpLessEqual:
		return Range{To: exclusive(next)}, nil
	case OpGreater:
		return Range{From: inclusive(next)}, nil
	case OpGreaterEqual:
		return Range{From: inclusive(date)}, nil
	}
	return Range{}, fmt.Errorf("%w %q", ErrInvalidOperator, op)
}

// RelativeRange returns the dates that lie amount units before now. "<" means
// more recent than that point. "=" is a band of one unit either side.
//
// TODO: the "=" band is wider than users expect for month and year units; revisit
// once criteria strings in the wild have been surveyed.
func RelativeRange(op Operator, amount int, unit Unit, now time.Time) (Range, error) {
	point := Shift(now, unit, -amount)
	switch op {
	case OpEqual:
		return Range{
			From: exclusive(Shift(now, unit, -amount-1)),
			To:   exclusive(Shift(now, unit, -amount+1)),
		}, nil
	case OpLess:
		return Range{From: exclusive(point)}, nil
	case OpLessEqual:
		return Range{From: inclusive(point)}, nil
	case OpGreater:
		return Range{To: exclusive(point)}, nil
	case OpGreaterEqual:
		return Range{To: inclusive(point)}, nil
	}
	return Range{}, fmt.Errorf("%w %q", ErrInvalidOperator, op)
}

// Shift moves t by n units. Month and year steps clamp to the last day of the
// target month instead of overflowing into the next one.
func Shift(t time.Time, unit Unit, n int) time.Time {
	switch unit {
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitMonth:
		return addMonths(t, n)
	case UnitYear:
		return addMonths(t, 12*n)
	}
	return t
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Time resolves an absolute date to midnight in loc.
func (d DateSpec) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	month, day := d.Month, d.Day
	if d.Unit == UnitYear {
		month, day = time.January, 1
	}
	return time.Date(d.Year, month, day, 0, 0, 0, 0, loc)
}

// Range resolves a date comparison against now and loc.
func (d DateSpec) Range(op Operator, now time.Time, loc *time.Location) (Range, error) {
	if d.Relative {
		return RelativeRange(op, d.Amount, d.Unit, now)
	}
	return AbsoluteRange(op, d.Time(loc), d.Unit)
}
