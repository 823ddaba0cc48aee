/*
Package calendar provides the day-granular date arithmetic used by the schedule engine.

PURPOSE:

	Routines are tracked per calendar day. Time of day, time zones and DST never
	matter once a day has been picked, so every value here is a Date pinned to
	UTC midnight. Conversion from wall-clock time happens exactly once, at the
	edge (Today / FromTime).

KEY CONCEPTS:
  - Date: a validated calendar day
  - Period: an inclusive [Start, End] range of days
  - PeriodConfig: how a schedule slices time into weeks, months, years or
    custom N-day spans
  - WeekDayMonthRelated: "2nd Tuesday", "last Friday" style positions

INVALID DATES:

	NewDate and ParseDate reject impossible dates (Feb 30, month 13) with
	ErrInvalidDate instead of normalising them the way time.Date does. Once a
	Date exists it is valid, so the rest of the package is total.

SEE ALSO:
  - period.go: Period and PeriodConfig
  - month.go: month-relative helpers
*/
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate is returned when a year/month/day triple is not a calendar date.
var ErrInvalidDate = errors.New("invalid date")

// DateLayout is the wire format for dates.
const DateLayout = "2006-01-02"

// =============================================================================
// DATE
// =============================================================================

// Date is a calendar day. The zero value is "no date".
type Date struct {
	t time.Time
}

// NewDate builds a Date, failing with ErrInvalidDate for out-of-range input.
func NewDate(year int, month time.Month, day int) (Date, error) {
	if month < time.January || month > time.December {
		return Date{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	if day < 1 || day > daysIn(year, month) {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}, nil
}

// MustDate is NewDate for constants and tests.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return FromTime(t), nil
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current day in UTC.
func Today() Date { return FromTime(time.Now().UTC()) }

// TodayIn returns the current day in loc.
func TodayIn(loc *time.Location) Date {
	if loc == nil {
		return Today()
	}
	return FromTime(time.Now().In(loc))
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DaysBetween returns the signed number of days from `from` to `to`.
func DaysBetween(from, to Date) int { return int(to.t.Sub(from.t).Hours() / 24) }

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func StartOfMonth(year int, month time.Month) Date { return MustDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	return MustDate(year, month, daysIn(year, month))
}
func StartOfYear(year int) Date { return MustDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return MustDate(year, time.December, 31) }

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
