package calendar

import (
	"fmt"
	"time"
)

// WeekOrdinal is the position of a weekday inside its month.
type WeekOrdinal int

const (
	First  WeekOrdinal = 1
	Second WeekOrdinal = 2
	Third  WeekOrdinal = 3
	Fourth WeekOrdinal = 4
	Fifth  WeekOrdinal = 5
	// Last matches the final occurrence of the weekday, whether it is the 4th or the 5th.
	Last WeekOrdinal = -1
)

// Valid reports whether o is one of the declared ordinals.
func (o WeekOrdinal) Valid() bool {
	return o == Last || (o >= First && o <= Fifth)
}

func (o WeekOrdinal) String() string {
	switch o {
	case First:
		return "first"
	case Second:
		return "second"
	case Third:
		return "third"
	case Fourth:
		return "fourth"
	case Fifth:
		return "fifth"
	case Last:
		return "last"
	default:
		return fmt.Sprintf("ordinal(%d)", int(o))
	}
}

// WeekDayMonthRelated names a day such as "2nd Tuesday" or "last Friday".
type WeekDayMonthRelated struct {
	DayOfWeek time.Weekday
	Ordinal   WeekOrdinal
}

// Matches reports whether d is the described day of its month.
func (w WeekDayMonthRelated) Matches(d Date) bool {
	if d.Weekday() != w.DayOfWeek {
		return false
	}
	rel, isLast := DayOfMonthRelative(d)
	if w.Ordinal == Last {
		return isLast
	}
	return rel.Ordinal == w.Ordinal
}

// AnnualDate is a month/day pair that recurs every year.
type AnnualDate struct {
	Month time.Month
	Day   int
}

// Valid reports whether the pair exists in some year (Feb 29 included).
func (a AnnualDate) Valid() bool {
	if a.Month < time.January || a.Month > time.December {
		return false
	}
	return a.Day >= 1 && a.Day <= daysIn(2024, a.Month)
}

// Matches reports whether d falls on this month/day.
func (a AnnualDate) Matches(d Date) bool {
	return d.Month() == a.Month && d.Day() == a.Day
}

func (a AnnualDate) String() string { return fmt.Sprintf("%02d-%02d", int(a.Month), a.Day) }

// =============================================================================
// MONTH / WEEK ARITHMETIC
// =============================================================================

// WeekStart returns the most recent startDayOfWeek on or before d.
func WeekStart(d Date, startDayOfWeek time.Weekday) Date {
	offset := (int(d.Weekday()) - int(startDayOfWeek) + 7) % 7
	return d.AddDays(-offset)
}

// MonthDayCount returns the number of days in d's month.
func MonthDayCount(d Date) int { return daysIn(d.Year(), d.Month()) }

// IsLastDayOfMonth reports whether d is the final day of its month.
func IsLastDayOfMonth(d Date) bool { return d.Day() == MonthDayCount(d) }

// DayOfMonthRelative returns d's weekday with its occurrence number in the
// month, and whether it is the last such weekday of the month.
func DayOfMonthRelative(d Date) (WeekDayMonthRelated, bool) {
	rel := WeekDayMonthRelated{
		DayOfWeek: d.Weekday(),
		Ordinal:   WeekOrdinal((d.Day()-1)/7 + 1),
	}
	return rel, d.Day()+7 > MonthDayCount(d)
}

// AddMonthsClamped moves d by n months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28/29).
func AddMonthsClamped(d Date, n int) Date {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := d.Day()
	if limit := daysIn(first.Year(), first.Month()); day > limit {
		day = limit
	}
	return MustDate(first.Year(), first.Month(), day)
}

// AddYearsClamped moves d by n years, clamping Feb 29 to Feb 28.
func AddYearsClamped(d Date, n int) Date { return AddMonthsClamped(d, 12*n) }
