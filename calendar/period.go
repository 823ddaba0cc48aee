package calendar

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive range of days
// =============================================================================

// Period is the inclusive range [Start, End].
//
// Examples:
//   - Calendar week starting Monday: Mon - Sun
//   - Month anchored on Jan 15: Jan 15 - Feb 14
//   - 10-day custom period: start + 10k .. start + 10k + 9
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// NumOfDays returns the number of days in the period (0 when End < Start).
func (p Period) NumOfDays() int {
	n := DaysBetween(p.Start, p.End) + 1
	if n < 0 {
		return 0
	}
	return n
}

// Days returns all days in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Intersect returns the overlap of p and other. ok is false when they are disjoint.
func (p Period) Intersect(other Period) (Period, bool) {
	out := Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}
	if out.End.Before(out.Start) {
		return Period{}, false
	}
	return out, true
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD CONFIG - How a schedule slices time
// =============================================================================

// PeriodKind selects the recurring window of a schedule.
type PeriodKind string

const (
	PeriodNone   PeriodKind = "none"
	PeriodWeek   PeriodKind = "week"
	PeriodMonth  PeriodKind = "month"
	PeriodYear   PeriodKind = "year"
	PeriodCustom PeriodKind = "custom"
)

// PeriodConfig defines how to calculate the period containing a date.
type PeriodConfig struct {
	Kind PeriodKind

	// For weeks: the first day of every week.
	StartDayOfWeek time.Weekday

	// For months and years: when set, periods start on the anchor's day
	// (Jan 15 - Feb 14) instead of calendar boundaries. Required for custom periods.
	Anchor Date

	// For custom periods: the period length in days.
	NumOfDays int
}

// PeriodFor returns the period that contains d. ok is false for PeriodNone
// and for a custom config without anchor or length.
func (pc PeriodConfig) PeriodFor(d Date) (Period, bool) {
	switch pc.Kind {
	case PeriodWeek:
		start := WeekStart(d, pc.StartDayOfWeek)
		return Period{Start: start, End: start.AddDays(6)}, true

	case PeriodMonth:
		if pc.Anchor.IsZero() {
			return Period{Start: StartOfMonth(d.Year(), d.Month()), End: EndOfMonth(d.Year(), d.Month())}, true
		}
		return anchoredPeriod(pc.Anchor, d, 1), true

	case PeriodYear:
		if pc.Anchor.IsZero() {
			return Period{Start: StartOfYear(d.Year()), End: EndOfYear(d.Year())}, true
		}
		return anchoredPeriod(pc.Anchor, d, 12), true

	case PeriodCustom:
		if pc.Anchor.IsZero() || pc.NumOfDays < 1 {
			return Period{}, false
		}
		k := floorDiv(DaysBetween(pc.Anchor, d), pc.NumOfDays)
		start := pc.Anchor.AddDays(k * pc.NumOfDays)
		return Period{Start: start, End: start.AddDays(pc.NumOfDays - 1)}, true

	default:
		return Period{}, false
	}
}

// PeriodBounds is PeriodFor with an error for configurations that have no periods.
func PeriodBounds(d Date, pc PeriodConfig) (Period, error) {
	p, ok := pc.PeriodFor(d)
	if !ok {
		return Period{}, fmt.Errorf("no %s period for %s", pc.Kind, d)
	}
	return p, nil
}

// Next returns the period following p under the same config.
func (pc PeriodConfig) Next(p Period) (Period, bool) {
	return pc.PeriodFor(p.End.AddDays(1))
}

func anchoredPeriod(anchor, d Date, months int) Period {
	elapsed := (d.Year()-anchor.Year())*12 + int(d.Month()) - int(anchor.Month())
	k := floorDiv(elapsed, months)
	start := AddMonthsClamped(anchor, k*months)
	if start.After(d) {
		k--
		start = AddMonthsClamped(anchor, k*months)
	}
	end := AddMonthsClamped(anchor, (k+1)*months).AddDays(-1)
	return Period{Start: start, End: end}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
