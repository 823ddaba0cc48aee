package schedule

import (
	"fmt"
	"sort"

	"github.com/routinely/routine-engine/calendar"
)

// =============================================================================
// ACTIVE WINDOW
// =============================================================================

// Active reports whether d is inside [StartDate, EndDate].
func (s Schedule) Active(d calendar.Date) bool {
	if d.Before(s.StartDate) {
		return false
	}
	return s.EndDate == nil || d.BeforeOrEqual(*s.EndDate)
}

// OnVacation reports whether d is inside the vacation interval.
func (s Schedule) OnVacation(d calendar.Date) bool {
	return s.Vacation != nil && s.Vacation.Contains(d)
}

// Eligible reports whether d can be due at all: active and not on vacation.
func (s Schedule) Eligible(d calendar.Date) bool {
	return s.Active(d) && !s.OnVacation(d)
}

// clip limits p to the active window.
func (s Schedule) clip(p calendar.Period) (calendar.Period, bool) {
	window := calendar.Period{Start: s.StartDate, End: p.End}
	if s.EndDate != nil {
		window.End = *s.EndDate
	}
	return p.Intersect(window)
}

func (s Schedule) clippedPeriod(d calendar.Date) (calendar.Period, bool) {
	raw, ok := s.PeriodConfig().PeriodFor(d)
	if !ok {
		return calendar.Period{}, false
	}
	return s.clip(raw)
}

func (s Schedule) eligibleDays(p calendar.Period) []calendar.Date {
	var days []calendar.Date
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		if s.Eligible(d) {
			days = append(days, d)
		}
	}
	return days
}

// =============================================================================
// IS DUE
// =============================================================================

// IsDue reports whether the schedule requires an action on d.
//
// Fixed-day variants answer from the calendar. Flexible variants answer from
// the running counters, relative to the day they were computed on (AsOf):
//
//	closed period   the last target eligible days, the ones still due when
//	                the period ran out
//	current period  every eligible day from AsOf to the period end, while the
//	                completed count is below target
//	later period    every eligible day
//
// Without a reference day every eligible day of a period is due until the
// counters show the target met.
func (s Schedule) IsDue(d calendar.Date) bool {
	if !s.Eligible(d) {
		return false
	}
	if _, ok := s.Variant.(ByNumOfDueDays); ok {
		p, target, ok := s.PeriodTarget(d)
		if !ok {
			return false
		}
		c, _ := s.Counters()
		return s.FlexibleDueness(p, target, s.countersDone(c, p), c.AsOf)(d)
	}
	return s.matchesFixed(d)
}

// IsDue is the package-level form of Schedule.IsDue.
func IsDue(s Schedule, d calendar.Date) bool { return s.IsDue(d) }

// matchesFixed answers the calendar rule of a fixed-day variant. Bounds and
// vacation are checked by the caller.
func (s Schedule) matchesFixed(d calendar.Date) bool {
	switch v := s.Variant.(type) {
	case EveryDay:
		return true

	case WeeklyByDueDaysOfWeek:
		for _, wd := range v.DueDaysOfWeek {
			if d.Weekday() == wd {
				return true
			}
		}
		return false

	case MonthlyByDueDatesIndices:
		if v.IncludeLastDayOfMonth && calendar.IsLastDayOfMonth(d) {
			return true
		}
		for _, i := range v.DueDatesIndices {
			if d.Day() == i {
				return true
			}
		}
		for _, w := range v.WeekDaysMonthRelated {
			if w.Matches(d) {
				return true
			}
		}
		return false

	case AnnualByDueDates:
		for _, a := range v.DueDates {
			if a.Matches(d) {
				return true
			}
		}
		return false

	case CustomDate:
		i := sort.Search(len(v.DueDates), func(i int) bool { return !v.DueDates[i].Before(d) })
		return i < len(v.DueDates) && v.DueDates[i].Equal(d)

	case ByNumOfDueDays:
		return false

	default:
		panic(fmt.Sprintf("schedule: unhandled variant %T", v))
	}
}

// =============================================================================
// FLEXIBLE VARIANTS
// =============================================================================

// PeriodTarget returns the active part of the period containing d and the
// number of due days required in it. ok is false for fixed-day schedules
// and for dates outside the active window.
func (s Schedule) PeriodTarget(d calendar.Date) (calendar.Period, int, bool) {
	f, ok := s.Variant.(ByNumOfDueDays)
	if !ok {
		return calendar.Period{}, 0, false
	}
	raw, ok := s.PeriodConfig().PeriodFor(d)
	if !ok {
		return calendar.Period{}, 0, false
	}
	clipped, ok := s.clip(raw)
	if !ok {
		return calendar.Period{}, 0, false
	}
	return clipped, s.targetFor(f, raw, clipped), true
}

func (s Schedule) targetFor(f ByNumOfDueDays, raw, clipped calendar.Period) int {
	target := f.DueDaysPerPeriod()
	counters := f.PeriodCounters()
	if raw.Start.Before(s.StartDate) && raw.Contains(s.StartDate) && counters.NumOfDueDaysInFirstPeriod != nil {
		target = *counters.NumOfDueDaysInFirstPeriod
	}
	if eligible := len(s.eligibleDays(clipped)); target > eligible {
		target = eligible
	}
	return target
}

// countersDone returns the completed count the counters hold for p.
func (s Schedule) countersDone(c Counters, p calendar.Period) int {
	if c.CurrentPeriodStart.IsZero() || !p.Contains(c.CurrentPeriodStart) {
		return 0
	}
	return c.NumOfCompletedDaysInCurrentPeriod
}

// FlexibleDueness returns the dueness rule of one active period p of a
// flexible schedule, given its target, the days already done in it and the
// reference day. IsDue and the accountant's replay both decide flexible
// dueness through it.
func (s Schedule) FlexibleDueness(p calendar.Period, target, done int, asOf calendar.Date) func(calendar.Date) bool {
	never := func(calendar.Date) bool { return false }
	if target <= 0 {
		return never
	}
	inPeriod := func(d calendar.Date) bool { return p.Contains(d) && s.Eligible(d) }

	switch {
	case asOf.IsZero():
		if done >= target {
			return never
		}
		return inPeriod

	case p.End.Before(asOf):
		eligible := s.eligibleDays(p)
		if len(eligible) == 0 {
			return never
		}
		first := eligible[max(len(eligible)-target, 0)]
		return func(d calendar.Date) bool { return inPeriod(d) && !d.Before(first) }

	case asOf.Before(p.Start):
		return inPeriod

	default:
		if done >= target {
			return never
		}
		return func(d calendar.Date) bool { return inPeriod(d) && !d.Before(asOf) }
	}
}

// =============================================================================
// DUE DATES IN RANGE
// =============================================================================

// DueDatesInRange returns the due dates in [from, to] in ascending order.
// The result depends only on the schedule and the range, and extending `to`
// never removes earlier dates.
func (s Schedule) DueDatesInRange(from, to calendar.Date) []calendar.Date {
	window, ok := s.clip(calendar.Period{Start: from, End: to})
	if !ok {
		return nil
	}

	switch v := s.Variant.(type) {
	case CustomDate:
		var out []calendar.Date
		for _, d := range v.DueDates {
			if window.Contains(d) && s.Eligible(d) {
				out = append(out, d)
			}
		}
		return out

	case ByNumOfDueDays:
		var out []calendar.Date
		c, _ := s.Counters()
		pc := s.PeriodConfig()
		raw, ok := pc.PeriodFor(window.Start)
		for ok && raw.Start.BeforeOrEqual(window.End) {
			if p, active := s.clip(raw); active {
				due := s.FlexibleDueness(p, s.targetFor(v, raw, p), s.countersDone(c, p), c.AsOf)
				if part, overlaps := p.Intersect(window); overlaps {
					for d := part.Start; d.BeforeOrEqual(part.End); d = d.AddDays(1) {
						if due(d) {
							out = append(out, d)
						}
					}
				}
			}
			raw, ok = pc.Next(raw)
		}
		return out

	default:
		var out []calendar.Date
		for d := window.Start; d.BeforeOrEqual(window.End); d = d.AddDays(1) {
			if !s.OnVacation(d) && s.matchesFixed(d) {
				out = append(out, d)
			}
		}
		return out
	}
}

// DueDatesInRange is the package-level form of Schedule.DueDatesInRange.
func DueDatesInRange(s Schedule, from, to calendar.Date) []calendar.Date {
	return s.DueDatesInRange(from, to)
}
