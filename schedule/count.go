package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
)

// CountPrecision is the number of decimal places kept in pro-rated due counts.
const CountPrecision = 2

// Window resolves an optionally open range against the schedule: a nil minDate
// means the start date, a nil maxDate means the end date or, for open-ended
// schedules, today. ok is false when the range is empty.
func (s Schedule) Window(minDate, maxDate *calendar.Date, today calendar.Date) (calendar.Period, bool) {
	from := s.StartDate
	if minDate != nil {
		from = *minDate
	}
	to := today
	if s.EndDate != nil {
		to = *s.EndDate
	}
	if maxDate != nil {
		to = *maxDate
	}
	return s.clip(calendar.Period{Start: from, End: to})
}

// NumOfTimesDueInPeriod counts due occurrences between minDate and maxDate.
//
// Fixed-day schedules count due dates. Flexible schedules add, for every
// period touching the range, the period target scaled by the share of the
// period's eligible days that fall inside the range, so covering 5 days of a
// 10-day period with a target of 5 counts as 2.5.
func (s Schedule) NumOfTimesDueInPeriod(minDate, maxDate *calendar.Date, today calendar.Date) decimal.Decimal {
	window, ok := s.Window(minDate, maxDate, today)
	if !ok {
		return decimal.Zero
	}

	f, flexible := s.Variant.(ByNumOfDueDays)
	if !flexible {
		return decimal.NewFromInt(int64(len(s.DueDatesInRange(window.Start, window.End))))
	}

	total := decimal.Zero
	pc := s.PeriodConfig()
	raw, ok := pc.PeriodFor(window.Start)
	for ok && raw.Start.BeforeOrEqual(window.End) {
		if clipped, inWindow := s.clip(raw); inWindow {
			eligible := len(s.eligibleDays(clipped))
			target := s.targetFor(f, raw, clipped)
			if eligible > 0 && target > 0 {
				overlap := 0
				if part, ok := clipped.Intersect(window); ok {
					overlap = len(s.eligibleDays(part))
				}
				share := decimal.NewFromInt(int64(target * overlap)).Div(decimal.NewFromInt(int64(eligible)))
				total = total.Add(share)
			}
		}
		raw, ok = pc.Next(raw)
	}
	return total.Round(CountPrecision)
}

// NumOfTimesDueInPeriod is the package-level form of Schedule.NumOfTimesDueInPeriod.
func NumOfTimesDueInPeriod(s Schedule, minDate, maxDate *calendar.Date, today calendar.Date) decimal.Decimal {
	return s.NumOfTimesDueInPeriod(minDate, maxDate, today)
}
