package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/routinely/routine-engine/calendar"
)

// ErrInvalidScheduleConfig is returned by New for malformed configuration.
var ErrInvalidScheduleConfig = errors.New("invalid schedule config")

// ConfigError names the offending field.
type ConfigError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("invalid schedule config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s schedule config: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidScheduleConfig }

// New validates opts and v and returns a Schedule holding private copies of
// every slice, sorted and de-duplicated.
func New(opts Options, v Variant) (Schedule, error) {
	if v == nil {
		return Schedule{}, &ConfigError{Field: "variant", Reason: "missing"}
	}
	if opts.StartDate.IsZero() {
		return Schedule{}, &ConfigError{Kind: v.Kind(), Field: "start_date", Reason: "missing"}
	}
	if opts.EndDate != nil && opts.EndDate.Before(opts.StartDate) {
		return Schedule{}, &ConfigError{Kind: v.Kind(), Field: "end_date", Reason: "before start date"}
	}
	if opts.Vacation != nil && opts.Vacation.End.Before(opts.Vacation.Start) {
		return Schedule{}, &ConfigError{Kind: v.Kind(), Field: "vacation", Reason: "end before start"}
	}
	opts = copyOptions(opts)

	s := Schedule{Options: opts}
	normalized, err := s.normalize(v)
	if err != nil {
		return Schedule{}, err
	}
	s.Variant = normalized
	return s, nil
}

// MustNew is New for tests and fixtures.
func MustNew(opts Options, v Variant) Schedule {
	s, err := New(opts, v)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schedule) normalize(v Variant) (Variant, error) {
	fail := func(field, reason string) (Variant, error) {
		return nil, &ConfigError{Kind: v.Kind(), Field: field, Reason: reason}
	}

	switch v := v.(type) {
	case EveryDay:
		return v, nil

	case WeeklyByDueDaysOfWeek:
		days, err := normalizeWeekdays(v.DueDaysOfWeek)
		if err != nil {
			return fail("due_days_of_week", err.Error())
		}
		if v.StartDayOfWeek != nil && !validWeekday(*v.StartDayOfWeek) {
			return fail("start_day_of_week", "not a weekday")
		}
		v.DueDaysOfWeek = days
		v.StartDayOfWeek = copyWeekday(v.StartDayOfWeek)
		return v, nil

	case WeeklyByNumOfDueDays:
		if v.StartDayOfWeek != nil && !validWeekday(*v.StartDayOfWeek) {
			return fail("start_day_of_week", "not a weekday")
		}
		v.StartDayOfWeek = copyWeekday(v.StartDayOfWeek)
		counters, err := s.validateFlexible(v, v.NumOfDueDays, 7, v.Counters)
		if err != nil {
			return nil, err
		}
		v.Counters = counters
		return v, nil

	case MonthlyByDueDatesIndices:
		indices := make([]int, 0, len(v.DueDatesIndices))
		seen := make(map[int]bool)
		for _, i := range v.DueDatesIndices {
			if i < 1 || i > 31 {
				return fail("due_dates_indices", fmt.Sprintf("day %d outside 1..31", i))
			}
			if !seen[i] {
				seen[i] = true
				indices = append(indices, i)
			}
		}
		sort.Ints(indices)

		related := make([]calendar.WeekDayMonthRelated, 0, len(v.WeekDaysMonthRelated))
		seenRel := make(map[calendar.WeekDayMonthRelated]bool)
		for _, w := range v.WeekDaysMonthRelated {
			if !validWeekday(w.DayOfWeek) || !w.Ordinal.Valid() {
				return fail("week_days_month_related", fmt.Sprintf("invalid entry %v/%v", w.DayOfWeek, w.Ordinal))
			}
			if !seenRel[w] {
				seenRel[w] = true
				related = append(related, w)
			}
		}
		if len(indices) == 0 && len(related) == 0 && !v.IncludeLastDayOfMonth {
			return fail("due_dates_indices", "no due days")
		}
		v.DueDatesIndices = indices
		v.WeekDaysMonthRelated = related
		return v, nil

	case MonthlyByNumOfDueDays:
		counters, err := s.validateFlexible(v, v.NumOfDueDays, 31, v.Counters)
		if err != nil {
			return nil, err
		}
		v.Counters = counters
		return v, nil

	case AnnualByDueDates:
		if len(v.DueDates) == 0 {
			return fail("due_dates", "no due days")
		}
		dates := make([]calendar.AnnualDate, 0, len(v.DueDates))
		seen := make(map[calendar.AnnualDate]bool)
		for _, d := range v.DueDates {
			if !d.Valid() {
				return fail("due_dates", fmt.Sprintf("%s is not a calendar day", d))
			}
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
		sort.Slice(dates, func(i, j int) bool {
			if dates[i].Month != dates[j].Month {
				return dates[i].Month < dates[j].Month
			}
			return dates[i].Day < dates[j].Day
		})
		v.DueDates = dates
		return v, nil

	case AnnualByNumOfDueDays:
		counters, err := s.validateFlexible(v, v.NumOfDueDays, 366, v.Counters)
		if err != nil {
			return nil, err
		}
		v.Counters = counters
		return v, nil

	case PeriodicCustom:
		if v.NumOfDaysInPeriod < 1 {
			return fail("num_of_days_in_period", "must be positive")
		}
		counters, err := s.validateFlexible(v, v.NumOfDueDays, v.NumOfDaysInPeriod, v.Counters)
		if err != nil {
			return nil, err
		}
		v.Counters = counters
		return v, nil

	case CustomDate:
		if len(v.DueDates) == 0 {
			return fail("due_dates", "no due days")
		}
		dates := make([]calendar.Date, 0, len(v.DueDates))
		seen := make(map[calendar.Date]bool)
		for _, d := range v.DueDates {
			if d.IsZero() {
				return fail("due_dates", "zero date")
			}
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		v.DueDates = dates
		return v, nil

	default:
		return fail("variant", fmt.Sprintf("unknown variant %T", v))
	}
}

func (s Schedule) validateFlexible(v Variant, numOfDueDays, periodLength int, c Counters) (Counters, error) {
	fail := func(field, reason string) (Counters, error) {
		return Counters{}, &ConfigError{Kind: v.Kind(), Field: field, Reason: reason}
	}
	if numOfDueDays < 1 {
		return fail("num_of_due_days", "must be positive")
	}
	if numOfDueDays > periodLength {
		return fail("num_of_due_days", fmt.Sprintf("%d exceeds period length %d", numOfDueDays, periodLength))
	}
	if c.NumOfCompletedDaysInCurrentPeriod < 0 {
		return fail("num_of_completed_days_in_current_period", "negative")
	}
	if c.NumOfDueDaysInFirstPeriod != nil {
		n := *c.NumOfDueDaysInFirstPeriod
		if n < 0 {
			return fail("num_of_due_days_in_first_period", "negative")
		}
		if n > numOfDueDays {
			return fail("num_of_due_days_in_first_period", fmt.Sprintf("%d exceeds num_of_due_days %d", n, numOfDueDays))
		}
		probe := Schedule{Options: s.Options, Variant: v}
		if first, ok := probe.clippedPeriod(s.StartDate); ok && n > first.NumOfDays() {
			return fail("num_of_due_days_in_first_period", fmt.Sprintf("%d exceeds the %d days of the first period", n, first.NumOfDays()))
		}
		c.NumOfDueDaysInFirstPeriod = &n
	}
	return c, nil
}

func normalizeWeekdays(days []time.Weekday) ([]time.Weekday, error) {
	if len(days) == 0 {
		return nil, errors.New("no due days")
	}
	seen := make(map[time.Weekday]bool)
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if !validWeekday(d) {
			return nil, fmt.Errorf("%d is not a weekday", int(d))
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func validWeekday(d time.Weekday) bool { return d >= time.Sunday && d <= time.Saturday }

func copyWeekday(d *time.Weekday) *time.Weekday {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func copyOptions(o Options) Options {
	if o.EndDate != nil {
		end := *o.EndDate
		o.EndDate = &end
	}
	if o.Vacation != nil {
		vac := *o.Vacation
		o.Vacation = &vac
	}
	return o
}
