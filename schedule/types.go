/*
Package schedule models routine schedules and evaluates when they are due.

PURPOSE:

	A routine owns exactly one Schedule. The schedule fixes the active window
	(start, optional end, optional vacation) and one Variant describing the
	recurrence. Everything in this package is a pure function of the Schedule
	value: no clock, no history, no I/O.

VARIANTS:

	Fixed-day variants pin dueness to calendar positions:
	  EveryDay, WeeklyByDueDaysOfWeek, MonthlyByDueDatesIndices,
	  AnnualByDueDates, CustomDate
	Flexible variants ask for N days per period, wherever they land:
	  WeeklyByNumOfDueDays, MonthlyByNumOfDueDays, AnnualByNumOfDueDays,
	  PeriodicCustom

	Variant is sealed: only this package can implement it, and every dispatch
	is a type switch over the nine structs below.

CONSTRUCTION:

	New validates once and fails with ErrInvalidScheduleConfig. Evaluation
	never re-validates.

SEE ALSO:
  - validate.go: construction rules
  - due.go: IsDue and DueDatesInRange
  - count.go: NumOfTimesDueInPeriod
*/
package schedule

import (
	"time"

	"github.com/routinely/routine-engine/calendar"
)

// Kind identifies a schedule variant. The values are stable and persisted.
type Kind string

const (
	KindEveryDay                 Kind = "every_day"
	KindWeeklyByDueDaysOfWeek    Kind = "weekly_by_due_days_of_week"
	KindWeeklyByNumOfDueDays     Kind = "weekly_by_num_of_due_days"
	KindMonthlyByDueDatesIndices Kind = "monthly_by_due_dates_indices"
	KindMonthlyByNumOfDueDays    Kind = "monthly_by_num_of_due_days"
	KindAnnualByDueDates         Kind = "annual_by_due_dates"
	KindAnnualByNumOfDueDays     Kind = "annual_by_num_of_due_days"
	KindPeriodicCustom           Kind = "periodic_custom"
	KindCustomDate               Kind = "custom_date"
)

// Kinds lists every variant kind.
var Kinds = []Kind{
	KindEveryDay,
	KindWeeklyByDueDaysOfWeek,
	KindWeeklyByNumOfDueDays,
	KindMonthlyByDueDatesIndices,
	KindMonthlyByNumOfDueDays,
	KindAnnualByDueDates,
	KindAnnualByNumOfDueDays,
	KindPeriodicCustom,
	KindCustomDate,
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Options holds the settings shared by every variant.
type Options struct {
	StartDate calendar.Date
	EndDate   *calendar.Date

	// Vacation suppresses dueness on every day of the period.
	Vacation *calendar.Period

	// BacklogEnabled lets missed due days be completed later.
	BacklogEnabled bool

	// CancelDuenessIfDoneAhead turns extra completions into credit that
	// cancels later due days.
	CancelDuenessIfDoneAhead bool
}

// Schedule is a validated schedule. Build it with New.
type Schedule struct {
	Options
	Variant Variant
}

// Kind returns the variant kind.
func (s Schedule) Kind() Kind { return s.Variant.Kind() }

// IsFlexible reports whether the schedule tracks a number of due days per period.
func (s Schedule) IsFlexible() bool {
	_, ok := s.Variant.(ByNumOfDueDays)
	return ok
}

// Counters returns the running counters of a flexible schedule.
func (s Schedule) Counters() (Counters, bool) {
	f, ok := s.Variant.(ByNumOfDueDays)
	if !ok {
		return Counters{}, false
	}
	return f.PeriodCounters(), true
}

// WithCounters returns a copy carrying new running counters. Fixed-day
// schedules are returned unchanged.
func (s Schedule) WithCounters(c Counters) Schedule {
	if f, ok := s.Variant.(ByNumOfDueDays); ok {
		s.Variant = f.WithCounters(c)
	}
	return s
}

// PeriodSeparationEnabled reports whether backlog and credit expire at period boundaries.
func (s Schedule) PeriodSeparationEnabled() bool {
	switch v := s.Variant.(type) {
	case WeeklyByDueDaysOfWeek:
		return v.PeriodSeparationEnabled
	case WeeklyByNumOfDueDays:
		return v.PeriodSeparationEnabled
	case MonthlyByDueDatesIndices:
		return v.PeriodSeparationEnabled
	case MonthlyByNumOfDueDays:
		return v.PeriodSeparationEnabled
	case AnnualByDueDates:
		return v.PeriodSeparationEnabled
	case AnnualByNumOfDueDays:
		return v.PeriodSeparationEnabled
	case PeriodicCustom:
		return v.PeriodSeparationEnabled
	default:
		return false
	}
}

// PeriodConfig returns how the schedule slices time into periods.
func (s Schedule) PeriodConfig() calendar.PeriodConfig {
	switch v := s.Variant.(type) {
	case WeeklyByDueDaysOfWeek:
		return s.weekConfig(v.StartDayOfWeek)
	case WeeklyByNumOfDueDays:
		return s.weekConfig(v.StartDayOfWeek)
	case MonthlyByDueDatesIndices:
		return s.anchoredConfig(calendar.PeriodMonth, v.StartFromRoutineStart)
	case MonthlyByNumOfDueDays:
		return s.anchoredConfig(calendar.PeriodMonth, v.StartFromRoutineStart)
	case AnnualByDueDates:
		return s.anchoredConfig(calendar.PeriodYear, v.StartFromRoutineStart)
	case AnnualByNumOfDueDays:
		return s.anchoredConfig(calendar.PeriodYear, v.StartFromRoutineStart)
	case PeriodicCustom:
		return calendar.PeriodConfig{Kind: calendar.PeriodCustom, Anchor: s.StartDate, NumOfDays: v.NumOfDaysInPeriod}
	default:
		return calendar.PeriodConfig{Kind: calendar.PeriodNone}
	}
}

func (s Schedule) weekConfig(start *time.Weekday) calendar.PeriodConfig {
	day := s.StartDate.Weekday()
	if start != nil {
		day = *start
	}
	return calendar.PeriodConfig{Kind: calendar.PeriodWeek, StartDayOfWeek: day}
}

func (s Schedule) anchoredConfig(kind calendar.PeriodKind, fromStart bool) calendar.PeriodConfig {
	pc := calendar.PeriodConfig{Kind: kind}
	if fromStart {
		pc.Anchor = s.StartDate
	}
	return pc
}

// =============================================================================
// VARIANTS
// =============================================================================

// Variant is the closed set of recurrence rules.
type Variant interface {
	Kind() Kind
	sealed()
}

// ByNumOfDueDays is implemented by the flexible variants.
type ByNumOfDueDays interface {
	Variant
	DueDaysPerPeriod() int
	PeriodCounters() Counters
	WithCounters(Counters) Variant
}

// Counters is the running state of a flexible schedule.
type Counters struct {
	// NumOfDueDaysInFirstPeriod overrides the target of a partial first period.
	NumOfDueDaysInFirstPeriod *int

	// NumOfCompletedDaysInCurrentPeriod counts the completed and skipped
	// days of the current period. It resets to 0 at every period start.
	NumOfCompletedDaysInCurrentPeriod int

	// CurrentPeriodStart is the first day of the period the completed
	// counter refers to. Zero until the first replay.
	CurrentPeriodStart calendar.Date

	// AsOf is the day the counters were computed on. Flexible dueness is
	// evaluated relative to it; zero means no reference day.
	AsOf calendar.Date
}

type EveryDay struct{}

type WeeklyByDueDaysOfWeek struct {
	DueDaysOfWeek           []time.Weekday
	StartDayOfWeek          *time.Weekday
	PeriodSeparationEnabled bool
}

type WeeklyByNumOfDueDays struct {
	NumOfDueDays            int
	StartDayOfWeek          *time.Weekday
	PeriodSeparationEnabled bool
	Counters                Counters
}

type MonthlyByDueDatesIndices struct {
	// DueDatesIndices are days of the month, 1..31. Indices past the end of a
	// short month do not match; use IncludeLastDayOfMonth for that.
	DueDatesIndices         []int
	WeekDaysMonthRelated    []calendar.WeekDayMonthRelated
	IncludeLastDayOfMonth   bool
	StartFromRoutineStart   bool
	PeriodSeparationEnabled bool
}

type MonthlyByNumOfDueDays struct {
	NumOfDueDays            int
	StartFromRoutineStart   bool
	PeriodSeparationEnabled bool
	Counters                Counters
}

type AnnualByDueDates struct {
	DueDates                []calendar.AnnualDate
	StartFromRoutineStart   bool
	PeriodSeparationEnabled bool
}

type AnnualByNumOfDueDays struct {
	NumOfDueDays            int
	StartFromRoutineStart   bool
	PeriodSeparationEnabled bool
	Counters                Counters
}

type PeriodicCustom struct {
	NumOfDueDays            int
	NumOfDaysInPeriod       int
	PeriodSeparationEnabled bool
	Counters                Counters
}

type CustomDate struct {
	DueDates []calendar.Date
}

func (EveryDay) Kind() Kind                 { return KindEveryDay }
func (WeeklyByDueDaysOfWeek) Kind() Kind    { return KindWeeklyByDueDaysOfWeek }
func (WeeklyByNumOfDueDays) Kind() Kind     { return KindWeeklyByNumOfDueDays }
func (MonthlyByDueDatesIndices) Kind() Kind { return KindMonthlyByDueDatesIndices }
func (MonthlyByNumOfDueDays) Kind() Kind    { return KindMonthlyByNumOfDueDays }
func (AnnualByDueDates) Kind() Kind         { return KindAnnualByDueDates }
func (AnnualByNumOfDueDays) Kind() Kind     { return KindAnnualByNumOfDueDays }
func (PeriodicCustom) Kind() Kind           { return KindPeriodicCustom }
func (CustomDate) Kind() Kind               { return KindCustomDate }

func (EveryDay) sealed()                 {}
func (WeeklyByDueDaysOfWeek) sealed()    {}
func (WeeklyByNumOfDueDays) sealed()     {}
func (MonthlyByDueDatesIndices) sealed() {}
func (MonthlyByNumOfDueDays) sealed()    {}
func (AnnualByDueDates) sealed()         {}
func (AnnualByNumOfDueDays) sealed()     {}
func (PeriodicCustom) sealed()           {}
func (CustomDate) sealed()               {}

func (v WeeklyByNumOfDueDays) DueDaysPerPeriod() int  { return v.NumOfDueDays }
func (v MonthlyByNumOfDueDays) DueDaysPerPeriod() int { return v.NumOfDueDays }
func (v AnnualByNumOfDueDays) DueDaysPerPeriod() int  { return v.NumOfDueDays }
func (v PeriodicCustom) DueDaysPerPeriod() int        { return v.NumOfDueDays }

func (v WeeklyByNumOfDueDays) PeriodCounters() Counters  { return v.Counters }
func (v MonthlyByNumOfDueDays) PeriodCounters() Counters { return v.Counters }
func (v AnnualByNumOfDueDays) PeriodCounters() Counters  { return v.Counters }
func (v PeriodicCustom) PeriodCounters() Counters        { return v.Counters }

func (v WeeklyByNumOfDueDays) WithCounters(c Counters) Variant  { v.Counters = c; return v }
func (v MonthlyByNumOfDueDays) WithCounters(c Counters) Variant { v.Counters = c; return v }
func (v AnnualByNumOfDueDays) WithCounters(c Counters) Variant  { v.Counters = c; return v }
func (v PeriodicCustom) WithCounters(c Counters) Variant        { v.Counters = c; return v }
