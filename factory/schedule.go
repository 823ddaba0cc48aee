/*
Package factory provides JSON to Go schedule conversion.

PURPOSE:

	Converts JSON schedule definitions into schedule.Schedule values and back.
	The HTTP API, the demo scenarios and routinectl all read schedules through
	this package, so there is one JSON shape everywhere.

JSON SCHEMA:

	{
	  "type": "weekly_by_num_of_due_days",
	  "start_date": "2025-03-03",
	  "end_date": "2025-12-31",
	  "vacation": {"start": "2025-08-01", "end": "2025-08-14"},
	  "backlog_enabled": true,
	  "cancel_dueness_if_done_ahead": false,
	  "num_of_due_days": 3,
	  "start_day_of_week": "monday",
	  "period_separation_enabled": true
	}

	Variant fields:
	  due_days_of_week          weekly_by_due_days_of_week ("monday", ...)
	  due_dates_indices         monthly_by_due_dates_indices (1..31)
	  week_days_month_related   monthly_by_due_dates_indices
	                            ([{"day_of_week": "tuesday", "week": "second"}])
	  include_last_day_of_month monthly_by_due_dates_indices
	  annual_due_dates          annual_by_due_dates ("MM-DD")
	  due_dates                 custom_date ("YYYY-MM-DD")
	  num_of_days_in_period     periodic_custom
	  num_of_due_days           every *_num_of_due_days variant and periodic_custom

USAGE:

	f := factory.NewScheduleFactory()
	s, err := f.ParseSchedule(jsonString)

SEE ALSO:
  - schedule/types.go: Schedule type definition
  - api/scenarios.go: demo routines defined in this format
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a schedule.
type ScheduleJSON struct {
	Type                     string         `json:"type"`
	StartDate                calendar.Date  `json:"start_date"`
	EndDate                  *calendar.Date `json:"end_date,omitempty"`
	Vacation                 *PeriodJSON    `json:"vacation,omitempty"`
	BacklogEnabled           bool           `json:"backlog_enabled,omitempty"`
	CancelDuenessIfDoneAhead bool           `json:"cancel_dueness_if_done_ahead,omitempty"`

	DueDaysOfWeek         []string        `json:"due_days_of_week,omitempty"`
	StartDayOfWeek        string          `json:"start_day_of_week,omitempty"`
	DueDatesIndices       []int           `json:"due_dates_indices,omitempty"`
	WeekDaysMonthRelated  []WeekDayJSON   `json:"week_days_month_related,omitempty"`
	IncludeLastDayOfMonth bool            `json:"include_last_day_of_month,omitempty"`
	AnnualDueDates        []string        `json:"annual_due_dates,omitempty"`
	DueDates              []calendar.Date `json:"due_dates,omitempty"`
	StartFromRoutineStart bool            `json:"start_from_routine_start,omitempty"`
	PeriodSeparation      bool            `json:"period_separation_enabled,omitempty"`
	NumOfDueDays          int             `json:"num_of_due_days,omitempty"`
	NumOfDaysInPeriod     int             `json:"num_of_days_in_period,omitempty"`
	Counters              *CountersJSON   `json:"counters,omitempty"`
}

// PeriodJSON is an inclusive date range.
type PeriodJSON struct {
	Start calendar.Date `json:"start"`
	End   calendar.Date `json:"end"`
}

// WeekDayJSON is a day such as the second Tuesday of the month.
type WeekDayJSON struct {
	DayOfWeek string `json:"day_of_week"`
	Week      string `json:"week"` // first..fifth, last
}

// CountersJSON is the running state of a flexible schedule.
type CountersJSON struct {
	NumOfDueDaysInFirstPeriod         *int           `json:"num_of_due_days_in_first_period,omitempty"`
	NumOfCompletedDaysInCurrentPeriod int            `json:"num_of_completed_days_in_current_period"`
	CurrentPeriodStart                *calendar.Date `json:"current_period_start,omitempty"`
	AsOf                              *calendar.Date `json:"as_of,omitempty"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to Go values.
type ScheduleFactory struct{}

// NewScheduleFactory creates a new schedule factory.
func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a JSON string into a Schedule.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (schedule.Schedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON validates sj and builds the Schedule.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (schedule.Schedule, error) {
	opts := schedule.Options{
		StartDate:                sj.StartDate,
		EndDate:                  sj.EndDate,
		BacklogEnabled:           sj.BacklogEnabled,
		CancelDuenessIfDoneAhead: sj.CancelDuenessIfDoneAhead,
	}
	if sj.Vacation != nil {
		opts.Vacation = &calendar.Period{Start: sj.Vacation.Start, End: sj.Vacation.End}
	}

	kind := schedule.Kind(sj.Type)
	fail := func(field string, err error) (schedule.Schedule, error) {
		return schedule.Schedule{}, &schedule.ConfigError{Kind: kind, Field: field, Reason: err.Error()}
	}

	startDay, err := parseOptionalWeekday(sj.StartDayOfWeek)
	if err != nil {
		return fail("start_day_of_week", err)
	}
	counters, err := parseCounters(sj.Counters)
	if err != nil {
		return fail("counters", err)
	}

	var v schedule.Variant
	switch kind {
	case schedule.KindEveryDay:
		v = schedule.EveryDay{}

	case schedule.KindWeeklyByDueDaysOfWeek:
		days := make([]time.Weekday, 0, len(sj.DueDaysOfWeek))
		for _, name := range sj.DueDaysOfWeek {
			d, err := ParseWeekday(name)
			if err != nil {
				return fail("due_days_of_week", err)
			}
			days = append(days, d)
		}
		v = schedule.WeeklyByDueDaysOfWeek{DueDaysOfWeek: days, StartDayOfWeek: startDay, PeriodSeparationEnabled: sj.PeriodSeparation}

	case schedule.KindWeeklyByNumOfDueDays:
		v = schedule.WeeklyByNumOfDueDays{NumOfDueDays: sj.NumOfDueDays, StartDayOfWeek: startDay, PeriodSeparationEnabled: sj.PeriodSeparation, Counters: counters}

	case schedule.KindMonthlyByDueDatesIndices:
		related := make([]calendar.WeekDayMonthRelated, 0, len(sj.WeekDaysMonthRelated))
		for _, w := range sj.WeekDaysMonthRelated {
			d, err := ParseWeekday(w.DayOfWeek)
			if err != nil {
				return fail("week_days_month_related", err)
			}
			o, err := ParseOrdinal(w.Week)
			if err != nil {
				return fail("week_days_month_related", err)
			}
			related = append(related, calendar.WeekDayMonthRelated{DayOfWeek: d, Ordinal: o})
		}
		v = schedule.MonthlyByDueDatesIndices{
			DueDatesIndices:         sj.DueDatesIndices,
			WeekDaysMonthRelated:    related,
			IncludeLastDayOfMonth:   sj.IncludeLastDayOfMonth,
			StartFromRoutineStart:   sj.StartFromRoutineStart,
			PeriodSeparationEnabled: sj.PeriodSeparation,
		}

	case schedule.KindMonthlyByNumOfDueDays:
		v = schedule.MonthlyByNumOfDueDays{NumOfDueDays: sj.NumOfDueDays, StartFromRoutineStart: sj.StartFromRoutineStart, PeriodSeparationEnabled: sj.PeriodSeparation, Counters: counters}

	case schedule.KindAnnualByDueDates:
		dates := make([]calendar.AnnualDate, 0, len(sj.AnnualDueDates))
		for _, s := range sj.AnnualDueDates {
			a, err := ParseAnnualDate(s)
			if err != nil {
				return fail("annual_due_dates", err)
			}
			dates = append(dates, a)
		}
		v = schedule.AnnualByDueDates{DueDates: dates, StartFromRoutineStart: sj.StartFromRoutineStart, PeriodSeparationEnabled: sj.PeriodSeparation}

	case schedule.KindAnnualByNumOfDueDays:
		v = schedule.AnnualByNumOfDueDays{NumOfDueDays: sj.NumOfDueDays, StartFromRoutineStart: sj.StartFromRoutineStart, PeriodSeparationEnabled: sj.PeriodSeparation, Counters: counters}

	case schedule.KindPeriodicCustom:
		v = schedule.PeriodicCustom{NumOfDueDays: sj.NumOfDueDays, NumOfDaysInPeriod: sj.NumOfDaysInPeriod, PeriodSeparationEnabled: sj.PeriodSeparation, Counters: counters}

	case schedule.KindCustomDate:
		v = schedule.CustomDate{DueDates: sj.DueDates}

	default:
		return fail("type", fmt.Errorf("unknown schedule type %q", sj.Type))
	}

	return schedule.New(opts, v)
}

// ToJSON converts a Schedule to ScheduleJSON.
func (f *ScheduleFactory) ToJSON(s schedule.Schedule) ScheduleJSON {
	sj := ScheduleJSON{
		Type:                     string(s.Kind()),
		StartDate:                s.StartDate,
		EndDate:                  s.EndDate,
		BacklogEnabled:           s.BacklogEnabled,
		CancelDuenessIfDoneAhead: s.CancelDuenessIfDoneAhead,
		PeriodSeparation:         s.PeriodSeparationEnabled(),
	}
	if s.Vacation != nil {
		sj.Vacation = &PeriodJSON{Start: s.Vacation.Start, End: s.Vacation.End}
	}
	if c, ok := s.Counters(); ok {
		cj := &CountersJSON{
			NumOfDueDaysInFirstPeriod:         c.NumOfDueDaysInFirstPeriod,
			NumOfCompletedDaysInCurrentPeriod: c.NumOfCompletedDaysInCurrentPeriod,
		}
		if !c.CurrentPeriodStart.IsZero() {
			start := c.CurrentPeriodStart
			cj.CurrentPeriodStart = &start
		}
		if !c.AsOf.IsZero() {
			asOf := c.AsOf
			cj.AsOf = &asOf
		}
		sj.Counters = cj
	}

	switch v := s.Variant.(type) {
	case schedule.EveryDay:

	case schedule.WeeklyByDueDaysOfWeek:
		for _, d := range v.DueDaysOfWeek {
			sj.DueDaysOfWeek = append(sj.DueDaysOfWeek, weekdayName(d))
		}
		sj.StartDayOfWeek = optionalWeekdayName(v.StartDayOfWeek)

	case schedule.WeeklyByNumOfDueDays:
		sj.NumOfDueDays = v.NumOfDueDays
		sj.StartDayOfWeek = optionalWeekdayName(v.StartDayOfWeek)

	case schedule.MonthlyByDueDatesIndices:
		sj.DueDatesIndices = v.DueDatesIndices
		for _, w := range v.WeekDaysMonthRelated {
			sj.WeekDaysMonthRelated = append(sj.WeekDaysMonthRelated, WeekDayJSON{DayOfWeek: weekdayName(w.DayOfWeek), Week: w.Ordinal.String()})
		}
		sj.IncludeLastDayOfMonth = v.IncludeLastDayOfMonth
		sj.StartFromRoutineStart = v.StartFromRoutineStart

	case schedule.MonthlyByNumOfDueDays:
		sj.NumOfDueDays = v.NumOfDueDays
		sj.StartFromRoutineStart = v.StartFromRoutineStart

	case schedule.AnnualByDueDates:
		for _, a := range v.DueDates {
			sj.AnnualDueDates = append(sj.AnnualDueDates, a.String())
		}
		sj.StartFromRoutineStart = v.StartFromRoutineStart

	case schedule.AnnualByNumOfDueDays:
		sj.NumOfDueDays = v.NumOfDueDays
		sj.StartFromRoutineStart = v.StartFromRoutineStart

	case schedule.PeriodicCustom:
		sj.NumOfDueDays = v.NumOfDueDays
		sj.NumOfDaysInPeriod = v.NumOfDaysInPeriod

	case schedule.CustomDate:
		sj.DueDates = v.DueDates
	}

	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// ParseWeekday accepts English day names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func parseOptionalWeekday(s string) (*time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	d, err := ParseWeekday(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func weekdayName(d time.Weekday) string { return strings.ToLower(d.String()) }

func optionalWeekdayName(d *time.Weekday) string {
	if d == nil {
		return ""
	}
	return weekdayName(*d)
}

// ParseOrdinal accepts first..fifth and last.
func ParseOrdinal(s string) (calendar.WeekOrdinal, error) {
	for _, o := range []calendar.WeekOrdinal{calendar.First, calendar.Second, calendar.Third, calendar.Fourth, calendar.Fifth, calendar.Last} {
		if strings.EqualFold(s, o.String()) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown week %q", s)
}

// ParseAnnualDate parses "MM-DD".
func ParseAnnualDate(s string) (calendar.AnnualDate, error) {
	var month, day int
	if _, err := fmt.Sscanf(s, "%d-%d", &month, &day); err != nil {
		return calendar.AnnualDate{}, fmt.Errorf("annual date %q: want MM-DD", s)
	}
	a := calendar.AnnualDate{Month: time.Month(month), Day: day}
	if !a.Valid() {
		return calendar.AnnualDate{}, fmt.Errorf("annual date %q is not a calendar day", s)
	}
	return a, nil
}

func parseCounters(cj *CountersJSON) (schedule.Counters, error) {
	if cj == nil {
		return schedule.Counters{}, nil
	}
	c := schedule.Counters{
		NumOfDueDaysInFirstPeriod:         cj.NumOfDueDaysInFirstPeriod,
		NumOfCompletedDaysInCurrentPeriod: cj.NumOfCompletedDaysInCurrentPeriod,
	}
	if cj.CurrentPeriodStart != nil {
		c.CurrentPeriodStart = *cj.CurrentPeriodStart
	}
	if cj.AsOf != nil {
		c.AsOf = *cj.AsOf
	}
	if c.NumOfCompletedDaysInCurrentPeriod < 0 {
		return c, fmt.Errorf("negative completed count")
	}
	return c, nil
}
