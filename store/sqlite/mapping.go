package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// scheduleRow mirrors the schedules table.
type scheduleRow struct {
	Kind                              string
	StartDate                         string
	EndDate                           sql.NullString
	VacationStart                     sql.NullString
	VacationEnd                       sql.NullString
	BacklogEnabled                    bool
	CancelDuenessIfDoneAhead          bool
	StartDayOfWeek                    sql.NullInt64
	StartFromRoutineStart             bool
	IncludeLastDayOfMonth             bool
	PeriodSeparationEnabled           bool
	NumOfDueDays                      sql.NullInt64
	NumOfDueDaysInFirstPeriod         sql.NullInt64
	NumOfCompletedDaysInCurrentPeriod int64
	CurrentPeriodStart                sql.NullString
	CountersAsOf                      sql.NullString
	NumOfDaysInPeriod                 sql.NullInt64
}

// =============================================================================
// SCHEDULE -> ROW
// =============================================================================

func toRow(s schedule.Schedule) (scheduleRow, []int, []calendar.WeekDayMonthRelated) {
	row := scheduleRow{
		Kind:                     string(s.Kind()),
		StartDate:                s.StartDate.String(),
		BacklogEnabled:           s.BacklogEnabled,
		CancelDuenessIfDoneAhead: s.CancelDuenessIfDoneAhead,
		PeriodSeparationEnabled:  s.PeriodSeparationEnabled(),
	}
	if s.EndDate != nil {
		row.EndDate = nullString(s.EndDate.String())
	}
	if s.Vacation != nil {
		row.VacationStart = nullString(s.Vacation.Start.String())
		row.VacationEnd = nullString(s.Vacation.End.String())
	}
	if c, ok := s.Counters(); ok {
		row.NumOfDueDaysInFirstPeriod = nullInt(c.NumOfDueDaysInFirstPeriod)
		row.NumOfCompletedDaysInCurrentPeriod = int64(c.NumOfCompletedDaysInCurrentPeriod)
		if !c.CurrentPeriodStart.IsZero() {
			row.CurrentPeriodStart = nullString(c.CurrentPeriodStart.String())
		}
		if !c.AsOf.IsZero() {
			row.CountersAsOf = nullString(c.AsOf.String())
		}
	}

	var dueDates []int
	var related []calendar.WeekDayMonthRelated

	switch v := s.Variant.(type) {
	case schedule.EveryDay:

	case schedule.WeeklyByDueDaysOfWeek:
		row.StartDayOfWeek = nullWeekday(v.StartDayOfWeek)
		for _, d := range v.DueDaysOfWeek {
			dueDates = append(dueDates, int(d))
		}

	case schedule.WeeklyByNumOfDueDays:
		row.StartDayOfWeek = nullWeekday(v.StartDayOfWeek)
		row.NumOfDueDays = validInt(v.NumOfDueDays)

	case schedule.MonthlyByDueDatesIndices:
		row.IncludeLastDayOfMonth = v.IncludeLastDayOfMonth
		row.StartFromRoutineStart = v.StartFromRoutineStart
		dueDates = append(dueDates, v.DueDatesIndices...)
		related = append(related, v.WeekDaysMonthRelated...)

	case schedule.MonthlyByNumOfDueDays:
		row.StartFromRoutineStart = v.StartFromRoutineStart
		row.NumOfDueDays = validInt(v.NumOfDueDays)

	case schedule.AnnualByDueDates:
		row.StartFromRoutineStart = v.StartFromRoutineStart
		for _, d := range v.DueDates {
			dueDates = append(dueDates, int(d.Month)*100+d.Day)
		}

	case schedule.AnnualByNumOfDueDays:
		row.StartFromRoutineStart = v.StartFromRoutineStart
		row.NumOfDueDays = validInt(v.NumOfDueDays)

	case schedule.PeriodicCustom:
		row.NumOfDueDays = validInt(v.NumOfDueDays)
		row.NumOfDaysInPeriod = validInt(v.NumOfDaysInPeriod)

	case schedule.CustomDate:
		for _, d := range v.DueDates {
			dueDates = append(dueDates, d.Year()*10000+int(d.Month())*100+d.Day())
		}

	default:
		panic(fmt.Sprintf("sqlite: unhandled schedule variant %T", v))
	}

	return row, dueDates, related
}

// =============================================================================
// ROW -> SCHEDULE
// =============================================================================

func fromRow(row scheduleRow, dueDates []int, related []calendar.WeekDayMonthRelated) (schedule.Schedule, error) {
	var opts schedule.Options
	var err error

	if opts.StartDate, err = calendar.ParseDate(row.StartDate); err != nil {
		return schedule.Schedule{}, fmt.Errorf("start date: %w", err)
	}
	if opts.EndDate, err = parseNullDate(row.EndDate); err != nil {
		return schedule.Schedule{}, fmt.Errorf("end date: %w", err)
	}
	vacStart, err := parseNullDate(row.VacationStart)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("vacation start: %w", err)
	}
	vacEnd, err := parseNullDate(row.VacationEnd)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("vacation end: %w", err)
	}
	if vacStart != nil && vacEnd != nil {
		opts.Vacation = &calendar.Period{Start: *vacStart, End: *vacEnd}
	}
	opts.BacklogEnabled = row.BacklogEnabled
	opts.CancelDuenessIfDoneAhead = row.CancelDuenessIfDoneAhead

	counters := schedule.Counters{NumOfCompletedDaysInCurrentPeriod: int(row.NumOfCompletedDaysInCurrentPeriod)}
	if row.NumOfDueDaysInFirstPeriod.Valid {
		n := int(row.NumOfDueDaysInFirstPeriod.Int64)
		counters.NumOfDueDaysInFirstPeriod = &n
	}
	if start, err := parseNullDate(row.CurrentPeriodStart); err != nil {
		return schedule.Schedule{}, fmt.Errorf("current period start: %w", err)
	} else if start != nil {
		counters.CurrentPeriodStart = *start
	}
	if asOf, err := parseNullDate(row.CountersAsOf); err != nil {
		return schedule.Schedule{}, fmt.Errorf("counters as of: %w", err)
	} else if asOf != nil {
		counters.AsOf = *asOf
	}

	numOfDueDays := int(row.NumOfDueDays.Int64)
	var v schedule.Variant

	switch schedule.Kind(row.Kind) {
	case schedule.KindEveryDay:
		v = schedule.EveryDay{}

	case schedule.KindWeeklyByDueDaysOfWeek:
		days := make([]time.Weekday, 0, len(dueDates))
		for _, d := range dueDates {
			days = append(days, time.Weekday(d))
		}
		v = schedule.WeeklyByDueDaysOfWeek{
			DueDaysOfWeek:           days,
			StartDayOfWeek:          weekdayPtr(row.StartDayOfWeek),
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
		}

	case schedule.KindWeeklyByNumOfDueDays:
		v = schedule.WeeklyByNumOfDueDays{
			NumOfDueDays:            numOfDueDays,
			StartDayOfWeek:          weekdayPtr(row.StartDayOfWeek),
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
			Counters:                counters,
		}

	case schedule.KindMonthlyByDueDatesIndices:
		v = schedule.MonthlyByDueDatesIndices{
			DueDatesIndices:         dueDates,
			WeekDaysMonthRelated:    related,
			IncludeLastDayOfMonth:   row.IncludeLastDayOfMonth,
			StartFromRoutineStart:   row.StartFromRoutineStart,
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
		}

	case schedule.KindMonthlyByNumOfDueDays:
		v = schedule.MonthlyByNumOfDueDays{
			NumOfDueDays:            numOfDueDays,
			StartFromRoutineStart:   row.StartFromRoutineStart,
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
			Counters:                counters,
		}

	case schedule.KindAnnualByDueDates:
		dates := make([]calendar.AnnualDate, 0, len(dueDates))
		for _, d := range dueDates {
			dates = append(dates, calendar.AnnualDate{Month: time.Month(d / 100), Day: d % 100})
		}
		v = schedule.AnnualByDueDates{
			DueDates:                dates,
			StartFromRoutineStart:   row.StartFromRoutineStart,
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
		}

	case schedule.KindAnnualByNumOfDueDays:
		v = schedule.AnnualByNumOfDueDays{
			NumOfDueDays:            numOfDueDays,
			StartFromRoutineStart:   row.StartFromRoutineStart,
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
			Counters:                counters,
		}

	case schedule.KindPeriodicCustom:
		v = schedule.PeriodicCustom{
			NumOfDueDays:            numOfDueDays,
			NumOfDaysInPeriod:       int(row.NumOfDaysInPeriod.Int64),
			PeriodSeparationEnabled: row.PeriodSeparationEnabled,
			Counters:                counters,
		}

	case schedule.KindCustomDate:
		dates := make([]calendar.Date, 0, len(dueDates))
		for _, d := range dueDates {
			date, err := calendar.NewDate(d/10000, time.Month(d/100%100), d%100)
			if err != nil {
				return schedule.Schedule{}, fmt.Errorf("custom due date %d: %w", d, err)
			}
			dates = append(dates, date)
		}
		v = schedule.CustomDate{DueDates: dates}

	default:
		return schedule.Schedule{}, &schedule.ConfigError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", row.Kind)}
	}

	return schedule.New(opts, v)
}

func parseNullDate(s sql.NullString) (*calendar.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := calendar.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullWeekday(d *time.Weekday) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*d), Valid: true}
}

func weekdayPtr(n sql.NullInt64) *time.Weekday {
	if !n.Valid {
		return nil
	}
	d := time.Weekday(n.Int64)
	return &d
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func validInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
