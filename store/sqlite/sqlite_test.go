package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/routine"
	"github.com/routinely/routine-engine/schedule"
	"github.com/routinely/routine-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(month time.Month, day int) calendar.Date {
	return calendar.MustDate(2025, month, day)
}

func weekday(d time.Weekday) *time.Weekday { return &d }

func intPtr(n int) *int { return &n }

var start = date(time.March, 3)

func schedules() map[schedule.Kind]schedule.Schedule {
	end := date(time.December, 31)
	vacation := calendar.Period{Start: date(time.April, 7), End: date(time.April, 13)}
	opts := schedule.Options{StartDate: start, EndDate: &end, Vacation: &vacation, BacklogEnabled: true, CancelDuenessIfDoneAhead: true}
	return map[schedule.Kind]schedule.Schedule{
		schedule.KindEveryDay: schedule.MustNew(schedule.Options{StartDate: start}, schedule.EveryDay{}),
		schedule.KindWeeklyByDueDaysOfWeek: schedule.MustNew(opts, schedule.WeeklyByDueDaysOfWeek{
			DueDaysOfWeek: []time.Weekday{time.Tuesday, time.Saturday}, StartDayOfWeek: weekday(time.Sunday), PeriodSeparationEnabled: true,
		}),
		schedule.KindWeeklyByNumOfDueDays: schedule.MustNew(schedule.Options{StartDate: date(time.March, 5)}, schedule.WeeklyByNumOfDueDays{
			NumOfDueDays: 3, StartDayOfWeek: weekday(time.Monday),
			Counters: schedule.Counters{NumOfDueDaysInFirstPeriod: intPtr(2), NumOfCompletedDaysInCurrentPeriod: 1, CurrentPeriodStart: date(time.March, 10), AsOf: date(time.March, 12)},
		}),
		schedule.KindMonthlyByDueDatesIndices: schedule.MustNew(opts, schedule.MonthlyByDueDatesIndices{
			DueDatesIndices:       []int{1, 15, 31},
			WeekDaysMonthRelated:  []calendar.WeekDayMonthRelated{{DayOfWeek: time.Friday, Ordinal: calendar.Last}, {DayOfWeek: time.Monday, Ordinal: calendar.Second}},
			IncludeLastDayOfMonth: true,
			StartFromRoutineStart: true,
		}),
		schedule.KindMonthlyByNumOfDueDays: schedule.MustNew(opts, schedule.MonthlyByNumOfDueDays{NumOfDueDays: 8, StartFromRoutineStart: true}),
		schedule.KindAnnualByDueDates: schedule.MustNew(schedule.Options{StartDate: start}, schedule.AnnualByDueDates{
			DueDates: []calendar.AnnualDate{{Month: time.February, Day: 29}, {Month: time.December, Day: 24}},
		}),
		schedule.KindAnnualByNumOfDueDays: schedule.MustNew(schedule.Options{StartDate: start}, schedule.AnnualByNumOfDueDays{NumOfDueDays: 100}),
		schedule.KindPeriodicCustom: schedule.MustNew(opts, schedule.PeriodicCustom{
			NumOfDueDays: 2, NumOfDaysInPeriod: 9, PeriodSeparationEnabled: true,
		}),
		schedule.KindCustomDate: schedule.MustNew(schedule.Options{StartDate: start}, schedule.CustomDate{
			DueDates: []calendar.Date{date(time.March, 9), date(time.July, 1), calendar.MustDate(2026, time.January, 2)},
		}),
	}
}

// =============================================================================
// ROUTINES
// =============================================================================

func TestRoutine_RoundTripPreservesDueness(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	scheds := schedules()
	require.Len(t, scheds, len(schedule.Kinds))

	for kind, s := range scheds {
		t.Run(string(kind), func(t *testing.T) {
			session := 25 * time.Minute
			r := routine.Routine{
				ID:                    routine.RoutineID("r-" + string(kind)),
				Name:                  string(kind),
				Description:           "round trip",
				SessionDuration:       &session,
				DefaultCompletionTime: &routine.TimeOfDay{Hour: 7, Minute: 30},
				Progress:              decimal.RequireFromString("2.5"),
				ScheduleDeviation:     -2,
				Schedule:              s,
			}
			require.NoError(t, store.SaveRoutine(ctx, r))

			got, err := store.GetRoutine(ctx, r.ID)
			require.NoError(t, err)

			assert.Equal(t, r.Name, got.Name)
			assert.Equal(t, r.Description, got.Description)
			assert.Equal(t, r.SessionDuration, got.SessionDuration)
			assert.Equal(t, r.DefaultCompletionTime, got.DefaultCompletionTime)
			assert.True(t, r.Progress.Equal(got.Progress))
			assert.Equal(t, r.ScheduleDeviation, got.ScheduleDeviation)
			assert.Equal(t, s, got.Schedule)

			from, to := date(time.January, 1), calendar.MustDate(2026, time.March, 31)
			assert.Equal(t, s.DueDatesInRange(from, to), got.Schedule.DueDatesInRange(from, to))
		})
	}
}

func TestRoutine_SaveReplacesChildRows(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	r := routine.Routine{ID: "r1", Name: "Gym", Progress: decimal.Zero, Schedule: schedule.MustNew(
		schedule.Options{StartDate: start},
		schedule.WeeklyByDueDaysOfWeek{DueDaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
	)}
	require.NoError(t, store.SaveRoutine(ctx, r))

	r.Schedule = schedule.MustNew(schedule.Options{StartDate: start}, schedule.WeeklyByDueDaysOfWeek{DueDaysOfWeek: []time.Weekday{time.Sunday}})
	require.NoError(t, store.SaveRoutine(ctx, r))

	got, err := store.GetRoutine(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday}, got.Schedule.Variant.(schedule.WeeklyByDueDaysOfWeek).DueDaysOfWeek)
}

func TestRoutine_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, name := range []string{"Walk", "Read"} {
		r := routine.Routine{ID: routine.RoutineID(name), Name: name, Progress: decimal.Zero,
			Schedule: schedule.MustNew(schedule.Options{StartDate: start}, schedule.EveryDay{})}
		require.NoError(t, store.SaveRoutine(ctx, r))
	}
	require.NoError(t, store.InsertCompletion(ctx, "Read", routine.Completed(start)))

	list, err := store.ListRoutines(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Read", list[0].Name)

	require.NoError(t, store.DeleteRoutine(ctx, "Read"))
	_, err = store.GetRoutine(ctx, "Read")
	assert.True(t, routine.IsNotFound(err))
	assert.True(t, routine.IsNotFound(store.DeleteRoutine(ctx, "Read")))

	rec, err := store.RecordByDate(ctx, "Read", start)
	require.NoError(t, err)
	assert.Nil(t, rec, "history is deleted with the routine")
}

// =============================================================================
// COMPLETION HISTORY
// =============================================================================

func TestCompletionHistory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	r := routine.Routine{ID: "r1", Name: "Read", Progress: decimal.Zero,
		Schedule: schedule.MustNew(schedule.Options{StartDate: start}, schedule.EveryDay{})}
	require.NoError(t, store.SaveRoutine(ctx, r))

	half := routine.CompletionRecord{Date: date(time.March, 4), Status: routine.StatusCompleted, NumOfTimesCompleted: decimal.RequireFromString("0.5")}
	require.NoError(t, store.InsertCompletion(ctx, "r1", routine.Completed(start)))
	require.NoError(t, store.InsertCompletion(ctx, "r1", half))
	require.NoError(t, store.InsertCompletion(ctx, "r1", routine.Skipped(date(time.March, 5))))
	require.NoError(t, store.InsertCompletion(ctx, "r1", routine.Completed(date(time.March, 6))))
	require.NoError(t, store.InsertCompletion(ctx, "r1", routine.Undone(date(time.March, 6))))

	total, err := store.NumOfTimesCompletedInPeriod(ctx, "r1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.5", total.String())

	from := date(time.March, 4)
	total, err = store.NumOfTimesCompletedInPeriod(ctx, "r1", &from, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.5", total.String())

	last, err := store.LastCompletedRecord(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, date(time.March, 4), last.Date)

	rec, err := store.RecordByDate(ctx, "r1", date(time.March, 6))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, routine.StatusNotCompleted, rec.Status)

	recs, err := store.RecordsInRange(ctx, "r1", start, date(time.March, 5))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, routine.StatusSkipped, recs[2].Status)
}

func TestInsertCompletion_UnknownRoutineIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	err := store.InsertCompletion(ctx, "missing", routine.Completed(start))
	assert.True(t, routine.IsNotFound(err), "got %v", err)
	assert.False(t, routine.IsUnavailable(err))

	// Deleted between load and insert.
	r := routine.Routine{ID: "r1", Name: "Read", Progress: decimal.Zero,
		Schedule: schedule.MustNew(schedule.Options{StartDate: start}, schedule.EveryDay{})}
	require.NoError(t, store.SaveRoutine(ctx, r))
	require.NoError(t, store.DeleteRoutine(ctx, "r1"))

	acc := &routine.Accountant{History: store, Today: func() calendar.Date { return date(time.March, 10) }}
	_, err = acc.ApplyCompletion(ctx, r, routine.Completed(start))
	var notFound *routine.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, routine.RoutineID("r1"), notFound.ID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	r := routine.Routine{ID: "r1", Name: "Read", Progress: decimal.Zero,
		Schedule: schedule.MustNew(schedule.Options{StartDate: start}, schedule.EveryDay{})}
	require.NoError(t, store.SaveRoutine(ctx, r))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(g routine.Gateway) error {
		require.NoError(t, g.InsertCompletion(ctx, "r1", routine.Completed(start)))
		rec, err := g.RecordByDate(ctx, "r1", start)
		require.NoError(t, err)
		require.NotNil(t, rec, "visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := store.RecordByDate(ctx, "r1", start)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// =============================================================================
// ACCOUNTANT ON SQLITE
// =============================================================================

func TestAccountant_PersistsReplayedState(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	today := date(time.March, 12)
	acc := &routine.Accountant{History: store, Today: func() calendar.Date { return today }}

	r := routine.Routine{ID: "r1", Name: "Stretch", Progress: decimal.Zero, Schedule: schedule.MustNew(
		schedule.Options{StartDate: start},
		schedule.WeeklyByNumOfDueDays{NumOfDueDays: 2, StartDayOfWeek: weekday(time.Monday)},
	)}
	require.NoError(t, store.SaveRoutine(ctx, r))

	first, err := acc.ApplyCompletion(ctx, r, routine.Completed(date(time.March, 10)))
	require.NoError(t, err)
	second, err := acc.ApplyCompletion(ctx, first, routine.Completed(date(time.March, 10)))
	require.NoError(t, err)

	assert.Equal(t, -2, first.ScheduleDeviation, "first week had no completions")
	assert.Equal(t, first.ScheduleDeviation, second.ScheduleDeviation)

	stored, err := store.GetRoutine(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, -2, stored.ScheduleDeviation)
	assert.True(t, stored.Progress.Equal(decimal.NewFromInt(1)))

	counters, ok := stored.Schedule.Counters()
	require.True(t, ok)
	assert.Equal(t, 1, counters.NumOfCompletedDaysInCurrentPeriod)
	assert.Equal(t, date(time.March, 10), counters.CurrentPeriodStart)
	assert.Equal(t, today, counters.AsOf)
}
