package schedule_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) calendar.Date {
	return calendar.MustDate(year, month, day)
}

func weekday(d time.Weekday) *time.Weekday { return &d }

func intPtr(n int) *int { return &n }

func datePtr(d calendar.Date) *calendar.Date { return &d }

// 2025-03-03 is a Monday.
var monday = date(2025, time.March, 3)

func variants() map[schedule.Kind]schedule.Variant {
	return map[schedule.Kind]schedule.Variant{
		schedule.KindEveryDay:              schedule.EveryDay{},
		schedule.KindWeeklyByDueDaysOfWeek: schedule.WeeklyByDueDaysOfWeek{DueDaysOfWeek: []time.Weekday{time.Monday, time.Friday}},
		schedule.KindWeeklyByNumOfDueDays:  schedule.WeeklyByNumOfDueDays{NumOfDueDays: 3},
		schedule.KindMonthlyByDueDatesIndices: schedule.MonthlyByDueDatesIndices{
			DueDatesIndices:       []int{1, 15},
			IncludeLastDayOfMonth: true,
		},
		schedule.KindMonthlyByNumOfDueDays: schedule.MonthlyByNumOfDueDays{NumOfDueDays: 10},
		schedule.KindAnnualByDueDates: schedule.AnnualByDueDates{DueDates: []calendar.AnnualDate{
			{Month: time.March, Day: 10}, {Month: time.March, Day: 20},
		}},
		schedule.KindAnnualByNumOfDueDays: schedule.AnnualByNumOfDueDays{NumOfDueDays: 30},
		schedule.KindPeriodicCustom:       schedule.PeriodicCustom{NumOfDueDays: 3, NumOfDaysInPeriod: 5},
		schedule.KindCustomDate: schedule.CustomDate{DueDates: []calendar.Date{
			date(2025, time.March, 4), date(2025, time.March, 12), date(2025, time.April, 2),
		}},
	}
}

func TestVariants_CoverEveryKind(t *testing.T) {
	vs := variants()
	require.Len(t, vs, len(schedule.Kinds))
	for _, k := range schedule.Kinds {
		v, ok := vs[k]
		require.True(t, ok, "missing fixture for %s", k)
		assert.Equal(t, k, v.Kind())
	}
}

// =============================================================================
// VACATION AND BOUNDS
// =============================================================================

func TestEveryDay_DueInsideWindowOutsideVacation(t *testing.T) {
	vacation := calendar.Period{Start: date(2025, time.March, 10), End: date(2025, time.March, 14)}
	s := schedule.MustNew(schedule.Options{
		StartDate: monday,
		EndDate:   datePtr(date(2025, time.March, 31)),
		Vacation:  &vacation,
	}, schedule.EveryDay{})

	for d := date(2025, time.February, 20); d.BeforeOrEqual(date(2025, time.April, 10)); d = d.AddDays(1) {
		inWindow := s.Active(d)
		want := inWindow && !vacation.Contains(d)
		assert.Equal(t, want, s.IsDue(d), "date %s", d)
	}
}

func TestVacation_SuppressesEveryVariant(t *testing.T) {
	vacation := calendar.Period{Start: date(2025, time.March, 8), End: date(2025, time.March, 22)}
	for kind, v := range variants() {
		t.Run(string(kind), func(t *testing.T) {
			s := schedule.MustNew(schedule.Options{StartDate: monday, Vacation: &vacation}, v)
			for _, d := range vacation.Days() {
				assert.False(t, s.IsDue(d), "due on vacation day %s", d)
			}
			assert.Empty(t, s.DueDatesInRange(vacation.Start, vacation.End))
		})
	}
}

func TestNothingDueBeforeStartOrAfterEnd(t *testing.T) {
	end := date(2025, time.April, 30)
	for kind, v := range variants() {
		t.Run(string(kind), func(t *testing.T) {
			s := schedule.MustNew(schedule.Options{StartDate: monday, EndDate: &end}, v)
			assert.Empty(t, s.DueDatesInRange(date(2025, time.January, 1), monday.AddDays(-1)))
			assert.Empty(t, s.DueDatesInRange(end.AddDays(1), date(2025, time.December, 31)))
		})
	}
}

// =============================================================================
// DUE DATES IN RANGE
// =============================================================================

func TestWeeklyByDueDaysOfWeek_MondayWednesday(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.WeeklyByDueDaysOfWeek{
		DueDaysOfWeek: []time.Weekday{time.Wednesday, time.Monday},
	})

	got := s.DueDatesInRange(monday, monday.AddDays(13))

	require.Len(t, got, 4)
	want := []time.Weekday{time.Monday, time.Wednesday, time.Monday, time.Wednesday}
	for i, d := range got {
		assert.Equal(t, want[i], d.Weekday())
	}
	assert.Equal(t, []calendar.Date{
		date(2025, time.March, 3), date(2025, time.March, 5),
		date(2025, time.March, 10), date(2025, time.March, 12),
	}, got)
}

func TestDueDatesInRange_MonotonicAndIdempotent(t *testing.T) {
	for kind, v := range variants() {
		t.Run(string(kind), func(t *testing.T) {
			s := schedule.MustNew(schedule.Options{StartDate: date(2025, time.February, 26)}, v)
			from := date(2025, time.March, 1)

			short := s.DueDatesInRange(from, date(2025, time.March, 20))
			again := s.DueDatesInRange(from, date(2025, time.March, 20))
			long := s.DueDatesInRange(from, date(2025, time.May, 31))

			assert.Equal(t, short, again)
			require.GreaterOrEqual(t, len(long), len(short))
			assert.Equal(t, short, long[:len(short)])

			for i := 1; i < len(long); i++ {
				assert.True(t, long[i-1].Before(long[i]), "not ascending at %d", i)
			}
			for _, d := range long {
				assert.True(t, s.IsDue(d), "listed date %s is not due", d)
			}
		})
	}
}

func TestDueDatesInRange_EmptyRange(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.EveryDay{})
	assert.Empty(t, s.DueDatesInRange(monday.AddDays(5), monday))
}

func TestMonthlyByDueDatesIndices(t *testing.T) {
	start := date(2025, time.January, 1)

	t.Run("index past month end does not match", func(t *testing.T) {
		s := schedule.MustNew(schedule.Options{StartDate: start}, schedule.MonthlyByDueDatesIndices{
			DueDatesIndices: []int{31},
		})
		assert.Empty(t, s.DueDatesInRange(date(2025, time.February, 1), date(2025, time.February, 28)))
		assert.True(t, s.IsDue(date(2025, time.March, 31)))
	})

	t.Run("last day of month", func(t *testing.T) {
		s := schedule.MustNew(schedule.Options{StartDate: start}, schedule.MonthlyByDueDatesIndices{
			IncludeLastDayOfMonth: true,
		})
		assert.Equal(t, []calendar.Date{date(2025, time.February, 28), date(2025, time.March, 31)},
			s.DueDatesInRange(date(2025, time.February, 1), date(2025, time.March, 31)))
	})

	t.Run("week relative days", func(t *testing.T) {
		s := schedule.MustNew(schedule.Options{StartDate: start}, schedule.MonthlyByDueDatesIndices{
			WeekDaysMonthRelated: []calendar.WeekDayMonthRelated{
				{DayOfWeek: time.Tuesday, Ordinal: calendar.Second},
				{DayOfWeek: time.Friday, Ordinal: calendar.Last},
			},
		})
		assert.Equal(t, []calendar.Date{date(2025, time.March, 11), date(2025, time.March, 28)},
			s.DueDatesInRange(date(2025, time.March, 1), date(2025, time.March, 31)))
	})
}

func TestAnnualByDueDates_LeapDay(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: date(2023, time.January, 1)}, schedule.AnnualByDueDates{
		DueDates: []calendar.AnnualDate{{Month: time.February, Day: 29}, {Month: time.July, Day: 4}},
	})

	got := s.DueDatesInRange(date(2023, time.January, 1), date(2024, time.December, 31))
	assert.Equal(t, []calendar.Date{
		date(2023, time.July, 4), date(2024, time.February, 29), date(2024, time.July, 4),
	}, got)
}

func TestCustomDate(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.CustomDate{DueDates: []calendar.Date{
		date(2025, time.March, 20), date(2025, time.March, 5), date(2025, time.March, 5), date(2025, time.February, 1),
	}})

	assert.True(t, s.IsDue(date(2025, time.March, 5)))
	assert.False(t, s.IsDue(date(2025, time.March, 6)))
	assert.False(t, s.IsDue(date(2025, time.February, 1)), "before start")
	assert.Equal(t, []calendar.Date{date(2025, time.March, 5), date(2025, time.March, 20)},
		s.DueDatesInRange(date(2025, time.January, 1), date(2025, time.December, 31)))
}

// =============================================================================
// FLEXIBLE VARIANTS
// =============================================================================

func TestWeeklyByNumOfDueDays_NoReferenceDayEveryEligibleDayIsDue(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.WeeklyByNumOfDueDays{
		NumOfDueDays:   3,
		StartDayOfWeek: weekday(time.Monday),
	})

	got := s.DueDatesInRange(monday, monday.AddDays(13))
	assert.Len(t, got, 14)
}

func TestWeeklyByNumOfDueDays_RelativeToReferenceDay(t *testing.T) {
	thursday := date(2025, time.March, 13)
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.WeeklyByNumOfDueDays{
		NumOfDueDays:   3,
		StartDayOfWeek: weekday(time.Monday),
		Counters: schedule.Counters{
			NumOfCompletedDaysInCurrentPeriod: 1,
			CurrentPeriodStart:                date(2025, time.March, 10),
			AsOf:                              thursday,
		},
	})

	got := s.DueDatesInRange(monday, date(2025, time.March, 18))
	assert.Equal(t, []calendar.Date{
		// closed week: the last three days
		date(2025, time.March, 7), date(2025, time.March, 8), date(2025, time.March, 9),
		// current week: from the reference day on, target not met yet
		thursday, date(2025, time.March, 14), date(2025, time.March, 15), date(2025, time.March, 16),
		// later weeks: every day
		date(2025, time.March, 17), date(2025, time.March, 18),
	}, got)

	for _, d := range got {
		assert.True(t, s.IsDue(d), "listed date %s is not due", d)
	}
	assert.False(t, s.IsDue(date(2025, time.March, 12)), "current week before the reference day")
	assert.False(t, s.IsDue(date(2025, time.March, 6)), "closed week outside the last three days")
}

func TestWeeklyByNumOfDueDays_FirstPeriodOverride(t *testing.T) {
	wednesday := date(2025, time.March, 5)
	s := schedule.MustNew(schedule.Options{StartDate: wednesday}, schedule.WeeklyByNumOfDueDays{
		NumOfDueDays:   3,
		StartDayOfWeek: weekday(time.Monday),
		Counters: schedule.Counters{
			NumOfDueDaysInFirstPeriod: intPtr(1),
			CurrentPeriodStart:        date(2025, time.March, 10),
			AsOf:                      date(2025, time.March, 10),
		},
	})

	got := s.DueDatesInRange(wednesday, date(2025, time.March, 12))
	assert.Equal(t, []calendar.Date{
		date(2025, time.March, 9),
		date(2025, time.March, 10), date(2025, time.March, 11), date(2025, time.March, 12),
	}, got)
}

func TestFlexibleDueness_ClosedPeriodIgnoresDoneCount(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.PeriodicCustom{NumOfDueDays: 2, NumOfDaysInPeriod: 5})
	p := calendar.Period{Start: monday, End: monday.AddDays(4)}

	closed := s.FlexibleDueness(p, 2, 2, monday.AddDays(10))
	future := s.FlexibleDueness(p, 2, 2, monday.AddDays(-1))
	current := s.FlexibleDueness(p, 2, 2, monday.AddDays(1))
	for i, d := range p.Days() {
		assert.Equal(t, i >= 3, closed(d), "closed %s", d)
		assert.True(t, future(d), "future %s", d)
		assert.False(t, current(d), "current %s", d)
	}
	assert.False(t, s.FlexibleDueness(p, 0, 0, monday)(monday))
}

func TestFlexible_TargetMetCancelsRemainingDueness(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.WeeklyByNumOfDueDays{
		NumOfDueDays:   2,
		StartDayOfWeek: weekday(time.Monday),
		Counters: schedule.Counters{
			NumOfCompletedDaysInCurrentPeriod: 2,
			CurrentPeriodStart:                date(2025, time.March, 10),
		},
	})

	assert.True(t, s.IsDue(date(2025, time.March, 3)))
	assert.False(t, s.IsDue(date(2025, time.March, 10)))
	assert.False(t, s.IsDue(date(2025, time.March, 11)))
	assert.True(t, s.IsDue(date(2025, time.March, 17)))
}

func TestFlexible_VacationShrinksTarget(t *testing.T) {
	vacation := calendar.Period{Start: date(2025, time.March, 4), End: date(2025, time.March, 8)}
	s := schedule.MustNew(schedule.Options{StartDate: monday, Vacation: &vacation}, schedule.PeriodicCustom{
		NumOfDueDays:      5,
		NumOfDaysInPeriod: 7,
	})

	_, target, ok := s.PeriodTarget(monday)
	require.True(t, ok)
	assert.Equal(t, 2, target, "only Mar 3 and Mar 9 are eligible")
	assert.Equal(t, []calendar.Date{monday, date(2025, time.March, 9)}, s.DueDatesInRange(monday, date(2025, time.March, 9)))
}

// =============================================================================
// DUE COUNTS
// =============================================================================

func TestNumOfTimesDueInPeriod_MonthlyFullMonth(t *testing.T) {
	april1 := date(2025, time.April, 1)
	april30 := date(2025, time.April, 30)
	s := schedule.MustNew(schedule.Options{StartDate: april1}, schedule.MonthlyByNumOfDueDays{NumOfDueDays: 5})

	got := s.NumOfTimesDueInPeriod(&april1, &april30, date(2025, time.May, 15))
	assert.True(t, got.Equal(decimal.NewFromInt(5)), "got %s", got)
}

func TestNumOfTimesDueInPeriod_ProRatesPartialPeriod(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.PeriodicCustom{
		NumOfDueDays:      5,
		NumOfDaysInPeriod: 10,
	})

	from := monday
	to := monday.AddDays(4)
	got := s.NumOfTimesDueInPeriod(&from, &to, date(2025, time.June, 1))
	assert.True(t, got.Equal(decimal.NewFromFloat(2.5)), "got %s", got)

	to = monday.AddDays(14)
	got = s.NumOfTimesDueInPeriod(&from, &to, date(2025, time.June, 1))
	assert.True(t, got.Equal(decimal.NewFromFloat(7.5)), "got %s", got)
}

func TestNumOfTimesDueInPeriod_OpenBounds(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.WeeklyByDueDaysOfWeek{
		DueDaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
	})

	today := monday.AddDays(13)
	got := s.NumOfTimesDueInPeriod(nil, nil, today)
	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)

	end := monday.AddDays(6)
	bounded := schedule.MustNew(schedule.Options{StartDate: monday, EndDate: &end}, s.Variant)
	got = bounded.NumOfTimesDueInPeriod(nil, nil, today)
	assert.True(t, got.Equal(decimal.NewFromInt(2)), "end date bounds an open max, got %s", got)
}

func TestNumOfTimesDueInPeriod_EmptyWindow(t *testing.T) {
	s := schedule.MustNew(schedule.Options{StartDate: monday}, schedule.EveryDay{})
	before := monday.AddDays(-10)
	got := s.NumOfTimesDueInPeriod(nil, &before, monday)
	assert.True(t, got.IsZero())
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_RejectsInvalidConfig(t *testing.T) {
	end := monday.AddDays(-1)
	tests := []struct {
		name    string
		opts    schedule.Options
		variant schedule.Variant
	}{
		{"missing variant", schedule.Options{StartDate: monday}, nil},
		{"missing start", schedule.Options{}, schedule.EveryDay{}},
		{"end before start", schedule.Options{StartDate: monday, EndDate: &end}, schedule.EveryDay{}},
		{"inverted vacation", schedule.Options{StartDate: monday, Vacation: &calendar.Period{Start: monday.AddDays(3), End: monday}}, schedule.EveryDay{}},
		{"empty weekdays", schedule.Options{StartDate: monday}, schedule.WeeklyByDueDaysOfWeek{}},
		{"bad weekday", schedule.Options{StartDate: monday}, schedule.WeeklyByDueDaysOfWeek{DueDaysOfWeek: []time.Weekday{9}}},
		{"zero weekly target", schedule.Options{StartDate: monday}, schedule.WeeklyByNumOfDueDays{}},
		{"weekly target above 7", schedule.Options{StartDate: monday}, schedule.WeeklyByNumOfDueDays{NumOfDueDays: 8}},
		{"month index 32", schedule.Options{StartDate: monday}, schedule.MonthlyByDueDatesIndices{DueDatesIndices: []int{32}}},
		{"no monthly due days", schedule.Options{StartDate: monday}, schedule.MonthlyByDueDatesIndices{}},
		{"bad ordinal", schedule.Options{StartDate: monday}, schedule.MonthlyByDueDatesIndices{
			WeekDaysMonthRelated: []calendar.WeekDayMonthRelated{{DayOfWeek: time.Monday, Ordinal: 7}},
		}},
		{"monthly target above 31", schedule.Options{StartDate: monday}, schedule.MonthlyByNumOfDueDays{NumOfDueDays: 32}},
		{"feb 30", schedule.Options{StartDate: monday}, schedule.AnnualByDueDates{DueDates: []calendar.AnnualDate{{Month: time.February, Day: 30}}}},
		{"empty annual", schedule.Options{StartDate: monday}, schedule.AnnualByDueDates{}},
		{"annual target above 366", schedule.Options{StartDate: monday}, schedule.AnnualByNumOfDueDays{NumOfDueDays: 367}},
		{"zero length period", schedule.Options{StartDate: monday}, schedule.PeriodicCustom{NumOfDueDays: 1}},
		{"target above period length", schedule.Options{StartDate: monday}, schedule.PeriodicCustom{NumOfDueDays: 11, NumOfDaysInPeriod: 10}},
		{"empty custom dates", schedule.Options{StartDate: monday}, schedule.CustomDate{}},
		{"first period override above target", schedule.Options{StartDate: monday}, schedule.WeeklyByNumOfDueDays{
			NumOfDueDays: 2, Counters: schedule.Counters{NumOfDueDaysInFirstPeriod: intPtr(3)},
		}},
		{"first period override above partial period", schedule.Options{StartDate: date(2025, time.March, 8)}, schedule.WeeklyByNumOfDueDays{
			NumOfDueDays: 5, StartDayOfWeek: weekday(time.Monday), Counters: schedule.Counters{NumOfDueDaysInFirstPeriod: intPtr(3)},
		}},
		{"negative completed counter", schedule.Options{StartDate: monday}, schedule.MonthlyByNumOfDueDays{
			NumOfDueDays: 2, Counters: schedule.Counters{NumOfCompletedDaysInCurrentPeriod: -1},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := schedule.New(tc.opts, tc.variant)
			require.Error(t, err)
			assert.ErrorIs(t, err, schedule.ErrInvalidScheduleConfig)
			var cfgErr *schedule.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestNew_CopiesAndNormalizesSlices(t *testing.T) {
	days := []time.Weekday{time.Friday, time.Monday, time.Friday}
	s, err := schedule.New(schedule.Options{StartDate: monday}, schedule.WeeklyByDueDaysOfWeek{DueDaysOfWeek: days})
	require.NoError(t, err)

	days[0] = time.Sunday
	v := s.Variant.(schedule.WeeklyByDueDaysOfWeek)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, v.DueDaysOfWeek)
	assert.False(t, s.IsDue(date(2025, time.March, 9)), "caller mutation must not leak into the schedule")
}

func TestPeriodConfig_PerVariant(t *testing.T) {
	start := date(2025, time.March, 5)
	s := schedule.MustNew(schedule.Options{StartDate: start}, schedule.WeeklyByNumOfDueDays{NumOfDueDays: 2})
	assert.Equal(t, calendar.PeriodConfig{Kind: calendar.PeriodWeek, StartDayOfWeek: time.Wednesday}, s.PeriodConfig())

	s = schedule.MustNew(schedule.Options{StartDate: start}, schedule.MonthlyByNumOfDueDays{NumOfDueDays: 2, StartFromRoutineStart: true})
	assert.Equal(t, calendar.PeriodConfig{Kind: calendar.PeriodMonth, Anchor: start}, s.PeriodConfig())

	s = schedule.MustNew(schedule.Options{StartDate: start}, schedule.CustomDate{DueDates: []calendar.Date{start}})
	assert.Equal(t, calendar.PeriodNone, s.PeriodConfig().Kind)
}
