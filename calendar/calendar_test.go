package calendar_test

import (
	"testing"
	"time"

	"github.com/routinely/routine-engine/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) calendar.Date {
	return calendar.MustDate(year, month, day)
}

func TestNewDate_RejectsImpossibleDates(t *testing.T) {
	cases := []struct {
		name  string
		year  int
		month time.Month
		day   int
	}{
		{"feb 30", 2025, time.February, 30},
		{"feb 29 non leap", 2025, time.February, 29},
		{"month 13", 2025, 13, 1},
		{"month 0", 2025, 0, 1},
		{"day 0", 2025, time.March, 0},
		{"april 31", 2025, time.April, 31},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calendar.NewDate(tc.year, tc.month, tc.day)
			assert.ErrorIs(t, err, calendar.ErrInvalidDate)
		})
	}

	d, err := calendar.NewDate(2024, time.February, 29)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
}

func TestParseDate(t *testing.T) {
	d, err := calendar.ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 10), d)

	_, err = calendar.ParseDate("2025-02-30")
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)
}

func TestDate_TextRoundTrip(t *testing.T) {
	d := date(2025, time.December, 31)
	b, err := d.MarshalText()
	require.NoError(t, err)

	var back calendar.Date
	require.NoError(t, back.UnmarshalText(b))
	assert.True(t, back.Equal(d))
}

func TestWeekStart(t *testing.T) {
	// 2025-03-13 is a Thursday
	thu := date(2025, time.March, 13)
	assert.Equal(t, date(2025, time.March, 10), calendar.WeekStart(thu, time.Monday))
	assert.Equal(t, date(2025, time.March, 9), calendar.WeekStart(thu, time.Sunday))
	assert.Equal(t, thu, calendar.WeekStart(thu, time.Thursday))
	assert.Equal(t, date(2025, time.March, 7), calendar.WeekStart(thu, time.Friday))
}

func TestMonthHelpers(t *testing.T) {
	assert.Equal(t, 29, calendar.MonthDayCount(date(2024, time.February, 3)))
	assert.Equal(t, 28, calendar.MonthDayCount(date(2025, time.February, 3)))
	assert.True(t, calendar.IsLastDayOfMonth(date(2025, time.April, 30)))
	assert.False(t, calendar.IsLastDayOfMonth(date(2025, time.May, 30)))
}

func TestDayOfMonthRelative(t *testing.T) {
	// March 2025: Tuesdays are 4, 11, 18, 25
	rel, isLast := calendar.DayOfMonthRelative(date(2025, time.March, 11))
	assert.Equal(t, time.Tuesday, rel.DayOfWeek)
	assert.Equal(t, calendar.Second, rel.Ordinal)
	assert.False(t, isLast)

	rel, isLast = calendar.DayOfMonthRelative(date(2025, time.March, 25))
	assert.Equal(t, calendar.Fourth, rel.Ordinal)
	assert.True(t, isLast)

	lastTuesday := calendar.WeekDayMonthRelated{DayOfWeek: time.Tuesday, Ordinal: calendar.Last}
	assert.True(t, lastTuesday.Matches(date(2025, time.March, 25)))
	assert.False(t, lastTuesday.Matches(date(2025, time.March, 18)))
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := date(2025, time.January, 31)
	assert.Equal(t, date(2025, time.February, 28), calendar.AddMonthsClamped(jan31, 1))
	assert.Equal(t, date(2025, time.March, 31), calendar.AddMonthsClamped(jan31, 2))
	assert.Equal(t, date(2024, time.December, 31), calendar.AddMonthsClamped(jan31, -1))
	assert.Equal(t, date(2025, time.February, 28), calendar.AddYearsClamped(date(2024, time.February, 29), 1))
}

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		name   string
		config calendar.PeriodConfig
		date   calendar.Date
		want   calendar.Period
	}{
		{
			name:   "week starting monday",
			config: calendar.PeriodConfig{Kind: calendar.PeriodWeek, StartDayOfWeek: time.Monday},
			date:   date(2025, time.March, 13),
			want:   calendar.Period{Start: date(2025, time.March, 10), End: date(2025, time.March, 16)},
		},
		{
			name:   "calendar month",
			config: calendar.PeriodConfig{Kind: calendar.PeriodMonth},
			date:   date(2025, time.February, 13),
			want:   calendar.Period{Start: date(2025, time.February, 1), End: date(2025, time.February, 28)},
		},
		{
			name:   "month anchored on the 31st",
			config: calendar.PeriodConfig{Kind: calendar.PeriodMonth, Anchor: date(2025, time.January, 31)},
			date:   date(2025, time.March, 1),
			want:   calendar.Period{Start: date(2025, time.February, 28), End: date(2025, time.March, 30)},
		},
		{
			name:   "calendar year",
			config: calendar.PeriodConfig{Kind: calendar.PeriodYear},
			date:   date(2025, time.July, 4),
			want:   calendar.Period{Start: date(2025, time.January, 1), End: date(2025, time.December, 31)},
		},
		{
			name:   "anniversary year",
			config: calendar.PeriodConfig{Kind: calendar.PeriodYear, Anchor: date(2024, time.April, 1)},
			date:   date(2025, time.March, 31),
			want:   calendar.Period{Start: date(2024, time.April, 1), End: date(2025, time.March, 31)},
		},
		{
			name:   "custom 10 day period",
			config: calendar.PeriodConfig{Kind: calendar.PeriodCustom, Anchor: date(2025, time.January, 1), NumOfDays: 10},
			date:   date(2025, time.January, 25),
			want:   calendar.Period{Start: date(2025, time.January, 21), End: date(2025, time.January, 30)},
		},
		{
			name:   "custom period before anchor",
			config: calendar.PeriodConfig{Kind: calendar.PeriodCustom, Anchor: date(2025, time.January, 11), NumOfDays: 10},
			date:   date(2025, time.January, 5),
			want:   calendar.Period{Start: date(2025, time.January, 1), End: date(2025, time.January, 10)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calendar.PeriodBounds(tc.date, tc.config)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, got.Contains(tc.date))
		})
	}
}

func TestPeriodBounds_NoPeriods(t *testing.T) {
	_, err := calendar.PeriodBounds(date(2025, time.January, 1), calendar.PeriodConfig{Kind: calendar.PeriodNone})
	assert.Error(t, err)
}

func TestPeriod_Intersect(t *testing.T) {
	a := calendar.Period{Start: date(2025, time.January, 1), End: date(2025, time.January, 10)}
	b := calendar.Period{Start: date(2025, time.January, 8), End: date(2025, time.January, 20)}

	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, 3, got.NumOfDays())

	_, ok = a.Intersect(calendar.Period{Start: date(2025, time.February, 1), End: date(2025, time.February, 2)})
	assert.False(t, ok)
}
