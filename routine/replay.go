package routine

import (
	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// Replay is the result of folding a schedule over its completion history.
type Replay struct {
	// States holds one entry per day from the start date through Through.
	States  []DayState
	Through calendar.Date

	Deviation int
	Progress  decimal.Decimal

	// Counters is set for flexible schedules and refers to the period
	// containing today, or the last active period once the routine ended.
	Counters *schedule.Counters
}

// State returns the state of d if the replay covers it.
func (r Replay) State(d calendar.Date) (DayState, bool) {
	if len(r.States) == 0 {
		return DayState{}, false
	}
	i := calendar.DaysBetween(r.States[0].Date, d)
	if i < 0 || i >= len(r.States) {
		return DayState{}, false
	}
	return r.States[i], true
}

// =============================================================================
// LEDGER - the day-by-day fold
// =============================================================================

type ledger struct {
	s       schedule.Schedule
	today   calendar.Date
	records map[calendar.Date]CompletionRecord
	start   calendar.Date
	states  []DayState

	deviation int
	credit    int
	backlog   []int // indexes into states, oldest first
}

// replay folds s over records from the start date through `through`.
// Records outside the active window are ignored; not_completed records
// count as no record.
func replay(s schedule.Schedule, records []CompletionRecord, today, through calendar.Date) Replay {
	if s.EndDate != nil && s.EndDate.Before(through) {
		through = *s.EndDate
	}
	out := Replay{Through: through, Progress: decimal.Zero}

	l := &ledger{
		s:       s,
		today:   today,
		records: make(map[calendar.Date]CompletionRecord, len(records)),
		start:   s.StartDate,
	}
	for _, rec := range records {
		if rec.Status == StatusNotCompleted || !s.Active(rec.Date) || rec.Date.After(through) {
			continue
		}
		l.records[rec.Date] = rec
		if rec.Status == StatusCompleted {
			out.Progress = out.Progress.Add(rec.NumOfTimesCompleted)
		}
	}

	if through.Before(s.StartDate) {
		out.Counters = l.counters(nil)
		return out
	}

	for d := s.StartDate; d.BeforeOrEqual(through); d = d.AddDays(1) {
		l.states = append(l.states, DayState{Date: d, Status: DayNotDue, Vacation: s.OnVacation(d)})
	}

	var current *segment
	for i, seg := range l.segments(through) {
		if i > 0 && s.PeriodSeparationEnabled() {
			l.expire()
		}
		if s.IsFlexible() {
			l.flexiblePeriod(seg)
		} else {
			l.fixedPeriod(seg)
		}
		if seg.full.Start.BeforeOrEqual(today) {
			seg := seg
			current = &seg
		}
	}

	for i := range l.states {
		st := &l.states[i]
		st.OutOfStreak = st.Vacation || st.Status == DayNotDue || st.Status == DaySkipped || st.Status == DayAlreadyCompleted
	}

	out.States = l.states
	out.Deviation = l.deviation
	out.Counters = l.counters(current)
	return out
}

// segment is one period, clipped to the active window (full) and to the
// replayed range (walk).
type segment struct {
	full calendar.Period
	walk calendar.Period
}

func (l *ledger) segments(through calendar.Date) []segment {
	window := calendar.Period{Start: l.start, End: through}
	pc := l.s.PeriodConfig()
	if pc.Kind == calendar.PeriodNone {
		full := window
		if l.s.EndDate != nil {
			full.End = *l.s.EndDate
		}
		return []segment{{full: full, walk: window}}
	}

	var out []segment
	raw, ok := pc.PeriodFor(l.start)
	for ok && raw.Start.BeforeOrEqual(through) {
		full, inWindow := raw.Intersect(calendar.Period{Start: l.start, End: maxEnd(l.s, raw)})
		walk, inRange := raw.Intersect(window)
		if inWindow && inRange {
			out = append(out, segment{full: full, walk: walk})
		}
		raw, ok = pc.Next(raw)
	}
	return out
}

func maxEnd(s schedule.Schedule, raw calendar.Period) calendar.Date {
	if s.EndDate != nil {
		return *s.EndDate
	}
	return raw.End
}

func (l *ledger) state(d calendar.Date) *DayState {
	return &l.states[calendar.DaysBetween(l.start, d)]
}

func (l *ledger) expire() {
	for _, i := range l.backlog {
		l.states[i].Backlog = false
	}
	l.backlog = nil
	l.credit = 0
}

// extra books a completion beyond what the schedule asked for.
func (l *ledger) extra() {
	if len(l.backlog) > 0 {
		i := l.backlog[0]
		l.backlog = l.backlog[1:]
		l.states[i].Status = DayCompleted
		l.deviation++
		return
	}
	if l.s.CancelDuenessIfDoneAhead {
		l.credit++
		l.deviation++
	}
}

// miss books a due occurrence that passed without a record.
func (l *ledger) miss(st *DayState) {
	l.deviation--
	if l.s.CancelDuenessIfDoneAhead && l.credit > 0 {
		l.credit--
		st.Status = DayAlreadyCompleted
		return
	}
	st.Status = DayFailed
	if l.s.BacklogEnabled {
		st.Backlog = true
		l.backlog = append(l.backlog, calendar.DaysBetween(l.start, st.Date))
	}
}

// open books a due occurrence that has not passed yet. Credit cancels it.
func (l *ledger) open(st *DayState) {
	if l.s.CancelDuenessIfDoneAhead && l.credit > 0 {
		l.credit--
		l.deviation--
		st.Status = DayAlreadyCompleted
		return
	}
	st.Status = DayPending
}

// =============================================================================
// FIXED-DAY VARIANTS
// =============================================================================

func (l *ledger) fixedPeriod(seg segment) {
	for d := seg.walk.Start; d.BeforeOrEqual(seg.walk.End); d = d.AddDays(1) {
		st := l.state(d)
		st.Due = l.s.IsDue(d)
		rec, hasRecord := l.records[d]

		switch {
		case hasRecord && rec.Status == StatusCompleted:
			st.Status = DayCompleted
			if !st.Due {
				l.extra()
			}
		case hasRecord && rec.Status == StatusSkipped:
			st.Status = DaySkipped
		case !st.Due:
			st.Status = DayNotDue
		case d.Before(l.today):
			l.miss(st)
		default:
			l.open(st)
		}
	}
}

// =============================================================================
// FLEXIBLE VARIANTS
// =============================================================================

func (l *ledger) flexiblePeriod(seg segment) {
	_, target, _ := l.s.PeriodTarget(seg.full.Start)

	met := 0
	var free []calendar.Date
	for d := seg.walk.Start; d.BeforeOrEqual(seg.walk.End); d = d.AddDays(1) {
		st := l.state(d)
		rec, hasRecord := l.records[d]

		switch {
		case hasRecord && rec.Status == StatusCompleted:
			st.Status = DayCompleted
			if met < target {
				met++
			} else {
				l.extra()
			}
		case hasRecord && rec.Status == StatusSkipped:
			st.Status = DaySkipped
			if l.s.Eligible(d) && met < target {
				met++
			}
		case l.s.Eligible(d):
			free = append(free, d)
		}
	}

	due := l.s.FlexibleDueness(seg.full, target, met, l.today)
	for d := seg.walk.Start; d.BeforeOrEqual(seg.walk.End); d = d.AddDays(1) {
		l.state(d).Due = due(d)
	}

	units := target - met
	if seg.full.End.Before(l.today) {
		// Misses land on the latest free days. Earlier completions cover
		// the remaining due days of the period.
		n := min(max(units, 0), len(free))
		for i, d := range free {
			st := l.state(d)
			switch {
			case i >= len(free)-n:
				l.miss(st)
			case st.Due:
				st.Status = DayAlreadyCompleted
			}
		}
		return
	}

	cancelled := 0
	for _, d := range free {
		st := l.state(d)
		if !st.Due {
			continue
		}
		switch {
		case cancelled >= units:
			st.Status = DayAlreadyCompleted
		case l.s.CancelDuenessIfDoneAhead && l.credit > 0:
			l.credit--
			l.deviation--
			cancelled++
			st.Status = DayAlreadyCompleted
		default:
			st.Status = DayPending
		}
	}
}

// counters returns the running counters for the period of seg.
func (l *ledger) counters(seg *segment) *schedule.Counters {
	base, ok := l.s.Counters()
	if !ok {
		return nil
	}
	c := schedule.Counters{NumOfDueDaysInFirstPeriod: base.NumOfDueDaysInFirstPeriod, AsOf: l.today}
	if seg == nil {
		return &c
	}
	c.CurrentPeriodStart = seg.full.Start
	for d := seg.full.Start; d.BeforeOrEqual(seg.full.End); d = d.AddDays(1) {
		rec, ok := l.records[d]
		switch {
		case !ok:
		case rec.Status == StatusCompleted:
			c.NumOfCompletedDaysInCurrentPeriod++
		case rec.Status == StatusSkipped && l.s.Eligible(d):
			c.NumOfCompletedDaysInCurrentPeriod++
		}
	}
	return &c
}
