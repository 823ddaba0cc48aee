package routine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// Recorder receives accountant instrumentation. metrics.Collector implements it.
type Recorder interface {
	ObserveReplay(kind string, d time.Duration)
	CompletionApplied(status string)
	Reconciled()
	GatewayError(op string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReplay(string, time.Duration) {}
func (nopRecorder) CompletionApplied(string)            {}
func (nopRecorder) Reconciled()                         {}
func (nopRecorder) GatewayError(string)                 {}

// =============================================================================
// ACCOUNTANT
// =============================================================================

// Accountant keeps ScheduleDeviation, Progress and flexible counters in line
// with the completion history. It holds no mutable state; concurrent updates
// of one routine are serialized by the gateway.
type Accountant struct {
	History History

	// Today defaults to calendar.Today.
	Today func() calendar.Date

	Logger  *zap.Logger
	Metrics Recorder
}

func NewAccountant(h History, logger *zap.Logger, metrics Recorder) *Accountant {
	return &Accountant{History: h, Today: calendar.Today, Logger: logger, Metrics: metrics}
}

// MaxHorizonDays bounds how far past today a replay may be asked to run.
const MaxHorizonDays = 3660

func (a *Accountant) withinHorizon(field string, d calendar.Date) error {
	if limit := a.today().AddDays(MaxHorizonDays); d.After(limit) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%s is after %s", d, limit)}
	}
	return nil
}

func (a *Accountant) today() calendar.Date {
	if a.Today == nil {
		return calendar.Today()
	}
	return a.Today()
}

func (a *Accountant) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Accountant) metrics() Recorder {
	if a.Metrics == nil {
		return nopRecorder{}
	}
	return a.Metrics
}

// NumOfTimesDueInPeriod counts due occurrences in [min, max] as of today.
func (a *Accountant) NumOfTimesDueInPeriod(s schedule.Schedule, min, max *calendar.Date) decimal.Decimal {
	return s.NumOfTimesDueInPeriod(min, max, a.today())
}

// NumOfTimesCompletedInPeriod sums completions in [min, max].
func (a *Accountant) NumOfTimesCompletedInPeriod(ctx context.Context, id RoutineID, min, max *calendar.Date) (decimal.Decimal, error) {
	n, err := a.History.NumOfTimesCompletedInPeriod(ctx, id, min, max)
	if err != nil {
		a.metrics().GatewayError("completed_count")
		return decimal.Zero, err
	}
	return n, nil
}

// Replay folds the routine's schedule over its history up to today, or up to
// the latest completion when that lies ahead.
func (a *Accountant) Replay(ctx context.Context, r Routine) (Replay, error) {
	return a.replay(ctx, a.History, r, nil)
}

// ApplyCompletion stores record and recomputes the routine's state from the
// full history. Applying the same record twice yields the same routine.
func (a *Accountant) ApplyCompletion(ctx context.Context, r Routine, record CompletionRecord) (Routine, error) {
	if err := record.Validate(); err != nil {
		return r, err
	}
	if err := a.withinHorizon("date", record.Date); err != nil {
		return r, err
	}
	if !r.Schedule.Active(record.Date) {
		return r, &ValidationError{Field: "date", Reason: record.Date.String() + " is outside the routine's active window"}
	}

	apply := func(g History) (Routine, error) {
		if err := g.InsertCompletion(ctx, r.ID, record); err != nil {
			a.metrics().GatewayError("insert_completion")
			return r, err
		}
		return a.settle(ctx, g, r)
	}

	var updated Routine
	var err error
	if tx, ok := a.History.(TxGateway); ok {
		err = tx.WithTx(ctx, func(g Gateway) error {
			updated, err = apply(g)
			return err
		})
	} else {
		updated, err = apply(a.History)
	}
	if err != nil {
		return r, err
	}

	a.metrics().CompletionApplied(string(record.Status))
	a.log().Debug("completion applied",
		zap.String("routine_id", string(r.ID)),
		zap.Stringer("date", record.Date),
		zap.String("status", string(record.Status)),
		zap.Int("deviation", updated.ScheduleDeviation))
	return updated, nil
}

// Reconcile replays without a new record so due dates that passed since the
// last change are debited.
func (a *Accountant) Reconcile(ctx context.Context, r Routine) (Routine, error) {
	var updated Routine
	var err error
	if tx, ok := a.History.(TxGateway); ok {
		err = tx.WithTx(ctx, func(g Gateway) error {
			updated, err = a.settle(ctx, g, r)
			return err
		})
	} else {
		updated, err = a.settle(ctx, a.History, r)
	}
	if err != nil {
		return r, err
	}

	a.metrics().Reconciled()
	if updated.ScheduleDeviation != r.ScheduleDeviation {
		a.log().Info("schedule deviation changed",
			zap.String("routine_id", string(r.ID)),
			zap.Int("from", r.ScheduleDeviation),
			zap.Int("to", updated.ScheduleDeviation))
	}
	return updated, nil
}

// settle replays r through g and persists the result when g can store it.
func (a *Accountant) settle(ctx context.Context, g History, r Routine) (Routine, error) {
	rep, err := a.replay(ctx, g, r, nil)
	if err != nil {
		return r, err
	}

	r.ScheduleDeviation = rep.Deviation
	r.Progress = rep.Progress
	if rep.Counters != nil {
		r.Schedule = r.Schedule.WithCounters(*rep.Counters)
	}

	if w, ok := g.(StateWriter); ok {
		state := RoutineState{ScheduleDeviation: rep.Deviation, Progress: rep.Progress, Counters: rep.Counters}
		if err := w.UpdateRoutineState(ctx, r.ID, state); err != nil {
			a.metrics().GatewayError("update_state")
			return r, err
		}
	}
	return r, nil
}

// StatusOn returns the state of one day.
func (a *Accountant) StatusOn(ctx context.Context, r Routine, d calendar.Date) (DayState, error) {
	states, err := a.DayStates(ctx, r, d, d)
	if err != nil {
		return DayState{}, err
	}
	return states[0], nil
}

// DayStates returns one state per day in [from, to]. Days outside the active
// window are not due. to may lie at most MaxHorizonDays after today.
func (a *Accountant) DayStates(ctx context.Context, r Routine, from, to calendar.Date) ([]DayState, error) {
	if to.Before(from) {
		return nil, &ValidationError{Field: "to", Reason: "before from"}
	}
	if err := a.withinHorizon("to", to); err != nil {
		return nil, err
	}
	rep, err := a.replay(ctx, a.History, r, &to)
	if err != nil {
		return nil, err
	}

	out := make([]DayState, 0, calendar.DaysBetween(from, to)+1)
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if st, ok := rep.State(d); ok {
			out = append(out, st)
			continue
		}
		out = append(out, DayState{
			Date:        d,
			Status:      DayNotDue,
			Vacation:    r.Schedule.OnVacation(d),
			OutOfStreak: true,
		})
	}
	return out, nil
}

// =============================================================================
// REPLAY
// =============================================================================

func (a *Accountant) replay(ctx context.Context, h History, r Routine, until *calendar.Date) (Replay, error) {
	started := time.Now()
	today := a.today()

	horizon := today
	last, err := h.LastCompletedRecord(ctx, r.ID)
	if err != nil {
		a.metrics().GatewayError("last_completed")
		return Replay{}, err
	}
	if last != nil && last.Date.After(horizon) {
		horizon = last.Date
	}
	through := horizon
	if until != nil && until.After(through) {
		through = *until
	}

	records, err := a.load(ctx, h, r, through)
	if err != nil {
		a.metrics().GatewayError("load_records")
		return Replay{}, err
	}

	rep := replay(r.Schedule, records, today, through)
	if through.After(horizon) {
		// Looking further ahead must not change the score.
		rep.Deviation = replay(r.Schedule, records, today, horizon).Deviation
	}

	a.metrics().ObserveReplay(string(r.Schedule.Kind()), time.Since(started))
	return rep, nil
}

// load reads the records in [start, through], in one query when h supports it.
func (a *Accountant) load(ctx context.Context, h History, r Routine, through calendar.Date) ([]CompletionRecord, error) {
	start := r.Schedule.StartDate
	if through.Before(start) {
		return nil, nil
	}
	if rh, ok := h.(RangeHistory); ok {
		return rh.RecordsInRange(ctx, r.ID, start, through)
	}

	var out []CompletionRecord
	for d := start; d.BeforeOrEqual(through); d = d.AddDays(1) {
		rec, err := h.RecordByDate(ctx, r.ID, d)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}
