package routine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// =============================================================================
// HISTORY - completion records of one routine
// =============================================================================

// History is the completion history the accountant reads and writes.
// Implementations wrap storage failures with ErrGatewayUnavailable.
type History interface {
	// NumOfTimesCompletedInPeriod sums NumOfTimesCompleted of completed
	// records in [min, max]. Nil bounds are open.
	NumOfTimesCompletedInPeriod(ctx context.Context, id RoutineID, min, max *calendar.Date) (decimal.Decimal, error)

	// RecordByDate returns nil when no record exists.
	RecordByDate(ctx context.Context, id RoutineID, date calendar.Date) (*CompletionRecord, error)

	// LastCompletedRecord returns the latest completed record, or nil.
	LastCompletedRecord(ctx context.Context, id RoutineID) (*CompletionRecord, error)

	// InsertCompletion upserts by (id, date).
	InsertCompletion(ctx context.Context, id RoutineID, record CompletionRecord) error
}

// RangeHistory loads a date range in one call.
type RangeHistory interface {
	History

	// RecordsInRange returns the records in [from, to] ordered by date.
	RecordsInRange(ctx context.Context, id RoutineID, from, to calendar.Date) ([]CompletionRecord, error)
}

// RoutineState is the replayed state persisted after every change.
type RoutineState struct {
	ScheduleDeviation int
	Progress          decimal.Decimal
	Counters          *schedule.Counters
}

// StateWriter persists replayed state.
type StateWriter interface {
	UpdateRoutineState(ctx context.Context, id RoutineID, state RoutineState) error
}

// Gateway is what ApplyCompletion needs.
type Gateway interface {
	History
	StateWriter
}

// TxGateway runs fn atomically. If fn returns an error nothing is written.
type TxGateway interface {
	Gateway
	WithTx(ctx context.Context, fn func(Gateway) error) error
}

// =============================================================================
// REPOSITORY - routine definitions
// =============================================================================

// Repository stores routine definitions.
type Repository interface {
	SaveRoutine(ctx context.Context, r Routine) error
	GetRoutine(ctx context.Context, id RoutineID) (Routine, error)
	ListRoutines(ctx context.Context) ([]Routine, error)
	DeleteRoutine(ctx context.Context, id RoutineID) error
}

// Store is a complete storage backend.
type Store interface {
	Repository
	RangeHistory
	StateWriter
}
