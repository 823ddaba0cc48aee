/*
Package routine ties schedules to completion history.

PURPOSE:

	A Routine owns one schedule and a running score of how far the user is
	ahead of or behind it (ScheduleDeviation). The Accountant derives that
	score, the per-day status and the flexible-period counters by replaying
	the completion history against the schedule.

REPLAY, NOT INCREMENT:

	The deviation is never adjusted in place. Every ApplyCompletion upserts
	the record and replays the full history, so submitting the same record
	twice leaves the routine unchanged and an undo (status not_completed)
	restores the previous state exactly.

DEVIATION:

	-1 for every missed due occurrence, whether or not backlog is enabled.
	+1 for an extra completion that repays backlog or earns done-ahead
	credit. Credit cancels the next due occurrence (already_completed),
	backlog lets a failed day be completed later.

SEE ALSO:
  - gateway.go: storage contract
  - accountant.go: replay and status queries
  - store/memory.go: in-memory gateway
  - store/sqlite: persistent gateway
*/
package routine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

// RoutineID identifies a routine. The API layer generates them as UUIDs.
type RoutineID string

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// Routine is a habit with a schedule.
type Routine struct {
	ID                    RoutineID
	Name                  string
	Description           string
	SessionDuration       *time.Duration
	DefaultCompletionTime *TimeOfDay

	// Progress is the total number of completions.
	Progress decimal.Decimal

	// ScheduleDeviation is positive when ahead of schedule, negative when behind.
	ScheduleDeviation int

	Schedule schedule.Schedule
}

// Validate checks the fields the schedule does not cover.
func (r Routine) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if r.SessionDuration != nil && *r.SessionDuration < 0 {
		return &ValidationError{Field: "session_duration", Reason: "negative"}
	}
	if r.DefaultCompletionTime != nil && !r.DefaultCompletionTime.Valid() {
		return &ValidationError{Field: "default_completion_time", Reason: r.DefaultCompletionTime.String()}
	}
	if r.Schedule.Variant == nil {
		return &ValidationError{Field: "schedule", Reason: "missing"}
	}
	return nil
}

// =============================================================================
// COMPLETION HISTORY
// =============================================================================

// CompletionStatus is what happened on a date.
type CompletionStatus string

const (
	StatusCompleted    CompletionStatus = "completed"
	StatusSkipped      CompletionStatus = "skipped"
	StatusNotCompleted CompletionStatus = "not_completed"
)

func (s CompletionStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusNotCompleted:
		return true
	}
	return false
}

// CompletionRecord is the user's entry for one date. A routine has at most
// one record per date; writing another replaces it.
type CompletionRecord struct {
	Date                calendar.Date
	Status              CompletionStatus
	NumOfTimesCompleted decimal.Decimal
}

// Completed returns a record for one completion on d.
func Completed(d calendar.Date) CompletionRecord {
	return CompletionRecord{Date: d, Status: StatusCompleted, NumOfTimesCompleted: decimal.NewFromInt(1)}
}

// Skipped returns a record excusing d.
func Skipped(d calendar.Date) CompletionRecord {
	return CompletionRecord{Date: d, Status: StatusSkipped, NumOfTimesCompleted: decimal.Zero}
}

// Undone returns a record clearing d.
func Undone(d calendar.Date) CompletionRecord {
	return CompletionRecord{Date: d, Status: StatusNotCompleted, NumOfTimesCompleted: decimal.Zero}
}

func (r CompletionRecord) Validate() error {
	if r.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if !r.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", r.Status)}
	}
	if r.NumOfTimesCompleted.IsNegative() {
		return &ValidationError{Field: "times", Reason: "negative"}
	}
	return nil
}

// =============================================================================
// DAY STATE
// =============================================================================

// DayStatus is the derived status of one day.
type DayStatus string

const (
	DayPending          DayStatus = "pending"
	DayCompleted        DayStatus = "completed"
	DaySkipped          DayStatus = "skipped"
	DayFailed           DayStatus = "failed"
	DayNotDue           DayStatus = "not_due"
	DayAlreadyCompleted DayStatus = "already_completed"
)

// DayState is the replayed view of one day.
type DayState struct {
	Date   calendar.Date
	Due    bool
	Status DayStatus

	// Vacation marks days inside the vacation interval.
	Vacation bool

	// OutOfStreak marks days that neither extend nor break a streak.
	OutOfStreak bool

	// Backlog marks failed days that are still repayable, and completed days
	// that were repaid by a later completion.
	Backlog bool
}
