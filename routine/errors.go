package routine

import (
	"errors"
	"fmt"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/schedule"
)

var (
	// ErrGatewayUnavailable wraps storage failures.
	ErrGatewayUnavailable = errors.New("completion history gateway unavailable")

	// ErrRoutineNotFound is returned for unknown routine ids.
	ErrRoutineNotFound = errors.New("routine not found")

	// ErrInvalidRoutine is returned for malformed routines and records.
	ErrInvalidRoutine = errors.New("invalid routine")
)

// ValidationError names the offending field of a routine or record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid routine: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRoutine }

// NotFoundError carries the missing id.
type NotFoundError struct {
	ID RoutineID
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("routine not found: %s", e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrRoutineNotFound }

// Unavailable wraps a storage error with ErrGatewayUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrGatewayUnavailable, err)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, calendar.ErrInvalidDate) ||
		errors.Is(err, schedule.ErrInvalidScheduleConfig) ||
		errors.Is(err, ErrInvalidRoutine)
}

// IsNotFound returns true if the error indicates a missing routine.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoutineNotFound)
}

// IsUnavailable returns true if storage failed.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
