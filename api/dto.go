/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. These types decouple
	the routine model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:

	Routine:
	  RoutineDTO, RoutineRequest

	Completions:
	  CompletionRequest, CompletionDTO

	Queries:
	  DueDatesDTO, CountDTO, DayStateDTO

	Scenarios:
	  ScenarioDTO, LoadScenarioRequest

VALIDATION:

	Validation is done in handlers and the routine package, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: ScheduleJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/factory"
	"github.com/routinely/routine-engine/routine"
)

// =============================================================================
// ROUTINES
// =============================================================================

// RoutineDTO represents a routine in API responses.
type RoutineDTO struct {
	ID                    string               `json:"id"`
	Name                  string               `json:"name"`
	Description           string               `json:"description,omitempty"`
	SessionDuration       string               `json:"session_duration,omitempty"`
	DefaultCompletionTime string               `json:"default_completion_time,omitempty"`
	Progress              decimal.Decimal      `json:"progress"`
	ScheduleDeviation     int                  `json:"schedule_deviation"`
	Schedule              factory.ScheduleJSON `json:"schedule"`
}

// RoutineRequest creates or replaces a routine. ID is generated when empty.
type RoutineRequest struct {
	ID                    string               `json:"id,omitempty"`
	Name                  string               `json:"name"`
	Description           string               `json:"description,omitempty"`
	SessionDuration       string               `json:"session_duration,omitempty"`        // e.g. "30m"
	DefaultCompletionTime string               `json:"default_completion_time,omitempty"` // HH:MM
	Schedule              factory.ScheduleJSON `json:"schedule"`
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// CompletionRequest logs what happened on a date. Status defaults to
// completed; Times defaults to 1 for completed and 0 otherwise.
type CompletionRequest struct {
	Date   calendar.Date    `json:"date"`
	Status string           `json:"status,omitempty"`
	Times  *decimal.Decimal `json:"times,omitempty"`
}

// CompletionDTO is one stored record.
type CompletionDTO struct {
	Date   calendar.Date   `json:"date"`
	Status string          `json:"status"`
	Times  decimal.Decimal `json:"times"`
}

// =============================================================================
// QUERIES
// =============================================================================

// DueDatesDTO lists due dates in a range.
type DueDatesDTO struct {
	From  calendar.Date   `json:"from"`
	To    calendar.Date   `json:"to"`
	Dates []calendar.Date `json:"dates"`
}

// CountDTO is a due or completed count. Open bounds are omitted.
type CountDTO struct {
	From  *calendar.Date  `json:"from,omitempty"`
	To    *calendar.Date  `json:"to,omitempty"`
	Count decimal.Decimal `json:"count"`
}

// DayStateDTO is the replayed state of one day.
type DayStateDTO struct {
	Date        calendar.Date `json:"date"`
	Due         bool          `json:"due"`
	Status      string        `json:"status"`
	Vacation    bool          `json:"vacation,omitempty"`
	OutOfStreak bool          `json:"out_of_streak,omitempty"`
	Backlog     bool          `json:"backlog,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRoutineDTO(f *factory.ScheduleFactory, r routine.Routine) RoutineDTO {
	dto := RoutineDTO{
		ID:                string(r.ID),
		Name:              r.Name,
		Description:       r.Description,
		Progress:          r.Progress,
		ScheduleDeviation: r.ScheduleDeviation,
		Schedule:          f.ToJSON(r.Schedule),
	}
	if r.SessionDuration != nil {
		dto.SessionDuration = r.SessionDuration.String()
	}
	if r.DefaultCompletionTime != nil {
		dto.DefaultCompletionTime = r.DefaultCompletionTime.String()
	}
	return dto
}

// toRoutine builds the routine a request describes. The schedule is
// validated; the remaining fields are checked by Routine.Validate.
func toRoutine(f *factory.ScheduleFactory, id routine.RoutineID, req RoutineRequest) (routine.Routine, error) {
	s, err := f.FromJSON(req.Schedule)
	if err != nil {
		return routine.Routine{}, err
	}
	r := routine.Routine{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Progress:    decimal.Zero,
		Schedule:    s,
	}
	if req.SessionDuration != "" {
		d, err := time.ParseDuration(req.SessionDuration)
		if err != nil {
			return routine.Routine{}, &routine.ValidationError{Field: "session_duration", Reason: err.Error()}
		}
		r.SessionDuration = &d
	}
	if req.DefaultCompletionTime != "" {
		t, err := routine.ParseTimeOfDay(req.DefaultCompletionTime)
		if err != nil {
			return routine.Routine{}, &routine.ValidationError{Field: "default_completion_time", Reason: err.Error()}
		}
		r.DefaultCompletionTime = &t
	}
	return r, r.Validate()
}

func toRecord(req CompletionRequest) routine.CompletionRecord {
	status := routine.CompletionStatus(req.Status)
	if status == "" {
		status = routine.StatusCompleted
	}
	rec := routine.CompletionRecord{Date: req.Date, Status: status, NumOfTimesCompleted: decimal.Zero}
	switch {
	case req.Times != nil:
		rec.NumOfTimesCompleted = *req.Times
	case status == routine.StatusCompleted:
		rec.NumOfTimesCompleted = decimal.NewFromInt(1)
	}
	return rec
}

func toCompletionDTOs(records []routine.CompletionRecord) []CompletionDTO {
	out := make([]CompletionDTO, len(records))
	for i, rec := range records {
		out[i] = CompletionDTO{Date: rec.Date, Status: string(rec.Status), Times: rec.NumOfTimesCompleted}
	}
	return out
}

func toDayStateDTOs(states []routine.DayState) []DayStateDTO {
	out := make([]DayStateDTO, len(states))
	for i, st := range states {
		out[i] = DayStateDTO{
			Date:        st.Date,
			Due:         st.Due,
			Status:      string(st.Status),
			Vacation:    st.Vacation,
			OutOfStreak: st.OutOfStreak,
			Backlog:     st.Backlog,
		}
	}
	return out
}
