/*
handlers.go - HTTP API handlers for the routine engine

PURPOSE:

	Exposes routines, completions and schedule queries via REST API. Handles
	HTTP request/response and JSON serialization, and delegates to the
	routine accountant and the schedule evaluator.

ENDPOINTS:

	Routines:
	  GET    /api/routines                        List routines
	  POST   /api/routines                        Create routine
	  GET    /api/routines/{id}                   Get routine
	  PUT    /api/routines/{id}                   Replace routine definition
	  DELETE /api/routines/{id}                   Delete routine and its history

	Completions:
	  POST   /api/routines/{id}/completions       Log a completion, skip or undo
	  GET    /api/routines/{id}/completions       History in [from, to]
	  POST   /api/routines/{id}/reconcile         Recompute deviation as of today

	Queries (dates are YYYY-MM-DD):
	  GET    /api/routines/{id}/due-dates?from&to
	  GET    /api/routines/{id}/due-count?from&to        open bounds allowed
	  GET    /api/routines/{id}/completed-count?from&to  open bounds allowed
	  GET    /api/routines/{id}/days?from&to
	  GET    /api/routines/{id}/status?date              date defaults to today

ERROR HANDLING:
  - 400: invalid dates, schedule config, routine fields or JSON
  - 404: routine not found
  - 503: completion history unavailable
  - 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/factory"
	"github.com/routinely/routine-engine/logging"
	"github.com/routinely/routine-engine/routine"
)

// maxRangeDays caps day-by-day query ranges.
const maxRangeDays = 3660

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the storage the API needs. Both store/sqlite.Store and
// routine/store.TxMemory satisfy it.
type Store interface {
	routine.Store
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store           Store
	Accountant      *routine.Accountant
	ScheduleFactory *factory.ScheduleFactory
	Logger          *zap.Logger

	// NewID generates routine ids. Defaults to random UUIDs.
	NewID func() string

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler backed by store. The accountant reads the
// completion history from the same store.
func NewHandler(store Store, accountant *routine.Accountant, logger *zap.Logger) *Handler {
	return &Handler{
		Store:           store,
		Accountant:      accountant,
		ScheduleFactory: factory.NewScheduleFactory(),
		Logger:          logging.OrNop(logger),
		NewID:           func() string { return uuid.NewString() },
	}
}

func (h *Handler) today() calendar.Date {
	if h.Accountant.Today != nil {
		return h.Accountant.Today()
	}
	return calendar.Today()
}

// =============================================================================
// ROUTINE HANDLERS
// =============================================================================

// ListRoutines returns all routines.
func (h *Handler) ListRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := h.Store.ListRoutines(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list routines", err)
		return
	}

	dtos := make([]RoutineDTO, len(routines))
	for i, rt := range routines {
		dtos[i] = toRoutineDTO(h.ScheduleFactory, rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRoutine returns a single routine.
func (h *Handler) GetRoutine(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRoutineDTO(h.ScheduleFactory, rt))
}

// CreateRoutine stores a new routine and reconciles it, so a start date in
// the past is debited immediately.
func (h *Handler) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	var req RoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := req.ID
	if id == "" {
		id = h.NewID()
	}
	if _, err := h.Store.GetRoutine(r.Context(), routine.RoutineID(id)); err == nil {
		writeError(w, http.StatusConflict, "Routine already exists", fmt.Errorf("id %s is taken", id))
		return
	} else if !routine.IsNotFound(err) {
		h.writeDomainError(w, "Failed to create routine", err)
		return
	}

	rt, err := h.saveAndReconcile(r.Context(), routine.RoutineID(id), req)
	if err != nil {
		h.writeDomainError(w, "Failed to create routine", err)
		return
	}

	h.Logger.Info("routine created", zap.String("routine_id", id), zap.String("kind", string(rt.Schedule.Kind())))
	writeJSON(w, http.StatusCreated, toRoutineDTO(h.ScheduleFactory, rt))
}

// UpdateRoutine replaces a routine's definition and replays its history
// under the new schedule.
func (h *Handler) UpdateRoutine(w http.ResponseWriter, r *http.Request) {
	id := routine.RoutineID(chi.URLParam(r, "id"))

	var req RoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := h.Store.GetRoutine(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to update routine", err)
		return
	}

	rt, err := h.saveAndReconcile(r.Context(), id, req)
	if err != nil {
		h.writeDomainError(w, "Failed to update routine", err)
		return
	}
	writeJSON(w, http.StatusOK, toRoutineDTO(h.ScheduleFactory, rt))
}

func (h *Handler) saveAndReconcile(ctx context.Context, id routine.RoutineID, req RoutineRequest) (routine.Routine, error) {
	rt, err := toRoutine(h.ScheduleFactory, id, req)
	if err != nil {
		return rt, err
	}
	if err := h.Store.SaveRoutine(ctx, rt); err != nil {
		return rt, err
	}
	return h.Accountant.Reconcile(ctx, rt)
}

// DeleteRoutine removes a routine and its completion history.
func (h *Handler) DeleteRoutine(w http.ResponseWriter, r *http.Request) {
	id := routine.RoutineID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteRoutine(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete routine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COMPLETION HANDLERS
// =============================================================================

// RecordCompletion applies a completion, skip or undo and returns the
// updated routine.
func (h *Handler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}

	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Accountant.ApplyCompletion(r.Context(), rt, toRecord(req))
	if err != nil {
		h.writeDomainError(w, "Failed to record completion", err)
		return
	}
	writeJSON(w, http.StatusOK, toRoutineDTO(h.ScheduleFactory, updated))
}

// ListCompletions returns the stored records in [from, to]. Both bounds
// default to the routine's start date and today.
func (h *Handler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	from, to, ok := h.requireRange(w, r, rt)
	if !ok {
		return
	}

	records, err := h.Store.RecordsInRange(r.Context(), rt.ID, from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to list completions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletionDTOs(records))
}

// Reconcile recomputes the routine's stored state as of today.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	updated, err := h.Accountant.Reconcile(r.Context(), rt)
	if err != nil {
		h.writeDomainError(w, "Failed to reconcile routine", err)
		return
	}
	writeJSON(w, http.StatusOK, toRoutineDTO(h.ScheduleFactory, updated))
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// DueDates lists due dates in [from, to].
func (h *Handler) DueDates(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	from, to, ok := h.requireRange(w, r, rt)
	if !ok {
		return
	}

	dates := rt.Schedule.DueDatesInRange(from, to)
	if dates == nil {
		dates = []calendar.Date{}
	}
	writeJSON(w, http.StatusOK, DueDatesDTO{From: from, To: to, Dates: dates})
}

// DueCount counts due occurrences. Missing bounds are open.
func (h *Handler) DueCount(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	from, to, ok := optionalRange(w, r)
	if !ok {
		return
	}
	count := h.Accountant.NumOfTimesDueInPeriod(rt.Schedule, from, to)
	writeJSON(w, http.StatusOK, CountDTO{From: from, To: to, Count: count})
}

// CompletedCount sums completions. Missing bounds are open.
func (h *Handler) CompletedCount(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	from, to, ok := optionalRange(w, r)
	if !ok {
		return
	}
	count, err := h.Accountant.NumOfTimesCompletedInPeriod(r.Context(), rt.ID, from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to count completions", err)
		return
	}
	writeJSON(w, http.StatusOK, CountDTO{From: from, To: to, Count: count})
}

// DayStates returns the replayed state of every day in [from, to].
func (h *Handler) DayStates(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	from, to, ok := h.requireRange(w, r, rt)
	if !ok {
		return
	}

	states, err := h.Accountant.DayStates(r.Context(), rt, from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to compute day states", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayStateDTOs(states))
}

// Status returns the state of one day.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.loadRoutine(w, r)
	if !ok {
		return
	}
	d := h.today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := calendar.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		d = parsed
	}

	st, err := h.Accountant.StatusOn(r.Context(), rt, d)
	if err != nil {
		h.writeDomainError(w, "Failed to compute status", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayStateDTOs([]routine.DayState{st})[0])
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadRoutine(w http.ResponseWriter, r *http.Request) (routine.Routine, bool) {
	id := routine.RoutineID(chi.URLParam(r, "id"))
	rt, err := h.Store.GetRoutine(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get routine", err)
		return routine.Routine{}, false
	}
	return rt, true
}

// requireRange reads from/to, defaulting to the start date and today.
func (h *Handler) requireRange(w http.ResponseWriter, r *http.Request, rt routine.Routine) (calendar.Date, calendar.Date, bool) {
	from, to, ok := optionalRange(w, r)
	if !ok {
		return calendar.Date{}, calendar.Date{}, false
	}
	if from == nil {
		from = &rt.Schedule.StartDate
	}
	if to == nil {
		today := h.today()
		to = &today
	}
	if to.Before(*from) {
		writeError(w, http.StatusBadRequest, "Invalid range", fmt.Errorf("to %s is before from %s", to, from))
		return calendar.Date{}, calendar.Date{}, false
	}
	if calendar.DaysBetween(*from, *to) > maxRangeDays {
		writeError(w, http.StatusBadRequest, "Range too long", fmt.Errorf("at most %d days", maxRangeDays))
		return calendar.Date{}, calendar.Date{}, false
	}
	return *from, *to, true
}

func optionalRange(w http.ResponseWriter, r *http.Request) (*calendar.Date, *calendar.Date, bool) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD)", err)
		return nil, nil, false
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to (use YYYY-MM-DD)", err)
		return nil, nil, false
	}
	return from, to, true
}

func queryDate(r *http.Request, key string) (*calendar.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// writeDomainError maps routine, schedule and calendar errors to a status.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case routine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case routine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Routine not found", err)
	case routine.IsUnavailable(err):
		h.Logger.Warn(message, zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			writeError(w, http.StatusBadRequest, message, err)
			return
		}
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
