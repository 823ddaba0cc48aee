/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with routines and
	completion histories. Each scenario shows specific schedule features.
	Dates are relative to the accountant's today, so a scenario looks the
	same whenever it is loaded.

AVAILABLE SCENARIOS:

	starter:        one routine per schedule kind, no history
	busy-month:     four weeks of mixed completions, skips and misses
	backlog:        missed days repaid later, with period separation
	done-ahead:     completions ahead of schedule cancelling later due days
	vacation:       a vacation suspending two routines

HOW SCENARIOS WORK:
 1. Reset the store
 2. Create routines from schedule JSON via the factory
 3. Apply completions through the accountant
 4. Reconcile every routine as of today

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-month"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - factory/schedule.go: Schedule JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/routine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter",
		Name:        "Starter",
		Description: "One routine for each of the nine schedule kinds, starting today",
	},
	{
		ID:          "busy-month",
		Name:        "Busy Month",
		Description: "Four weeks of completions, skips and missed days",
	},
	{
		ID:          "backlog",
		Name:        "Backlog",
		Description: "Missed due days repaid by later completions",
	},
	{
		ID:          "done-ahead",
		Name:        "Done Ahead",
		Description: "Extra completions cancelling later due days",
	},
	{
		ID:          "vacation",
		Name:        "Vacation",
		Description: "A week of vacation suspending dueness",
	},
}

// scenarioRoutine is a routine plus the history to apply to it. Offsets are
// days relative to today.
type scenarioRoutine struct {
	ID          string
	Name        string
	Description string
	Schedule    string
	Completed   []int
	Skipped     []int
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the id of the last loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario_id": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario_id": s.ID, "name": s.Name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario_id": current})
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if _, ok := scenarioRoutines(req.ScenarioID, h.today()); !ok {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store and loads the named scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	today := h.today()
	defs, ok := scenarioRoutines(id, today)
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	for _, def := range defs {
		if err := h.loadScenarioRoutine(ctx, today, def); err != nil {
			return fmt.Errorf("scenario %s, routine %s: %w", id, def.ID, err)
		}
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", id), zap.Int("routines", len(defs)))
	return nil
}

func (h *Handler) loadScenarioRoutine(ctx context.Context, today calendar.Date, def scenarioRoutine) error {
	s, err := h.ScheduleFactory.ParseSchedule(def.Schedule)
	if err != nil {
		return err
	}
	rt := routine.Routine{
		ID:          routine.RoutineID(def.ID),
		Name:        def.Name,
		Description: def.Description,
		Progress:    decimal.Zero,
		Schedule:    s,
	}
	if err := rt.Validate(); err != nil {
		return err
	}
	if err := h.Store.SaveRoutine(ctx, rt); err != nil {
		return err
	}

	for _, off := range def.Completed {
		if rt, err = h.Accountant.ApplyCompletion(ctx, rt, routine.Completed(today.AddDays(off))); err != nil {
			return err
		}
	}
	for _, off := range def.Skipped {
		if rt, err = h.Accountant.ApplyCompletion(ctx, rt, routine.Skipped(today.AddDays(off))); err != nil {
			return err
		}
	}
	_, err = h.Accountant.Reconcile(ctx, rt)
	return err
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

func scenarioRoutines(id string, today calendar.Date) ([]scenarioRoutine, bool) {
	day := func(off int) string { return today.AddDays(off).String() }
	annual := func(off int) string {
		return calendar.AnnualDate{Month: today.AddDays(off).Month(), Day: today.AddDays(off).Day()}.String()
	}

	switch id {
	case "starter":
		start := day(0)
		return []scenarioRoutine{
			{ID: "stretch", Name: "Stretch", Schedule: fmt.Sprintf(`{"type": "every_day", "start_date": %q}`, start)},
			{ID: "gym", Name: "Gym", Schedule: fmt.Sprintf(`{"type": "weekly_by_due_days_of_week", "start_date": %q, "due_days_of_week": ["monday", "wednesday", "friday"]}`, start)},
			{ID: "read", Name: "Read", Schedule: fmt.Sprintf(`{"type": "weekly_by_num_of_due_days", "start_date": %q, "num_of_due_days": 3, "start_day_of_week": "monday"}`, start)},
			{ID: "budget", Name: "Budget review", Schedule: fmt.Sprintf(`{"type": "monthly_by_due_dates_indices", "start_date": %q, "due_dates_indices": [1], "include_last_day_of_month": true}`, start)},
			{ID: "call-family", Name: "Call family", Schedule: fmt.Sprintf(`{"type": "monthly_by_num_of_due_days", "start_date": %q, "num_of_due_days": 4}`, start)},
			{ID: "anniversaries", Name: "Anniversaries", Schedule: fmt.Sprintf(`{"type": "annual_by_due_dates", "start_date": %q, "annual_due_dates": [%q, "12-31"]}`, start, annual(30))},
			{ID: "checkup", Name: "Health checkup", Schedule: fmt.Sprintf(`{"type": "annual_by_num_of_due_days", "start_date": %q, "num_of_due_days": 2}`, start)},
			{ID: "water-plants", Name: "Water plants", Schedule: fmt.Sprintf(`{"type": "periodic_custom", "start_date": %q, "num_of_due_days": 2, "num_of_days_in_period": 7}`, start)},
			{ID: "passport", Name: "Renew passport", Schedule: fmt.Sprintf(`{"type": "custom_date", "start_date": %q, "due_dates": [%q]}`, start, day(14))},
		}, true

	case "busy-month":
		start := day(-27)
		return []scenarioRoutine{
			{
				ID: "stretch", Name: "Stretch", Description: "Ten minutes after waking up",
				Schedule:  fmt.Sprintf(`{"type": "every_day", "start_date": %q}`, start),
				Completed: []int{-27, -26, -25, -23, -22, -20, -19, -18, -15, -14, -13, -12, -10, -8, -7, -6, -5, -3, -2, -1},
				Skipped:   []int{-24},
			},
			{
				ID: "read", Name: "Read", Description: "Three sessions a week",
				Schedule:  fmt.Sprintf(`{"type": "weekly_by_num_of_due_days", "start_date": %q, "num_of_due_days": 3}`, start),
				Completed: []int{-26, -24, -20, -17, -16, -13, -9, -6, -2},
			},
			{
				ID: "water-plants", Name: "Water plants",
				Schedule:  fmt.Sprintf(`{"type": "periodic_custom", "start_date": %q, "num_of_due_days": 2, "num_of_days_in_period": 7}`, start),
				Completed: []int{-27, -24, -19, -12, -9, -4},
			},
		}, true

	case "backlog":
		start := day(-20)
		return []scenarioRoutine{
			{
				ID: "journal", Name: "Journal", Description: "Missed days can be caught up",
				Schedule:  fmt.Sprintf(`{"type": "every_day", "start_date": %q, "backlog_enabled": true}`, start),
				Completed: []int{-20, -19, -15, -14, -13, -5, -4, -3, -2, -1},
			},
			{
				ID: "language", Name: "Language lesson", Description: "Backlog expires at the end of each week",
				Schedule:  fmt.Sprintf(`{"type": "weekly_by_num_of_due_days", "start_date": %q, "num_of_due_days": 4, "backlog_enabled": true, "period_separation_enabled": true}`, start),
				Completed: []int{-20, -18, -12, -11, -10, -4},
			},
		}, true

	case "done-ahead":
		start := day(-10)
		return []scenarioRoutine{
			{
				ID: "run", Name: "Run", Description: "Extra runs cancel the next due days",
				Schedule:  fmt.Sprintf(`{"type": "weekly_by_due_days_of_week", "start_date": %q, "due_days_of_week": ["tuesday", "thursday", "saturday"], "cancel_dueness_if_done_ahead": true}`, start),
				Completed: []int{-10, -9, -8, -7, -6, -5, -1},
			},
			{
				ID: "meal-prep", Name: "Meal prep",
				Schedule:  fmt.Sprintf(`{"type": "periodic_custom", "start_date": %q, "num_of_due_days": 1, "num_of_days_in_period": 3, "cancel_dueness_if_done_ahead": true}`, start),
				Completed: []int{-10, -9, -8, -2},
			},
		}, true

	case "vacation":
		start := day(-21)
		vacation := fmt.Sprintf(`{"start": %q, "end": %q}`, day(-10), day(-4))
		return []scenarioRoutine{
			{
				ID: "stretch", Name: "Stretch",
				Schedule:  fmt.Sprintf(`{"type": "every_day", "start_date": %q, "vacation": %s}`, start, vacation),
				Completed: []int{-21, -20, -19, -18, -17, -16, -15, -14, -13, -12, -11, -3, -2},
			},
			{
				ID: "call-family", Name: "Call family",
				Schedule:  fmt.Sprintf(`{"type": "monthly_by_num_of_due_days", "start_date": %q, "num_of_due_days": 4, "start_from_routine_start": true, "vacation": %s}`, start, vacation),
				Completed: []int{-20, -13, -1},
			},
		}, true
	}
	return nil, false
}
