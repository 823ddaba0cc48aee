package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinely/routine-engine/routine/store"
	sqlitestore "github.com/routinely/routine-engine/store/sqlite"
)

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			db, err := sqlitestore.New(":memory:")
			require.NoError(t, err)
			defer db.Close()

			ts := newTestServer(t, db)
			require.NoError(t, ts.handler.LoadScenarioByID(context.Background(), sc.ID))

			routines, err := db.ListRoutines(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, routines)
		})
	}
}

func TestScenario_Starter(t *testing.T) {
	ts := newMemoryServer(t)
	require.NoError(t, ts.handler.LoadScenarioByID(context.Background(), "starter"))

	w := ts.do(t, http.MethodGet, "/api/routines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	routines := decode[[]RoutineDTO](t, w)
	require.Len(t, routines, 9)

	kinds := map[string]bool{}
	for _, r := range routines {
		kinds[r.Schedule.Type] = true
		assert.Zero(t, r.ScheduleDeviation, r.ID)
	}
	assert.Len(t, kinds, 9)
}

func TestScenario_Vacation(t *testing.T) {
	ts := newMemoryServer(t)
	require.NoError(t, ts.handler.LoadScenarioByID(context.Background(), "vacation"))

	// Days -10..-4 are vacation and -3, -2 are done, so only yesterday is missed.
	w := ts.do(t, http.MethodGet, "/api/routines/stretch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -1, decode[RoutineDTO](t, w).ScheduleDeviation)

	w = ts.do(t, http.MethodGet, "/api/routines/stretch/status?date="+testToday.AddDays(-7).String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[DayStateDTO](t, w)
	assert.True(t, st.Vacation)
	assert.False(t, st.Due)
}

func TestScenario_Endpoints(t *testing.T) {
	ts := newTestServer(t, store.NewTxMemory())

	w := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, w), len(scenarios))

	w = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Nil(t, decode[map[string]any](t, w)["scenario_id"])

	w = ts.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "backlog"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "backlog", decode[map[string]any](t, w)["scenario_id"])

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/scenarios/load", `nope`).Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/reset", nil).Code)
	w = ts.do(t, http.MethodGet, "/api/routines", nil)
	assert.Empty(t, decode[[]RoutineDTO](t, w))
	w = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Nil(t, decode[map[string]any](t, w)["scenario_id"])
}
