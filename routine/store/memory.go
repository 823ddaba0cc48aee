// Package store provides in-memory routine storage.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/routine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	routines map[routine.RoutineID]routine.Routine
	history  map[routine.RoutineID][]routine.CompletionRecord // ordered by date
}

func NewMemory() *Memory {
	return &Memory{
		routines: make(map[routine.RoutineID]routine.Routine),
		history:  make(map[routine.RoutineID][]routine.CompletionRecord),
	}
}

func (m *Memory) SaveRoutine(_ context.Context, r routine.Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routines[r.ID] = r
	return nil
}

func (m *Memory) GetRoutine(_ context.Context, id routine.RoutineID) (routine.Routine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id routine.RoutineID) (routine.Routine, error) {
	r, ok := m.routines[id]
	if !ok {
		return routine.Routine{}, &routine.NotFoundError{ID: id}
	}
	return r, nil
}

func (m *Memory) ListRoutines(_ context.Context) ([]routine.Routine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]routine.Routine, 0, len(m.routines))
	for _, r := range m.routines {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Reset drops every routine and record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routines = make(map[routine.RoutineID]routine.Routine)
	m.history = make(map[routine.RoutineID][]routine.CompletionRecord)
	return nil
}

func (m *Memory) DeleteRoutine(_ context.Context, id routine.RoutineID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routines[id]; !ok {
		return &routine.NotFoundError{ID: id}
	}
	delete(m.routines, id)
	delete(m.history, id)
	return nil
}

// InsertCompletion upserts by date.
func (m *Memory) InsertCompletion(_ context.Context, id routine.RoutineID, rec routine.CompletionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(id, rec)
	return nil
}

func (m *Memory) insertLocked(id routine.RoutineID, rec routine.CompletionRecord) {
	recs := m.history[id]

	// Binary search for the insertion point.
	i := sort.Search(len(recs), func(i int) bool {
		return !recs[i].Date.Before(rec.Date)
	})
	if i < len(recs) && recs[i].Date.Equal(rec.Date) {
		recs[i] = rec
		return
	}

	recs = append(recs, routine.CompletionRecord{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	m.history[id] = recs
}

func (m *Memory) RecordByDate(_ context.Context, id routine.RoutineID, d calendar.Date) (*routine.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordLocked(id, d), nil
}

func (m *Memory) recordLocked(id routine.RoutineID, d calendar.Date) *routine.CompletionRecord {
	recs := m.history[id]
	i := sort.Search(len(recs), func(i int) bool { return !recs[i].Date.Before(d) })
	if i < len(recs) && recs[i].Date.Equal(d) {
		rec := recs[i]
		return &rec
	}
	return nil
}

func (m *Memory) LastCompletedRecord(_ context.Context, id routine.RoutineID) (*routine.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCompletedLocked(id), nil
}

func (m *Memory) lastCompletedLocked(id routine.RoutineID) *routine.CompletionRecord {
	recs := m.history[id]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Status == routine.StatusCompleted {
			rec := recs[i]
			return &rec
		}
	}
	return nil
}

func (m *Memory) NumOfTimesCompletedInPeriod(_ context.Context, id routine.RoutineID, min, max *calendar.Date) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completedLocked(id, min, max), nil
}

func (m *Memory) completedLocked(id routine.RoutineID, min, max *calendar.Date) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range m.history[id] {
		if rec.Status != routine.StatusCompleted {
			continue
		}
		if min != nil && rec.Date.Before(*min) {
			continue
		}
		if max != nil && rec.Date.After(*max) {
			continue
		}
		total = total.Add(rec.NumOfTimesCompleted)
	}
	return total
}

func (m *Memory) RecordsInRange(_ context.Context, id routine.RoutineID, from, to calendar.Date) ([]routine.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeLocked(id, from, to), nil
}

func (m *Memory) rangeLocked(id routine.RoutineID, from, to calendar.Date) []routine.CompletionRecord {
	var out []routine.CompletionRecord
	for _, rec := range m.history[id] {
		if from.BeforeOrEqual(rec.Date) && rec.Date.BeforeOrEqual(to) {
			out = append(out, rec)
		}
	}
	return out
}

func (m *Memory) UpdateRoutineState(_ context.Context, id routine.RoutineID, state routine.RoutineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(id, state)
}

func (m *Memory) updateLocked(id routine.RoutineID, state routine.RoutineState) error {
	r, err := m.getLocked(id)
	if err != nil {
		return err
	}
	r.ScheduleDeviation = state.ScheduleDeviation
	r.Progress = state.Progress
	if state.Counters != nil {
		r.Schedule = r.Schedule.WithCounters(*state.Counters)
	}
	m.routines[id] = r
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(routine.Gateway) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	routines map[routine.RoutineID]routine.Routine
	history  map[routine.RoutineID][]routine.CompletionRecord
}

func (tm *TxMemory) snapshot() memorySnapshot {
	routines := make(map[routine.RoutineID]routine.Routine, len(tm.routines))
	for k, v := range tm.routines {
		routines[k] = v
	}
	history := make(map[routine.RoutineID][]routine.CompletionRecord, len(tm.history))
	for k, v := range tm.history {
		history[k] = append([]routine.CompletionRecord{}, v...)
	}
	return memorySnapshot{routines: routines, history: history}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.routines = s.routines
	tm.history = s.history
}

// txMemoryView runs against the parent while its lock is held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) InsertCompletion(_ context.Context, id routine.RoutineID, rec routine.CompletionRecord) error {
	tv.parent.insertLocked(id, rec)
	return nil
}

func (tv *txMemoryView) RecordByDate(_ context.Context, id routine.RoutineID, d calendar.Date) (*routine.CompletionRecord, error) {
	return tv.parent.recordLocked(id, d), nil
}

func (tv *txMemoryView) LastCompletedRecord(_ context.Context, id routine.RoutineID) (*routine.CompletionRecord, error) {
	return tv.parent.lastCompletedLocked(id), nil
}

func (tv *txMemoryView) NumOfTimesCompletedInPeriod(_ context.Context, id routine.RoutineID, min, max *calendar.Date) (decimal.Decimal, error) {
	return tv.parent.completedLocked(id, min, max), nil
}

func (tv *txMemoryView) RecordsInRange(_ context.Context, id routine.RoutineID, from, to calendar.Date) ([]routine.CompletionRecord, error) {
	return tv.parent.rangeLocked(id, from, to), nil
}

func (tv *txMemoryView) UpdateRoutineState(_ context.Context, id routine.RoutineID, state routine.RoutineState) error {
	return tv.parent.updateLocked(id, state)
}
