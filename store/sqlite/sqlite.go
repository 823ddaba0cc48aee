/*
Package sqlite provides a SQLite-backed implementation of routine.Store.

PURPOSE:

	Persists routine definitions, their schedules and the completion history,
	and implements routine.TxGateway so a completion and the replayed state
	land in one transaction.

KEY TABLES:

	routines:               name, description, progress, schedule deviation
	schedules:              one wide row per routine; variant fields are nullable
	due_dates:              integer-coded due days of the fixed-day variants
	week_day_month_related: "2nd Tuesday" style monthly due days
	completion_history:     one record per (routine_id, date), upserted

DUE DATE ENCODING:

	weekly:  weekday number, Sunday = 0
	monthly: day of month
	annual:  month*100 + day
	custom:  yyyymmdd

CONCURRENCY:

	Uses sync.RWMutex for thread-safety; WithTx holds the write lock for the
	whole transaction.

WAL MODE:

	SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
	the single writer.

ERRORS:

	Driver failures are wrapped with routine.ErrGatewayUnavailable. Unknown
	ids return *routine.NotFoundError.

USAGE:

	store, err := sqlite.New("./data/routines.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	acc := routine.NewAccountant(store, logger, collector)

MIGRATION:

	Schema is auto-migrated on New().

SEE ALSO:
  - routine/gateway.go: Interface definitions
  - mapping.go: Schedule <-> row mapping
  - routine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/routine"
)

// Store implements routine.Store and routine.TxGateway using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return routine.Unavailable("ping", s.db.PingContext(ctx))
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS routines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		session_duration_minutes INTEGER,
		default_completion_hour INTEGER,
		default_completion_minute INTEGER,
		progress TEXT NOT NULL DEFAULT '0',
		schedule_deviation INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_routines_name ON routines(name);

	-- One wide row per routine; columns unused by the variant stay NULL.
	CREATE TABLE IF NOT EXISTS schedules (
		routine_id TEXT PRIMARY KEY REFERENCES routines(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		vacation_start TEXT,
		vacation_end TEXT,
		backlog_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		cancel_dueness_if_done_ahead BOOLEAN NOT NULL DEFAULT FALSE,
		start_day_of_week INTEGER,
		start_from_routine_start BOOLEAN NOT NULL DEFAULT FALSE,
		include_last_day_of_month BOOLEAN NOT NULL DEFAULT FALSE,
		period_separation_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		num_of_due_days INTEGER,
		num_of_due_days_in_first_period INTEGER,
		num_of_completed_days_in_current_period INTEGER NOT NULL DEFAULT 0,
		current_period_start TEXT,
		counters_as_of TEXT,
		num_of_days_in_period INTEGER
	);

	CREATE TABLE IF NOT EXISTS due_dates (
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		due_date INTEGER NOT NULL,
		PRIMARY KEY (routine_id, due_date)
	);

	CREATE TABLE IF NOT EXISTS week_day_month_related (
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		day_of_week INTEGER NOT NULL,
		week_number INTEGER NOT NULL,
		PRIMARY KEY (routine_id, day_of_week, week_number)
	);

	CREATE TABLE IF NOT EXISTS completion_history (
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		num_of_times_completed TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (routine_id, date)
	);

	-- Hot path: last completed record and period sums
	CREATE INDEX IF NOT EXISTS idx_completion_history_status_date
		ON completion_history(routine_id, status, date DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Databases created before counters_as_of existed.
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('schedules') WHERE name = 'counters_as_of'`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		_, err := s.db.Exec(`ALTER TABLE schedules ADD COLUMN counters_as_of TEXT`)
		return err
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ROUTINES (routine.Repository interface)
// =============================================================================

// SaveRoutine inserts or replaces a routine with its schedule.
func (s *Store) SaveRoutine(ctx context.Context, r routine.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return routine.Unavailable("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := saveRoutine(ctx, sqlTx, r); err != nil {
		return err
	}
	return routine.Unavailable("commit", sqlTx.Commit())
}

func saveRoutine(ctx context.Context, q querier, r routine.Routine) error {
	var sessionMinutes, hour, minute sql.NullInt64
	if r.SessionDuration != nil {
		sessionMinutes = sql.NullInt64{Int64: int64(*r.SessionDuration / time.Minute), Valid: true}
	}
	if r.DefaultCompletionTime != nil {
		hour = sql.NullInt64{Int64: int64(r.DefaultCompletionTime.Hour), Valid: true}
		minute = sql.NullInt64{Int64: int64(r.DefaultCompletionTime.Minute), Valid: true}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		INSERT INTO routines
		(id, name, description, session_duration_minutes, default_completion_hour,
		 default_completion_minute, progress, schedule_deviation, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			session_duration_minutes = excluded.session_duration_minutes,
			default_completion_hour = excluded.default_completion_hour,
			default_completion_minute = excluded.default_completion_minute,
			progress = excluded.progress,
			schedule_deviation = excluded.schedule_deviation,
			updated_at = excluded.updated_at
	`,
		r.ID, r.Name, r.Description, sessionMinutes, hour, minute,
		r.Progress.String(), r.ScheduleDeviation, now, now,
	)
	if err != nil {
		return routine.Unavailable("save routine", err)
	}

	row, dueDates, related := toRow(r.Schedule)
	_, err = q.ExecContext(ctx, `
		INSERT OR REPLACE INTO schedules
		(routine_id, kind, start_date, end_date, vacation_start, vacation_end,
		 backlog_enabled, cancel_dueness_if_done_ahead, start_day_of_week,
		 start_from_routine_start, include_last_day_of_month, period_separation_enabled,
		 num_of_due_days, num_of_due_days_in_first_period,
		 num_of_completed_days_in_current_period, current_period_start, counters_as_of, num_of_days_in_period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, row.Kind, row.StartDate, row.EndDate, row.VacationStart, row.VacationEnd,
		row.BacklogEnabled, row.CancelDuenessIfDoneAhead, row.StartDayOfWeek,
		row.StartFromRoutineStart, row.IncludeLastDayOfMonth, row.PeriodSeparationEnabled,
		row.NumOfDueDays, row.NumOfDueDaysInFirstPeriod,
		row.NumOfCompletedDaysInCurrentPeriod, row.CurrentPeriodStart, row.CountersAsOf, row.NumOfDaysInPeriod,
	)
	if err != nil {
		return routine.Unavailable("save schedule", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM due_dates WHERE routine_id = ?", r.ID); err != nil {
		return routine.Unavailable("save due dates", err)
	}
	for _, d := range dueDates {
		if _, err := q.ExecContext(ctx, "INSERT INTO due_dates (routine_id, due_date) VALUES (?, ?)", r.ID, d); err != nil {
			return routine.Unavailable("save due dates", err)
		}
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM week_day_month_related WHERE routine_id = ?", r.ID); err != nil {
		return routine.Unavailable("save week days", err)
	}
	for _, w := range related {
		_, err := q.ExecContext(ctx,
			"INSERT INTO week_day_month_related (routine_id, day_of_week, week_number) VALUES (?, ?, ?)",
			r.ID, int(w.DayOfWeek), int(w.Ordinal))
		if err != nil {
			return routine.Unavailable("save week days", err)
		}
	}
	return nil
}

// GetRoutine loads a routine with its schedule.
func (s *Store) GetRoutine(ctx context.Context, id routine.RoutineID) (routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRoutine(ctx, s.db, id)
}

func getRoutine(ctx context.Context, q querier, id routine.RoutineID) (routine.Routine, error) {
	var (
		r              routine.Routine
		sessionMinutes sql.NullInt64
		hour, minute   sql.NullInt64
		progress       string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, description, session_duration_minutes, default_completion_hour,
		       default_completion_minute, progress, schedule_deviation
		FROM routines WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.Description, &sessionMinutes, &hour, &minute, &progress, &r.ScheduleDeviation)
	if err == sql.ErrNoRows {
		return routine.Routine{}, &routine.NotFoundError{ID: id}
	}
	if err != nil {
		return routine.Routine{}, routine.Unavailable("get routine", err)
	}

	if sessionMinutes.Valid {
		d := time.Duration(sessionMinutes.Int64) * time.Minute
		r.SessionDuration = &d
	}
	if hour.Valid && minute.Valid {
		r.DefaultCompletionTime = &routine.TimeOfDay{Hour: int(hour.Int64), Minute: int(minute.Int64)}
	}
	r.Progress, err = decimal.NewFromString(progress)
	if err != nil {
		return routine.Routine{}, fmt.Errorf("routine %s: bad progress %q: %w", id, progress, err)
	}

	row, err := loadScheduleRow(ctx, q, id)
	if err != nil {
		return routine.Routine{}, err
	}
	dueDates, err := loadDueDates(ctx, q, id)
	if err != nil {
		return routine.Routine{}, err
	}
	related, err := loadWeekDays(ctx, q, id)
	if err != nil {
		return routine.Routine{}, err
	}
	r.Schedule, err = fromRow(row, dueDates, related)
	if err != nil {
		return routine.Routine{}, fmt.Errorf("routine %s: %w", id, err)
	}
	return r, nil
}

func loadScheduleRow(ctx context.Context, q querier, id routine.RoutineID) (scheduleRow, error) {
	var row scheduleRow
	err := q.QueryRowContext(ctx, `
		SELECT kind, start_date, end_date, vacation_start, vacation_end,
		       backlog_enabled, cancel_dueness_if_done_ahead, start_day_of_week,
		       start_from_routine_start, include_last_day_of_month, period_separation_enabled,
		       num_of_due_days, num_of_due_days_in_first_period,
		       num_of_completed_days_in_current_period, current_period_start, counters_as_of, num_of_days_in_period
		FROM schedules WHERE routine_id = ?
	`, id).Scan(
		&row.Kind, &row.StartDate, &row.EndDate, &row.VacationStart, &row.VacationEnd,
		&row.BacklogEnabled, &row.CancelDuenessIfDoneAhead, &row.StartDayOfWeek,
		&row.StartFromRoutineStart, &row.IncludeLastDayOfMonth, &row.PeriodSeparationEnabled,
		&row.NumOfDueDays, &row.NumOfDueDaysInFirstPeriod,
		&row.NumOfCompletedDaysInCurrentPeriod, &row.CurrentPeriodStart, &row.CountersAsOf, &row.NumOfDaysInPeriod,
	)
	if err == sql.ErrNoRows {
		return row, &routine.NotFoundError{ID: id}
	}
	if err != nil {
		return row, routine.Unavailable("get schedule", err)
	}
	return row, nil
}

func loadDueDates(ctx context.Context, q querier, id routine.RoutineID) ([]int, error) {
	rows, err := q.QueryContext(ctx, "SELECT due_date FROM due_dates WHERE routine_id = ? ORDER BY due_date", id)
	if err != nil {
		return nil, routine.Unavailable("get due dates", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, routine.Unavailable("scan due date", err)
		}
		out = append(out, d)
	}
	return out, routine.Unavailable("get due dates", rows.Err())
}

func loadWeekDays(ctx context.Context, q querier, id routine.RoutineID) ([]calendar.WeekDayMonthRelated, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT day_of_week, week_number FROM week_day_month_related
		WHERE routine_id = ? ORDER BY week_number, day_of_week
	`, id)
	if err != nil {
		return nil, routine.Unavailable("get week days", err)
	}
	defer rows.Close()

	var out []calendar.WeekDayMonthRelated
	for rows.Next() {
		var dow, ordinal int
		if err := rows.Scan(&dow, &ordinal); err != nil {
			return nil, routine.Unavailable("scan week day", err)
		}
		out = append(out, calendar.WeekDayMonthRelated{DayOfWeek: time.Weekday(dow), Ordinal: calendar.WeekOrdinal(ordinal)})
	}
	return out, routine.Unavailable("get week days", rows.Err())
}

// ListRoutines returns all routines ordered by name.
func (s *Store) ListRoutines(ctx context.Context) ([]routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM routines ORDER BY name, id")
	if err != nil {
		return nil, routine.Unavailable("list routines", err)
	}
	var ids []routine.RoutineID
	for rows.Next() {
		var id routine.RoutineID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, routine.Unavailable("scan routine id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, routine.Unavailable("list routines", err)
	}

	out := make([]routine.Routine, 0, len(ids))
	for _, id := range ids {
		r, err := getRoutine(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteRoutine removes a routine, its schedule and its history.
func (s *Store) DeleteRoutine(ctx context.Context, id routine.RoutineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM routines WHERE id = ?", id)
	if err != nil {
		return routine.Unavailable("delete routine", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &routine.NotFoundError{ID: id}
	}
	return nil
}

// =============================================================================
// COMPLETION HISTORY (routine.RangeHistory interface)
// =============================================================================

// InsertCompletion upserts the record for (id, date).
func (s *Store) InsertCompletion(ctx context.Context, id routine.RoutineID, rec routine.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCompletion(ctx, s.db, id, rec)
}

func insertCompletion(ctx context.Context, q querier, id routine.RoutineID, rec routine.CompletionRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO completion_history (routine_id, date, status, num_of_times_completed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(routine_id, date) DO UPDATE SET
			status = excluded.status,
			num_of_times_completed = excluded.num_of_times_completed,
			updated_at = excluded.updated_at
	`, id, rec.Date.String(), string(rec.Status), rec.NumOfTimesCompleted.String(),
		time.Now().UTC().Format(time.RFC3339))
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return &routine.NotFoundError{ID: id}
	}
	if err != nil {
		return routine.Unavailable("insert completion", err)
	}
	return nil
}

// RecordByDate returns the record for date, or nil.
func (s *Store) RecordByDate(ctx context.Context, id routine.RoutineID, d calendar.Date) (*routine.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recordByDate(ctx, s.db, id, d)
}

func recordByDate(ctx context.Context, q querier, id routine.RoutineID, d calendar.Date) (*routine.CompletionRecord, error) {
	recs, err := queryRecords(ctx, q, `
		SELECT date, status, num_of_times_completed FROM completion_history
		WHERE routine_id = ? AND date = ?
	`, id, d.String())
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// LastCompletedRecord returns the latest completed record, or nil.
func (s *Store) LastCompletedRecord(ctx context.Context, id routine.RoutineID) (*routine.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastCompletedRecord(ctx, s.db, id)
}

func lastCompletedRecord(ctx context.Context, q querier, id routine.RoutineID) (*routine.CompletionRecord, error) {
	recs, err := queryRecords(ctx, q, `
		SELECT date, status, num_of_times_completed FROM completion_history
		WHERE routine_id = ? AND status = ?
		ORDER BY date DESC LIMIT 1
	`, id, string(routine.StatusCompleted))
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// NumOfTimesCompletedInPeriod sums completions in [min, max].
func (s *Store) NumOfTimesCompletedInPeriod(ctx context.Context, id routine.RoutineID, min, max *calendar.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return numOfTimesCompleted(ctx, s.db, id, min, max)
}

func numOfTimesCompleted(ctx context.Context, q querier, id routine.RoutineID, min, max *calendar.Date) (decimal.Decimal, error) {
	query := `
		SELECT date, status, num_of_times_completed FROM completion_history
		WHERE routine_id = ? AND status = ?`
	args := []any{id, string(routine.StatusCompleted)}
	if min != nil {
		query += " AND date >= ?"
		args = append(args, min.String())
	}
	if max != nil {
		query += " AND date <= ?"
		args = append(args, max.String())
	}

	recs, err := queryRecords(ctx, q, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rec := range recs {
		total = total.Add(rec.NumOfTimesCompleted)
	}
	return total, nil
}

// RecordsInRange returns the records in [from, to] ordered by date.
func (s *Store) RecordsInRange(ctx context.Context, id routine.RoutineID, from, to calendar.Date) ([]routine.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recordsInRange(ctx, s.db, id, from, to)
}

func recordsInRange(ctx context.Context, q querier, id routine.RoutineID, from, to calendar.Date) ([]routine.CompletionRecord, error) {
	return queryRecords(ctx, q, `
		SELECT date, status, num_of_times_completed FROM completion_history
		WHERE routine_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, id, from.String(), to.String())
}

func queryRecords(ctx context.Context, q querier, query string, args ...any) ([]routine.CompletionRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, routine.Unavailable("query completions", err)
	}
	defer rows.Close()

	var out []routine.CompletionRecord
	for rows.Next() {
		var day, status, times string
		if err := rows.Scan(&day, &status, &times); err != nil {
			return nil, routine.Unavailable("scan completion", err)
		}
		d, err := calendar.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("stored completion date: %w", err)
		}
		n, err := decimal.NewFromString(times)
		if err != nil {
			return nil, fmt.Errorf("stored completion count %q: %w", times, err)
		}
		out = append(out, routine.CompletionRecord{Date: d, Status: routine.CompletionStatus(status), NumOfTimesCompleted: n})
	}
	return out, routine.Unavailable("query completions", rows.Err())
}

// =============================================================================
// ROUTINE STATE (routine.StateWriter interface)
// =============================================================================

// UpdateRoutineState stores replayed deviation, progress and counters.
func (s *Store) UpdateRoutineState(ctx context.Context, id routine.RoutineID, state routine.RoutineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRoutineState(ctx, s.db, id, state)
}

func updateRoutineState(ctx context.Context, q querier, id routine.RoutineID, state routine.RoutineState) error {
	res, err := q.ExecContext(ctx, `
		UPDATE routines SET schedule_deviation = ?, progress = ?, updated_at = ?
		WHERE id = ?
	`, state.ScheduleDeviation, state.Progress.String(), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return routine.Unavailable("update routine state", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &routine.NotFoundError{ID: id}
	}

	if state.Counters == nil {
		return nil
	}
	var periodStart, asOf sql.NullString
	if !state.Counters.CurrentPeriodStart.IsZero() {
		periodStart = sql.NullString{String: state.Counters.CurrentPeriodStart.String(), Valid: true}
	}
	if !state.Counters.AsOf.IsZero() {
		asOf = sql.NullString{String: state.Counters.AsOf.String(), Valid: true}
	}
	_, err = q.ExecContext(ctx, `
		UPDATE schedules SET num_of_completed_days_in_current_period = ?, current_period_start = ?, counters_as_of = ?
		WHERE routine_id = ?
	`, state.Counters.NumOfCompletedDaysInCurrentPeriod, periodStart, asOf, id)
	return routine.Unavailable("update counters", err)
}

// =============================================================================
// TRANSACTIONAL STORE (routine.TxGateway interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(routine.Gateway) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return routine.Unavailable("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return routine.Unavailable("commit", sqlTx.Commit())
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertCompletion(ctx context.Context, id routine.RoutineID, rec routine.CompletionRecord) error {
	return insertCompletion(ctx, ts.tx, id, rec)
}

func (ts *txStore) RecordByDate(ctx context.Context, id routine.RoutineID, d calendar.Date) (*routine.CompletionRecord, error) {
	return recordByDate(ctx, ts.tx, id, d)
}

func (ts *txStore) LastCompletedRecord(ctx context.Context, id routine.RoutineID) (*routine.CompletionRecord, error) {
	return lastCompletedRecord(ctx, ts.tx, id)
}

func (ts *txStore) NumOfTimesCompletedInPeriod(ctx context.Context, id routine.RoutineID, min, max *calendar.Date) (decimal.Decimal, error) {
	return numOfTimesCompleted(ctx, ts.tx, id, min, max)
}

func (ts *txStore) RecordsInRange(ctx context.Context, id routine.RoutineID, from, to calendar.Date) ([]routine.CompletionRecord, error) {
	return recordsInRange(ctx, ts.tx, id, from, to)
}

func (ts *txStore) UpdateRoutineState(ctx context.Context, id routine.RoutineID, state routine.RoutineState) error {
	return updateRoutineState(ctx, ts.tx, id, state)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"completion_history", "week_day_month_related", "due_dates", "schedules", "routines"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return routine.Unavailable("reset", err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
