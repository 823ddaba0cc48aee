/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:

	Due dates that pass without a completion only show up in a routine's
	ScheduleDeviation once its history is replayed. The scheduler replays
	every routine periodically so stored deviations and flexible counters
	stay current without user activity.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reconciles every stored routine through the accountant
  - One failing routine does not stop the run

USAGE:

	scheduler := NewReconcileScheduler(store, accountant, logger)
	scheduler.Start()
	// ... later
	scheduler.Stop()

SEE ALSO:
  - handlers.go: Reconcile endpoint (manual reconciliation)
  - routine/accountant.go: Accountant.Reconcile
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/routinely/routine-engine/logging"
	"github.com/routinely/routine-engine/routine"
)

// RunResult summarizes one reconciliation pass.
type RunResult struct {
	Reconciled int
	Changed    int
	Failed     int
}

// ReconcileScheduler periodically reconciles every routine.
type ReconcileScheduler struct {
	Routines      routine.Repository
	Accountant    *routine.Accountant
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun    time.Time
	lastResult RunResult
}

// NewReconcileScheduler creates a new scheduler.
func NewReconcileScheduler(routines routine.Repository, accountant *routine.Accountant, logger *zap.Logger) *ReconcileScheduler {
	return &ReconcileScheduler{
		Routines:      routines,
		Accountant:    accountant,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logging.OrNop(logger),
	}
}

// Start begins the scheduler.
func (rs *ReconcileScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.Logger.Info("reconcile scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("reconcile scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (rs *ReconcileScheduler) Stop() {
	rs.mu.Lock()
	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.ticker = nil
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.Logger.Info("reconcile scheduler stopped")
}

func (rs *ReconcileScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	rs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow reconciles every routine once.
func (rs *ReconcileScheduler) RunNow(ctx context.Context) RunResult {
	var res RunResult

	routines, err := rs.Routines.ListRoutines(ctx)
	if err != nil {
		rs.Logger.Error("listing routines", zap.Error(err))
		res.Failed++
		rs.record(res)
		return res
	}

	for _, rt := range routines {
		if ctx.Err() != nil {
			break
		}
		updated, err := rs.Accountant.Reconcile(ctx, rt)
		if err != nil {
			rs.Logger.Warn("reconciling routine", zap.String("routine_id", string(rt.ID)), zap.Error(err))
			res.Failed++
			continue
		}
		res.Reconciled++
		if updated.ScheduleDeviation != rt.ScheduleDeviation {
			res.Changed++
		}
	}

	rs.record(res)
	if res.Changed > 0 || res.Failed > 0 {
		rs.Logger.Info("reconcile pass completed",
			zap.Int("reconciled", res.Reconciled),
			zap.Int("changed", res.Changed),
			zap.Int("failed", res.Failed))
	}
	return res
}

func (rs *ReconcileScheduler) record(res RunResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.lastRun = time.Now()
	rs.lastResult = res
}

// LastRun returns when the last pass finished and its result.
func (rs *ReconcileScheduler) LastRun() (time.Time, RunResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.lastResult
}
