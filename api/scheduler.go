/*
scheduler.go - Automated monthly runs

PURPOSE:
  Periodically checks whether the work month whose revenue has closed has
  already been run, and runs it when it has not.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The target is the month two months before now: its revenue was billed
    last month and its payment falls in the current one
  - Skips months that already have draft bills
  - Shares the Handler's run mutex, so it never overlaps a manual run

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRunScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreateRun endpoint (manual runs)
  - payroll/runner.go: The run itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/librecode/producao/generic"
)

// RunScheduler runs closed work months automatically.
type RunScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a new scheduler.
func NewRunScheduler(handler *Handler) *RunScheduler {
	return &RunScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	log := rs.Handler.Logger.WithField("component", "scheduler")
	if !rs.Enabled {
		log.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	log.WithField("interval", rs.CheckInterval.String()).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight check.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Handler.Logger.WithField("component", "scheduler").Info("scheduler stopped")
	}
}

func (rs *RunScheduler) run() {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-rs.stop
		cancel()
	}()

	// Run immediately on start
	rs.CheckAndRun(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.CheckAndRun(ctx)
		case <-rs.stop:
			return
		}
	}
}

// CheckAndRun runs the target month unless it already has draft bills.
// It reports whether a run was attempted.
func (rs *RunScheduler) CheckAndRun(ctx context.Context) bool {
	period := generic.MonthOf(rs.Now()).Previous().Previous()
	log := rs.Handler.Logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"period":    period.Key(),
	})

	bills, err := rs.Handler.Store.ListDraftBills(ctx, period.Key())
	if err != nil {
		log.WithError(err).Error("checking draft bills")
		return false
	}
	if len(bills) > 0 {
		log.WithField("bills", len(bills)).Debug("month already run")
		return false
	}

	res, err := rs.Handler.execute(ctx, period, rs.Handler.defaults())
	if err != nil {
		// the runner already logged the details
		log.WithError(err).Warn("scheduled run failed")
		return true
	}
	log.WithFields(logrus.Fields{
		"run_id":    res.RunID,
		"documents": len(res.Snapshots),
	}).Info("scheduled run finished")
	return true
}
