package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/ledger"
	"github.com/librecode/producao/metrics"
	"github.com/librecode/producao/tax"
)

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes monthly runs. Runs against the same data must be
// serialized by the caller.
type Runner struct {
	Source    FactSource
	Holidays  generic.HolidayCalendar
	Publisher Publisher // optional
	Logger    logrus.FieldLogger
	Now       func() time.Time
}

// NewRunner creates a runner with the national holiday calendar and the
// standard logger.
func NewRunner(source FactSource, holidays generic.HolidayCalendar, publisher Publisher, logger logrus.FieldLogger) *Runner {
	if holidays == nil {
		holidays = generic.BrazilianHolidays{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		Source:    source,
		Holidays:  holidays,
		Publisher: publisher,
		Logger:    logger,
		Now:       time.Now,
	}
}

// run holds the per-run state. A fresh one is built for every Run call.
type run struct {
	*Runner
	id       string
	period   generic.Period
	cfg      Config
	log      logrus.FieldLogger
	calendar *generic.Calendar
	calc     *tax.Calculator
	payment  generic.PaymentDate

	workers    map[generic.WorkerID]allocation.Worker
	production map[generic.WorkerID]*ledger.Ledger
}

// Run computes period end to end. On success every worker has a production
// document and, when it has a vacation reserve, a reserve document.
//
// Publish failures do not abort the run: the result is returned together
// with a *generic.PartialWriteError listing every failed document.
func (r *Runner) Run(ctx context.Context, period generic.Period, cfg Config) (*RunResult, error) {
	start := time.Now()
	res, err := r.run(ctx, period, cfg)

	outcome := metrics.ResultSuccess
	switch {
	case err == nil:
	case generic.IsDataQuality(err):
		outcome = metrics.ResultDataQuality
	case generic.IsClientError(err):
		outcome = metrics.ResultConfig
	case generic.IsRetryable(err):
		outcome = metrics.ResultPartialWrite
	default:
		outcome = metrics.ResultError
	}
	workers := 0
	if res != nil {
		workers = len(res.Allocation.WorkerBases)
	}
	metrics.ObserveRun(outcome, string(cfg.Mode()), workers, time.Since(start))
	return res, err
}

func (r *Runner) run(ctx context.Context, period generic.Period, cfg Config) (*RunResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	x := &run{
		Runner:     r,
		id:         uuid.NewString(),
		period:     period,
		cfg:        cfg,
		calendar:   generic.NewCalendar(r.Holidays, cfg.HolidayCalendarID),
		production: make(map[generic.WorkerID]*ledger.Ledger),
	}
	x.log = r.Logger.WithFields(logrus.Fields{
		"run_id": x.id,
		"period": period.Key(),
		"mode":   cfg.Mode(),
	})

	// Revenue is billed in period+1 and paid in period+2.
	x.payment = x.calendar.PredictedPaymentDate(period.Next(), cfg.PayOnBusinessDayN, r.Now())
	calc, err := tax.NewCalculator(x.payment.Date.Year(), x.payment.Date.Month(), cfg.ContributionClass)
	if err != nil {
		return nil, err
	}
	x.calc = calc

	x.log.WithField("payment_date", x.payment.Date.Format(time.DateOnly)).Info("allocation run started")

	in, err := x.load(ctx)
	if err != nil {
		return nil, err
	}

	businessDays := x.calendar.BusinessDaysInMonth(period)
	if cfg.BusinessDaysOverride != nil {
		businessDays = *cfg.BusinessDaysOverride
	}

	engine := allocation.NewEngine(cfg.engineConfig(businessDays))
	alloc, err := engine.Allocate(in, x.ledgerFor)
	if err != nil {
		x.logAbort(err)
		return nil, err
	}
	x.applyDeductions(alloc.Facts)

	result := &RunResult{
		RunID:       x.id,
		Period:      period,
		Mode:        cfg.Mode(),
		PaymentDate: x.payment,
		Allocation:  alloc,
		Snapshots:   x.snapshots(),
	}

	if err := x.publish(ctx, result.Snapshots); err != nil {
		return result, err
	}

	x.log.WithFields(logrus.Fields{
		"workers":   len(x.production),
		"documents": len(result.Snapshots),
		"surplus":   generic.RoundCurrency(alloc.Surplus).String(),
	}).Info("allocation run finished")
	return result, nil
}

// =============================================================================
// LOADING
// =============================================================================

func (x *run) load(ctx context.Context) (allocation.Input, error) {
	in := allocation.Input{Period: x.period}

	workers, err := x.Source.ListWorkers(ctx)
	if err != nil {
		return in, fmt.Errorf("list workers: %w", err)
	}
	x.workers = make(map[generic.WorkerID]allocation.Worker, len(workers))
	for _, w := range workers {
		x.workers[w.TaxID] = w
	}

	if in.Clients, err = x.Source.ListClients(ctx); err != nil {
		return in, fmt.Errorf("list clients: %w", err)
	}
	if in.Categories, err = x.Source.ListCategories(ctx); err != nil {
		return in, fmt.Errorf("list categories: %w", err)
	}
	if in.WorkedTime, err = x.Source.ListWorkedTime(ctx, x.period); err != nil {
		return in, fmt.Errorf("list worked time: %w", err)
	}
	if in.Revenue, err = x.Source.ListRevenueFacts(ctx, x.period.Next(), x.cfg.Mode()); err != nil {
		return in, fmt.Errorf("list revenue facts: %w", err)
	}

	if err := x.registerUnknownWorkers(ctx, in.WorkedTime); err != nil {
		return in, err
	}
	return in, ctx.Err()
}

// registerUnknownWorkers creates workers first seen in worked time.
func (x *run) registerUnknownWorkers(ctx context.Context, entries []allocation.WorkedTimeFact) error {
	registrar, canSave := x.Source.(WorkerRegistrar)
	for _, t := range entries {
		if t.WorkerID == "" {
			continue
		}
		if _, ok := x.workers[t.WorkerID]; ok {
			continue
		}
		w := allocation.Worker{TaxID: t.WorkerID, Name: string(t.WorkerID), Enabled: true}
		x.workers[t.WorkerID] = w
		if !canSave {
			continue
		}
		if err := registrar.SaveWorker(ctx, w); err != nil {
			return fmt.Errorf("register worker %s: %w", t.WorkerID, err)
		}
		x.log.WithField("worker", t.WorkerID).Info("registered worker found in worked time")
	}
	return nil
}

// =============================================================================
// LEDGERS
// =============================================================================

func (x *run) ledgerFor(id generic.WorkerID) *ledger.Ledger {
	if l, ok := x.production[id]; ok {
		return l
	}
	l := ledger.New(id, ledger.KindProduction, x.calc)
	if w, ok := x.workers[id]; ok {
		l.SetDependents(w.Dependents)
	}
	x.production[id] = l
	return l
}

func (x *run) applyDeductions(facts allocation.Classified) {
	health := make(map[generic.WorkerID]decimal.Decimal)
	for _, f := range facts.HealthInsurance {
		health[f.WorkerID] = health[f.WorkerID].Add(f.Amount)
	}
	for id, amount := range health {
		x.ledgerFor(id).SetHealthInsurance(amount)
	}
	for _, f := range facts.Advances {
		x.ledgerFor(f.WorkerID).AddAdvance(ledger.Advance{
			Amount:            f.Amount,
			DocumentReference: string(f.ID),
			DueDate:           f.PaidOrDueAt,
		})
	}
}

func (x *run) snapshots() []WorkerSnapshot {
	ids := make([]generic.WorkerID, 0, len(x.production))
	for id := range x.production {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]WorkerSnapshot, 0, 2*len(ids))
	for _, id := range ids {
		prod := x.production[id]
		out = append(out, x.snapshot(prod))

		reserve := prod.VacationReserve()
		if !reserve.IsPositive() {
			continue
		}
		frra := ledger.New(id, ledger.KindVacationReserve, x.calc)
		frra.LockVacationReserve(decimal.Zero)
		frra.SetDependents(prod.Dependents())
		frra.SetBase(reserve)
		out = append(out, x.snapshot(frra))
	}
	return out
}

func (x *run) snapshot(l *ledger.Ledger) WorkerSnapshot {
	w := x.workers[l.WorkerID]
	return WorkerSnapshot{
		Snapshot:          l.Snapshot(),
		RunID:             x.id,
		Period:            x.period.Key(),
		Name:              w.Name,
		ExternalContactID: w.ExternalContactID,
		Dependents:        l.Dependents(),
		PaymentDate:       x.payment.Date,
		ProcessedAt:       x.payment.ProcessedAt,
	}
}

// =============================================================================
// PUBLISHING
// =============================================================================

func (x *run) publish(ctx context.Context, snaps []WorkerSnapshot) error {
	if x.Publisher == nil {
		return nil
	}
	pw := &generic.PartialWriteError{}
	for _, s := range snaps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.Publisher.Publish(ctx, s); err != nil {
			pw.Failures = append(pw.Failures, generic.WriteFailure{WorkerID: s.WorkerID, Kind: string(s.Kind), Err: err})
			x.log.WithFields(logrus.Fields{
				"worker": s.WorkerID,
				"kind":   s.Kind,
			}).WithError(err).Warn("publish failed")
		}
	}
	if len(pw.Failures) > 0 {
		metrics.AddPublishFailures(len(pw.Failures))
		return pw
	}
	return x.retractStale(ctx)
}

// retractStale withdraws documents of earlier runs of the period, such as a
// worker who no longer has time logged.
func (x *run) retractStale(ctx context.Context) error {
	r, ok := x.Publisher.(Retractor)
	if !ok {
		return nil
	}
	n, err := r.RetractStale(ctx, x.period.Key(), x.id)
	if err != nil {
		x.log.WithError(err).Warn("retracting stale documents failed")
		metrics.AddPublishFailures(1)
		return &generic.PartialWriteError{Failures: []generic.WriteFailure{{Kind: "retract", Err: err}}}
	}
	if n > 0 {
		x.log.WithField("retracted", n).Info("stale documents retracted")
	}
	return nil
}

func (x *run) logAbort(err error) {
	var dq *generic.DataQualityError
	if !errors.As(err, &dq) {
		x.log.WithError(err).Error("allocation run aborted")
		return
	}
	for _, issue := range dq.Issues {
		metrics.IncDataIssue(string(issue.Code))
		x.log.WithField("code", issue.Code).Warn(issue.Message)
	}
	x.log.WithField("issues", len(dq.Issues)).Error("allocation run aborted on data quality")
}
