/*
engine.go - Monthly allocation of revenue to workers

PURPOSE:
  Turns one period's facts into each worker's gross base. The engine is
  pure: it reads an Input, returns a Result, and touches ledgers only in
  Allocate after every check has passed.

ALGORITHM:
  1. Classify revenue facts into buckets by category subtree
  2. Per-client net base = client revenue - client cost
  3. Administrative fee between overhead and 2x overhead, capped by
     MaxAdminPercent of the total net base
  4. Internal-work percentage = internal hours / theoretical capacity
  5. Per-client allocatable base = net base - (admin% + internal%)
  6. Distribute each client's allocatable base by worked seconds, using
     the client's time budget as a floor for the divisor
  7. Redistribute the surplus (pool - distributed) by time logged against
     internal clients

VALIDATION:
  All data-quality problems are collected in one pass and returned as a
  single *generic.DataQualityError before any number is computed.

EXAMPLE:
  Client revenue 1000, admin 10%, internal 5% -> allocatable 850.
  Worker A logs 6h, worker B logs 2h -> A gets 637.50, B gets 212.50.

SEE ALSO:
  - classify.go: Bucket resolution
  - ledger/ledger.go: Consumer of the per-worker bases
  - payroll/runner.go: Loads facts and drives the engine
*/
package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/ledger"
)

// DefaultHoursPerDay is the theoretical full-time workday.
const DefaultHoursPerDay = 8

// surplusTolerance absorbs division residue when checking for a surplus.
var surplusTolerance = decimal.New(1, -6)

// =============================================================================
// CONFIG AND INPUT
// =============================================================================

// Config parameterizes one engine run.
type Config struct {
	MaxAdminPercent decimal.Decimal
	BusinessDays    int
	HoursPerDay     int // zero means DefaultHoursPerDay
	Mode            RevenueMode
	Roots           CategoryRoots
	InternalClients []generic.ClientID
}

// Input is every fact of one run, loaded up front.
type Input struct {
	Period     generic.Period
	Clients    []Client
	WorkedTime []WorkedTimeFact
	Revenue    []RevenueFact
	Categories []CategoryNode
}

// =============================================================================
// RESULT
// =============================================================================

// ClientBase is the per-client breakdown of a run.
type ClientBase struct {
	ClientID       generic.ClientID
	Internal       bool
	Revenue        decimal.Decimal
	Cost           decimal.Decimal
	NetBase        decimal.Decimal
	Discount       decimal.Decimal // admin and internal deductions taken
	Allocatable    decimal.Decimal
	Distributed    decimal.Decimal
	LoggedSeconds  int64
	DivisorSeconds int64
}

// AllocationLine is one worker's share of one client.
type AllocationLine struct {
	WorkerID generic.WorkerID
	ClientID generic.ClientID
	Seconds  int64
	Percent  decimal.Decimal // share of the client's logged time
	Amount   decimal.Decimal
}

// Result is the full outcome of a run, unrounded.
type Result struct {
	Period generic.Period
	Mode   RevenueMode

	TotalClientRevenue    decimal.Decimal
	TotalClientCost       decimal.Decimal
	TotalNetRevenue       decimal.Decimal
	TotalInternalOverhead decimal.Decimal

	AdminFee        decimal.Decimal
	AdminPercent    decimal.Decimal
	InternalPercent decimal.Decimal
	InternalSeconds int64
	WorkerCount     int
	BusinessDays    int

	Clients []ClientBase
	Lines   []AllocationLine

	Pool          decimal.Decimal
	Distributed   decimal.Decimal
	Surplus       decimal.Decimal
	SurplusShares map[generic.WorkerID]decimal.Decimal

	WorkerBases map[generic.WorkerID]decimal.Decimal
	Facts       Classified
}

// Workers returns every worker with a base, sorted.
func (r *Result) Workers() []generic.WorkerID {
	ids := make([]generic.WorkerID, 0, len(r.WorkerBases))
	for id := range r.WorkerBases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LinesFor returns the lines of one client.
func (r *Result) LinesFor(client generic.ClientID) []AllocationLine {
	var out []AllocationLine
	for _, l := range r.Lines {
		if l.ClientID == client {
			out = append(out, l)
		}
	}
	return out
}

// LedgerFor resolves the ledger receiving a worker's base.
type LedgerFor func(generic.WorkerID) *ledger.Ledger

// Apply accumulates each worker's base into its ledger, in worker order.
func (r *Result) Apply(ledgerFor LedgerFor) {
	for _, id := range r.Workers() {
		ledgerFor(id).AddBase(r.WorkerBases[id])
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the allocation algorithm. A new Engine is used per run.
type Engine struct {
	cfg      Config
	internal map[generic.ClientID]bool
}

func NewEngine(cfg Config) *Engine {
	if cfg.HoursPerDay <= 0 {
		cfg.HoursPerDay = DefaultHoursPerDay
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeRealized
	}
	internal := make(map[generic.ClientID]bool, len(cfg.InternalClients))
	for _, id := range cfg.InternalClients {
		internal[id] = true
	}
	return &Engine{cfg: cfg, internal: internal}
}

// Allocate computes the run and, only on success, adds each worker's base
// to its ledger.
func (e *Engine) Allocate(in Input, ledgerFor LedgerFor) (*Result, error) {
	res, err := e.Compute(in)
	if err != nil {
		return nil, err
	}
	res.Apply(ledgerFor)
	return res, nil
}

// per-client working state
type clientAcc struct {
	client     Client
	revenue    []RevenueFact
	cost       decimal.Decimal
	seconds    map[generic.WorkerID]int64
	loggedSecs int64
}

// Compute runs the algorithm without side effects.
func (e *Engine) Compute(in Input) (*Result, error) {
	if err := in.Period.Validate(); err != nil {
		return nil, err
	}

	issues := &generic.DataQualityError{}
	for _, f := range in.Revenue {
		if f.Mode != "" && f.Mode != e.cfg.Mode {
			issues.Add(generic.IssueMixedRevenueMode, f, "fact %s is %s in a %s run", f.ID, f.Mode, e.cfg.Mode)
		}
	}

	// Step 1: classify
	tree := NewCategoryTree(in.Categories)
	facts := NewClassifier(tree, e.cfg.Roots).Classify(in.Revenue, issues)

	clients := make(map[generic.ClientID]*clientAcc, len(in.Clients))
	for _, c := range in.Clients {
		clients[c.ID] = &clientAcc{client: c, seconds: make(map[generic.WorkerID]int64)}
	}

	for _, f := range facts.ClientRevenue {
		id, _, _ := ParseCustomerReference(f.CustomerReference)
		acc, ok := clients[id]
		if !ok {
			issues.Add(generic.IssueUnknownClient, f, "fact %s: client %s does not exist", f.ID, id)
			continue
		}
		acc.revenue = append(acc.revenue, f)
	}
	for _, f := range facts.ClientCost {
		id, _, _ := ParseCustomerReference(f.CustomerReference)
		acc, ok := clients[id]
		if !ok {
			issues.Add(generic.IssueUnknownClient, f, "fact %s: client %s does not exist", f.ID, id)
			continue
		}
		acc.cost = acc.cost.Add(signed(f, FactExpense))
	}

	workers := make(map[generic.WorkerID]bool)
	internalByWorker := make(map[generic.WorkerID]int64)
	var internalSecs int64
	for _, t := range in.WorkedTime {
		if t.WorkerID == "" {
			issues.Add(generic.IssueMissingWorker, t, "time entry for client %s has no worker", t.ClientID)
			continue
		}
		acc, ok := clients[t.ClientID]
		if !ok {
			issues.Add(generic.IssueUnknownClient, t, "time entry of %s: client %s does not exist", t.WorkerID, t.ClientID)
			continue
		}
		if t.DurationSeconds <= 0 {
			continue
		}
		workers[t.WorkerID] = true
		acc.seconds[t.WorkerID] += t.DurationSeconds
		acc.loggedSecs += t.DurationSeconds
		if e.internal[t.ClientID] {
			internalByWorker[t.WorkerID] += t.DurationSeconds
			internalSecs += t.DurationSeconds
		}
	}

	ids := make([]generic.ClientID, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		acc := clients[id]
		if e.internal[id] {
			continue
		}
		if len(acc.revenue) > 0 && acc.loggedSecs == 0 {
			issues.Add(generic.IssueRevenueWithoutTime, acc.client, "client %s has revenue but no logged time", id)
		}
		if acc.client.Billable && acc.loggedSecs > 0 && len(acc.revenue) == 0 {
			issues.Add(generic.IssueTimeWithoutRevenue, acc.client, "client %s has logged time but no revenue", id)
		}
	}

	if err := issues.OrNil(); err != nil {
		return nil, err
	}
	if e.cfg.BusinessDays <= 0 {
		return nil, &generic.ConfigurationError{Field: "business_days", Reason: fmt.Sprintf("must be positive, got %d", e.cfg.BusinessDays)}
	}

	res := &Result{
		Period:          in.Period,
		Mode:            e.cfg.Mode,
		InternalSeconds: internalSecs,
		WorkerCount:     len(workers),
		BusinessDays:    e.cfg.BusinessDays,
		SurplusShares:   make(map[generic.WorkerID]decimal.Decimal),
		WorkerBases:     make(map[generic.WorkerID]decimal.Decimal),
		Facts:           facts,
	}

	// Step 2: per-client net base
	for _, id := range ids {
		acc := clients[id]
		rev := decimal.Zero
		for _, f := range acc.revenue {
			rev = rev.Add(signed(f, FactIncome))
		}
		res.TotalClientRevenue = res.TotalClientRevenue.Add(rev)
		res.TotalClientCost = res.TotalClientCost.Add(acc.cost)
	}
	res.TotalNetRevenue = res.TotalClientRevenue.Sub(res.TotalClientCost)
	for _, f := range facts.InternalOverhead {
		res.TotalInternalOverhead = res.TotalInternalOverhead.Add(signed(f, FactExpense))
	}
	if !res.TotalNetRevenue.IsPositive() {
		return nil, &generic.ConfigurationError{Field: "revenue", Reason: fmt.Sprintf("total client revenue net of cost is %s", res.TotalNetRevenue)}
	}

	// Step 3: administrative fee
	res.AdminFee = AdminFee(res.TotalInternalOverhead, res.TotalNetRevenue, e.cfg.MaxAdminPercent)
	res.AdminPercent = res.AdminFee.Div(res.TotalNetRevenue).Mul(generic.Hundred)

	// Step 4: internal-work percentage
	res.InternalPercent = InternalPercent(internalSecs, res.WorkerCount, e.cfg.HoursPerDay, e.cfg.BusinessDays)

	// Steps 5 and 6: allocatable base and time-based distribution
	for _, id := range ids {
		acc := clients[id]
		cb := e.clientBase(acc, res.AdminPercent, res.InternalPercent)
		if acc.loggedSecs > 0 {
			workerIDs := make([]generic.WorkerID, 0, len(acc.seconds))
			for w := range acc.seconds {
				workerIDs = append(workerIDs, w)
			}
			sort.Slice(workerIDs, func(i, j int) bool { return workerIDs[i] < workerIDs[j] })

			divisor := decimal.NewFromInt(cb.DivisorSeconds)
			logged := decimal.NewFromInt(acc.loggedSecs)
			for _, w := range workerIDs {
				secs := decimal.NewFromInt(acc.seconds[w])
				share := cb.Allocatable.Mul(secs).Div(divisor)
				res.Lines = append(res.Lines, AllocationLine{
					WorkerID: w,
					ClientID: id,
					Seconds:  acc.seconds[w],
					Percent:  secs.Mul(generic.Hundred).Div(logged),
					Amount:   share,
				})
				cb.Distributed = cb.Distributed.Add(share)
				res.WorkerBases[w] = res.WorkerBases[w].Add(share)
			}
		}
		res.Distributed = res.Distributed.Add(cb.Distributed)
		if len(acc.revenue) > 0 || !acc.cost.IsZero() || acc.loggedSecs > 0 {
			res.Clients = append(res.Clients, cb)
		}
	}

	// Step 7: surplus
	res.Pool = res.TotalNetRevenue.Sub(res.TotalInternalOverhead)
	res.Surplus = res.Pool.Sub(res.Distributed)
	if res.Surplus.Abs().GreaterThan(surplusTolerance) {
		if internalSecs == 0 {
			return nil, &generic.ConfigurationError{
				Field:  "internal_clients",
				Reason: fmt.Sprintf("surplus of %s cannot be redistributed: no time logged against internal clients", generic.RoundCurrency(res.Surplus)),
			}
		}
		total := decimal.NewFromInt(internalSecs)
		for w, secs := range internalByWorker {
			share := res.Surplus.Mul(decimal.NewFromInt(secs)).Div(total)
			res.SurplusShares[w] = share
			res.WorkerBases[w] = res.WorkerBases[w].Add(share)
		}
	}

	return res, nil
}

func (e *Engine) clientBase(acc *clientAcc, adminPct, internalPct decimal.Decimal) ClientBase {
	cb := ClientBase{
		ClientID:       acc.client.ID,
		Internal:       e.internal[acc.client.ID],
		Cost:           acc.cost,
		LoggedSeconds:  acc.loggedSecs,
		DivisorSeconds: acc.loggedSecs,
	}
	if acc.client.TimeBudgetSeconds > cb.DivisorSeconds {
		cb.DivisorSeconds = acc.client.TimeBudgetSeconds
	}
	for _, f := range acc.revenue {
		cb.Revenue = cb.Revenue.Add(signed(f, FactIncome))
	}
	cb.NetBase = cb.Revenue.Sub(cb.Cost)

	if cb.Revenue.IsZero() {
		// cost without revenue is borne as is
		cb.Allocatable = cb.NetBase
		return cb
	}
	for _, f := range acc.revenue {
		amount := signed(f, FactIncome)
		lineNet := amount.Sub(cb.Cost.Mul(amount).Div(cb.Revenue))
		pct := adminPct
		if f.FixedDiscountPercent != nil {
			pct = *f.FixedDiscountPercent
		}
		discount := generic.PercentOf(lineNet, pct.Add(internalPct))
		cb.Discount = cb.Discount.Add(discount)
		cb.Allocatable = cb.Allocatable.Add(lineNet.Sub(discount))
	}
	return cb
}

// =============================================================================
// FORMULAS
// =============================================================================

// AdminFee picks the administrative fee: at least the overhead, at most
// twice the overhead, aiming at maxPercent of the total net revenue.
func AdminFee(overhead, totalNet, maxPercent decimal.Decimal) decimal.Decimal {
	minFee := overhead
	maxFee := minFee.Mul(decimal.NewFromInt(2))
	safety := generic.PercentOf(totalNet, maxPercent)
	switch {
	case minFee.GreaterThanOrEqual(safety):
		return minFee
	case safety.LessThanOrEqual(maxFee):
		return safety
	default:
		return maxFee
	}
}

// InternalPercent is the share of theoretical capacity spent on internal work.
func InternalPercent(internalSeconds int64, workers, hoursPerDay, businessDays int) decimal.Decimal {
	capacity := int64(workers) * int64(hoursPerDay) * int64(businessDays)
	if capacity <= 0 || internalSeconds <= 0 {
		return decimal.Zero
	}
	hours := decimal.NewFromInt(internalSeconds).Div(decimal.NewFromInt(3600))
	return hours.Mul(generic.Hundred).Div(decimal.NewFromInt(capacity))
}

// signed returns the amount of f, negated when its type opposes natural.
func signed(f RevenueFact, natural FactType) decimal.Decimal {
	if f.Type != "" && f.Type != natural {
		return f.Amount.Neg()
	}
	return f.Amount
}
