/*
Package ledger implements the per-worker accumulator of a monthly run.

PURPOSE:
  A Ledger turns a worker's gross base into a net payment. Inputs are set
  through explicit setters; derived fields are computed lazily.

RECOMPUTATION:
  Every setter marks the ledger dirty. Every accessor, when dirty, runs a
  single deterministic recompute pass before answering, then marks the
  ledger fresh. A recompute triggered from inside a recompute returns the
  fields as they currently are instead of recursing.

RECOMPUTE PASS (in order):
  1. vacationReserve = base / 12            (unless locked)
  2. stipend         = base * 0.20
  3. gross           = base - stipend - vacationReserve
  4. contribution, incomeTax from gross     (INSS, then IRPF)
  5. net             = gross - contribution - incomeTax
                       - healthInsurance - sum(advances) + stipend

LOCKED VACATION RESERVE:
  The vacation-reserve document (FRRA) is itself a Ledger whose base is the
  reserve of the production ledger. Its own reserve is locked so that paying
  the reserve out does not reserve a twelfth of it again.

OWNERSHIP:
  One Ledger per worker per document, owned by a single run. Not safe for
  concurrent use.

SEE ALSO:
  - tax/calculator.go: Contribution and income tax
  - payroll/runner.go: Creates and fills ledgers
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/tax"
)

// StipendRate is the cost-of-living allowance share of the base.
var StipendRate = decimal.RequireFromString("0.20")

// =============================================================================
// LEDGER
// =============================================================================

// Kind tells which document a ledger produces.
type Kind string

const (
	KindProduction      Kind = "production"
	KindVacationReserve Kind = "vacation_reserve"
)

// Advance is an amount already paid to the worker before the run.
type Advance struct {
	Amount            decimal.Decimal
	DocumentReference string
	DueDate           time.Time
}

// Ledger is the accumulator of one worker's document.
type Ledger struct {
	WorkerID generic.WorkerID
	Kind     Kind

	taxes      *tax.Calculator
	dependents int

	// inputs
	base                  decimal.Decimal
	healthInsurance       decimal.Decimal
	advances              []Advance
	vacationReserveLocked bool

	// derived
	vacationReserve decimal.Decimal
	stipend         decimal.Decimal
	gross           decimal.Decimal
	contribution    decimal.Decimal
	incomeTax       decimal.Decimal
	taxableBase     decimal.Decimal
	taxMode         tax.Mode
	net             decimal.Decimal

	dirty       bool
	recomputing bool
}

// New creates an empty ledger computing deductions with taxes.
func New(workerID generic.WorkerID, kind Kind, taxes *tax.Calculator) *Ledger {
	return &Ledger{WorkerID: workerID, Kind: kind, taxes: taxes, dirty: true}
}

// =============================================================================
// SETTERS - each marks the ledger dirty
// =============================================================================

// SetBase replaces the gross base and clears every derived field.
func (l *Ledger) SetBase(base decimal.Decimal) {
	l.base = base
	l.resetDerived()
	l.dirty = true
}

// AddBase accumulates into the gross base.
func (l *Ledger) AddBase(amount decimal.Decimal) {
	l.SetBase(l.base.Add(amount))
}

func (l *Ledger) SetDependents(n int) {
	l.dependents = n
	l.dirty = true
}

func (l *Ledger) SetHealthInsurance(amount decimal.Decimal) {
	l.healthInsurance = amount
	l.dirty = true
}

// AddAdvance appends an advance. Duplicates are kept as given.
func (l *Ledger) AddAdvance(a Advance) {
	l.advances = append(l.advances, a)
	l.dirty = true
}

// LockVacationReserve pins the reserve to value and stops deriving it.
func (l *Ledger) LockVacationReserve(value decimal.Decimal) {
	l.vacationReserveLocked = true
	l.vacationReserve = value
	l.dirty = true
}

func (l *Ledger) resetDerived() {
	if !l.vacationReserveLocked {
		l.vacationReserve = decimal.Zero
	}
	l.stipend = decimal.Zero
	l.gross = decimal.Zero
	l.contribution = decimal.Zero
	l.incomeTax = decimal.Zero
	l.taxableBase = decimal.Zero
	l.taxMode = ""
	l.net = decimal.Zero
}

// =============================================================================
// RECOMPUTE
// =============================================================================

func (l *Ledger) ensure() {
	if !l.dirty || l.recomputing {
		return
	}
	l.recompute()
}

func (l *Ledger) recompute() {
	l.recomputing = true
	defer func() { l.recomputing = false }()

	if !l.vacationReserveLocked {
		l.vacationReserve = l.base.Div(generic.Twelve)
	}
	l.stipend = l.base.Mul(StipendRate)
	l.gross = l.base.Sub(l.stipend).Sub(l.vacationReserve)

	b := l.taxes.Compute(l.gross, l.dependents)
	l.contribution = b.Contribution
	l.incomeTax = b.Tax
	l.taxableBase = b.TaxableBase
	l.taxMode = b.Mode

	l.net = l.gross.
		Sub(l.contribution).
		Sub(l.incomeTax).
		Sub(l.healthInsurance).
		Sub(l.TotalAdvances()).
		Add(l.stipend)

	l.dirty = false
}

// Recompute forces a pass even when fresh.
func (l *Ledger) Recompute() {
	l.dirty = true
	l.ensure()
}

// =============================================================================
// ACCESSORS - recompute first when dirty
// =============================================================================

func (l *Ledger) Base() decimal.Decimal { return l.base }
func (l *Ledger) Dependents() int       { return l.dependents }
func (l *Ledger) IsDirty() bool         { return l.dirty }

func (l *Ledger) HealthInsurance() decimal.Decimal { return l.healthInsurance }

func (l *Ledger) Advances() []Advance {
	out := make([]Advance, len(l.advances))
	copy(out, l.advances)
	return out
}

func (l *Ledger) TotalAdvances() decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.advances {
		total = total.Add(a.Amount)
	}
	return total
}

func (l *Ledger) VacationReserve() decimal.Decimal { l.ensure(); return l.vacationReserve }
func (l *Ledger) Stipend() decimal.Decimal         { l.ensure(); return l.stipend }
func (l *Ledger) Contribution() decimal.Decimal    { l.ensure(); return l.contribution }
func (l *Ledger) IncomeTax() decimal.Decimal       { l.ensure(); return l.incomeTax }
func (l *Ledger) TaxableBase() decimal.Decimal     { l.ensure(); return l.taxableBase }
func (l *Ledger) TaxMode() tax.Mode                { l.ensure(); return l.taxMode }
func (l *Ledger) Net() decimal.Decimal             { l.ensure(); return l.net }

// GrossAfterReserveAndStipend is the base the deductions are computed on.
func (l *Ledger) GrossAfterReserveAndStipend() decimal.Decimal { l.ensure(); return l.gross }

// =============================================================================
// SNAPSHOT - Rounded, immutable view for emitters
// =============================================================================

// Snapshot is the emitted form of a ledger, rounded to cents.
type Snapshot struct {
	WorkerID                    generic.WorkerID
	Kind                        Kind
	Base                        decimal.Decimal
	VacationReserve             decimal.Decimal
	Stipend                     decimal.Decimal
	GrossAfterReserveAndStipend decimal.Decimal
	Contribution                decimal.Decimal
	IncomeTax                   decimal.Decimal
	TaxMode                     tax.Mode
	TaxableBase                 decimal.Decimal
	HealthInsurance             decimal.Decimal
	Advances                    []Advance
	TotalAdvances               decimal.Decimal
	Net                         decimal.Decimal
}

// Snapshot recomputes if needed and rounds every emitted value.
func (l *Ledger) Snapshot() Snapshot {
	l.ensure()
	r := generic.RoundCurrency
	return Snapshot{
		WorkerID:                    l.WorkerID,
		Kind:                        l.Kind,
		Base:                        r(l.base),
		VacationReserve:             r(l.vacationReserve),
		Stipend:                     r(l.stipend),
		GrossAfterReserveAndStipend: r(l.gross),
		Contribution:                r(l.contribution),
		IncomeTax:                   r(l.incomeTax),
		TaxMode:                     l.taxMode,
		TaxableBase:                 r(l.taxableBase),
		HealthInsurance:             r(l.healthInsurance),
		Advances:                    l.Advances(),
		TotalAdvances:               r(l.TotalAdvances()),
		Net:                         r(l.net),
	}
}
