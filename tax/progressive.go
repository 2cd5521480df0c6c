/*
Package tax implements the statutory deductions applied to a worker's base.

PURPOSE:
  Two calculators live here:
  - ProgressiveTax (IRPF): monthly progressive income tax, bracket tables
    tagged by validity, with a "traditional" and a "simplified" mode.
  - FlatContribution (INSS): percentage of the base, capped at a ceiling.

IRPF MODES:
  Traditional:
    taxableBase = gross - contribution - dependents * perDependentDeduction
    tax         = taxableBase * rate - bracketDeduction
  Simplified (tables from 2023-05 on):
    taxableBase = gross - simplifiedDeduction
    tax         = taxableBase * rate - bracketDeduction
  Both are evaluated; the lower tax wins and the chosen mode is reported.
  A tie keeps the traditional mode. Tax is never negative.

NUMERIC SEMANTICS:
  All math is decimal. Nothing is rounded here; emitters round.

SEE ALSO:
  - contribution.go: INSS
  - calculator.go: Both bundled for one fiscal month
*/
package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/generic"
)

// =============================================================================
// BRACKET TABLES
// =============================================================================

// Bracket is one progressive band. A nil Max is the open top band.
type Bracket struct {
	Min       decimal.Decimal
	Max       *decimal.Decimal
	Rate      decimal.Decimal // fraction, e.g. 0.075
	Deduction decimal.Decimal // "parcela a deduzir"
}

// Contains reports min <= base <= max.
func (b Bracket) Contains(base decimal.Decimal) bool {
	if base.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || base.LessThanOrEqual(*b.Max)
}

// Table is a bracket set valid over [ValidFrom, ValidTo] months.
type Table struct {
	Name                string
	ValidFrom           time.Time  // first day of the first month
	ValidTo             *time.Time // first day of the last month, nil = still valid
	Brackets            []Bracket  // ordered by Min
	PerDependent        decimal.Decimal
	SimplifiedDeduction decimal.Decimal // zero disables the simplified mode
}

// Covers reports whether the table applies to the fiscal month.
func (t Table) Covers(year int, month time.Month) bool {
	m := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if m.Before(t.ValidFrom) {
		return false
	}
	return t.ValidTo == nil || !m.After(*t.ValidTo)
}

func month(year int, m time.Month) time.Time { return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC) }

func monthPtr(year int, m time.Month) *time.Time { t := month(year, m); return &t }

func dec(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func decPtr(s string) *decimal.Decimal { d := dec(s); return &d }

func brackets(exemptUpTo string, deductions [4]string) []Bracket {
	return []Bracket{
		{Min: decimal.Zero, Max: decPtr(exemptUpTo), Rate: decimal.Zero, Deduction: decimal.Zero},
		{Min: dec(exemptUpTo).Add(dec("0.01")), Max: decPtr("2826.65"), Rate: dec("0.075"), Deduction: dec(deductions[0])},
		{Min: dec("2826.66"), Max: decPtr("3751.05"), Rate: dec("0.15"), Deduction: dec(deductions[1])},
		{Min: dec("3751.06"), Max: decPtr("4664.68"), Rate: dec("0.225"), Deduction: dec(deductions[2])},
		{Min: dec("4664.69"), Max: nil, Rate: dec("0.275"), Deduction: dec(deductions[3])},
	}
}

// IRPFTables are the monthly tables known to the engine, oldest first.
var IRPFTables = []Table{
	{
		Name:         "irpf-2015-04",
		ValidFrom:    month(2015, time.April),
		ValidTo:      monthPtr(2023, time.April),
		Brackets:     brackets("1903.98", [4]string{"142.80", "354.80", "636.13", "869.36"}),
		PerDependent: dec("189.59"),
	},
	{
		Name:                "irpf-2023-05",
		ValidFrom:           month(2023, time.May),
		ValidTo:             monthPtr(2024, time.January),
		Brackets:            brackets("2112.00", [4]string{"158.40", "370.40", "651.73", "884.96"}),
		PerDependent:        dec("189.59"),
		SimplifiedDeduction: dec("528.00"),
	},
	{
		Name:                "irpf-2024-02",
		ValidFrom:           month(2024, time.February),
		ValidTo:             monthPtr(2025, time.April),
		Brackets:            brackets("2259.20", [4]string{"169.44", "381.44", "662.77", "896.00"}),
		PerDependent:        dec("189.59"),
		SimplifiedDeduction: dec("564.80"),
	},
	{
		Name:                "irpf-2025-05",
		ValidFrom:           month(2025, time.May),
		Brackets:            brackets("2428.80", [4]string{"182.16", "394.16", "675.49", "908.73"}),
		PerDependent:        dec("189.59"),
		SimplifiedDeduction: dec("607.20"),
	},
}

// =============================================================================
// PROGRESSIVE TAX
// =============================================================================

// Mode names the IRPF method that produced a result.
type Mode string

const (
	ModeTraditional Mode = "traditional"
	ModeSimplified  Mode = "simplified"
)

// ProgressiveTax computes IRPF with the table of one fiscal month.
type ProgressiveTax struct {
	Table Table
}

// NewProgressiveTax selects the table for (year, month) among IRPFTables.
func NewProgressiveTax(year int, m time.Month) (*ProgressiveTax, error) {
	return NewProgressiveTaxFrom(IRPFTables, year, m)
}

// NewProgressiveTaxFrom selects the table for (year, month) among tables.
func NewProgressiveTaxFrom(tables []Table, year int, m time.Month) (*ProgressiveTax, error) {
	for _, t := range tables {
		if t.Covers(year, m) {
			return &ProgressiveTax{Table: t}, nil
		}
	}
	return nil, &generic.UnsupportedPeriodError{Year: year, Month: m, Table: "irpf"}
}

// SelectBracket returns the band containing base. Bases below the lowest
// band are clamped into it; values falling between two bands' cent
// boundaries go to the upper one.
func (p *ProgressiveTax) SelectBracket(base decimal.Decimal) Bracket {
	bs := p.Table.Brackets
	if base.LessThan(bs[0].Min) {
		return bs[0]
	}
	for _, b := range bs {
		if b.Max == nil || base.LessThanOrEqual(*b.Max) {
			return b
		}
	}
	return bs[len(bs)-1]
}

// ComputeBase returns max(0, gross - contribution - dependents*perDependent).
func (p *ProgressiveTax) ComputeBase(grossBase, contribution decimal.Decimal, dependents int) decimal.Decimal {
	base := grossBase.Sub(contribution).Sub(p.Table.PerDependent.Mul(decimal.NewFromInt(int64(dependents))))
	return decimal.Max(decimal.Zero, base)
}

// TaxFor applies the bracket formula to an already-reduced base.
func (p *ProgressiveTax) TaxFor(taxableBase decimal.Decimal) decimal.Decimal {
	b := p.SelectBracket(taxableBase)
	return decimal.Max(decimal.Zero, taxableBase.Mul(b.Rate).Sub(b.Deduction))
}

// Result is the outcome of ComputeTax, with the mode used for auditing.
type Result struct {
	Mode        Mode
	TaxableBase decimal.Decimal
	Tax         decimal.Decimal
	Bracket     Bracket

	Traditional decimal.Decimal // tax under the traditional mode
	Simplified  *decimal.Decimal // tax under the simplified mode, nil if unavailable
}

// ComputeTax evaluates both modes and keeps the lower tax.
func (p *ProgressiveTax) ComputeTax(grossBase, contribution decimal.Decimal, dependents int) Result {
	base := p.ComputeBase(grossBase, contribution, dependents)
	traditional := p.TaxFor(base)
	result := Result{
		Mode:        ModeTraditional,
		TaxableBase: base,
		Tax:         traditional,
		Bracket:     p.SelectBracket(base),
		Traditional: traditional,
	}
	if p.Table.SimplifiedDeduction.IsZero() {
		return result
	}

	simplifiedBase := decimal.Max(decimal.Zero, grossBase.Sub(p.Table.SimplifiedDeduction))
	simplified := p.TaxFor(simplifiedBase)
	result.Simplified = &simplified
	if simplified.LessThan(traditional) {
		result.Mode = ModeSimplified
		result.TaxableBase = simplifiedBase
		result.Tax = simplified
		result.Bracket = p.SelectBracket(simplifiedBase)
	}
	return result
}
