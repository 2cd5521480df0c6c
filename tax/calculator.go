package tax

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATOR - INSS + IRPF for one fiscal month
// =============================================================================

// Calculator bundles both deductions for one fiscal month and class.
type Calculator struct {
	Progressive  *ProgressiveTax
	Contribution FlatContribution
	Class        Class
}

// NewCalculator resolves the tables of (year, month). It fails with an
// UnsupportedPeriodError when either table family has no entry.
func NewCalculator(year int, m time.Month, class Class) (*Calculator, error) {
	p, err := NewProgressiveTax(year, m)
	if err != nil {
		return nil, err
	}
	c, err := ContributionForYear(year)
	if err != nil {
		return nil, err
	}
	if class == "" {
		class = ClassInternal
	}
	return &Calculator{Progressive: p, Contribution: c, Class: class}, nil
}

// Breakdown is the deduction set computed from a gross base.
type Breakdown struct {
	GrossBase    decimal.Decimal
	Contribution decimal.Decimal
	Tax          decimal.Decimal
	TaxableBase  decimal.Decimal
	Mode         Mode
	Rate         decimal.Decimal
}

// Compute derives the contribution from grossBase, then the income tax.
func (c *Calculator) Compute(grossBase decimal.Decimal, dependents int) Breakdown {
	contribution := c.Contribution.Compute(grossBase, c.Class)
	r := c.Progressive.ComputeTax(grossBase, contribution, dependents)
	return Breakdown{
		GrossBase:    grossBase,
		Contribution: contribution,
		Tax:          r.Tax,
		TaxableBase:  r.TaxableBase,
		Mode:         r.Mode,
		Rate:         r.Bracket.Rate,
	}
}

// Compute is the standalone audit utility: deductions of a single worker
// outside a full run, using the internal contribution class.
func Compute(grossBase decimal.Decimal, dependents, fiscalYear int, fiscalMonth time.Month) (Breakdown, error) {
	c, err := NewCalculator(fiscalYear, fiscalMonth, ClassInternal)
	if err != nil {
		return Breakdown{}, err
	}
	return c.Compute(grossBase, dependents), nil
}
