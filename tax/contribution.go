package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/generic"
)

// =============================================================================
// FLAT CONTRIBUTION (INSS)
// =============================================================================

// Class selects the contribution rate.
type Class string

const (
	// ClassInternal is work contracted through the cooperative.
	ClassInternal Class = "internal"
	// ClassExternal is work billed directly to a third party.
	ClassExternal Class = "external"
)

// FlatContribution charges rate(class) on the base, capped at CeilingBase.
type FlatContribution struct {
	CeilingBase decimal.Decimal
	Rates       map[Class]decimal.Decimal
}

// DefaultRates are the individual-contributor rates.
func DefaultRates() map[Class]decimal.Decimal {
	return map[Class]decimal.Decimal{
		ClassInternal: dec("0.11"),
		ClassExternal: dec("0.20"),
	}
}

// ceilings is the INSS ceiling base ("teto") per calendar year.
var ceilings = map[int]string{
	2020: "6101.06",
	2021: "6433.57",
	2022: "7087.22",
	2023: "7507.49",
	2024: "7786.02",
	2025: "8157.41",
}

// NewFlatContribution builds a calculator with an explicit ceiling.
func NewFlatContribution(ceiling decimal.Decimal, rates map[Class]decimal.Decimal) FlatContribution {
	if rates == nil {
		rates = DefaultRates()
	}
	return FlatContribution{CeilingBase: ceiling, Rates: rates}
}

// ContributionForYear uses the ceiling published for year. Years after the
// last published one reuse it; years before the first are unsupported.
func ContributionForYear(year int) (FlatContribution, error) {
	latest := 0
	for y := range ceilings {
		if y > latest {
			latest = y
		}
	}
	c, ok := ceilings[year]
	if !ok {
		if year < latest {
			return FlatContribution{}, &generic.UnsupportedPeriodError{Year: year, Month: 1, Table: "inss"}
		}
		c = ceilings[latest]
	}
	return NewFlatContribution(dec(c), nil), nil
}

// Rate returns the rate of a class. An unknown class is a programming error.
func (f FlatContribution) Rate(class Class) decimal.Decimal {
	r, ok := f.Rates[class]
	if !ok {
		panic(fmt.Sprintf("tax: unknown contribution class %q", class))
	}
	return r
}

// Compute returns min(base, ceiling) * rate(class). Negative bases pay nothing.
func (f FlatContribution) Compute(base decimal.Decimal, class Class) decimal.Decimal {
	rate := f.Rate(class)
	capped := decimal.Max(decimal.Zero, decimal.Min(base, f.CeilingBase))
	return capped.Mul(rate)
}
