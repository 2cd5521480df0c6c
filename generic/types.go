/*
Package generic provides the shared vocabulary of the allocation engine.

PURPOSE:
  This package contains the domain-agnostic building blocks every other
  package relies on: decimal money helpers, typed identifiers, time points,
  the month Period, holiday calendars, business-day arithmetic and the
  error taxonomy. Nothing in here knows about taxes or allocation rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money helpers: decimal.Decimal is the only representation of currency
  - Identifiers: type-safe ids for workers, clients and categories
  - Rounding: values are rounded only when emitted, never mid-calculation

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing worker/client IDs
  3. Late rounding: RoundCurrency is applied by emitters, not by math

SEE ALSO:
  - period.go: Month period and derived dates
  - calendar.go: Business-day counting and payment-date prediction
  - errors.go: Error taxonomy shared by all packages
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Single-currency decimal amounts
// =============================================================================

// CurrencyPlaces is the resolution of every emitted monetary value.
const CurrencyPlaces int32 = 2

var (
	Hundred = decimal.NewFromInt(100)
	Twelve  = decimal.NewFromInt(12)
)

func NewMoney(value float64) decimal.Decimal { return decimal.NewFromFloat(value) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RoundCurrency rounds half away from zero to CurrencyPlaces.
func RoundCurrency(d decimal.Decimal) decimal.Decimal { return d.Round(CurrencyPlaces) }

// PercentOf returns value * pct / 100.
func PercentOf(value, pct decimal.Decimal) decimal.Decimal { return value.Mul(pct).Div(Hundred) }

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// WorkerID is the worker's tax id (CPF), the key used across all systems.
type WorkerID string

// ClientID is the client's id in the time-tracking system.
type ClientID string

// CategoryID identifies a node of the accounting category tree.
type CategoryID string

// FactID identifies a revenue document or transaction.
type FactID string
