/*
Package payroll drives a full monthly run: it loads facts from a FactSource,
runs the allocation engine, applies deductions through worker ledgers and
publishes one document per worker.

DATES:
  A run is computed for a work month P.
  - Worked time is read for P.
  - Revenue, advances and health insurance are read for P+1, the month the
    work is billed.
  - Payment happens on business day N of P+2. The tax tables applied are
    the ones in force on the payment date.

SEE ALSO:
  - allocation/engine.go: Base computation
  - ledger/ledger.go: Deductions
  - store/sqlite/sqlite.go: Persistent FactSource and Publisher
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/tax"
)

// Config is the explicit configuration of one run.
type Config struct {
	PayOnBusinessDayN    int
	MaxAdminPercent      decimal.Decimal
	BusinessDaysOverride *int
	ForecastMode         bool
	HolidayCalendarID    string
	HoursPerDay          int
	Roots                allocation.CategoryRoots
	InternalClients      []generic.ClientID
	ContributionClass    tax.Class
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		PayOnBusinessDayN: 5,
		MaxAdminPercent:   decimal.NewFromInt(10),
		HoursPerDay:       allocation.DefaultHoursPerDay,
		ContributionClass: tax.ClassInternal,
	}
}

// Validate reports the first misconfigured field.
func (c Config) Validate() error {
	if c.PayOnBusinessDayN < 1 {
		return &generic.ConfigurationError{Field: "pay_on_business_day_n", Reason: fmt.Sprintf("must be at least 1, got %d", c.PayOnBusinessDayN)}
	}
	if c.MaxAdminPercent.IsNegative() || c.MaxAdminPercent.GreaterThan(generic.Hundred) {
		return &generic.ConfigurationError{Field: "max_admin_percent", Reason: fmt.Sprintf("must be within [0, 100], got %s", c.MaxAdminPercent)}
	}
	if c.BusinessDaysOverride != nil && *c.BusinessDaysOverride <= 0 {
		return &generic.ConfigurationError{Field: "business_days_override", Reason: "must be positive when set"}
	}
	if c.Roots.ClientRevenue == "" {
		return &generic.ConfigurationError{Field: "categories.client_revenue", Reason: "root category is required"}
	}
	switch c.ContributionClass {
	case "", tax.ClassInternal, tax.ClassExternal:
	default:
		return &generic.ConfigurationError{Field: "contribution_class", Reason: fmt.Sprintf("unknown class %q", c.ContributionClass)}
	}
	return nil
}

// Mode returns the revenue mode selected by ForecastMode.
func (c Config) Mode() allocation.RevenueMode {
	if c.ForecastMode {
		return allocation.ModeForecast
	}
	return allocation.ModeRealized
}

func (c Config) engineConfig(businessDays int) allocation.Config {
	return allocation.Config{
		MaxAdminPercent: c.MaxAdminPercent,
		BusinessDays:    businessDays,
		HoursPerDay:     c.HoursPerDay,
		Mode:            c.Mode(),
		Roots:           c.Roots,
		InternalClients: c.InternalClients,
	}
}
