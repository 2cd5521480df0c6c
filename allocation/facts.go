// Package allocation implements the monthly allocation engine: it turns
// worked time, billed revenue and the category taxonomy into each worker's
// gross base.
package allocation

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/generic"
)

// =============================================================================
// PARTIES
// =============================================================================

// Worker is a member of the cooperative ("cooperado").
type Worker struct {
	TaxID             generic.WorkerID `json:"tax_id"`
	Name              string           `json:"name"`
	Dependents        int              `json:"dependents"`
	ExternalContactID string           `json:"external_contact_id,omitempty"` // contact id in the accounting system
	Enabled           bool             `json:"enabled"`
}

// Client is a customer of the cooperative as known by the time tracker.
type Client struct {
	ID                generic.ClientID `json:"id"`
	TaxID             string           `json:"tax_id,omitempty"` // "vat id"
	Name              string           `json:"name"`
	TimeBudgetSeconds int64            `json:"time_budget_seconds,omitempty"` // minimum billable time, even if less was logged
	Enabled           bool             `json:"enabled"`
	Billable          bool             `json:"billable"`
}

// UnmarshalJSON treats a client without "enabled" or "billable" as enabled
// and billable, the same defaults the stores apply.
func (c *Client) UnmarshalJSON(data []byte) error {
	type plain Client
	p := plain{Enabled: true, Billable: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Client(p)
	return nil
}

// =============================================================================
// FACTS
// =============================================================================

// WorkedTimeFact is one time entry.
type WorkedTimeFact struct {
	WorkerID        generic.WorkerID `json:"worker_id"`
	ClientID        generic.ClientID `json:"client_id"`
	ProjectID       string           `json:"project_id,omitempty"`
	DurationSeconds int64            `json:"duration_seconds"`
	Begin           time.Time        `json:"begin"`
	End             time.Time        `json:"end"`
}

// FactType is the accounting direction of a revenue fact.
type FactType string

const (
	FactIncome  FactType = "income"
	FactExpense FactType = "expense"
)

// RevenueMode tells whether revenue comes from realized transactions or
// from issued invoices used as a forecast.
type RevenueMode string

const (
	ModeRealized RevenueMode = "realized"
	ModeForecast RevenueMode = "forecast"
)

// RevenueFact is a billed document or a transaction of the billing month.
type RevenueFact struct {
	ID                generic.FactID     `json:"id"`
	Type              FactType           `json:"type"`
	Mode              RevenueMode        `json:"mode,omitempty"`
	Amount            decimal.Decimal    `json:"amount"`                       // always positive; Type carries direction
	CustomerReference string             `json:"customer_reference,omitempty"` // "<client id>" or "<client id>|<tag>"
	CategoryID        generic.CategoryID `json:"category_id"`
	PaidOrDueAt       time.Time          `json:"paid_or_due_at"`
	WorkerID          generic.WorkerID   `json:"worker_id,omitempty"` // beneficiary of advances and health insurance

	// FixedDiscountPercent overrides the administrative percentage for
	// this line when the document already carries its own discount.
	FixedDiscountPercent *decimal.Decimal `json:"fixed_discount_percent,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// CategoryType mirrors the accounting system's category direction.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// CategoryNode is one node of the category tree. An empty ParentID is a root.
type CategoryNode struct {
	ID       generic.CategoryID `json:"id"`
	ParentID generic.CategoryID `json:"parent_id,omitempty"`
	Type     CategoryType       `json:"type"`
	Name     string             `json:"name"`
}
