/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's structs from the external API contract, so fields can be
  renamed internally without breaking the finance dashboard.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal, which marshals to a JSON string ("1234.56").
  Clients must not parse them as floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/ledger"
	"github.com/librecode/producao/payroll"
	"github.com/librecode/producao/store/sqlite"
)

// =============================================================================
// RUNS
// =============================================================================

// RunRequest starts a run. Unset fields fall back to the server defaults.
type RunRequest struct {
	Month                string  `json:"month"` // "2006-01"
	ForecastMode         *bool   `json:"forecast_mode,omitempty"`
	PayOnBusinessDayN    *int    `json:"pay_on_business_day_n,omitempty"`
	MaxAdminPercent      *string `json:"max_admin_percent,omitempty"`
	BusinessDaysOverride *int    `json:"business_days_override,omitempty"`
}

// RunResponse is the outcome of a run. Failures is non-empty when some
// documents could not be published.
type RunResponse struct {
	RunID        string          `json:"run_id"`
	Period       string          `json:"period"`
	Mode         string          `json:"mode"`
	PaymentDate  string          `json:"payment_date"`
	Clipped      bool            `json:"payment_date_clipped"`
	BusinessDays int             `json:"business_days"`
	Totals       TotalsDTO       `json:"totals"`
	Documents    []DocumentDTO   `json:"documents"`
	Failures     []FailureDTO    `json:"failures,omitempty"`
	Lines        []AllocationDTO `json:"lines"`
}

type TotalsDTO struct {
	ClientRevenue    decimal.Decimal `json:"client_revenue"`
	ClientCost       decimal.Decimal `json:"client_cost"`
	NetRevenue       decimal.Decimal `json:"net_revenue"`
	InternalOverhead decimal.Decimal `json:"internal_overhead"`
	AdminFee         decimal.Decimal `json:"admin_fee"`
	AdminPercent     decimal.Decimal `json:"admin_percent"`
	InternalPercent  decimal.Decimal `json:"internal_percent"`
	Pool             decimal.Decimal `json:"pool"`
	Surplus          decimal.Decimal `json:"surplus"`
}

// DocumentDTO is one worker document (production or vacation reserve).
type DocumentDTO struct {
	WorkerID                    string          `json:"worker_id"`
	Name                        string          `json:"name"`
	Kind                        string          `json:"kind"`
	Dependents                  int             `json:"dependents"`
	Base                        decimal.Decimal `json:"base"`
	VacationReserve             decimal.Decimal `json:"vacation_reserve"`
	Stipend                     decimal.Decimal `json:"stipend"`
	GrossAfterReserveAndStipend decimal.Decimal `json:"gross_after_reserve_and_stipend"`
	Contribution                decimal.Decimal `json:"contribution"`
	IncomeTax                   decimal.Decimal `json:"income_tax"`
	TaxMode                     string          `json:"tax_mode"`
	TaxableBase                 decimal.Decimal `json:"taxable_base"`
	HealthInsurance             decimal.Decimal `json:"health_insurance"`
	Advances                    []AdvanceDTO    `json:"advances"`
	TotalAdvances               decimal.Decimal `json:"total_advances"`
	Net                         decimal.Decimal `json:"net"`
	PaymentDate                 string          `json:"payment_date"`
}

type AdvanceDTO struct {
	Amount            decimal.Decimal `json:"amount"`
	DocumentReference string          `json:"document_reference"`
	DueDate           string          `json:"due_date,omitempty"`
}

type FailureDTO struct {
	WorkerID string `json:"worker_id"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

type AllocationDTO struct {
	WorkerID string          `json:"worker_id"`
	ClientID string          `json:"client_id"`
	Hours    decimal.Decimal `json:"hours"`
	Percent  decimal.Decimal `json:"percent"`
	Amount   decimal.Decimal `json:"amount"`
}

// DraftBillDTO is a stored document.
type DraftBillDTO struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	PublishedAt string      `json:"published_at"`
	Document    DocumentDTO `json:"document"`
}

// IssueDTO is one data-quality problem.
type IssueDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// TAX
// =============================================================================

// TaxDTO is the result of the standalone tax computation.
type TaxDTO struct {
	GrossBase    decimal.Decimal `json:"gross_base"`
	Dependents   int             `json:"dependents"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	Contribution decimal.Decimal `json:"contribution"`
	IncomeTax    decimal.Decimal `json:"income_tax"`
	TaxableBase  decimal.Decimal `json:"taxable_base"`
	Mode         string          `json:"mode"`
	Rate         decimal.Decimal `json:"rate"`
}

// =============================================================================
// SYNC
// =============================================================================

// SyncRequest loads facts fetched from the time tracker and the accounting
// system. Categories, when present, replace the stored tree.
type SyncRequest struct {
	Workers    []allocation.Worker         `json:"workers"`
	Clients    []allocation.Client         `json:"clients"`
	Categories []allocation.CategoryNode   `json:"categories"`
	WorkedTime []allocation.WorkedTimeFact `json:"worked_time"`
	Revenue    []allocation.RevenueFact    `json:"revenue"`
}

type SyncResponse struct {
	Workers    int `json:"workers"`
	Clients    int `json:"clients"`
	Categories int `json:"categories"`
	WorkedTime int `json:"worked_time"`
	Revenue    int `json:"revenue"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayDTO struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendar_id"`
	Date       string `json:"date"`
	Name       string `json:"name"`
	Recurring  bool   `json:"recurring"`
	BuiltIn    bool   `json:"built_in,omitempty"`
}

type CreateHolidayRequest struct {
	CalendarID string `json:"calendar_id"`
	Date       string `json:"date"`
	Name       string `json:"name"`
	Recurring  bool   `json:"recurring"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Month       string `json:"month,omitempty"` // work month of the loaded data
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string     `json:"error"`
	Details string     `json:"details,omitempty"`
	Field   string     `json:"field,omitempty"`
	Issues  []IssueDTO `json:"issues,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRunResponse(res *payroll.RunResult, pw *generic.PartialWriteError) RunResponse {
	a := res.Allocation
	resp := RunResponse{
		RunID:        res.RunID,
		Period:       res.Period.Key(),
		Mode:         string(res.Mode),
		PaymentDate:  res.PaymentDate.Date.Format(time.DateOnly),
		Clipped:      res.PaymentDate.Clipped,
		BusinessDays: a.BusinessDays,
		Totals: TotalsDTO{
			ClientRevenue:    generic.RoundCurrency(a.TotalClientRevenue),
			ClientCost:       generic.RoundCurrency(a.TotalClientCost),
			NetRevenue:       generic.RoundCurrency(a.TotalNetRevenue),
			InternalOverhead: generic.RoundCurrency(a.TotalInternalOverhead),
			AdminFee:         generic.RoundCurrency(a.AdminFee),
			AdminPercent:     a.AdminPercent.Round(4),
			InternalPercent:  a.InternalPercent.Round(4),
			Pool:             generic.RoundCurrency(a.Pool),
			Surplus:          generic.RoundCurrency(a.Surplus),
		},
		Documents: make([]DocumentDTO, 0, len(res.Snapshots)),
		Lines:     make([]AllocationDTO, 0, len(a.Lines)),
	}
	for _, s := range res.Snapshots {
		resp.Documents = append(resp.Documents, toDocumentDTO(s))
	}
	for _, l := range a.Lines {
		resp.Lines = append(resp.Lines, AllocationDTO{
			WorkerID: string(l.WorkerID),
			ClientID: string(l.ClientID),
			Hours:    decimal.NewFromInt(l.Seconds).Div(decimal.NewFromInt(3600)).Round(2),
			Percent:  l.Percent.Round(4),
			Amount:   generic.RoundCurrency(l.Amount),
		})
	}
	if pw != nil {
		for _, f := range pw.Failures {
			resp.Failures = append(resp.Failures, FailureDTO{WorkerID: string(f.WorkerID), Kind: f.Kind, Error: f.Err.Error()})
		}
	}
	return resp
}

func toDocumentDTO(s payroll.WorkerSnapshot) DocumentDTO {
	dto := DocumentDTO{
		WorkerID:                    string(s.WorkerID),
		Name:                        s.Name,
		Kind:                        string(s.Kind),
		Dependents:                  s.Dependents,
		Base:                        s.Base,
		VacationReserve:             s.VacationReserve,
		Stipend:                     s.Stipend,
		GrossAfterReserveAndStipend: s.GrossAfterReserveAndStipend,
		Contribution:                s.Contribution,
		IncomeTax:                   s.IncomeTax,
		TaxMode:                     string(s.TaxMode),
		TaxableBase:                 s.TaxableBase,
		HealthInsurance:             s.HealthInsurance,
		Advances:                    toAdvanceDTOs(s.Advances),
		TotalAdvances:               s.TotalAdvances,
		Net:                         s.Net,
		PaymentDate:                 s.PaymentDate.Format(time.DateOnly),
	}
	return dto
}

func toAdvanceDTOs(advances []ledger.Advance) []AdvanceDTO {
	out := make([]AdvanceDTO, 0, len(advances))
	for _, a := range advances {
		dto := AdvanceDTO{Amount: generic.RoundCurrency(a.Amount), DocumentReference: a.DocumentReference}
		if !a.DueDate.IsZero() {
			dto.DueDate = a.DueDate.Format(time.DateOnly)
		}
		out = append(out, dto)
	}
	return out
}

func toDraftBillDTO(b sqlite.DraftBill) DraftBillDTO {
	return DraftBillDTO{
		ID:          b.ID,
		RunID:       b.RunID,
		PublishedAt: b.PublishedAt.Format(time.RFC3339),
		Document:    toDocumentDTO(b.Snapshot),
	}
}

func toHolidayDTO(h generic.Holiday, builtIn bool) HolidayDTO {
	return HolidayDTO{
		ID:         h.ID,
		CalendarID: h.CalendarID,
		Date:       h.Date.String(),
		Name:       h.Name,
		Recurring:  h.Recurring,
		BuiltIn:    builtIn,
	}
}
