/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a realistic
	cooperative month for testing and demos. Each scenario creates workers,
	clients, the category tree, worked time and revenue facts for the month
	the scheduler would run next.

AVAILABLE SCENARIOS:

	small-cooperative: Two workers, two clients, internal overhead
	with-deductions:   Same month plus advances, health insurance, client cost
	data-quality:      Records a run must reject (bad references, unknown client)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the category tree and point the run roots at it
 3. Create workers and clients
 4. Add worked time for the work month
 5. Add revenue facts for the following month

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-cooperative"}

NOTE:

	Scenarios reset the database and replace the category roots and internal
	clients of the run defaults. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: CreateRun
  - scheduler.go: Which month is considered next
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-cooperative",
		Name:        "Small Cooperative",
		Description: "Two workers, two clients and an internal overhead",
	},
	{
		ID:          "with-deductions",
		Name:        "With Deductions",
		Description: "Advances, health insurance and a client cost with a fixed discount",
	},
	{
		ID:          "data-quality",
		Name:        "Data Quality",
		Description: "Broken customer references and an unknown client; runs are rejected",
	},
}

// demoRoots maps the demo category tree to buckets.
func demoRoots() allocation.CategoryRoots {
	return allocation.CategoryRoots{
		ClientRevenue:    "10",
		ClientCost:       "20",
		InternalOverhead: "21",
		Advance:          "22",
		HealthInsurance:  "23",
		Tax:              "24",
		Ignored:          []generic.CategoryID{"29"},
	}
}

func demoCategories() []allocation.CategoryNode {
	return []allocation.CategoryNode{
		{ID: "1", Type: allocation.CategoryIncome, Name: "Receitas"},
		{ID: "10", ParentID: "1", Type: allocation.CategoryIncome, Name: "Serviços prestados"},
		{ID: "2", Type: allocation.CategoryExpense, Name: "Despesas"},
		{ID: "20", ParentID: "2", Type: allocation.CategoryExpense, Name: "Custos de clientes"},
		{ID: "21", ParentID: "2", Type: allocation.CategoryExpense, Name: "Despesas administrativas"},
		{ID: "22", ParentID: "2", Type: allocation.CategoryExpense, Name: "Adiantamentos"},
		{ID: "23", ParentID: "2", Type: allocation.CategoryExpense, Name: "Plano de saúde"},
		{ID: "24", ParentID: "2", Type: allocation.CategoryExpense, Name: "Impostos"},
		{ID: "29", Type: allocation.CategoryExpense, Name: "Transferências"},
	}
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current.ID {
			s.Month = current.Month
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := h.loadScenario(r.Context(), req.ScenarioID, time.Now())
	if err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID, "month": month.Key()})
}

var errUnknownScenario = errors.New("unknown scenario")

// loadScenario resets the store and loads id for the month the scheduler
// would run at now.
func (h *Handler) loadScenario(ctx context.Context, id string, now time.Time) (generic.Period, error) {
	month := generic.MonthOf(now).Previous().Previous()

	var load func(context.Context, generic.Period) error
	switch id {
	case "small-cooperative":
		load = h.loadSmallCooperative
	case "with-deductions":
		load = h.loadWithDeductions
	case "data-quality":
		load = h.loadDataQuality
	default:
		return month, errUnknownScenario
	}

	// Runs must not see a half-loaded month.
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return month, fmt.Errorf("reset database: %w", err)
	}
	if err := h.Store.ReplaceCategories(ctx, demoCategories()); err != nil {
		return month, err
	}
	if err := load(ctx, month); err != nil {
		return month, err
	}

	h.scenarioMu.Lock()
	h.Config.Roots = demoRoots()
	h.Config.InternalClients = []generic.ClientID{"0"}
	h.currentScenario = currentScenario{ID: id, Month: month.Key()}
	h.scenarioMu.Unlock()
	return month, nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// workDay returns 09:00 of a day of the work month.
func workDay(month generic.Period, day int) time.Time {
	return time.Date(month.Year(), month.Month(), day, 9, 0, 0, 0, time.UTC)
}

func entry(worker generic.WorkerID, client generic.ClientID, month generic.Period, day int, hours int64) allocation.WorkedTimeFact {
	begin := workDay(month, day)
	return allocation.WorkedTimeFact{
		WorkerID:        worker,
		ClientID:        client,
		DurationSeconds: hours * 3600,
		Begin:           begin,
		End:             begin.Add(time.Duration(hours) * time.Hour),
	}
}

func fact(id string, typ allocation.FactType, amount int64, ref string, category generic.CategoryID, month generic.Period) allocation.RevenueFact {
	return allocation.RevenueFact{
		ID:                generic.FactID(id),
		Type:              typ,
		Mode:              allocation.ModeRealized,
		Amount:            decimal.NewFromInt(amount),
		CustomerReference: ref,
		CategoryID:        category,
		PaidOrDueAt:       workDay(month.Next(), 10),
	}
}

// loadSmallCooperative:
//   - Ana (CPF 111) works 100h for Acme and 4h internally
//   - Bruno (CPF 222) works 40h for Acme and 8h for Globex (budget 10h)
//   - Acme pays 12000, Globex 5000, the office costs 1500
func (h *Handler) loadSmallCooperative(ctx context.Context, month generic.Period) error {
	workers := []allocation.Worker{
		{TaxID: "111", Name: "Ana Souza", ExternalContactID: "c-111", Enabled: true},
		{TaxID: "222", Name: "Bruno Lima", Dependents: 1, ExternalContactID: "c-222", Enabled: true},
	}
	for _, w := range workers {
		if err := h.Store.SaveWorker(ctx, w); err != nil {
			return err
		}
	}

	clients := []allocation.Client{
		{ID: "0", Name: "Cooperativa", Enabled: true},
		{ID: "7", Name: "Acme", Enabled: true, Billable: true},
		{ID: "8", Name: "Globex", TimeBudgetSeconds: 10 * 3600, Enabled: true, Billable: true},
	}
	for _, c := range clients {
		if err := h.Store.SaveClient(ctx, c); err != nil {
			return err
		}
	}

	if err := h.Store.AddWorkedTime(ctx,
		entry("111", "7", month, 4, 60),
		entry("111", "7", month, 11, 40),
		entry("111", "0", month, 12, 4),
		entry("222", "7", month, 5, 40),
		entry("222", "8", month, 6, 8),
	); err != nil {
		return err
	}

	return h.Store.AddRevenueFacts(ctx,
		fact("inv-acme", allocation.FactIncome, 12000, "7", "10", month),
		fact("inv-globex", allocation.FactIncome, 5000, "8|contrato-2", "10", month),
		fact("office", allocation.FactExpense, 1500, "", "21", month),
		fact("transfer", allocation.FactExpense, 3000, "", "29", month),
	)
}

// loadWithDeductions extends the small cooperative with an advance for
// Bruno, health insurance for Ana and a client cost on Globex.
func (h *Handler) loadWithDeductions(ctx context.Context, month generic.Period) error {
	if err := h.loadSmallCooperative(ctx, month); err != nil {
		return err
	}

	advance := fact("adv-222", allocation.FactExpense, 500, "", "22", month)
	advance.WorkerID = "222"
	health := fact("health-111", allocation.FactExpense, 420, "", "23", month)
	health.WorkerID = "111"
	cost := fact("cost-globex", allocation.FactExpense, 800, "8", "20", month)
	fixed := decimal.NewFromInt(5)
	globex := fact("inv-globex", allocation.FactIncome, 5000, "8|contrato-2", "10", month)
	globex.FixedDiscountPercent = &fixed

	return h.Store.AddRevenueFacts(ctx, advance, health, cost, globex)
}

// loadDataQuality produces records a run must reject.
func (h *Handler) loadDataQuality(ctx context.Context, month generic.Period) error {
	if err := h.loadSmallCooperative(ctx, month); err != nil {
		return err
	}
	return h.Store.AddRevenueFacts(ctx,
		fact("inv-broken", allocation.FactIncome, 700, "acme", "10", month),
		fact("inv-stranger", allocation.FactIncome, 900, "99", "10", month),
	)
}
