/*
handlers.go - HTTP API handlers for the allocation engine

PURPOSE:
  Exposes the monthly run, the standalone tax computation and the holiday
  calendar via REST API. Handles HTTP request/response, JSON serialization,
  and delegates to the payroll Runner.

ENDPOINTS:
  Runs:
    POST   /api/runs                   Run a work month (JSON or ?format=xlsx)
    GET    /api/runs/{month}/bills     Draft bills published for a month

  Facts:
    POST   /api/sync                   Load synced workers, clients, categories, facts
    GET    /api/workers                List workers

  Tax:
    GET    /api/tax?gross=&dependents=&year=&month=

  Holidays:
    GET    /api/holidays?calendar_id=&year=
    POST   /api/holidays
    DELETE /api/holidays/{id}

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    GET    /api/scenarios/current      Scenario loaded last
    POST   /api/scenarios/load         Reset and load a demo month

  Observability:
    GET    /api/health
    GET    /metrics                    Prometheus

RUN SERIALIZATION:
  Runs against the same data must not overlap. Handler holds a mutex shared
  by the run endpoint and the RunScheduler.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, configuration, unsupported tax period
  - 404: Resource not found
  - 422: Data quality problems (every issue listed)
  - 500: Internal errors
  A run whose documents were only partly published answers 200 with the
  failures listed; retrying the run is safe.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - scheduler.go: Automatic monthly runs
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/librecode/producao/export"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/payroll"
	"github.com/librecode/producao/store/sqlite"
	"github.com/librecode/producao/tax"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Runner *payroll.Runner
	Config payroll.Config // run defaults
	Logger logrus.FieldLogger

	runMu sync.Mutex

	// Guards Config and the currently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario currentScenario
}

type currentScenario struct {
	ID    string
	Month string
}

// NewHandler creates a handler whose Runner reads from and publishes to store.
func NewHandler(store *sqlite.Store, cfg payroll.Config, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	holidays := generic.MultiCalendar{generic.BrazilianHolidays{}, store}
	return &Handler{
		Store:  store,
		Runner: payroll.NewRunner(store, holidays, store, logger),
		Config: cfg,
		Logger: logger,
	}
}

// defaults returns a copy of the run defaults.
func (h *Handler) defaults() payroll.Config {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	return h.Config
}

// execute runs period with cfg, one run at a time.
func (h *Handler) execute(ctx context.Context, period generic.Period, cfg payroll.Config) (*payroll.RunResult, error) {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.Runner.Run(ctx, period, cfg)
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun runs a work month and publishes its documents.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := generic.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	cfg, err := h.runConfig(req)
	if err != nil {
		writeRunError(w, err)
		return
	}

	res, err := h.execute(r.Context(), period, cfg)
	var pw *generic.PartialWriteError
	if err != nil && !errors.As(err, &pw) {
		writeRunError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		data, err := export.BuildRunXLSX(res)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to export run", err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=producao-%s.xlsx", period.Key()))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(res, pw))
}

// runConfig applies the request overrides to the server defaults.
func (h *Handler) runConfig(req RunRequest) (payroll.Config, error) {
	cfg := h.defaults()
	if req.ForecastMode != nil {
		cfg.ForecastMode = *req.ForecastMode
	}
	if req.PayOnBusinessDayN != nil {
		cfg.PayOnBusinessDayN = *req.PayOnBusinessDayN
	}
	if req.BusinessDaysOverride != nil {
		n := *req.BusinessDaysOverride
		cfg.BusinessDaysOverride = &n
	}
	if req.MaxAdminPercent != nil {
		pct, err := decimal.NewFromString(*req.MaxAdminPercent)
		if err != nil {
			return cfg, &generic.ConfigurationError{Field: "max_admin_percent", Reason: fmt.Sprintf("not a number: %q", *req.MaxAdminPercent)}
		}
		cfg.MaxAdminPercent = pct
	}
	return cfg, nil
}

// ListDraftBills returns the documents published for a work month.
// GET /api/runs/{month}/bills
func (h *Handler) ListDraftBills(w http.ResponseWriter, r *http.Request) {
	period, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	bills, err := h.Store.ListDraftBills(r.Context(), period.Key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list draft bills", err)
		return
	}

	dtos := make([]DraftBillDTO, 0, len(bills))
	for _, b := range bills {
		dtos = append(dtos, toDraftBillDTO(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period.Key(), "bills": dtos})
}

// =============================================================================
// FACT HANDLERS
// =============================================================================

// Sync stores facts fetched from the external systems.
// POST /api/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, wk := range req.Workers {
		if wk.TaxID == "" {
			writeError(w, http.StatusBadRequest, "Worker tax_id is required", nil)
			return
		}
		if err := h.Store.SaveWorker(ctx, wk); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save worker", err)
			return
		}
	}
	for _, c := range req.Clients {
		if err := h.Store.SaveClient(ctx, c); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save client", err)
			return
		}
	}
	if len(req.Categories) > 0 {
		if err := h.Store.ReplaceCategories(ctx, req.Categories); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save categories", err)
			return
		}
	}
	if err := h.Store.AddWorkedTime(ctx, req.WorkedTime...); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save worked time", err)
		return
	}
	if err := h.Store.AddRevenueFacts(ctx, req.Revenue...); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save revenue facts", err)
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Workers:    len(req.Workers),
		Clients:    len(req.Clients),
		Categories: len(req.Categories),
		WorkedTime: len(req.WorkedTime),
		Revenue:    len(req.Revenue),
	})
}

// ListWorkers returns all workers.
// GET /api/workers
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

// ComputeTax returns the contribution and income tax of a gross base.
// GET /api/tax?gross=&dependents=&year=&month=
func (h *Handler) ComputeTax(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	gross, err := decimal.NewFromString(q.Get("gross"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid gross", err)
		return
	}
	if gross.IsNegative() {
		writeError(w, http.StatusBadRequest, "Gross must not be negative", nil)
		return
	}

	now := time.Now()
	dependents, err := intParam(q.Get("dependents"), 0)
	if err != nil || dependents < 0 {
		writeError(w, http.StatusBadRequest, "Invalid dependents", err)
		return
	}
	year, err := intParam(q.Get("year"), now.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := intParam(q.Get("month"), int(now.Month()))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	b, err := tax.Compute(gross, dependents, year, time.Month(month))
	if err != nil {
		writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TaxDTO{
		GrossBase:    generic.RoundCurrency(b.GrossBase),
		Dependents:   dependents,
		Year:         year,
		Month:        month,
		Contribution: generic.RoundCurrency(b.Contribution),
		IncomeTax:    generic.RoundCurrency(b.Tax),
		TaxableBase:  generic.RoundCurrency(b.TaxableBase),
		Mode:         string(b.Mode),
		Rate:         b.Rate,
	})
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns the holidays of a calendar. With year set, the
// national holidays of that year are included.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	calendarID := q.Get("calendar_id")

	dtos := []HolidayDTO{}
	if q.Get("year") == "" {
		holidays, err := h.Store.GetAllHolidays(r.Context(), calendarID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
			return
		}
		for _, hol := range holidays {
			dtos = append(dtos, toHolidayDTO(hol, false))
		}
		writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
		return
	}

	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	for _, hol := range (generic.BrazilianHolidays{}).GetHolidays(calendarID, year) {
		dtos = append(dtos, toHolidayDTO(hol, true))
	}
	for _, hol := range h.Store.GetHolidays(calendarID, year) {
		dtos = append(dtos, toHolidayDTO(hol, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates a custom holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday := generic.Holiday{
		CalendarID: req.CalendarID,
		Date:       generic.DayOf(date),
		Name:       req.Name,
		Recurring:  req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "created"})
}

// DeleteHoliday deletes a custom holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Holiday not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeRunError maps the engine's error taxonomy to HTTP statuses.
func writeRunError(w http.ResponseWriter, err error) {
	var dq *generic.DataQualityError
	if errors.As(err, &dq) {
		resp := ErrorResponse{Error: "Data quality problems", Details: err.Error()}
		for _, issue := range dq.Issues {
			resp.Issues = append(resp.Issues, IssueDTO{Code: string(issue.Code), Message: issue.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	var ce *generic.ConfigurationError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid configuration", Details: err.Error(), Field: ce.Field})
		return
	}

	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Unsupported period", err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Run cancelled", err)
	default:
		writeError(w, http.StatusInternalServerError, "Run failed", err)
	}
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
