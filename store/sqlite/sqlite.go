/*
Package sqlite provides a SQLite-backed implementation of the run collaborators.

PURPOSE:
  Persists the facts synced from the time tracker and the accounting system,
  the custom holiday calendar and the draft bills produced by runs. In
  production, the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  payroll.FactSource:      Workers, clients, categories, time and revenue
  payroll.WorkerRegistrar: Workers first seen in worked time
  payroll.Publisher:       Draft bills, one per (period, worker, kind)
  generic.HolidayCalendar: Custom holidays

KEY TABLES:
  workers:       Cooperative members, keyed by tax id
  clients:       Time-tracker clients with their time budget
  categories:    Accounting category tree (flat, parent id)
  worked_time:   Raw time entries
  revenue_facts: Invoices and transactions, realized or forecast
  holidays:      Custom holidays per calendar
  draft_bills:   Published worker documents

IDEMPOTENT PUBLISHING:
  draft_bills has a unique index on (period, worker_id, kind). Publishing a
  document again replaces its content but keeps its id, so a rerun of a
  month never duplicates bills.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/producao.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  runner := payroll.NewRunner(store, generic.MultiCalendar{generic.BrazilianHolidays{}, store}, store, logger)

SEE ALSO:
  - payroll/source.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		tax_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dependents INTEGER NOT NULL DEFAULT 0,
		external_contact_id TEXT,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		tax_id TEXT,
		name TEXT NOT NULL,
		time_budget_seconds INTEGER NOT NULL DEFAULT 0,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		billable BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		type TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS worked_time (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		project_id TEXT,
		duration_seconds INTEGER NOT NULL,
		begin_at TEXT NOT NULL,
		end_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_worked_time_begin
		ON worked_time(begin_at);

	-- an entry is identified by who, where and when; older databases may
	-- hold resynced duplicates that must go before the index is built
	UPDATE worked_time SET project_id = '' WHERE project_id IS NULL;
	DELETE FROM worked_time WHERE id NOT IN (
		SELECT MAX(id) FROM worked_time
		GROUP BY worker_id, client_id, project_id, begin_at, end_at
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_worked_time_entry
		ON worked_time(worker_id, client_id, project_id, begin_at, end_at);

	CREATE TABLE IF NOT EXISTS revenue_facts (
		id TEXT NOT NULL,
		mode TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		customer_reference TEXT,
		category_id TEXT NOT NULL,
		paid_or_due_at TEXT NOT NULL,
		worker_id TEXT,
		fixed_discount_percent TEXT,
		metadata_json TEXT,
		PRIMARY KEY (id, mode)
	);

	CREATE INDEX IF NOT EXISTS idx_revenue_facts_mode_date
		ON revenue_facts(mode, paid_or_due_at);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		calendar_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		UNIQUE(calendar_id, date, name)
	);

	CREATE TABLE IF NOT EXISTS draft_bills (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		period TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		net TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		published_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_draft_bills_document
		ON draft_bills(period, worker_id, kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORKERS
// =============================================================================

// SaveWorker inserts or updates a worker.
func (s *Store) SaveWorker(ctx context.Context, w allocation.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO workers (tax_id, name, dependents, external_contact_id, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tax_id) DO UPDATE SET
			name = excluded.name,
			dependents = excluded.dependents,
			external_contact_id = excluded.external_contact_id,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		string(w.TaxID), w.Name, w.Dependents, nullString(w.ExternalContactID), w.Enabled,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetWorker returns generic.ErrNotFound when taxID is unknown.
func (s *Store) GetWorker(ctx context.Context, taxID generic.WorkerID) (*allocation.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w allocation.Worker
	var contact sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT tax_id, name, dependents, external_contact_id, enabled FROM workers WHERE tax_id = ?",
		string(taxID),
	).Scan(&w.TaxID, &w.Name, &w.Dependents, &contact, &w.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("worker %s: %w", taxID, generic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	w.ExternalContactID = contact.String
	return &w, nil
}

// ListWorkers returns all workers ordered by tax id.
func (s *Store) ListWorkers(ctx context.Context) ([]allocation.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tax_id, name, dependents, external_contact_id, enabled FROM workers ORDER BY tax_id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []allocation.Worker
	for rows.Next() {
		var w allocation.Worker
		var contact sql.NullString
		if err := rows.Scan(&w.TaxID, &w.Name, &w.Dependents, &contact, &w.Enabled); err != nil {
			return nil, err
		}
		w.ExternalContactID = contact.String
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// =============================================================================
// CLIENTS AND CATEGORIES
// =============================================================================

// SaveClient inserts or updates a client.
func (s *Store) SaveClient(ctx context.Context, c allocation.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO clients (id, tax_id, name, time_budget_seconds, enabled, billable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tax_id = excluded.tax_id,
			name = excluded.name,
			time_budget_seconds = excluded.time_budget_seconds,
			enabled = excluded.enabled,
			billable = excluded.billable,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		string(c.ID), nullString(c.TaxID), c.Name, c.TimeBudgetSeconds, c.Enabled, c.Billable,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListClients returns all clients ordered by id.
func (s *Store) ListClients(ctx context.Context) ([]allocation.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, tax_id, name, time_budget_seconds, enabled, billable FROM clients ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []allocation.Client
	for rows.Next() {
		var c allocation.Client
		var taxID sql.NullString
		if err := rows.Scan(&c.ID, &taxID, &c.Name, &c.TimeBudgetSeconds, &c.Enabled, &c.Billable); err != nil {
			return nil, err
		}
		c.TaxID = taxID.String
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// ReplaceCategories swaps the whole category tree atomically.
func (s *Store) ReplaceCategories(ctx context.Context, nodes []allocation.CategoryNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM categories"); err != nil {
		return err
	}
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO categories (id, parent_id, type, name) VALUES (?, ?, ?, ?)",
			string(n.ID), nullString(string(n.ParentID)), string(n.Type), n.Name,
		); err != nil {
			return fmt.Errorf("insert category %s: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

// ListCategories returns the category tree as a flat list.
func (s *Store) ListCategories(ctx context.Context) ([]allocation.CategoryNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, parent_id, type, name FROM categories ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []allocation.CategoryNode
	for rows.Next() {
		var n allocation.CategoryNode
		var parent sql.NullString
		if err := rows.Scan(&n.ID, &parent, &n.Type, &n.Name); err != nil {
			return nil, err
		}
		n.ParentID = generic.CategoryID(parent.String)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// =============================================================================
// FACTS
// =============================================================================

// AddWorkedTime upserts time entries in one transaction. An entry is keyed
// by worker, client, project, begin and end, so syncing the same batch twice
// keeps one copy and takes the latest duration.
func (s *Store) AddWorkedTime(ctx context.Context, entries ...allocation.WorkedTimeFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO worked_time (worker_id, client_id, project_id, duration_seconds, begin_at, end_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(worker_id, client_id, project_id, begin_at, end_at) DO UPDATE SET
				duration_seconds = excluded.duration_seconds`,
			string(t.WorkerID), string(t.ClientID), t.ProjectID, t.DurationSeconds,
			t.Begin.UTC().Format(time.RFC3339), t.End.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListWorkedTime returns entries that begin within period.
func (s *Store) ListWorkedTime(ctx context.Context, period generic.Period) ([]allocation.WorkedTimeFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT worker_id, client_id, project_id, duration_seconds, begin_at, end_at
		FROM worked_time
		WHERE begin_at >= ? AND begin_at <= ?
		ORDER BY begin_at, id`,
		period.Start.UTC().Format(time.RFC3339), period.End.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []allocation.WorkedTimeFact
	for rows.Next() {
		var t allocation.WorkedTimeFact
		var project sql.NullString
		var begin, end string
		if err := rows.Scan(&t.WorkerID, &t.ClientID, &project, &t.DurationSeconds, &begin, &end); err != nil {
			return nil, err
		}
		t.ProjectID = project.String
		if t.Begin, err = time.Parse(time.RFC3339, begin); err != nil {
			return nil, fmt.Errorf("worked time of %s: begin: %w", t.WorkerID, err)
		}
		if t.End, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("worked time of %s: end: %w", t.WorkerID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddRevenueFacts upserts facts in one transaction, keyed by (id, mode).
// Facts without a mode are stored as realized.
func (s *Store) AddRevenueFacts(ctx context.Context, facts ...allocation.RevenueFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO revenue_facts (id, mode, type, amount, customer_reference, category_id,
			paid_or_due_at, worker_id, fixed_discount_percent, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, mode) DO UPDATE SET
			type = excluded.type,
			amount = excluded.amount,
			customer_reference = excluded.customer_reference,
			category_id = excluded.category_id,
			paid_or_due_at = excluded.paid_or_due_at,
			worker_id = excluded.worker_id,
			fixed_discount_percent = excluded.fixed_discount_percent,
			metadata_json = excluded.metadata_json
	`

	for _, f := range facts {
		mode := f.Mode
		if mode == "" {
			mode = allocation.ModeRealized
		}
		var fixed sql.NullString
		if f.FixedDiscountPercent != nil {
			fixed = sql.NullString{String: f.FixedDiscountPercent.String(), Valid: true}
		}
		var metadata sql.NullString
		if len(f.Metadata) > 0 {
			b, err := json.Marshal(f.Metadata)
			if err != nil {
				return err
			}
			metadata = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, query,
			string(f.ID), string(mode), string(f.Type), f.Amount.String(),
			nullString(f.CustomerReference), string(f.CategoryID),
			f.PaidOrDueAt.UTC().Format(time.RFC3339), nullString(string(f.WorkerID)),
			fixed, metadata,
		); err != nil {
			return fmt.Errorf("save fact %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// ListRevenueFacts returns facts of mode paid or due within period.
func (s *Store) ListRevenueFacts(ctx context.Context, period generic.Period, mode allocation.RevenueMode) ([]allocation.RevenueFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, type, amount, customer_reference, category_id, paid_or_due_at,
			worker_id, fixed_discount_percent, metadata_json
		FROM revenue_facts
		WHERE mode = ? AND paid_or_due_at >= ? AND paid_or_due_at <= ?
		ORDER BY paid_or_due_at, id`,
		string(mode), period.Start.UTC().Format(time.RFC3339), period.End.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []allocation.RevenueFact
	for rows.Next() {
		f, err := scanRevenueFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanRevenueFact(rows *sql.Rows) (allocation.RevenueFact, error) {
	var f allocation.RevenueFact
	var amount, paid string
	var ref, worker, fixed, metadata sql.NullString

	if err := rows.Scan(&f.ID, &f.Mode, &f.Type, &amount, &ref, &f.CategoryID, &paid, &worker, &fixed, &metadata); err != nil {
		return f, err
	}

	var err error
	if f.Amount, err = decimal.NewFromString(amount); err != nil {
		return f, fmt.Errorf("fact %s: amount: %w", f.ID, err)
	}
	f.CustomerReference = ref.String
	f.WorkerID = generic.WorkerID(worker.String)
	if f.PaidOrDueAt, err = time.Parse(time.RFC3339, paid); err != nil {
		return f, fmt.Errorf("fact %s: paid or due at: %w", f.ID, err)
	}
	if fixed.Valid {
		pct, err := decimal.NewFromString(fixed.String)
		if err != nil {
			return f, fmt.Errorf("fact %s: fixed discount: %w", f.ID, err)
		}
		f.FixedDiscountPercent = &pct
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &f.Metadata); err != nil {
			return f, fmt.Errorf("fact %s: metadata: %w", f.ID, err)
		}
	}
	return f, nil
}

// =============================================================================
// DRAFT BILLS (payroll.Publisher)
// =============================================================================

// DraftBill is a published worker document.
type DraftBill struct {
	ID          string
	RunID       string
	Period      string
	WorkerID    generic.WorkerID
	Kind        string
	Net         decimal.Decimal
	PaymentDate time.Time
	Snapshot    payroll.WorkerSnapshot
	PublishedAt time.Time
}

// Publish stores snap as a draft bill. Publishing the same document again
// replaces its content and keeps its id.
func (s *Store) Publish(ctx context.Context, snap payroll.WorkerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft bill: %w", err)
	}

	query := `
		INSERT INTO draft_bills (id, run_id, period, worker_id, kind, net, payment_date, payload_json, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period, worker_id, kind) DO UPDATE SET
			run_id = excluded.run_id,
			net = excluded.net,
			payment_date = excluded.payment_date,
			payload_json = excluded.payload_json,
			published_at = excluded.published_at
	`

	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(), snap.RunID, snap.Period, string(snap.WorkerID), string(snap.Kind),
		snap.Net.String(), snap.PaymentDate.UTC().Format(time.RFC3339), string(payload),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RetractStale deletes the bills of period that were not written by runID.
// It returns how many bills were removed.
func (s *Store) RetractStale(ctx context.Context, period, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM draft_bills WHERE period = ? AND run_id <> ?`, period, runID)
	if err != nil {
		return 0, fmt.Errorf("retract draft bills of %s: %w", period, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListDraftBills returns the bills of a work month ("2006-01").
func (s *Store) ListDraftBills(ctx context.Context, period string) ([]DraftBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, period, worker_id, kind, net, payment_date, payload_json, published_at
		FROM draft_bills
		WHERE period = ?
		ORDER BY worker_id, kind`,
		period,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []DraftBill
	for rows.Next() {
		var b DraftBill
		var net, payDate, payload, published string
		if err := rows.Scan(&b.ID, &b.RunID, &b.Period, &b.WorkerID, &b.Kind, &net, &payDate, &payload, &published); err != nil {
			return nil, err
		}
		if b.Net, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("draft bill %s: net: %w", b.ID, err)
		}
		if b.PaymentDate, err = time.Parse(time.RFC3339, payDate); err != nil {
			return nil, fmt.Errorf("draft bill %s: payment date: %w", b.ID, err)
		}
		if b.PublishedAt, err = time.Parse(time.RFC3339, published); err != nil {
			return nil, fmt.Errorf("draft bill %s: published at: %w", b.ID, err)
		}
		if err := json.Unmarshal([]byte(payload), &b.Snapshot); err != nil {
			return nil, fmt.Errorf("decode draft bill %s: %w", b.ID, err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	query := `
		INSERT INTO holidays (id, calendar_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(calendar_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.CalendarID,
		h.Date.Time.Format("2006-01-02"),
		h.Name,
		h.Recurring,
		time.Now().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("holiday %s already exists: %w", h.ID, err)
	}
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("holiday %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

// GetHolidays returns all holidays of a calendar in a given year.
// Includes both calendar-specific and global holidays.
func (s *Store) GetHolidays(calendarID string, year int) []generic.Holiday {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, calendar_id, date, name, recurring
		FROM holidays
		WHERE (calendar_id = ? OR calendar_id = '')
		  AND (recurring = TRUE OR strftime('%Y', date) = ?)
		ORDER BY strftime('%m-%d', date) ASC
	`

	rows, err := s.db.Query(query, calendarID, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CalendarID, &dateStr, &h.Name, &h.Recurring); err != nil {
			continue
		}

		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		// If recurring, adjust year
		if h.Recurring {
			t = time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		h.Date = generic.DayOf(t)

		holidays = append(holidays, h)
	}

	return holidays
}

// IsHoliday checks if a date is a holiday for the given calendar.
func (s *Store) IsHoliday(calendarID string, date generic.TimePoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dateStr := date.Time.Format("2006-01-02")
	monthDay := date.Time.Format("01-02")

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (calendar_id = ? OR calendar_id = '')
		  AND (
			(recurring = FALSE AND date = ?)
			OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		  )
	`

	var count int
	err := s.db.QueryRow(query, calendarID, dateStr, monthDay).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// GetAllHolidays returns all holidays of a calendar (for the API).
func (s *Store) GetAllHolidays(ctx context.Context, calendarID string) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, calendar_id, date, name, recurring
		FROM holidays
		WHERE calendar_id = ? OR calendar_id = ''
		ORDER BY date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, calendarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CalendarID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("holiday %s: date: %w", h.ID, err)
		}
		h.Date = generic.DayOf(t)
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Only used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"draft_bills", "revenue_facts", "worked_time", "categories", "clients", "workers", "holidays"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
