package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/ledger"
	"github.com/librecode/producao/payroll"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func march() generic.Period {
	p, _ := generic.ParseMonth("2024-03")
	return p
}

// =============================================================================
// WORKERS AND CLIENTS
// =============================================================================

func TestWorker_UpsertAndList(t *testing.T) {
	// GIVEN: a worker saved twice with different dependents
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveWorker(ctx, allocation.Worker{TaxID: "B", Name: "Bruno", Enabled: true}))
	require.NoError(t, s.SaveWorker(ctx, allocation.Worker{TaxID: "A", Name: "Ana", Enabled: true}))
	require.NoError(t, s.SaveWorker(ctx, allocation.Worker{TaxID: "A", Name: "Ana", Dependents: 2, ExternalContactID: "c-1", Enabled: true}))

	// WHEN: listing
	workers, err := s.ListWorkers(ctx)

	// THEN: the latest version wins, ordered by tax id
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, generic.WorkerID("A"), workers[0].TaxID)
	assert.Equal(t, 2, workers[0].Dependents)
	assert.Equal(t, "c-1", workers[0].ExternalContactID)
	assert.Equal(t, "", workers[1].ExternalContactID)
}

func TestWorker_GetUnknown(t *testing.T) {
	s := newStore(t)
	_, err := s.GetWorker(context.Background(), "nobody")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestClient_UpsertAndList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, allocation.Client{ID: "7", Name: "Acme", TimeBudgetSeconds: 3600, Enabled: true, Billable: true}))
	require.NoError(t, s.SaveClient(ctx, allocation.Client{ID: "0", Name: "Cooperative", Enabled: true}))

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, generic.ClientID("0"), clients[0].ID)
	assert.False(t, clients[0].Billable)
	assert.Equal(t, int64(3600), clients[1].TimeBudgetSeconds)
	assert.True(t, clients[1].Billable)
}

func TestCategories_Replace(t *testing.T) {
	// GIVEN: a tree replaced by a smaller one
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCategories(ctx, []allocation.CategoryNode{
		{ID: "1", Type: allocation.CategoryIncome, Name: "Revenue"},
		{ID: "10", ParentID: "1", Type: allocation.CategoryIncome, Name: "Services"},
		{ID: "2", Type: allocation.CategoryExpense, Name: "Expenses"},
	}))
	require.NoError(t, s.ReplaceCategories(ctx, []allocation.CategoryNode{
		{ID: "1", Type: allocation.CategoryIncome, Name: "Revenue"},
		{ID: "10", ParentID: "1", Type: allocation.CategoryIncome, Name: "Services"},
	}))

	// WHEN: listing
	nodes, err := s.ListCategories(ctx)

	// THEN: only the second tree remains, parents preserved
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, generic.CategoryID(""), nodes[0].ParentID)
	assert.Equal(t, generic.CategoryID("1"), nodes[1].ParentID)
}

// =============================================================================
// FACTS
// =============================================================================

func TestWorkedTime_FilteredByPeriod(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, s.AddWorkedTime(ctx,
		allocation.WorkedTimeFact{WorkerID: "A", ClientID: "7", ProjectID: "p", DurationSeconds: 3600, Begin: at(time.March, 1), End: at(time.March, 1).Add(time.Hour)},
		allocation.WorkedTimeFact{WorkerID: "A", ClientID: "7", DurationSeconds: 7200, Begin: at(time.March, 31), End: at(time.March, 31).Add(2 * time.Hour)},
		allocation.WorkedTimeFact{WorkerID: "B", ClientID: "7", DurationSeconds: 3600, Begin: at(time.April, 1), End: at(time.April, 1).Add(time.Hour)},
	))

	entries, err := s.ListWorkedTime(ctx, march())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p", entries[0].ProjectID)
	assert.Equal(t, int64(7200), entries[1].DurationSeconds)
	assert.True(t, entries[1].Begin.Equal(at(time.March, 31)))
}

func TestWorkedTime_ResyncKeepsOneEntry(t *testing.T) {
	// GIVEN: the same time entry synced twice, the second time corrected
	s := newStore(t)
	ctx := context.Background()
	begin := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	entry := allocation.WorkedTimeFact{WorkerID: "A", ClientID: "7", DurationSeconds: 3600, Begin: begin, End: begin.Add(time.Hour)}
	require.NoError(t, s.AddWorkedTime(ctx, entry))

	entry.DurationSeconds = 3000
	require.NoError(t, s.AddWorkedTime(ctx, entry))

	// WHEN: listing the month
	entries, err := s.ListWorkedTime(ctx, march())

	// THEN: one entry carrying the latest duration
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3000), entries[0].DurationSeconds)
}

func TestWorkedTime_CorruptTimestamp(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worked_time (worker_id, client_id, project_id, duration_seconds, begin_at, end_at)
		VALUES ('A', '7', '', 3600, '2024-03-05 09:00', '2024-03-05 10:00')`)
	require.NoError(t, err)

	_, err = s.ListWorkedTime(ctx, march())
	assert.ErrorContains(t, err, "begin")
}

func TestRevenueFacts_CorruptTimestamp(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revenue_facts (id, mode, type, amount, category_id, paid_or_due_at)
		VALUES ('inv-1', 'realized', 'income', '100', '10', '2024-03-05 bad')`)
	require.NoError(t, err)

	_, err = s.ListRevenueFacts(ctx, march(), allocation.ModeRealized)
	assert.ErrorContains(t, err, "inv-1")
}

func TestRevenueFacts_RoundTripAndModes(t *testing.T) {
	// GIVEN: a realized fact with every optional field, a forecast one and
	// a fact outside the month
	s := newStore(t)
	ctx := context.Background()
	fixed := decimal.NewFromInt(15)
	paid := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddRevenueFacts(ctx,
		allocation.RevenueFact{
			ID: "inv-1", Type: allocation.FactIncome, Amount: decimal.RequireFromString("1234.56"),
			CustomerReference: "7|acme", CategoryID: "10", PaidOrDueAt: paid,
			FixedDiscountPercent: &fixed, Metadata: map[string]string{"nfse": "991"},
		},
		allocation.RevenueFact{ID: "nf-1", Type: allocation.FactIncome, Mode: allocation.ModeForecast, Amount: decimal.NewFromInt(500), CategoryID: "10", PaidOrDueAt: paid},
		allocation.RevenueFact{ID: "inv-2", Type: allocation.FactIncome, Amount: decimal.NewFromInt(10), CategoryID: "10", PaidOrDueAt: paid.AddDate(0, 1, 0)},
	))

	// WHEN: listing realized and forecast facts for March
	realized, err := s.ListRevenueFacts(ctx, march(), allocation.ModeRealized)
	require.NoError(t, err)
	forecast, err := s.ListRevenueFacts(ctx, march(), allocation.ModeForecast)
	require.NoError(t, err)

	// THEN: each mode sees only its own facts and values survive the trip
	require.Len(t, realized, 1)
	f := realized[0]
	assert.Equal(t, allocation.ModeRealized, f.Mode)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(f.Amount))
	assert.Equal(t, "7|acme", f.CustomerReference)
	require.NotNil(t, f.FixedDiscountPercent)
	assert.True(t, fixed.Equal(*f.FixedDiscountPercent))
	assert.Equal(t, "991", f.Metadata["nfse"])
	assert.Equal(t, generic.WorkerID(""), f.WorkerID)

	require.Len(t, forecast, 1)
	assert.Equal(t, generic.FactID("nf-1"), forecast[0].ID)
	assert.Nil(t, forecast[0].FixedDiscountPercent)
}

func TestRevenueFacts_ResyncReplaces(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	paid := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	fact := allocation.RevenueFact{ID: "inv-1", Type: allocation.FactIncome, Amount: decimal.NewFromInt(100), CategoryID: "10", PaidOrDueAt: paid}

	require.NoError(t, s.AddRevenueFacts(ctx, fact))
	fact.Amount = decimal.NewFromInt(120)
	require.NoError(t, s.AddRevenueFacts(ctx, fact))

	facts, err := s.ListRevenueFacts(ctx, march(), allocation.ModeRealized)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, decimal.NewFromInt(120).Equal(facts[0].Amount))
}

// =============================================================================
// DRAFT BILLS
// =============================================================================

func snapshot(runID string, net string) payroll.WorkerSnapshot {
	return payroll.WorkerSnapshot{
		Snapshot: ledger.Snapshot{
			WorkerID: "A",
			Kind:     ledger.KindProduction,
			Base:     decimal.NewFromInt(9000),
			Net:      decimal.RequireFromString(net),
		},
		RunID:       runID,
		Period:      "2024-03",
		Name:        "Ana",
		PaymentDate: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublish_IdempotentPerDocument(t *testing.T) {
	// GIVEN: the same document published by two runs
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, snapshot("run-1", "6557.86")))
	first, err := s.ListDraftBills(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, s.Publish(ctx, snapshot("run-2", "6600.00")))

	// WHEN: listing
	bills, err := s.ListDraftBills(ctx, "2024-03")

	// THEN: one bill, same id, content of the latest run
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, first[0].ID, bills[0].ID)
	assert.Equal(t, "run-2", bills[0].RunID)
	assert.True(t, decimal.RequireFromString("6600").Equal(bills[0].Net))
	assert.Equal(t, "Ana", bills[0].Snapshot.Name)
	assert.True(t, decimal.NewFromInt(9000).Equal(bills[0].Snapshot.Base))
	assert.Equal(t, 2024, bills[0].PaymentDate.Year())
}

func TestPublish_KindsAreSeparateDocuments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	prod := snapshot("run-1", "100")
	frra := snapshot("run-1", "50")
	frra.Kind = ledger.KindVacationReserve

	require.NoError(t, s.Publish(ctx, prod))
	require.NoError(t, s.Publish(ctx, frra))

	bills, err := s.ListDraftBills(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "production", bills[0].Kind)
	assert.Equal(t, "vacation_reserve", bills[1].Kind)

	other, err := s.ListDraftBills(ctx, "2024-04")
	require.NoError(t, err)
	assert.Empty(t, other)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHoliday_CreateAndQuery(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{
		ID: "h1", CalendarID: "sp", Date: generic.NewTimePoint(2024, time.January, 25), Name: "Aniversário de São Paulo",
	}))

	assert.True(t, s.IsHoliday("sp", generic.NewTimePoint(2024, time.January, 25)))
	assert.False(t, s.IsHoliday("rj", generic.NewTimePoint(2024, time.January, 25)))
	assert.False(t, s.IsHoliday("sp", generic.NewTimePoint(2025, time.January, 25)))

	holidays := s.GetHolidays("sp", 2024)
	require.Len(t, holidays, 1)
	assert.Equal(t, "h1", holidays[0].ID)
}

func TestHoliday_RecurringAndGlobal(t *testing.T) {
	// GIVEN: a recurring global holiday stored with a past year
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{
		Date: generic.NewTimePoint(2020, time.July, 9), Name: "Revolução Constitucionalista", Recurring: true,
	}))

	// THEN: it applies to every calendar and every year
	assert.True(t, s.IsHoliday("sp", generic.NewTimePoint(2026, time.July, 9)))
	holidays := s.GetHolidays("any", 2026)
	require.Len(t, holidays, 1)
	assert.True(t, holidays[0].Date.Equal(generic.NewTimePoint(2026, time.July, 9)))
	assert.NotEmpty(t, holidays[0].ID)
}

func TestHoliday_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: generic.NewTimePoint(2024, time.March, 19), Name: "São José"}))

	require.NoError(t, s.DeleteHoliday(ctx, "h1"))
	assert.False(t, s.IsHoliday("", generic.NewTimePoint(2024, time.March, 19)))
	assert.ErrorIs(t, s.DeleteHoliday(ctx, "h1"), generic.ErrNotFound)

	all, err := s.GetAllHolidays(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_ServesRunner(t *testing.T) {
	// GIVEN: a store seeded with one month of facts
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveWorker(ctx, allocation.Worker{TaxID: "A", Name: "Ana", Enabled: true}))
	require.NoError(t, s.SaveClient(ctx, allocation.Client{ID: "7", Name: "Acme", Enabled: true, Billable: true}))
	require.NoError(t, s.ReplaceCategories(ctx, []allocation.CategoryNode{
		{ID: "1", Type: allocation.CategoryIncome, Name: "Revenue"},
		{ID: "10", ParentID: "1", Type: allocation.CategoryIncome, Name: "Services"},
	}))
	begin := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddWorkedTime(ctx, allocation.WorkedTimeFact{WorkerID: "A", ClientID: "7", DurationSeconds: 3600, Begin: begin, End: begin.Add(time.Hour)}))
	require.NoError(t, s.AddRevenueFacts(ctx, allocation.RevenueFact{
		ID: "inv-1", Type: allocation.FactIncome, Amount: decimal.NewFromInt(1000),
		CustomerReference: "7", CategoryID: "10", PaidOrDueAt: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
	}))

	cfg := payroll.DefaultConfig()
	cfg.MaxAdminPercent = decimal.Zero
	cfg.Roots = allocation.CategoryRoots{ClientRevenue: "10"}

	runner := payroll.NewRunner(s, generic.MultiCalendar{generic.BrazilianHolidays{}, s}, s, nil)
	runner.Now = func() time.Time { return time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC) }

	// WHEN: running March
	res, err := runner.Run(ctx, march(), cfg)

	// THEN: the whole revenue goes to Ana and her bills are stored
	require.NoError(t, err)
	snap, ok := res.Snapshot("A", ledger.KindProduction)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1000).Equal(snap.Base))

	bills, err := s.ListDraftBills(ctx, "2024-03")
	require.NoError(t, err)
	assert.Len(t, bills, len(res.Snapshots))
}

func TestRetractStale_RemovesOtherRuns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	old := snapshot("run-1", "100")
	old.WorkerID = "B"
	require.NoError(t, s.Publish(ctx, old))
	require.NoError(t, s.Publish(ctx, snapshot("run-2", "200")))

	n, err := s.RetractStale(ctx, "2024-03", "run-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bills, err := s.ListDraftBills(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, generic.WorkerID("A"), bills[0].WorkerID)
}

func TestStore_RerunRetractsDroppedWorker(t *testing.T) {
	// GIVEN: Ana and Bruno each log one hour on a 1000 invoice
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveWorker(ctx, allocation.Worker{TaxID: "A", Name: "Ana", Enabled: true}))
	require.NoError(t, s.SaveWorker(ctx, allocation.Worker{TaxID: "B", Name: "Bruno", Enabled: true}))
	require.NoError(t, s.SaveClient(ctx, allocation.Client{ID: "7", Name: "Acme", Enabled: true, Billable: true}))
	require.NoError(t, s.ReplaceCategories(ctx, []allocation.CategoryNode{
		{ID: "1", Type: allocation.CategoryIncome, Name: "Revenue"},
		{ID: "10", ParentID: "1", Type: allocation.CategoryIncome, Name: "Services"},
	}))
	begin := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddWorkedTime(ctx,
		allocation.WorkedTimeFact{WorkerID: "A", ClientID: "7", DurationSeconds: 3600, Begin: begin, End: begin.Add(time.Hour)},
		allocation.WorkedTimeFact{WorkerID: "B", ClientID: "7", DurationSeconds: 3600, Begin: begin, End: begin.Add(time.Hour)},
	))
	require.NoError(t, s.AddRevenueFacts(ctx, allocation.RevenueFact{
		ID: "inv-1", Type: allocation.FactIncome, Amount: decimal.NewFromInt(1000),
		CustomerReference: "7", CategoryID: "10", PaidOrDueAt: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
	}))

	cfg := payroll.DefaultConfig()
	cfg.MaxAdminPercent = decimal.Zero
	cfg.Roots = allocation.CategoryRoots{ClientRevenue: "10"}
	runner := payroll.NewRunner(s, nil, s, nil)
	runner.Now = func() time.Time { return time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC) }

	_, err := runner.Run(ctx, march(), cfg)
	require.NoError(t, err)
	bills, err := s.ListDraftBills(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, bills, 4)

	// WHEN: Bruno's time is removed upstream and the month is run again
	_, err = s.db.ExecContext(ctx, `DELETE FROM worked_time WHERE worker_id = 'B'`)
	require.NoError(t, err)
	rerun, err := runner.Run(ctx, march(), cfg)
	require.NoError(t, err)

	// THEN: only the rerun's documents stay published
	bills, err = s.ListDraftBills(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, bills, len(rerun.Snapshots))
	for _, b := range bills {
		assert.Equal(t, rerun.RunID, b.RunID)
		assert.Equal(t, generic.WorkerID("A"), b.WorkerID)
	}
}
