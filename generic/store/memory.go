// Package store provides an in-memory FactSource, Publisher and holiday
// calendar.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	workers    map[generic.WorkerID]allocation.Worker
	clients    map[generic.ClientID]allocation.Client
	categories []allocation.CategoryNode
	worked     []allocation.WorkedTimeFact
	revenue    []allocation.RevenueFact
	holidays   []generic.Holiday
	published  map[key]payroll.WorkerSnapshot

	// FailPublish, when set, decides which documents fail to publish.
	FailPublish func(payroll.WorkerSnapshot) error
}

// key makes publishing idempotent per document.
type key struct {
	Period   string
	WorkerID generic.WorkerID
	Kind     string
}

func NewMemory() *Memory {
	return &Memory{
		workers:   make(map[generic.WorkerID]allocation.Worker),
		clients:   make(map[generic.ClientID]allocation.Client),
		published: make(map[key]payroll.WorkerSnapshot),
	}
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) SaveWorker(_ context.Context, w allocation.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.TaxID] = w
	return nil
}

func (m *Memory) SaveClient(_ context.Context, c allocation.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return nil
}

// ReplaceCategories swaps the whole category tree.
func (m *Memory) ReplaceCategories(_ context.Context, nodes []allocation.CategoryNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append([]allocation.CategoryNode(nil), nodes...)
	return nil
}

// AddWorkedTime upserts entries keyed by worker, client, project, begin and end.
func (m *Memory) AddWorkedTime(_ context.Context, entries ...allocation.WorkedTimeFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
next:
	for _, e := range entries {
		for i, t := range m.worked {
			if sameEntry(t, e) {
				m.worked[i] = e
				continue next
			}
		}
		m.worked = append(m.worked, e)
	}
	return nil
}

func sameEntry(a, b allocation.WorkedTimeFact) bool {
	return a.WorkerID == b.WorkerID && a.ClientID == b.ClientID && a.ProjectID == b.ProjectID &&
		a.Begin.Equal(b.Begin) && a.End.Equal(b.End)
}

// AddRevenueFacts upserts facts keyed by id and mode.
func (m *Memory) AddRevenueFacts(_ context.Context, facts ...allocation.RevenueFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
next:
	for _, f := range facts {
		for i, g := range m.revenue {
			if g.ID == f.ID && modeOf(g) == modeOf(f) {
				m.revenue[i] = f
				continue next
			}
		}
		m.revenue = append(m.revenue, f)
	}
	return nil
}

// modeOf treats facts without a mode as realized.
func modeOf(f allocation.RevenueFact) allocation.RevenueMode {
	if f.Mode == "" {
		return allocation.ModeRealized
	}
	return f.Mode
}

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
	return nil
}

// =============================================================================
// FACT SOURCE
// =============================================================================

func (m *Memory) ListWorkers(_ context.Context) ([]allocation.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]allocation.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaxID < out[j].TaxID })
	return out, nil
}

func (m *Memory) ListClients(_ context.Context) ([]allocation.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]allocation.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]allocation.CategoryNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]allocation.CategoryNode, len(m.categories))
	copy(out, m.categories)
	return out, nil
}

// ListWorkedTime returns entries that begin within period.
func (m *Memory) ListWorkedTime(_ context.Context, period generic.Period) ([]allocation.WorkedTimeFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []allocation.WorkedTimeFact
	for _, t := range m.worked {
		if period.Contains(t.Begin) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListRevenueFacts returns facts paid or due within period for mode. Facts
// without a mode count as realized.
func (m *Memory) ListRevenueFacts(_ context.Context, period generic.Period, mode allocation.RevenueMode) ([]allocation.RevenueFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []allocation.RevenueFact
	for _, f := range m.revenue {
		if modeOf(f) == mode && period.Contains(f.PaidOrDueAt) {
			out = append(out, f)
		}
	}
	return out, nil
}

// =============================================================================
// PUBLISHER
// =============================================================================

// Publish stores the document, replacing an earlier one for the same
// period, worker and kind.
func (m *Memory) Publish(_ context.Context, snap payroll.WorkerSnapshot) error {
	if m.FailPublish != nil {
		if err := m.FailPublish(snap); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[key{Period: snap.Period, WorkerID: snap.WorkerID, Kind: string(snap.Kind)}] = snap
	return nil
}

// RetractStale removes documents of period published by another run.
func (m *Memory) RetractStale(_ context.Context, period, runID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, s := range m.published {
		if k.Period == period && s.RunID != runID {
			delete(m.published, k)
			n++
		}
	}
	return n, nil
}

// Published returns the stored documents of period, ordered by worker and kind.
func (m *Memory) Published(period string) []payroll.WorkerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.WorkerSnapshot
	for k, s := range m.published {
		if k.Period == period {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkerID != out[j].WorkerID {
			return out[i].WorkerID < out[j].WorkerID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// GetHolidays returns the stored holidays of calendarID (and of the global
// calendar "") in year. Recurring holidays are moved into year.
func (m *Memory) GetHolidays(calendarID string, year int) []generic.Holiday {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.Holiday
	for _, h := range m.holidays {
		if h.CalendarID != calendarID && h.CalendarID != "" {
			continue
		}
		switch {
		case h.Recurring:
			h.Date = generic.NewTimePoint(year, h.Date.Month(), h.Date.Day())
		case h.Date.Year() != year:
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *Memory) IsHoliday(calendarID string, date generic.TimePoint) bool {
	for _, h := range m.GetHolidays(calendarID, date.Year()) {
		if h.Date.Equal(date) {
			return true
		}
	}
	return false
}
