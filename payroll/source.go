package payroll

import (
	"context"
	"time"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/ledger"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// FactSource reads facts already synced from the time tracker and the
// accounting system.
type FactSource interface {
	ListWorkedTime(ctx context.Context, period generic.Period) ([]allocation.WorkedTimeFact, error)
	ListRevenueFacts(ctx context.Context, period generic.Period, mode allocation.RevenueMode) ([]allocation.RevenueFact, error)
	ListCategories(ctx context.Context) ([]allocation.CategoryNode, error)
	ListClients(ctx context.Context) ([]allocation.Client, error)
	ListWorkers(ctx context.Context) ([]allocation.Worker, error)
}

// WorkerRegistrar is implemented by sources that can persist workers first
// seen in worked time.
type WorkerRegistrar interface {
	SaveWorker(ctx context.Context, w allocation.Worker) error
}

// Publisher writes one worker document downstream, typically as a draft bill.
type Publisher interface {
	Publish(ctx context.Context, snap WorkerSnapshot) error
}

// Retractor is implemented by publishers that can withdraw the documents an
// earlier run of the same period left behind. It is called only after every
// document of the current run was published.
type Retractor interface {
	RetractStale(ctx context.Context, period, runID string) (int, error)
}

// =============================================================================
// OUTPUT
// =============================================================================

// WorkerSnapshot is the emitted record of one worker document.
type WorkerSnapshot struct {
	ledger.Snapshot

	RunID             string
	Period            string // work month, "2006-01"
	Name              string
	ExternalContactID string
	Dependents        int
	PaymentDate       time.Time
	ProcessedAt       time.Time
}

// RunResult is the outcome of a run.
type RunResult struct {
	RunID       string
	Period      generic.Period
	Mode        allocation.RevenueMode
	PaymentDate generic.PaymentDate
	Allocation  *allocation.Result
	Snapshots   []WorkerSnapshot
}

// Snapshot returns the document of kind for worker, if any.
func (r *RunResult) Snapshot(worker generic.WorkerID, kind ledger.Kind) (WorkerSnapshot, bool) {
	for _, s := range r.Snapshots {
		if s.WorkerID == worker && s.Kind == kind {
			return s, true
		}
	}
	return WorkerSnapshot{}, false
}
