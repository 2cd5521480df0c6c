package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/ledger"
	"github.com/librecode/producao/tax"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func newLedger(t *testing.T, kind ledger.Kind) *ledger.Ledger {
	t.Helper()
	calc, err := tax.NewCalculator(2024, time.March, tax.ClassInternal)
	require.NoError(t, err)
	return ledger.New("111.111.111-11", kind, calc)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(generic.RoundCurrency(got)), "want %s got %s", want, got)
}

// =============================================================================
// RECOMPUTE PASS
// =============================================================================

func TestLedger_RecomputePass(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	l.SetBase(d("6000"))
	l.SetHealthInsurance(d("300"))
	l.AddAdvance(ledger.Advance{Amount: d("1000"), DocumentReference: "adv-1"})
	l.AddAdvance(ledger.Advance{Amount: d("200"), DocumentReference: "adv-2"})

	assertMoney(t, "500.00", l.VacationReserve())
	assertMoney(t, "1200.00", l.Stipend())
	assertMoney(t, "4300.00", l.GrossAfterReserveAndStipend())
	assertMoney(t, "473.00", l.Contribution())
	assertMoney(t, "178.84", l.IncomeTax())
	assert.Equal(t, tax.ModeSimplified, l.TaxMode())
	assertMoney(t, "1200.00", l.TotalAdvances())
	assertMoney(t, "3348.16", l.Net())
}

func TestLedger_SettersMarkDirty(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	l.SetBase(d("1000"))
	assert.True(t, l.IsDirty())

	_ = l.Net()
	assert.False(t, l.IsDirty(), "reading recomputes and marks fresh")

	l.SetHealthInsurance(d("50"))
	assert.True(t, l.IsDirty())
	before := l.Net()

	l.AddAdvance(ledger.Advance{Amount: d("10")})
	assert.True(t, l.IsDirty())
	assert.True(t, before.Sub(d("10")).Equal(l.Net()))
}

func TestLedger_RecomputeIsIdempotent(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	l.SetBase(d("8765.43"))
	l.SetDependents(2)
	l.SetHealthInsurance(d("412.10"))

	first := l.Net()
	second := l.Net()
	l.Recompute()
	third := l.Net()

	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(third))
	assert.True(t, l.Snapshot().Net.Equal(l.Snapshot().Net))
}

func TestLedger_SetBaseResetsDerivedFields(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	l.SetBase(d("6000"))
	require.True(t, l.Stipend().IsPositive())

	l.SetBase(decimal.Zero)
	assert.True(t, l.VacationReserve().IsZero())
	assert.True(t, l.Stipend().IsZero())
	assert.True(t, l.Contribution().IsZero())
	assert.True(t, l.IncomeTax().IsZero())
	assert.True(t, l.Net().IsZero())
}

func TestLedger_AddBaseAccumulates(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	l.AddBase(d("750"))
	l.AddBase(d("250"))
	assertMoney(t, "1000.00", l.Base())
	assertMoney(t, "83.33", l.VacationReserve())
}

func TestLedger_LockedVacationReserve(t *testing.T) {
	// GIVEN: the reserve document of a worker whose production reserve is 500
	// WHEN: the reserve itself is paid out as a ledger
	// THEN: no reserve is taken from the reserve
	frra := newLedger(t, ledger.KindVacationReserve)
	frra.LockVacationReserve(decimal.Zero)
	frra.SetBase(d("500"))

	assert.True(t, frra.VacationReserve().IsZero())
	assertMoney(t, "100.00", frra.Stipend())
	assertMoney(t, "400.00", frra.GrossAfterReserveAndStipend())
	assertMoney(t, "44.00", frra.Contribution())
	assert.True(t, frra.IncomeTax().IsZero())
	assertMoney(t, "456.00", frra.Net())
}

func TestLedger_DuplicateAdvancesAreKept(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	adv := ledger.Advance{Amount: d("100"), DocumentReference: "same", DueDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}
	l.AddAdvance(adv)
	l.AddAdvance(adv)

	assert.Len(t, l.Advances(), 2)
	assertMoney(t, "200.00", l.TotalAdvances())
}

func TestLedger_SnapshotIsRounded(t *testing.T) {
	l := newLedger(t, ledger.KindProduction)
	l.SetBase(d("1000"))

	s := l.Snapshot()
	assert.Equal(t, "83.33", s.VacationReserve.StringFixed(2))
	assert.Equal(t, int32(-2), s.VacationReserve.Exponent())
	assert.Equal(t, ledger.KindProduction, s.Kind)
	assert.Equal(t, generic.WorkerID("111.111.111-11"), s.WorkerID)
}
