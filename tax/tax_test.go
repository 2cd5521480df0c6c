package tax_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/tax"
)

func d(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(generic.RoundCurrency(got)), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

// =============================================================================
// FLAT CONTRIBUTION
// =============================================================================

func TestFlatContribution_BelowCeiling(t *testing.T) {
	inss := tax.NewFlatContribution(d("7087.22"), nil)
	assertMoney(t, "200.00", inss.Compute(d("1000"), tax.ClassExternal))
}

func TestFlatContribution_AboveCeiling(t *testing.T) {
	inss := tax.NewFlatContribution(d("7087.22"), nil)
	got := inss.Compute(d("8000"), tax.ClassExternal)
	assert.True(t, d("1417.444").Equal(got), "got %s", got)
	assertMoney(t, "1417.44", got)
}

func TestFlatContribution_MonotonicThenConstant(t *testing.T) {
	inss := tax.NewFlatContribution(d("7087.22"), nil)
	atCeiling := inss.Compute(d("7087.22"), tax.ClassInternal)

	prev := decimal.Zero
	for base := int64(0); base <= 12000; base += 250 {
		got := inss.Compute(decimal.NewFromInt(base), tax.ClassInternal)
		assert.True(t, got.GreaterThanOrEqual(prev), "not monotonic at %d", base)
		if base >= 7250 {
			assert.True(t, got.Equal(atCeiling), "not constant above ceiling at %d", base)
		}
		prev = got
	}
}

func TestFlatContribution_NegativeBasePaysNothing(t *testing.T) {
	inss := tax.NewFlatContribution(d("7087.22"), nil)
	assert.True(t, inss.Compute(d("-10"), tax.ClassInternal).IsZero())
}

func TestFlatContribution_UnknownClassPanics(t *testing.T) {
	inss := tax.NewFlatContribution(d("7087.22"), nil)
	assert.Panics(t, func() { inss.Compute(d("100"), tax.Class("freelance")) })
}

func TestContributionForYear(t *testing.T) {
	c, err := tax.ContributionForYear(2024)
	require.NoError(t, err)
	assert.True(t, d("7786.02").Equal(c.CeilingBase))

	later, err := tax.ContributionForYear(2030)
	require.NoError(t, err)
	assert.True(t, d("8157.41").Equal(later.CeilingBase))

	_, err = tax.ContributionForYear(2019)
	assert.ErrorIs(t, err, generic.ErrUnsupportedPeriod)
}

// =============================================================================
// PROGRESSIVE TAX
// =============================================================================

func TestProgressiveTax_UnsupportedPeriod(t *testing.T) {
	_, err := tax.NewProgressiveTax(2014, time.December)
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrUnsupportedPeriod)

	var upe *generic.UnsupportedPeriodError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, 2014, upe.Year)
}

func TestProgressiveTax_TableSelection(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		table string
	}{
		{2020, time.June, "irpf-2015-04"},
		{2023, time.April, "irpf-2015-04"},
		{2023, time.May, "irpf-2023-05"},
		{2024, time.January, "irpf-2023-05"},
		{2024, time.February, "irpf-2024-02"},
		{2025, time.April, "irpf-2024-02"},
		{2025, time.May, "irpf-2025-05"},
		{2031, time.March, "irpf-2025-05"},
	}
	for _, tc := range cases {
		p, err := tax.NewProgressiveTax(tc.year, tc.month)
		require.NoError(t, err)
		assert.Equal(t, tc.table, p.Table.Name, "%d-%02d", tc.year, tc.month)
	}
}

func TestProgressiveTax_BracketBoundaries(t *testing.T) {
	p, err := tax.NewProgressiveTax(2024, time.March)
	require.NoError(t, err)

	cases := []struct {
		base string
		rate string
	}{
		{"-5", "0"},
		{"0", "0"},
		{"2259.20", "0"},
		{"2259.21", "0.075"},
		{"2826.65", "0.075"},
		{"2826.66", "0.15"},
		{"3751.05", "0.15"},
		{"3751.06", "0.225"},
		{"4664.68", "0.225"},
		{"4664.69", "0.275"},
		{"100000", "0.275"},
	}
	for _, tc := range cases {
		t.Run(tc.base, func(t *testing.T) {
			b := p.SelectBracket(d(tc.base))
			assert.True(t, d(tc.rate).Equal(b.Rate), "rate=%s", b.Rate)
		})
	}
}

func TestProgressiveTax_ComputeBase(t *testing.T) {
	p, err := tax.NewProgressiveTax(2024, time.March)
	require.NoError(t, err)

	assertMoney(t, "2431.23", p.ComputeBase(d("3000"), d("189.59"), 2))
	assert.True(t, p.ComputeBase(d("300"), d("100"), 3).IsZero(), "base is clamped at zero")
}

func TestProgressiveTax_SimplifiedWins(t *testing.T) {
	p, err := tax.NewProgressiveTax(2024, time.March)
	require.NoError(t, err)

	r := p.ComputeTax(d("5000"), decimal.Zero, 0)
	assert.Equal(t, tax.ModeSimplified, r.Mode)
	assertMoney(t, "479.00", r.Traditional)
	require.NotNil(t, r.Simplified)
	assertMoney(t, "335.15", *r.Simplified)
	assertMoney(t, "335.15", r.Tax)
	assertMoney(t, "4435.20", r.TaxableBase)
}

func TestProgressiveTax_TraditionalWins(t *testing.T) {
	p, err := tax.NewProgressiveTax(2024, time.March)
	require.NoError(t, err)

	r := p.ComputeTax(d("3000"), d("1000"), 2)
	assert.Equal(t, tax.ModeTraditional, r.Mode)
	assert.True(t, r.Tax.IsZero())
	assertMoney(t, "13.20", *r.Simplified)
}

func TestProgressiveTax_TieKeepsTraditional(t *testing.T) {
	p, err := tax.NewProgressiveTax(2024, time.March)
	require.NoError(t, err)

	r := p.ComputeTax(d("1000"), decimal.Zero, 0)
	assert.Equal(t, tax.ModeTraditional, r.Mode)
	assert.True(t, r.Tax.IsZero())
}

func TestProgressiveTax_OldTableHasNoSimplifiedMode(t *testing.T) {
	p, err := tax.NewProgressiveTax(2020, time.June)
	require.NoError(t, err)

	r := p.ComputeTax(d("3000"), decimal.Zero, 0)
	assert.Equal(t, tax.ModeTraditional, r.Mode)
	assert.Nil(t, r.Simplified)
	assertMoney(t, "95.20", r.Tax)
}

func TestProgressiveTax_NeverNegativeAndPicksLower(t *testing.T) {
	for _, when := range []struct {
		year  int
		month time.Month
	}{{2022, time.July}, {2023, time.June}, {2024, time.August}, {2025, time.September}} {
		p, err := tax.NewProgressiveTax(when.year, when.month)
		require.NoError(t, err)
		for gross := int64(0); gross <= 15000; gross += 137 {
			for deps := 0; deps <= 3; deps++ {
				g := decimal.NewFromInt(gross)
				contribution := g.Mul(d("0.11"))
				r := p.ComputeTax(g, contribution, deps)
				assert.False(t, r.Tax.IsNegative(), "negative tax at %d", gross)
				if r.Simplified != nil {
					assert.True(t, r.Tax.Equal(decimal.Min(r.Traditional, *r.Simplified)), "not the lower mode at %d", gross)
				}
			}
		}
	}
}

// =============================================================================
// CALCULATOR
// =============================================================================

func TestCalculator_Compute(t *testing.T) {
	c, err := tax.NewCalculator(2024, time.March, tax.ClassInternal)
	require.NoError(t, err)

	b := c.Compute(d("3000"), 0)
	assertMoney(t, "330.00", b.Contribution)
	assertMoney(t, "13.20", b.Tax)
	assert.Equal(t, tax.ModeSimplified, b.Mode)
}

func TestCompute_Standalone(t *testing.T) {
	b, err := tax.Compute(d("10000"), 1, 2025, time.June)
	require.NoError(t, err)

	assertMoney(t, "897.32", b.Contribution)
	assertMoney(t, "1542.37", b.Tax)
	assert.Equal(t, tax.ModeTraditional, b.Mode)
	assertMoney(t, "8913.09", b.TaxableBase)
}

func TestCompute_UnsupportedPeriod(t *testing.T) {
	_, err := tax.Compute(d("1000"), 0, 2010, time.January)
	assert.ErrorIs(t, err, generic.ErrUnsupportedPeriod)
}
