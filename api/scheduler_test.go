package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsClosedMonthOnce(t *testing.T) {
	// GIVEN: the small cooperative loaded for the month the scheduler targets
	h, _ := setupTestHandler(t)
	ctx := context.Background()
	month, err := h.loadScenario(ctx, "small-cooperative", testNow)
	require.NoError(t, err)

	rs := NewRunScheduler(h)
	rs.Now = func() time.Time { return testNow }

	// WHEN: checking twice
	first := rs.CheckAndRun(ctx)
	second := rs.CheckAndRun(ctx)

	// THEN: only the first check runs the month
	assert.True(t, first)
	assert.False(t, second)

	bills, err := h.Store.ListDraftBills(ctx, month.Key())
	require.NoError(t, err)
	assert.Len(t, bills, 4)
}

func TestScheduler_FailedRunIsRetried(t *testing.T) {
	// GIVEN: a month the engine rejects
	h, _ := setupTestHandler(t)
	ctx := context.Background()
	_, err := h.loadScenario(ctx, "data-quality", testNow)
	require.NoError(t, err)

	rs := NewRunScheduler(h)
	rs.Now = func() time.Time { return testNow }

	// THEN: every check attempts it again, since nothing was published
	assert.True(t, rs.CheckAndRun(ctx))
	assert.True(t, rs.CheckAndRun(ctx))
}

func TestScheduler_StartStop(t *testing.T) {
	h, _ := setupTestHandler(t)
	rs := NewRunScheduler(h)
	rs.Now = func() time.Time { return testNow }
	rs.CheckInterval = time.Hour

	rs.Start()
	rs.Start()
	rs.Stop()
	rs.Stop()

	disabled := NewRunScheduler(h)
	disabled.Enabled = false
	disabled.Start()
	assert.Nil(t, disabled.ticker)
}
