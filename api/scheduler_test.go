package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/payroll"
)

func newScheduler(t *testing.T) (*SettlementScheduler, *store.TxMemory) {
	t.Helper()
	s := store.NewTxMemory()
	shift := generic.Shift{Start: generic.NewTimeOfDay(8, 0, 0), End: generic.NewTimeOfDay(17, 0, 0)}
	require.NoError(t, s.SaveEmployee(context.Background(), generic.Employee{
		ID:        "e1",
		Name:      "Employee e1",
		DailyRate: decimal.NewFromInt(400),
		Active:    true,
		Template:  generic.StandardTemplate(shift, time.Monday, time.Tuesday, time.Wednesday),
	}))

	// Wednesday 2025-03-19: the previous week is 2025-03-10..16.
	now := func() time.Time { return time.Date(2025, time.March, 19, 3, 0, 0, 0, time.UTC) }
	sched := NewSettlementScheduler(payroll.NewCloser(s, nil).WithClock(now), s, nil)
	sched.now = now
	return sched, s
}

func TestScheduler_SettlesPreviousWeekOnce(t *testing.T) {
	// GIVEN: an open previous week
	// WHEN: the scheduler runs twice
	// THEN: the first run settles it as the system actor, the second skips

	sched, s := newScheduler(t)
	ctx := context.Background()
	previous := generic.WeekOf(generic.MustParseDate("2025-03-10"))

	assert.True(t, sched.RunOnce(ctx))
	assert.False(t, sched.RunOnce(ctx))

	receipts, err := s.ListReceipts(ctx, previous)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Nil(t, receipts[0].PaidAt)

	current, err := s.PeriodClosed(ctx, generic.WeekOf(generic.MustParseDate("2025-03-17")))
	require.NoError(t, err)
	assert.False(t, current, "the running week is never settled")
}

func TestScheduler_MarkAsPaid(t *testing.T) {
	sched, s := newScheduler(t)
	sched.MarkAsPaid = true

	require.True(t, sched.RunOnce(context.Background()))

	receipts, err := s.ListReceipts(context.Background(), generic.WeekOf(generic.MustParseDate("2025-03-10")))
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.NotNil(t, receipts[0].PaidAt)
}

func TestScheduler_StartStop(t *testing.T) {
	sched, s := newScheduler(t)
	sched.Interval = time.Hour

	sched.Start()
	sched.Start()
	sched.Stop()
	sched.Stop()

	// Start runs once immediately and Stop waits for it.
	closed, err := s.PeriodClosed(context.Background(), generic.WeekOf(generic.MustParseDate("2025-03-10")))
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestScheduler_EmptyWeekIsNotResettled(t *testing.T) {
	// GIVEN: no active employees
	// WHEN: the scheduler runs twice
	// THEN: the first run settles an empty week and the second skips it

	sched, s := newScheduler(t)
	ctx := context.Background()
	emp, err := s.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	emp.Active = false
	require.NoError(t, s.SaveEmployee(ctx, *emp))

	assert.True(t, sched.RunOnce(ctx))
	assert.False(t, sched.RunOnce(ctx))

	receipts, err := s.ListReceipts(ctx, generic.WeekOf(generic.MustParseDate("2025-03-10")))
	require.NoError(t, err)
	assert.Empty(t, receipts)
}
