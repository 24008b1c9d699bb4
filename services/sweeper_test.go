package services

import (
	"context"
	"testing"
	"time"

	"go-bnpl/bnpl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_AccruesPenaltiesAndFlagsOverdue(t *testing.T) {
	f := newFixture(t)
	order := f.mixedOrder(t)

	res, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Orders: 1}, res)

	// Installment 1 was due 2026-04-10, installment 2 on 2026-05-10.
	f.clock.t = time.Date(2026, time.May, 11, 8, 0, 0, 0, time.UTC)
	res, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Orders: 1, PenaltyUpdates: 2, NewlyOverdue: 2, StatusChanges: 1}, res)

	stored, err := f.stores.Orders.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "440", stored.Installments[0].Penalty.String())
	assert.Equal(t, "220", stored.Installments[1].Penalty.String())
	assert.True(t, stored.Installments[2].Penalty.IsZero())
	assert.Equal(t, bnpl.PaymentOverdue, stored.PaymentStatus)

	overdue := 0
	for _, s := range f.notifier.subjects() {
		if s == "Payment Overdue" {
			overdue++
		}
	}
	assert.Equal(t, 2, overdue)

	res, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Orders: 1}, res)
}

func TestSweep_PaidPenaltyIsFrozen(t *testing.T) {
	f := newFixture(t)
	order := f.mixedOrder(t)

	f.clock.t = time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	_, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)

	d, err := f.payments.MarkPaid(f.ctx, order.ID, bnpl.InstallmentPortion(1))
	require.NoError(t, err)
	assert.Equal(t, "220", d.Order.Installments[0].Penalty.String())

	recorded, err := f.stores.Payments.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "220", recorded[0].Penalty.String())

	f.clock.t = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)

	stored, err := f.stores.Orders.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "220", stored.Installments[0].Penalty.String())
	assert.True(t, stored.Installments[1].Penalty.IsPositive())
}

func TestSweep_SkipsCancelledAndSettledOrders(t *testing.T) {
	f := newFixture(t)
	order := f.mixedOrder(t)
	_, err := f.orders.Cancel(f.ctx, f.actor(), order.ID)
	require.NoError(t, err)

	f.clock.t = f.clock.t.AddDate(1, 0, 0)
	res, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Orders)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
