package services

import (
	"bytes"
	"testing"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

// reportFixture places a mixed order with installment 1 paid and a fixed
// duration order, then moves the clock past the second installment's due date.
func reportFixture(t *testing.T) (*fixture, *models.Order, *models.Order) {
	t.Helper()
	f := newFixture(t)
	mixed := f.mixedOrder(t)
	_, err := f.payments.MarkPaid(f.ctx, mixed.ID, bnpl.InstallmentPortion(1))
	require.NoError(t, err)

	f.fillCart(t)
	d, err := f.orders.Checkout(f.ctx, f.user.ID, CheckoutRequest{
		PlanID: f.fixedPlan.ID.Hex(),
		Items:  []CheckoutLine{{ProductID: f.phone.ID, PaymentMethod: "BNPL"}},
	})
	require.NoError(t, err)

	f.fillCart(t)
	cancelled, err := f.orders.Checkout(f.ctx, f.user.ID, CheckoutRequest{
		PlanID: f.plan.ID.Hex(),
		Items:  []CheckoutLine{{ProductID: f.phone.ID, PaymentMethod: "BNPL"}},
	})
	require.NoError(t, err)
	_, err = f.orders.Cancel(f.ctx, f.actor(), cancelled.Order.ID)
	require.NoError(t, err)

	f.clock.t = time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC)
	_, err = f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	return f, mixed, d.Order
}

func TestReportSummary(t *testing.T) {
	f, _, _ := reportFixture(t)

	r, err := f.reports.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, r.OrderCount)
	assert.Equal(t, 1, r.CancelledCount)
	assert.Equal(t, 1, r.OrdersByMethod[models.PaymentMixed])
	assert.Equal(t, 1, r.OrdersByMethod[models.PaymentFixedDuration])
	assert.Equal(t, 1, r.OrdersByMethod[models.PaymentBNPL])
	assert.Equal(t, "67500", r.GrossSales.String())
	assert.Equal(t, "60000", r.BNPLFinanced.String())
	assert.Equal(t, "4500", r.InterestEarned.String())
	assert.Equal(t, "11000", r.Collected.String())
	// COD 3000, installments 2 and 3 with 220 penalty, fixed duration 31500 with 630.
	assert.Equal(t, "57350", r.Outstanding.String())
	assert.Equal(t, 2, r.OverdueInstallments)
	assert.Equal(t, "43350", r.OverdueAmount.String())
	assert.Equal(t, "850", r.PenaltiesAccrued.String())
	// Only installment 3, due 2026-06-10, falls in the window.
	assert.Equal(t, "11000", r.DueNext30Days.String())
}

func TestSchedules(t *testing.T) {
	f, mixed, fixed := reportFixture(t)

	all, err := f.reports.Schedules(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].DueDate.Before(all[i-1].DueDate))
	}

	paid, err := f.reports.Schedules(f.ctx, "paid")
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, mixed.Reference, paid[0].Reference)
	assert.Equal(t, 1, paid[0].InstallmentNumber)
	assert.NotNil(t, paid[0].PaidAt)

	overdue, err := f.reports.Schedules(f.ctx, "Overdue")
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	refs := []string{}
	for _, row := range overdue {
		assert.True(t, row.Overdue)
		assert.Equal(t, 5, row.DaysOverdue)
		refs = append(refs, row.Reference)
	}
	assert.Contains(t, refs, fixed.Reference)

	pending, err := f.reports.Schedules(f.ctx, "pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].InstallmentNumber)

	_, err = f.reports.Schedules(f.ctx, "late")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExportSchedules(t *testing.T) {
	f, _, _ := reportFixture(t)

	var buf bytes.Buffer
	require.NoError(t, f.reports.ExportSchedules(f.ctx, &buf, ""))

	book, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := book.Sheet["Schedules"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 5)
	assert.Equal(t, "Reference", sheet.Rows[0].Cells[0].Value)
}
