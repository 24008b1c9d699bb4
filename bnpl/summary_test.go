package bnpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysOverdue(t *testing.T) {
	due := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysOverdue(due, due.Add(-48*time.Hour)))
	assert.Equal(t, 0, DaysOverdue(due, time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 1, DaysOverdue(due, time.Date(2026, time.March, 11, 0, 0, 1, 0, time.UTC)))
	assert.Equal(t, 31, DaysOverdue(due, time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)))

	assert.False(t, IsOverdue(due, due))
	assert.True(t, IsOverdue(due, due.AddDate(0, 0, 1)))
}

func TestPenalty(t *testing.T) {
	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, Penalty(dec("1000"), dec("2"), due, due).IsZero())
	assertDecimal(t, "20", Penalty(dec("1000"), dec("2"), due, due.AddDate(0, 0, 1)))
	assertDecimal(t, "20", Penalty(dec("1000"), dec("2"), due, due.AddDate(0, 0, 30)))
	assertDecimal(t, "40", Penalty(dec("1000"), dec("2"), due, due.AddDate(0, 0, 31)))
	assertDecimal(t, "3.33", Penalty(dec("333.33"), dec("1"), due, due.AddDate(0, 0, 5)))
	assert.True(t, Penalty(dec("1000"), dec("0"), due, due.AddDate(0, 2, 0)).IsZero())
}

func TestAccruePenalty_MonotoneAndFrozenWhenPaid(t *testing.T) {
	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	inst := Installment{Number: 1, Amount: dec("500"), DueDate: due, Status: StatusPending}

	assert.False(t, inst.AccruePenalty(dec("2"), due))
	assert.True(t, inst.AccruePenalty(dec("2"), due.AddDate(0, 0, 40)))
	assertDecimal(t, "20", inst.Penalty)

	// A lower rate later on never reduces what has accrued.
	assert.False(t, inst.AccruePenalty(dec("1"), due.AddDate(0, 0, 41)))
	assertDecimal(t, "20", inst.Penalty)

	require.NoError(t, inst.MarkPaid(due.AddDate(0, 0, 42)))
	assert.False(t, inst.AccruePenalty(dec("2"), due.AddDate(0, 6, 0)))
	assertDecimal(t, "20", inst.Penalty)
	assertDecimal(t, "520", inst.AmountDue())
}

func TestSummarize_Statuses(t *testing.T) {
	installments, err := BuildInstallments(dec("300"), 3, orderDate)
	require.NoError(t, err)
	beforeFirstDue := orderDate.AddDate(0, 0, 10)

	t.Run("nothing paid", func(t *testing.T) {
		s := Summarize(Ledger{Installments: cloneInstallments(installments)}, beforeFirstDue)
		assert.Equal(t, PaymentPending, s.Status)
		assertDecimal(t, "300", s.Total)
		assertDecimal(t, "300", s.Outstanding)
		assert.Equal(t, 3, s.PendingCount)
		require.NotNil(t, s.NextDueDate)
		assert.Equal(t, installments[0].DueDate, *s.NextDueDate)
		assertDecimal(t, "100", s.NextDueAmount)
	})

	t.Run("partially paid", func(t *testing.T) {
		l := Ledger{Installments: cloneInstallments(installments)}
		require.NoError(t, l.Installments[0].MarkPaid(beforeFirstDue))
		s := Summarize(l, beforeFirstDue)
		assert.Equal(t, PaymentPartial, s.Status)
		assertDecimal(t, "100", s.Paid)
		assertDecimal(t, "200", s.Outstanding)
		assert.Equal(t, installments[1].DueDate, *s.NextDueDate)
	})

	t.Run("overdue wins over partial", func(t *testing.T) {
		l := Ledger{Installments: cloneInstallments(installments)}
		require.NoError(t, l.Installments[0].MarkPaid(beforeFirstDue))
		l.Installments[1].Penalty = dec("2")
		s := Summarize(l, installments[1].DueDate.AddDate(0, 0, 3))
		assert.Equal(t, PaymentOverdue, s.Status)
		assert.Equal(t, 1, s.OverdueCount)
		assertDecimal(t, "102", s.OverdueAmount)
		assertDecimal(t, "2", s.PenaltyDue)
	})

	t.Run("fully paid", func(t *testing.T) {
		l := Ledger{Installments: cloneInstallments(installments)}
		for i := range l.Installments {
			require.NoError(t, l.Installments[i].MarkPaid(beforeFirstDue))
		}
		s := Summarize(l, orderDate.AddDate(1, 0, 0))
		assert.Equal(t, PaymentPaid, s.Status)
		assert.True(t, s.Outstanding.IsZero())
		assert.Nil(t, s.NextDueDate)
	})
}

func TestSummarize_MixedOrder(t *testing.T) {
	installments, err := BuildInstallments(dec("600"), 2, orderDate)
	require.NoError(t, err)
	l := Ledger{
		COD:          &COD{Amount: dec("250")},
		Installments: installments,
	}

	s := Summarize(l, orderDate)
	assertDecimal(t, "850", s.Total)
	assert.Equal(t, PaymentPending, s.Status)

	// COD never goes overdue, even long after the order.
	l.Installments[0].Status = StatusPaid
	l.Installments[1].Status = StatusPaid
	s = Summarize(l, orderDate.AddDate(2, 0, 0))
	assert.Equal(t, PaymentPartial, s.Status)
	assertDecimal(t, "250", s.Outstanding)

	l.COD.Collected = true
	s = Summarize(l, orderDate.AddDate(2, 0, 0))
	assert.Equal(t, PaymentPaid, s.Status)
	assert.Equal(t, 3, s.PaidCount)
}

func TestSummarize_FixedDuration(t *testing.T) {
	fd := FixedDurationDue(dec("1000"), 1, orderDate)
	l := Ledger{FixedDuration: &fd}

	assert.Equal(t, PaymentPending, Summarize(l, orderDate).Status)
	assert.Equal(t, PaymentOverdue, Summarize(l, fd.DueDate.AddDate(0, 0, 2)).Status)

	require.NoError(t, l.FixedDuration.MarkPaid(fd.DueDate))
	assert.Equal(t, PaymentPaid, Summarize(l, fd.DueDate.AddDate(0, 0, 2)).Status)
}

func cloneInstallments(in []Installment) []Installment {
	out := make([]Installment, len(in))
	copy(out, in)
	return out
}
