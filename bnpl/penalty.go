package bnpl

import (
	"time"

	"github.com/shopspring/decimal"
)

const daysPerPenaltyPeriod = 30

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysOverdue counts whole UTC calendar days since the due date. A payment is
// not late on its due date itself.
func DaysOverdue(due, now time.Time) int {
	days := int(startOfDay(now).Sub(startOfDay(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func IsOverdue(due, now time.Time) bool {
	return DaysOverdue(due, now) > 0
}

// MonthsOverdue is the number of started 30-day periods since the due date.
func MonthsOverdue(due, now time.Time) int {
	days := DaysOverdue(due, now)
	if days == 0 {
		return 0
	}
	return (days + daysPerPenaltyPeriod - 1) / daysPerPenaltyPeriod
}

// Penalty charges rate percent of amount for every started month overdue.
func Penalty(amount, ratePercent decimal.Decimal, due, now time.Time) decimal.Decimal {
	months := MonthsOverdue(due, now)
	if months == 0 || !ratePercent.IsPositive() {
		return decimal.Zero
	}
	return Round(amount.Mul(ratePercent).Div(hundred).Mul(decimal.NewFromInt(int64(months))))
}

// AccruePenalty raises the installment's penalty to what is owed at now. Paid
// installments keep their penalty and a penalty never decreases. It reports
// whether the penalty changed.
func (i *Installment) AccruePenalty(ratePercent decimal.Decimal, now time.Time) bool {
	if i.IsPaid() {
		return false
	}
	p := Penalty(i.Amount, ratePercent, i.DueDate, now)
	if !p.GreaterThan(i.Penalty) {
		return false
	}
	i.Penalty = p
	return true
}

func (f *FixedDuration) AccruePenalty(ratePercent decimal.Decimal, now time.Time) bool {
	if f.IsPaid() {
		return false
	}
	p := Penalty(f.Amount, ratePercent, f.DueDate, now)
	if !p.GreaterThan(f.Penalty) {
		return false
	}
	f.Penalty = p
	return true
}
