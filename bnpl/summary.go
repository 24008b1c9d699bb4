package bnpl

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the order-level payment label, always derived from the
// order's portions by Summarize.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPartial PaymentStatus = "Partially Paid"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentOverdue PaymentStatus = "Overdue"
)

// PortionKind names one payable part of an order.
type PortionKind string

const (
	PortionCOD           PortionKind = "cod"
	PortionInstallment   PortionKind = "installment"
	PortionFixedDuration PortionKind = "fixed_duration"
)

// Portion addresses a payable part of an order. Number is only meaningful for
// installments.
type Portion struct {
	Kind   PortionKind
	Number int
}

func InstallmentPortion(n int) Portion { return Portion{Kind: PortionInstallment, Number: n} }

func FixedDurationPortion() Portion { return Portion{Kind: PortionFixedDuration} }

func (p Portion) String() string {
	if p.Kind == PortionInstallment {
		return fmt.Sprintf("installment %d", p.Number)
	}
	return string(p.Kind)
}

// COD is the cash-on-delivery part of an order.
type COD struct {
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
	Collected   bool            `bson:"collected" json:"collected"`
	CollectedAt *time.Time      `bson:"collected_at,omitempty" json:"collected_at,omitempty"`
}

// Ledger is every payable portion of one order.
type Ledger struct {
	COD           *COD
	Installments  []Installment
	FixedDuration *FixedDuration
}

// Summary aggregates a ledger at a point in time.
type Summary struct {
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	PenaltyDue    decimal.Decimal `json:"penalty_due"`
	PenaltyPaid   decimal.Decimal `json:"penalty_paid"`
	PaidCount     int             `json:"paid_count"`
	PendingCount  int             `json:"pending_count"`
	OverdueCount  int             `json:"overdue_count"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	NextDueDate   *time.Time      `json:"next_due_date,omitempty"`
	NextDueAmount decimal.Decimal `json:"next_due_amount"`
	Status        PaymentStatus   `json:"status"`
}

type duePortion struct {
	amount  decimal.Decimal
	penalty decimal.Decimal
	due     time.Time
	paid    bool
}

func (s *Summary) add(p duePortion, now time.Time) {
	s.Total = s.Total.Add(p.amount)
	if p.paid {
		s.Paid = s.Paid.Add(p.amount)
		s.PenaltyPaid = s.PenaltyPaid.Add(p.penalty)
		s.PaidCount++
		return
	}

	s.Outstanding = s.Outstanding.Add(p.amount)
	s.PenaltyDue = s.PenaltyDue.Add(p.penalty)
	s.PendingCount++
	if IsOverdue(p.due, now) {
		s.OverdueCount++
		s.OverdueAmount = s.OverdueAmount.Add(p.amount.Add(p.penalty))
	}
	if s.NextDueDate == nil || p.due.Before(*s.NextDueDate) {
		due := p.due
		s.NextDueDate = &due
		s.NextDueAmount = p.amount.Add(p.penalty)
	}
}

// Summarize derives totals and the order-level payment status from the
// ledger. COD portions have no due date and are never overdue.
func Summarize(l Ledger, now time.Time) Summary {
	s := Summary{
		Total:         decimal.Zero,
		Paid:          decimal.Zero,
		Outstanding:   decimal.Zero,
		PenaltyDue:    decimal.Zero,
		PenaltyPaid:   decimal.Zero,
		OverdueAmount: decimal.Zero,
		NextDueAmount: decimal.Zero,
	}

	if l.COD != nil && l.COD.Amount.IsPositive() {
		s.Total = s.Total.Add(l.COD.Amount)
		if l.COD.Collected {
			s.Paid = s.Paid.Add(l.COD.Amount)
			s.PaidCount++
		} else {
			s.Outstanding = s.Outstanding.Add(l.COD.Amount)
			s.PendingCount++
		}
	}
	for _, inst := range l.Installments {
		s.add(duePortion{amount: inst.Amount, penalty: inst.Penalty, due: inst.DueDate, paid: inst.IsPaid()}, now)
	}
	if fd := l.FixedDuration; fd != nil {
		s.add(duePortion{amount: fd.Amount, penalty: fd.Penalty, due: fd.DueDate, paid: fd.IsPaid()}, now)
	}

	switch {
	case !s.Outstanding.IsPositive():
		s.Status = PaymentPaid
	case s.OverdueCount > 0:
		s.Status = PaymentOverdue
	case s.Paid.IsPositive():
		s.Status = PaymentPartial
	default:
		s.Status = PaymentPending
	}
	return s
}
