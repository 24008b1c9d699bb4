package bnpl

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the lifecycle of a single payable part. Pending -> Paid
// is the only transition.
type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "Pending"
	StatusPaid    InstallmentStatus = "Paid"
)

// Installment is one scheduled partial payment, embedded in an order.
type Installment struct {
	Number          int               `bson:"installment_number" json:"installment_number"`
	Amount          decimal.Decimal   `bson:"amount" json:"amount"`
	DueDate         time.Time         `bson:"due_date" json:"due_date"`
	Status          InstallmentStatus `bson:"status" json:"status"`
	PaidAt          *time.Time        `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	Penalty         decimal.Decimal   `bson:"penalty" json:"penalty"`
	PaymentIntentID string            `bson:"payment_intent_id,omitempty" json:"payment_intent_id,omitempty"`
}

// AmountDue is what the customer owes today for this installment.
func (i Installment) AmountDue() decimal.Decimal {
	return i.Amount.Add(i.Penalty)
}

func (i Installment) IsPaid() bool {
	return i.Status == StatusPaid
}

func (i *Installment) MarkPaid(at time.Time) error {
	if i.IsPaid() {
		return ErrAlreadyPaid
	}
	i.Status = StatusPaid
	i.PaidAt = &at
	return nil
}

// FixedDuration is the single lump payment of a Fixed Duration plan.
type FixedDuration struct {
	Amount          decimal.Decimal   `bson:"amount_due" json:"amount_due"`
	DueDate         time.Time         `bson:"payment_due_date" json:"payment_due_date"`
	Status          InstallmentStatus `bson:"status" json:"status"`
	PaidAt          *time.Time        `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	Penalty         decimal.Decimal   `bson:"penalty" json:"penalty"`
	PaymentIntentID string            `bson:"payment_intent_id,omitempty" json:"payment_intent_id,omitempty"`
}

func (f FixedDuration) AmountDue() decimal.Decimal {
	return f.Amount.Add(f.Penalty)
}

func (f FixedDuration) IsPaid() bool {
	return f.Status == StatusPaid
}

func (f *FixedDuration) MarkPaid(at time.Time) error {
	if f.IsPaid() {
		return ErrAlreadyPaid
	}
	f.Status = StatusPaid
	f.PaidAt = &at
	return nil
}

// DueDate adds months calendar months to orderDate. Days past the end of the
// target month roll into the next one, as time.AddDate does, so an order on
// January 31st has no due date in February.
func DueDate(orderDate time.Time, months int) time.Time {
	return orderDate.AddDate(0, months, 0)
}

// BuildInstallments splits total into duration monthly installments. Each
// installment is total/duration rounded to cents; the last one absorbs the
// rounding remainder so the amounts always sum to total.
func BuildInstallments(total decimal.Decimal, duration int, orderDate time.Time) ([]Installment, error) {
	if duration < 1 {
		return nil, ErrInvalidTerms
	}
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}

	per := Round(total.Div(decimal.NewFromInt(int64(duration))))
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(duration - 1))))
	if !per.IsPositive() || !last.IsPositive() {
		return nil, ErrScheduleUnderflow
	}

	installments := make([]Installment, duration)
	for i := range installments {
		amount := per
		if i == duration-1 {
			amount = last
		}
		installments[i] = Installment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: DueDate(orderDate, i+1),
			Status:  StatusPending,
			Penalty: decimal.Zero,
		}
	}
	return installments, nil
}

// FixedDurationDue schedules total as a single payment duration months out.
func FixedDurationDue(total decimal.Decimal, duration int, orderDate time.Time) FixedDuration {
	return FixedDuration{
		Amount:  total,
		DueDate: DueDate(orderDate, duration),
		Status:  StatusPending,
		Penalty: decimal.Zero,
	}
}
