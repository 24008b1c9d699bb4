// Package bnpl holds the Buy Now Pay Later arithmetic shared by checkout,
// order detail, schedules and reports: quotes, installment schedules, due
// dates, penalties and order-level payment status.
package bnpl

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTerms      = errors.New("invalid plan terms")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrScheduleUnderflow = errors.New("amount too small to split into installments")
	ErrAlreadyPaid       = errors.New("already paid")
)

// MaxDuration is the longest plan, in months, the store will finance.
const MaxDuration = 60

var hundred = decimal.NewFromInt(100)

// PlanType distinguishes multi-installment plans from single lump payments.
type PlanType string

const (
	PlanInstallment   PlanType = "Installment"
	PlanFixedDuration PlanType = "Fixed Duration"
)

func (t PlanType) Valid() bool {
	return t == PlanInstallment || t == PlanFixedDuration
}

// Terms are the parts of a plan that drive the arithmetic.
type Terms struct {
	Type         PlanType        `json:"plan_type"`
	Duration     int             `json:"duration"`
	InterestRate decimal.Decimal `json:"interest_rate"`
}

func (t Terms) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown plan type %q", ErrInvalidTerms, t.Type)
	}
	if t.Duration < 1 || t.Duration > MaxDuration {
		return fmt.Errorf("%w: duration must be between 1 and %d months", ErrInvalidTerms, MaxDuration)
	}
	if t.InterestRate.IsNegative() || t.InterestRate.GreaterThan(hundred) {
		return fmt.Errorf("%w: interest rate must be between 0 and 100", ErrInvalidTerms)
	}
	return nil
}

// Round rounds a money amount half away from zero to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinorUnits converts an amount to the smallest currency unit (paisa for PKR).
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// TotalPayable returns base × (1 + rate/100) rounded to cents.
func TotalPayable(base, interestRate decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(interestRate.Div(hundred))
	return Round(base.Mul(factor))
}

// Quote is the priced outcome of applying a plan to an amount.
type Quote struct {
	Terms
	Base          decimal.Decimal `json:"base"`
	Interest      decimal.Decimal `json:"interest"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
	Installments  []Installment   `json:"installments,omitempty"`
	FixedDuration *FixedDuration  `json:"fixed_duration,omitempty"`
}

// NewQuote prices base under terms as of orderDate.
func NewQuote(base decimal.Decimal, terms Terms, orderDate time.Time) (Quote, error) {
	if err := terms.Validate(); err != nil {
		return Quote{}, err
	}
	if !base.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}

	base = Round(base)
	total := TotalPayable(base, terms.InterestRate)
	q := Quote{
		Terms:        terms,
		Base:         base,
		Interest:     total.Sub(base),
		TotalPayable: total,
	}

	switch terms.Type {
	case PlanInstallment:
		installments, err := BuildInstallments(total, terms.Duration, orderDate)
		if err != nil {
			return Quote{}, err
		}
		q.Installments = installments
	case PlanFixedDuration:
		fd := FixedDurationDue(total, terms.Duration, orderDate)
		q.FixedDuration = &fd
	}
	return q, nil
}
