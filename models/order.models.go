package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-bnpl/bnpl"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidOrderStatus   = errors.New("invalid order status")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrNoSuchPortion        = errors.New("order has no such portion")
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether fulfillment may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus maps a case-insensitive label to an OrderStatus.
func ParseOrderStatus(status string) (OrderStatus, error) {
	for _, s := range []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled,
	} {
		if strings.EqualFold(status, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, status)
}

// PaymentMethod is how an order, or one of its items, is paid.
type PaymentMethod string

const (
	PaymentCOD           PaymentMethod = "COD"
	PaymentBNPL          PaymentMethod = "BNPL"
	PaymentFixedDuration PaymentMethod = "Fixed Duration"
	PaymentMixed         PaymentMethod = "Mixed"
)

// ParsePaymentMethod accepts the labels a checkout request may carry.
func ParsePaymentMethod(method string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cod", "cash", "cash on delivery":
		return PaymentCOD, nil
	case "bnpl":
		return PaymentBNPL, nil
	case "fixed duration", "fixed_duration":
		return PaymentFixedDuration, nil
	case "mixed":
		return PaymentMixed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
}

// OrderItem is a purchased line. PaymentMethod is COD or BNPL.
type OrderItem struct {
	ProductID     primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name          string             `bson:"name" json:"name"`
	UnitPrice     decimal.Decimal    `bson:"unit_price" json:"unit_price"`
	Quantity      int                `bson:"quantity" json:"quantity"`
	PaymentMethod PaymentMethod      `bson:"payment_method" json:"payment_method"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PlanSnapshot freezes the plan terms an order was placed under.
type PlanSnapshot struct {
	ID           primitive.ObjectID `bson:"id" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Type         bnpl.PlanType      `bson:"type" json:"type"`
	Duration     int                `bson:"duration" json:"duration"`
	InterestRate decimal.Decimal    `bson:"interest_rate" json:"interest_rate"`
}

func (p PlanSnapshot) Terms() bnpl.Terms {
	return bnpl.Terms{Type: p.Type, Duration: p.Duration, InterestRate: p.InterestRate}
}

// Order represents a user's order
type Order struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Reference        string              `bson:"reference" json:"reference"`
	UserID           primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Items            []OrderItem         `bson:"items" json:"items"`
	Address          Address             `bson:"address" json:"address"`
	PaymentMethod    PaymentMethod       `bson:"payment_method" json:"payment_method"`
	PaymentStatus    bnpl.PaymentStatus  `bson:"payment_status" json:"payment_status"`
	Status           OrderStatus         `bson:"status" json:"status"`
	Subtotal         decimal.Decimal     `bson:"subtotal" json:"subtotal"`
	CODAmount        decimal.Decimal     `bson:"cod_amount" json:"cod_amount"`
	BNPLAmount       decimal.Decimal     `bson:"bnpl_amount" json:"bnpl_amount"`
	BNPLTotalPayable decimal.Decimal     `bson:"bnpl_total_payable" json:"bnpl_total_payable"`
	GrandTotal       decimal.Decimal     `bson:"grand_total" json:"grand_total"`
	COD              *bnpl.COD           `bson:"cod,omitempty" json:"cod,omitempty"`
	Plan             *PlanSnapshot       `bson:"plan,omitempty" json:"plan,omitempty"`
	Installments     []bnpl.Installment  `bson:"installments,omitempty" json:"installments,omitempty"`
	FixedDuration    *bnpl.FixedDuration `bson:"fixed_duration,omitempty" json:"fixed_duration,omitempty"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updated_at"`
}

func (o *Order) Ledger() bnpl.Ledger {
	return bnpl.Ledger{COD: o.COD, Installments: o.Installments, FixedDuration: o.FixedDuration}
}

func (o *Order) Summary(now time.Time) bnpl.Summary {
	return bnpl.Summarize(o.Ledger(), now)
}

// RefreshPaymentStatus recomputes the stored payment label from the ledger.
// It reports whether the label changed.
func (o *Order) RefreshPaymentStatus(now time.Time) bool {
	status := o.Summary(now).Status
	if status == o.PaymentStatus {
		return false
	}
	o.PaymentStatus = status
	return true
}

func (o *Order) HasBNPL() bool {
	return len(o.Installments) > 0 || o.FixedDuration != nil
}

func (o *Order) Installment(n int) (*bnpl.Installment, error) {
	for i := range o.Installments {
		if o.Installments[i].Number == n {
			return &o.Installments[i], nil
		}
	}
	return nil, fmt.Errorf("%w: installment %d", ErrNoSuchPortion, n)
}

// PortionAmountDue returns amount plus penalty for an unpaid BNPL portion.
func (o *Order) PortionAmountDue(p bnpl.Portion) (decimal.Decimal, error) {
	switch p.Kind {
	case bnpl.PortionInstallment:
		inst, err := o.Installment(p.Number)
		if err != nil {
			return decimal.Zero, err
		}
		if inst.IsPaid() {
			return decimal.Zero, bnpl.ErrAlreadyPaid
		}
		return inst.AmountDue(), nil
	case bnpl.PortionFixedDuration:
		if o.FixedDuration == nil {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrNoSuchPortion, p)
		}
		if o.FixedDuration.IsPaid() {
			return decimal.Zero, bnpl.ErrAlreadyPaid
		}
		return o.FixedDuration.AmountDue(), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrNoSuchPortion, p)
}

// ContainsProduct reports whether productID was bought in this order.
func (o *Order) ContainsProduct(productID primitive.ObjectID) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
