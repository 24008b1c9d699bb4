package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"
	"go-bnpl/payments"
	"go-bnpl/realtime"
	"go-bnpl/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PaymentService settles BNPL portions, either through the card gateway or
// by an admin marking them paid.
type PaymentService struct {
	Stores  *repository.Stores
	Gateway payments.Gateway
	// PenaltyRate is the monthly late penalty in percent, as used by the sweeper.
	PenaltyRate decimal.Decimal
	Notifier  Notifier
	Publisher Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

func NewPaymentService(stores *repository.Stores, gateway payments.Gateway, penaltyRate decimal.Decimal, notifier Notifier, publisher Publisher, log *zap.Logger) *PaymentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &PaymentService{
		Stores:      stores,
		Gateway:     gateway,
		PenaltyRate: penaltyRate,
		Notifier:    notifier,
		Publisher:   publisher,
		Log:         log,
		Now:         utcNow,
	}
}

// payable loads the order and checks portion can be paid now. The portion's
// penalty is brought up to date and stored first, so the returned amount due
// never depends on when the sweeper last ran.
func (s *PaymentService) payable(ctx context.Context, actor Actor, orderID primitive.ObjectID, portion bnpl.Portion) (*models.Order, decimal.Decimal, error) {
	order, err := s.Stores.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !actor.Admin && order.UserID != actor.UserID {
		return nil, decimal.Zero, fmt.Errorf("order %s: %w", orderID.Hex(), ErrForbidden)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, decimal.Zero, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}
	if penalty, changed := accruePenalty(order, portion, s.PenaltyRate, s.Now()); changed {
		if err := s.Stores.Orders.SetPortionPenalty(ctx, orderID, portion, penalty); err != nil {
			return nil, decimal.Zero, err
		}
	}

	due, err := order.PortionAmountDue(portion)
	if errors.Is(err, models.ErrNoSuchPortion) {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, decimal.Zero, err
	}
	if portion.Kind == bnpl.PortionInstallment {
		for _, inst := range order.Installments {
			if inst.Number < portion.Number && !inst.IsPaid() {
				return nil, decimal.Zero, fmt.Errorf("installment %d: %w", inst.Number, ErrOutOfOrder)
			}
		}
	}
	return order, due, nil
}

// accruePenalty raises the penalty of an unpaid portion on the loaded order to
// what is owed at now and reports the new value when it changed.
func accruePenalty(order *models.Order, portion bnpl.Portion, rate decimal.Decimal, now time.Time) (decimal.Decimal, bool) {
	switch portion.Kind {
	case bnpl.PortionInstallment:
		if inst, err := order.Installment(portion.Number); err == nil && inst.AccruePenalty(rate, now) {
			return inst.Penalty, true
		}
	case bnpl.PortionFixedDuration:
		if fd := order.FixedDuration; fd != nil && fd.AccruePenalty(rate, now) {
			return fd.Penalty, true
		}
	}
	return decimal.Zero, false
}

func intentMetadata(order *models.Order, portion bnpl.Portion) map[string]string {
	return map[string]string{
		"order_id":  order.ID.Hex(),
		"reference": order.Reference,
		"portion":   string(portion.Kind),
		"number":    strconv.Itoa(portion.Number),
	}
}

// CreateIntent opens a card payment for one BNPL portion and remembers the
// intent on the order. A stored intent is returned again while it can still
// settle the amount due, so client retries do not orphan a paid intent.
func (s *PaymentService) CreateIntent(ctx context.Context, actor Actor, orderID primitive.ObjectID, portion bnpl.Portion) (*payments.Intent, error) {
	order, due, err := s.payable(ctx, actor, orderID, portion)
	if err != nil {
		return nil, err
	}
	if existing := s.reusableIntent(ctx, storedIntent(order, portion), bnpl.MinorUnits(due)); existing != nil {
		return existing, nil
	}

	intent, err := s.Gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:      bnpl.MinorUnits(due),
		CustomerID:  s.customerID(ctx, order.UserID),
		Description: fmt.Sprintf("Order %s %s", order.Reference, portion),
		Metadata:    intentMetadata(order, portion),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Stores.Orders.SetPortionIntent(ctx, orderID, portion, intent.ID); err != nil {
		return nil, err
	}
	return intent, nil
}

// reusableIntent returns the stored intent when it already covers the amount
// due or is still open for exactly that amount. Lookup failures fall back to a new intent.
func (s *PaymentService) reusableIntent(ctx context.Context, id string, amount int64) *payments.Intent {
	if id == "" {
		return nil
	}
	intent, err := s.Gateway.GetIntent(ctx, id)
	if err != nil {
		s.Log.Warn("stored payment intent lookup failed", zap.String("intent_id", id), zap.Error(err))
		return nil
	}
	switch {
	case intent.Succeeded() && intent.Amount >= amount:
		return intent
	case !intent.Succeeded() && intent.Status != payments.StatusCanceled && intent.Amount == amount:
		return intent
	}
	return nil
}

// customerID returns the user's gateway customer, creating it on first use.
// A failure only means the intent is created without a customer.
func (s *PaymentService) customerID(ctx context.Context, userID primitive.ObjectID) string {
	user, err := s.Stores.Users.Get(ctx, userID)
	if err != nil {
		s.Log.Warn("payment customer lookup failed", zap.String("user_id", userID.Hex()), zap.Error(err))
		return ""
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID
	}
	id, err := s.Gateway.CreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		s.Log.Warn("failed to create payment customer", zap.String("user_id", userID.Hex()), zap.Error(err))
		return ""
	}
	if err := s.Stores.Users.SetStripeCustomer(ctx, userID, id); err != nil {
		s.Log.Warn("failed to save payment customer", zap.String("user_id", userID.Hex()), zap.Error(err))
	}
	return id
}

// Confirm verifies with the gateway that the intent for portion succeeded
// and marks the portion Paid. intentID may be empty to use the intent stored
// on the portion; any other intent must carry this portion's metadata.
func (s *PaymentService) Confirm(ctx context.Context, actor Actor, orderID primitive.ObjectID, portion bnpl.Portion, intentID string) (*OrderDetail, error) {
	order, due, err := s.payable(ctx, actor, orderID, portion)
	if err != nil {
		return nil, err
	}
	if intentID == "" {
		intentID = storedIntent(order, portion)
	}
	if intentID == "" {
		return nil, fmt.Errorf("%w: no payment intent for %s", ErrInvalidInput, portion)
	}

	intent, err := s.Gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Metadata["order_id"] != order.ID.Hex() || intent.Metadata["portion"] != string(portion.Kind) ||
		intent.Metadata["number"] != strconv.Itoa(portion.Number) {
		return nil, fmt.Errorf("%w: payment intent does not belong to %s", ErrInvalidInput, portion)
	}
	if !intent.Succeeded() {
		return nil, fmt.Errorf("%w: status %s", ErrPaymentIncomplete, intent.Status)
	}
	if intent.Amount < bnpl.MinorUnits(due) {
		return nil, fmt.Errorf("%w: paid %d of %d", ErrPaymentIncomplete, intent.Amount, bnpl.MinorUnits(due))
	}
	return s.settle(ctx, order, portion, models.ChannelStripe, intent.ID)
}

func storedIntent(order *models.Order, portion bnpl.Portion) string {
	if portion.Kind == bnpl.PortionFixedDuration && order.FixedDuration != nil {
		return order.FixedDuration.PaymentIntentID
	}
	if inst, err := order.Installment(portion.Number); err == nil {
		return inst.PaymentIntentID
	}
	return ""
}

// MarkPaid records an offline payment of portion on behalf of an admin.
func (s *PaymentService) MarkPaid(ctx context.Context, orderID primitive.ObjectID, portion bnpl.Portion) (*OrderDetail, error) {
	order, _, err := s.payable(ctx, Actor{Admin: true}, orderID, portion)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, order, portion, models.ChannelManual, "")
}

// settle takes the order as returned by payable, so the recorded and frozen
// penalty is the one the customer was charged.
func (s *PaymentService) settle(ctx context.Context, order *models.Order, portion bnpl.Portion, channel models.PaymentChannel, ref string) (*OrderDetail, error) {
	now := s.Now()
	amount, penalty := portionAmounts(order, portion)
	if err := s.Stores.Orders.MarkPortionPaid(ctx, order.ID, portion, now); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Kind:        portion.Kind,
		Amount:      amount,
		Penalty:     penalty,
		Channel:     channel,
		ProviderRef: ref,
		CreatedAt:   now,
	}
	if portion.Kind == bnpl.PortionInstallment {
		payment.InstallmentNumber = portion.Number
	}
	if err := s.Stores.Payments.Record(ctx, payment); err != nil {
		s.Log.Error("failed to record payment", zap.String("order_id", order.ID.Hex()), zap.Stringer("portion", portion), zap.Error(err))
	}

	updated, err := refreshPaymentStatus(ctx, s.Stores.Orders, order.ID, now)
	if err != nil {
		return nil, err
	}
	s.Log.Info("portion paid",
		zap.String("order_id", order.ID.Hex()),
		zap.Stringer("portion", portion),
		zap.String("channel", string(channel)),
		zap.String("payment_status", string(updated.PaymentStatus)),
	)

	s.Notifier.NotifyUser(order.UserID, Notification{
		Subject: "Payment Received",
		Body: fmt.Sprintf("We received PKR %s for %s of order %s. Payment status: %s.",
			amount.Add(penalty).StringFixed(2), portion, order.Reference, updated.PaymentStatus),
		Data: map[string]string{"order_id": order.ID.Hex()},
	})
	out := detail(updated, now)
	s.Publisher.Publish(order.UserID, realtime.Event{Type: "order.payment", OrderID: order.ID.Hex(), Payload: out})
	return out, nil
}

func portionAmounts(order *models.Order, portion bnpl.Portion) (amount, penalty decimal.Decimal) {
	if portion.Kind == bnpl.PortionFixedDuration && order.FixedDuration != nil {
		return order.FixedDuration.Amount, order.FixedDuration.Penalty
	}
	if inst, err := order.Installment(portion.Number); err == nil {
		return inst.Amount, inst.Penalty
	}
	return decimal.Zero, decimal.Zero
}

// CreatePaymentIntent opens a free-standing card payment of amount PKR and
// returns the intent whose client secret the mobile app presents.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, customerID string) (*payments.Intent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return s.Gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:     bnpl.MinorUnits(amount),
		CustomerID: customerID,
	})
}
