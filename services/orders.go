// Package services implements the shop's use cases on top of the
// repository stores: checkout, BNPL payments, fulfillment, plans, reviews,
// reports and the overdue sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"
	"go-bnpl/realtime"
	"go-bnpl/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Actor is the authenticated caller of a service method.
type Actor struct {
	UserID primitive.ObjectID
	Admin  bool
}

// Publisher pushes order changes to connected clients.
type Publisher interface {
	Publish(userID primitive.ObjectID, ev realtime.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(primitive.ObjectID, realtime.Event) {}

func utcNow() time.Time { return time.Now().UTC() }

// OrderDetail is an order with its payment summary evaluated at read time.
type OrderDetail struct {
	Order   *models.Order `json:"order"`
	Summary bnpl.Summary  `json:"summary"`
	// Payments is only loaded for a single order.
	Payments []models.Payment `json:"payments,omitempty"`
}

func detail(order *models.Order, now time.Time) *OrderDetail {
	order.RefreshPaymentStatus(now)
	return &OrderDetail{Order: order, Summary: order.Summary(now)}
}

type OrderService struct {
	Stores    *repository.Stores
	Notifier  Notifier
	Publisher Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

func NewOrderService(stores *repository.Stores, notifier Notifier, publisher Publisher, log *zap.Logger) *OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &OrderService{Stores: stores, Notifier: notifier, Publisher: publisher, Log: log, Now: utcNow}
}

// CheckoutLine selects one cart item and how it is paid (COD or BNPL).
type CheckoutLine struct {
	ProductID     primitive.ObjectID `json:"product_id"`
	PaymentMethod string             `json:"payment_method"`
}

type CheckoutRequest struct {
	Items   []CheckoutLine  `json:"items"`
	PlanID  string          `json:"plan_id,omitempty"`
	Address *models.Address `json:"address,omitempty"`
}

// Quote prices amount under a published plan without creating anything.
func (s *OrderService) Quote(ctx context.Context, planID string, amount decimal.Decimal) (*bnpl.Quote, error) {
	plan, err := s.publishedPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	q, err := bnpl.NewQuote(amount, plan.Terms(), s.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &q, nil
}

func (s *OrderService) publishedPlan(ctx context.Context, planID string) (*models.BNPLPlan, error) {
	id, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		return nil, fmt.Errorf("%w: plan id %q", ErrInvalidInput, planID)
	}
	plan, err := s.Stores.Plans.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrPlanUnavailable)
	}
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanPublished {
		return nil, fmt.Errorf("plan %s: %w", plan.PlanName, ErrPlanUnavailable)
	}
	return plan, nil
}

func newReference(now time.Time) string {
	return now.Format("20060102150405") + "-" + strings.ToUpper(uuid.NewString()[:6])
}

// Checkout turns the selected cart items into an order. Stock is reserved
// before the order is stored and released again if storing fails.
func (s *OrderService) Checkout(ctx context.Context, userID primitive.ObjectID, req CheckoutRequest) (*OrderDetail, error) {
	user, err := s.Stores.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart, err := s.Stores.Carts.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && len(cart.Items) == 0) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no cart items selected", ErrInvalidInput)
	}

	quantities := make(map[primitive.ObjectID]int, len(cart.Items))
	for _, item := range cart.Items {
		quantities[item.ProductID] += item.Quantity
	}

	now := s.Now()
	order := &models.Order{
		UserID:    userID,
		Address:   user.Address,
		Status:    models.OrderStatusPending,
		Reference: newReference(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Address != nil {
		order.Address = *req.Address
	}

	codAmount, bnplAmount := decimal.Zero, decimal.Zero
	seen := make(map[primitive.ObjectID]bool, len(req.Items))
	for _, line := range req.Items {
		qty, ok := quantities[line.ProductID]
		if !ok || qty <= 0 {
			return nil, fmt.Errorf("%w: product %s is not in the cart", ErrInvalidInput, line.ProductID.Hex())
		}
		if seen[line.ProductID] {
			return nil, fmt.Errorf("%w: product %s selected twice", ErrInvalidInput, line.ProductID.Hex())
		}
		seen[line.ProductID] = true

		method, err := models.ParsePaymentMethod(line.PaymentMethod)
		if err != nil || (method != models.PaymentCOD && method != models.PaymentBNPL) {
			return nil, fmt.Errorf("%w: item payment method must be COD or BNPL", ErrInvalidInput)
		}
		product, err := s.Stores.Products.Get(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product.Stock < qty {
			return nil, fmt.Errorf("%s: %w", product.Name, ErrOutOfStock)
		}
		if method == models.PaymentBNPL && !product.BNPLEligible {
			return nil, fmt.Errorf("%w: %s cannot be bought with BNPL", ErrInvalidInput, product.Name)
		}

		item := models.OrderItem{
			ProductID:     product.ID,
			Name:          product.Name,
			UnitPrice:     product.Price,
			Quantity:      qty,
			PaymentMethod: method,
		}
		order.Items = append(order.Items, item)
		if method == models.PaymentBNPL {
			bnplAmount = bnplAmount.Add(item.LineTotal())
		} else {
			codAmount = codAmount.Add(item.LineTotal())
		}
	}

	hasBNPL := bnplAmount.IsPositive()
	if !hasBNPL && req.PlanID != "" {
		return nil, fmt.Errorf("%w: a plan only applies to BNPL items", ErrInvalidInput)
	}
	if hasBNPL && req.PlanID == "" {
		return nil, fmt.Errorf("%w: BNPL items need a plan", ErrInvalidInput)
	}

	order.CODAmount = bnpl.Round(codAmount)
	order.BNPLAmount = bnpl.Round(bnplAmount)
	order.BNPLTotalPayable = decimal.Zero
	order.Subtotal = order.CODAmount.Add(order.BNPLAmount)
	if codAmount.IsPositive() {
		order.COD = &bnpl.COD{Amount: order.CODAmount}
	}

	if hasBNPL {
		plan, err := s.publishedPlan(ctx, req.PlanID)
		if err != nil {
			return nil, err
		}
		quote, err := bnpl.NewQuote(order.BNPLAmount, plan.Terms(), now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		snapshot := plan.Snapshot()
		order.Plan = &snapshot
		order.BNPLTotalPayable = quote.TotalPayable
		order.Installments = quote.Installments
		order.FixedDuration = quote.FixedDuration
	}
	order.GrandTotal = order.CODAmount.Add(order.BNPLTotalPayable)
	order.PaymentMethod = orderPaymentMethod(order)
	order.RefreshPaymentStatus(now)

	reserved, err := s.reserveStock(ctx, order.Items)
	if err != nil {
		return nil, err
	}
	if err := s.Stores.Orders.Create(ctx, order); err != nil {
		s.releaseStock(ctx, reserved, order.Reference)
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.removeFromCart(ctx, cart, order)
	s.Notifier.NotifyUser(userID, orderPlacedNotification(order))
	s.publish(order, "order.created")
	s.Log.Info("order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("reference", order.Reference),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("grand_total", order.GrandTotal.StringFixed(2)),
	)
	return detail(order, now), nil
}

func orderPaymentMethod(o *models.Order) models.PaymentMethod {
	switch {
	case o.COD != nil && o.HasBNPL():
		return models.PaymentMixed
	case o.FixedDuration != nil:
		return models.PaymentFixedDuration
	case len(o.Installments) > 0:
		return models.PaymentBNPL
	default:
		return models.PaymentCOD
	}
}

func (s *OrderService) reserveStock(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error) {
	reserved := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if err := s.Stores.Products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			s.releaseStock(ctx, reserved, "")
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, fmt.Errorf("%s: %w", item.Name, ErrOutOfStock)
			}
			return nil, err
		}
		reserved = append(reserved, item)
	}
	return reserved, nil
}

func (s *OrderService) releaseStock(ctx context.Context, items []models.OrderItem, reference string) {
	for _, item := range items {
		if err := s.Stores.Products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.Log.Error("failed to restore stock",
				zap.String("product_id", item.ProductID.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.String("reference", reference),
				zap.Error(err),
			)
		}
	}
}

// removeFromCart drops the purchased products from the cart. Failures are
// logged only; the order already exists.
func (s *OrderService) removeFromCart(ctx context.Context, cart *models.Cart, order *models.Order) {
	for _, item := range order.Items {
		cart.Remove(item.ProductID)
	}
	var err error
	if len(cart.Items) == 0 {
		err = s.Stores.Carts.Clear(ctx, order.UserID)
	} else {
		cart.UpdatedAt = order.CreatedAt
		err = s.Stores.Carts.Save(ctx, cart)
	}
	if err != nil {
		s.Log.Warn("failed to clear cart after checkout",
			zap.String("order_id", order.ID.Hex()),
			zap.String("user_id", order.UserID.Hex()),
			zap.Error(err),
		)
	}
}

func (s *OrderService) publish(order *models.Order, kind string) {
	s.Publisher.Publish(order.UserID, realtime.Event{
		Type:    kind,
		OrderID: order.ID.Hex(),
		Payload: detail(order, s.Now()),
	})
}

func (s *OrderService) load(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Order, error) {
	order, err := s.Stores.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && order.UserID != actor.UserID {
		return nil, fmt.Errorf("order %s: %w", id.Hex(), ErrForbidden)
	}
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*OrderDetail, error) {
	order, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	d := detail(order, s.Now())
	if d.Payments, err = s.Stores.Payments.ListByOrder(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *OrderService) list(ctx context.Context, filter repository.OrderFilter) ([]OrderDetail, error) {
	orders, err := s.Stores.Orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	details := make([]OrderDetail, 0, len(orders))
	for i := range orders {
		details = append(details, *detail(&orders[i], now))
	}
	return details, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]OrderDetail, error) {
	return s.list(ctx, repository.OrderFilter{UserID: userID})
}

func (s *OrderService) ListAll(ctx context.Context, filter repository.OrderFilter) ([]OrderDetail, error) {
	return s.list(ctx, filter)
}

// Cancel lets a customer cancel their own Pending order. Admins may cancel
// any order the fulfillment rules allow.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, id primitive.ObjectID) (*OrderDetail, error) {
	order, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidTransition)
	}
	return s.transition(ctx, order, models.OrderStatusCancelled)
}

// UpdateStatus moves an order along the fulfillment flow on behalf of an admin.
func (s *OrderService) UpdateStatus(ctx context.Context, id primitive.ObjectID, to models.OrderStatus) (*OrderDetail, error) {
	order, err := s.Stores.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, to)
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, to models.OrderStatus) (*OrderDetail, error) {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := s.Now()
	if err := s.Stores.Orders.UpdateStatus(ctx, order.ID, from, to, now); err != nil {
		return nil, err
	}
	order.Status = to
	order.UpdatedAt = now
	if to == models.OrderStatusCancelled {
		s.releaseStock(ctx, order.Items, order.Reference)
	}

	s.Notifier.NotifyUser(order.UserID, Notification{
		Subject: fmt.Sprintf("Order %s is %s", order.Reference, to),
		Body:    fmt.Sprintf("Your order %s is now %s.", order.Reference, to),
		Data:    map[string]string{"order_id": order.ID.Hex(), "status": string(to)},
	})
	s.publish(order, "order.status")
	s.Log.Info("order status changed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return detail(order, now), nil
}

// CollectCOD records the cash-on-delivery portion as received.
func (s *OrderService) CollectCOD(ctx context.Context, id primitive.ObjectID) (*OrderDetail, error) {
	order, err := s.Stores.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.COD == nil {
		return nil, fmt.Errorf("%w: order has no cash on delivery portion", ErrInvalidInput)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}

	now := s.Now()
	if err := s.Stores.Orders.MarkCODCollected(ctx, id, now); err != nil {
		return nil, err
	}
	payment := &models.Payment{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Kind:      bnpl.PortionCOD,
		Amount:    order.COD.Amount,
		Penalty:   decimal.Zero,
		Channel:   models.ChannelCash,
		CreatedAt: now,
	}
	if err := s.Stores.Payments.Record(ctx, payment); err != nil {
		s.Log.Error("failed to record cod payment", zap.String("order_id", id.Hex()), zap.Error(err))
	}

	order, err = refreshPaymentStatus(ctx, s.Stores.Orders, id, now)
	if err != nil {
		return nil, err
	}
	s.publish(order, "order.payment")
	return detail(order, now), nil
}

// refreshPaymentStatus reloads the order and persists its derived payment
// status when it changed.
func refreshPaymentStatus(ctx context.Context, orders repository.OrderStore, id primitive.ObjectID, now time.Time) (*models.Order, error) {
	order, err := orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.RefreshPaymentStatus(now) {
		if err := orders.SetPaymentStatus(ctx, id, order.PaymentStatus, now); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func orderPlacedNotification(o *models.Order) Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your purchase! Your order %s has been placed.\n\n", o.Reference)
	fmt.Fprintf(&b, "Total: PKR %s\nPayment method: %s\n", o.GrandTotal.StringFixed(2), o.PaymentMethod)
	for _, inst := range o.Installments {
		fmt.Fprintf(&b, "Installment %d: PKR %s due %s\n", inst.Number, inst.Amount.StringFixed(2), inst.DueDate.Format("2006-01-02"))
	}
	if fd := o.FixedDuration; fd != nil {
		fmt.Fprintf(&b, "Payment of PKR %s due %s\n", fd.Amount.StringFixed(2), fd.DueDate.Format("2006-01-02"))
	}
	return Notification{
		Subject: "Order Confirmation",
		Body:    b.String(),
		Data:    map[string]string{"order_id": o.ID.Hex()},
	}
}
