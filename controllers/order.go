package controllers

import (
	"net/http"

	"go-bnpl/bnpl"
	"go-bnpl/models"
	"go-bnpl/realtime"
	"go-bnpl/repository"
	"go-bnpl/services"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OrderController handles order-related requests
type OrderController struct {
	Orders *services.OrderService
	Hub    *realtime.Hub
	Log    *zap.Logger
}

// NewOrderController creates a new OrderController
func NewOrderController(orders *services.OrderService, hub *realtime.Hub, log *zap.Logger) *OrderController {
	return &OrderController{Orders: orders, Hub: hub, Log: log}
}

// Checkout places an order from the selected cart items
func (oc *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req services.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.Checkout(ctx, actor.UserID, req)
	if err != nil {
		writeError(w, oc.Log, err, "Error creating order")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrders lists the caller's orders
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	orders, err := oc.Orders.ListForUser(ctx, actor.UserID)
	if err != nil {
		writeError(w, oc.Log, err, "Error fetching orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder returns one order with its payment summary
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.Get(ctx, actor, id)
	if err != nil {
		writeError(w, oc.Log, err, "Error fetching order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CancelOrder cancels a pending order
func (oc *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.Cancel(ctx, actor, id)
	if err != nil {
		writeError(w, oc.Log, err, "Error cancelling order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Quote previews the BNPL schedule of an amount under a plan
func (oc *OrderController) Quote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string          `json:"plan_id"`
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	quote, err := oc.Orders.Quote(ctx, req.PlanID, req.Amount)
	if err != nil {
		writeError(w, oc.Log, err, "Error quoting plan")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// Subscribe streams the caller's order events over a websocket
func (oc *OrderController) Subscribe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	oc.Hub.ServeWS(w, r, actor.UserID)
}

func parseOrderFilter(r *http.Request) (repository.OrderFilter, error) {
	var filter repository.OrderFilter
	q := r.URL.Query()
	if v := q.Get("user_id"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return filter, services.ErrInvalidInput
		}
		filter.UserID = id
	}
	if v := q.Get("status"); v != "" {
		status, err := models.ParseOrderStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if v := q.Get("payment_method"); v != "" {
		method, err := models.ParsePaymentMethod(v)
		if err != nil {
			return filter, err
		}
		filter.PaymentMethod = method
	}
	if v := q.Get("payment_status"); v != "" {
		switch status := bnpl.PaymentStatus(v); status {
		case bnpl.PaymentPending, bnpl.PaymentPartial, bnpl.PaymentPaid, bnpl.PaymentOverdue:
			filter.PaymentStatus = status
		default:
			return filter, services.ErrInvalidInput
		}
	}
	return filter, nil
}

// ListOrders lists every order, optionally filtered (Admin only)
func (oc *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r)
	if err != nil {
		http.Error(w, "Invalid filter: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	orders, err := oc.Orders.ListAll(ctx, filter)
	if err != nil {
		writeError(w, oc.Log, err, "Error fetching orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus moves an order through fulfillment (Admin only)
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.UpdateStatus(ctx, id, status)
	if err != nil {
		writeError(w, oc.Log, err, "Error updating order status")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CollectCOD records the cash collected on delivery (Admin only)
func (oc *OrderController) CollectCOD(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.CollectCOD(ctx, id)
	if err != nil {
		writeError(w, oc.Log, err, "Error recording COD collection")
		return
	}
	writeJSON(w, http.StatusOK, order)
}
