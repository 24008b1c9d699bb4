package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"go-bnpl/bnpl"
	"go-bnpl/services"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentController handles card and manual payments of BNPL portions
type PaymentController struct {
	Payments *services.PaymentService
	Log      *zap.Logger
}

func NewPaymentController(payments *services.PaymentService, log *zap.Logger) *PaymentController {
	return &PaymentController{Payments: payments, Log: log}
}

func installmentVar(w http.ResponseWriter, r *http.Request) (bnpl.Portion, bool) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n < 1 {
		http.Error(w, "Invalid installment number", http.StatusBadRequest)
		return bnpl.Portion{}, false
	}
	return bnpl.InstallmentPortion(n), true
}

func (pc *PaymentController) createIntent(w http.ResponseWriter, r *http.Request, portion bnpl.Portion) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	intent, err := pc.Payments.CreateIntent(ctx, actor, orderID, portion)
	if err != nil {
		writeError(w, pc.Log, err, "Error creating payment intent")
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (pc *PaymentController) confirm(w http.ResponseWriter, r *http.Request, portion bnpl.Portion) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	// The body is optional; without it the intent stored on the portion is used.
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := pc.Payments.Confirm(ctx, actor, orderID, portion, req.PaymentIntentID)
	if err != nil {
		writeError(w, pc.Log, err, "Error confirming payment")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (pc *PaymentController) markPaid(w http.ResponseWriter, r *http.Request, portion bnpl.Portion) {
	orderID, ok := objectIDVar(w, r, "id", "order")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := pc.Payments.MarkPaid(ctx, orderID, portion)
	if err != nil {
		writeError(w, pc.Log, err, "Error marking payment")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CreateInstallmentIntent opens a card payment for installment n
func (pc *PaymentController) CreateInstallmentIntent(w http.ResponseWriter, r *http.Request) {
	if portion, ok := installmentVar(w, r); ok {
		pc.createIntent(w, r, portion)
	}
}

// ConfirmInstallment marks installment n paid once its card payment succeeded
func (pc *PaymentController) ConfirmInstallment(w http.ResponseWriter, r *http.Request) {
	if portion, ok := installmentVar(w, r); ok {
		pc.confirm(w, r, portion)
	}
}

func (pc *PaymentController) CreateFixedDurationIntent(w http.ResponseWriter, r *http.Request) {
	pc.createIntent(w, r, bnpl.FixedDurationPortion())
}

func (pc *PaymentController) ConfirmFixedDuration(w http.ResponseWriter, r *http.Request) {
	pc.confirm(w, r, bnpl.FixedDurationPortion())
}

// MarkInstallmentPaid records an offline payment of installment n (Admin only)
func (pc *PaymentController) MarkInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	if portion, ok := installmentVar(w, r); ok {
		pc.markPaid(w, r, portion)
	}
}

// MarkFixedDurationPaid records an offline payment of the lump sum (Admin only)
func (pc *PaymentController) MarkFixedDurationPaid(w http.ResponseWriter, r *http.Request) {
	pc.markPaid(w, r, bnpl.FixedDurationPortion())
}

// CreatePaymentIntent opens a free-standing card payment in PKR and answers
// with the client secret for the mobile payment sheet.
func (pc *PaymentController) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount     decimal.Decimal `json:"amount"`
		CustomerID string          `json:"customerId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	intent, err := pc.Payments.CreatePaymentIntent(ctx, req.Amount, req.CustomerID)
	if err != nil {
		writeError(w, pc.Log, err, "Error creating payment intent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"clientSecret": intent.ClientSecret})
}

func decodeOptional(r *http.Request, v interface{}) error {
	err := jsonDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
