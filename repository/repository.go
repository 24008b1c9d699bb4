// Package repository persists the shop's documents. Every store has a MongoDB
// implementation and an in-memory one used for local runs and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrConflict          = errors.New("document changed concurrently")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// OrderFilter narrows admin order listings. Zero values match everything.
type OrderFilter struct {
	UserID        primitive.ObjectID
	Status        models.OrderStatus
	PaymentMethod models.PaymentMethod
	PaymentStatus bnpl.PaymentStatus
	// OpenBNPL keeps non-cancelled orders that still owe a BNPL portion.
	OpenBNPL bool
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)

	// UpdateStatus moves fulfillment from one status to another and fails
	// with ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, at time.Time) error
	SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status bnpl.PaymentStatus, at time.Time) error
	// MarkCODCollected fails with bnpl.ErrAlreadyPaid when already collected.
	MarkCODCollected(ctx context.Context, id primitive.ObjectID, at time.Time) error

	// MarkPortionPaid flips a Pending BNPL portion to Paid. It fails with
	// bnpl.ErrAlreadyPaid when the portion is already Paid, so concurrent
	// callers succeed at most once.
	MarkPortionPaid(ctx context.Context, id primitive.ObjectID, portion bnpl.Portion, at time.Time) error
	// SetPortionPenalty only touches Pending portions.
	SetPortionPenalty(ctx context.Context, id primitive.ObjectID, portion bnpl.Portion, penalty decimal.Decimal) error
	SetPortionIntent(ctx context.Context, id primitive.ObjectID, portion bnpl.Portion, intentID string) error
}

type PlanStore interface {
	Create(ctx context.Context, plan *models.BNPLPlan) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.BNPLPlan, error)
	List(ctx context.Context, publishedOnly bool) ([]models.BNPLPlan, error)
	Update(ctx context.Context, plan *models.BNPLPlan) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ReviewStore interface {
	// Create fails with ErrDuplicate for a second review of the same
	// product from the same order by the same user.
	Create(ctx context.Context, review *models.Review) error
	ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	SetPushToken(ctx context.Context, id primitive.ObjectID, token string) error
	SetStripeCustomer(ctx context.Context, id primitive.ObjectID, customerID string) error
}

type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// AdjustStock adds delta to the stock and fails with
	// ErrInsufficientStock when that would go negative.
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error
}

type CartStore interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Clear(ctx context.Context, userID primitive.ObjectID) error
}

type PaymentStore interface {
	Record(ctx context.Context, payment *models.Payment) error
	ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.Payment, error)
}

// Stores bundles every store the service needs.
type Stores struct {
	Orders   OrderStore
	Plans    PlanStore
	Reviews  ReviewStore
	Users    UserStore
	Products ProductStore
	Carts    CartStore
	Payments PaymentStore
}
