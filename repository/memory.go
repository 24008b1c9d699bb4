package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemoryStores returns process-local stores. Data is lost on restart.
func NewMemoryStores() *Stores {
	return &Stores{
		Orders:   NewMemoryOrderStore(),
		Plans:    NewMemoryPlanStore(),
		Reviews:  NewMemoryReviewStore(),
		Users:    NewMemoryUserStore(),
		Products: NewMemoryProductStore(),
		Carts:    NewMemoryCartStore(),
		Payments: NewMemoryPaymentStore(),
	}
}

type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[primitive.ObjectID]*models.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[primitive.ObjectID]*models.Order)}
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.Installments = append([]bnpl.Installment(nil), o.Installments...)
	if o.COD != nil {
		cod := *o.COD
		c.COD = &cod
	}
	if o.Plan != nil {
		plan := *o.Plan
		c.Plan = &plan
	}
	if o.FixedDuration != nil {
		fd := *o.FixedDuration
		c.FixedDuration = &fd
	}
	return &c
}

func (s *MemoryOrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s: %w", order.ID.Hex(), ErrDuplicate)
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id.Hex(), ErrNotFound)
	}
	return cloneOrder(order), nil
}

func hasOpenBNPL(o *models.Order) bool {
	if o.Status == models.OrderStatusCancelled {
		return false
	}
	for _, inst := range o.Installments {
		if !inst.IsPaid() {
			return true
		}
	}
	return o.FixedDuration != nil && !o.FixedDuration.IsPaid()
}

func (f OrderFilter) matches(o *models.Order) bool {
	if !f.UserID.IsZero() && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.OpenBNPL && !hasOpenBNPL(o) {
		return false
	}
	return true
}

func (s *MemoryOrderStore) List(_ context.Context, filter OrderFilter) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]models.Order, 0)
	for _, o := range s.orders {
		if filter.matches(o) {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *MemoryOrderStore) modify(id primitive.ObjectID, fn func(o *models.Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id.Hex(), ErrNotFound)
	}
	updated := cloneOrder(order)
	if err := fn(updated); err != nil {
		return err
	}
	s.orders[id] = updated
	return nil
}

func (s *MemoryOrderStore) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to models.OrderStatus, at time.Time) error {
	return s.modify(id, func(o *models.Order) error {
		if o.Status != from {
			return fmt.Errorf("order %s is %s, not %s: %w", id.Hex(), o.Status, from, ErrConflict)
		}
		o.Status = to
		o.UpdatedAt = at
		return nil
	})
}

func (s *MemoryOrderStore) SetPaymentStatus(_ context.Context, id primitive.ObjectID, status bnpl.PaymentStatus, at time.Time) error {
	return s.modify(id, func(o *models.Order) error {
		o.PaymentStatus = status
		o.UpdatedAt = at
		return nil
	})
}

func (s *MemoryOrderStore) MarkCODCollected(_ context.Context, id primitive.ObjectID, at time.Time) error {
	return s.modify(id, func(o *models.Order) error {
		if o.COD == nil {
			return fmt.Errorf("%w: cod", models.ErrNoSuchPortion)
		}
		if o.COD.Collected {
			return bnpl.ErrAlreadyPaid
		}
		o.COD.Collected = true
		o.COD.CollectedAt = &at
		o.UpdatedAt = at
		return nil
	})
}

// withPortion runs fn on the installment or fixed-duration portion of o.
func withPortion(o *models.Order, p bnpl.Portion, inst func(*bnpl.Installment) error, fixed func(*bnpl.FixedDuration) error) error {
	switch p.Kind {
	case bnpl.PortionInstallment:
		i, err := o.Installment(p.Number)
		if err != nil {
			return err
		}
		return inst(i)
	case bnpl.PortionFixedDuration:
		if o.FixedDuration == nil {
			return fmt.Errorf("%w: %s", models.ErrNoSuchPortion, p)
		}
		return fixed(o.FixedDuration)
	}
	return fmt.Errorf("%w: %s", models.ErrNoSuchPortion, p)
}

func (s *MemoryOrderStore) MarkPortionPaid(_ context.Context, id primitive.ObjectID, portion bnpl.Portion, at time.Time) error {
	return s.modify(id, func(o *models.Order) error {
		o.UpdatedAt = at
		return withPortion(o, portion,
			func(i *bnpl.Installment) error { return i.MarkPaid(at) },
			func(f *bnpl.FixedDuration) error { return f.MarkPaid(at) },
		)
	})
}

func (s *MemoryOrderStore) SetPortionPenalty(_ context.Context, id primitive.ObjectID, portion bnpl.Portion, penalty decimal.Decimal) error {
	return s.modify(id, func(o *models.Order) error {
		return withPortion(o, portion,
			func(i *bnpl.Installment) error {
				if i.IsPaid() {
					return bnpl.ErrAlreadyPaid
				}
				i.Penalty = penalty
				return nil
			},
			func(f *bnpl.FixedDuration) error {
				if f.IsPaid() {
					return bnpl.ErrAlreadyPaid
				}
				f.Penalty = penalty
				return nil
			},
		)
	})
}

func (s *MemoryOrderStore) SetPortionIntent(_ context.Context, id primitive.ObjectID, portion bnpl.Portion, intentID string) error {
	return s.modify(id, func(o *models.Order) error {
		return withPortion(o, portion,
			func(i *bnpl.Installment) error {
				if i.IsPaid() {
					return bnpl.ErrAlreadyPaid
				}
				i.PaymentIntentID = intentID
				return nil
			},
			func(f *bnpl.FixedDuration) error {
				if f.IsPaid() {
					return bnpl.ErrAlreadyPaid
				}
				f.PaymentIntentID = intentID
				return nil
			},
		)
	})
}

type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[primitive.ObjectID]models.BNPLPlan
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[primitive.ObjectID]models.BNPLPlan)}
}

func (s *MemoryPlanStore) Create(_ context.Context, plan *models.BNPLPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	s.plans[plan.ID] = *plan
	return nil
}

func (s *MemoryPlanStore) Get(_ context.Context, id primitive.ObjectID) (*models.BNPLPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id.Hex(), ErrNotFound)
	}
	return &plan, nil
}

func (s *MemoryPlanStore) List(_ context.Context, publishedOnly bool) ([]models.BNPLPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]models.BNPLPlan, 0, len(s.plans))
	for _, p := range s.plans {
		if publishedOnly && p.Status != models.PlanPublished {
			continue
		}
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Duration < plans[j].Duration })
	return plans, nil
}

func (s *MemoryPlanStore) Update(_ context.Context, plan *models.BNPLPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; !ok {
		return fmt.Errorf("plan %s: %w", plan.ID.Hex(), ErrNotFound)
	}
	s.plans[plan.ID] = *plan
	return nil
}

func (s *MemoryPlanStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return fmt.Errorf("plan %s: %w", id.Hex(), ErrNotFound)
	}
	delete(s.plans, id)
	return nil
}

type MemoryReviewStore struct {
	mu      sync.RWMutex
	reviews []models.Review
}

func NewMemoryReviewStore() *MemoryReviewStore {
	return &MemoryReviewStore{}
}

func (s *MemoryReviewStore) Create(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.UserID == review.UserID && r.ProductID == review.ProductID && r.OrderID == review.OrderID {
			return fmt.Errorf("review: %w", ErrDuplicate)
		}
	}
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	s.reviews = append(s.reviews, *review)
	return nil
}

func (s *MemoryReviewStore) ListByProduct(_ context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviews := make([]models.Review, 0)
	for _, r := range s.reviews {
		if r.ProductID == productID {
			reviews = append(reviews, r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].Timestamp.After(reviews[j].Timestamp) })
	return reviews, nil
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	return &user, nil
}

func (s *MemoryUserStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user: %w", ErrNotFound)
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *MemoryUserStore) GetByVerificationToken(_ context.Context, token string) (*models.User, error) {
	return s.find(func(u models.User) bool { return token != "" && u.VerificationToken == token })
}

func (s *MemoryUserStore) update(id primitive.ObjectID, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	fn(&user)
	s.users[id] = user
	return nil
}

func (s *MemoryUserStore) MarkVerified(_ context.Context, id primitive.ObjectID) error {
	return s.update(id, func(u *models.User) {
		u.IsVerified = true
		u.VerificationToken = ""
	})
}

func (s *MemoryUserStore) SetPushToken(_ context.Context, id primitive.ObjectID, token string) error {
	return s.update(id, func(u *models.User) { u.ExpoPushToken = token })
}

func (s *MemoryUserStore) SetStripeCustomer(_ context.Context, id primitive.ObjectID, customerID string) error {
	return s.update(id, func(u *models.User) { u.StripeCustomerID = customerID })
}

type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]models.Product
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[primitive.ObjectID]models.Product)}
}

func (s *MemoryProductStore) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryProductStore) Get(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id.Hex(), ErrNotFound)
	}
	return &product, nil
}

func (s *MemoryProductStore) List(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *MemoryProductStore) Update(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return fmt.Errorf("product %s: %w", product.ID.Hex(), ErrNotFound)
	}
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryProductStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id.Hex(), ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryProductStore) AdjustStock(_ context.Context, id primitive.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id.Hex(), ErrNotFound)
	}
	if product.Stock+delta < 0 {
		return fmt.Errorf("%s: %w", product.Name, ErrInsufficientStock)
	}
	product.Stock += delta
	s.products[id] = product
	return nil
}

type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[primitive.ObjectID]models.Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[primitive.ObjectID]models.Cart)}
}

func (s *MemoryCartStore) Get(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[userID]
	if !ok {
		return nil, fmt.Errorf("cart: %w", ErrNotFound)
	}
	cart.Items = append([]models.CartItem(nil), cart.Items...)
	return &cart, nil
}

func (s *MemoryCartStore) Save(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	stored := *cart
	stored.Items = append([]models.CartItem(nil), cart.Items...)
	s.carts[cart.UserID] = stored
	return nil
}

func (s *MemoryCartStore) Clear(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

type MemoryPaymentStore struct {
	mu       sync.RWMutex
	payments []models.Payment
}

func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{}
}

func (s *MemoryPaymentStore) Record(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	s.payments = append(s.payments, *payment)
	return nil
}

func (s *MemoryPaymentStore) ListByOrder(_ context.Context, orderID primitive.ObjectID) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payments := make([]models.Payment, 0)
	for _, p := range s.payments {
		if p.OrderID == orderID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}
