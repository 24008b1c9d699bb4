package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"
	"go-bnpl/payments"
	"go-bnpl/realtime"
	"go-bnpl/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) NotifyUser(_ primitive.ObjectID, msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Subject)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ primitive.ObjectID, ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

// fixture is a shop with one customer, a BNPL-eligible phone, a plain
// accessory and a published three month plan at 10%.
type fixture struct {
	ctx       context.Context
	stores    *repository.Stores
	clock     *clock
	notifier  *recordingNotifier
	publisher *recordingPublisher
	gateway   *payments.SandboxGateway

	orders   *OrderService
	payments *PaymentService
	sweeper  *OverdueSweeper
	reviews  *ReviewService
	reports  *ReportService
	plans    *PlanService

	user      *models.User
	phone     *models.Product
	accessory *models.Product
	plan      *models.BNPLPlan
	draftPlan *models.BNPLPlan
	fixedPlan *models.BNPLPlan
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:       context.Background(),
		stores:    repository.NewMemoryStores(),
		clock:     &clock{t: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		gateway:   payments.NewSandboxGateway(),
	}
	log := zap.NewNop()

	f.orders = NewOrderService(f.stores, f.notifier, f.publisher, log)
	f.orders.Now = f.clock.Now
	f.payments = NewPaymentService(f.stores, f.gateway, dec("2"), f.notifier, f.publisher, log)
	f.payments.Now = f.clock.Now
	f.sweeper = NewOverdueSweeper(f.stores.Orders, dec("2"), f.notifier, f.publisher, log)
	f.sweeper.Now = f.clock.Now
	f.reviews = NewReviewService(f.stores.Reviews, f.stores.Orders)
	f.reviews.Now = f.clock.Now
	f.reports = NewReportService(f.stores.Orders)
	f.reports.Now = f.clock.Now
	f.plans = NewPlanService(f.stores.Plans)
	f.plans.Now = f.clock.Now

	f.user = &models.User{Name: "Ayesha", Email: "ayesha@example.com", Role: models.RoleUser,
		Address: models.Address{Street: "12 Mall Road", City: "Lahore"}}
	require.NoError(t, f.stores.Users.Create(f.ctx, f.user))

	f.phone = &models.Product{Name: "Phone", Price: dec("30000"), Stock: 5, BNPLEligible: true}
	f.accessory = &models.Product{Name: "Case", Price: dec("1500"), Stock: 10}
	require.NoError(t, f.stores.Products.Create(f.ctx, f.phone))
	require.NoError(t, f.stores.Products.Create(f.ctx, f.accessory))

	var err error
	f.plan, err = f.plans.Create(f.ctx, models.BNPLPlan{
		PlanName: "3 Months", PlanType: bnpl.PlanInstallment, Duration: 3,
		InterestRate: dec("10"), Status: models.PlanPublished,
	})
	require.NoError(t, err)
	f.draftPlan, err = f.plans.Create(f.ctx, models.BNPLPlan{
		PlanName: "12 Months", PlanType: bnpl.PlanInstallment, Duration: 12, InterestRate: dec("20"),
	})
	require.NoError(t, err)
	f.fixedPlan, err = f.plans.Create(f.ctx, models.BNPLPlan{
		PlanName: "Pay in 2 months", PlanType: bnpl.PlanFixedDuration, Duration: 2,
		InterestRate: dec("5"), Status: models.PlanPublished,
	})
	require.NoError(t, err)

	f.fillCart(t)
	return f
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	require.NoError(t, f.stores.Carts.Save(f.ctx, &models.Cart{
		UserID: f.user.ID,
		Items: []models.CartItem{
			{ProductID: f.phone.ID, Quantity: 1},
			{ProductID: f.accessory.ID, Quantity: 2},
		},
	}))
}

func (f *fixture) actor() Actor {
	return Actor{UserID: f.user.ID}
}

// mixedOrder checks out the phone on the installment plan and the cases COD.
func (f *fixture) mixedOrder(t *testing.T) *models.Order {
	t.Helper()
	d, err := f.orders.Checkout(f.ctx, f.user.ID, CheckoutRequest{
		PlanID: f.plan.ID.Hex(),
		Items: []CheckoutLine{
			{ProductID: f.phone.ID, PaymentMethod: "BNPL"},
			{ProductID: f.accessory.ID, PaymentMethod: "COD"},
		},
	})
	require.NoError(t, err)
	return d.Order
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	t.Helper()
	got, err := f.stores.Products.Get(f.ctx, p.ID)
	require.NoError(t, err)
	return got.Stock
}
