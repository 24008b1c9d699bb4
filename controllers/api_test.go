package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-bnpl/bnpl"
	"go-bnpl/controllers"
	"go-bnpl/models"
	"go-bnpl/payments"
	"go-bnpl/realtime"
	"go-bnpl/repository"
	"go-bnpl/routes"
	"go-bnpl/services"
	"go-bnpl/utils"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
)

func init() {
	utils.JwtKey = []byte("controllers-test-secret")
}

type api struct {
	t      *testing.T
	router *mux.Router
	stores *repository.Stores
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zap.NewNop()
	stores := repository.NewMemoryStores()
	hub := realtime.NewHub(log)

	orders := services.NewOrderService(stores, nil, hub, log)
	pays := services.NewPaymentService(stores, payments.NewSandboxGateway(), decimal.NewFromInt(2), nil, hub, log)
	reviews := services.NewReviewService(stores.Reviews, stores.Orders)
	sweeper := services.NewOverdueSweeper(stores.Orders, decimal.NewFromInt(2), nil, hub, log)
	isAdmin := func(email string) bool { return email == "ops@example.com" }

	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Controllers{
		User:    controllers.NewUserController(stores.Users, nil, "http://localhost", isAdmin, log),
		Product: controllers.NewProductController(stores.Products, reviews, log),
		Cart:    controllers.NewCartController(stores.Carts, stores.Products, log),
		Order:   controllers.NewOrderController(orders, hub, log),
		Payment: controllers.NewPaymentController(pays, log),
		Plan:    controllers.NewPlanController(services.NewPlanService(stores.Plans), log),
		Review:  controllers.NewReviewController(reviews, log),
		Report:  controllers.NewReportController(services.NewReportService(stores.Orders), sweeper, log),
	})
	return &api{t: t, router: router, stores: stores}
}

func (a *api) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *api) decode(rec *httptest.ResponseRecorder, v interface{}) {
	a.t.Helper()
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// signUp registers and logs in, returning the bearer token.
func (a *api) signUp(name, email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/register", "", map[string]interface{}{
		"name": name, "email": email, "password": "secret123",
		"address": map[string]string{"street": "12 Mall Road", "city": "Lahore"},
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	a.decode(rec, &out)
	return out["token"]
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAPI(t)
	token := a.signUp("Ayesha", "Ayesha@Example.com")

	rec := a.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Again", "email": "ayesha@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/login", "", map[string]string{"email": "ayesha@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile models.User
	a.decode(rec, &profile)
	assert.Equal(t, "ayesha@example.com", profile.Email)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.True(t, profile.IsVerified)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(http.MethodPut, "/profile/push-token", token, map[string]string{"token": "not-expo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPut, "/profile/push-token", token, map[string]string{"token": "ExponentPushToken[abc]"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouteProtection(t *testing.T) {
	a := newAPI(t)
	user := a.signUp("Ayesha", "ayesha@example.com")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/orders", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/products", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/products", user, map[string]interface{}{
		"name": "Phone", "price": "30000", "stock": 1,
	}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/admin/orders", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/admin/reports/summary", user, nil).Code)
}

// shop seeds an admin, a customer, a BNPL phone and a published plan
// through the API.
type shop struct {
	*api
	admin, user string
	phone       models.Product
	plan        models.BNPLPlan
}

func newShop(t *testing.T) *shop {
	s := &shop{api: newAPI(t)}
	s.admin = s.signUp("Ops", "ops@example.com")
	s.user = s.signUp("Ayesha", "ayesha@example.com")

	rec := s.do(http.MethodPost, "/products", s.admin, map[string]interface{}{
		"name": "Phone", "price": "30000", "stock": 5, "bnpl_eligible": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s.decode(rec, &s.phone)

	rec = s.do(http.MethodPost, "/admin/bnpl/plans", s.admin, map[string]interface{}{
		"plan_name": "3 Months", "plan_type": "Installment", "duration": 3,
		"interest_rate": "10", "status": "Published",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s.decode(rec, &s.plan)
	return s
}

func (s *shop) checkout() services.OrderDetail {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/cart", s.user, map[string]interface{}{
		"product_id": s.phone.ID.Hex(), "quantity": 1,
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/orders", s.user, map[string]interface{}{
		"items":   []map[string]string{{"product_id": s.phone.ID.Hex(), "payment_method": "BNPL"}},
		"plan_id": s.plan.ID.Hex(),
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var order services.OrderDetail
	s.decode(rec, &order)
	return order
}

func TestPlansAndQuote(t *testing.T) {
	s := newShop(t)
	rec := s.do(http.MethodPost, "/admin/bnpl/plans", s.admin, map[string]interface{}{
		"plan_name": "12 Months", "plan_type": "Installment", "duration": 12, "interest_rate": "20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var public []models.BNPLPlan
	s.decode(s.do(http.MethodGet, "/bnpl/plans", "", nil), &public)
	require.Len(t, public, 1)
	assert.Equal(t, "3 Months", public[0].PlanName)

	var all []models.BNPLPlan
	s.decode(s.do(http.MethodGet, "/admin/bnpl/plans", s.admin, nil), &all)
	assert.Len(t, all, 2)

	rec = s.do(http.MethodPost, "/bnpl/quote", "", map[string]string{"plan_id": s.plan.ID.Hex(), "amount": "1100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quote bnpl.Quote
	s.decode(rec, &quote)
	assert.Equal(t, "1210", quote.TotalPayable.String())
	assert.Len(t, quote.Installments, 3)

	rec = s.do(http.MethodPost, "/admin/bnpl/plans", s.admin, map[string]interface{}{
		"plan_name": "Broken", "plan_type": "Installment", "duration": 0, "interest_rate": "5",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutAndPayInstallments(t *testing.T) {
	s := newShop(t)
	order := s.checkout()
	id := order.Order.ID.Hex()

	require.Len(t, order.Order.Installments, 3)
	assert.Equal(t, "33000", order.Order.BNPLTotalPayable.String())
	assert.Equal(t, bnpl.PaymentPending, order.Summary.Status)

	var cart models.Cart
	s.decode(s.do(http.MethodGet, "/cart", s.user, nil), &cart)
	assert.Empty(t, cart.Items)

	rec := s.do(http.MethodPost, "/orders/"+id+"/installments/2/payment-intent", s.user, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "installments are paid in order")

	rec = s.do(http.MethodPost, "/orders/"+id+"/installments/1/payment-intent", s.user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var intent payments.Intent
	s.decode(rec, &intent)
	assert.NotEmpty(t, intent.ClientSecret)
	assert.Equal(t, int64(1100000), intent.Amount)

	rec = s.do(http.MethodPost, "/orders/"+id+"/installments/1/confirm", s.user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid services.OrderDetail
	s.decode(rec, &paid)
	assert.Equal(t, bnpl.StatusPaid, paid.Order.Installments[0].Status)
	assert.Equal(t, bnpl.PaymentPartial, paid.Summary.Status)

	rec = s.do(http.MethodPost, "/orders/"+id+"/installments/1/confirm", s.user, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "second confirmation must not pay twice")

	rec = s.do(http.MethodPost, "/orders/"+id+"/installments/9/payment-intent", s.user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPut, "/admin/orders/"+id+"/installments/2", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var listed []services.OrderDetail
	s.decode(s.do(http.MethodGet, "/admin/orders?payment_status=Partially%20Paid", s.admin, nil), &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, 2, listed[0].Summary.PaidCount)
	assert.Empty(t, listed[0].Payments)

	var got services.OrderDetail
	s.decode(s.do(http.MethodGet, "/orders/"+id, s.user, nil), &got)
	require.Len(t, got.Payments, 2)
	assert.Equal(t, models.ChannelStripe, got.Payments[0].Channel)
	assert.Equal(t, intent.ID, got.Payments[0].ProviderRef)
	assert.Equal(t, 1, got.Payments[0].InstallmentNumber)
	assert.Equal(t, models.ChannelManual, got.Payments[1].Channel)
	assert.Equal(t, "11000", got.Payments[1].Amount.String())

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/admin/orders?status=lost", s.admin, nil).Code)
}

func TestOrderOwnershipAndStatus(t *testing.T) {
	s := newShop(t)
	order := s.checkout()
	id := order.Order.ID.Hex()
	other := s.signUp("Bilal", "bilal@example.com")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/orders/"+id, other, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/orders/"+id+"/cancel", other, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/orders/not-an-id", s.user, nil).Code)

	rec := s.do(http.MethodPut, "/admin/orders/"+id+"/status", s.admin, map[string]string{"status": "Delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/admin/orders/"+id+"/status", s.admin, map[string]string{"status": "Processing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/orders/"+id+"/cancel", s.user, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "customers cancel only pending orders")

	rec = s.do(http.MethodPost, "/admin/orders/"+id+"/cod", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "order has no COD portion")

	var product models.Product
	s.decode(s.do(http.MethodGet, "/products/"+s.phone.ID.Hex(), "", nil), &product)
	assert.Equal(t, 4, product.Stock)
}

func TestScheduleExport(t *testing.T) {
	s := newShop(t)
	s.checkout()

	rec := s.do(http.MethodGet, "/admin/reports/schedules.xlsx?status=pending", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))

	file, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Len(t, file.Sheets[0].Rows, 4)

	assert.Equal(t, http.StatusBadRequest,
		s.do(http.MethodGet, "/admin/reports/schedules.xlsx?status=someday", s.admin, nil).Code)

	var summary services.ReportSummary
	s.decode(s.do(http.MethodGet, "/admin/reports/summary", s.admin, nil), &summary)
	assert.Equal(t, 1, summary.OrderCount)
	assert.Equal(t, "33000", summary.Outstanding.String())

	rec = s.do(http.MethodPost, "/admin/bnpl/sweep", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res services.SweepResult
	s.decode(rec, &res)
	assert.Equal(t, 1, res.Orders)
	assert.Zero(t, res.NewlyOverdue)
}

func TestReviewRequiresDelivery(t *testing.T) {
	s := newShop(t)
	order := s.checkout()
	review := map[string]interface{}{
		"product_id": s.phone.ID.Hex(), "order_id": order.Order.ID.Hex(), "rating": 5, "review_text": "Great",
	}

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/reviews", s.user, review).Code)

	for _, status := range []string{"Processing", "Shipped", "Delivered"} {
		rec := s.do(http.MethodPut, "/admin/orders/"+order.Order.ID.Hex()+"/status", s.admin, map[string]string{"status": status})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/reviews", s.user, review).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/reviews", s.user, review).Code)

	var listed services.ProductReviews
	s.decode(s.do(http.MethodGet, "/products/"+s.phone.ID.Hex()+"/reviews", "", nil), &listed)
	assert.Equal(t, 1, listed.Count)
	assert.Equal(t, "5", listed.AverageRating.String())
}

func TestCreatePaymentIntent(t *testing.T) {
	a := newAPI(t)
	token := a.signUp("Ayesha", "ayesha@example.com")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/create-payment-intent", "", map[string]interface{}{
		"amount": 1500,
	}).Code)

	rec := a.do(http.MethodPost, "/create-payment-intent", token, map[string]interface{}{
		"amount": 1500, "customerId": "cus_123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	a.decode(rec, &out)
	assert.NotEmpty(t, out["clientSecret"])

	rec = a.do(http.MethodPost, "/create-payment-intent", token, map[string]interface{}{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
