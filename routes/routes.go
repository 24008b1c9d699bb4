// routes/routes.go
package routes

import (
	"go-bnpl/controllers"
	"go-bnpl/middleware"

	"github.com/gorilla/mux"
)

// Controllers groups every handler set the router serves.
type Controllers struct {
	User    *controllers.UserController
	Product *controllers.ProductController
	Cart    *controllers.CartController
	Order   *controllers.OrderController
	Payment *controllers.PaymentController
	Plan    *controllers.PlanController
	Review  *controllers.ReviewController
	Report  *controllers.ReportController
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers) {
	// Public routes
	router.HandleFunc("/register", c.User.Register).Methods("POST")
	router.HandleFunc("/login", c.User.Login).Methods("POST")
	router.HandleFunc("/verify", c.User.VerifyEmail).Methods("GET")
	router.HandleFunc("/products", c.Product.GetProducts).Methods("GET")
	router.HandleFunc("/products/{id}", c.Product.GetProductByID).Methods("GET")
	router.HandleFunc("/products/{id}/reviews", c.Product.GetProductReviews).Methods("GET")
	router.HandleFunc("/bnpl/plans", c.Plan.GetPublishedPlans).Methods("GET")
	router.HandleFunc("/bnpl/quote", c.Order.Quote).Methods("POST")

	// Protected routes
	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/profile", c.User.GetProfile).Methods("GET")
	protected.HandleFunc("/profile/push-token", c.User.SetPushToken).Methods("PUT")

	// Cart routes
	protected.HandleFunc("/cart", c.Cart.AddToCart).Methods("POST")
	protected.HandleFunc("/cart", c.Cart.GetCart).Methods("GET")
	protected.HandleFunc("/cart/{product_id}", c.Cart.RemoveFromCart).Methods("DELETE")

	// Order routes
	protected.HandleFunc("/orders", c.Order.Checkout).Methods("POST")
	protected.HandleFunc("/orders", c.Order.GetOrders).Methods("GET")
	protected.HandleFunc("/orders/{id}", c.Order.GetOrder).Methods("GET")
	protected.HandleFunc("/orders/{id}/cancel", c.Order.CancelOrder).Methods("POST")
	protected.HandleFunc("/ws/orders", c.Order.Subscribe).Methods("GET")

	// Payment routes
	protected.HandleFunc("/orders/{id}/installments/{n}/payment-intent", c.Payment.CreateInstallmentIntent).Methods("POST")
	protected.HandleFunc("/orders/{id}/installments/{n}/confirm", c.Payment.ConfirmInstallment).Methods("POST")
	protected.HandleFunc("/orders/{id}/fixed-duration/payment-intent", c.Payment.CreateFixedDurationIntent).Methods("POST")
	protected.HandleFunc("/orders/{id}/fixed-duration/confirm", c.Payment.ConfirmFixedDuration).Methods("POST")
	protected.HandleFunc("/create-payment-intent", c.Payment.CreatePaymentIntent).Methods("POST")

	protected.HandleFunc("/reviews", c.Review.CreateReview).Methods("POST")

	// Admin product routes
	products := router.PathPrefix("/products").Subrouter()
	products.Use(middleware.AuthMiddleware)
	products.Use(middleware.AdminMiddleware)
	products.HandleFunc("", c.Product.CreateProduct).Methods("POST")
	products.HandleFunc("/{id}", c.Product.UpdateProduct).Methods("PUT")
	products.HandleFunc("/{id}", c.Product.DeleteProduct).Methods("DELETE")

	// Admin routes
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AuthMiddleware)
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/orders", c.Order.ListOrders).Methods("GET")
	admin.HandleFunc("/orders/{id}/status", c.Order.UpdateOrderStatus).Methods("PUT")
	admin.HandleFunc("/orders/{id}/cod", c.Order.CollectCOD).Methods("POST")
	admin.HandleFunc("/orders/{id}/installments/{n}", c.Payment.MarkInstallmentPaid).Methods("PUT")
	admin.HandleFunc("/orders/{id}/fixed-duration", c.Payment.MarkFixedDurationPaid).Methods("PUT")

	admin.HandleFunc("/bnpl/plans", c.Plan.CreatePlan).Methods("POST")
	admin.HandleFunc("/bnpl/plans", c.Plan.GetPlans).Methods("GET")
	admin.HandleFunc("/bnpl/plans/{id}", c.Plan.UpdatePlan).Methods("PUT")
	admin.HandleFunc("/bnpl/plans/{id}", c.Plan.DeletePlan).Methods("DELETE")
	admin.HandleFunc("/bnpl/sweep", c.Report.Sweep).Methods("POST")

	admin.HandleFunc("/reports/summary", c.Report.Summary).Methods("GET")
	admin.HandleFunc("/reports/schedules", c.Report.Schedules).Methods("GET")
	admin.HandleFunc("/reports/schedules.xlsx", c.Report.ExportSchedules).Methods("GET")
}
