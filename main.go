// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-bnpl/config"
	"go-bnpl/controllers"
	"go-bnpl/middleware"
	"go-bnpl/payments"
	"go-bnpl/realtime"
	"go-bnpl/repository"
	"go-bnpl/routes"
	"go-bnpl/services"
	"go-bnpl/utils"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Set the JWT secret key
	utils.JwtKey = []byte(cfg.JWTSecret)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, client, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage unavailable", zap.Error(err))
	}
	if client != nil {
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect", zap.Error(err))
			}
		}()
	}

	mailer := newMailer(cfg)
	var gateway payments.Gateway = payments.NewSandboxGateway()
	if cfg.StripeSecretKey != "" {
		gateway = payments.NewStripeGateway(cfg.StripeSecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, card payments use the sandbox gateway")
	}

	hub := realtime.NewHub(logger.Named("ws"))
	notifier := &services.Dispatcher{
		Users:  stores.Users,
		Mailer: mailer,
		Push:   utils.NewPushClient(cfg.ExpoPushURL),
		Log:    logger.Named("notify"),
	}

	orderService := services.NewOrderService(stores, notifier, hub, logger.Named("orders"))
	paymentService := services.NewPaymentService(stores, gateway, cfg.PenaltyRate, notifier, hub, logger.Named("payments"))
	reviewService := services.NewReviewService(stores.Reviews, stores.Orders)
	sweeper := services.NewOverdueSweeper(stores.Orders, cfg.PenaltyRate, notifier, hub, logger.Named("sweeper"))

	// Initialize controllers
	ctrls := routes.Controllers{
		User:    controllers.NewUserController(stores.Users, mailer, cfg.PublicURL, cfg.IsAdminEmail, logger),
		Product: controllers.NewProductController(stores.Products, reviewService, logger),
		Cart:    controllers.NewCartController(stores.Carts, stores.Products, logger),
		Order:   controllers.NewOrderController(orderService, hub, logger),
		Payment: controllers.NewPaymentController(paymentService, logger),
		Plan:    controllers.NewPlanController(services.NewPlanService(stores.Plans), logger),
		Review:  controllers.NewReviewController(reviewService, logger),
		Report:  controllers.NewReportController(services.NewReportService(stores.Orders), sweeper, logger),
	}

	// Set up the router
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger.Named("http")))
	routes.RegisterRoutes(router, ctrls)

	if cfg.SweepInterval > 0 {
		go sweeper.Run(ctx, cfg.SweepInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Stores, *mongo.Client, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStores(), nil, nil
	}

	// Connect to MongoDB
	client, err := utils.ConnectDB(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	db := client.Database(cfg.MongoDB)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, err
	}
	return repository.NewMongoStores(db), client, nil
}

// newMailer returns nil when email is disabled.
func newMailer(cfg *config.Config) utils.Mailer {
	switch cfg.EmailProvider {
	case config.EmailPostmark:
		return utils.NewPostmarkMailer(cfg.PostmarkAPIToken, cfg.EmailSender)
	case config.EmailSendGrid:
		return utils.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender)
	}
	return nil
}
