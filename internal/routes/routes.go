// Package routes wires services to HTTP endpoints.
package routes

import (
	"time"

	"quicksurf/internal/config"
	"quicksurf/internal/handlers"
	"quicksurf/internal/middleware"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/idempotency"
	"quicksurf/internal/services/ledger"
	"quicksurf/internal/services/notification"
	"quicksurf/internal/services/payment"
	"quicksurf/internal/services/purchase"
	"quicksurf/internal/services/rewards"
	"quicksurf/internal/services/vtu"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles what SetupRoutes builds, for reuse by other entry points.
type Services struct {
	Ledger    *ledger.Service
	Purchases *purchase.Service
	Payments  *payment.Service
}

// SetupRoutes initializes repositories, services and handlers, and registers
// every endpoint on the app.
func SetupRoutes(app *fiber.App, db *gorm.DB, logger *zap.Logger) *Services {
	walletRepo := repositories.NewWalletRepository(db)
	purchaseRepo := repositories.NewPurchaseRepository(db)
	intentRepo := repositories.NewPaymentIntentRepository(db)
	logRepo := repositories.NewProviderLogRepository(db)
	idemRepo := repositories.NewIdempotencyRepository(db)

	registry := prometheus.DefaultRegisterer

	ledgerSvc := ledger.NewService(
		walletRepo,
		walletCache(),
		logger.Named("ledger"),
		ledger.NewPrometheusCollector(registry),
	)
	guard := idempotency.NewService(idemRepo, logger.Named("idempotency"))

	gateway := buildGateway(logger)

	purchaseSvc := purchase.NewService(
		db,
		walletRepo,
		purchaseRepo,
		logRepo,
		ledgerSvc,
		guard,
		gateway,
		purchaseLocker(),
		logger.Named("purchase"),
		purchase.NewPrometheusCollector(registry),
		purchase.Config{
			MinAmount:   config.GetDecimalEnv("PURCHASE_MIN_AMOUNT", purchase.DefaultMinAmount),
			MaxAmount:   config.GetDecimalEnv("PURCHASE_MAX_AMOUNT", purchase.DefaultMaxAmount),
			MutexTTL:    config.GetDurationEnv("PURCHASE_MUTEX_TTL", 30*time.Second),
			CooldownTTL: config.GetDurationEnv("PURCHASE_COOLDOWN_TTL", 15*time.Second),
		},
	)

	rewardsSvc := rewards.NewService(
		db,
		config.GetDecimalEnv("POINTS_PER_NAIRA", rewards.DefaultPointsPerNaira),
		logger.Named("rewards"),
	)
	notifySvc := notification.NewService(db, nil, nil, logger.Named("notification"))
	purchaseSvc.AddHook(rewardsSvc.PurchaseHook())
	purchaseSvc.AddHook(notifySvc.PurchaseHook())

	paystack := payment.NewPaystackClient(payment.PaystackConfig{
		BaseURL:   config.GetEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		SecretKey: config.GetEnv("PAYSTACK_SECRET_KEY", ""),
	}, logger.Named("paystack"))

	paymentSvc := payment.NewService(
		db,
		walletRepo,
		intentRepo,
		logRepo,
		ledgerSvc,
		paystack,
		config.GetEnv("PAYSTACK_SECRET_KEY", ""),
		config.GetEnv("PAYSTACK_CALLBACK_URL", ""),
		logger.Named("payment"),
	)

	walletHandler := handlers.NewWalletHandler(ledgerSvc)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseSvc)
	paymentHandler := handlers.NewPaymentHandler(paymentSvc)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	// The webhook authenticates by signature, not caller identity.
	api.Post("/payments/webhook", paymentHandler.Webhook)

	authed := api.Use(middleware.Identity)

	wallet := authed.Group("/wallet")
	wallet.Get("/", walletHandler.GetWallet)
	wallet.Get("/history", walletHandler.GetHistory)
	wallet.Post("/credit", walletHandler.Credit)
	wallet.Post("/lock", walletHandler.LockFunds)
	wallet.Post("/unlock", walletHandler.UnlockFunds)

	purchases := authed.Group("/purchases")
	purchases.Post("/airtime", purchaseHandler.BuyAirtime)
	purchases.Post("/data", purchaseHandler.BuyData)
	purchases.Get("/history", purchaseHandler.GetHistory)
	purchases.Get("/plans/:network", purchaseHandler.GetPlans)
	purchases.Get("/:reference", purchaseHandler.GetStatus)
	purchases.Post("/:reference/requery", purchaseHandler.Requery)

	payments := authed.Group("/payments")
	payments.Post("/initiate", paymentHandler.InitiateFunding)
	payments.Get("/:reference/verify", paymentHandler.VerifyFunding)

	return &Services{
		Ledger:    ledgerSvc,
		Purchases: purchaseSvc,
		Payments:  paymentSvc,
	}
}

// buildGateway returns the live VTU client, or the canned mock unless
// PROVIDER_MODE=LIVE.
func buildGateway(logger *zap.Logger) vtu.Gateway {
	if config.MockProvider() {
		logger.Info("provider mode: mock")
		return vtu.NewMockGateway()
	}
	return vtu.NewClient(vtu.Config{
		BaseURL:   config.GetEnv("VTPASS_BASE_URL", "https://sandbox.vtpass.com/api"),
		APIKey:    config.GetEnv("VTPASS_API_KEY", ""),
		PublicKey: config.GetEnv("VTPASS_PUBLIC_KEY", ""),
		SecretKey: config.GetEnv("VTPASS_SECRET_KEY", ""),
	}, logger.Named("vtpass"), nil)
}

func walletCache() ledger.WalletCache {
	if repositories.CacheService == nil {
		return nil
	}
	return repositories.CacheService
}

func purchaseLocker() purchase.Locker {
	if repositories.CacheService == nil {
		return nil
	}
	return repositories.CacheService
}
