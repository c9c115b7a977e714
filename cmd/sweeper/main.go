// Package main runs the reconciliation sweeper: it resolves purchases stuck
// in initiated or pending by requerying the provider. Run it alongside the
// API server, or with -once from cron.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"quicksurf/internal/config"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/idempotency"
	"quicksurf/internal/services/ledger"
	"quicksurf/internal/services/purchase"
	"quicksurf/internal/services/sweeper"
	"quicksurf/internal/services/vtu"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	config.LoadEnv()

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	if err := repositories.InitDB(); err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	walletRepo := repositories.NewWalletRepository(repositories.DB)
	purchaseRepo := repositories.NewPurchaseRepository(repositories.DB)
	logRepo := repositories.NewProviderLogRepository(repositories.DB)
	idemRepo := repositories.NewIdempotencyRepository(repositories.DB)

	ledgerSvc := ledger.NewService(walletRepo, nil, logger.Named("ledger"), nil)
	guard := idempotency.NewService(idemRepo, logger.Named("idempotency"))

	var gateway vtu.Gateway
	if config.MockProvider() {
		gateway = vtu.NewMockGateway()
	} else {
		gateway = vtu.NewClient(vtu.Config{
			BaseURL:   config.GetEnv("VTPASS_BASE_URL", "https://sandbox.vtpass.com/api"),
			APIKey:    config.GetEnv("VTPASS_API_KEY", ""),
			PublicKey: config.GetEnv("VTPASS_PUBLIC_KEY", ""),
			SecretKey: config.GetEnv("VTPASS_SECRET_KEY", ""),
		}, logger.Named("vtpass"), nil)
	}

	purchaseSvc := purchase.NewService(
		repositories.DB,
		walletRepo,
		purchaseRepo,
		logRepo,
		ledgerSvc,
		guard,
		gateway,
		nil,
		logger.Named("purchase"),
		nil,
		purchase.DefaultConfig(),
	)

	svc := sweeper.NewService(purchaseRepo, purchaseSvc, logger.Named("sweeper"), sweeper.Config{
		MinAge:   config.GetDurationEnv("SWEEP_MIN_AGE", 2*time.Minute),
		MaxBatch: config.GetIntEnv("SWEEP_MAX_BATCH", 100),
		Interval: config.GetDurationEnv("SWEEP_INTERVAL", 5*time.Minute),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if _, err := svc.RunOnce(ctx); err != nil {
			logger.Fatal("sweep failed", zap.Error(err))
		}
		return
	}

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("sweeper stopped", zap.Error(err))
	}
	logger.Info("sweeper shut down")
}

func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if config.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}
