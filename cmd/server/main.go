// Package main is the entry point for the API server. It initializes all
// dependencies, sets up the HTTP server, and starts the application.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quicksurf/internal/config"
	"quicksurf/internal/repositories"
	"quicksurf/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	if err := repositories.InitDB(); err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		logger.Fatal("failed to get database instance", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(config.GetIntEnv("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(config.GetIntEnv("DB_MAX_OPEN_CONNS", 100))
	sqlDB.SetConnMaxLifetime(config.GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour))
	sqlDB.SetConnMaxIdleTime(config.GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute))

	if err := sqlDB.Ping(); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	logger.Info("database connected")

	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("failed to close database connection", zap.Error(err))
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				logger.Warn("failed to close redis connection", zap.Error(err))
			}
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "quicksurf",
		ReadTimeout:  config.GetDurationEnv("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: config.GetDurationEnv("HTTP_WRITE_TIMEOUT", 60*time.Second),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	// Purchase submissions are the expensive path; rate-limit them per user.
	app.Use("/api/v1/purchases", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("PURCHASE_RATE_LIMIT", 30),
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if uid := c.Get("X-User-ID"); uid != "" {
				return uid
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, slow down",
			})
		},
	}))

	routes.SetupRoutes(app, repositories.DB, logger)

	go func() {
		if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", config.GetEnv("PORT", "3000")))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
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
