// Package repositories provides the data access layer. It owns the database
// handle, migrations and the per-entity repository implementations.
package repositories

import (
	"log"
	"time"

	"quicksurf/internal/config"
	"quicksurf/internal/models"
	"quicksurf/internal/repositories/cache"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance used across the application.
var DB *gorm.DB

// CacheService is the shared redis-backed cache and mutex provider.
var CacheService *cache.Cache

// InitDB initializes the postgres connection, runs migrations and connects
// redis.
func InitDB() error {
	dsn := "host=" + config.GetEnv("DB_HOST", "localhost") +
		" user=" + config.GetEnv("DB_USER", "postgres") +
		" password=" + config.GetEnv("DB_PASSWORD", "postgres") +
		" dbname=" + config.GetEnv("DB_NAME", "quicksurf") +
		" port=" + config.GetEnv("DB_PORT", "5432") +
		" sslmode=" + config.GetEnv("DB_SSLMODE", "disable")

	logLevel := logger.Warn
	if !config.IsProduction() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return err
	}
	DB = db

	redisCfg := &cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	}
	CacheService = cache.NewCache(cache.NewRedisClient(redisCfg), 24*time.Hour)

	if err := Migrate(DB); err != nil {
		return err
	}

	log.Println("database initialized")
	return nil
}

// Migrate applies the schema. Split out so tests can run it against sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.PurchaseRequest{},
		&models.PaymentIntent{},
		&models.ProviderLog{},
		&models.IdempotencyKey{},
		&models.LoyaltyEntry{},
		&models.EmailLog{},
	)
}
