package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quicksurf/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewRedisClient(cfg *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Cache is a thin wallet read cache plus the short-lived submission mutexes
// used to gate duplicate purchase attempts before they reach the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func walletKey(userID uint) string {
	return fmt.Sprintf("wallet:%d", userID)
}

func (c *Cache) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	val, err := c.client.Get(ctx, walletKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var wallet models.Wallet
	if err := json.Unmarshal([]byte(val), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (c *Cache) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, walletKey(wallet.UserID), data, c.ttl).Err()
}

func (c *Cache) DeleteWallet(ctx context.Context, userID uint) error {
	return c.client.Del(ctx, walletKey(userID)).Err()
}

// AcquireLock takes a process-wide mutex via SET NX PX. It is a throughput
// optimization in front of the database uniqueness constraints, not a
// correctness mechanism: a lock that leaks simply expires.
func (c *Cache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, "lock:"+key, 1, ttl).Result()
}

// ReleaseLock drops a mutex taken with AcquireLock.
func (c *Cache) ReleaseLock(ctx context.Context, key string) error {
	return c.client.Del(ctx, "lock:"+key).Err()
}

// HealthCheck pings redis.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
