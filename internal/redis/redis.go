package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/pkg/log"
)

// Key builders shared by every Redis user
func TokenKey(userID uint64) string {
	return fmt.Sprintf("auth:token:%d", userID)
}

func BlacklistKey(tokenID string) string {
	return "auth:blacklist:" + tokenID
}

func LoginAttemptsKey(email string) string {
	return "auth:login_attempts:" + email
}

func PriceCheckLockKey(userID uint64) string {
	return fmt.Sprintf("pricedrop:check:%d", userID)
}

// New creates a client and verifies the connection
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	if err := Health(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	log.WithField("addr", cfg.GetAddr()).Info("Redis connected successfully")
	return client, nil
}

// Health pings with a short deadline
func Health(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
