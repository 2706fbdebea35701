package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
)

// Redis holds the client the event relay publishes and subscribes through.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the relay client. An unreachable server is logged, not
// fatal: go-redis redials on demand and the relay runner retries its subscription.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	opts := redisOptions(cfg)
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("event relay redis unreachable", zap.String("addr", opts.Addr), zap.Error(err))
	} else {
		logger.Info("event relay redis connected",
			zap.String("addr", opts.Addr),
			zap.Int("db", opts.DB),
			zap.String("client_name", opts.ClientName))
	}
	return &Redis{Client: client}
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: cfg.ClientName,
	}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping backs the "redis" readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
