package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/orgledger/backend/internal/config"
	"go.uber.org/zap"
)

// OpenRedis returns a connected client, or nil when Redis is unreachable.
// Callers treat a nil client as "feature disabled".
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without redis", zap.Error(err))
		rdb.Close()
		return nil
	}

	logger.Info("redis connection established")
	return rdb
}
