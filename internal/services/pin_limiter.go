package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PinAttemptLimiter counts consecutive failed PIN verifications per user.
// A nil limiter, or one without a Redis client, never locks anybody out.
// Redis errors are logged and treated as "not locked".
type PinAttemptLimiter struct {
	redis       *redis.Client
	maxAttempts int64
	window      time.Duration
	logger      *zap.Logger
}

func NewPinAttemptLimiter(client *redis.Client, maxAttempts int64, window time.Duration, logger *zap.Logger) *PinAttemptLimiter {
	return &PinAttemptLimiter{
		redis:       client,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

func pinAttemptsKey(userID string) string {
	return fmt.Sprintf("pin_attempts:%s", userID)
}

func (l *PinAttemptLimiter) enabled() bool {
	return l != nil && l.redis != nil && l.maxAttempts > 0
}

// Locked reports whether userID has used up its failed attempts for the window.
func (l *PinAttemptLimiter) Locked(ctx context.Context, userID string) bool {
	if !l.enabled() {
		return false
	}
	attempts, err := l.redis.Get(ctx, pinAttemptsKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		l.logger.Warn("pin limiter read failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return attempts >= l.maxAttempts
}

// RecordFailure bumps the failure counter and restarts its window.
func (l *PinAttemptLimiter) RecordFailure(ctx context.Context, userID string) {
	if !l.enabled() {
		return
	}
	key := pinAttemptsKey(userID)
	attempts, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("pin limiter increment failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
		l.logger.Warn("pin limiter expire failed", zap.String("user_id", userID), zap.Error(err))
	}
	if attempts >= l.maxAttempts {
		l.logger.Warn("pin locked after repeated failures",
			zap.String("user_id", userID),
			zap.Int64("attempts", attempts),
			zap.Duration("window", l.window))
	}
}

func (l *PinAttemptLimiter) Reset(ctx context.Context, userID string) {
	if !l.enabled() {
		return
	}
	if err := l.redis.Del(ctx, pinAttemptsKey(userID)).Err(); err != nil {
		l.logger.Warn("pin limiter reset failed", zap.String("user_id", userID), zap.Error(err))
	}
}
