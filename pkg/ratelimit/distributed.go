// Package ratelimit limits requests per caller key, either in process or
// shared across replicas through redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter defines rate limiting behavior
type Limiter interface {
	// Allow checks if a request should be allowed
	Allow(ctx context.Context, key string) (bool, error)

	// GetRemaining returns remaining quota
	GetRemaining(ctx context.Context, key string) (int64, error)
}

// Config defines rate limiter configuration
type Config struct {
	// Limit is the maximum number of requests allowed
	Limit int64

	// Window is the time window for the rate limit
	Window time.Duration

	// KeyPrefix is prepended to all Redis keys
	KeyPrefix string
}

// DistributedLimiter implements a sliding window limiter on redis sorted sets
type DistributedLimiter struct {
	redis  redis.UniversalClient
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewDistributedLimiter creates a new distributed rate limiter
func NewDistributedLimiter(client redis.UniversalClient, config Config, logger *zap.Logger) *DistributedLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "signals:ratelimit"
	}

	return &DistributedLimiter{
		redis:  client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Allow records the request when the window still has room. Rejected
// requests do not count against the window.
func (l *DistributedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.makeKey(key)
	now := l.now()
	windowStart := strconv.FormatInt(now.Add(-l.config.Window).UnixNano(), 10)

	var countCmd *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", "("+windowStart)
		countCmd = pipe.ZCount(ctx, redisKey, windowStart, "+inf")
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to execute rate limit pipeline",
			zap.Error(err),
			zap.String("key", key))
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	current := countCmd.Val()
	if current >= l.config.Limit {
		l.logger.Debug("Rate limit exceeded",
			zap.String("key", key),
			zap.Int64("current", current),
			zap.Int64("limit", l.config.Limit))
		return false, nil
	}

	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, &redis.Z{
			Score:  float64(now.UnixNano()),
			Member: uuid.NewString(),
		})
		pipe.Expire(ctx, redisKey, l.config.Window*2)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit record failed: %w", err)
	}
	return true, nil
}

// GetRemaining returns remaining quota
func (l *DistributedLimiter) GetRemaining(ctx context.Context, key string) (int64, error) {
	windowStart := strconv.FormatInt(l.now().Add(-l.config.Window).UnixNano(), 10)

	count, err := l.redis.ZCount(ctx, l.makeKey(key), windowStart, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining quota: %w", err)
	}

	remaining := l.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *DistributedLimiter) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", l.config.KeyPrefix, key)
}

// LocalLimiter keeps one token bucket per key in process memory
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewLocalLimiter allows config.Limit requests per config.Window, refilled evenly
func NewLocalLimiter(config Config) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(config.Window / time.Duration(config.Limit)),
		burst:    int(config.Limit),
	}
}

func (l *LocalLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.get(key).Allow(), nil
}

func (l *LocalLimiter) GetRemaining(_ context.Context, key string) (int64, error) {
	tokens := int64(l.get(key).Tokens())
	if tokens < 0 {
		tokens = 0
	}
	return tokens, nil
}

// PerOwnerLimiter shares the limit through redis when a client is given and
// falls back to process memory otherwise.
func PerOwnerLimiter(client redis.UniversalClient, limit int64, window time.Duration, logger *zap.Logger) Limiter {
	cfg := Config{Limit: limit, Window: window, KeyPrefix: "signals:ratelimit:owner"}
	if client == nil {
		return NewLocalLimiter(cfg)
	}
	return NewDistributedLimiter(client, cfg, logger)
}
