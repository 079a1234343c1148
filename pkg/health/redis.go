package health

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisChecker checks Redis connectivity for the snapshot store
type RedisChecker struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func NewRedisChecker(client redis.UniversalClient, timeout time.Duration) *RedisChecker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &RedisChecker{client: client, timeout: timeout}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return NewUnhealthyResult("redis", err).WithDuration(time.Since(start))
	}

	stats := c.client.PoolStats()
	return NewHealthyResult("redis", "connected").
		WithDuration(time.Since(start)).
		WithMetadata("total_conns", stats.TotalConns).
		WithMetadata("idle_conns", stats.IdleConns)
}
