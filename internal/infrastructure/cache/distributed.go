package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tm-signals/signals_service/internal/infrastructure/store"
	"github.com/tm-signals/signals_service/pkg/retry"
	"go.uber.org/zap"
)

// RedisBackend stores snapshot documents as plain Redis string values
type RedisBackend struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

type RedisConfig struct {
	URL        string
	Prefix     string
	MaxRetries int
	PoolSize   int
}

// NewRedisClient parses the URL, applies pool settings and pings the server
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("invalid redis url: %w", err))
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	if prefix == "" {
		prefix = "signals:snapshot:"
	}
	return &RedisBackend{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (rb *RedisBackend) Kind() string { return "redis" }

func (rb *RedisBackend) Read(ctx context.Context, name string) ([]byte, error) {
	val, err := rb.client.Get(ctx, rb.prefix+name).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return val, nil
}

func (rb *RedisBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := rb.client.Set(ctx, rb.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	rb.logger.Debug("Snapshot written to Redis", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}
