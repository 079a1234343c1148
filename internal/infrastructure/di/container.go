package di

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/tm-signals/signals_service/internal/adapters/coingecko"
	"github.com/tm-signals/signals_service/internal/adapters/tokenmetrics"
	"github.com/tm-signals/signals_service/internal/api/middleware"
	"github.com/tm-signals/signals_service/internal/chat"
	"github.com/tm-signals/signals_service/internal/chat/telegram"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/analytics"
	"github.com/tm-signals/signals_service/internal/domain/services/digest"
	"github.com/tm-signals/signals_service/internal/domain/services/ledger"
	"github.com/tm-signals/signals_service/internal/domain/services/market"
	"github.com/tm-signals/signals_service/internal/domain/services/pricing"
	"github.com/tm-signals/signals_service/internal/domain/services/signal"
	"github.com/tm-signals/signals_service/internal/domain/services/subscription"
	"github.com/tm-signals/signals_service/internal/infrastructure/adapters"
	"github.com/tm-signals/signals_service/internal/infrastructure/cache"
	"github.com/tm-signals/signals_service/internal/infrastructure/config"
	"github.com/tm-signals/signals_service/internal/infrastructure/store"
	"github.com/tm-signals/signals_service/internal/infrastructure/stream"
	"github.com/tm-signals/signals_service/internal/persistence/postgres"
	"github.com/tm-signals/signals_service/internal/workers/notification_scheduler"
	"github.com/tm-signals/signals_service/pkg/auth"
	"github.com/tm-signals/signals_service/pkg/circuitbreaker"
	"github.com/tm-signals/signals_service/pkg/health"
	"github.com/tm-signals/signals_service/pkg/logger"
	"github.com/tm-signals/signals_service/pkg/ratelimit"
	"github.com/tm-signals/signals_service/pkg/retry"
	"go.uber.org/zap"
)

const (
	healthTimeout     = 5 * time.Second
	responseCacheSize = 64 << 20
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Storage
	Backend       store.Backend
	Portfolios    *store.Snapshot[*entities.Portfolio]
	Subscriptions *store.Snapshot[*entities.Subscription]
	Redis         *redis.Client
	DB            *sqlx.DB

	// External Services
	MarketData   *tokenmetrics.Client
	SpotPrices   *coingecko.Client
	EmailService *adapters.EmailService

	// Domain Services
	Pricing             *pricing.Resolver
	Signals             *signal.Service
	Market              *market.Service
	Analytics           *analytics.Service
	Ledger              *ledger.Service
	SubscriptionService *subscription.Service
	Digests             *digest.Builder

	// Delivery
	Bot       *chat.Bot
	Telegram  *telegram.Transport // nil when chat is disabled
	Hub       *stream.Hub
	Scheduler *notification_scheduler.Scheduler

	// HTTP
	Tokens        *auth.Manager
	Health        *health.HealthChecker
	ResponseCache *middleware.ResponseCache
	TradeLimiter  ratelimit.Limiter // nil when trade limiting is off
}

// NewContainer creates a new dependency injection container and loads the
// persisted snapshots
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	c := &Container{
		Config: cfg,
		Logger: log,
		ZapLog: zapLog,
		Health: health.NewHealthChecker(healthTimeout),
		Tokens: auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL()),
	}

	if err := c.initializeStore(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := c.initializeExternalServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize external services: %w", err)
	}
	c.initializeDomainServices()
	if err := c.initializeDelivery(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize delivery: %w", err)
	}

	responseCache, err := middleware.NewResponseCache(responseCacheSize)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ResponseCache = responseCache

	if limit := cfg.Server.TradeLimitPerMin; limit > 0 {
		var shared redis.UniversalClient
		if c.Redis != nil {
			shared = c.Redis
		}
		c.TradeLimiter = ratelimit.PerOwnerLimiter(shared, int64(limit), time.Minute, zapLog.Named("ratelimit"))
	}

	return c, nil
}

// initializeStore selects the snapshot backend and loads both documents
func (c *Container) initializeStore(ctx context.Context) error {
	cfg := c.Config

	switch cfg.Store.Backend {
	case config.StoreMemory:
		c.Backend = store.NewMemoryBackend()

	case config.StoreRedis:
		var client *redis.Client
		err := c.connect(ctx, "redis", func(context.Context) error {
			var err error
			client, err = cache.NewRedisClient(cache.RedisConfig{
				URL:        cfg.Redis.URL,
				Prefix:     cfg.Redis.Prefix,
				MaxRetries: cfg.Redis.MaxRetries,
				PoolSize:   cfg.Redis.PoolSize,
			})
			return err
		})
		if err != nil {
			return err
		}
		c.Redis = client
		c.Backend = cache.NewRedisBackend(client, cfg.Redis.Prefix, c.ZapLog)
		c.Health.Register(health.NewRedisChecker(client, healthTimeout))

	case config.StorePostgres:
		var db *sqlx.DB
		err := c.connect(ctx, "postgres", func(ctx context.Context) error {
			var err error
			db, err = postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
			return err
		})
		if err != nil {
			return err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.URL, c.ZapLog); err != nil {
				db.Close()
				return err
			}
		}
		c.DB = db
		c.Backend = postgres.NewSnapshotRepository(db, c.ZapLog)
		c.Health.Register(health.NewDatabaseChecker(db, healthTimeout))

	default:
		backend, err := store.NewFileBackend(cfg.Store.Directory)
		if err != nil {
			return err
		}
		c.Backend = backend
	}

	c.Portfolios = store.NewSnapshot[*entities.Portfolio](c.Backend, cfg.Store.Portfolios, c.ZapLog)
	c.Subscriptions = store.NewSnapshot[*entities.Subscription](c.Backend, cfg.Store.Subscriptions, c.ZapLog)
	c.Portfolios.Load(ctx)
	c.Subscriptions.Load(ctx)

	c.Logger.Infow("Snapshot store ready",
		"backend", c.Backend.Kind(),
		"portfolios", c.Portfolios.Len(),
		"subscriptions", c.Subscriptions.Len(),
	)
	return nil
}

// connect retries a startup connection with backoff
func (c *Container) connect(ctx context.Context, name string, fn func(context.Context) error) error {
	policy := retry.DefaultConfig()
	if c.Config.Store.ConnectAttempts > 0 {
		policy.MaxAttempts = c.Config.Store.ConnectAttempts
	}
	return retry.Do(ctx, policy, fn, func(attempt int, delay time.Duration, err error) {
		c.Logger.Warnw("Store connection failed, retrying",
			"store", name,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	})
}

func (c *Container) initializeExternalServices() error {
	cfg := c.Config

	c.MarketData = tokenmetrics.NewClient(tokenmetrics.Config{
		APIKey:        cfg.MarketData.APIKey,
		BaseURL:       cfg.MarketData.BaseURL,
		Timeout:       cfg.MarketData.TimeoutDuration(),
		DefaultWindow: cfg.MarketData.DefaultWindow(),
		Breaker:       circuitbreaker.DefaultConfig(),
	}, c.ZapLog)

	spot, err := coingecko.NewClient(coingecko.Config{
		BaseURL:  cfg.SpotPrice.BaseURL,
		Timeout:  cfg.SpotPrice.TimeoutDuration(),
		CacheTTL: cfg.SpotPrice.CacheTTL(),
		Breaker:  circuitbreaker.DefaultConfig(),
	}, c.ZapLog)
	if err != nil {
		return err
	}
	c.SpotPrices = spot

	c.EmailService = adapters.NewEmailService(c.ZapLog, adapters.EmailServiceConfig{
		APIKey:      cfg.Email.APIKey,
		FromEmail:   cfg.Email.FromEmail,
		FromName:    cfg.Email.FromName,
		Environment: cfg.Environment,
		Timeout:     cfg.Email.TimeoutDuration(),
	})

	// Upstream outages degrade the service but do not make it unhealthy
	c.Health.Register(health.NewPingChecker("market_data", c.MarketData.Ping, healthTimeout, true))
	c.Health.Register(health.NewPingChecker("spot_prices", c.SpotPrices.Ping, healthTimeout, true))
	return nil
}

// initializeDomainServices initializes all domain services with their dependencies
func (c *Container) initializeDomainServices() {
	cfg := c.Config
	lookback := cfg.MarketData.SignalLookback()

	c.Pricing = pricing.NewResolver(c.SpotPrices, cfg.Pricing.Aliases, c.ZapLog)
	c.Signals = signal.NewService(c.MarketData, lookback, c.ZapLog)
	c.Market = market.NewService(c.MarketData, lookback, c.ZapLog)
	c.Analytics = analytics.NewService(c.MarketData, c.ZapLog)
	c.Ledger = ledger.NewService(c.Portfolios, c.Pricing, c.Signals, c.Logger).
		WithDefaultBalance(decimal.NewFromFloat(cfg.Ledger.InitialBalance))
	c.SubscriptionService = subscription.NewService(c.Subscriptions, c.Logger)
	c.Digests = digest.NewBuilder(c.Market)
}

// initializeDelivery wires the chat bot, the websocket hub and the digest scheduler
func (c *Container) initializeDelivery() error {
	cfg := c.Config

	c.Bot = chat.NewBot(c.Ledger, c.Signals, c.Market, c.SubscriptionService, c.ZapLog)
	c.Hub = stream.NewHub(c.ZapLog)

	channels := []notification_scheduler.Channel{notification_scheduler.NewEmailChannel(c.EmailService)}

	if cfg.Chat.Enabled {
		transport, err := telegram.New(telegram.Config{
			Token:       cfg.Chat.Token,
			PollTimeout: cfg.Chat.PollTimeoutDuration(),
			Debug:       cfg.Chat.Debug,
		}, c.Bot, c.ZapLog)
		if err != nil {
			return err
		}
		c.Telegram = transport
		channels = append(channels, notification_scheduler.NewChatChannel(transport))
	} else {
		c.Logger.Warn("Chat transport disabled, digests go to email and websocket only")
	}

	scheduler, err := notification_scheduler.NewScheduler(
		c.Digests,
		c.SubscriptionService,
		channels,
		c.Hub,
		notification_scheduler.Config{
			Enabled:               cfg.Scheduler.Enabled,
			TopSignalsSchedule:    cfg.Scheduler.TopSignalsSchedule,
			MarketSummarySchedule: cfg.Scheduler.MarketSummarySchedule,
			TopCount:              cfg.Scheduler.TopCount,
			Timezone:              cfg.Scheduler.Timezone,
			DeliveryTimeout:       cfg.Scheduler.DeliveryTimeoutDuration(),
		},
		c.ZapLog.Named("scheduler"),
	)
	if err != nil {
		return err
	}
	c.Scheduler = scheduler
	return nil
}

// Close releases connections and caches. Safe on a partially built container.
func (c *Container) Close() {
	if c.ResponseCache != nil {
		c.ResponseCache.Close()
	}
	if c.SpotPrices != nil {
		c.SpotPrices.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warnw("Failed to close redis client", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warnw("Failed to close database", "error", err)
		}
	}
}
