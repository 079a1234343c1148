package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	MarketData  MarketDataConfig `mapstructure:"market_data"`
	SpotPrice   SpotPriceConfig  `mapstructure:"spot_price"`
	Pricing     PricingConfig    `mapstructure:"pricing"`
	Ledger      LedgerConfig     `mapstructure:"ledger"`
	Store       StoreConfig      `mapstructure:"store"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Chat        ChatConfig       `mapstructure:"chat"`
	Scheduler   SchedulerConfig  `mapstructure:"scheduler"`
	Email       EmailConfig      `mapstructure:"email"`
	JWT         JWTConfig        `mapstructure:"jwt"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
	// TradeLimitPerMin caps paper trading calls per token subject; shared through redis when configured
	TradeLimitPerMin int `mapstructure:"trade_limit_per_min"`
	// ResponseCacheTTL caches market data GET responses for this many seconds; 0 disables
	ResponseCacheTTL int `mapstructure:"response_cache_ttl"`
	// AdminOwners lists the token subjects allowed on the admin routes
	AdminOwners []string `mapstructure:"admin_owners"`
}

// MarketDataConfig configures the Token Metrics gateway
type MarketDataConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Timeout            int    `mapstructure:"timeout"`
	DefaultWindowDays  int    `mapstructure:"default_window_days"`
	SignalLookbackDays int    `mapstructure:"signal_lookback_days"`
}

// SpotPriceConfig configures the CoinGecko price lookup
type SpotPriceConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Timeout     int    `mapstructure:"timeout"`
	CacheTTLSec int    `mapstructure:"cache_ttl"`
}

type PricingConfig struct {
	// Aliases maps ticker symbols to CoinGecko ids on top of the built-in table
	Aliases map[string]string `mapstructure:"aliases"`
}

type LedgerConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Directory     string `mapstructure:"directory"`
	Portfolios    string `mapstructure:"portfolios"`
	Subscriptions string `mapstructure:"subscriptions"`
	// ConnectAttempts bounds startup retries against redis or postgres
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Prefix     string `mapstructure:"prefix"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type ChatConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
	Debug       bool   `mapstructure:"debug"`
}

type SchedulerConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	TopSignalsSchedule    string `mapstructure:"top_signals_schedule"`
	MarketSummarySchedule string `mapstructure:"market_summary_schedule"`
	TopCount              int    `mapstructure:"top_count"`
	Timezone              string `mapstructure:"timezone"`
	DeliveryTimeout       int    `mapstructure:"delivery_timeout"`
}

type EmailConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	Timeout   int    `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c ServerConfig) ResponseCacheDuration() time.Duration { return seconds(c.ResponseCacheTTL) }

func (c MarketDataConfig) TimeoutDuration() time.Duration { return seconds(c.Timeout) }

func (c MarketDataConfig) DefaultWindow() time.Duration {
	return time.Duration(c.DefaultWindowDays) * 24 * time.Hour
}

func (c MarketDataConfig) SignalLookback() time.Duration {
	return time.Duration(c.SignalLookbackDays) * 24 * time.Hour
}

func (c SpotPriceConfig) TimeoutDuration() time.Duration { return seconds(c.Timeout) }

func (c SpotPriceConfig) CacheTTL() time.Duration { return seconds(c.CacheTTLSec) }

func (c ChatConfig) PollTimeoutDuration() time.Duration { return seconds(c.PollTimeout) }

func (c SchedulerConfig) DeliveryTimeoutDuration() time.Duration { return seconds(c.DeliveryTimeout) }

func (c EmailConfig) TimeoutDuration() time.Duration { return seconds(c.Timeout) }

func (c JWTConfig) TokenTTL() time.Duration { return time.Duration(c.TokenTTLHours) * time.Hour }

// Load reads configs/config.yaml (optional), then .env and environment overrides
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.Store.Backend = strings.ToLower(strings.TrimSpace(config.Store.Backend))

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 15)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 120)
	v.SetDefault("server.trade_limit_per_min", 30)
	v.SetDefault("server.response_cache_ttl", 15)

	// Token Metrics
	v.SetDefault("market_data.base_url", "https://api.tokenmetrics.com/v2")
	v.SetDefault("market_data.timeout", 30)
	v.SetDefault("market_data.default_window_days", 30)
	v.SetDefault("market_data.signal_lookback_days", 180)

	// CoinGecko
	v.SetDefault("spot_price.base_url", "https://api.coingecko.com")
	v.SetDefault("spot_price.timeout", 10)
	v.SetDefault("spot_price.cache_ttl", 30)

	v.SetDefault("ledger.initial_balance", 10000)

	// Snapshot store
	v.SetDefault("store.backend", StoreFile)
	v.SetDefault("store.directory", "data")
	v.SetDefault("store.portfolios", "portfolios")
	v.SetDefault("store.subscriptions", "subscriptions")
	v.SetDefault("store.connect_attempts", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.prefix", "signals:snapshot:")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	// Chat
	v.SetDefault("chat.enabled", true)
	v.SetDefault("chat.poll_timeout", 60)
	v.SetDefault("chat.debug", false)

	// Scheduler
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.top_signals_schedule", "@every 1h")
	v.SetDefault("scheduler.market_summary_schedule", "@every 24h")
	v.SetDefault("scheduler.top_count", 3)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.delivery_timeout", 15)

	// Email
	v.SetDefault("email.from_email", "signals@tmsignals.local")
	v.SetDefault("email.from_name", "TM Signals")
	v.SetDefault("email.timeout", 10)

	v.SetDefault("jwt.issuer", "signals_service")
	v.SetDefault("jwt.token_ttl_hours", 720)

	// Tracing
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_rate", 1.0)
}

func overrideFromEnv(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		v.Set("log_level", level)
	}

	if apiKey := os.Getenv("TM_API_KEY"); apiKey != "" {
		v.Set("market_data.api_key", apiKey)
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		v.Set("chat.token", token)
	}
	if sendgridKey := os.Getenv("SENDGRID_API_KEY"); sendgridKey != "" {
		v.Set("email.api_key", sendgridKey)
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		v.Set("jwt.secret", jwtSecret)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		v.Set("redis.url", redisURL)
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}
	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		v.Set("store.backend", backend)
	}
}

func validate(config *Config) error {
	switch config.Store.Backend {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if config.Redis.URL == "" {
			return fmt.Errorf("redis url is required for the redis store backend")
		}
	case StorePostgres:
		if config.Database.URL == "" {
			return fmt.Errorf("database url is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}

	if config.Ledger.InitialBalance <= 0 {
		return fmt.Errorf("ledger initial balance must be positive")
	}

	if config.Chat.Enabled && config.Chat.Token == "" && config.IsProduction() {
		return fmt.Errorf("telegram bot token is required when chat is enabled")
	}

	if config.IsProduction() && config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Tracing.SampleRate < 0 || config.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1")
	}

	return nil
}
