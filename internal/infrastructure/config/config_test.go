package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "portfolios", cfg.Store.Portfolios)
	assert.Equal(t, 5, cfg.Store.ConnectAttempts)
	assert.Equal(t, 30, cfg.Server.TradeLimitPerMin)
	assert.Equal(t, 30*24*time.Hour, cfg.MarketData.DefaultWindow())
	assert.Equal(t, 180*24*time.Hour, cfg.MarketData.SignalLookback())
	assert.Equal(t, 30*time.Second, cfg.SpotPrice.CacheTTL())
	assert.Equal(t, 10000.0, cfg.Ledger.InitialBalance)
	assert.Equal(t, "@every 1h", cfg.Scheduler.TopSignalsSchedule)
	assert.Equal(t, 3, cfg.Scheduler.TopCount)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TM_API_KEY", "tm-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "tm-key", cfg.MarketData.APIKey)
	assert.Equal(t, "123:abc", cfg.Chat.Token)
	assert.Equal(t, "SG.key", cfg.Email.APIKey)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Environment: EnvDevelopment,
			Store:       StoreConfig{Backend: StoreFile},
			Ledger:      LedgerConfig{InitialBalance: 10000},
			Tracing:     TracingConfig{SampleRate: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }, "unknown store backend"},
		{"postgres without url", func(c *Config) { c.Store.Backend = StorePostgres }, "database url is required"},
		{"non positive balance", func(c *Config) { c.Ledger.InitialBalance = 0 }, "initial balance must be positive"},
		{"production without jwt", func(c *Config) {
			c.Environment = EnvProduction
			c.Chat.Token = "t"
		}, "JWT secret is required"},
		{"production chat without token", func(c *Config) {
			c.Environment = EnvProduction
			c.Chat.Enabled = true
			c.JWT.Secret = "x"
		}, "telegram bot token is required"},
		{"sample rate out of range", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
