package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/sony/gobreaker"
	"github.com/tm-signals/signals_service/pkg/circuitbreaker"
	"github.com/tm-signals/signals_service/pkg/metrics"
	"github.com/tm-signals/signals_service/pkg/tracing"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://api.coingecko.com"
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Second
	serviceName     = "coingecko"
	vsCurrency      = "usd"
)

// Config represents CoinGecko configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	// CacheTTL bounds how stale a served spot price may be; zero disables caching
	CacheTTL time.Duration
	Breaker  circuitbreaker.Config
}

// Client looks up USD spot prices by canonical coin id
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	cache          *ristretto.Cache
	logger         *zap.Logger
}

// NewClient creates a new CoinGecko client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Breaker.Timeout == 0 {
		config.Breaker = circuitbreaker.DefaultConfig()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: circuitbreaker.New("CoinGeckoAPI", config.Breaker, logger),
		logger:         logger,
	}

	if config.CacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 10000,
			MaxCost:     1000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create price cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// SpotPrice returns the USD price for a canonical coin id. found is false when
// the source returned an empty mapping for the id.
func (c *Client) SpotPrice(ctx context.Context, coinID string) (price float64, found bool, err error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(coinID); ok {
			metrics.PriceCacheTotal.WithLabelValues("hit").Inc()
			return v.(float64), true, nil
		}
		metrics.PriceCacheTotal.WithLabelValues("miss").Inc()
	}

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, coinID)
	})
	if err != nil {
		c.logger.Warn("Spot price lookup failed",
			zap.String("coin_id", coinID),
			zap.Error(err))
		return 0, false, err
	}

	quotes := result.(map[string]map[string]float64)
	quote, ok := quotes[coinID]
	if !ok {
		return 0, false, nil
	}
	price, ok = quote[vsCurrency]
	if !ok {
		return 0, false, nil
	}

	if c.cache != nil {
		c.cache.SetWithTTL(coinID, price, 1, c.config.CacheTTL)
	}
	return price, true, nil
}

// Ping fetches a bitcoin quote past the cache; used by health checks
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fetch(ctx, "bitcoin")
	return err
}

// Close releases the cache goroutines
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

func (c *Client) fetch(ctx context.Context, coinID string) (map[string]map[string]float64, error) {
	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", vsCurrency)
	fullURL := c.config.BaseURL + "/api/v3/simple/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	tracing.InjectTraceContext(ctx, req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPICall(serviceName, "/simple/price", 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordExternalAPICall(serviceName, "/simple/price", resp.StatusCode, time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	quotes := make(map[string]map[string]float64)
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return quotes, nil
}
