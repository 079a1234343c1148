package tokenmetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/pkg/circuitbreaker"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/metrics"
	"github.com/tm-signals/signals_service/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.tokenmetrics.com/v2"
	defaultTimeout = 30 * time.Second
	defaultWindow  = 30 * 24 * time.Hour
	defaultLimit   = 100
	defaultTopK    = 20
	dateLayout     = "2006-01-02"
	serviceName    = "tokenmetrics"
)

// ErrMissingAPIKey is returned by every call when no API key is configured
var ErrMissingAPIKey = errors.New("token metrics API key not configured")

// Config represents Token Metrics API configuration
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// DefaultWindow is the lookback used when a query carries no date range
	DefaultWindow time.Duration
	Breaker       circuitbreaker.Config
}

// Client is the market data gateway to the Token Metrics v2 API
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// NewClient creates a new Token Metrics client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.DefaultWindow == 0 {
		config.DefaultWindow = defaultWindow
	}
	if config.Breaker.Timeout == 0 {
		config.Breaker = circuitbreaker.DefaultConfig()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: circuitbreaker.New("TokenMetricsAPI", config.Breaker, logger),
		logger:         logger,
		tracer:         otel.Tracer("tokenmetrics-client"),
		now:            time.Now,
	}
}

// Tokens lists tokens, optionally filtered by symbol, id, category or exchange
func (c *Client) Tokens(ctx context.Context, q TokenQuery) ([]entities.Token, error) {
	params := paging(q.Limit, q.Page)
	setList(params, "symbol", q.Symbols)
	setList(params, "token_id", formatIDs(q.TokenIDs))
	setString(params, "category", q.Category)
	setString(params, "exchange", q.Exchange)

	return getRows[entities.Token](ctx, c, "/tokens", params)
}

// TopTokens lists the top tokens by market cap
func (c *Client) TopTokens(ctx context.Context, topK, page int) ([]entities.Token, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	params := url.Values{}
	params.Set("top_k", strconv.Itoa(topK))
	params.Set("page", strconv.Itoa(page))

	return getRows[entities.Token](ctx, c, "/top-market-cap-tokens", params)
}

// TradingSignals returns dated signal rows
func (c *Client) TradingSignals(ctx context.Context, q SignalQuery) ([]entities.TradingSignal, error) {
	params := paging(q.Limit, q.Page)
	c.setWindow(params, q.StartDate, q.EndDate)
	setList(params, "symbol", q.Symbols)
	setList(params, "token_id", formatIDs(q.TokenIDs))
	setString(params, "category", q.Category)
	if q.Signal != nil {
		params.Set("signal", strconv.Itoa(*q.Signal))
	}

	return getRows[entities.TradingSignal](ctx, c, "/trading-signals", params)
}

// TraderGrades returns dated trader grade rows
func (c *Client) TraderGrades(ctx context.Context, q GradeQuery) ([]entities.TraderGrade, error) {
	params := paging(q.Limit, q.Page)
	c.setWindow(params, q.StartDate, q.EndDate)
	setList(params, "symbol", q.Symbols)
	setList(params, "token_id", formatIDs(q.TokenIDs))
	setString(params, "category", q.Category)

	return getRows[entities.TraderGrade](ctx, c, "/trader-grades", params)
}

// Prices returns current prices. Symbols are resolved to token ids first.
func (c *Client) Prices(ctx context.Context, q PriceQuery) ([]entities.TokenPrice, error) {
	ids := q.TokenIDs
	if len(ids) == 0 && len(q.Symbols) > 0 {
		tokens, err := c.Tokens(ctx, TokenQuery{Symbols: q.Symbols})
		if err != nil {
			return nil, err
		}
		for _, t := range tokens {
			ids = append(ids, t.TokenID)
		}
		if len(ids) == 0 {
			c.logger.Warn("No token IDs found for symbols", zap.Strings("symbols", q.Symbols))
			return nil, apperrors.DataUnavailable(fmt.Sprintf("no token IDs found for symbols: %s", strings.Join(q.Symbols, ",")))
		}
	}

	params := url.Values{}
	setList(params, "token_id", formatIDs(ids))

	return getRows[entities.TokenPrice](ctx, c, "/price", params)
}

// MarketMetrics returns dated market-wide metrics
func (c *Client) MarketMetrics(ctx context.Context, q MetricsQuery) ([]entities.MarketMetric, error) {
	if q.Limit <= 0 {
		q.Limit = 30
	}
	params := paging(q.Limit, q.Page)
	c.setWindow(params, q.StartDate, q.EndDate)

	return getRows[entities.MarketMetric](ctx, c, "/market-metrics", params)
}

// AskAgent forwards a free-form question to the AI agent and returns its raw reply
func (c *Client) AskAgent(ctx context.Context, question string) (AgentAnswer, error) {
	if c.config.APIKey == "" {
		return nil, apperrors.Wrap(ErrMissingAPIKey, apperrors.ErrCodeUpstream, "market data API key not configured")
	}

	ctx, span := c.tracer.Start(ctx, "tokenmetrics.tmai")
	defer span.End()

	body := agentRequest{Messages: []agentMessage{{User: question}}}

	var answer json.RawMessage
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, http.MethodPost, "/tmai", nil, body, &answer)
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Error("AI agent request failed", zap.Error(err))
		return nil, apperrors.Upstream("market data", err)
	}
	return answer, nil
}

// Ping issues the cheapest listing call; used by health checks
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Tokens(ctx, TokenQuery{Limit: 1})
	return err
}

func getRows[T any](ctx context.Context, c *Client, endpoint string, params url.Values) ([]T, error) {
	if c.config.APIKey == "" {
		return nil, apperrors.Wrap(ErrMissingAPIKey, apperrors.ErrCodeUpstream, "market data API key not configured")
	}

	ctx, span := c.tracer.Start(ctx, "tokenmetrics"+strings.ReplaceAll(endpoint, "/", "."), trace.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
	defer span.End()

	var env envelope[T]
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, http.MethodGet, endpoint, params, nil, &env)
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Error("Token Metrics request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, apperrors.Upstream("market data", err)
	}

	if env.Success != nil && !*env.Success {
		err := errors.New(env.Message)
		span.RecordError(err)
		c.logger.Warn("Token Metrics reported failure",
			zap.String("endpoint", endpoint),
			zap.String("message", env.Message))
		return nil, apperrors.Upstream("market data", err)
	}

	span.SetAttributes(attribute.Int("rows", len(env.Data)))
	if env.Data == nil {
		return []T{}, nil
	}
	return env.Data, nil
}

// doRequest performs a single HTTP request
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("api_key", c.config.APIKey)
	tracing.InjectTraceContext(ctx, req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Sending Token Metrics request",
		zap.String("method", method),
		zap.String("endpoint", endpoint))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPICall(serviceName, endpoint, 0, time.Since(start).Seconds())
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordExternalAPICall(serviceName, endpoint, resp.StatusCode, time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) setWindow(params url.Values, start, end time.Time) {
	if end.IsZero() {
		end = c.now()
	}
	if start.IsZero() {
		start = end.Add(-c.config.DefaultWindow)
	}
	params.Set("startDate", start.Format(dateLayout))
	params.Set("endDate", end.Format(dateLayout))
}

func paging(limit, page int) url.Values {
	if limit <= 0 {
		limit = defaultLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	return params
}

func setList(params url.Values, key string, values []string) {
	if len(values) > 0 {
		params.Set(key, strings.Join(values, ","))
	}
}

func setString(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func formatIDs(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}
