package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signals_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Paper trading metrics
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_paper_trades_total",
			Help: "Total number of paper trades attempted",
		},
		[]string{"type", "status"},
	)

	TradeAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signals_paper_trade_amount_usd",
			Help:    "Paper trade notional in USD",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"type"},
	)

	PortfoliosGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signals_paper_portfolios",
			Help: "Number of paper portfolios held in memory",
		},
	)

	SnapshotWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_snapshot_write_failures_total",
			Help: "Total number of failed snapshot writes",
		},
		[]string{"snapshot"},
	)

	// External service metrics
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_external_api_calls_total",
			Help: "Total number of external API calls",
		},
		[]string{"service", "endpoint", "status_code"},
	)

	ExternalAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signals_external_api_call_duration_seconds",
			Help:    "External API call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"service", "endpoint"},
	)

	PriceCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_price_cache_lookups_total",
			Help: "Spot price cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	ResponseCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_response_cache_lookups_total",
			Help: "Market data response cache lookups by result",
		},
		[]string{"result"},
	)

	// Notification metrics
	DigestDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_digest_deliveries_total",
			Help: "Total number of digest deliveries",
		},
		[]string{"kind", "channel", "status"},
	)

	ChatCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_chat_commands_total",
			Help: "Total number of chat commands and callbacks handled",
		},
		[]string{"command"},
	)

	// Security metrics
	AuthenticationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_authentication_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"}, // success, failed
	)

	RateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"endpoint"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordTrade records a paper trade outcome
func RecordTrade(tradeType, status string, amount float64) {
	TradesTotal.WithLabelValues(tradeType, status).Inc()
	if amount > 0 {
		TradeAmount.WithLabelValues(tradeType).Observe(amount)
	}
}

// RecordExternalAPICall records external API call metrics
func RecordExternalAPICall(service, endpoint string, statusCode int, duration float64) {
	ExternalAPICallsTotal.WithLabelValues(service, endpoint, strconv.Itoa(statusCode)).Inc()
	ExternalAPICallDuration.WithLabelValues(service, endpoint).Observe(duration)
}

// RecordDigestDelivery records one digest delivery attempt
func RecordDigestDelivery(kind, channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	DigestDeliveriesTotal.WithLabelValues(kind, channel, status).Inc()
}
