package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tm-signals/signals_service/internal/workers/notification_scheduler"
	"github.com/tm-signals/signals_service/pkg/health"
	"github.com/tm-signals/signals_service/pkg/version"
)

// HealthAggregator runs every registered dependency check
type HealthAggregator interface {
	Check(ctx context.Context) (health.Status, map[string]health.CheckResult)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker HealthAggregator
}

func NewHealthHandler(checker HealthAggregator) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health performs health checks on the store backend and upstream APIs
// @Summary Get application health status
// @Tags health
// @Produce json
// @Success 200 {object} health.HealthResponse
// @Failure 503 {object} health.HealthResponse
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status, checks := h.checker.Check(c.Request.Context())

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Checks:    checks,
	})
}

// Version returns build information
// @Summary Build information
// @Tags health
// @Produce json
// @Success 200 {object} version.Info
// @Router /version [get]
func VersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	}
}

// Metrics exposes Prometheus metrics
func Metrics() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// WebsocketServer accepts websocket subscribers
type WebsocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// StreamDigests upgrades the connection and pushes every digest the
// scheduler broadcasts
// @Summary Live digest stream (websocket)
// @Tags stream
// @Router /api/stream/digests [get]
func StreamDigests(server WebsocketServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeWS(c.Writer, c.Request)
	}
}

// DigestScheduler is the admin view of the digest scheduler
type DigestScheduler interface {
	GetStatus() notification_scheduler.Status
	RunTopSignalsNow(ctx context.Context)
	RunMarketSummaryNow(ctx context.Context)
}

// AdminHandler exposes scheduler status and manual digest runs
type AdminHandler struct {
	scheduler DigestScheduler
}

func NewAdminHandler(scheduler DigestScheduler) *AdminHandler {
	return &AdminHandler{scheduler: scheduler}
}

// SchedulerStatus godoc
// @Summary Digest scheduler status
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} notification_scheduler.Status
// @Router /api/admin/scheduler [get]
func (h *AdminHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.GetStatus())
}

// RunDigest godoc
// @Summary Build and deliver a digest now
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param kind path string true "top_signals or market_summary"
// @Success 202 {object} object
// @Failure 400 {object} ErrorResponse
// @Router /api/admin/scheduler/run/{kind} [post]
func (h *AdminHandler) RunDigest(c *gin.Context) {
	// Delivery outlives the request
	ctx := context.WithoutCancel(c.Request.Context())

	switch kind := c.Param("kind"); kind {
	case "top_signals":
		go h.scheduler.RunTopSignalsNow(ctx)
	case "market_summary":
		go h.scheduler.RunMarketSummaryNow(ctx)
	default:
		respondBadRequest(c, "unknown digest kind: "+kind)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "kind": c.Param("kind")})
}
