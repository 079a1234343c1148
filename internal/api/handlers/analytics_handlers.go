package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/analytics"
	"github.com/tm-signals/signals_service/pkg/logger"
)

// PortfolioAnalytics is the stateless analytics surface
type PortfolioAnalytics interface {
	Analyze(ctx context.Context, holdings map[string]float64) (*entities.AggregatePortfolio, error)
	Optimize(ctx context.Context, holdings map[string]float64, tolerance string) (*entities.OptimizationResult, error)
	RecommendTop(ctx context.Context, topK int) ([]entities.TopRecommendation, error)
}

type holdingsRequest struct {
	Holdings      map[string]float64 `json:"holdings"`
	RiskTolerance string             `json:"risk_tolerance"`
}

// RecommendationsResponse lists the strongest buy candidates
type RecommendationsResponse struct {
	Recommendations []entities.TopRecommendation `json:"recommendations"`
}

type AnalyticsHandler struct {
	analytics PortfolioAnalytics
	logger    *logger.Logger
}

func NewAnalyticsHandler(svc PortfolioAnalytics, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc, logger: log.Named("analytics_handler")}
}

// Analyze godoc
// @Summary Analyze a set of holdings
// @Tags portfolio
// @Accept json
// @Produce json
// @Param request body holdingsRequest true "Holdings keyed by symbol"
// @Success 200 {object} entities.AggregatePortfolio
// @Failure 400 {object} ErrorResponse
// @Router /api/portfolio/analyze [post]
func (h *AnalyticsHandler) Analyze(c *gin.Context) {
	req, ok := bindHoldings(c)
	if !ok {
		return
	}

	result, err := h.analytics.Analyze(c.Request.Context(), req.Holdings)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Optimize godoc
// @Summary Suggest a target allocation for a risk tolerance
// @Tags portfolio
// @Accept json
// @Produce json
// @Param request body holdingsRequest true "Holdings and risk tolerance (low, medium, high)"
// @Success 200 {object} entities.OptimizationResult
// @Failure 400 {object} ErrorResponse
// @Router /api/portfolio/optimize [post]
func (h *AnalyticsHandler) Optimize(c *gin.Context) {
	req, ok := bindHoldings(c)
	if !ok {
		return
	}

	result, err := h.analytics.Optimize(c.Request.Context(), req.Holdings, req.RiskTolerance)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Recommended godoc
// @Summary Top buy recommendations
// @Tags portfolio
// @Produce json
// @Param top_k query int false "Number of recommendations" default(5)
// @Success 200 {object} RecommendationsResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/tokens/recommended [get]
func (h *AnalyticsHandler) Recommended(c *gin.Context) {
	topK, err := intQuery(c, analytics.DefaultTopK, "top_k", "limit")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	recs, err := h.analytics.RecommendTop(c.Request.Context(), topK)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if recs == nil {
		recs = []entities.TopRecommendation{}
	}
	c.JSON(http.StatusOK, RecommendationsResponse{Recommendations: recs})
}

func bindHoldings(c *gin.Context) (holdingsRequest, bool) {
	var req holdingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Holdings) == 0 {
		respondBadRequest(c, "No holdings provided")
		return req, false
	}
	return req, true
}
