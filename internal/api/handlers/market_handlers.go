package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tm-signals/signals_service/internal/adapters/tokenmetrics"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/pkg/logger"
	"github.com/tm-signals/signals_service/pkg/sanitize"
)

// MarketGateway is the market data API surface exposed as passthrough routes
type MarketGateway interface {
	Tokens(ctx context.Context, q tokenmetrics.TokenQuery) ([]entities.Token, error)
	TopTokens(ctx context.Context, topK, page int) ([]entities.Token, error)
	TradingSignals(ctx context.Context, q tokenmetrics.SignalQuery) ([]entities.TradingSignal, error)
	TraderGrades(ctx context.Context, q tokenmetrics.GradeQuery) ([]entities.TraderGrade, error)
	Prices(ctx context.Context, q tokenmetrics.PriceQuery) ([]entities.TokenPrice, error)
	MarketMetrics(ctx context.Context, q tokenmetrics.MetricsQuery) ([]entities.MarketMetric, error)
	AskAgent(ctx context.Context, question string) (tokenmetrics.AgentAnswer, error)
}

// SignalAdvisor derives the current call for one symbol
type SignalAdvisor interface {
	Advice(ctx context.Context, symbol string) (*entities.SignalAdvice, error)
}

// MarketView builds the market-wide overview
type MarketView interface {
	Overview(ctx context.Context) (*entities.MarketOverview, error)
}

// DataResponse wraps passthrough rows the way the upstream API does
type DataResponse[T any] struct {
	Data []T `json:"data"`
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// MarketHandler serves the market data passthrough and derived signal routes
type MarketHandler struct {
	gateway MarketGateway
	signals SignalAdvisor
	market  MarketView
	logger  *logger.Logger
}

func NewMarketHandler(gateway MarketGateway, signals SignalAdvisor, market MarketView, log *logger.Logger) *MarketHandler {
	return &MarketHandler{
		gateway: gateway,
		signals: signals,
		market:  market,
		logger:  log.Named("market_handler"),
	}
}

// GetTokens godoc
// @Summary List tokens
// @Tags market
// @Produce json
// @Param symbols query string false "Comma separated symbols"
// @Param token_ids query string false "Comma separated token ids"
// @Param category query string false "Category filter"
// @Param exchange query string false "Exchange filter"
// @Param limit query int false "Page size" default(100)
// @Param page query int false "Page" default(0)
// @Success 200 {object} DataResponse[entities.Token]
// @Failure 400 {object} ErrorResponse
// @Router /api/tokens [get]
func (h *MarketHandler) GetTokens(c *gin.Context) {
	ids, err := idsQuery(c, "token_ids")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	limit, page, ok := h.paging(c, 100)
	if !ok {
		return
	}

	rows, err := h.gateway.Tokens(c.Request.Context(), tokenmetrics.TokenQuery{
		Symbols:  csvQuery(c, "symbols"),
		TokenIDs: ids,
		Category: c.Query("category"),
		Exchange: c.Query("exchange"),
		Limit:    limit,
		Page:     page,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse[entities.Token]{Data: rows})
}

// GetTopTokens godoc
// @Summary Top tokens by market cap
// @Tags market
// @Produce json
// @Param top_k query int false "Number of tokens" default(20)
// @Param page query int false "Page" default(0)
// @Success 200 {object} DataResponse[entities.Token]
// @Failure 400 {object} ErrorResponse
// @Router /api/tokens/top [get]
func (h *MarketHandler) GetTopTokens(c *gin.Context) {
	topK, err := intQuery(c, 20, "top_k", "limit")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	page, err := intQuery(c, 0, "page")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	rows, err := h.gateway.TopTokens(c.Request.Context(), topK, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse[entities.Token]{Data: rows})
}

// GetTradingSignals godoc
// @Summary Trading signals
// @Tags market
// @Produce json
// @Param symbols query string false "Comma separated symbols"
// @Param signal query int false "1 bullish, -1 bearish, 0 neutral"
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {object} DataResponse[entities.TradingSignal]
// @Failure 400 {object} ErrorResponse
// @Router /api/trading-signals [get]
func (h *MarketHandler) GetTradingSignals(c *gin.Context) {
	ids, err := idsQuery(c, "token_ids")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	start, end, ok := h.window(c)
	if !ok {
		return
	}
	limit, page, ok := h.paging(c, 100)
	if !ok {
		return
	}

	q := tokenmetrics.SignalQuery{
		Symbols:   csvQuery(c, "symbols"),
		TokenIDs:  ids,
		Category:  c.Query("category"),
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Page:      page,
	}
	if raw := c.Query("signal"); raw != "" {
		signal, err := strconv.Atoi(raw)
		if err != nil || signal < -1 || signal > 1 {
			respondBadRequest(c, "invalid signal: "+raw)
			return
		}
		q.Signal = &signal
	}

	rows, err := h.gateway.TradingSignals(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse[entities.TradingSignal]{Data: rows})
}

// GetTraderGrades godoc
// @Summary Trader grades
// @Tags market
// @Produce json
// @Param symbols query string false "Comma separated symbols"
// @Success 200 {object} DataResponse[entities.TraderGrade]
// @Failure 400 {object} ErrorResponse
// @Router /api/trader-grades [get]
func (h *MarketHandler) GetTraderGrades(c *gin.Context) {
	ids, err := idsQuery(c, "token_ids")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	start, end, ok := h.window(c)
	if !ok {
		return
	}
	limit, page, ok := h.paging(c, 100)
	if !ok {
		return
	}

	rows, err := h.gateway.TraderGrades(c.Request.Context(), tokenmetrics.GradeQuery{
		Symbols:   csvQuery(c, "symbols"),
		TokenIDs:  ids,
		Category:  c.Query("category"),
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Page:      page,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse[entities.TraderGrade]{Data: rows})
}

// GetMarketMetrics godoc
// @Summary Market-wide metrics
// @Tags market
// @Produce json
// @Param limit query int false "Page size" default(30)
// @Success 200 {object} DataResponse[entities.MarketMetric]
// @Failure 400 {object} ErrorResponse
// @Router /api/market-metrics [get]
func (h *MarketHandler) GetMarketMetrics(c *gin.Context) {
	start, end, ok := h.window(c)
	if !ok {
		return
	}
	limit, page, ok := h.paging(c, 30)
	if !ok {
		return
	}

	rows, err := h.gateway.MarketMetrics(c.Request.Context(), tokenmetrics.MetricsQuery{
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Page:      page,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse[entities.MarketMetric]{Data: rows})
}

// GetPrice godoc
// @Summary Current token prices
// @Tags market
// @Produce json
// @Param token_ids query string false "Comma separated token ids"
// @Param symbols query string false "Comma separated symbols, used when token_ids is empty"
// @Success 200 {object} DataResponse[entities.TokenPrice]
// @Failure 400 {object} ErrorResponse
// @Router /api/price [get]
func (h *MarketHandler) GetPrice(c *gin.Context) {
	ids, err := idsQuery(c, "token_ids")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	symbols := csvQuery(c, "symbols")
	if len(ids) == 0 && len(symbols) == 0 {
		respondBadRequest(c, "token_ids or symbols is required")
		return
	}

	rows, err := h.gateway.Prices(c.Request.Context(), tokenmetrics.PriceQuery{TokenIDs: ids, Symbols: symbols})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DataResponse[entities.TokenPrice]{Data: rows})
}

// AskAgent godoc
// @Summary Ask the market data AI agent
// @Tags market
// @Accept json
// @Produce json
// @Param request body askRequest true "Question"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Router /api/ai/ask [post]
func (h *MarketHandler) AskAgent(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		respondBadRequest(c, "No question provided")
		return
	}

	answer, err := h.gateway.AskAgent(c.Request.Context(), req.Question)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", answer)
}

// GetSignal godoc
// @Summary Current signal advice for a symbol
// @Tags signals
// @Produce json
// @Param symbol path string true "Token symbol"
// @Success 200 {object} entities.SignalAdvice
// @Failure 400 {object} ErrorResponse
// @Router /api/signals/{symbol} [get]
func (h *MarketHandler) GetSignal(c *gin.Context) {
	symbol := sanitize.Symbol(c.Param("symbol"))
	if symbol == "" {
		respondBadRequest(c, "symbol is required")
		return
	}

	advice, err := h.signals.Advice(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, advice)
}

// GetOverview godoc
// @Summary Market overview with sentiment
// @Tags signals
// @Produce json
// @Success 200 {object} entities.MarketOverview
// @Failure 400 {object} ErrorResponse
// @Router /api/market/overview [get]
func (h *MarketHandler) GetOverview(c *gin.Context) {
	overview, err := h.market.Overview(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *MarketHandler) paging(c *gin.Context, defLimit int) (limit, page int, ok bool) {
	limit, err := intQuery(c, defLimit, "limit")
	if err != nil {
		respondBadRequest(c, err.Error())
		return 0, 0, false
	}
	page, err = intQuery(c, 0, "page")
	if err != nil {
		respondBadRequest(c, err.Error())
		return 0, 0, false
	}
	return limit, page, true
}

func (h *MarketHandler) window(c *gin.Context) (start, end time.Time, ok bool) {
	start, err := dateQuery(c, "start_date")
	if err != nil {
		respondBadRequest(c, err.Error())
		return start, end, false
	}
	end, err = dateQuery(c, "end_date")
	if err != nil {
		respondBadRequest(c, err.Error())
		return start, end, false
	}
	return start, end, true
}
