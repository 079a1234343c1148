package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tm-signals/signals_service/internal/api/middleware"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/ledger"
	"github.com/tm-signals/signals_service/pkg/logger"
)

// PaperLedger is the paper trading surface used by the REST routes
type PaperLedger interface {
	Create(ctx context.Context, ownerID string, initialBalance decimal.Decimal) (*entities.Portfolio, error)
	Reset(ctx context.Context, ownerID string, initialBalance decimal.Decimal) (*entities.Portfolio, error)
	Buy(ctx context.Context, ownerID, symbol string, usdAmount decimal.Decimal) (*entities.TradeResult, error)
	Sell(ctx context.Context, ownerID, symbol string, order ledger.SellOrder) (*entities.TradeResult, error)
	Summarize(ctx context.Context, ownerID string) (*entities.PortfolioSummary, error)
	Performance(ctx context.Context, ownerID string) (*entities.PerformanceReport, error)
	RecentTransactions(ctx context.Context, ownerID string, limit int) ([]entities.Transaction, error)
}

type balanceRequest struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type buyRequest struct {
	Symbol    string          `json:"symbol" binding:"required"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
}

type sellRequest struct {
	Symbol     string           `json:"symbol" binding:"required"`
	Quantity   *decimal.Decimal `json:"quantity"`
	Percentage *decimal.Decimal `json:"percentage"`
}

// TransactionsResponse lists recent ledger entries, newest first
type TransactionsResponse struct {
	Transactions []entities.Transaction `json:"transactions"`
}

// PaperHandler serves the authenticated paper trading routes. The owner is
// always the bearer token subject.
type PaperHandler struct {
	ledger PaperLedger
	logger *logger.Logger
}

func NewPaperHandler(l PaperLedger, log *logger.Logger) *PaperHandler {
	return &PaperHandler{
		ledger: l,
		logger: log.Named("paper_handler"),
	}
}

// Create godoc
// @Summary Open a paper trading portfolio
// @Tags paper
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body balanceRequest false "Optional starting balance"
// @Success 201 {object} entities.Portfolio
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/portfolio [post]
func (h *PaperHandler) Create(c *gin.Context) {
	balance, ok := h.bindBalance(c)
	if !ok {
		return
	}

	p, err := h.ledger.Create(c.Request.Context(), middleware.OwnerID(c), balance)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Reset godoc
// @Summary Reset the paper trading portfolio
// @Tags paper
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body balanceRequest false "Optional starting balance"
// @Success 200 {object} entities.Portfolio
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/portfolio/reset [post]
func (h *PaperHandler) Reset(c *gin.Context) {
	balance, ok := h.bindBalance(c)
	if !ok {
		return
	}

	p, err := h.ledger.Reset(c.Request.Context(), middleware.OwnerID(c), balance)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Summary godoc
// @Summary Portfolio marked to market
// @Tags paper
// @Security BearerAuth
// @Produce json
// @Success 200 {object} entities.PortfolioSummary
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/portfolio [get]
func (h *PaperHandler) Summary(c *gin.Context) {
	summary, err := h.ledger.Summarize(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Buy godoc
// @Summary Buy a token with virtual cash
// @Tags paper
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body buyRequest true "Symbol and USD amount"
// @Success 200 {object} entities.TradeResult
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/buy [post]
func (h *PaperHandler) Buy(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "symbol and amount_usd are required")
		return
	}

	result, err := h.ledger.Buy(c.Request.Context(), middleware.OwnerID(c), req.Symbol, req.AmountUSD)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Sell godoc
// @Summary Sell part or all of a holding
// @Tags paper
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body sellRequest true "Symbol with quantity or percentage; neither sells everything"
// @Success 200 {object} entities.TradeResult
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/sell [post]
func (h *PaperHandler) Sell(c *gin.Context) {
	var req sellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "symbol is required")
		return
	}

	result, err := h.ledger.Sell(c.Request.Context(), middleware.OwnerID(c), req.Symbol, ledger.SellOrder{
		Quantity:   req.Quantity,
		Percentage: req.Percentage,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Performance godoc
// @Summary Realized performance and signal accuracy
// @Tags paper
// @Security BearerAuth
// @Produce json
// @Success 200 {object} entities.PerformanceReport
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/performance [get]
func (h *PaperHandler) Performance(c *gin.Context) {
	report, err := h.ledger.Performance(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Transactions godoc
// @Summary Recent transactions, newest first
// @Tags paper
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Number of transactions" default(5)
// @Success 200 {object} TransactionsResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/paper/transactions [get]
func (h *PaperHandler) Transactions(c *gin.Context) {
	limit, err := intQuery(c, ledger.DefaultRecentLimit, "limit")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	txs, err := h.ledger.RecentTransactions(c.Request.Context(), middleware.OwnerID(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TransactionsResponse{Transactions: txs})
}

// bindBalance reads an optional starting balance. Zero leaves the choice to the ledger.
func (h *PaperHandler) bindBalance(c *gin.Context) (decimal.Decimal, bool) {
	var req balanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid initial_balance")
			return decimal.Zero, false
		}
	}
	return req.InitialBalance, true
}
