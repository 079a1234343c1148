package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/logger"
	"github.com/tm-signals/signals_service/pkg/metrics"
	"github.com/tm-signals/signals_service/pkg/sanitize"
)

const (
	// DefaultRecentLimit is the number of transactions returned when no limit is given
	DefaultRecentLimit = 5
	snapshotName       = "portfolios"
)

var (
	// DefaultInitialBalance funds new and reset portfolios
	DefaultInitialBalance = decimal.NewFromInt(10000)

	hundred = decimal.NewFromInt(100)
)

// Repository holds portfolios in memory and persists them as one snapshot
type Repository interface {
	Get(ownerID string) (*entities.Portfolio, bool)
	Put(ownerID string, portfolio *entities.Portfolio)
	Save(ctx context.Context) error
	Len() int
}

// PriceSource resolves the current USD price of a ticker symbol
type PriceSource interface {
	SpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SignalSource returns the derived signal for a ticker symbol
type SignalSource interface {
	Advice(ctx context.Context, symbol string) (*entities.SignalAdvice, error)
}

// SellOrder selects how much of a holding to sell. Quantity wins over
// Percentage; with neither set the whole position is sold.
type SellOrder struct {
	Quantity   *decimal.Decimal
	Percentage *decimal.Decimal
}

// Service is the paper-trading ledger. It is the only writer of portfolios.
// A trade clones the stored portfolio, applies itself to the clone and puts it
// back, so snapshot encoding and readers never see a portfolio mid-change.
// Concurrent trades by the same owner may overwrite each other.
type Service struct {
	repo    Repository
	prices  PriceSource
	signals SignalSource
	logger  *logger.Logger
	now     func() time.Time

	defaultBalance decimal.Decimal
}

func NewService(repo Repository, prices PriceSource, signals SignalSource, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		prices:  prices,
		signals: signals,
		logger:  log.Named("ledger"),
		now:     time.Now,

		defaultBalance: DefaultInitialBalance,
	}
}

// WithDefaultBalance sets the balance used when Create or Reset get zero
func (s *Service) WithDefaultBalance(balance decimal.Decimal) *Service {
	if balance.IsPositive() {
		s.defaultBalance = balance
	}
	return s
}

// Get returns the stored portfolio of ownerID. Callers must not modify it.
func (s *Service) Get(ctx context.Context, ownerID string) (*entities.Portfolio, error) {
	p, ok := s.repo.Get(normalizeOwner(ownerID))
	if !ok {
		return nil, errNoPortfolio()
	}
	return p, nil
}

// Create opens a portfolio funded with initialBalance (zero means the default)
func (s *Service) Create(ctx context.Context, ownerID string, initialBalance decimal.Decimal) (*entities.Portfolio, error) {
	ownerID = normalizeOwner(ownerID)
	balance, err := s.resolveBalance(initialBalance)
	if err != nil {
		return nil, err
	}

	if _, exists := s.repo.Get(ownerID); exists {
		return nil, apperrors.AlreadyExists("you already have a portfolio, use reset to start over")
	}

	p := entities.NewPortfolio(ownerID, balance, s.now().UTC())
	s.repo.Put(ownerID, p)
	s.persist(ctx)

	s.logger.CtxInfo(ctx, "Portfolio created", "owner_id", ownerID, "balance", balance.String())
	return p, nil
}

// Reset discards all holdings and transactions and refunds the portfolio
func (s *Service) Reset(ctx context.Context, ownerID string, initialBalance decimal.Decimal) (*entities.Portfolio, error) {
	ownerID = normalizeOwner(ownerID)
	balance, err := s.resolveBalance(initialBalance)
	if err != nil {
		return nil, err
	}

	if _, exists := s.repo.Get(ownerID); !exists {
		return nil, errNoPortfolio()
	}

	p := entities.NewPortfolio(ownerID, balance, s.now().UTC())
	s.repo.Put(ownerID, p)
	s.persist(ctx)

	s.logger.CtxInfo(ctx, "Portfolio reset", "owner_id", ownerID, "balance", balance.String())
	return p, nil
}

// Buy spends usdAmount of cash on symbol at the current spot price
func (s *Service) Buy(ctx context.Context, ownerID, symbol string, usdAmount decimal.Decimal) (*entities.TradeResult, error) {
	ownerID = normalizeOwner(ownerID)
	symbol = normalizeSymbol(symbol)

	usdAmount = toCents(usdAmount)
	if !usdAmount.IsPositive() {
		metrics.RecordTrade(string(entities.TransactionTypeBuy), "rejected", 0)
		return nil, apperrors.InvalidAmount("amount must be greater than 0")
	}
	if symbol == "" {
		return nil, apperrors.ValidationError("symbol is required")
	}

	stored, ok := s.repo.Get(ownerID)
	if !ok {
		return nil, errNoPortfolio()
	}
	if usdAmount.GreaterThan(stored.CurrentBalance) {
		metrics.RecordTrade(string(entities.TransactionTypeBuy), "rejected", 0)
		return nil, apperrors.InsufficientBalance(fmt.Sprintf("insufficient balance, you have $%s available", stored.CurrentBalance.StringFixed(2)))
	}

	price, err := s.prices.SpotPrice(ctx, symbol)
	if err != nil {
		metrics.RecordTrade(string(entities.TransactionTypeBuy), "failed", 0)
		return nil, err
	}

	p := stored.Clone()
	quantity := usdAmount.Div(price)
	p.CurrentBalance = p.CurrentBalance.Sub(usdAmount)

	if h, held := p.Holdings[symbol]; held {
		newQuantity := h.Quantity.Add(quantity)
		h.AverageCost = h.Quantity.Mul(h.AverageCost).Add(usdAmount).Div(newQuantity)
		h.Quantity = newQuantity
	} else {
		p.Holdings[symbol] = &entities.Holding{Quantity: quantity, AverageCost: price}
	}

	advice := s.adviceFor(ctx, symbol, entities.TransactionTypeBuy)
	tx := entities.Transaction{
		Type:        entities.TransactionTypeBuy,
		Symbol:      symbol,
		Quantity:    quantity,
		UnitPrice:   price,
		TotalAmount: usdAmount,
		Timestamp:   s.now().UTC(),
	}
	if advice != nil {
		tx.SignalAction = advice.Action
		tx.SignalConfidence = advice.Confidence
	}
	p.Transactions = append(p.Transactions, tx)
	s.repo.Put(ownerID, p)
	s.persist(ctx)

	metrics.RecordTrade(string(entities.TransactionTypeBuy), "success", usdAmount.InexactFloat64())
	s.logger.CtxInfo(ctx, "Paper buy executed",
		"owner_id", ownerID,
		"symbol", symbol,
		"quantity", quantity.String(),
		"price", price.String())

	return &entities.TradeResult{
		Type:        entities.TransactionTypeBuy,
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: usdAmount,
		Balance:     p.CurrentBalance,
		Advice:      advice,
	}, nil
}

// Sell closes all or part of the position in symbol at the current spot price
func (s *Service) Sell(ctx context.Context, ownerID, symbol string, order SellOrder) (*entities.TradeResult, error) {
	ownerID = normalizeOwner(ownerID)
	symbol = normalizeSymbol(symbol)

	stored, ok := s.repo.Get(ownerID)
	if !ok {
		return nil, errNoPortfolio()
	}
	h, held := stored.Holdings[symbol]
	if !held {
		return nil, apperrors.NotFound(fmt.Sprintf("you don't own any %s", symbol))
	}

	quantity, err := resolveSellQuantity(h.Quantity, order)
	if err != nil {
		metrics.RecordTrade(string(entities.TransactionTypeSell), "rejected", 0)
		return nil, err
	}
	if !quantity.IsPositive() {
		metrics.RecordTrade(string(entities.TransactionTypeSell), "rejected", 0)
		return nil, apperrors.InvalidAmount("quantity must be greater than 0")
	}
	if quantity.GreaterThan(h.Quantity) {
		metrics.RecordTrade(string(entities.TransactionTypeSell), "rejected", 0)
		return nil, apperrors.InvalidAmount(fmt.Sprintf("you only have %s %s", h.Quantity.String(), symbol))
	}

	price, err := s.prices.SpotPrice(ctx, symbol)
	if err != nil {
		metrics.RecordTrade(string(entities.TransactionTypeSell), "failed", 0)
		return nil, err
	}

	p := stored.Clone()
	h = p.Holdings[symbol]

	// cash moves in whole cents
	proceeds := toCents(quantity.Mul(price))
	realized := toCents(price.Sub(h.AverageCost).Mul(quantity))
	realizedPercent := decimal.Zero
	if !h.AverageCost.IsZero() {
		realizedPercent = price.Div(h.AverageCost).Sub(decimal.NewFromInt(1)).Mul(hundred)
	}

	p.CurrentBalance = p.CurrentBalance.Add(proceeds)
	if quantity.Equal(h.Quantity) {
		delete(p.Holdings, symbol)
	} else {
		h.Quantity = h.Quantity.Sub(quantity)
	}

	advice := s.adviceFor(ctx, symbol, entities.TransactionTypeSell)
	tx := entities.Transaction{
		Type:               entities.TransactionTypeSell,
		Symbol:             symbol,
		Quantity:           quantity,
		UnitPrice:          price,
		TotalAmount:        proceeds,
		Timestamp:          s.now().UTC(),
		RealizedPnL:        &realized,
		RealizedPnLPercent: &realizedPercent,
	}
	if advice != nil {
		tx.SignalAction = advice.Action
		tx.SignalConfidence = advice.Confidence
	}
	p.Transactions = append(p.Transactions, tx)
	s.repo.Put(ownerID, p)
	s.persist(ctx)

	metrics.RecordTrade(string(entities.TransactionTypeSell), "success", proceeds.InexactFloat64())
	s.logger.CtxInfo(ctx, "Paper sell executed",
		"owner_id", ownerID,
		"symbol", symbol,
		"quantity", quantity.String(),
		"price", price.String(),
		"realized_pnl", realized.String())

	return &entities.TradeResult{
		Type:               entities.TransactionTypeSell,
		Symbol:             symbol,
		Quantity:           quantity,
		Price:              price,
		TotalAmount:        proceeds,
		Balance:            p.CurrentBalance,
		RealizedPnL:        &realized,
		RealizedPnLPercent: &realizedPercent,
		Advice:             advice,
	}, nil
}

// Summarize marks every holding to market. Price and signal lookups are best
// effort: a missing price falls back to average cost and a missing signal is
// reported as unavailable.
func (s *Service) Summarize(ctx context.Context, ownerID string) (*entities.PortfolioSummary, error) {
	p, ok := s.repo.Get(normalizeOwner(ownerID))
	if !ok {
		return nil, errNoPortfolio()
	}
	return s.markToMarket(ctx, p, true), nil
}

// Performance reports realized results and the current value of the portfolio
func (s *Service) Performance(ctx context.Context, ownerID string) (*entities.PerformanceReport, error) {
	p, ok := s.repo.Get(normalizeOwner(ownerID))
	if !ok {
		return nil, errNoPortfolio()
	}
	if len(p.Transactions) == 0 {
		return nil, apperrors.NoTransactions("no transactions yet, make some trades to see performance")
	}

	report := &entities.PerformanceReport{
		OwnerID:        p.OwnerID,
		InitialBalance: p.InitialBalance,
		TotalTrades:    len(p.Transactions),
		TotalGains:     decimal.Zero,
		TotalLosses:    decimal.Zero,
		WinRate:        decimal.Zero,
		ProfitFactor:   decimal.Zero,
	}

	tally := entities.SignalTally{Accuracy: decimal.Zero}
	for _, tx := range p.Transactions {
		followed := tx.FollowedSignal()
		if followed {
			tally.Followed++
		}

		if tx.Type == entities.TransactionTypeBuy {
			report.BuyCount++
			continue
		}

		report.SellCount++
		pnl := decimal.Zero
		if tx.RealizedPnL != nil {
			pnl = *tx.RealizedPnL
		}
		if pnl.IsPositive() {
			report.Winning++
			report.TotalGains = report.TotalGains.Add(pnl)
		} else {
			report.Losing++
			report.TotalLosses = report.TotalLosses.Add(pnl.Abs())
		}

		if followed {
			tally.FollowedSells++
			if pnl.IsPositive() {
				tally.Correct++
			}
		}
	}

	if report.SellCount > 0 {
		report.WinRate = decimal.NewFromInt(int64(report.Winning)).
			Div(decimal.NewFromInt(int64(report.SellCount))).
			Mul(hundred)
	}
	if report.TotalLosses.IsZero() {
		report.ProfitFactorUnbounded = true
	} else {
		report.ProfitFactor = report.TotalGains.Div(report.TotalLosses)
	}

	if tally.FollowedSells > 0 {
		tally.Accuracy = decimal.NewFromInt(int64(tally.Correct)).
			Div(decimal.NewFromInt(int64(tally.FollowedSells))).
			Mul(hundred)
		tally.OutperformsTrader = tally.Accuracy.GreaterThan(report.WinRate)
	}
	report.Signals = tally

	summary := s.markToMarket(ctx, p, false)
	report.TotalValue = summary.TotalValue
	report.TotalPnL = summary.TotalPnL
	report.TotalPnLPercent = summary.TotalPnLPercent

	return report, nil
}

// RecentTransactions returns up to limit transactions, newest first
func (s *Service) RecentTransactions(ctx context.Context, ownerID string, limit int) ([]entities.Transaction, error) {
	p, ok := s.repo.Get(normalizeOwner(ownerID))
	if !ok {
		return nil, errNoPortfolio()
	}
	if len(p.Transactions) == 0 {
		return nil, apperrors.NoTransactions("no transactions yet")
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	recent := make([]entities.Transaction, 0, limit)
	for i := len(p.Transactions) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, p.Transactions[i])
	}
	return recent, nil
}

func (s *Service) markToMarket(ctx context.Context, p *entities.Portfolio, withSignals bool) *entities.PortfolioSummary {
	symbols := make([]string, 0, len(p.Holdings))
	for symbol := range p.Holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	summary := &entities.PortfolioSummary{
		OwnerID:        p.OwnerID,
		Cash:           p.CurrentBalance,
		InitialBalance: p.InitialBalance,
		HoldingsValue:  decimal.Zero,
		Holdings:       make([]entities.HoldingSnapshot, 0, len(symbols)),
	}

	for _, symbol := range symbols {
		h := p.Holdings[symbol]
		snap := entities.HoldingSnapshot{
			Symbol:      symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
			Signal:      entities.ActionUnavailable,
		}

		price, err := s.prices.SpotPrice(ctx, symbol)
		if err != nil {
			s.logger.CtxWarn(ctx, "Using average cost for unpriced holding", "symbol", symbol, "error", err)
			price = h.AverageCost
			snap.PriceStale = true
		}

		snap.CurrentPrice = price
		snap.CurrentValue = h.Quantity.Mul(price)
		snap.UnrealizedPnL = price.Sub(h.AverageCost).Mul(h.Quantity)
		snap.UnrealizedPnLPercent = decimal.Zero
		if !h.AverageCost.IsZero() {
			snap.UnrealizedPnLPercent = price.Div(h.AverageCost).Sub(decimal.NewFromInt(1)).Mul(hundred)
		}

		if withSignals && s.signals != nil {
			if advice, err := s.signals.Advice(ctx, symbol); err == nil {
				snap.Signal = advice.Action
				snap.Confidence = advice.Confidence
			}
		}

		summary.HoldingsValue = summary.HoldingsValue.Add(snap.CurrentValue)
		summary.Holdings = append(summary.Holdings, snap)
	}

	sort.SliceStable(summary.Holdings, func(i, j int) bool {
		return summary.Holdings[i].CurrentValue.GreaterThan(summary.Holdings[j].CurrentValue)
	})

	summary.TotalValue = summary.Cash.Add(summary.HoldingsValue)
	summary.TotalPnL = summary.TotalValue.Sub(p.InitialBalance)
	summary.TotalPnLPercent = decimal.Zero
	if !p.InitialBalance.IsZero() {
		summary.TotalPnLPercent = summary.TotalPnL.Div(p.InitialBalance).Mul(hundred)
	}
	return summary
}

// adviceFor looks up the current signal and compares it with the trade direction
func (s *Service) adviceFor(ctx context.Context, symbol string, side entities.TransactionType) *entities.TradeAdvice {
	if s.signals == nil {
		return nil
	}
	advice, err := s.signals.Advice(ctx, symbol)
	if err != nil {
		s.logger.CtxDebug(ctx, "No signal for trade", "symbol", symbol, "error", err)
		return nil
	}

	aligned := (side == entities.TransactionTypeBuy && advice.Action == entities.ActionBuy) ||
		(side == entities.TransactionTypeSell && advice.Action == entities.ActionSell)

	return &entities.TradeAdvice{
		Action:     advice.Action,
		Confidence: advice.Confidence,
		Aligned:    aligned,
	}
}

// persist writes the full snapshot. Failures are logged and memory stays authoritative.
func (s *Service) persist(ctx context.Context) {
	metrics.PortfoliosGauge.Set(float64(s.repo.Len()))
	if err := s.repo.Save(ctx); err != nil {
		metrics.SnapshotWriteFailuresTotal.WithLabelValues(snapshotName).Inc()
		s.logger.CtxError(ctx, "Failed to persist portfolios", "error", err)
	}
}

func resolveSellQuantity(held decimal.Decimal, order SellOrder) (decimal.Decimal, error) {
	switch {
	case order.Quantity != nil:
		return *order.Quantity, nil
	case order.Percentage != nil:
		pct := *order.Percentage
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return decimal.Zero, apperrors.InvalidAmount("percentage must be between 0 and 100")
		}
		return held.Mul(pct).Div(hundred), nil
	default:
		return held, nil
	}
}

func (s *Service) resolveBalance(initial decimal.Decimal) (decimal.Decimal, error) {
	if initial.IsZero() {
		return s.defaultBalance, nil
	}
	if initial.IsNegative() {
		return decimal.Zero, apperrors.InvalidAmount("initial balance must be greater than 0")
	}
	return initial, nil
}

// toCents rounds a USD amount half away from zero
func toCents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

func errNoPortfolio() error {
	return apperrors.NotFound("you don't have a portfolio yet, create one first")
}

func normalizeOwner(ownerID string) string {
	return strings.TrimSpace(ownerID)
}

func normalizeSymbol(symbol string) string {
	return sanitize.Symbol(symbol)
}
