package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Portfolio is a user's virtual trading account
type Portfolio struct {
	OwnerID        string              `json:"owner_id"`
	CreatedAt      time.Time           `json:"created_at"`
	InitialBalance decimal.Decimal     `json:"initial_balance"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
	Holdings       map[string]*Holding `json:"holdings"`
	Transactions   []Transaction       `json:"transactions"`
}

// NewPortfolio returns an empty portfolio funded with balance
func NewPortfolio(ownerID string, balance decimal.Decimal, now time.Time) *Portfolio {
	return &Portfolio{
		OwnerID:        ownerID,
		CreatedAt:      now,
		InitialBalance: balance,
		CurrentBalance: balance,
		Holdings:       make(map[string]*Holding),
		Transactions:   []Transaction{},
	}
}

// Clone returns a deep copy. Stored portfolios are replaced by modified
// clones and never changed in place.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Holdings = make(map[string]*Holding, len(p.Holdings))
	for symbol, h := range p.Holdings {
		held := *h
		c.Holdings[symbol] = &held
	}
	c.Transactions = make([]Transaction, len(p.Transactions), len(p.Transactions)+1)
	copy(c.Transactions, p.Transactions)
	return &c
}

// Holding is an open position. A symbol is only present while Quantity > 0.
type Holding struct {
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// Transaction is an immutable ledger record
type Transaction struct {
	Type               TransactionType  `json:"type"`
	Symbol             string           `json:"symbol"`
	Quantity           decimal.Decimal  `json:"quantity"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`
	Timestamp          time.Time        `json:"timestamp"`
	RealizedPnL        *decimal.Decimal `json:"realized_pnl,omitempty"`
	RealizedPnLPercent *decimal.Decimal `json:"realized_pnl_percent,omitempty"`
	SignalAction       SignalAction     `json:"signal_action,omitempty"`
	SignalConfidence   float64          `json:"signal_confidence,omitempty"`
}

// FollowedSignal reports whether the trade went the way the signal pointed
func (t Transaction) FollowedSignal() bool {
	switch t.Type {
	case TransactionTypeBuy:
		return t.SignalAction == ActionBuy
	case TransactionTypeSell:
		return t.SignalAction == ActionSell
	}
	return false
}

// TradeAdvice compares a trade with the signal current at execution time
type TradeAdvice struct {
	Action     SignalAction `json:"action"`
	Confidence float64      `json:"confidence"`
	Aligned    bool         `json:"aligned"`
}

// TradeResult is returned by a successful buy or sell
type TradeResult struct {
	Type               TransactionType  `json:"type"`
	Symbol             string           `json:"symbol"`
	Quantity           decimal.Decimal  `json:"quantity"`
	Price              decimal.Decimal  `json:"price"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`
	Balance            decimal.Decimal  `json:"balance"`
	RealizedPnL        *decimal.Decimal `json:"realized_pnl,omitempty"`
	RealizedPnLPercent *decimal.Decimal `json:"realized_pnl_percent,omitempty"`
	Advice             *TradeAdvice     `json:"advice,omitempty"`
}

// HoldingSnapshot is a holding marked to market. Never persisted.
type HoldingSnapshot struct {
	Symbol               string          `json:"symbol"`
	Quantity             decimal.Decimal `json:"quantity"`
	AverageCost          decimal.Decimal `json:"average_cost"`
	CurrentPrice         decimal.Decimal `json:"current_price"`
	CurrentValue         decimal.Decimal `json:"current_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	Signal               SignalAction    `json:"signal"`
	Confidence           float64         `json:"confidence"`
	PriceStale           bool            `json:"price_stale,omitempty"`
}

// PortfolioSummary is the marked-to-market view of a portfolio
type PortfolioSummary struct {
	OwnerID         string            `json:"owner_id"`
	Cash            decimal.Decimal   `json:"cash"`
	HoldingsValue   decimal.Decimal   `json:"holdings_value"`
	TotalValue      decimal.Decimal   `json:"total_value"`
	InitialBalance  decimal.Decimal   `json:"initial_balance"`
	TotalPnL        decimal.Decimal   `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal   `json:"total_pnl_percent"`
	Holdings        []HoldingSnapshot `json:"holdings"`
}

// SignalTally counts how trades lined up with the signals seen when they were made
type SignalTally struct {
	Followed          int             `json:"followed"`
	FollowedSells     int             `json:"followed_sells"`
	Correct           int             `json:"correct"`
	Accuracy          decimal.Decimal `json:"accuracy"`
	OutperformsTrader bool            `json:"outperforms_trader"`
}

// PerformanceReport aggregates realized results over the ledger
type PerformanceReport struct {
	OwnerID               string          `json:"owner_id"`
	InitialBalance        decimal.Decimal `json:"initial_balance"`
	TotalValue            decimal.Decimal `json:"total_value"`
	TotalPnL              decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent       decimal.Decimal `json:"total_pnl_percent"`
	TotalTrades           int             `json:"total_trades"`
	BuyCount              int             `json:"buy_count"`
	SellCount             int             `json:"sell_count"`
	Winning               int             `json:"winning"`
	Losing                int             `json:"losing"`
	WinRate               decimal.Decimal `json:"win_rate"`
	TotalGains            decimal.Decimal `json:"total_gains"`
	TotalLosses           decimal.Decimal `json:"total_losses"`
	ProfitFactor          decimal.Decimal `json:"profit_factor"`
	ProfitFactorUnbounded bool            `json:"profit_factor_unbounded"`
	Signals               SignalTally     `json:"signals"`
}
