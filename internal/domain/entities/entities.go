package entities

import (
	"time"
)

// Rows returned by the market analytics source. JSON tags follow the
// upstream field names; the rest of the service only sees these types.

// Token is a listed token with its latest market data
type Token struct {
	TokenID   int64   `json:"TOKEN_ID"`
	Symbol    string  `json:"TOKEN_SYMBOL"`
	Name      string  `json:"NAME"`
	Category  string  `json:"CATEGORY,omitempty"`
	Price     float64 `json:"PRICE,omitempty"`
	MarketCap float64 `json:"MARKET_CAP,omitempty"`
}

// TradingSignal is a dated ternary signal row with the trader grade it was issued with
type TradingSignal struct {
	TokenID       int64   `json:"TOKEN_ID"`
	Symbol        string  `json:"TOKEN_SYMBOL"`
	Name          string  `json:"TOKEN_NAME,omitempty"`
	Date          string  `json:"DATE"`
	TradingSignal int     `json:"TRADING_SIGNAL"`
	TraderGrade   float64 `json:"TM_TRADER_GRADE"`
}

// TraderGrade is a dated 0-100 quality score for a token
type TraderGrade struct {
	TokenID     int64   `json:"TOKEN_ID"`
	Symbol      string  `json:"TOKEN_SYMBOL"`
	Date        string  `json:"DATE"`
	TraderGrade float64 `json:"TM_TRADER_GRADE"`
}

// TokenPrice is the current price of a token id
type TokenPrice struct {
	TokenID int64   `json:"TOKEN_ID"`
	Symbol  string  `json:"TOKEN_SYMBOL,omitempty"`
	Price   float64 `json:"PRICE"`
}

// MarketMetric is a dated market-wide snapshot
type MarketMetric struct {
	Date             string  `json:"DATE"`
	TotalMarketCap   float64 `json:"TOTAL_CRYPTO_MCAP"`
	HighGradePercent float64 `json:"TM_GRADE_PERC_HIGH_COINS"`
	GradeSignal      int     `json:"TM_GRADE_SIGNAL"`
}

// SignalAction is the three-way action derived from a trading signal
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"

	// ActionUnavailable marks a signal that could not be looked up
	ActionUnavailable SignalAction = "N/A"
)

// SignalAdvice is the derived action and confidence for one token
type SignalAdvice struct {
	Symbol     string       `json:"symbol"`
	Action     SignalAction `json:"action"`
	Confidence float64      `json:"confidence"`
	Grade      float64      `json:"grade"`
	UpdatedAt  string       `json:"updated_at"`
}

// MarketOverview summarizes the latest market metrics row
type MarketOverview struct {
	Date             string    `json:"date"`
	TotalMarketCap   float64   `json:"total_market_cap"`
	HighGradePercent float64   `json:"high_grade_percent"`
	SentimentScore   float64   `json:"sentiment_score"`
	FearGreed        string    `json:"fear_greed"`
	GradeSignal      int       `json:"grade_signal"`
	Outlook          string    `json:"outlook"`
	GeneratedAt      time.Time `json:"generated_at"`
}
