package entities

// AssetAnalysis is one priced holding inside an AggregatePortfolio
type AssetAnalysis struct {
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	TokenID int64   `json:"token_id"`
	Amount  float64 `json:"amount"`
	Price   float64 `json:"price"`
	Value   float64 `json:"value"`
	Weight  float64 `json:"weight"`
	Signal  int     `json:"signal"`
	Grade   float64 `json:"grade"`
}

type RecommendationStrength string

const (
	StrengthStrong   RecommendationStrength = "Strong"
	StrengthModerate RecommendationStrength = "Moderate"
)

// Recommendation is a per-asset buy or sell call
type Recommendation struct {
	Symbol   string                 `json:"symbol"`
	Action   SignalAction           `json:"action"`
	Strength RecommendationStrength `json:"strength"`
	Grade    float64                `json:"grade"`
	Reason   string                 `json:"reason"`
}

type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentBearish Sentiment = "Bearish"
	SentimentNeutral Sentiment = "Neutral"
)

// PortfolioMetrics are the aggregate statistics of an analyzed portfolio
type PortfolioMetrics struct {
	AverageGrade  float64   `json:"average_grade"`
	WeightedGrade float64   `json:"weighted_grade"`
	BuySignals    int       `json:"buy_signals"`
	SellSignals   int       `json:"sell_signals"`
	HoldSignals   int       `json:"hold_signals"`
	TotalAssets   int       `json:"total_assets"`
	TotalValue    float64   `json:"total_value"`
	Sentiment     Sentiment `json:"sentiment"`
}

// RebalanceTarget suggests a new weight for one asset
type RebalanceTarget struct {
	Symbol        string  `json:"symbol"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
	Grade         float64 `json:"grade"`
	Reason        string  `json:"reason"`
}

type Rebalancing struct {
	Increase []RebalanceTarget `json:"increase"`
	Decrease []RebalanceTarget `json:"decrease"`
}

// AggregatePortfolio is the what-if analysis of an arbitrary holdings map
type AggregatePortfolio struct {
	TotalValue      float64          `json:"total_value"`
	Assets          []AssetAnalysis  `json:"assets"`
	Metrics         PortfolioMetrics `json:"metrics"`
	Recommendations []Recommendation `json:"recommendations"`
	Rebalancing     Rebalancing      `json:"rebalancing"`
}

type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// RiskProfile is the factor table row for a risk tolerance
type RiskProfile struct {
	GradeThreshold  float64 `json:"grade_threshold"`
	IncreasePercent float64 `json:"increase_percent"`
	DecreasePercent float64 `json:"decrease_percent"`
}

// Allocation is a share of portfolio value; Percent is a 0-1 fraction
type Allocation struct {
	Percent float64 `json:"percent"`
	Value   float64 `json:"value"`
}

type AllocationActionType string

const (
	AllocationIncrease AllocationActionType = "INCREASE"
	AllocationDecrease AllocationActionType = "DECREASE"
	AllocationHold     AllocationActionType = "HOLD"
)

type AllocationAction struct {
	Symbol         string               `json:"symbol"`
	Action         AllocationActionType `json:"action"`
	CurrentPercent float64              `json:"current_percent"`
	TargetPercent  float64              `json:"target_percent"`
	DeltaPercent   float64              `json:"delta_percent"`
	DeltaValue     float64              `json:"delta_value"`
}

// OptimizationResult holds current and optimized allocations under a risk profile
type OptimizationResult struct {
	RiskTolerance       RiskTolerance         `json:"risk_tolerance"`
	RiskProfile         RiskProfile           `json:"risk_profile"`
	TotalValue          float64               `json:"total_value"`
	CurrentAllocation   map[string]Allocation `json:"current_allocation"`
	OptimizedAllocation map[string]Allocation `json:"optimized_allocation"`
	Actions             []AllocationAction    `json:"actions"`
	UnallocatedPercent  float64               `json:"unallocated_percent"`
}

// TopRecommendation is a bullish, high-grade token from the top market cap list
type TopRecommendation struct {
	Symbol     string       `json:"symbol"`
	Name       string       `json:"name"`
	Grade      float64      `json:"grade"`
	MarketCap  float64      `json:"market_cap"`
	Signal     SignalAction `json:"signal"`
	Confidence float64      `json:"confidence"`
}
