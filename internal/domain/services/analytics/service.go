package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tm-signals/signals_service/internal/adapters/tokenmetrics"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/sanitize"
	"go.uber.org/zap"
)

const (
	defaultGrade     = 50
	holdDelta        = 0.01
	weakGrade        = 40
	recommendMinimum = 60
	// DefaultTopK is the number of recommendations when the caller gives none
	DefaultTopK = 5
)

// RiskProfiles maps each tolerance to its grade threshold and adjustment factors
var RiskProfiles = map[entities.RiskTolerance]entities.RiskProfile{
	entities.RiskLow:    {GradeThreshold: 60, IncreasePercent: 5, DecreasePercent: 15},
	entities.RiskMedium: {GradeThreshold: 70, IncreasePercent: 10, DecreasePercent: 20},
	entities.RiskHigh:   {GradeThreshold: 80, IncreasePercent: 20, DecreasePercent: 30},
}

// MarketData is the slice of the market data gateway used for analysis
type MarketData interface {
	Tokens(ctx context.Context, q tokenmetrics.TokenQuery) ([]entities.Token, error)
	TopTokens(ctx context.Context, topK, page int) ([]entities.Token, error)
	TradingSignals(ctx context.Context, q tokenmetrics.SignalQuery) ([]entities.TradingSignal, error)
	Prices(ctx context.Context, q tokenmetrics.PriceQuery) ([]entities.TokenPrice, error)
}

// Service runs stateless what-if analysis over arbitrary holdings
type Service struct {
	market MarketData
	logger *zap.Logger
}

func NewService(market MarketData, logger *zap.Logger) *Service {
	return &Service{market: market, logger: logger}
}

// ResolveRisk parses a tolerance case-insensitively, falling back to medium
func ResolveRisk(tolerance string) (entities.RiskTolerance, entities.RiskProfile) {
	rt := entities.RiskTolerance(strings.ToLower(strings.TrimSpace(tolerance)))
	if profile, ok := RiskProfiles[rt]; ok {
		return rt, profile
	}
	return entities.RiskMedium, RiskProfiles[entities.RiskMedium]
}

// Analyze prices the holdings, attaches signals and produces recommendations,
// metrics and rebalancing targets.
func (s *Service) Analyze(ctx context.Context, holdings map[string]float64) (*entities.AggregatePortfolio, error) {
	amounts := normalizeHoldings(holdings)
	if len(amounts) == 0 {
		return nil, apperrors.NoHoldings()
	}

	symbols := make([]string, 0, len(amounts))
	for symbol := range amounts {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	tokens, err := s.market.Tokens(ctx, tokenmetrics.TokenQuery{Symbols: symbols})
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, apperrors.DataUnavailable("no token data found for the provided symbols")
	}

	ids := make([]int64, 0, len(tokens))
	for _, t := range tokens {
		ids = append(ids, t.TokenID)
	}
	prices, err := s.market.Prices(ctx, tokenmetrics.PriceQuery{TokenIDs: ids})
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, apperrors.DataUnavailable("could not fetch price data for the provided tokens")
	}

	priceByID := make(map[int64]float64, len(prices))
	for _, p := range prices {
		if _, seen := priceByID[p.TokenID]; !seen {
			priceByID[p.TokenID] = p.Price
		}
	}

	signalBySymbol := make(map[string]entities.TradingSignal)
	signals, err := s.market.TradingSignals(ctx, tokenmetrics.SignalQuery{Symbols: symbols})
	if err != nil {
		s.logger.Warn("Signals unavailable, using neutral defaults", zap.Strings("symbols", symbols), zap.Error(err))
	}
	for _, row := range signals {
		sym := strings.ToUpper(row.Symbol)
		if _, seen := signalBySymbol[sym]; !seen {
			signalBySymbol[sym] = row
		}
	}

	result := &entities.AggregatePortfolio{
		Assets:          []entities.AssetAnalysis{},
		Recommendations: []entities.Recommendation{},
	}
	included := make(map[string]bool, len(tokens))

	for _, t := range tokens {
		sym := strings.ToUpper(t.Symbol)
		amount, held := amounts[sym]
		if !held || included[sym] {
			continue
		}
		included[sym] = true

		price := priceByID[t.TokenID]
		asset := entities.AssetAnalysis{
			Symbol:  sym,
			Name:    t.Name,
			TokenID: t.TokenID,
			Amount:  amount,
			Price:   price,
			Value:   amount * price,
			Grade:   defaultGrade,
		}
		if row, ok := signalBySymbol[sym]; ok {
			asset.Signal = row.TradingSignal
			asset.Grade = row.TraderGrade
		}

		result.TotalValue += asset.Value
		if rec, ok := recommend(sym, asset.Signal, asset.Grade); ok {
			result.Recommendations = append(result.Recommendations, rec)
		}
		result.Assets = append(result.Assets, asset)
	}

	if result.TotalValue > 0 {
		for i := range result.Assets {
			result.Assets[i].Weight = result.Assets[i].Value / result.TotalValue * 100
		}
	}

	result.Metrics = computeMetrics(result.Assets)
	result.Rebalancing = rebalance(result.Assets)
	return result, nil
}

// Optimize shifts weight away from weak assets into strong ones under the risk profile
func (s *Service) Optimize(ctx context.Context, holdings map[string]float64, tolerance string) (*entities.OptimizationResult, error) {
	analysis, err := s.Analyze(ctx, holdings)
	if err != nil {
		return nil, err
	}

	rt, profile := ResolveRisk(tolerance)
	total := analysis.TotalValue

	current := make(map[string]float64, len(analysis.Assets))
	optimized := make(map[string]float64, len(analysis.Assets))
	for _, a := range analysis.Assets {
		share := 0.0
		if total > 0 {
			share = a.Value / total
		}
		current[a.Symbol] = share
		optimized[a.Symbol] = share
	}

	var increase, decrease []entities.AssetAnalysis
	for _, a := range analysis.Assets {
		if a.Signal == 1 && a.Grade >= profile.GradeThreshold {
			increase = append(increase, a)
		} else if a.Signal == -1 || a.Grade < weakGrade {
			decrease = append(decrease, a)
		}
	}

	pool := 0.0
	for _, a := range decrease {
		cut := current[a.Symbol] * profile.DecreasePercent / 100
		optimized[a.Symbol] -= cut
		pool += cut
	}

	unallocated := pool
	if len(increase) > 0 && pool > 0 {
		points := 0.0
		for _, a := range increase {
			points += math.Max(0, a.Grade-50)
		}
		if points > 0 {
			for _, a := range increase {
				optimized[a.Symbol] += math.Max(0, a.Grade-50) / points * pool
			}
			unallocated = 0
		}
	}

	result := &entities.OptimizationResult{
		RiskTolerance:       rt,
		RiskProfile:         profile,
		TotalValue:          total,
		CurrentAllocation:   make(map[string]entities.Allocation, len(current)),
		OptimizedAllocation: make(map[string]entities.Allocation, len(optimized)),
		Actions:             make([]entities.AllocationAction, 0, len(analysis.Assets)),
		UnallocatedPercent:  unallocated * 100,
	}

	for _, a := range analysis.Assets {
		cur, opt := current[a.Symbol], optimized[a.Symbol]
		result.CurrentAllocation[a.Symbol] = entities.Allocation{Percent: cur, Value: cur * total}
		result.OptimizedAllocation[a.Symbol] = entities.Allocation{Percent: opt, Value: opt * total}

		action := entities.AllocationHold
		switch {
		case math.Abs(opt-cur) < holdDelta:
		case opt > cur:
			action = entities.AllocationIncrease
		default:
			action = entities.AllocationDecrease
		}

		result.Actions = append(result.Actions, entities.AllocationAction{
			Symbol:         a.Symbol,
			Action:         action,
			CurrentPercent: cur * 100,
			TargetPercent:  opt * 100,
			DeltaPercent:   (opt - cur) * 100,
			DeltaValue:     (opt - cur) * total,
		})
	}

	s.logger.Debug("Portfolio optimized",
		zap.String("risk_tolerance", string(rt)),
		zap.Int("increase_candidates", len(increase)),
		zap.Int("decrease_candidates", len(decrease)),
		zap.Float64("unallocated_percent", result.UnallocatedPercent))

	return result, nil
}

// RecommendTop returns up to topK bullish tokens graded at least 60, drawn from
// the 3*topK largest tokens by market cap.
func (s *Service) RecommendTop(ctx context.Context, topK int) ([]entities.TopRecommendation, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	top, err := s.market.TopTokens(ctx, topK*3, 0)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, apperrors.DataUnavailable("could not fetch top tokens")
	}

	symbols := make([]string, 0, len(top))
	for _, t := range top {
		symbols = append(symbols, t.Symbol)
	}

	signals, err := s.market.TradingSignals(ctx, tokenmetrics.SignalQuery{Symbols: symbols})
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, apperrors.DataUnavailable("could not fetch trading signals")
	}

	bullish := make([]entities.TradingSignal, 0, len(signals))
	for _, row := range signals {
		if row.TradingSignal == 1 && row.TraderGrade >= recommendMinimum {
			bullish = append(bullish, row)
		}
	}
	sort.SliceStable(bullish, func(i, j int) bool {
		return bullish[i].TraderGrade > bullish[j].TraderGrade
	})
	if len(bullish) > topK {
		bullish = bullish[:topK]
	}

	recs := make([]entities.TopRecommendation, 0, len(bullish))
	for _, row := range bullish {
		rec := entities.TopRecommendation{
			Symbol:     row.Symbol,
			Grade:      row.TraderGrade,
			Signal:     entities.ActionBuy,
			Confidence: row.TraderGrade,
		}
		for _, t := range top {
			if t.Symbol == row.Symbol {
				rec.Name = t.Name
				rec.MarketCap = t.MarketCap
				break
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func recommend(symbol string, signal int, grade float64) (entities.Recommendation, bool) {
	rec := entities.Recommendation{Symbol: symbol, Grade: grade}
	switch {
	case signal == 1 && grade >= 70:
		rec.Action, rec.Strength = entities.ActionBuy, entities.StrengthStrong
		rec.Reason = fmt.Sprintf("Strong buy signal with high trader grade (%.1f)", grade)
	case signal == 1 && grade >= 50:
		rec.Action, rec.Strength = entities.ActionBuy, entities.StrengthModerate
		rec.Reason = fmt.Sprintf("Buy signal with moderate trader grade (%.1f)", grade)
	case signal == -1 && grade <= 30:
		rec.Action, rec.Strength = entities.ActionSell, entities.StrengthStrong
		rec.Reason = fmt.Sprintf("Strong sell signal with low trader grade (%.1f)", grade)
	case signal == -1 && grade <= 50:
		rec.Action, rec.Strength = entities.ActionSell, entities.StrengthModerate
		rec.Reason = fmt.Sprintf("Sell signal with moderate trader grade (%.1f)", grade)
	default:
		return rec, false
	}
	return rec, true
}

func computeMetrics(assets []entities.AssetAnalysis) entities.PortfolioMetrics {
	m := entities.PortfolioMetrics{TotalAssets: len(assets)}
	for _, a := range assets {
		m.AverageGrade += a.Grade
		m.WeightedGrade += a.Grade * a.Weight / 100
		m.TotalValue += a.Value
		switch a.Signal {
		case 1:
			m.BuySignals++
		case -1:
			m.SellSignals++
		default:
			m.HoldSignals++
		}
	}
	if len(assets) > 0 {
		m.AverageGrade /= float64(len(assets))
	}

	switch {
	case m.WeightedGrade >= 70:
		m.Sentiment = entities.SentimentBullish
	case m.WeightedGrade <= 30:
		m.Sentiment = entities.SentimentBearish
	default:
		m.Sentiment = entities.SentimentNeutral
	}
	return m
}

func rebalance(assets []entities.AssetAnalysis) entities.Rebalancing {
	var strong, weak []entities.AssetAnalysis
	for _, a := range assets {
		if a.Signal == 1 && a.Grade >= 70 {
			strong = append(strong, a)
		} else if a.Signal == -1 && a.Grade <= 30 {
			weak = append(weak, a)
		}
	}
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].Grade > strong[j].Grade })
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Grade < weak[j].Grade })

	r := entities.Rebalancing{
		Increase: make([]entities.RebalanceTarget, 0, len(strong)),
		Decrease: make([]entities.RebalanceTarget, 0, len(weak)),
	}
	for _, a := range strong {
		r.Increase = append(r.Increase, entities.RebalanceTarget{
			Symbol:        a.Symbol,
			CurrentWeight: a.Weight,
			TargetWeight:  math.Min(a.Weight*1.5, a.Weight+10),
			Grade:         a.Grade,
			Reason:        "bullish signal with high trader grade",
		})
	}
	for _, a := range weak {
		r.Decrease = append(r.Decrease, entities.RebalanceTarget{
			Symbol:        a.Symbol,
			CurrentWeight: a.Weight,
			TargetWeight:  math.Max(a.Weight*0.5, a.Weight-10),
			Grade:         a.Grade,
			Reason:        "bearish signal with low trader grade",
		})
	}
	return r
}

func normalizeHoldings(holdings map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(holdings))
	for symbol, amount := range holdings {
		sym := sanitize.Symbol(symbol)
		if sym == "" {
			continue
		}
		out[sym] += amount
	}
	return out
}
