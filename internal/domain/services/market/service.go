package market

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/tm-signals/signals_service/internal/adapters/tokenmetrics"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultLookback is the window searched for signal and metric rows
	DefaultLookback = 180 * 24 * time.Hour
	// DefaultTopSignals is the number of tokens in a top signals digest
	DefaultTopSignals = 3

	signalSampleSize = 100
	metricsRowLimit  = 30
)

// Outlook values derived from the market grade signal
const (
	OutlookBullish = "BULLISH"
	OutlookBearish = "BEARISH"
	OutlookNeutral = "NEUTRAL"
)

// DataSource is the slice of the market data gateway this package reads
type DataSource interface {
	TradingSignals(ctx context.Context, q tokenmetrics.SignalQuery) ([]entities.TradingSignal, error)
	MarketMetrics(ctx context.Context, q tokenmetrics.MetricsQuery) ([]entities.MarketMetric, error)
}

// Service builds market-wide views used by digests, chat and REST
type Service struct {
	source   DataSource
	lookback time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(source DataSource, lookback time.Duration, logger *zap.Logger) *Service {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Service{
		source:   source,
		lookback: lookback,
		logger:   logger,
		now:      time.Now,
	}
}

// TopSignals returns the highest graded bullish tokens. Neutral tokens fill in
// when fewer than limit bullish rows are available.
func (s *Service) TopSignals(ctx context.Context, limit int) ([]entities.TradingSignal, error) {
	if limit <= 0 {
		limit = DefaultTopSignals
	}
	now := s.now()

	rows, err := s.source.TradingSignals(ctx, tokenmetrics.SignalQuery{
		StartDate: now.Add(-s.lookback),
		EndDate:   now,
		Limit:     signalSampleSize,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.logger.Warn("No tokens found in trading signals response")
		return nil, apperrors.DataUnavailable("no token data available, try again later")
	}

	picked := make([]entities.TradingSignal, 0, len(rows))
	for _, row := range rows {
		if row.TradingSignal == 1 {
			picked = append(picked, row)
		}
	}
	if len(picked) < limit {
		for _, row := range rows {
			if row.TradingSignal == 0 {
				picked = append(picked, row)
			}
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].TraderGrade > picked[j].TraderGrade
	})
	if len(picked) > limit {
		picked = picked[:limit]
	}
	return picked, nil
}

// Overview summarizes the most recent market metrics row
func (s *Service) Overview(ctx context.Context) (*entities.MarketOverview, error) {
	now := s.now()

	rows, err := s.source.MarketMetrics(ctx, tokenmetrics.MetricsQuery{
		StartDate: now.Add(-s.lookback),
		EndDate:   now,
		Limit:     metricsRowLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.DataUnavailable("no market data available at this time")
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	latest := rows[0]
	score := SentimentScore(latest.HighGradePercent)

	return &entities.MarketOverview{
		Date:             latest.Date,
		TotalMarketCap:   latest.TotalMarketCap,
		HighGradePercent: latest.HighGradePercent,
		SentimentScore:   score,
		FearGreed:        FearGreed(score),
		GradeSignal:      latest.GradeSignal,
		Outlook:          Outlook(latest.GradeSignal),
		GeneratedAt:      now.UTC(),
	}, nil
}

// SentimentScore scales the share of high grade coins to 0-100
func SentimentScore(highGradePercent float64) float64 {
	return math.Min(highGradePercent*4, 100)
}

func FearGreed(score float64) string {
	switch {
	case score < 25:
		return "Extreme Fear"
	case score < 40:
		return "Fear"
	case score < 60:
		return "Neutral"
	case score < 80:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}

func Outlook(gradeSignal int) string {
	switch gradeSignal {
	case 1:
		return OutlookBullish
	case -1:
		return OutlookBearish
	default:
		return OutlookNeutral
	}
}
