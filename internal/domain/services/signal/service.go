package signal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tm-signals/signals_service/internal/adapters/tokenmetrics"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/sanitize"
	"go.uber.org/zap"
)

const (
	// DefaultLookback is how far back signal rows are searched
	DefaultLookback = 180 * 24 * time.Hour
	adviceRowLimit  = 10
	holdConfidence  = 50
)

// Derive maps a raw signal row to an action and a confidence score
func Derive(row entities.TradingSignal) entities.SignalAdvice {
	advice := entities.SignalAdvice{
		Symbol:    strings.ToUpper(row.Symbol),
		Grade:     row.TraderGrade,
		UpdatedAt: row.Date,
	}

	switch row.TradingSignal {
	case 1:
		advice.Action = entities.ActionBuy
		advice.Confidence = row.TraderGrade
	case -1:
		advice.Action = entities.ActionSell
		if row.TraderGrade == 0 {
			advice.Confidence = holdConfidence
		} else {
			advice.Confidence = 100 - row.TraderGrade
		}
	default:
		advice.Action = entities.ActionHold
		advice.Confidence = holdConfidence
	}
	return advice
}

// SortLatestFirst orders rows by date, newest first
func SortLatestFirst(rows []entities.TradingSignal) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date > rows[j].Date
	})
}

// SignalSource is the slice of the market data gateway this package reads
type SignalSource interface {
	TradingSignals(ctx context.Context, q tokenmetrics.SignalQuery) ([]entities.TradingSignal, error)
}

// Service derives the current advice for a symbol from its latest signal row
type Service struct {
	source   SignalSource
	lookback time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(source SignalSource, lookback time.Duration, logger *zap.Logger) *Service {
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

// Advice returns the derived signal for symbol. It fails with DataUnavailable
// when the source has no rows for it within the lookback window.
func (s *Service) Advice(ctx context.Context, symbol string) (*entities.SignalAdvice, error) {
	symbol = sanitize.Symbol(symbol)
	now := s.now()

	rows, err := s.source.TradingSignals(ctx, tokenmetrics.SignalQuery{
		Symbols:   []string{symbol},
		StartDate: now.Add(-s.lookback),
		EndDate:   now,
		Limit:     adviceRowLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.logger.Warn("No trading signal data available", zap.String("symbol", symbol))
		return nil, apperrors.DataUnavailable(fmt.Sprintf("no trading data available for %s, try a more popular token like BTC or ETH", symbol))
	}

	SortLatestFirst(rows)
	advice := Derive(rows[0])
	if advice.Symbol == "" {
		advice.Symbol = symbol
	}
	return &advice, nil
}
