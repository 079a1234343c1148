package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tm-signals/signals_service/internal/adapters/tokenmetrics"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"go.uber.org/zap/zaptest"
)

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) TradingSignals(ctx context.Context, q tokenmetrics.SignalQuery) ([]entities.TradingSignal, error) {
	args := m.Called(ctx, q)
	rows, _ := args.Get(0).([]entities.TradingSignal)
	return rows, args.Error(1)
}

func (m *MockDataSource) MarketMetrics(ctx context.Context, q tokenmetrics.MetricsQuery) ([]entities.MarketMetric, error) {
	args := m.Called(ctx, q)
	rows, _ := args.Get(0).([]entities.MarketMetric)
	return rows, args.Error(1)
}

func TestService_TopSignalsPrefersBullish(t *testing.T) {
	source := new(MockDataSource)
	source.On("TradingSignals", mock.Anything, mock.MatchedBy(func(q tokenmetrics.SignalQuery) bool {
		return q.Limit == 100 && len(q.Symbols) == 0
	})).Return([]entities.TradingSignal{
		{Symbol: "BTC", TradingSignal: 1, TraderGrade: 70},
		{Symbol: "ETH", TradingSignal: 1, TraderGrade: 85},
		{Symbol: "SOL", TradingSignal: 1, TraderGrade: 60},
		{Symbol: "ADA", TradingSignal: 1, TraderGrade: 55},
		{Symbol: "DOGE", TradingSignal: 0, TraderGrade: 99},
		{Symbol: "XRP", TradingSignal: -1, TraderGrade: 98},
	}, nil)

	svc := NewService(source, 0, zaptest.NewLogger(t))
	rows, err := svc.TopSignals(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "ETH", rows[0].Symbol)
	assert.Equal(t, "BTC", rows[1].Symbol)
	assert.Equal(t, "SOL", rows[2].Symbol)
}

func TestService_TopSignalsFillsWithNeutral(t *testing.T) {
	source := new(MockDataSource)
	source.On("TradingSignals", mock.Anything, mock.Anything).Return([]entities.TradingSignal{
		{Symbol: "BTC", TradingSignal: 1, TraderGrade: 70},
		{Symbol: "DOGE", TradingSignal: 0, TraderGrade: 80},
		{Symbol: "XRP", TradingSignal: -1, TraderGrade: 98},
	}, nil)

	svc := NewService(source, 0, zaptest.NewLogger(t))
	rows, err := svc.TopSignals(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "DOGE", rows[0].Symbol)
	assert.Equal(t, "BTC", rows[1].Symbol)
}

func TestService_TopSignalsNoRows(t *testing.T) {
	source := new(MockDataSource)
	source.On("TradingSignals", mock.Anything, mock.Anything).Return([]entities.TradingSignal{}, nil)

	svc := NewService(source, 0, zaptest.NewLogger(t))
	_, err := svc.TopSignals(context.Background(), 0)
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestService_OverviewUsesLatestRow(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	source := new(MockDataSource)
	source.On("MarketMetrics", mock.Anything, mock.MatchedBy(func(q tokenmetrics.MetricsQuery) bool {
		return q.Limit == 30 && q.StartDate.Equal(now.Add(-DefaultLookback))
	})).Return([]entities.MarketMetric{
		{Date: "2024-06-01", TotalMarketCap: 2e12, HighGradePercent: 5, GradeSignal: -1},
		{Date: "2024-06-29", TotalMarketCap: 2.4e12, HighGradePercent: 12.5, GradeSignal: 1},
	}, nil)

	svc := NewService(source, 0, zaptest.NewLogger(t))
	svc.now = func() time.Time { return now }

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-29", overview.Date)
	assert.InDelta(t, 50, overview.SentimentScore, 1e-9)
	assert.Equal(t, "Neutral", overview.FearGreed)
	assert.Equal(t, OutlookBullish, overview.Outlook)
	assert.Equal(t, now, overview.GeneratedAt)
}

func TestService_OverviewNoRows(t *testing.T) {
	source := new(MockDataSource)
	source.On("MarketMetrics", mock.Anything, mock.Anything).Return(nil, nil)

	svc := NewService(source, 0, zaptest.NewLogger(t))
	_, err := svc.Overview(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
}

func TestFearGreed(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, "Extreme Fear"},
		{24.9, "Extreme Fear"},
		{25, "Fear"},
		{40, "Neutral"},
		{60, "Greed"},
		{80, "Extreme Greed"},
		{100, "Extreme Greed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FearGreed(tt.score), "score %v", tt.score)
	}
}

func TestSentimentScoreCapped(t *testing.T) {
	assert.InDelta(t, 100, SentimentScore(40), 1e-9)
	assert.InDelta(t, 20, SentimentScore(5), 1e-9)
}
