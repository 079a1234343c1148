package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/ledger"
	"github.com/tm-signals/signals_service/internal/domain/services/market"
	"github.com/tm-signals/signals_service/internal/domain/services/subscription"
	"github.com/tm-signals/signals_service/internal/infrastructure/store"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/logger"
	"go.uber.org/zap/zaptest"
)

type stubPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (s *stubPrices) set(symbol, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = decimal.RequireFromString(price)
}

func (s *stubPrices) SpotPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, apperrors.PriceUnavailable(symbol)
	}
	return p, nil
}

type stubSignals map[string]entities.SignalAdvice

func (s stubSignals) Advice(_ context.Context, symbol string) (*entities.SignalAdvice, error) {
	a, ok := s[symbol]
	if !ok {
		return nil, apperrors.DataUnavailable("no trading signals found for " + symbol)
	}
	return &a, nil
}

type stubMarket struct {
	rows        []entities.TradingSignal
	rowsErr     error
	overview    *entities.MarketOverview
	overviewErr error
}

func (s *stubMarket) TopSignals(_ context.Context, limit int) ([]entities.TradingSignal, error) {
	if s.rowsErr != nil {
		return nil, s.rowsErr
	}
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubMarket) Overview(context.Context) (*entities.MarketOverview, error) {
	return s.overview, s.overviewErr
}

type botFixture struct {
	bot    *Bot
	prices *stubPrices
	market *stubMarket
	subs   *subscription.Service
}

var alice = User{ID: 42, ChatID: 4200, Username: "alice", FirstName: "Alice"}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	zl := zaptest.NewLogger(t)
	log := logger.NewLogger(zl)

	backend := store.NewMemoryBackend()
	prices := &stubPrices{prices: map[string]decimal.Decimal{}}
	prices.set("BTC", "50000")
	signals := stubSignals{
		"BTC": {Symbol: "BTC", Action: entities.ActionBuy, Confidence: 85, UpdatedAt: "2024-06-30"},
	}
	mkt := &stubMarket{
		rows: []entities.TradingSignal{
			{Symbol: "eth", TradingSignal: 1, TraderGrade: 88},
			{Symbol: "sol", TradingSignal: 1, TraderGrade: 80},
			{Symbol: "btc", TradingSignal: 0, TraderGrade: 70},
			{Symbol: "ada", TradingSignal: -1, TraderGrade: 40},
		},
	}

	ledgerSvc := ledger.NewService(
		store.NewSnapshot[*entities.Portfolio](backend, "portfolios", zl), prices, signals, log)
	subs := subscription.NewService(
		store.NewSnapshot[*entities.Subscription](backend, "subscriptions", zl), log)

	return &botFixture{
		bot:    NewBot(ledgerSvc, signals, mkt, subs, zl),
		prices: prices,
		market: mkt,
		subs:   subs,
	}
}

func callbacks(r Reply) []string {
	var data []string
	for _, row := range r.Keyboard {
		for _, b := range row {
			data = append(data, b.Data)
		}
	}
	return data
}

func TestBot_StartAndHelp(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	r := f.bot.HandleCommand(ctx, alice, "start", nil)
	assert.Contains(t, r.Text, "Welcome to TM Signals Bot, Alice!")
	assert.Equal(t, []string{"top", "market", "portfolio", "subscribe"}, callbacks(r))

	r = f.bot.HandleCommand(ctx, alice, "help", nil)
	assert.Contains(t, r.Text, "/sell <symbol>")
	assert.Empty(t, r.Keyboard)

	r = f.bot.HandleCommand(ctx, alice, "moon", nil)
	assert.Contains(t, r.Text, "Try /help")
}

func TestBot_Signal(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	r := f.bot.HandleCommand(ctx, alice, "signal", nil)
	assert.Contains(t, r.Text, "Please specify a token symbol")

	r = f.bot.HandleCommand(ctx, alice, "signal", []string{"btc"})
	assert.Contains(t, r.Text, "Token: BTC")
	assert.Contains(t, r.Text, "Signal: BUY")
	assert.Contains(t, r.Text, "Confidence: 85%")
	assert.Equal(t, []string{"buy_BTC_100", "buy_BTC_500", "portfolio"}, callbacks(r))

	r = f.bot.HandleCallback(ctx, alice, "signal_DOGE")
	assert.Contains(t, r.Text, "❌ Error: no trading signals found for DOGE")

	r = f.bot.HandleCommand(ctx, alice, "signal", []string{"b$c"})
	assert.Contains(t, r.Text, "Invalid token symbol")
}

func TestBot_Top(t *testing.T) {
	ctx := context.Background()

	t.Run("lists rows with buttons for the first three", func(t *testing.T) {
		f := newBotFixture(t)
		r := f.bot.HandleCommand(ctx, alice, "top", nil)
		assert.Contains(t, r.Text, "1. ETH – BUY ✅ (88%)")
		assert.Contains(t, r.Text, "3. BTC – HOLD ⏹️ (70%)")
		assert.Contains(t, r.Text, "4. ADA – SELL ❌ (40%)")
		require.Len(t, r.Keyboard, 4)
		assert.Equal(t, []Button{{Text: "Signal ETH", Data: "signal_ETH"}, {Text: "Buy ETH", Data: "buy_ETH_100"}}, r.Keyboard[0])
		assert.Equal(t, "portfolio", r.Keyboard[3][0].Data)
	})

	t.Run("no data", func(t *testing.T) {
		f := newBotFixture(t)
		f.market.rowsErr = apperrors.DataUnavailable("no token data available")
		r := f.bot.HandleCallback(ctx, alice, "top")
		assert.Contains(t, r.Text, "No data available at this time.")
		assert.Empty(t, r.Keyboard)
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newBotFixture(t)
		f.market.rowsErr = apperrors.Upstream("market data", assert.AnError)
		r := f.bot.HandleCommand(ctx, alice, "top", nil)
		assert.Contains(t, r.Text, "❌ Error: market data request failed")
	})
}

func TestBot_Market(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.market.overview = &entities.MarketOverview{
		Date:             "2024-06-30",
		TotalMarketCap:   2_456_700_000_000,
		HighGradePercent: 20,
		SentimentScore:   80,
		FearGreed:        "Extreme Greed",
		Outlook:          market.OutlookBullish,
	}
	r := f.bot.HandleCommand(ctx, alice, "market", nil)
	assert.Contains(t, r.Text, "Market Cap: $2,456.70B")
	assert.Contains(t, r.Text, "Market Score: 80/100")
	assert.Contains(t, r.Text, "Sentiment: Extreme Greed")
	assert.Contains(t, r.Text, "BULLISH")
	assert.Equal(t, []string{"portfolio", "top"}, callbacks(r))

	f.market.overview = nil
	f.market.overviewErr = apperrors.DataUnavailable("no market data available at this time")
	r = f.bot.HandleCallback(ctx, alice, "market")
	assert.Contains(t, r.Text, "No market data available at this time.")
}

func TestBot_PortfolioLifecycle(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	r := f.bot.HandleCommand(ctx, alice, "portfolio", nil)
	assert.Contains(t, r.Text, "You don't have a virtual portfolio yet.")
	assert.Equal(t, []string{"portfolio_create"}, callbacks(r))

	r = f.bot.HandleCommand(ctx, alice, "buy", []string{"btc", "100"})
	assert.Contains(t, r.Text, "❌ Error: you don't have a portfolio yet")

	r = f.bot.HandleCallback(ctx, alice, "portfolio_create")
	assert.True(t, r.Edit)
	assert.Contains(t, r.Text, "Portfolio created with $10,000.00 initial balance.")
	assert.Contains(t, r.Text, "No holdings yet.")
	assert.Equal(t, []string{"portfolio_buy", "top"}, callbacks(r))

	r = f.bot.HandleCallback(ctx, alice, "portfolio_create")
	assert.Contains(t, r.Text, "❌ Error:")

	r = f.bot.HandleCommand(ctx, alice, "buy", []string{"btc", "100"})
	assert.Contains(t, r.Text, "Successfully bought 0.002000 BTC at $50,000.00 per token.")
	assert.Contains(t, r.Text, "Cash balance: $9,900.00")
	assert.Contains(t, r.Text, "✅ Smart move! TM AI has a 85% confidence BUY signal for BTC.")
	assert.Equal(t, []string{"portfolio"}, callbacks(r))

	f.prices.set("BTC", "60000")
	r = f.bot.HandleCommand(ctx, alice, "portfolio", nil)
	assert.Contains(t, r.Text, "💰 Total Value: $10,020.00")
	assert.Contains(t, r.Text, "✅ Profit: $20.00 (+0.20%)")
	assert.Contains(t, r.Text, "📈 BTC: 0.002000 ($120.00)")
	assert.Contains(t, r.Text, "Signal: BUY ✅ (85%)")
	assert.Len(t, r.Keyboard, 3)

	r = f.bot.HandleCallback(ctx, alice, "sell_BTC_50pct")
	assert.True(t, r.Edit)
	assert.Contains(t, r.Text, "Successfully sold 0.001000 BTC at $60,000.00 per token.")
	assert.Contains(t, r.Text, "Profit: $10.00 (+20.00%)")
	assert.Contains(t, r.Text, "⚠️ Note: TM AI currently has a BUY signal for BTC")

	r = f.bot.HandleCommand(ctx, alice, "transactions", nil)
	assert.Contains(t, r.Text, "RECENT TRANSACTIONS (Last 2)")
	assert.Contains(t, r.Text, "1. 💸 SELL BTC")
	assert.Contains(t, r.Text, "2. 💰 BUY BTC")
	assert.Contains(t, r.Text, "📈 P/L: +20.00% ($10.00)")

	r = f.bot.HandleCallback(ctx, alice, "portfolio_performance")
	assert.True(t, r.Edit)
	assert.Contains(t, r.Text, "Win Rate: 100.00%")
	assert.Contains(t, r.Text, "Profit Factor: ∞")
	assert.Contains(t, r.Text, "Signals Followed: 1")
	assert.Equal(t, []string{"portfolio"}, callbacks(r))
}

func TestBot_BuyArguments(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing amount", []string{"btc"}, "Please specify a token symbol and amount"},
		{"not a number", []string{"btc", "ten"}, "Invalid amount"},
		{"negative", []string{"btc", "-5"}, "Amount must be positive"},
		{"zero", []string{"btc", "0"}, "Amount must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := f.bot.HandleCommand(ctx, alice, "buy", tt.args)
			assert.Contains(t, r.Text, tt.want)
		})
	}
}

func TestBot_SellArguments(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleCallback(ctx, alice, "portfolio_create")
	f.bot.HandleCommand(ctx, alice, "buy", []string{"btc", "1000"})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no symbol", nil, "Please specify a token symbol"},
		{"bad percentage", []string{"btc", "x%"}, "Invalid percentage"},
		{"bad quantity", []string{"btc", "lots"}, "Invalid quantity"},
		{"percentage out of range", []string{"btc", "150%"}, "❌ Error: percentage must be between 0 and 100"},
		{"not held", []string{"eth"}, "❌ Error: you don't own any ETH"},
		{"quantity", []string{"btc", "0.005"}, "Successfully sold 0.005000 BTC"},
		{"all", []string{"btc", "all"}, "Successfully sold 0.015000 BTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := f.bot.HandleCommand(ctx, alice, "sell", tt.args)
			assert.Contains(t, r.Text, tt.want)
		})
	}
}

func TestBot_Menus(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	r := f.bot.HandleCallback(ctx, alice, "portfolio_sell")
	assert.Contains(t, r.Text, "You don't have any holdings to sell.")
	assert.Equal(t, []string{"portfolio"}, callbacks(r))

	f.bot.HandleCallback(ctx, alice, "portfolio_create")
	f.bot.HandleCallback(ctx, alice, "buy_BTC_100")

	r = f.bot.HandleCallback(ctx, alice, "portfolio_sell")
	assert.Equal(t, []string{"sell_BTC_all", "sell_BTC_50pct", "portfolio"}, callbacks(r))

	r = f.bot.HandleCallback(ctx, alice, "portfolio_buy")
	assert.True(t, r.Edit)
	data := callbacks(r)
	assert.Contains(t, data, "buy_ETH_100")
	assert.Contains(t, data, "buy_ADA_500")
	assert.Equal(t, []string{"buy_BTC_100", "buy_ETH_100", "portfolio"}, data[len(data)-3:])

	f.market.rowsErr = apperrors.Upstream("market data", assert.AnError)
	r = f.bot.HandleCallback(ctx, alice, "portfolio_buy")
	assert.Equal(t, []string{"buy_BTC_100", "buy_ETH_100", "portfolio"}, callbacks(r))
}

func TestBot_Reset(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	r := f.bot.HandleCallback(ctx, alice, "portfolio_reset_confirm")
	assert.Contains(t, r.Text, "❌ Error:")

	f.bot.HandleCallback(ctx, alice, "portfolio_create")
	f.bot.HandleCallback(ctx, alice, "buy_BTC_500")

	r = f.bot.HandleCallback(ctx, alice, "portfolio_reset")
	assert.Equal(t, []string{"portfolio_reset_confirm", "portfolio"}, callbacks(r))

	r = f.bot.HandleCallback(ctx, alice, "portfolio_reset_confirm")
	assert.Contains(t, r.Text, "Portfolio reset with $10,000.00 initial balance.")
	assert.Contains(t, r.Text, "💵 Cash: $10,000.00")

	r = f.bot.HandleCommand(ctx, alice, "transactions", nil)
	assert.Contains(t, r.Text, "❌ Error: no transactions yet")
}

func TestBot_Subscriptions(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	r := f.bot.HandleCommand(ctx, alice, "unsubscribe", nil)
	assert.Contains(t, r.Text, "You're not currently subscribed")

	r = f.bot.HandleCommand(ctx, alice, "email", []string{"alice@example.com"})
	assert.Contains(t, r.Text, "Subscribe first")

	r = f.bot.HandleCallback(ctx, alice, "subscribe")
	assert.Contains(t, r.Text, "You are now subscribed")
	assert.True(t, f.subs.IsSubscribed("42"))

	r = f.bot.HandleCommand(ctx, alice, "subscribe", nil)
	assert.Contains(t, r.Text, "already subscribed")

	r = f.bot.HandleCommand(ctx, alice, "email", []string{"not-an-email"})
	assert.Contains(t, r.Text, "Invalid email address")

	r = f.bot.HandleCommand(ctx, alice, "email", []string{"Alice@Example.com"})
	assert.Contains(t, r.Text, "alice@example.com")
	active := f.subs.ActiveSubscribers()
	require.Len(t, active, 1)
	assert.Equal(t, int64(4200), active[0].ChatID)
	assert.Equal(t, "alice@example.com", active[0].Email)

	r = f.bot.HandleCommand(ctx, alice, "email", []string{"OFF"})
	assert.Contains(t, r.Text, "Email digests turned off")
	assert.Empty(t, f.subs.ActiveSubscribers()[0].Email)

	r = f.bot.HandleCommand(ctx, alice, "unsubscribe", nil)
	assert.Contains(t, r.Text, "You've unsubscribed")
	assert.False(t, f.subs.IsSubscribed("42"))
}

func TestBot_UnknownCallback(t *testing.T) {
	f := newBotFixture(t)
	r := f.bot.HandleCallback(context.Background(), alice, "sell_BTC_10pct")
	assert.Contains(t, r.Text, "Unknown sell option")

	r = f.bot.HandleCallback(context.Background(), alice, "launch")
	assert.Contains(t, r.Text, "no longer supported")
}
