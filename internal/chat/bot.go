package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/ledger"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"github.com/tm-signals/signals_service/pkg/sanitize"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	topTokensLimit   = 5
	topButtonsLimit  = 3
	recentTxLimit    = 5
	quickBuySmall    = 100
	quickBuyLarge    = 500
	quickSellPercent = 50
)

// Ledger is the paper-trading surface the bot drives
type Ledger interface {
	Get(ctx context.Context, ownerID string) (*entities.Portfolio, error)
	Create(ctx context.Context, ownerID string, initialBalance decimal.Decimal) (*entities.Portfolio, error)
	Reset(ctx context.Context, ownerID string, initialBalance decimal.Decimal) (*entities.Portfolio, error)
	Buy(ctx context.Context, ownerID, symbol string, usdAmount decimal.Decimal) (*entities.TradeResult, error)
	Sell(ctx context.Context, ownerID, symbol string, order ledger.SellOrder) (*entities.TradeResult, error)
	Summarize(ctx context.Context, ownerID string) (*entities.PortfolioSummary, error)
	Performance(ctx context.Context, ownerID string) (*entities.PerformanceReport, error)
	RecentTransactions(ctx context.Context, ownerID string, limit int) ([]entities.Transaction, error)
}

// SignalAdvisor derives the current signal for a symbol
type SignalAdvisor interface {
	Advice(ctx context.Context, symbol string) (*entities.SignalAdvice, error)
}

// MarketView supplies the top-signal list and the market overview
type MarketView interface {
	TopSignals(ctx context.Context, limit int) ([]entities.TradingSignal, error)
	Overview(ctx context.Context) (*entities.MarketOverview, error)
}

// Subscriptions is the digest opt-in registry
type Subscriptions interface {
	Subscribe(ctx context.Context, userID string, chatID int64, username string) (*entities.Subscription, error)
	Unsubscribe(ctx context.Context, userID string) bool
	IsSubscribed(userID string) bool
	SetEmail(ctx context.Context, userID, email string) error
}

// User identifies who sent a command or pressed a button
type User struct {
	ID        int64
	ChatID    int64
	Username  string
	FirstName string
}

func (u User) ownerID() string { return strconv.FormatInt(u.ID, 10) }

// Button is one inline keyboard button. Data is echoed back as a callback.
type Button struct {
	Text string
	Data string
}

// Reply is a transport-neutral answer. Edit asks the transport to replace the
// message that carried the pressed button instead of posting a new one.
type Reply struct {
	Text     string
	Keyboard [][]Button
	Edit     bool
}

type symbolArgs struct {
	Symbol string `validate:"required,alphanum,max=20"`
}

type emailArgs struct {
	Email string `validate:"required,email"`
}

// Bot turns chat commands and button presses into replies
type Bot struct {
	ledger        Ledger
	signals       SignalAdvisor
	market        MarketView
	subscriptions Subscriptions
	validate      *validator.Validate
	printer       *message.Printer
	logger        *zap.Logger
}

func NewBot(l Ledger, signals SignalAdvisor, market MarketView, subs Subscriptions, logger *zap.Logger) *Bot {
	return &Bot{
		ledger:        l,
		signals:       signals,
		market:        market,
		subscriptions: subs,
		validate:      validator.New(),
		printer:       message.NewPrinter(language.English),
		logger:        logger.Named("chat"),
	}
}

// HandleCommand answers a slash command. command is given without the slash.
func (b *Bot) HandleCommand(ctx context.Context, user User, command string, args []string) Reply {
	b.logger.Debug("Chat command",
		zap.Int64("user_id", user.ID),
		zap.String("command", command),
		zap.Strings("args", sanitize.LogStrings(args)))

	switch strings.ToLower(command) {
	case "start":
		return b.start(user)
	case "help":
		return Reply{Text: helpText}
	case "signal":
		if len(args) == 0 {
			return Reply{Text: "⚠️ Please specify a token symbol.\nExample: /signal btc"}
		}
		return b.signal(ctx, args[0])
	case "top":
		return b.top(ctx)
	case "market":
		return b.marketOverview(ctx)
	case "portfolio":
		return b.portfolio(ctx, user)
	case "buy":
		return b.buyCommand(ctx, user, args)
	case "sell":
		return b.sellCommand(ctx, user, args)
	case "transactions":
		return withBackButton(b.transactions(ctx, user), "View Portfolio")
	case "performance":
		return withBackButton(b.performance(ctx, user), "View Portfolio")
	case "subscribe":
		return b.subscribe(ctx, user)
	case "unsubscribe":
		return b.unsubscribe(ctx, user)
	case "email":
		return b.email(ctx, user, args)
	default:
		return Reply{Text: "Sorry, I didn't understand that command. Try /help to see available commands."}
	}
}

// HandleCallback answers an inline keyboard press
func (b *Bot) HandleCallback(ctx context.Context, user User, data string) Reply {
	b.logger.Debug("Chat callback", zap.Int64("user_id", user.ID), zap.String("data", sanitize.LogString(data)))

	switch data {
	case "top":
		return b.top(ctx)
	case "market":
		return b.marketOverview(ctx)
	case "portfolio":
		return b.portfolio(ctx, user)
	case "subscribe":
		return b.subscribe(ctx, user)
	case "portfolio_create":
		return b.createPortfolio(ctx, user)
	case "portfolio_reset":
		return Reply{
			Text: "⚠️ Are you sure you want to reset your portfolio?\n\n" +
				"This will delete all your holdings and transactions and start fresh with $10,000.",
			Keyboard: [][]Button{{
				{Text: "✅ Yes, reset", Data: "portfolio_reset_confirm"},
				{Text: "❌ No, cancel", Data: "portfolio"},
			}},
			Edit: true,
		}
	case "portfolio_reset_confirm":
		return b.resetPortfolio(ctx, user)
	case "portfolio_buy":
		return b.buyMenu(ctx)
	case "portfolio_sell":
		return b.sellMenu(ctx, user)
	case "portfolio_performance":
		return edited(withBackButton(b.performance(ctx, user), "Back to Portfolio"))
	case "portfolio_transactions":
		return edited(withBackButton(b.transactions(ctx, user), "Back to Portfolio"))
	}

	parts := strings.Split(data, "_")
	switch {
	case parts[0] == "signal" && len(parts) == 2:
		return b.signal(ctx, parts[1])
	case parts[0] == "buy" && len(parts) == 3:
		amount, err := decimal.NewFromString(parts[2])
		if err != nil {
			return Reply{Text: "⚠️ Invalid amount. Please provide a number."}
		}
		return edited(withBackButton(b.buy(ctx, user, parts[1], amount), "View Portfolio"))
	case parts[0] == "sell" && len(parts) == 3:
		var order ledger.SellOrder
		switch parts[2] {
		case "all":
		case strconv.Itoa(quickSellPercent) + "pct":
			pct := decimal.NewFromInt(quickSellPercent)
			order.Percentage = &pct
		default:
			return Reply{Text: "⚠️ Unknown sell option."}
		}
		return edited(withBackButton(b.sell(ctx, user, parts[1], order), "View Portfolio"))
	}

	b.logger.Warn("Unknown chat callback", zap.String("data", sanitize.LogString(data)))
	return Reply{Text: "Sorry, that button is no longer supported. Try /help."}
}

func (b *Bot) start(user User) Reply {
	name := user.FirstName
	if name == "" {
		name = "trader"
	}
	return Reply{
		Text: fmt.Sprintf("👋 Welcome to TM Signals Bot, %s!\n\n", name) +
			"I provide crypto trading signals powered by Token Metrics AI.\n\n" +
			commandList +
			"Developed for Token Metrics Innovation Challenge",
		Keyboard: [][]Button{
			{{Text: "📊 Top Tokens", Data: "top"}, {Text: "📈 Market", Data: "market"}},
			{{Text: "💼 Portfolio", Data: "portfolio"}, {Text: "🔔 Subscribe", Data: "subscribe"}},
		},
	}
}

func (b *Bot) signal(ctx context.Context, raw string) Reply {
	symbol, reply, ok := b.parseSymbol(raw)
	if !ok {
		return reply
	}

	advice, err := b.signals.Advice(ctx, symbol)
	if err != nil {
		return b.failure("signal lookup failed", err)
	}

	return Reply{
		Text: b.printer.Sprintf("📊 Token: %s\nSignal: %s\nConfidence: %.0f%%\nUpdated: %s",
			advice.Symbol, advice.Action, advice.Confidence, advice.UpdatedAt),
		Keyboard: [][]Button{
			{
				{Text: fmt.Sprintf("Buy $%d", quickBuySmall), Data: buyData(advice.Symbol, quickBuySmall)},
				{Text: fmt.Sprintf("Buy $%d", quickBuyLarge), Data: buyData(advice.Symbol, quickBuyLarge)},
			},
			{{Text: "View Portfolio", Data: "portfolio"}},
		},
	}
}

func (b *Bot) top(ctx context.Context) Reply {
	rows, err := b.market.TopSignals(ctx, topTokensLimit)
	if err != nil && !errors.Is(err, apperrors.ErrDataUnavailable) {
		return b.failure("top signals lookup failed", err)
	}

	text := b.formatTopTokens(rows)
	if len(rows) == 0 {
		return Reply{Text: text}
	}

	keyboard := make([][]Button, 0, topButtonsLimit+1)
	for i, row := range rows {
		if i == topButtonsLimit {
			break
		}
		symbol := strings.ToUpper(row.Symbol)
		keyboard = append(keyboard, []Button{
			{Text: "Signal " + symbol, Data: "signal_" + symbol},
			{Text: "Buy " + symbol, Data: buyData(symbol, quickBuySmall)},
		})
	}
	keyboard = append(keyboard, []Button{{Text: "View Portfolio", Data: "portfolio"}})
	return Reply{Text: text, Keyboard: keyboard}
}

func (b *Bot) marketOverview(ctx context.Context) Reply {
	overview, err := b.market.Overview(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrDataUnavailable) {
		return b.failure("market overview lookup failed", err)
	}
	return Reply{
		Text: b.formatOverview(overview),
		Keyboard: [][]Button{{
			{Text: "View Portfolio", Data: "portfolio"},
			{Text: "Top Tokens", Data: "top"},
		}},
	}
}

func (b *Bot) portfolio(ctx context.Context, user User) Reply {
	if _, err := b.ledger.Get(ctx, user.ownerID()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Reply{
				Text:     noPortfolioText,
				Keyboard: [][]Button{{{Text: "Create Portfolio", Data: "portfolio_create"}}},
			}
		}
		return b.failure("portfolio lookup failed", err)
	}

	summary, err := b.ledger.Summarize(ctx, user.ownerID())
	if err != nil {
		return b.failure("portfolio summary failed", err)
	}
	return Reply{
		Text: b.formatSummary(summary),
		Keyboard: [][]Button{
			{{Text: "Buy Tokens", Data: "portfolio_buy"}, {Text: "Sell Tokens", Data: "portfolio_sell"}},
			{{Text: "Performance", Data: "portfolio_performance"}, {Text: "Transactions", Data: "portfolio_transactions"}},
			{{Text: "Reset Portfolio", Data: "portfolio_reset"}},
		},
	}
}

func (b *Bot) createPortfolio(ctx context.Context, user User) Reply {
	p, err := b.ledger.Create(ctx, user.ownerID(), decimal.Zero)
	if err != nil {
		return edited(b.failure("portfolio create failed", err))
	}
	header := b.printer.Sprintf("Portfolio created with $%.2f initial balance.", p.InitialBalance.InexactFloat64())
	return b.freshPortfolio(ctx, user, header)
}

func (b *Bot) resetPortfolio(ctx context.Context, user User) Reply {
	p, err := b.ledger.Reset(ctx, user.ownerID(), decimal.Zero)
	if err != nil {
		return edited(b.failure("portfolio reset failed", err))
	}
	header := b.printer.Sprintf("Portfolio reset with $%.2f initial balance.", p.InitialBalance.InexactFloat64())
	return b.freshPortfolio(ctx, user, header)
}

func (b *Bot) freshPortfolio(ctx context.Context, user User, header string) Reply {
	text := header
	if summary, err := b.ledger.Summarize(ctx, user.ownerID()); err == nil {
		text += "\n\n" + b.formatSummary(summary)
	}
	return Reply{
		Text:     text,
		Keyboard: [][]Button{{{Text: "Buy Tokens", Data: "portfolio_buy"}, {Text: "Top Tokens", Data: "top"}}},
		Edit:     true,
	}
}

func (b *Bot) buyMenu(ctx context.Context) Reply {
	keyboard := [][]Button{}

	rows, err := b.market.TopSignals(ctx, topTokensLimit)
	if err != nil {
		b.logger.Warn("Top signals unavailable for buy menu", zap.Error(err))
	}
	for _, row := range rows {
		symbol := strings.ToUpper(row.Symbol)
		if symbol == "" {
			continue
		}
		keyboard = append(keyboard, []Button{
			{Text: fmt.Sprintf("Buy %s $%d", symbol, quickBuySmall), Data: buyData(symbol, quickBuySmall)},
			{Text: fmt.Sprintf("Buy %s $%d", symbol, quickBuyLarge), Data: buyData(symbol, quickBuyLarge)},
		})
	}
	keyboard = append(keyboard,
		[]Button{{Text: "Buy BTC", Data: buyData("BTC", quickBuySmall)}, {Text: "Buy ETH", Data: buyData("ETH", quickBuySmall)}},
		[]Button{{Text: "Back to Portfolio", Data: "portfolio"}},
	)

	return Reply{Text: "Select a token to buy:", Keyboard: keyboard, Edit: true}
}

func (b *Bot) sellMenu(ctx context.Context, user User) Reply {
	back := []Button{{Text: "Back to Portfolio", Data: "portfolio"}}

	summary, err := b.ledger.Summarize(ctx, user.ownerID())
	if err != nil || len(summary.Holdings) == 0 {
		return Reply{
			Text:     "You don't have any holdings to sell.\n\nUse /buy <symbol> <amount> to buy tokens first.",
			Keyboard: [][]Button{back},
			Edit:     true,
		}
	}

	keyboard := make([][]Button, 0, len(summary.Holdings)+1)
	for _, h := range summary.Holdings {
		keyboard = append(keyboard, []Button{
			{Text: "Sell all " + h.Symbol, Data: "sell_" + h.Symbol + "_all"},
			{Text: fmt.Sprintf("Sell %d%% %s", quickSellPercent, h.Symbol), Data: fmt.Sprintf("sell_%s_%dpct", h.Symbol, quickSellPercent)},
		})
	}
	keyboard = append(keyboard, back)
	return Reply{Text: "Select a token to sell:", Keyboard: keyboard, Edit: true}
}

func (b *Bot) buyCommand(ctx context.Context, user User, args []string) Reply {
	if len(args) < 2 {
		return Reply{Text: "⚠️ Please specify a token symbol and amount.\nExample: /buy btc 100"}
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return Reply{Text: "⚠️ Invalid amount. Please provide a number."}
	}
	if !amount.IsPositive() {
		return Reply{Text: "⚠️ Amount must be positive."}
	}
	return withBackButton(b.buy(ctx, user, args[0], amount), "View Portfolio")
}

func (b *Bot) sellCommand(ctx context.Context, user User, args []string) Reply {
	if len(args) == 0 {
		return Reply{Text: "⚠️ Please specify a token symbol.\n" +
			"Example: /sell btc (sells all)\n" +
			"Example: /sell btc 0.5 (sells quantity)\n" +
			"Example: /sell btc 50% (sells percentage)"}
	}

	var order ledger.SellOrder
	if len(args) > 1 && !strings.EqualFold(args[1], "all") {
		value := args[1]
		if strings.HasSuffix(value, "%") {
			pct, err := decimal.NewFromString(strings.TrimSuffix(value, "%"))
			if err != nil {
				return Reply{Text: "⚠️ Invalid percentage. Please provide a number."}
			}
			order.Percentage = &pct
		} else {
			qty, err := decimal.NewFromString(value)
			if err != nil {
				return Reply{Text: "⚠️ Invalid quantity. Please provide a number."}
			}
			order.Quantity = &qty
		}
	}
	return withBackButton(b.sell(ctx, user, args[0], order), "View Portfolio")
}

func (b *Bot) buy(ctx context.Context, user User, raw string, amount decimal.Decimal) Reply {
	symbol, reply, ok := b.parseSymbol(raw)
	if !ok {
		return reply
	}
	result, err := b.ledger.Buy(ctx, user.ownerID(), symbol, amount)
	if err != nil {
		return b.failure("paper buy failed", err)
	}
	return Reply{Text: b.formatTrade(result)}
}

func (b *Bot) sell(ctx context.Context, user User, raw string, order ledger.SellOrder) Reply {
	symbol, reply, ok := b.parseSymbol(raw)
	if !ok {
		return reply
	}
	result, err := b.ledger.Sell(ctx, user.ownerID(), symbol, order)
	if err != nil {
		return b.failure("paper sell failed", err)
	}
	return Reply{Text: b.formatTrade(result)}
}

func (b *Bot) performance(ctx context.Context, user User) Reply {
	report, err := b.ledger.Performance(ctx, user.ownerID())
	if err != nil {
		return b.failure("performance report failed", err)
	}
	return Reply{Text: b.formatPerformance(report)}
}

func (b *Bot) transactions(ctx context.Context, user User) Reply {
	txs, err := b.ledger.RecentTransactions(ctx, user.ownerID(), recentTxLimit)
	if err != nil {
		return b.failure("transactions lookup failed", err)
	}
	return Reply{Text: b.formatTransactions(txs)}
}

func (b *Bot) subscribe(ctx context.Context, user User) Reply {
	userID := user.ownerID()
	if b.subscriptions.IsSubscribed(userID) {
		return Reply{Text: "You're already subscribed to alerts! 📬"}
	}
	if _, err := b.subscriptions.Subscribe(ctx, userID, user.ChatID, user.Username); err != nil {
		b.logger.Error("Subscribe failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return Reply{Text: "❌ Error subscribing. Please try again later."}
	}
	return Reply{Text: "✅ You are now subscribed to trading signals!\n\n" +
		"You'll receive:\n" +
		"• Hourly top token signals\n" +
		"• Daily market summaries\n\n" +
		"You can unsubscribe anytime with /unsubscribe"}
}

func (b *Bot) unsubscribe(ctx context.Context, user User) Reply {
	if !b.subscriptions.Unsubscribe(ctx, user.ownerID()) {
		return Reply{Text: "You're not currently subscribed to any alerts."}
	}
	return Reply{Text: "🛑 You've unsubscribed from all alerts.\n" +
		"You will no longer receive automatic updates.\n\n" +
		"You can subscribe again anytime with /subscribe"}
}

func (b *Bot) email(ctx context.Context, user User, args []string) Reply {
	if len(args) == 0 {
		return Reply{Text: "⚠️ Please specify an email address.\nExample: /email me@example.com"}
	}
	in := emailArgs{Email: sanitize.Email(args[0])}
	off := in.Email == "off"
	if off {
		in.Email = ""
	} else if err := b.validate.Struct(in); err != nil {
		return Reply{Text: "⚠️ Invalid email address."}
	}
	if err := b.subscriptions.SetEmail(ctx, user.ownerID(), in.Email); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Reply{Text: "⚠️ Subscribe first with /subscribe, then add an email address."}
		}
		return b.failure("email update failed", err)
	}
	if off {
		return Reply{Text: "📭 Email digests turned off."}
	}
	return Reply{Text: "📧 Digests will also be sent to " + in.Email}
}

func (b *Bot) parseSymbol(raw string) (string, Reply, bool) {
	in := symbolArgs{Symbol: sanitize.Symbol(raw)}
	if err := b.validate.Struct(in); err != nil {
		return "", Reply{Text: "⚠️ Invalid token symbol."}, false
	}
	return in.Symbol, Reply{}, true
}

// failure renders err for the user. Upstream failures are logged; domain
// failures are expected and only reach the user.
func (b *Bot) failure(op string, err error) Reply {
	if errors.Is(err, apperrors.ErrUpstream) || apperrors.CodeOf(err) == apperrors.ErrCodeInternal {
		b.logger.Error("Chat request failed", zap.String("op", op), zap.Error(err))
	}
	return Reply{Text: "❌ Error: " + apperrors.Message(err)}
}

func withBackButton(r Reply, label string) Reply {
	r.Keyboard = append(r.Keyboard, []Button{{Text: label, Data: "portfolio"}})
	return r
}

func edited(r Reply) Reply {
	r.Edit = true
	return r
}

func buyData(symbol string, usd int) string {
	return fmt.Sprintf("buy_%s_%d", symbol, usd)
}
