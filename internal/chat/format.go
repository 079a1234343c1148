package chat

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/digest"
	"github.com/tm-signals/signals_service/internal/domain/services/market"
)

const commandList = "📊 TRADING SIGNALS:\n" +
	"/signal <symbol> - Get a trading signal for a specific token\n" +
	"/top - Show top performing tokens right now\n" +
	"/market - Get current market sentiment\n\n" +
	"💰 PORTFOLIO SIMULATION:\n" +
	"/portfolio - View your virtual portfolio\n" +
	"/buy <symbol> <amount> - Buy a token\n" +
	"/sell <symbol> [quantity|percent%|all] - Sell a token\n" +
	"/transactions - Show your recent trades\n" +
	"/performance - Analyze your trading results\n\n" +
	"🔔 NOTIFICATIONS:\n" +
	"/subscribe - Receive hourly trading updates\n" +
	"/unsubscribe - Stop receiving updates\n" +
	"/email <address|off> - Also receive updates by email\n\n"

const helpText = "🤖 TM Signals Bot - Help\n\n" + commandList + "Powered by Token Metrics API"

const noPortfolioText = "🎮 Virtual Portfolio Simulator\n\n" +
	"You don't have a virtual portfolio yet.\n" +
	"Create one to practice trading with Token Metrics signals!\n\n" +
	"• Start with $10,000 virtual money\n" +
	"• Buy and sell crypto based on TM signals\n" +
	"• Track your performance\n" +
	"• No real money involved"

func (b *Bot) formatTopTokens(rows []entities.TradingSignal) string {
	var sb strings.Builder
	sb.WriteString("🔥 TOP TOKENS:\n\n")
	if len(rows) == 0 {
		sb.WriteString("No data available at this time.")
		return sb.String()
	}
	for i, row := range rows {
		sb.WriteString(b.printer.Sprintf("%d. %s – %s (%.0f%%)\n",
			i+1, strings.ToUpper(row.Symbol), digest.SignalLabel(row.TradingSignal), row.TraderGrade))
	}
	return sb.String()
}

func (b *Bot) formatOverview(o *entities.MarketOverview) string {
	var sb strings.Builder
	sb.WriteString("📈 MARKET OVERVIEW:\n\n")
	if o == nil {
		sb.WriteString("No market data available at this time.")
		return sb.String()
	}

	sb.WriteString(b.printer.Sprintf("Date: %s\n", o.Date))
	sb.WriteString(b.printer.Sprintf("Market Cap: $%.2fB\n", o.TotalMarketCap/1e9))
	sb.WriteString(b.printer.Sprintf("High Quality Tokens: %.2f%%\n", o.HighGradePercent))
	sb.WriteString(b.printer.Sprintf("Market Score: %.0f/100\n", o.SentimentScore))
	sb.WriteString(b.printer.Sprintf("Sentiment: %s\n\n", o.FearGreed))

	switch o.Outlook {
	case market.OutlookBullish:
		sb.WriteString("🟢 Market conditions are BULLISH. Consider accumulating quality assets.")
	case market.OutlookBearish:
		sb.WriteString("🔴 Market conditions are BEARISH. Consider caution and risk management.")
	default:
		sb.WriteString("🟡 Market conditions are NEUTRAL. Consider balanced portfolio strategies.")
	}
	return sb.String()
}

func (b *Bot) formatSummary(s *entities.PortfolioSummary) string {
	var sb strings.Builder
	sb.WriteString("🗂 PORTFOLIO SUMMARY\n\n")
	sb.WriteString(b.printer.Sprintf("💰 Total Value: $%.2f\n", f(s.TotalValue)))
	sb.WriteString(b.printer.Sprintf("💵 Cash: $%.2f\n", f(s.Cash)))
	sb.WriteString(b.printer.Sprintf("📈 Holdings: $%.2f\n", f(s.HoldingsValue)))
	if s.TotalPnL.IsNegative() {
		sb.WriteString(b.printer.Sprintf("❌ Loss: $%.2f (%.2f%%)\n\n", f(s.TotalPnL.Abs()), f(s.TotalPnLPercent)))
	} else {
		sb.WriteString(b.printer.Sprintf("✅ Profit: $%.2f (+%.2f%%)\n\n", f(s.TotalPnL), f(s.TotalPnLPercent)))
	}

	if len(s.Holdings) == 0 {
		sb.WriteString("No holdings yet. Use /buy to start investing!")
		return sb.String()
	}

	sb.WriteString("📊 HOLDINGS:\n")
	for _, h := range s.Holdings {
		trend := "📈"
		if h.UnrealizedPnL.IsNegative() {
			trend = "📉"
		}
		sb.WriteString(b.printer.Sprintf("%s %s: %.6f ($%.2f)\n", trend, h.Symbol, f(h.Quantity), f(h.CurrentValue)))
		sb.WriteString(b.printer.Sprintf("    P/L: %s%.2f%% ($%.2f)\n", sign(h.UnrealizedPnL), f(h.UnrealizedPnLPercent), f(h.UnrealizedPnL)))
		if h.Signal == entities.ActionUnavailable {
			sb.WriteString("    Signal: N/A\n")
		} else {
			sb.WriteString(b.printer.Sprintf("    Signal: %s %s (%.0f%%)\n", h.Signal, actionEmoji(h.Signal), h.Confidence))
		}
		if h.PriceStale {
			sb.WriteString("    ⚠️ Live price unavailable, valued at cost\n")
		}
	}
	return sb.String()
}

func (b *Bot) formatTrade(r *entities.TradeResult) string {
	var sb strings.Builder
	if r.Type == entities.TransactionTypeBuy {
		sb.WriteString(b.printer.Sprintf("Successfully bought %.6f %s at $%.2f per token.", f(r.Quantity), r.Symbol, f(r.Price)))
	} else {
		sb.WriteString(b.printer.Sprintf("Successfully sold %.6f %s at $%.2f per token.\n", f(r.Quantity), r.Symbol, f(r.Price)))
		pnl, pct := decimal.Zero, decimal.Zero
		if r.RealizedPnL != nil {
			pnl = *r.RealizedPnL
		}
		if r.RealizedPnLPercent != nil {
			pct = *r.RealizedPnLPercent
		}
		if pnl.IsNegative() {
			sb.WriteString(b.printer.Sprintf("Loss: $%.2f (%.2f%%)", f(pnl.Abs()), f(pct)))
		} else {
			sb.WriteString(b.printer.Sprintf("Profit: $%.2f (+%.2f%%)", f(pnl), f(pct)))
		}
	}
	sb.WriteString(b.printer.Sprintf("\nCash balance: $%.2f", f(r.Balance)))

	if a := r.Advice; a != nil && a.Action != entities.ActionUnavailable {
		switch {
		case a.Aligned:
			sb.WriteString(b.printer.Sprintf("\n\n✅ Smart move! TM AI has a %.0f%% confidence %s signal for %s.", a.Confidence, a.Action, r.Symbol))
		case a.Action == entities.ActionHold:
			sb.WriteString(b.printer.Sprintf("\n\n⚠️ Note: TM AI currently has a HOLD signal for %s with %.0f%% confidence.", r.Symbol, a.Confidence))
		case r.Type == entities.TransactionTypeBuy:
			sb.WriteString(b.printer.Sprintf("\n\n⚠️ Caution: TM AI currently has a %s signal for %s with %.0f%% confidence.", a.Action, r.Symbol, a.Confidence))
		default:
			sb.WriteString(b.printer.Sprintf("\n\n⚠️ Note: TM AI currently has a %s signal for %s with %.0f%% confidence.", a.Action, r.Symbol, a.Confidence))
		}
	}
	return sb.String()
}

func (b *Bot) formatPerformance(r *entities.PerformanceReport) string {
	var sb strings.Builder
	sb.WriteString("📊 PERFORMANCE ANALYSIS\n\n")
	sb.WriteString(b.printer.Sprintf("Initial Investment: $%.2f\n", f(r.InitialBalance)))
	sb.WriteString(b.printer.Sprintf("Current Value: $%.2f\n", f(r.TotalValue)))
	if r.TotalPnL.IsNegative() {
		sb.WriteString(b.printer.Sprintf("Overall Loss: $%.2f (%.2f%%)\n\n", f(r.TotalPnL.Abs()), f(r.TotalPnLPercent)))
	} else {
		sb.WriteString(b.printer.Sprintf("Overall Profit: $%.2f (+%.2f%%)\n\n", f(r.TotalPnL), f(r.TotalPnLPercent)))
	}

	sb.WriteString(b.printer.Sprintf("Total Trades: %d (%d buys, %d sells)\n", r.TotalTrades, r.BuyCount, r.SellCount))
	sb.WriteString(b.printer.Sprintf("Winning Trades: %d\n", r.Winning))
	sb.WriteString(b.printer.Sprintf("Losing Trades: %d\n", r.Losing))
	sb.WriteString(b.printer.Sprintf("Win Rate: %.2f%%\n", f(r.WinRate)))
	if r.ProfitFactorUnbounded {
		sb.WriteString("Profit Factor: ∞\n\n")
	} else {
		sb.WriteString(b.printer.Sprintf("Profit Factor: %.2fx\n\n", f(r.ProfitFactor)))
	}

	t := r.Signals
	if t.Followed == 0 {
		sb.WriteString("No signal data available yet. Keep trading to build performance metrics!")
		return sb.String()
	}
	sb.WriteString("📡 TOKEN METRICS SIGNALS\n")
	sb.WriteString(b.printer.Sprintf("Signals Followed: %d\n", t.Followed))
	sb.WriteString(b.printer.Sprintf("Correct Signals: %d\n", t.Correct))
	sb.WriteString(b.printer.Sprintf("Signal Accuracy: %.2f%%\n\n", f(t.Accuracy)))
	if t.OutperformsTrader {
		sb.WriteString("✨ Following TM signals would have improved your performance!")
	} else {
		sb.WriteString("😎 Your trading is currently outperforming the TM signals!")
	}
	return sb.String()
}

func (b *Bot) formatTransactions(txs []entities.Transaction) string {
	var sb strings.Builder
	sb.WriteString(b.printer.Sprintf("🕒 RECENT TRANSACTIONS (Last %d)\n\n", len(txs)))
	for i, tx := range txs {
		emoji := "💰"
		if tx.Type == entities.TransactionTypeSell {
			emoji = "💸"
		}
		sb.WriteString(b.printer.Sprintf("%d. %s %s %s\n", i+1, emoji, tx.Type, tx.Symbol))
		sb.WriteString(b.printer.Sprintf("   %.6f @ $%.2f = $%.2f\n", f(tx.Quantity), f(tx.UnitPrice), f(tx.TotalAmount)))
		sb.WriteString("   Date: " + tx.Timestamp.Format("2006-01-02 15:04:05") + "\n")
		if tx.Type == entities.TransactionTypeSell && tx.RealizedPnL != nil {
			pnl := *tx.RealizedPnL
			pct := decimal.Zero
			if tx.RealizedPnLPercent != nil {
				pct = *tx.RealizedPnLPercent
			}
			trend := "📈"
			if pnl.IsNegative() {
				trend = "📉"
			}
			sb.WriteString(b.printer.Sprintf("   %s P/L: %s%.2f%% ($%.2f)\n", trend, sign(pnl), f(pct), f(pnl)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func actionEmoji(a entities.SignalAction) string {
	switch a {
	case entities.ActionBuy:
		return "✅"
	case entities.ActionSell:
		return "❌"
	default:
		return "⏹️"
	}
}

func sign(d decimal.Decimal) string {
	if d.IsNegative() {
		return ""
	}
	return "+"
}

func f(d decimal.Decimal) float64 { return d.InexactFloat64() }
