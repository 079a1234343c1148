package digest

import (
	"context"
	"strings"
	"time"

	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/internal/domain/services/market"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MarketSource is the market view the digests are built from
type MarketSource interface {
	TopSignals(ctx context.Context, limit int) ([]entities.TradingSignal, error)
	Overview(ctx context.Context) (*entities.MarketOverview, error)
}

// Builder formats market data into channel-neutral digests
type Builder struct {
	market  MarketSource
	printer *message.Printer
	now     func() time.Time
}

func NewBuilder(source MarketSource) *Builder {
	return &Builder{
		market:  source,
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// TopSignals builds the hourly top signals digest
func (b *Builder) TopSignals(ctx context.Context, limit int) (entities.Digest, error) {
	rows, err := b.market.TopSignals(ctx, limit)
	if err != nil {
		return entities.Digest{}, err
	}
	now := b.now().UTC()
	return entities.Digest{
		Kind:        entities.DigestTopSignals,
		Title:       "Hourly update " + now.Format("15:04 UTC"),
		Text:        b.FormatTopSignals(rows, now),
		GeneratedAt: now,
	}, nil
}

// MarketSummary builds the daily market summary digest
func (b *Builder) MarketSummary(ctx context.Context) (entities.Digest, error) {
	overview, err := b.market.Overview(ctx)
	if err != nil {
		return entities.Digest{}, err
	}
	now := b.now().UTC()
	return entities.Digest{
		Kind:        entities.DigestMarketSummary,
		Title:       "Daily market summary " + now.Format("02 Jan 2006"),
		Text:        b.FormatMarketSummary(overview, now),
		GeneratedAt: now,
	}, nil
}

func (b *Builder) FormatTopSignals(rows []entities.TradingSignal, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(b.printer.Sprintf("📊 HOURLY UPDATE (%s)\n\n🔝 TOP SIGNALS:\n", now.Format("15:04 UTC")))
	if len(rows) == 0 {
		sb.WriteString("No signals available at this time.\n")
		return sb.String()
	}
	for i, row := range rows {
		sb.WriteString(b.printer.Sprintf("%d. %s: %s (%.0f%%)\n",
			i+1, strings.ToUpper(row.Symbol), SignalLabel(row.TradingSignal), row.TraderGrade))
	}
	return sb.String()
}

func (b *Builder) FormatMarketSummary(o *entities.MarketOverview, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(b.printer.Sprintf("📈 DAILY MARKET SUMMARY (%s)\n\n", now.Format("02 Jan 2006")))
	sb.WriteString(b.printer.Sprintf("Market Cap: $%.2fB\n", o.TotalMarketCap/1e9))
	sb.WriteString(b.printer.Sprintf("High Quality Tokens: %.2f%%\n", o.HighGradePercent))
	sb.WriteString(b.printer.Sprintf("Market Score: %.0f/100\n", o.SentimentScore))
	sb.WriteString(b.printer.Sprintf("Sentiment: %s\n\n", o.FearGreed))

	switch o.Outlook {
	case market.OutlookBullish:
		sb.WriteString("🟢 Market conditions are BULLISH. Consider accumulating quality assets.\n")
	case market.OutlookBearish:
		sb.WriteString("🔴 Market conditions are BEARISH. Consider caution and risk management.\n")
	default:
		sb.WriteString("🟡 Market conditions are NEUTRAL. Consider balanced portfolio strategies.\n")
	}
	return sb.String()
}

// SignalLabel renders a raw ternary signal
func SignalLabel(signal int) string {
	switch signal {
	case 1:
		return "BUY ✅"
	case -1:
		return "SELL ❌"
	default:
		return "HOLD ⏹️"
	}
}
