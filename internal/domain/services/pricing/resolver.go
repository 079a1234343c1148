package pricing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	apperrors "github.com/tm-signals/signals_service/pkg/errors"
	"go.uber.org/zap"
)

// DefaultAliases maps common tickers to the canonical coin ids of the spot price source
var DefaultAliases = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "polygon",
	"LINK":  "chainlink",
	"AVAX":  "avalanche",
}

// SpotSource looks up a USD price by canonical id
type SpotSource interface {
	SpotPrice(ctx context.Context, coinID string) (float64, bool, error)
}

// Resolver turns ticker symbols into spot prices through the alias table
type Resolver struct {
	source  SpotSource
	aliases map[string]string
	logger  *zap.Logger
}

// NewResolver creates a resolver. extra entries override or extend DefaultAliases.
func NewResolver(source SpotSource, extra map[string]string, logger *zap.Logger) *Resolver {
	aliases := make(map[string]string, len(DefaultAliases)+len(extra))
	for k, v := range DefaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[strings.ToUpper(k)] = strings.ToLower(v)
	}
	return &Resolver{source: source, aliases: aliases, logger: logger}
}

// Candidates returns the ids tried for symbol, in order: the raw lowercase symbol, then its alias
func (r *Resolver) Candidates(symbol string) []string {
	raw := strings.ToLower(strings.TrimSpace(symbol))
	ids := []string{raw}
	if alias, ok := r.aliases[strings.ToUpper(raw)]; ok && alias != raw {
		ids = append(ids, alias)
	}
	return ids
}

// SpotPrice resolves the current USD price of symbol. It fails with
// PriceUnavailable when no candidate id resolves, or UpstreamError when every
// attempt failed at the transport level.
func (r *Resolver) SpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var lastErr error
	transportFailures := 0
	candidates := r.Candidates(symbol)

	for _, id := range candidates {
		price, found, err := r.source.SpotPrice(ctx, id)
		if err != nil {
			lastErr = err
			transportFailures++
			continue
		}
		if found && price > 0 {
			return decimal.NewFromFloat(price), nil
		}
	}

	if transportFailures == len(candidates) && lastErr != nil {
		r.logger.Warn("Spot price source unreachable", zap.String("symbol", symbol), zap.Error(lastErr))
		return decimal.Zero, apperrors.Upstream("spot price", lastErr)
	}
	return decimal.Zero, apperrors.PriceUnavailable(strings.ToUpper(symbol))
}
