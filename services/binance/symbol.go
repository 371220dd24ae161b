package binance

import (
	"strings"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

// CoinFuturesSymbol rewrites a spot-style symbol to its coin-margined
// perpetual form: BTCUSDT -> BTCUSD_PERP. Symbols already carrying a
// contract suffix are returned unchanged.
func CoinFuturesSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "_") {
		return s
	}
	if strings.HasSuffix(s, "USDT") {
		return strings.TrimSuffix(s, "USDT") + "USD_PERP"
	}
	if strings.HasSuffix(s, "USD") {
		return s + "_PERP"
	}
	return s
}

// InferMarketType guesses the market namespace from a symbol suffix.
//
// This heuristic exists only for the legacy ticker-price lookup, where
// the caller supplies a bare symbol with no market type. Order placement
// and every other operation take the market type as an explicit argument
// and must never go through this function.
//
// Fallback order: the guessed market first, then the remaining candidates
// in tickerFallback order until one endpoint answers.
func InferMarketType(symbol string) types.MarketType {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, "_PERP"):
		return types.MarketTypeCoinFutures
	case strings.HasSuffix(s, "USDT") || strings.HasSuffix(s, "BUSD"):
		return types.MarketTypeSpot
	case strings.HasSuffix(s, "USD"):
		return types.MarketTypeCoinFutures
	default:
		return types.MarketTypeSpot
	}
}

// tickerFallback is the probe order for the legacy ticker lookup.
var tickerFallback = []types.MarketType{
	types.MarketTypeSpot,
	types.MarketTypeFutures,
	types.MarketTypeCoinFutures,
}

// tickerCandidates returns the endpoints to try for a bare-symbol ticker
// lookup, the inferred market first.
func tickerCandidates(symbol string) []types.MarketType {
	primary := InferMarketType(symbol)
	candidates := []types.MarketType{primary}
	for _, m := range tickerFallback {
		if m != primary {
			candidates = append(candidates, m)
		}
	}
	return candidates
}
