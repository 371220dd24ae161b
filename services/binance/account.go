package binance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

// AccountClient binds one credential to the Binance domain operations.
// Query operations return the raw upstream JSON; shaping it for the
// frontend is the normalizer's job.
type AccountClient struct {
	cred types.Credential
	rest *RestClient
}

// NewAccountClient builds a client for one resolved credential.
func NewAccountClient(cred types.Credential, opts ...Option) *AccountClient {
	return &AccountClient{
		cred: cred,
		rest: NewRestClient(cred.APIKey, cred.APISecret, opts...),
	}
}

// Identifier returns the account identifier this client operates as.
func (a *AccountClient) Identifier() string {
	return a.cred.Identifier
}

// Rest exposes the underlying signed-request client.
func (a *AccountClient) Rest() *RestClient {
	return a.rest
}

// balancePaths routes balance queries per market namespace.
var balancePaths = map[types.MarketType]string{
	types.MarketTypeSpot:            "/api/v3/account",
	types.MarketTypeFutures:         "/fapi/v2/balance",
	types.MarketTypeCoinFutures:     "/dapi/v1/balance",
	types.MarketTypePortfolioMargin: "/papi/v1/balance",
}

// positionPaths routes position queries; spot has no positions.
var positionPaths = map[types.MarketType]string{
	types.MarketTypeFutures:         "/fapi/v2/positionRisk",
	types.MarketTypeCoinFutures:     "/dapi/v1/positionRisk",
	types.MarketTypePortfolioMargin: "/papi/v1/um/positionRisk",
}

// openOrderPaths routes open-order queries per market namespace.
var openOrderPaths = map[types.MarketType]string{
	types.MarketTypeSpot:            "/api/v3/openOrders",
	types.MarketTypeFutures:         "/fapi/v1/openOrders",
	types.MarketTypeCoinFutures:     "/dapi/v1/openOrders",
	types.MarketTypePortfolioMargin: "/papi/v1/um/openOrders",
}

// tradePaths routes account-trade queries per market namespace.
var tradePaths = map[types.MarketType]string{
	types.MarketTypeSpot:            "/api/v3/myTrades",
	types.MarketTypeFutures:         "/fapi/v1/userTrades",
	types.MarketTypeCoinFutures:     "/dapi/v1/userTrades",
	types.MarketTypePortfolioMargin: "/papi/v1/um/userTrades",
}

// orderPaths routes order placement/cancellation per market namespace.
var orderPaths = map[types.MarketType]string{
	types.MarketTypeSpot:            "/api/v3/order",
	types.MarketTypeFutures:         "/fapi/v1/order",
	types.MarketTypeCoinFutures:     "/dapi/v1/order",
	types.MarketTypePortfolioMargin: "/papi/v1/um/order",
}

// markPricePaths routes mark-price lookups for contract markets.
var markPricePaths = map[types.MarketType]string{
	types.MarketTypeFutures:         "/fapi/v1/premiumIndex",
	types.MarketTypeCoinFutures:     "/dapi/v1/premiumIndex",
	types.MarketTypePortfolioMargin: "/fapi/v1/premiumIndex",
}

// tickerPaths routes last-price lookups for the legacy heuristic path.
var tickerPaths = map[types.MarketType]string{
	types.MarketTypeSpot:        "/api/v3/ticker/price",
	types.MarketTypeFutures:     "/fapi/v1/ticker/price",
	types.MarketTypeCoinFutures: "/dapi/v1/ticker/price",
}

// Balances fetches raw balances for the given market namespace.
func (a *AccountClient) Balances(ctx context.Context, market types.MarketType) (json.RawMessage, error) {
	path, ok := balancePaths[market]
	if !ok {
		return nil, fmt.Errorf("no balance endpoint for market %s", market)
	}
	return a.rest.Get(ctx, path, nil, true)
}

// AccountInfo fetches the raw spot account snapshot, permissions included.
func (a *AccountClient) AccountInfo(ctx context.Context) (json.RawMessage, error) {
	return a.rest.Get(ctx, "/api/v3/account", nil, true)
}

// Positions fetches raw open positions for a contract market.
func (a *AccountClient) Positions(ctx context.Context, market types.MarketType) (json.RawMessage, error) {
	path, ok := positionPaths[market]
	if !ok {
		return nil, fmt.Errorf("market %s has no positions", market)
	}
	return a.rest.Get(ctx, path, nil, true)
}

// OpenOrders fetches raw open orders; symbol is optional for most markets.
func (a *AccountClient) OpenOrders(ctx context.Context, market types.MarketType, symbol string) (json.RawMessage, error) {
	path, ok := openOrderPaths[market]
	if !ok {
		return nil, fmt.Errorf("no open-orders endpoint for market %s", market)
	}
	params := NewParams()
	if symbol != "" {
		if market == types.MarketTypeCoinFutures {
			symbol = CoinFuturesSymbol(symbol)
		}
		params.Set("symbol", symbol)
	}
	return a.rest.Get(ctx, path, params, true)
}

// Trades fetches raw account trades for one symbol.
func (a *AccountClient) Trades(ctx context.Context, market types.MarketType, symbol string, limit int) (json.RawMessage, error) {
	path, ok := tradePaths[market]
	if !ok {
		return nil, fmt.Errorf("no trades endpoint for market %s", market)
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required for trade history")
	}
	if market == types.MarketTypeCoinFutures {
		symbol = CoinFuturesSymbol(symbol)
	}
	params := NewParams().Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	return a.rest.Get(ctx, path, params, true)
}

// SubAccounts lists sub-accounts. Master credential only.
func (a *AccountClient) SubAccounts(ctx context.Context) (json.RawMessage, error) {
	if a.cred.Scope != types.ScopeMaster {
		return nil, fmt.Errorf("sub-account list requires master credentials")
	}
	return a.rest.Get(ctx, "/sapi/v1/sub-account/list", nil, true)
}

// MarkPrice fetches the current mark price for a contract symbol.
func (a *AccountClient) MarkPrice(ctx context.Context, market types.MarketType, symbol string) (decimal.Decimal, error) {
	path, ok := markPricePaths[market]
	if !ok {
		return decimal.Zero, fmt.Errorf("no mark price for market %s", market)
	}
	if market == types.MarketTypeCoinFutures {
		symbol = CoinFuturesSymbol(symbol)
	}
	raw, err := a.rest.Get(ctx, path, NewParams().Set("symbol", symbol), false)
	if err != nil {
		return decimal.Zero, err
	}

	// Coin-margined premiumIndex answers with an array even for a single
	// symbol; UM answers with an object.
	var single struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.MarkPrice != "" {
		return decimal.NewFromString(single.MarkPrice)
	}
	var many []struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return decimal.NewFromString(many[0].MarkPrice)
	}
	return decimal.Zero, fmt.Errorf("unexpected mark price payload for %s", symbol)
}

// TickerPrice looks up the last price for a bare symbol using the suffix
// heuristic, probing fallback endpoints in order until one answers.
func (a *AccountClient) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, types.MarketType, error) {
	var lastErr error
	for _, market := range tickerCandidates(symbol) {
		path := tickerPaths[market]
		probe := symbol
		if market == types.MarketTypeCoinFutures {
			probe = CoinFuturesSymbol(symbol)
		}
		raw, err := a.rest.Get(ctx, path, NewParams().Set("symbol", probe), false)
		if err != nil {
			lastErr = err
			continue
		}
		price, err := parseTickerPrice(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return price, market, nil
	}
	return decimal.Zero, "", fmt.Errorf("ticker lookup failed for %s: %w", symbol, lastErr)
}

func parseTickerPrice(raw json.RawMessage) (decimal.Decimal, error) {
	var single struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.Price != "" {
		return decimal.NewFromString(single.Price)
	}
	var many []struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return decimal.NewFromString(many[0].Price)
	}
	return decimal.Zero, fmt.Errorf("unexpected ticker payload")
}
