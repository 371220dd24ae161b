package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

// newClientOrderID tags every submitted order so fills coming back on the
// user-data stream can be matched to their originating request.
func newClientOrderID() string {
	return "bgw-" + uuid.NewString()
}

// PlaceOrder validates and submits one order. The market type is always
// an explicit argument on the request; this path never infers it.
//
// Contract markets: a MARKET order, or any order arriving without a
// price, is converted to a LIMIT order at the current mark price. This
// reproduces upstream behavior that trades true market-order semantics
// for a higher acceptance rate on contract endpoints. Callers that need a
// genuine market fill on contracts do not get one here.
func (a *AccountClient) PlaceOrder(ctx context.Context, req *types.OrderRequest) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	path, ok := orderPaths[req.Market]
	if !ok {
		return nil, fmt.Errorf("no order endpoint for market %s", req.Market)
	}

	symbol := strings.ToUpper(req.Symbol)
	if req.Market == types.MarketTypeCoinFutures {
		symbol = CoinFuturesSymbol(symbol)
	}

	orderType := strings.ToUpper(req.Type)
	price := req.Price

	if req.Market.IsContract() && (orderType == types.OrderTypeMarket || price.IsZero()) {
		mark, err := a.MarkPrice(ctx, req.Market, symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch mark price for %s: %w", symbol, err)
		}
		orderType = types.OrderTypeLimit
		price = mark
	}

	params := NewParams().
		Set("symbol", symbol).
		Set("side", strings.ToUpper(req.Side)).
		Set("type", orderType).
		Set("newClientOrderId", newClientOrderID())

	if !req.Quantity.IsZero() {
		params.Set("quantity", req.Quantity.String())
	} else if req.Market == types.MarketTypeSpot && orderType == types.OrderTypeMarket {
		params.Set("quoteOrderQty", req.QuoteOrderQty.String())
	} else {
		return nil, fmt.Errorf("quantity is required for %s %s orders", req.Market, orderType)
	}

	if orderType == types.OrderTypeLimit {
		params.Set("price", price.String())
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	}
	if req.ReduceOnly && req.Market.IsContract() {
		params.Set("reduceOnly", "true")
	}

	return a.rest.Post(ctx, path, params)
}

// CancelOrder cancels one order by exchange order id.
func (a *AccountClient) CancelOrder(ctx context.Context, market types.MarketType, symbol, orderID string) (json.RawMessage, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	path, ok := orderPaths[market]
	if !ok {
		return nil, fmt.Errorf("no order endpoint for market %s", market)
	}
	if market == types.MarketTypeCoinFutures {
		symbol = CoinFuturesSymbol(symbol)
	}
	params := NewParams().
		Set("symbol", strings.ToUpper(symbol)).
		Set("orderId", orderID)
	return a.rest.Delete(ctx, path, params)
}
