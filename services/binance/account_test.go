package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

func testCredential(scope types.CredentialScope) types.Credential {
	return types.Credential{
		Identifier: "sub1@example.com",
		APIKey:     "key",
		APISecret:  "secret",
		Scope:      scope,
	}
}

func TestMarketTypeDispatch(t *testing.T) {
	var gotPaths []string
	var gotSymbols []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		gotSymbols = append(gotSymbols, r.URL.Query().Get("symbol"))
		w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	client := NewAccountClient(testCredential(types.ScopeSubAccount), WithHosts(testHosts(backend.URL)))
	ctx := context.Background()

	// UM futures keeps the symbol unchanged.
	_, err := client.OpenOrders(ctx, types.MarketTypeFutures, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "/fapi/v1/openOrders", gotPaths[0])
	assert.Equal(t, "BTCUSDT", gotSymbols[0])

	// CM futures rewrites the symbol to its perpetual form.
	_, err = client.OpenOrders(ctx, types.MarketTypeCoinFutures, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "/dapi/v1/openOrders", gotPaths[1])
	assert.Equal(t, "BTCUSD_PERP", gotSymbols[1])
}

func TestPositionsRejectSpot(t *testing.T) {
	client := NewAccountClient(testCredential(types.ScopeSubAccount))
	_, err := client.Positions(context.Background(), types.MarketTypeSpot)
	require.Error(t, err)
}

func TestSubAccountsRequireMasterScope(t *testing.T) {
	client := NewAccountClient(testCredential(types.ScopeSubAccount))
	_, err := client.SubAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "master")
}

func TestPlaceOrderValidationShortCircuits(t *testing.T) {
	// No backend: a validation failure must never reach the network.
	client := NewAccountClient(testCredential(types.ScopeSubAccount))

	_, err := client.PlaceOrder(context.Background(), &types.OrderRequest{
		Market: types.MarketTypeSpot,
		Symbol: "",
		Side:   "BUY",
		Type:   "LIMIT",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}

func TestPlaceOrderConvertsContractMarketToLimit(t *testing.T) {
	var orderQuery map[string]string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/premiumIndex":
			w.Write([]byte(`{"symbol":"BTCUSDT","markPrice":"50123.40000000"}`))
		case "/fapi/v1/order":
			orderQuery = map[string]string{}
			for k, v := range r.URL.Query() {
				orderQuery[k] = v[0]
			}
			w.Write([]byte(`{"orderId":1,"status":"NEW"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer backend.Close()

	client := NewAccountClient(testCredential(types.ScopeSubAccount), WithHosts(testHosts(backend.URL)))
	_, err := client.PlaceOrder(context.Background(), &types.OrderRequest{
		Market:   types.MarketTypeFutures,
		Symbol:   "BTCUSDT",
		Side:     "BUY",
		Type:     "MARKET",
		Quantity: decimal.NewFromFloat(0.5),
	})
	require.NoError(t, err)

	assert.Equal(t, "LIMIT", orderQuery["type"])
	assert.Equal(t, "50123.4", orderQuery["price"])
	assert.Equal(t, "GTC", orderQuery["timeInForce"])
	assert.True(t, strings.HasPrefix(orderQuery["newClientOrderId"], "bgw-"))
}

func TestSpotMarketOrderStaysMarket(t *testing.T) {
	var orderQuery map[string]string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/order", r.URL.Path)
		orderQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			orderQuery[k] = v[0]
		}
		w.Write([]byte(`{"orderId":2,"status":"FILLED"}`))
	}))
	defer backend.Close()

	client := NewAccountClient(testCredential(types.ScopeSubAccount), WithHosts(testHosts(backend.URL)))
	_, err := client.PlaceOrder(context.Background(), &types.OrderRequest{
		Market:   types.MarketTypeSpot,
		Symbol:   "BTCUSDT",
		Side:     "BUY",
		Type:     "MARKET",
		Quantity: decimal.NewFromFloat(0.1),
	})
	require.NoError(t, err)
	assert.Equal(t, "MARKET", orderQuery["type"])
	assert.Empty(t, orderQuery["price"])
}

func TestTickerPriceFallsBackAcrossMarkets(t *testing.T) {
	var paths []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/v3/ticker/price" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"50000.00"}`))
	}))
	defer backend.Close()

	client := NewAccountClient(testCredential(types.ScopeSubAccount), WithHosts(testHosts(backend.URL)))
	price, market, err := client.TickerPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	// Spot is probed first for a USDT symbol, then UM futures answers.
	assert.Equal(t, []string{"/api/v3/ticker/price", "/fapi/v1/ticker/price"}, paths)
	assert.Equal(t, types.MarketTypeFutures, market)
	assert.True(t, price.Equal(decimal.NewFromInt(50000)))
}

func TestTransferRequiresMasterScope(t *testing.T) {
	client := NewAccountClient(testCredential(types.ScopeSubAccount))
	_, err := client.Transfer(context.Background(), &types.TransferRequest{
		ToEmail: "sub1@example.com",
		Asset:   "USDT",
		Amount:  decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "master")
}
