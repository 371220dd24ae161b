package normalizer

import "github.com/omsfleet/binance-gateway/pkg/types"

// The same logical field arrives under different raw names depending on
// which API namespace produced the payload. Each market type gets its own
// mapping table; endpoint code never touches raw field names directly.

// balanceTable maps raw balance fields. wrapper names the JSON key
// holding the entry array when the payload is an object (spot account
// snapshot); empty means the payload is a top-level array. Exactly one of
// locked/total may be empty; the missing one is derived.
type balanceTable struct {
	wrapper string
	asset   string
	free    string
	locked  string
	total   string
}

var balanceTables = map[types.MarketType]balanceTable{
	types.MarketTypeSpot: {
		wrapper: "balances",
		asset:   "asset",
		free:    "free",
		locked:  "locked",
	},
	types.MarketTypeFutures: {
		asset: "asset",
		free:  "availableBalance",
		total: "balance",
	},
	types.MarketTypeCoinFutures: {
		asset: "asset",
		free:  "availableBalance",
		total: "balance",
	},
	types.MarketTypePortfolioMargin: {
		asset: "asset",
		free:  "crossMarginFree",
		total: "totalWalletBalance",
	},
}

// positionTable maps raw position fields for contract markets.
type positionTable struct {
	symbol     string
	quantity   string
	entryPrice string
	markPrice  string
	unrealized string
	leverage   string
	side       string
}

var positionTables = map[types.MarketType]positionTable{
	types.MarketTypeFutures: {
		symbol:     "symbol",
		quantity:   "positionAmt",
		entryPrice: "entryPrice",
		markPrice:  "markPrice",
		unrealized: "unRealizedProfit",
		leverage:   "leverage",
		side:       "positionSide",
	},
	types.MarketTypeCoinFutures: {
		symbol:     "symbol",
		quantity:   "positionAmt",
		entryPrice: "entryPrice",
		markPrice:  "markPrice",
		unrealized: "unRealizedProfit",
		leverage:   "leverage",
		side:       "positionSide",
	},
	types.MarketTypePortfolioMargin: {
		symbol:     "symbol",
		quantity:   "positionAmt",
		entryPrice: "entryPrice",
		markPrice:  "markPrice",
		unrealized: "unRealizedProfit",
		leverage:   "leverage",
		side:       "positionSide",
	},
}

// orderTable maps raw order fields.
type orderTable struct {
	symbol      string
	orderID     string
	clientID    string
	price       string
	quantity    string
	executed    string
	status      string
	side        string
	orderType   string
	timestamp   string
}

var orderTables = map[types.MarketType]orderTable{
	types.MarketTypeSpot: {
		symbol:    "symbol",
		orderID:   "orderId",
		clientID:  "clientOrderId",
		price:     "price",
		quantity:  "origQty",
		executed:  "executedQty",
		status:    "status",
		side:      "side",
		orderType: "type",
		timestamp: "time",
	},
	types.MarketTypeFutures: {
		symbol:    "symbol",
		orderID:   "orderId",
		clientID:  "clientOrderId",
		price:     "price",
		quantity:  "origQty",
		executed:  "executedQty",
		status:    "status",
		side:      "side",
		orderType: "type",
		timestamp: "time",
	},
	types.MarketTypeCoinFutures: {
		symbol:    "symbol",
		orderID:   "orderId",
		clientID:  "clientOrderId",
		price:     "price",
		quantity:  "origQty",
		executed:  "executedQty",
		status:    "status",
		side:      "side",
		orderType: "type",
		timestamp: "time",
	},
	types.MarketTypePortfolioMargin: {
		symbol:    "symbol",
		orderID:   "orderId",
		clientID:  "clientOrderId",
		price:     "price",
		quantity:  "origQty",
		executed:  "executedQty",
		status:    "status",
		side:      "side",
		orderType: "type",
		timestamp: "updateTime",
	},
}

// tradeTable maps raw account-trade fields. Spot trades carry no side
// field; it is derived from the isBuyer flag.
type tradeTable struct {
	symbol    string
	orderID   string
	price     string
	quantity  string
	fee       string
	feeAsset  string
	realized  string
	side      string
	buyerFlag string
	timestamp string
}

var tradeTables = map[types.MarketType]tradeTable{
	types.MarketTypeSpot: {
		symbol:    "symbol",
		orderID:   "orderId",
		price:     "price",
		quantity:  "qty",
		fee:       "commission",
		feeAsset:  "commissionAsset",
		buyerFlag: "isBuyer",
		timestamp: "time",
	},
	types.MarketTypeFutures: {
		symbol:    "symbol",
		orderID:   "orderId",
		price:     "price",
		quantity:  "qty",
		fee:       "commission",
		feeAsset:  "commissionAsset",
		realized:  "realizedPnl",
		side:      "side",
		timestamp: "time",
	},
	types.MarketTypeCoinFutures: {
		symbol:    "symbol",
		orderID:   "orderId",
		price:     "price",
		quantity:  "qty",
		fee:       "commission",
		feeAsset:  "commissionAsset",
		realized:  "realizedPnl",
		side:      "side",
		timestamp: "time",
	},
	types.MarketTypePortfolioMargin: {
		symbol:    "symbol",
		orderID:   "orderId",
		price:     "price",
		quantity:  "qty",
		fee:       "commission",
		feeAsset:  "commissionAsset",
		realized:  "realizedPnl",
		side:      "side",
		timestamp: "time",
	},
}
