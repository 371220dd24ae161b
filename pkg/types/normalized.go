package types

import (
	"github.com/shopspring/decimal"
)

// NormalizedBalance is one asset balance in the canonical frontend schema,
// regardless of which market namespace it came from.
type NormalizedBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
}

// IsZero reports whether the balance carries no funds at all.
func (b NormalizedBalance) IsZero() bool {
	return b.Free.IsZero() && b.Locked.IsZero()
}

// NormalizedPosition is one open contract position in the canonical schema.
type NormalizedPosition struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	PnlPercentage decimal.Decimal `json:"pnl_percentage"`
	Leverage      int             `json:"leverage"`
}

// NormalizedOrder is one order in the canonical schema.
type NormalizedOrder struct {
	Symbol        string          `json:"symbol"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	ExecutedQty   decimal.Decimal `json:"executed_qty"`
	Status        OrderStatus     `json:"status"`
	Timestamp     int64           `json:"timestamp"`
}

// NormalizedTrade is one account trade (fill) in the canonical schema.
type NormalizedTrade struct {
	Symbol      string          `json:"symbol"`
	OrderID     string          `json:"order_id"`
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Fee         decimal.Decimal `json:"fee"`
	FeeAsset    string          `json:"fee_asset"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Timestamp   int64           `json:"timestamp"`
}
