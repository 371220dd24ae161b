package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Balances maps a raw balance payload into the canonical schema,
// dropping entries that carry no funds. The zero filter is a display
// simplification and is idempotent: filtering a filtered list is a no-op.
func Balances(market types.MarketType, raw json.RawMessage) ([]types.NormalizedBalance, error) {
	table, ok := balanceTables[market]
	if !ok {
		return nil, fmt.Errorf("no balance mapping for market %s", market)
	}

	entries, err := decodeEntries(raw, table.wrapper)
	if err != nil {
		return nil, err
	}

	out := make([]types.NormalizedBalance, 0, len(entries))
	for _, entry := range entries {
		free := getDecimal(entry, table.free)
		locked := getDecimal(entry, table.locked)
		total := getDecimal(entry, table.total)
		switch {
		case table.total == "":
			total = free.Add(locked)
		case table.locked == "":
			locked = total.Sub(free)
			if locked.IsNegative() {
				locked = decimal.Zero
			}
		}

		bal := types.NormalizedBalance{
			Asset:  getString(entry, table.asset),
			Free:   free,
			Locked: locked,
			Total:  total,
		}
		if bal.IsZero() {
			continue
		}
		out = append(out, bal)
	}
	return out, nil
}

// Positions maps a raw position payload into the canonical schema,
// dropping flat positions and deriving the PnL percentage.
func Positions(market types.MarketType, raw json.RawMessage) ([]types.NormalizedPosition, error) {
	table, ok := positionTables[market]
	if !ok {
		return nil, fmt.Errorf("no position mapping for market %s", market)
	}

	entries, err := decodeEntries(raw, "")
	if err != nil {
		return nil, err
	}

	out := make([]types.NormalizedPosition, 0, len(entries))
	for _, entry := range entries {
		qty := getDecimal(entry, table.quantity)
		if qty.IsZero() {
			continue
		}
		entryPrice := getDecimal(entry, table.entryPrice)
		markPrice := getDecimal(entry, table.markPrice)

		side := getString(entry, table.side)
		if side == "" || side == "BOTH" {
			if qty.IsPositive() {
				side = "LONG"
			} else {
				side = "SHORT"
			}
		}

		leverage, _ := strconv.Atoi(getString(entry, table.leverage))

		out = append(out, types.NormalizedPosition{
			Symbol:        getString(entry, table.symbol),
			Side:          side,
			Quantity:      qty,
			EntryPrice:    entryPrice,
			MarkPrice:     markPrice,
			UnrealizedPnL: getDecimal(entry, table.unrealized),
			PnlPercentage: PnlPercentage(entryPrice, markPrice, qty),
			Leverage:      leverage,
		})
	}
	return out, nil
}

// Orders maps a raw order payload into the canonical schema.
func Orders(market types.MarketType, raw json.RawMessage) ([]types.NormalizedOrder, error) {
	table, ok := orderTables[market]
	if !ok {
		return nil, fmt.Errorf("no order mapping for market %s", market)
	}

	entries, err := decodeEntries(raw, "")
	if err != nil {
		return nil, err
	}

	out := make([]types.NormalizedOrder, 0, len(entries))
	for _, entry := range entries {
		out = append(out, types.NormalizedOrder{
			Symbol:        getString(entry, table.symbol),
			OrderID:       getString(entry, table.orderID),
			ClientOrderID: getString(entry, table.clientID),
			Side:          getString(entry, table.side),
			Type:          getString(entry, table.orderType),
			Price:         getDecimal(entry, table.price),
			Quantity:      getDecimal(entry, table.quantity),
			ExecutedQty:   getDecimal(entry, table.executed),
			Status:        MapOrderStatus(getString(entry, table.status)),
			Timestamp:     getInt(entry, table.timestamp),
		})
	}
	return out, nil
}

// Trades maps a raw account-trade payload into the canonical schema.
func Trades(market types.MarketType, raw json.RawMessage) ([]types.NormalizedTrade, error) {
	table, ok := tradeTables[market]
	if !ok {
		return nil, fmt.Errorf("no trade mapping for market %s", market)
	}

	entries, err := decodeEntries(raw, "")
	if err != nil {
		return nil, err
	}

	out := make([]types.NormalizedTrade, 0, len(entries))
	for _, entry := range entries {
		side := getString(entry, table.side)
		if side == "" && table.buyerFlag != "" {
			if isBuyer, _ := entry[table.buyerFlag].(bool); isBuyer {
				side = types.OrderSideBuy
			} else {
				side = types.OrderSideSell
			}
		}
		out = append(out, types.NormalizedTrade{
			Symbol:      getString(entry, table.symbol),
			OrderID:     getString(entry, table.orderID),
			Side:        side,
			Price:       getDecimal(entry, table.price),
			Quantity:    getDecimal(entry, table.quantity),
			Fee:         getDecimal(entry, table.fee),
			FeeAsset:    getString(entry, table.feeAsset),
			RealizedPnL: getDecimal(entry, table.realized),
			Timestamp:   getInt(entry, table.timestamp),
		})
	}
	return out, nil
}

// MapOrderStatus folds upstream statuses into the closed enum. Unknown
// statuses pass through untouched so new upstream states never error.
func MapOrderStatus(status string) types.OrderStatus {
	switch types.OrderStatus(status) {
	case types.OrderStatusNew,
		types.OrderStatusPartiallyFilled,
		types.OrderStatusFilled,
		types.OrderStatusCanceled,
		types.OrderStatusRejected,
		types.OrderStatusExpired:
		return types.OrderStatus(status)
	case "CANCELLED":
		return types.OrderStatusCanceled
	default:
		return types.OrderStatus(status)
	}
}

// PnlPercentage derives the percentage move between entry and mark price,
// signed by position direction: long positions gain when mark > entry,
// shorts gain when mark < entry. A zero entry price yields zero, never a
// division error.
func PnlPercentage(entryPrice, markPrice, quantity decimal.Decimal) decimal.Decimal {
	if entryPrice.IsZero() {
		return decimal.Zero
	}
	pct := markPrice.Sub(entryPrice).Div(entryPrice).Mul(hundred)
	if quantity.IsNegative() {
		pct = pct.Neg()
	}
	return pct
}

// decodeEntries parses a payload into generic entries, unwrapping one
// object level when the table names a wrapper key.
func decodeEntries(raw json.RawMessage, wrapper string) ([]map[string]interface{}, error) {
	if wrapper != "" {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("failed to parse payload envelope: %w", err)
		}
		inner, ok := envelope[wrapper]
		if !ok {
			return nil, fmt.Errorf("payload missing %q field", wrapper)
		}
		raw = inner
	}

	var entries []map[string]interface{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Single-object payloads (e.g. one order) normalize as a
		// one-element list.
		var single map[string]interface{}
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("failed to parse payload: %w", err)
		}
		entries = []map[string]interface{}{single}
	}
	return entries, nil
}

func getString(entry map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	switch v := entry[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func getDecimal(entry map[string]interface{}, key string) decimal.Decimal {
	s := getString(entry, key)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func getInt(entry map[string]interface{}, key string) int64 {
	if key == "" {
		return 0
	}
	switch v := entry[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}
