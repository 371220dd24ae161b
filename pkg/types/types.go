package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MarketType identifies which Binance API namespace an operation targets.
type MarketType string

const (
	MarketTypeSpot            MarketType = "spot"
	MarketTypeFutures         MarketType = "futures"         // USDT-margined
	MarketTypeCoinFutures     MarketType = "coin_futures"    // coin-margined
	MarketTypePortfolioMargin MarketType = "portfolio_margin"
)

// ParseMarketType validates a market type supplied by the frontend.
// An empty string defaults to spot.
func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MarketTypeSpot:
		return MarketTypeSpot, nil
	case MarketTypeFutures:
		return MarketTypeFutures, nil
	case MarketTypeCoinFutures:
		return MarketTypeCoinFutures, nil
	case MarketTypePortfolioMargin:
		return MarketTypePortfolioMargin, nil
	default:
		return "", fmt.Errorf("unsupported market type: %s", s)
	}
}

// IsContract reports whether the market trades derivative contracts.
func (m MarketType) IsContract() bool {
	return m == MarketTypeFutures || m == MarketTypeCoinFutures || m == MarketTypePortfolioMargin
}

// CredentialScope distinguishes master-account keys from sub-account keys.
type CredentialScope string

const (
	ScopeMaster     CredentialScope = "master"
	ScopeSubAccount CredentialScope = "subaccount"
)

// Credential is one resolved API key pair. Identifier is either a numeric
// user id (master) or a sub-account email.
type Credential struct {
	Identifier string          `json:"identifier"`
	APIKey     string          `json:"api_key"`
	APISecret  string          `json:"api_secret"`
	Scope      CredentialScope `json:"scope"`
}

// IsConfigured reports whether both halves of the key pair are present.
// A pair with exactly one non-empty field is treated as not configured.
func (c Credential) IsConfigured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Order sides
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order types
const (
	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"
)

// OrderStatus is the closed set of statuses the frontend understands.
// Unknown upstream statuses pass through untouched.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// OrderRequest carries everything needed to place one order on one account.
// Market type is always explicit here; it is never inferred from the symbol.
type OrderRequest struct {
	Identifier    string          `json:"identifier"`
	Market        MarketType      `json:"market"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	QuoteOrderQty decimal.Decimal `json:"quote_order_qty"`
	Price         decimal.Decimal `json:"price"`
	TimeInForce   string          `json:"time_in_force,omitempty"`
	ReduceOnly    bool            `json:"reduce_only,omitempty"`
}

// Validate checks required order fields before any request is built.
func (r *OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	side := strings.ToUpper(r.Side)
	if side != OrderSideBuy && side != OrderSideSell {
		return fmt.Errorf("side must be BUY or SELL, got %q", r.Side)
	}
	if r.Type == "" {
		return fmt.Errorf("order type is required")
	}
	if r.Quantity.IsZero() && r.QuoteOrderQty.IsZero() {
		return fmt.Errorf("quantity or quoteOrderQty is required")
	}
	if r.Quantity.IsNegative() || r.QuoteOrderQty.IsNegative() {
		return fmt.Errorf("quantity must be positive")
	}
	if strings.ToUpper(r.Type) == OrderTypeLimit && r.Price.IsZero() && !r.Market.IsContract() {
		return fmt.Errorf("price is required for spot limit orders")
	}
	return nil
}

// TransferRequest moves funds between master and sub-accounts. Empty email
// on either side means the master account.
type TransferRequest struct {
	FromEmail string          `json:"from_email,omitempty"`
	ToEmail   string          `json:"to_email,omitempty"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
}

// Validate checks transfer fields.
func (r *TransferRequest) Validate() error {
	if r.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if r.FromEmail == "" && r.ToEmail == "" {
		return fmt.Errorf("at least one of from_email or to_email is required")
	}
	if r.FromEmail == r.ToEmail {
		return fmt.Errorf("from and to accounts must differ")
	}
	return nil
}
