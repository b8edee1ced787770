package trading

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultQuoteAsset is assumed when a symbol has no recognizable quote suffix
const DefaultQuoteAsset = "USDT"

// Side is the direction of an order
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) String() string { return string(s) }

// Valid reports whether s is one of the known sides
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderKind is market or limit
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
)

// knownQuotes is matched longest first so that "USDT" wins over "USD"
var knownQuotes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "USD", "BTC", "ETH", "BNB"}

// NormalizeSymbol trims and upper-cases a trading pair
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SplitSymbol returns the base and quote asset of a pair like BTCUSDT
func SplitSymbol(symbol string) (base, quote string) {
	s := NormalizeSymbol(symbol)
	for _, q := range knownQuotes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return s[:len(s)-len(q)], q
		}
	}
	return s, DefaultQuoteAsset
}

// PriceQuote is the current price of a symbol in quote currency units
type PriceQuote struct {
	Symbol    string
	Value     decimal.Decimal
	Change24h decimal.Decimal
	AsOf      time.Time
}

// Ticker is one row of the price feed
type Ticker struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
}

// HoldingSnapshot is one asset of the portfolio as reported by the backend
type HoldingSnapshot struct {
	Asset        string          `json:"asset"`
	Free         decimal.Decimal `json:"free"`
	Locked       decimal.Decimal `json:"locked"`
	Total        decimal.Decimal `json:"total"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
}

// OrderRequest is built only when a sizing session is confirmed
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Kind          OrderKind
	Quantity      decimal.Decimal
	LimitPrice    decimal.NullDecimal
}

// Ack is the opaque success result of an order submission
type Ack struct {
	OrderID string
	Status  string
	Message string
}
