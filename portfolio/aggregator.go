package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"tradeassist/trading"
)

var hundred = decimal.NewFromInt(100)

// Summary holds portfolio-level totals
type Summary struct {
	TotalValue    decimal.Decimal
	TotalCost     decimal.Decimal
	TotalProfit   decimal.Decimal
	ProfitPercent decimal.Decimal
	Holdings      int
}

// InProfit reports a non-negative total P&L
func (s Summary) InProfit() bool {
	return !s.TotalProfit.IsNegative()
}

// Value is total × current price of a single holding
func Value(h trading.HoldingSnapshot) decimal.Decimal {
	return h.Total.Mul(h.CurrentPrice)
}

// Cost is the cost basis of a single holding
func Cost(h trading.HoldingSnapshot) decimal.Decimal {
	return h.AvgBuyPrice.Mul(h.Total)
}

// Summarize reduces holdings to totals
func Summarize(holdings []trading.HoldingSnapshot) Summary {
	var s Summary
	for _, h := range holdings {
		s.TotalValue = s.TotalValue.Add(Value(h))
		s.TotalCost = s.TotalCost.Add(Cost(h))
	}
	s.TotalProfit = s.TotalValue.Sub(s.TotalCost)
	if s.TotalCost.IsPositive() {
		s.ProfitPercent = s.TotalProfit.Div(s.TotalCost).Mul(hundred)
	}
	s.Holdings = len(holdings)
	return s
}

// ByValue returns a copy of holdings, largest position first, dust (zero
// total) dropped.
func ByValue(holdings []trading.HoldingSnapshot) []trading.HoldingSnapshot {
	out := make([]trading.HoldingSnapshot, 0, len(holdings))
	for _, h := range holdings {
		if h.Total.IsPositive() {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Value(out[i]).GreaterThan(Value(out[j]))
	})
	return out
}
