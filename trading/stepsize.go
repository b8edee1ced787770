package trading

import (
	"github.com/shopspring/decimal"
)

// DefaultStepSize is used for symbols missing from the table
var DefaultStepSize = decimal.New(1, -4)

// defaultStepSizes approximates the exchange LOT_SIZE filters of the pairs
// listed on the trade screen.
var defaultStepSizes = map[string]decimal.Decimal{
	"BTCUSDT":  decimal.New(1, -6),
	"ETHUSDT":  decimal.New(1, -4),
	"BNBUSDT":  decimal.New(1, -2),
	"SOLUSDT":  decimal.New(1, -2),
	"XRPUSDT":  decimal.New(1, -1),
	"ADAUSDT":  decimal.New(1, 0),
	"AVAXUSDT": decimal.New(1, -2),
	"DOGEUSDT": decimal.New(1, 0),
	"DOTUSDT":  decimal.New(1, -2),
	"LINKUSDT": decimal.New(1, -2),
}

// StepSizeResolver maps a symbol to the minimum tradable quantity increment.
// A resolver is immutable once built.
type StepSizeResolver struct {
	steps    map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewStepSizeResolver builds a resolver from the built-in table, layered with
// overrides. A non-positive fallback keeps DefaultStepSize.
func NewStepSizeResolver(overrides map[string]decimal.Decimal, fallback decimal.Decimal) *StepSizeResolver {
	r := &StepSizeResolver{
		steps:    make(map[string]decimal.Decimal, len(defaultStepSizes)+len(overrides)),
		fallback: DefaultStepSize,
	}
	if fallback.IsPositive() {
		r.fallback = fallback
	}
	for sym, step := range defaultStepSizes {
		r.steps[sym] = step
	}
	r.merge(overrides)
	return r
}

// WithFilters returns a copy layered with steps taken from live exchange
// filters. The receiver is left untouched.
func (r *StepSizeResolver) WithFilters(filters map[string]decimal.Decimal) *StepSizeResolver {
	next := &StepSizeResolver{
		steps:    make(map[string]decimal.Decimal, len(r.steps)+len(filters)),
		fallback: r.fallback,
	}
	for sym, step := range r.steps {
		next.steps[sym] = step
	}
	next.merge(filters)
	return next
}

func (r *StepSizeResolver) merge(steps map[string]decimal.Decimal) {
	for sym, step := range steps {
		sym = NormalizeSymbol(sym)
		if sym == "" || !step.IsPositive() {
			continue
		}
		r.steps[sym] = step
	}
}

// Resolve never fails: unknown symbols get the fallback step.
func (r *StepSizeResolver) Resolve(symbol string) decimal.Decimal {
	if step, ok := r.steps[NormalizeSymbol(symbol)]; ok {
		return step
	}
	return r.fallback
}

// Known reports whether symbol has its own entry
func (r *StepSizeResolver) Known(symbol string) bool {
	_, ok := r.steps[NormalizeSymbol(symbol)]
	return ok
}

// Len returns the number of configured entries
func (r *StepSizeResolver) Len() int { return len(r.steps) }

var displayThreshold = decimal.New(1, -2)

// DisplayPlaces is the number of decimals used to print a slider-committed
// quantity: 3 below a 0.01 step, 2 otherwise. It is a fixed display policy
// and is not derived from the step's own precision.
func DisplayPlaces(step decimal.Decimal) int32 {
	if step.LessThan(displayThreshold) {
		return 3
	}
	return 2
}

// FloorToStep rounds v down to a multiple of step. Negative values give zero.
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() || !v.IsPositive() {
		return decimal.Zero
	}
	// QuoRem is exact; Div rounds at DivisionPrecision and can land on the
	// next multiple.
	n, _ := v.QuoRem(step, 0)
	return n.Mul(step)
}
