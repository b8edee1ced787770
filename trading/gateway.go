package trading

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeassist/logger"
	"tradeassist/metrics"
)

// OrderSink is the order endpoint of the backend
type OrderSink interface {
	PlaceBuy(ctx context.Context, token, symbol string, quantity decimal.Decimal, limit decimal.NullDecimal) (Ack, error)
	PlaceSell(ctx context.Context, token, symbol string, quantity decimal.Decimal, limit decimal.NullDecimal) (Ack, error)
}

const defaultJournalSize = 50

// OrderRecord is one submission as seen by this client. Kept in memory only.
type OrderRecord struct {
	ClientOrderID string
	OrderID       string
	Symbol        string
	Side          Side
	Kind          OrderKind
	Quantity      decimal.Decimal
	LimitPrice    decimal.NullDecimal
	Status        string
	ErrorMsg      string
	SubmitTime    time.Time
	CompleteTime  time.Time
}

// Failed reports whether the backend rejected the order
func (r OrderRecord) Failed() bool { return r.ErrorMsg != "" }

// GatewayStats counts submissions since start
type GatewayStats struct {
	Submitted int
	Succeeded int
	Failed    int
}

// Gateway sends each confirmed order to the sink exactly once
type Gateway struct {
	sink  OrderSink
	limit int
	now   func() time.Time

	mu      sync.RWMutex
	records []OrderRecord
	stats   GatewayStats
}

// NewGateway creates a gateway over sink
func NewGateway(sink OrderSink) *Gateway {
	return &Gateway{
		sink:  sink,
		limit: defaultJournalSize,
		now:   time.Now,
	}
}

// Submit places req. There is no retry; a sink failure comes back wrapped
// in a *SubmissionError.
func (g *Gateway) Submit(ctx context.Context, req OrderRequest, token string) (Ack, error) {
	switch {
	case req.Symbol == "":
		return Ack{}, ErrEmptySymbol
	case !req.Side.Valid():
		return Ack{}, ErrInvalidSide
	case !req.Quantity.IsPositive():
		return Ack{}, ErrInvalidQuantity
	case token == "":
		return Ack{}, ErrUnauthenticated
	}

	record := OrderRecord{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Kind:          req.Kind,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		SubmitTime:    g.now(),
	}

	var (
		ack Ack
		err error
	)
	if req.Side == SideBuy {
		ack, err = g.sink.PlaceBuy(ctx, token, req.Symbol, req.Quantity, req.LimitPrice)
	} else {
		ack, err = g.sink.PlaceSell(ctx, token, req.Symbol, req.Quantity, req.LimitPrice)
	}
	record.CompleteTime = g.now()
	metrics.Orders.WithLabelValues(req.Side.String(), metrics.Result(err)).Inc()

	if err != nil {
		record.Status = "failed"
		record.ErrorMsg = err.Error()
		g.append(record, false)
		logger.Errorf("%s %s %s failed: %v", req.Side, req.Quantity, req.Symbol, err)
		return Ack{}, &SubmissionError{Symbol: req.Symbol, Side: req.Side, Err: err}
	}

	record.OrderID = ack.OrderID
	record.Status = ack.Status
	if record.Status == "" {
		record.Status = "submitted"
	}
	g.append(record, true)
	logger.Infof("%s %s %s accepted (order %s)", req.Side, req.Quantity, req.Symbol, ack.OrderID)
	return ack, nil
}

func (g *Gateway) append(r OrderRecord, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.Submitted++
	if ok {
		g.stats.Succeeded++
	} else {
		g.stats.Failed++
	}

	g.records = append(g.records, r)
	if len(g.records) > g.limit {
		g.records = g.records[len(g.records)-g.limit:]
	}
}

// Recent returns up to n records, newest first. n <= 0 returns all of them.
func (g *Gateway) Recent(n int) []OrderRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if n <= 0 || n > len(g.records) {
		n = len(g.records)
	}
	out := make([]OrderRecord, 0, n)
	for i := len(g.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, g.records[i])
	}
	return out
}

// Stats returns the submission counters
func (g *Gateway) Stats() GatewayStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}
