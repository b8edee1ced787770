package trading

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"tradeassist/logger"
	"tradeassist/metrics"
)

// PortfolioSource is the backend that owns holdings and the price feed
type PortfolioSource interface {
	FetchPortfolio(ctx context.Context, token string) ([]HoldingSnapshot, error)
	FetchPrices(ctx context.Context) ([]Ticker, error)
}

// MarketView is what the sizing controller reads prices and balances from
type MarketView interface {
	CurrentPrice(symbol string) (PriceQuote, bool)
	FreeBalance(asset string) decimal.Decimal
}

// Snapshot is one immutable view of holdings and prices. A refresh never
// mutates a published snapshot; it builds a new one.
type Snapshot struct {
	Holdings    []HoldingSnapshot
	Tickers     []Ticker
	PricesAt    time.Time
	PortfolioAt time.Time

	prices   map[string]Ticker
	holdings map[string]HoldingSnapshot
}

var emptySnapshot = &Snapshot{
	prices:   map[string]Ticker{},
	holdings: map[string]HoldingSnapshot{},
}

// CurrentPrice returns the ticker price of symbol, or the holding's current
// price for the base asset when the feed does not list it.
func (s *Snapshot) CurrentPrice(symbol string) (PriceQuote, bool) {
	sym := NormalizeSymbol(symbol)
	if t, ok := s.prices[sym]; ok && t.Price.IsPositive() {
		return PriceQuote{Symbol: sym, Value: t.Price, Change24h: t.PercentChange24h, AsOf: s.PricesAt}, true
	}

	base, _ := SplitSymbol(sym)
	if h, ok := s.holdings[base]; ok && h.CurrentPrice.IsPositive() {
		return PriceQuote{Symbol: sym, Value: h.CurrentPrice, AsOf: s.PortfolioAt}, true
	}
	return PriceQuote{Symbol: sym}, false
}

// FreeBalance is zero for assets the portfolio does not hold
func (s *Snapshot) FreeBalance(asset string) decimal.Decimal {
	if h, ok := s.holdings[strings.ToUpper(strings.TrimSpace(asset))]; ok {
		return h.Free
	}
	return decimal.Zero
}

// Holding looks up a single asset
func (s *Snapshot) Holding(asset string) (HoldingSnapshot, bool) {
	h, ok := s.holdings[strings.ToUpper(strings.TrimSpace(asset))]
	return h, ok
}

func (s *Snapshot) withPrices(tickers []Ticker, at time.Time) *Snapshot {
	next := &Snapshot{
		Holdings:    s.Holdings,
		Tickers:     make([]Ticker, 0, len(tickers)),
		PricesAt:    at,
		PortfolioAt: s.PortfolioAt,
		prices:      make(map[string]Ticker, len(tickers)),
		holdings:    s.holdings,
	}
	for _, t := range tickers {
		t.Symbol = NormalizeSymbol(t.Symbol)
		if t.Symbol == "" {
			continue
		}
		next.Tickers = append(next.Tickers, t)
		next.prices[t.Symbol] = t
	}
	return next
}

func (s *Snapshot) withHoldings(holdings []HoldingSnapshot, at time.Time) *Snapshot {
	next := &Snapshot{
		Holdings:    make([]HoldingSnapshot, 0, len(holdings)),
		Tickers:     s.Tickers,
		PricesAt:    s.PricesAt,
		PortfolioAt: at,
		prices:      s.prices,
		holdings:    make(map[string]HoldingSnapshot, len(holdings)),
	}
	for _, h := range holdings {
		h.Asset = strings.ToUpper(strings.TrimSpace(h.Asset))
		if h.Asset == "" {
			continue
		}
		next.Holdings = append(next.Holdings, h)
		next.holdings[h.Asset] = h
	}
	return next
}

// MarketContext keeps the latest prices and holdings. Reads are lock free
// and always see a whole snapshot; refreshes of the same kind are ordered by
// sequence number so a slow old response cannot overwrite a newer one.
type MarketContext struct {
	source PortfolioSource
	now    func() time.Time

	current atomic.Pointer[Snapshot]

	priceSeq     atomic.Uint64
	portfolioSeq atomic.Uint64

	mu               sync.Mutex // serializes swaps and listener calls
	appliedPrice     uint64
	appliedPortfolio uint64
	listeners        map[int]func(*Snapshot)
	nextListener     int
}

// NewMarketContext creates an empty context over source
func NewMarketContext(source PortfolioSource) *MarketContext {
	mc := &MarketContext{
		source:    source,
		now:       time.Now,
		listeners: make(map[int]func(*Snapshot)),
	}
	mc.current.Store(emptySnapshot)
	return mc
}

// Snapshot returns the current snapshot. Never nil.
func (mc *MarketContext) Snapshot() *Snapshot {
	return mc.current.Load()
}

// CurrentPrice reads from the current snapshot
func (mc *MarketContext) CurrentPrice(symbol string) (PriceQuote, bool) {
	return mc.Snapshot().CurrentPrice(symbol)
}

// FreeBalance reads from the current snapshot
func (mc *MarketContext) FreeBalance(asset string) decimal.Decimal {
	return mc.Snapshot().FreeBalance(asset)
}

// Subscribe registers fn to be called after every swap. Listeners run on the
// refreshing goroutine and must not call Refresh themselves.
func (mc *MarketContext) Subscribe(fn func(*Snapshot)) (cancel func()) {
	mc.mu.Lock()
	id := mc.nextListener
	mc.nextListener++
	mc.listeners[id] = fn
	mc.mu.Unlock()

	return func() {
		mc.mu.Lock()
		delete(mc.listeners, id)
		mc.mu.Unlock()
	}
}

// RefreshPrices fetches the price feed and swaps in a new snapshot
func (mc *MarketContext) RefreshPrices(ctx context.Context) ([]Ticker, error) {
	seq := mc.priceSeq.Add(1)

	tickers, err := mc.source.FetchPrices(ctx)
	if err != nil {
		metrics.Refreshes.WithLabelValues("prices", "error").Inc()
		return nil, errors.Wrap(err, "failed to refresh prices")
	}
	metrics.Refreshes.WithLabelValues("prices", "ok").Inc()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if seq <= mc.appliedPrice {
		metrics.StaleRefreshes.WithLabelValues("prices").Inc()
		logger.Debugf("dropping stale price refresh #%d (applied #%d)", seq, mc.appliedPrice)
		return mc.current.Load().Tickers, nil
	}
	mc.appliedPrice = seq

	next := mc.current.Load().withPrices(tickers, mc.now())
	mc.current.Store(next)
	mc.notify(next)
	return next.Tickers, nil
}

// Refresh fetches the holdings for token and swaps in a new snapshot
func (mc *MarketContext) Refresh(ctx context.Context, token string) ([]HoldingSnapshot, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	seq := mc.portfolioSeq.Add(1)

	holdings, err := mc.source.FetchPortfolio(ctx, token)
	if err != nil {
		metrics.Refreshes.WithLabelValues("portfolio", "error").Inc()
		return nil, errors.Wrap(err, "failed to refresh portfolio")
	}
	metrics.Refreshes.WithLabelValues("portfolio", "ok").Inc()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if seq <= mc.appliedPortfolio {
		metrics.StaleRefreshes.WithLabelValues("portfolio").Inc()
		logger.Debugf("dropping stale portfolio refresh #%d (applied #%d)", seq, mc.appliedPortfolio)
		return mc.current.Load().Holdings, nil
	}
	mc.appliedPortfolio = seq

	next := mc.current.Load().withHoldings(holdings, mc.now())
	mc.current.Store(next)
	mc.notify(next)
	return next.Holdings, nil
}

// Reset drops all data, used on logout
func (mc *MarketContext) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	// Anything already in flight is older than the reset.
	mc.appliedPrice = mc.priceSeq.Load()
	mc.appliedPortfolio = mc.portfolioSeq.Load()
	mc.current.Store(emptySnapshot)
	mc.notify(emptySnapshot)
}

func (mc *MarketContext) notify(s *Snapshot) {
	for _, fn := range mc.listeners {
		fn(s)
	}
}

// Run refreshes prices and portfolio on independent timers until ctx is
// done. Both are fetched once immediately. An empty token skips the
// portfolio.
func (mc *MarketContext) Run(ctx context.Context, token string, priceEvery, portfolioEvery time.Duration) {
	var wg sync.WaitGroup
	defer wg.Wait()

	// A tick is skipped while the previous fetch of the same kind is running
	var pricesBusy, portfolioBusy atomic.Bool

	refreshPrices := func() {
		if !pricesBusy.CompareAndSwap(false, true) {
			logger.Debugf("price refresh still running, skipping tick")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer pricesBusy.Store(false)
			if _, err := mc.RefreshPrices(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("price refresh: %v", err)
			}
		}()
	}
	refreshPortfolio := func() {
		if token == "" {
			return
		}
		if !portfolioBusy.CompareAndSwap(false, true) {
			logger.Debugf("portfolio refresh still running, skipping tick")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer portfolioBusy.Store(false)
			if _, err := mc.Refresh(ctx, token); err != nil && ctx.Err() == nil {
				logger.Warnf("portfolio refresh: %v", err)
			}
		}()
	}

	refreshPrices()
	refreshPortfolio()

	priceTicker := time.NewTicker(priceEvery)
	defer priceTicker.Stop()
	portfolioTicker := time.NewTicker(portfolioEvery)
	defer portfolioTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-priceTicker.C:
			refreshPrices()
		case <-portfolioTicker.C:
			refreshPortfolio()
		}
	}
}
