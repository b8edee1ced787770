package trading

import "sort"

// TopMovers splits tickers into the n best and n worst 24h performers.
// Losers are ordered worst first. The input is not modified.
func TopMovers(tickers []Ticker, n int) (gainers, losers []Ticker) {
	if n <= 0 || len(tickers) == 0 {
		return nil, nil
	}

	sorted := make([]Ticker, len(tickers))
	copy(sorted, tickers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PercentChange24h.GreaterThan(sorted[j].PercentChange24h)
	})

	k := n
	if k > len(sorted) {
		k = len(sorted)
	}
	gainers = append([]Ticker(nil), sorted[:k]...)

	losers = make([]Ticker, 0, k)
	for i := len(sorted) - 1; i >= 0 && len(losers) < k; i-- {
		losers = append(losers, sorted[i])
	}
	return gainers, losers
}
