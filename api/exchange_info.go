package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultExchangeURL serves public spot exchange metadata
const DefaultExchangeURL = "https://api.binance.com"

// ExchangeInfoClient reads LOT_SIZE filters from the public exchangeInfo
// endpoint. No credentials are involved.
type ExchangeInfoClient struct {
	http *resty.Client
}

// NewExchangeInfoClient creates a client for baseURL
func NewExchangeInfoClient(baseURL string, timeout time.Duration) *ExchangeInfoClient {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = DefaultExchangeURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ExchangeInfoClient{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", userAgent).
			SetRetryCount(2).
			AddRetryCondition(retryReads),
	}
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// StepSizes returns the LOT_SIZE step per symbol. An empty symbols list asks
// for every listed pair.
func (c *ExchangeInfoClient) StepSizes(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	r := c.http.R().SetContext(ctx)
	if len(symbols) > 0 {
		upper := make([]string, 0, len(symbols))
		for _, s := range symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				upper = append(upper, s)
			}
		}
		encoded, err := json.Marshal(upper)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode symbols")
		}
		r.SetQueryParam("symbols", string(encoded))
	}

	resp, err := r.Execute(http.MethodGet, "/api/v3/exchangeInfo")
	if err != nil {
		return nil, errors.Wrap(err, "exchangeInfo")
	}
	if resp.IsError() {
		return nil, newError(resp)
	}

	var info exchangeInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, errors.Wrap(err, "failed to parse exchangeInfo")
	}

	steps := make(map[string]decimal.Decimal, len(info.Symbols))
	for _, s := range info.Symbols {
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" || f.StepSize == "" {
				continue
			}
			step, err := decimal.NewFromString(f.StepSize)
			if err != nil || !step.IsPositive() {
				continue
			}
			steps[strings.ToUpper(s.Symbol)] = step
		}
	}
	if len(steps) == 0 {
		return nil, errors.New("exchangeInfo: no LOT_SIZE filters found")
	}
	return steps, nil
}
