package api

import (
	"context"

	"github.com/pkg/errors"

	"tradeassist/trading"
)

type pricesResponse struct {
	Prices []trading.Ticker `json:"prices"`
}

type portfolioResponse struct {
	Portfolio []trading.HoldingSnapshot `json:"portfolio"`
}

// FetchPrices returns the backend's ticker list
func (c *Client) FetchPrices(ctx context.Context) ([]trading.Ticker, error) {
	var resp pricesResponse
	if err := c.get(ctx, "", "/crypto-prices", &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch crypto prices")
	}
	return resp.Prices, nil
}

// FetchPortfolio returns the holdings of the token's owner with P&L
func (c *Client) FetchPortfolio(ctx context.Context, token string) ([]trading.HoldingSnapshot, error) {
	if token == "" {
		return nil, trading.ErrUnauthenticated
	}
	var resp portfolioResponse
	if err := c.get(ctx, token, "/order/portfolio", &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch portfolio")
	}
	return resp.Portfolio, nil
}
