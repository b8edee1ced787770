package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"tradeassist/trading"
)

// orderRequest goes out with amounts as JSON numbers built from the exact
// decimal text.
type orderRequest struct {
	Symbol    string      `json:"symbol"`
	Quantity  json.Number `json:"quantity"`
	OrderType string      `json:"order_type"`
	Price     json.Number `json:"price,omitempty"`
}

type orderFields struct {
	OrderID       FlexString `json:"orderId"`
	ID            FlexString `json:"id"`
	ClientOrderID string     `json:"clientOrderId"`
	Status        string     `json:"status"`
}

type orderResponse struct {
	orderFields
	Message string       `json:"message"`
	Order   *orderFields `json:"order"`
}

func (r orderResponse) ack() trading.Ack {
	f := r.orderFields
	if r.Order != nil {
		f = *r.Order
	}
	id := f.OrderID
	if id == "" {
		id = f.ID
	}
	return trading.Ack{OrderID: id.String(), Status: f.Status, Message: r.Message}
}

func (c *Client) placeOrder(ctx context.Context, path, token, symbol string, quantity decimal.Decimal, limit decimal.NullDecimal) (trading.Ack, error) {
	if token == "" {
		return trading.Ack{}, trading.ErrUnauthenticated
	}
	req := orderRequest{
		Symbol:    trading.NormalizeSymbol(symbol),
		Quantity:  json.Number(quantity.String()),
		OrderType: string(trading.KindMarket),
	}
	if limit.Valid {
		req.OrderType = string(trading.KindLimit)
		req.Price = json.Number(limit.Decimal.String())
	}

	var resp orderResponse
	if err := c.post(ctx, token, path, req, &resp); err != nil {
		return trading.Ack{}, err
	}
	return resp.ack(), nil
}

// PlaceBuy sends a buy order. It is never retried.
func (c *Client) PlaceBuy(ctx context.Context, token, symbol string, quantity decimal.Decimal, limit decimal.NullDecimal) (trading.Ack, error) {
	return c.placeOrder(ctx, "/order/buy", token, symbol, quantity, limit)
}

// PlaceSell sends a sell order. It is never retried.
func (c *Client) PlaceSell(ctx context.Context, token, symbol string, quantity decimal.Decimal, limit decimal.NullDecimal) (trading.Ack, error) {
	return c.placeOrder(ctx, "/order/sell", token, symbol, quantity, limit)
}

// Transaction is one executed trade of the account
type Transaction struct {
	ID       FlexString      `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Action   string          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"`
	Time     FlexString      `json:"time"`
}

// When parses Time as RFC 3339 or epoch milliseconds
func (t Transaction) When() (time.Time, bool) {
	s := t.Time.String()
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	if ms, err := decimal.NewFromString(s); err == nil {
		return time.UnixMilli(ms.IntPart()), true
	}
	return time.Time{}, false
}

// Label is the line shown in activity lists
func (t Transaction) Label() string {
	if t.Action != "" {
		return t.Action
	}
	if t.Side == "" && t.Symbol == "" {
		return t.ID.String()
	}
	return t.Side + " " + t.Quantity.String() + " " + t.Symbol
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// GetTransactions lists recent account activity
func (c *Client) GetTransactions(ctx context.Context, token string) ([]Transaction, error) {
	if token == "" {
		return nil, trading.ErrUnauthenticated
	}
	var resp transactionsResponse
	if err := c.get(ctx, token, "/order/transactions", &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch transactions")
	}
	return resp.Transactions, nil
}
