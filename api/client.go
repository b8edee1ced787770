package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the backend as seen from the Android emulator
	DefaultBaseURL = "http://10.0.2.2:3000/api"
	userAgent      = "TradeAssist/1.0"
)

// Config for the backend client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int // applies to GET only
}

// Client talks to the trading assistant backend. Every authorized call takes
// the bearer token explicitly.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryReads)

	return &Client{http: rc, baseURL: base}
}

// retryReads retries failed GETs. Orders and logins are never resent.
func retryReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, token string) *resty.Request {
	r := c.http.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// do runs the request and decodes a 2xx body into out
func (c *Client) do(r *resty.Request, method, path string, out interface{}) error {
	resp, err := r.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		return newError(resp)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "failed to parse %s response", path)
	}
	return nil
}

func (c *Client) get(ctx context.Context, token, path string, out interface{}) error {
	return c.do(c.newRequest(ctx, token), http.MethodGet, path, out)
}

func (c *Client) post(ctx context.Context, token, path string, body, out interface{}) error {
	r := c.newRequest(ctx, token).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return c.do(r, http.MethodPost, path, out)
}

// Error is a non-2xx answer from the backend
type Error struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// IsUnauthorized reports a 401/403 from the backend, i.e. the token is no
// longer accepted.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

func newError(resp *resty.Response) *Error {
	body := strings.TrimSpace(string(resp.Body()))
	e := &Error{StatusCode: resp.StatusCode(), Body: body}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(resp.Body(), &payload) == nil {
		switch {
		case payload.Message != "":
			e.Message = payload.Message
		case payload.Error != "":
			e.Message = payload.Error
		case payload.Msg != "":
			e.Message = payload.Msg
		}
	}
	if e.Message == "" && body != "" && !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "<") {
		e.Message = body
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.StatusCode)
	}
	return e
}

// FlexString decodes a JSON string or number, for ids the backend sends
// either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }
