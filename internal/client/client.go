// Package client calls the CRM HTTP API. The scheduled jobs use it to reach
// the API the same way any external caller would.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/domain"
)

// DefaultTimeout bounds each request when the caller passes zero.
const DefaultTimeout = 30 * time.Second

// Client is a CRM API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL (e.g. http://localhost:8080).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Hello(ctx context.Context) (string, error) {
	var out struct {
		Hello string `json:"hello"`
	}
	if err := c.do(ctx, http.MethodGet, "/hello", nil, &out); err != nil {
		return "", err
	}
	return out.Hello, nil
}

// Orders lists orders with order_date in [from, to].
func (c *Client) Orders(ctx context.Context, from, to time.Time) ([]domain.OrderDetail, error) {
	q := url.Values{}
	q.Set("order_date_gte", from.Format(time.RFC3339Nano))
	q.Set("order_date_lte", to.Format(time.RFC3339Nano))

	var out struct {
		Orders []domain.OrderDetail `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders", q, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return domain.Stats{}, err
	}
	return out, nil
}

func (c *Client) RestockLowStock(ctx context.Context) (crm.RestockResult, error) {
	var out crm.RestockResult
	if err := c.do(ctx, http.MethodPost, "/products/restock", nil, &out); err != nil {
		return crm.RestockResult{}, err
	}
	return out, nil
}
