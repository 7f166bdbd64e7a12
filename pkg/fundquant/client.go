// Package fundquant is a Go client for the fundquant-server HTTP API.
package fundquant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fundquant/internal/api"
	"fundquant/internal/domain"
	"fundquant/internal/fetch"
	"fundquant/internal/strategy"
)

// Client talks to a fundquant-server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx reply. It unwraps to the matching domain sentinel
// so callers can use errors.Is the same way as with the local services.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalidParameter
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnprocessableEntity:
		return domain.ErrInsufficientHistory
	case http.StatusServiceUnavailable:
		return domain.ErrDataUnavailable
	}
	return nil
}

// Quote returns the latest quote of code in ds.
func (c *Client) Quote(ctx context.Context, ds domain.Dataset, code string) (domain.Quote, error) {
	var resp api.QuoteResponse
	err := c.get(ctx, "/api/"+string(ds)+"/quote/"+url.PathEscape(code), nil, &resp)
	return resp.Quote, err
}

// Search returns up to limit quotes of ds matching keyword. limit <= 0 uses
// the server default.
func (c *Client) Search(ctx context.Context, ds domain.Dataset, keyword string, limit int) ([]domain.Quote, error) {
	q := url.Values{"q": {keyword}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp api.SearchResponse
	if err := c.get(ctx, "/api/"+string(ds)+"/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// History returns the last days bars of code, oldest first.
func (c *Client) History(ctx context.Context, code string, days int) (*api.HistoryResponse, error) {
	var resp api.HistoryResponse
	if err := c.get(ctx, "/api/history/"+url.PathEscape(code), daysQuery(days), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analysis returns the rendered text report of code.
func (c *Client) Analysis(ctx context.Context, code string, days int) (string, error) {
	q := daysQuery(days)
	q.Set("format", "text")
	body, err := c.do(ctx, http.MethodGet, "/api/analysis/"+url.PathEscape(code), q)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Backtest runs one strategy kind over the last days bars of code.
func (c *Client) Backtest(ctx context.Context, code string, kind strategy.Kind, days int) (*strategy.Result, error) {
	q := daysQuery(days)
	if kind != "" {
		q.Set("strategy", string(kind))
	}
	var res strategy.Result
	if err := c.get(ctx, "/api/backtest/"+url.PathEscape(code), q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CacheInfo reports the server's snapshot cache state for ds.
func (c *Client) CacheInfo(ctx context.Context, ds domain.Dataset) (fetch.CacheInfo, error) {
	var info fetch.CacheInfo
	err := c.get(ctx, "/api/"+string(ds)+"/cache", nil, &info)
	return info, err
}

// ClearCache drops the server's cached snapshot of ds.
func (c *Client) ClearCache(ctx context.Context, ds domain.Dataset) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/"+string(ds)+"/cache", nil)
	return err
}

func daysQuery(days int) url.Values {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		var e api.ErrorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}
