// Package provider holds the market-data adapters. Each adapter returns a
// quote.RawTable in its own column names plus the schema that maps them to
// canonical fields; normalisation happens once, in package quote.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fundquant/internal/domain"
	"fundquant/internal/quote"
	"fundquant/internal/util"
)

// ErrUnsupported is returned for datasets or markets an adapter cannot serve.
// The fetch layer skips to the next provider without retrying.
var ErrUnsupported = errors.New("provider: not supported")

// HistoryRequest asks for daily bars of one instrument over [Start, End].
type HistoryRequest struct {
	Code   string
	Market domain.Market
	Start  time.Time
	End    time.Time
	Limit  int // most recent bars wanted; adapters may return more
}

// Provider is one upstream source of snapshots and daily history.
type Provider interface {
	// Name identifies the provider in logs, metrics and snapshots.
	Name() string

	// Snapshot returns the full current quote table for dataset.
	Snapshot(ctx context.Context, dataset domain.Dataset) (*quote.RawTable, error)

	// History returns daily bars for one instrument.
	History(ctx context.Context, req HistoryRequest) (*quote.RawTable, error)
}

// ---------------------------------------------------------------------------
// Shared HTTP plumbing
// ---------------------------------------------------------------------------

// httpClient carries no timeout of its own; every call is bounded by the
// caller's context.
var httpClient = &http.Client{}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// getJSON issues a GET, waiting on limiter first, and decodes the body into
// out with json.Number for numeric cells.
func getJSON(ctx context.Context, client *http.Client, limiter *util.RateLimiter, url, referer string, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// shanghaiListed reports whether a CN code trades in Shanghai. Funds and
// shares starting 5, 6 or 9 are Shanghai; the rest are Shenzhen.
func shanghaiListed(code string) bool {
	return code != "" && strings.ContainsRune("569", rune(code[0]))
}
