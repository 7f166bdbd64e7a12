package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"fundquant/internal/domain"
	"fundquant/internal/quote"
	"fundquant/internal/util"
)

var _ Provider = (*Alpaca)(nil)

// Alpaca serves US equity daily bars through the Alpaca market-data API.
// It has no CN snapshot datasets.
type Alpaca struct {
	client  *marketdata.Client
	feed    string
	limiter *util.RateLimiter
}

// NewAlpaca creates an Alpaca adapter. dataURL may be empty for the public
// endpoint; feed is "iex" or "sip".
func NewAlpaca(apiKey, apiSecret, dataURL, feed string, limiter *util.RateLimiter) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}
	return &Alpaca{client: marketdata.NewClient(opts), feed: feed, limiter: limiter}
}

func (a *Alpaca) Name() string { return "alpaca" }

// Snapshot is not available from Alpaca.
func (a *Alpaca) Snapshot(_ context.Context, dataset domain.Dataset) (*quote.RawTable, error) {
	return nil, fmt.Errorf("alpaca dataset %q: %w", dataset, ErrUnsupported)
}

// History fetches split-adjusted daily bars for a US symbol.
func (a *Alpaca) History(ctx context.Context, req HistoryRequest) (*quote.RawTable, error) {
	if req.Market != domain.MarketUS {
		return nil, fmt.Errorf("alpaca market %q: %w", req.Market, ErrUnsupported)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	bars, err := a.client.GetBars(strings.ToUpper(req.Code), marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      req.Start,
		End:        req.End,
		Adjustment: marketdata.Split,
		Feed:       marketdata.Feed(a.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}

	// No change column: PctChg is derived from consecutive closes.
	schema := quote.CanonicalSchema()
	delete(schema, quote.FieldChangeRate)
	t := &quote.RawTable{Source: a.Name(), Schema: schema, Rows: make([]quote.Row, 0, len(bars))}
	for _, ab := range bars {
		b := domain.Bar{
			Date:   ab.Timestamp,
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: float64(ab.Volume),
			Amount: ab.VWAP * float64(ab.Volume),
		}
		t.Rows = append(t.Rows, quote.BarRow(b))
	}
	return t, nil
}
