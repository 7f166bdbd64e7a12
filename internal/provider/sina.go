package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"fundquant/internal/domain"
	"fundquant/internal/quote"
	"fundquant/internal/util"
)

var _ Provider = (*Sina)(nil)

// Sina default endpoints.
const (
	SinaListURL  = "https://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php/Market_Center.getHQNodeData"
	SinaKlineURL = "https://quotes.sina.cn/cn/api/json_v2.php/CN_MarketDataService.getKLineData"
)

var sinaNodes = map[domain.Dataset]string{
	domain.DatasetLOF:   "lof_hq_fund",
	domain.DatasetStock: "hs_a",
}

// sinaPageSize is the largest page the market-center endpoint honours.
const sinaPageSize = 100

var sinaQuoteSchema = quote.Schema{
	quote.FieldCode:          {"code", "symbol"},
	quote.FieldName:          {"name"},
	quote.FieldLatest:        {"trade"},
	quote.FieldChangeAmount:  {"pricechange"},
	quote.FieldChangeRate:    {"changepercent"},
	quote.FieldOpen:          {"open"},
	quote.FieldHigh:          {"high"},
	quote.FieldLow:           {"low"},
	quote.FieldPrevClose:     {"settlement"},
	quote.FieldVolume:        {"volume"},
	quote.FieldAmount:        {"amount"},
	quote.FieldTurnover:      {"turnoverratio"},
	quote.FieldPE:            {"per"},
	quote.FieldPB:            {"pb"},
	quote.FieldTotalCap:      {"mktcap"},
	quote.FieldCirculatedCap: {"nmc"},
}

// Sina klines carry no change column; PctChg is derived from closes.
var sinaBarSchema = quote.Schema{
	quote.FieldDate:   {"day"},
	quote.FieldOpen:   {"open"},
	quote.FieldHigh:   {"high"},
	quote.FieldLow:    {"low"},
	quote.FieldClose:  {"close"},
	quote.FieldVolume: {"volume"},
}

// Sina reads the sina market-center and kline endpoints. It is the
// secondary source for CN data.
type Sina struct {
	listURL  string
	klineURL string
	maxPages int
	client   *http.Client
	limiter  *util.RateLimiter
}

// NewSina creates a Sina adapter. Empty URLs select the public endpoints;
// limiter may be nil.
func NewSina(listURL, klineURL string, limiter *util.RateLimiter) *Sina {
	if listURL == "" {
		listURL = SinaListURL
	}
	if klineURL == "" {
		klineURL = SinaKlineURL
	}
	return &Sina{listURL: listURL, klineURL: klineURL, maxPages: 80, client: httpClient, limiter: limiter}
}

func (s *Sina) Name() string { return "sina" }

// Snapshot pages through the market-center node until a short page.
func (s *Sina) Snapshot(ctx context.Context, dataset domain.Dataset) (*quote.RawTable, error) {
	node, ok := sinaNodes[dataset]
	if !ok {
		return nil, fmt.Errorf("sina dataset %q: %w", dataset, ErrUnsupported)
	}
	t := &quote.RawTable{Source: s.Name(), Schema: sinaQuoteSchema}
	for page := 1; page <= s.maxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("num", strconv.Itoa(sinaPageSize))
		q.Set("sort", "symbol")
		q.Set("asc", "1")
		q.Set("node", node)

		var rows []quote.Row
		if err := getJSON(ctx, s.client, s.limiter, s.listURL+"?"+q.Encode(), "https://finance.sina.com.cn/", &rows); err != nil {
			return nil, fmt.Errorf("sina %s page %d: %w", dataset, page, err)
		}
		t.Rows = append(t.Rows, rows...)
		if len(rows) < sinaPageSize {
			break
		}
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("sina %s: empty list", dataset)
	}
	return t, nil
}

// History fetches the most recent Limit daily klines. Sina has no date range
// parameter; the fetch layer trims to the window.
func (s *Sina) History(ctx context.Context, req HistoryRequest) (*quote.RawTable, error) {
	if req.Market != "" && req.Market != domain.MarketCN {
		return nil, fmt.Errorf("sina market %q: %w", req.Market, ErrUnsupported)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 250
	}
	q := url.Values{}
	q.Set("symbol", sinaSymbol(req.Code))
	q.Set("scale", "240")
	q.Set("ma", "no")
	q.Set("datalen", strconv.Itoa(limit))

	var rows []quote.Row
	if err := getJSON(ctx, s.client, s.limiter, s.klineURL+"?"+q.Encode(), "https://finance.sina.com.cn/", &rows); err != nil {
		return nil, err
	}
	return &quote.RawTable{Source: s.Name(), Schema: sinaBarSchema, Rows: rows}, nil
}

// sinaSymbol prefixes the exchange: sh for Shanghai, sz otherwise.
func sinaSymbol(code string) string {
	code = quote.StripExchangePrefix(code)
	if shanghaiListed(code) {
		return "sh" + code
	}
	return "sz" + code
}
