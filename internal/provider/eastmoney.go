package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"fundquant/internal/domain"
	"fundquant/internal/quote"
	"fundquant/internal/util"
)

var _ Provider = (*EastMoney)(nil)

// EastMoney default endpoints.
const (
	EastMoneyListURL  = "https://push2.eastmoney.com/api/qt/clist/get"
	EastMoneyKlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
)

// eastmoney list filters per dataset.
var eastMoneyFilters = map[domain.Dataset]string{
	domain.DatasetLOF:   "b:MK0404,b:MK0405,b:MK0406,b:MK0407",
	domain.DatasetStock: "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048",
}

const eastMoneyListFields = "f2,f3,f4,f5,f6,f7,f8,f9,f12,f14,f15,f16,f17,f18,f20,f21,f23"

var eastMoneyQuoteSchema = quote.Schema{
	quote.FieldCode:          {"f12"},
	quote.FieldName:          {"f14"},
	quote.FieldLatest:        {"f2"},
	quote.FieldChangeRate:    {"f3"},
	quote.FieldChangeAmount:  {"f4"},
	quote.FieldVolume:        {"f5"},
	quote.FieldAmount:        {"f6"},
	quote.FieldAmplitude:     {"f7"},
	quote.FieldTurnover:      {"f8"},
	quote.FieldPE:            {"f9"},
	quote.FieldHigh:          {"f15"},
	quote.FieldLow:           {"f16"},
	quote.FieldOpen:          {"f17"},
	quote.FieldPrevClose:     {"f18"},
	quote.FieldTotalCap:      {"f20"},
	quote.FieldCirculatedCap: {"f21"},
	quote.FieldPB:            {"f23"},
}

// Kline strings are "date,open,close,high,low,volume,amount,amplitude,pct,chg,turnover".
var eastMoneyKlineColumns = []string{
	"date", "open", "close", "high", "low", "volume", "amount", "amplitude", "pct_chg", "chg", "turnover",
}

var eastMoneyBarSchema = quote.Schema{
	quote.FieldDate:       {"date"},
	quote.FieldOpen:       {"open"},
	quote.FieldClose:      {"close"},
	quote.FieldHigh:       {"high"},
	quote.FieldLow:        {"low"},
	quote.FieldVolume:     {"volume"},
	quote.FieldAmount:     {"amount"},
	quote.FieldAmplitude:  {"amplitude"},
	quote.FieldChangeRate: {"pct_chg"},
	quote.FieldTurnover:   {"turnover"},
}

// EastMoney reads the eastmoney push2 list and kline endpoints.
type EastMoney struct {
	listURL  string
	klineURL string
	client   *http.Client
	limiter  *util.RateLimiter
}

// NewEastMoney creates an EastMoney adapter. Empty URLs select the public
// endpoints; limiter may be nil.
func NewEastMoney(listURL, klineURL string, limiter *util.RateLimiter) *EastMoney {
	if listURL == "" {
		listURL = EastMoneyListURL
	}
	if klineURL == "" {
		klineURL = EastMoneyKlineURL
	}
	return &EastMoney{listURL: listURL, klineURL: klineURL, client: httpClient, limiter: limiter}
}

func (e *EastMoney) Name() string { return "eastmoney" }

type eastMoneyListResponse struct {
	Data *struct {
		Total int         `json:"total"`
		Diff  []quote.Row `json:"diff"`
	} `json:"data"`
}

// Snapshot fetches the whole list in one page.
func (e *EastMoney) Snapshot(ctx context.Context, dataset domain.Dataset) (*quote.RawTable, error) {
	fs, ok := eastMoneyFilters[dataset]
	if !ok {
		return nil, fmt.Errorf("eastmoney dataset %q: %w", dataset, ErrUnsupported)
	}
	q := url.Values{}
	q.Set("pn", "1")
	q.Set("pz", "10000")
	q.Set("po", "1")
	q.Set("np", "1")
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fid", "f3")
	q.Set("fs", fs)
	q.Set("fields", eastMoneyListFields)

	var resp eastMoneyListResponse
	if err := getJSON(ctx, e.client, e.limiter, e.listURL+"?"+q.Encode(), "https://quote.eastmoney.com/", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("eastmoney %s: empty data", dataset)
	}
	return &quote.RawTable{Source: e.Name(), Schema: eastMoneyQuoteSchema, Rows: resp.Data.Diff}, nil
}

type eastMoneyKlineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// History fetches forward-adjusted daily klines. An unknown code yields an
// empty table, not an error.
func (e *EastMoney) History(ctx context.Context, req HistoryRequest) (*quote.RawTable, error) {
	if req.Market != "" && req.Market != domain.MarketCN {
		return nil, fmt.Errorf("eastmoney market %q: %w", req.Market, ErrUnsupported)
	}
	q := url.Values{}
	q.Set("secid", eastMoneySecID(req.Code))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	q.Set("klt", "101")
	q.Set("fqt", "1")
	q.Set("beg", req.Start.Format("20060102"))
	q.Set("end", req.End.Format("20060102"))

	var resp eastMoneyKlineResponse
	if err := getJSON(ctx, e.client, e.limiter, e.klineURL+"?"+q.Encode(), "https://quote.eastmoney.com/", &resp); err != nil {
		return nil, err
	}
	t := &quote.RawTable{Source: e.Name(), Schema: eastMoneyBarSchema}
	if resp.Data == nil {
		return t, nil
	}
	for _, line := range resp.Data.Klines {
		cells := strings.Split(line, ",")
		row := make(quote.Row, len(cells))
		for i, c := range cells {
			if i < len(eastMoneyKlineColumns) {
				row[eastMoneyKlineColumns[i]] = c
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// eastMoneySecID prefixes the market id: 1 for Shanghai, 0 for Shenzhen.
func eastMoneySecID(code string) string {
	code = quote.StripExchangePrefix(code)
	if shanghaiListed(code) {
		return "1." + code
	}
	return "0." + code
}
