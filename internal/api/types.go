package api

import (
	"time"

	"fundquant/internal/domain"
)

// QuoteResponse wraps a single quote with the snapshot it came from.
type QuoteResponse struct {
	Dataset domain.Dataset `json:"dataset"`
	Quote   domain.Quote   `json:"quote"`
}

// SearchResponse lists the quotes matching a keyword.
type SearchResponse struct {
	Dataset domain.Dataset `json:"dataset"`
	Query   string         `json:"query"`
	Results []domain.Quote `json:"results"`
}

// HistoryBar is one bar of the history response.
type HistoryBar struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Amount   float64 `json:"amount"`
	PctChg   float64 `json:"pctChg"`
	Turnover float64 `json:"turnover"`
}

// HistoryResponse is the daily bar history of one instrument.
type HistoryResponse struct {
	Code   string       `json:"code"`
	Market string       `json:"market"`
	Bars   []HistoryBar `json:"bars"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HistoryBars converts bars to their wire form.
func HistoryBars(bars []domain.Bar) []HistoryBar {
	out := make([]HistoryBar, len(bars))
	for i, b := range bars {
		out[i] = HistoryBar{
			Date:     b.Date.Format(time.DateOnly),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			Amount:   b.Amount,
			PctChg:   b.PctChg,
			Turnover: b.Turnover,
		}
	}
	return out
}
