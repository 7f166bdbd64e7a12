// Package domain defines the core types shared across the fundquant packages:
// daily bars and series, quote snapshots, simulated trades, and the error
// taxonomy used by the data and analytics layers.
package domain

import (
	"time"
)

// Market identifies the exchange group an instrument trades on.
type Market string

const (
	MarketCN Market = "cn"
	MarketUS Market = "us"
)

// Dataset names one logical full-market quote table. Each dataset is cached
// independently.
type Dataset string

const (
	DatasetLOF   Dataset = "lof"
	DatasetStock Dataset = "stock"
)

// Bar is one trading day of price and volume data.
type Bar struct {
	Symbol   string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Amount   float64 // traded amount in quote currency
	PctChg   float64 // day-over-day change, percent
	Turnover float64 // turnover rate, percent
}

// Quote is one row of a full-market snapshot, normalised from whichever
// provider produced it.
type Quote struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Latest        float64 `json:"latest"`
	ChangeAmount  float64 `json:"changeAmount"`
	ChangeRate    float64 `json:"changeRate"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PrevClose     float64 `json:"prevClose"`
	Volume        float64 `json:"volume"`
	Amount        float64 `json:"amount"`
	Amplitude     float64 `json:"amplitude"`
	Turnover      float64 `json:"turnover"`
	PE            float64 `json:"pe"`
	PB            float64 `json:"pb"`
	TotalCap      float64 `json:"totalCap"`
	CirculatedCap float64 `json:"circulatedCap"`
}

// Snapshot is a point-in-time full-market quote table. A Snapshot is never
// mutated after construction; refreshes replace it.
type Snapshot struct {
	Dataset   Dataset
	Source    string
	FetchedAt time.Time
	Quotes    []Quote

	// Stale is set on copies handed out after every refresh attempt failed.
	Stale bool
}

// Len returns the number of rows in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Quotes)
}

// AsStale returns a shallow copy of s marked stale. The quote rows are
// shared and must be treated as read-only.
func (s *Snapshot) AsStale() *Snapshot {
	cp := *s
	cp.Stale = true
	return &cp
}

// Side is the direction of a simulated position. Only long positions are
// simulated.
type Side string

const (
	SideLong Side = "long"
)

// Trade is one simulated round trip produced by the backtester.
type Trade struct {
	EntryDate  time.Time `json:"entryDate"`
	EntryPrice float64   `json:"entryPrice"`
	ExitDate   time.Time `json:"exitDate"`
	ExitPrice  float64   `json:"exitPrice"`
	Side       Side      `json:"side"`
	Return     float64   `json:"return"` // fractional, e.g. 0.05 for +5%

	// OpenAtEnd marks a position still held at the final bar; it was
	// marked to market at the last close.
	OpenAtEnd bool `json:"openAtEnd"`
}
