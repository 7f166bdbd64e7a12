package strategy

import (
	"time"

	"fundquant/internal/domain"
	"fundquant/internal/perf"
)

// EquityPoint is one value of the equity curve, normalised to 1.0 at the
// first bar.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Result holds everything produced by a backtest run.
type Result struct {
	Strategy  string         `json:"strategy"`
	Kind      Kind           `json:"kind"`
	Bars      int            `json:"bars"`
	Trades    []domain.Trade `json:"trades"`
	Equity    []EquityPoint  `json:"equity"`
	Metrics   perf.Metrics   `json:"metrics"`
	WinRate   domain.Num     `json:"winRate"` // absent when there were no trades
	NumTrades int            `json:"numTrades"`

	// State at the final bar.
	InPosition     bool      `json:"inPosition"`
	LastAction     Action    `json:"lastAction"`
	LastActionBar  int       `json:"lastActionBar"` // -1 when the strategy never acted
	LastActionDate time.Time `json:"lastActionDate"`
}

// HasTrades reports whether any position was opened.
func (r *Result) HasTrades() bool { return r.NumTrades > 0 }

// ActedOnLastBar reports whether the strategy entered or exited on the final
// bar of the series.
func (r *Result) ActedOnLastBar() bool {
	return r.LastActionBar >= 0 && r.LastActionBar == r.Bars-1
}

// FinalEquity returns the last equity value, or 1.0 for an empty curve.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return 1
	}
	return r.Equity[len(r.Equity)-1].Value
}

// MarshalText renders the action name in JSON and YAML.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText parses an action name written by MarshalText.
func (a *Action) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hold":
		*a = Hold
	case "enter":
		*a = Enter
	case "exit":
		*a = Exit
	default:
		return domain.InvalidParam("action", "unknown action %q", b)
	}
	return nil
}

// Backtester replays bar series through strategies built from a Registry and
// scores the resulting equity curve.
type Backtester struct {
	registry *Registry
	metrics  perf.Params
}

// NewBacktester creates a Backtester that looks up strategies in registry and
// scores equity curves with metrics.
func NewBacktester(registry *Registry, metrics perf.Params) *Backtester {
	return &Backtester{
		registry: registry,
		metrics:  metrics,
	}
}

// Run builds the strategy of the given kind and replays s through it.
func (bt *Backtester) Run(s domain.Series, kind Kind, p Params) (*Result, error) {
	strat, err := bt.registry.New(kind, p)
	if err != nil {
		return nil, err
	}
	return bt.RunStrategy(s, strat)
}

// RunStrategy replays s bar by bar. At bar i the strategy only sees bars
// [0, i]; fills happen at bar i's close. Bar i contributes its close-to-close
// return to equity only when a position was held coming into it. A position
// still open at the end is marked at the last close and flagged OpenAtEnd.
func (bt *Backtester) RunStrategy(s domain.Series, strat Strategy) (*Result, error) {
	if err := bt.metrics.Validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	res := &Result{
		Strategy:      strat.Name(),
		Kind:          strat.Kind(),
		Bars:          n,
		Trades:        []domain.Trade{},
		Equity:        make([]EquityPoint, n),
		LastActionBar: -1,
	}
	if n == 0 {
		res.Metrics, _ = perf.Compute(domain.ReturnSeries{}, bt.metrics)
		return res, nil
	}

	closes := s.Closes()
	dates := s.Dates()
	lookback := strat.Lookback()

	value := 1.0
	inPos := false
	var open domain.Trade

	for i := 0; i < n; i++ {
		if i > 0 && inPos && closes[i-1] > 0 {
			value *= closes[i] / closes[i-1]
		}
		res.Equity[i] = EquityPoint{Date: dates[i], Value: value}

		if i+1 < lookback {
			continue
		}
		switch strat.Evaluate(s.Head(i + 1)) {
		case Enter:
			if inPos {
				continue
			}
			inPos = true
			open = domain.Trade{
				Side:       domain.SideLong,
				EntryDate:  dates[i],
				EntryPrice: closes[i],
			}
			res.LastAction, res.LastActionBar, res.LastActionDate = Enter, i, dates[i]
		case Exit:
			if !inPos {
				continue
			}
			inPos = false
			res.Trades = append(res.Trades, closeTrade(open, dates[i], closes[i], false))
			res.LastAction, res.LastActionBar, res.LastActionDate = Exit, i, dates[i]
		}
	}
	if inPos {
		res.Trades = append(res.Trades, closeTrade(open, dates[n-1], closes[n-1], true))
	}
	res.InPosition = inPos
	res.NumTrades = len(res.Trades)
	res.WinRate = winRate(res.Trades)

	m, err := perf.Compute(equityReturns(res.Equity), bt.metrics)
	if err != nil {
		return nil, err
	}
	res.Metrics = m
	return res, nil
}

func closeTrade(t domain.Trade, date time.Time, price float64, openAtEnd bool) domain.Trade {
	t.ExitDate = date
	t.ExitPrice = price
	t.OpenAtEnd = openAtEnd
	if t.EntryPrice > 0 {
		t.Return = price/t.EntryPrice - 1
	}
	return t
}

func winRate(trades []domain.Trade) domain.Num {
	if len(trades) == 0 {
		return domain.None
	}
	wins := 0
	for _, t := range trades {
		if t.Return > 0 {
			wins++
		}
	}
	return domain.Some(float64(wins) / float64(len(trades)))
}

func equityReturns(curve []EquityPoint) domain.ReturnSeries {
	if len(curve) == 0 {
		return domain.ReturnSeries{}
	}
	r := domain.ReturnSeries{
		Start:  curve[0].Date,
		Values: make([]float64, 0, len(curve)-1),
		Dates:  make([]time.Time, 0, len(curve)-1),
	}
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		v := 0.0
		if prev != 0 {
			v = curve[i].Value/prev - 1
		}
		r.Values = append(r.Values, v)
		r.Dates = append(r.Dates, curve[i].Date)
	}
	return r
}
