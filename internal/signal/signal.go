// Package signal folds indicator, metric and backtest outputs into one
// directional score and renders the analysis report text.
package signal

import (
	"math"

	"fundquant/internal/domain"
	"fundquant/internal/indicator"
	"fundquant/internal/strategy"
)

// Label is the directional verdict.
type Label string

const (
	StrongBuy  Label = "strong-buy"
	Buy        Label = "buy"
	HoldLabel  Label = "hold"
	Sell       Label = "sell"
	StrongSell Label = "strong-sell"
)

// Weights scales each scoring component.
type Weights struct {
	Trend    float64 `yaml:"trend"`
	RSI      float64 `yaml:"rsi"`
	MA       float64 `yaml:"ma"` // applied per moving-average window
	Backtest float64 `yaml:"backtest"`
}

// Cuts are inclusive lower bounds per label; anything below Sell is
// strong-sell.
type Cuts struct {
	StrongBuy float64 `yaml:"strong_buy"`
	Buy       float64 `yaml:"buy"`
	Hold      float64 `yaml:"hold"`
	Sell      float64 `yaml:"sell"`
}

// Config is the scoring surface.
type Config struct {
	Weights    Weights `yaml:"weights"`
	Oversold   float64 `yaml:"rsi_oversold"`
	Overbought float64 `yaml:"rsi_overbought"`
	MaxScore   float64 `yaml:"max_score"` // score is clamped to [-MaxScore, MaxScore]
	Cuts       Cuts    `yaml:"cuts"`
}

// DefaultConfig returns the stock weights and cut points.
func DefaultConfig() Config {
	return Config{
		Weights:    Weights{Trend: 1, RSI: 1, MA: 0.5, Backtest: 1},
		Oversold:   30,
		Overbought: 70,
		MaxScore:   5,
		Cuts:       Cuts{StrongBuy: 3, Buy: 1, Hold: -1, Sell: -3},
	}
}

// Validate checks the RSI zone, the clamp range and the cut ordering.
func (c Config) Validate() error {
	if c.Oversold < 0 || c.Overbought > 100 || c.Oversold >= c.Overbought {
		return domain.InvalidParam("signal.rsi", "need 0 <= oversold < overbought <= 100, got %v/%v", c.Oversold, c.Overbought)
	}
	if c.MaxScore <= 0 {
		return domain.InvalidParam("signal.max_score", "must be positive, got %v", c.MaxScore)
	}
	k := c.Cuts
	if !(k.StrongBuy > k.Buy && k.Buy > k.Hold && k.Hold > k.Sell) {
		return domain.InvalidParam("signal.cuts", "must be strictly decreasing, got %+v", k)
	}
	return nil
}

// Component is one term of the weighted sum.
type Component struct {
	Name         string  `json:"name"`
	Raw          float64 `json:"raw"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Score is the directional signal at the most recent bar.
type Score struct {
	Label      Label       `json:"label"`
	Value      float64     `json:"value"`
	Components []Component `json:"components"`
}

// Evaluate scores the latest bar from set and backtests. backtests may be
// empty.
func Evaluate(set *indicator.Set, backtests []*strategy.Result, cfg Config) (Score, error) {
	if err := cfg.Validate(); err != nil {
		return Score{}, err
	}
	var sc Score
	add := func(name string, raw, weight float64) {
		c := Component{Name: name, Raw: raw, Weight: weight, Contribution: raw * weight}
		sc.Components = append(sc.Components, c)
		sc.Value += c.Contribution
	}

	if set != nil {
		add("trend", set.Trend.Score(), cfg.Weights.Trend)
		add("rsi", rsiZone(set.RSI, cfg), cfg.Weights.RSI)
		for _, w := range set.MAWindows() {
			ma := set.MA[w]
			if !ma.Valid || set.Bars == 0 {
				continue
			}
			add(maName(w), sign(set.Price-ma.V), cfg.Weights.MA)
		}
	}
	if r := Latest(backtests); r != nil {
		add("backtest:"+r.Strategy, Stance(r), cfg.Weights.Backtest)
	}

	sc.Value = math.Max(-cfg.MaxScore, math.Min(cfg.MaxScore, sc.Value))
	sc.Label = cfg.label(sc.Value)
	return sc, nil
}

func (c Config) label(v float64) Label {
	switch {
	case v >= c.Cuts.StrongBuy:
		return StrongBuy
	case v >= c.Cuts.Buy:
		return Buy
	case v >= c.Cuts.Hold:
		return HoldLabel
	case v >= c.Cuts.Sell:
		return Sell
	default:
		return StrongSell
	}
}

// rsiZone is +1 oversold, -1 overbought, 0 otherwise or when RSI is absent.
func rsiZone(rsi domain.Num, cfg Config) float64 {
	switch {
	case !rsi.Valid:
		return 0
	case rsi.V < cfg.Oversold:
		return 1
	case rsi.V > cfg.Overbought:
		return -1
	}
	return 0
}

// Latest picks the backtest whose last entry or exit is most recent. Ties
// keep the earlier result; with no actions at all the first result is used.
func Latest(results []*strategy.Result) *strategy.Result {
	var best *strategy.Result
	for _, r := range results {
		if r == nil {
			continue
		}
		if best == nil || r.LastActionBar > best.LastActionBar {
			best = r
		}
	}
	return best
}

// Stance turns a backtest's final state into -1..1: an entry on the final
// bar is +1, an exit on it -1, still holding +0.5, flat 0.
func Stance(r *strategy.Result) float64 {
	if r.ActedOnLastBar() {
		switch r.LastAction {
		case strategy.Enter:
			return 1
		case strategy.Exit:
			return -1
		}
	}
	if r.InPosition {
		return 0.5
	}
	return 0
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
