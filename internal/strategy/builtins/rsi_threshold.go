package builtins

import (
	"fmt"

	"fundquant/internal/domain"
	"fundquant/internal/indicator"
	"fundquant/internal/strategy"
)

var _ strategy.Strategy = (*RSIThreshold)(nil)

// RSIThreshold enters when RSI drops below the oversold level and exits when
// it rises above the overbought level.
type RSIThreshold struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIThreshold creates an RSIThreshold strategy.
func NewRSIThreshold(p strategy.RSIParams) (*RSIThreshold, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &RSIThreshold{period: p.Period, oversold: p.Oversold, overbought: p.Overbought}, nil
}

// Name returns e.g. "rsi-threshold(14,30,70)".
func (s *RSIThreshold) Name() string {
	return fmt.Sprintf("%s(%d,%g,%g)", strategy.KindRSIThreshold, s.period, s.oversold, s.overbought)
}

func (s *RSIThreshold) Kind() strategy.Kind { return strategy.KindRSIThreshold }

// Lookback is period+1 bars, the minimum for a defined RSI.
func (s *RSIThreshold) Lookback() int { return s.period + 1 }

// Evaluate reads the RSI at the last bar of window. The backtester ignores
// Enter while long and Exit while flat, so the level test alone is enough.
func (s *RSIThreshold) Evaluate(window domain.Series) strategy.Action {
	rsi := indicator.Last(indicator.RSI(window.Closes(), s.period))
	if !rsi.Valid {
		return strategy.Hold
	}
	switch {
	case rsi.V < s.oversold:
		return strategy.Enter
	case rsi.V > s.overbought:
		return strategy.Exit
	}
	return strategy.Hold
}
