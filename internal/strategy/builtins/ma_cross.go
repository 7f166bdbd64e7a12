// Package builtins provides the strategy implementations that ship with
// fundquant and registers them by kind.
package builtins

import (
	"fmt"

	"fundquant/internal/domain"
	"fundquant/internal/indicator"
	"fundquant/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACross)(nil)

// MACross implements a simple moving average crossover. It enters when the
// fast SMA moves above the slow SMA and exits when it moves back below.
type MACross struct {
	fast int
	slow int
}

// NewMACross creates a new MACross strategy with the given fast and slow
// periods.
func NewMACross(p strategy.MACrossParams) (*MACross, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &MACross{fast: p.Fast, slow: p.Slow}, nil
}

// Name returns e.g. "ma-cross(5,20)".
func (s *MACross) Name() string {
	return fmt.Sprintf("%s(%d,%d)", strategy.KindMACross, s.fast, s.slow)
}

func (s *MACross) Kind() strategy.Kind { return strategy.KindMACross }

// Lookback is the slow window: nothing is decided before it fills.
func (s *MACross) Lookback() int { return s.slow }

// Evaluate compares the fast/slow relationship at the last two bars of
// window. The bar where the slow average first becomes defined counts as a
// cross when fast is already above.
func (s *MACross) Evaluate(window domain.Series) strategy.Action {
	n := window.Len()
	if n < s.slow {
		return strategy.Hold
	}
	closes := window.Closes()
	fast := indicator.SMA(closes, s.fast)
	slow := indicator.SMA(closes, s.slow)

	now := above(fast, slow, n-1)
	prev := n >= 2 && above(fast, slow, n-2)
	switch {
	case now && !prev:
		return strategy.Enter
	case !now && prev:
		return strategy.Exit
	}
	return strategy.Hold
}

func above(fast, slow []domain.Num, i int) bool {
	return fast[i].Valid && slow[i].Valid && fast[i].V > slow[i].V
}
