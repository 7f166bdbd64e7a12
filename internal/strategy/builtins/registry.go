package builtins

import "fundquant/internal/strategy"

// Register adds every built-in strategy kind to r.
func Register(r *strategy.Registry) {
	r.Register(strategy.KindMACross, func(p strategy.Params) (strategy.Strategy, error) {
		s, err := NewMACross(p.MACross)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Register(strategy.KindRSIThreshold, func(p strategy.Params) (strategy.Strategy, error) {
		s, err := NewRSIThreshold(p.RSI)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// NewRegistry returns a registry holding all built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
