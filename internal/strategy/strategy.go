// Package strategy defines the Strategy interface for rule-based long-only
// strategies, a Registry of strategy kinds, and the Backtester that replays a
// bar series through a strategy.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"fundquant/internal/domain"
)

// Action is the decision a strategy makes at one bar.
type Action int

const (
	Hold Action = iota
	Enter
	Exit
)

func (a Action) String() string {
	switch a {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

// Kind identifies a strategy variant.
type Kind string

const (
	KindMACross      Kind = "ma-cross"
	KindRSIThreshold Kind = "rsi-threshold"
)

// ParseKind accepts the canonical names plus a few short aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ma-cross", "ma_cross", "ma", "sma-cross":
		return KindMACross, nil
	case "rsi-threshold", "rsi_threshold", "rsi":
		return KindRSIThreshold, nil
	}
	return "", domain.InvalidParam("strategy", "unknown kind %q", s)
}

// Strategy is the interface that all strategies must implement.
type Strategy interface {
	// Name returns a human-readable identifier including parameters.
	Name() string

	// Kind returns the variant this strategy belongs to.
	Kind() Kind

	// Lookback is the minimum number of bars before the strategy can emit
	// anything other than Hold.
	Lookback() int

	// Evaluate decides the action at the last bar of window. window holds
	// every bar up to and including the evaluated one and nothing later.
	Evaluate(window domain.Series) Action
}

// MACrossParams configures the moving-average crossover.
type MACrossParams struct {
	Fast int `yaml:"fast"`
	Slow int `yaml:"slow"`
}

// RSIParams configures the RSI threshold strategy.
type RSIParams struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

// Params holds parameters for every built-in kind.
type Params struct {
	MACross MACrossParams `yaml:"ma_cross"`
	RSI     RSIParams     `yaml:"rsi_threshold"`
}

// DefaultParams returns MA 5/20 and RSI 14 with 30/70 bands.
func DefaultParams() Params {
	return Params{
		MACross: MACrossParams{Fast: 5, Slow: 20},
		RSI:     RSIParams{Period: 14, Oversold: 30, Overbought: 70},
	}
}

// Validate checks both parameter groups.
func (p Params) Validate() error {
	if err := p.MACross.Validate(); err != nil {
		return err
	}
	return p.RSI.Validate()
}

func (p MACrossParams) Validate() error {
	if p.Fast <= 0 || p.Slow <= 0 {
		return domain.InvalidParam("ma_cross", "windows must be positive, got %d/%d", p.Fast, p.Slow)
	}
	if p.Fast >= p.Slow {
		return domain.InvalidParam("ma_cross", "fast window %d must be shorter than slow %d", p.Fast, p.Slow)
	}
	return nil
}

func (p RSIParams) Validate() error {
	if p.Period <= 0 {
		return domain.InvalidParam("rsi_threshold.period", "must be positive, got %d", p.Period)
	}
	if p.Oversold < 0 || p.Overbought > 100 || p.Oversold >= p.Overbought {
		return domain.InvalidParam("rsi_threshold", "need 0 <= oversold < overbought <= 100, got %v/%v",
			p.Oversold, p.Overbought)
	}
	return nil
}

// Factory builds a strategy from params. It returns an error wrapping
// domain.ErrInvalidParameter when the params are unusable.
type Factory func(Params) (Strategy, error)

// Registry maps strategy kinds to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
	}
}

// Register adds a factory for kind, replacing any previous one.
func (r *Registry) Register(kind Kind, f Factory) {
	r.factories[kind] = f
}

// New builds a strategy of the given kind.
func (r *Registry) New(kind Kind, p Params) (Strategy, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: strategy %q not registered", domain.ErrInvalidParameter, kind)
	}
	return f(p)
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	_, ok := r.factories[kind]
	return ok
}

// List returns the registered kinds, sorted.
func (r *Registry) List() []Kind {
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
