package indicator

import (
	"fundquant/internal/domain"
)

// Params configures the indicator engine. The zero value is not usable; start
// from DefaultParams.
type Params struct {
	MAWindows        []int   `yaml:"ma_windows"`
	ReturnHorizons   []int   `yaml:"return_horizons"`
	VolatilityWindow int     `yaml:"volatility_window"`
	RangeWindow      int     `yaml:"range_window"`
	MACDFast         int     `yaml:"macd_fast"`
	MACDSlow         int     `yaml:"macd_slow"`
	MACDSignal       int     `yaml:"macd_signal"`
	RSIPeriod        int     `yaml:"rsi_period"`
	KDJPeriod        int     `yaml:"kdj_period"`
	KDJSmoothK       int     `yaml:"kdj_smooth_k"`
	KDJSmoothD       int     `yaml:"kdj_smooth_d"`
	BollWindow       int     `yaml:"boll_window"`
	BollK            float64 `yaml:"boll_k"`
}

// DefaultParams returns the conventional settings: MA 5/10/20, returns over
// 5/10/20 days, 20-day volatility and range, MACD 12/26/9, RSI 14, KDJ 9/3/3
// and Bollinger 20/2.
func DefaultParams() Params {
	return Params{
		MAWindows:        []int{5, 10, 20},
		ReturnHorizons:   []int{5, 10, 20},
		VolatilityWindow: 20,
		RangeWindow:      20,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		RSIPeriod:        14,
		KDJPeriod:        9,
		KDJSmoothK:       3,
		KDJSmoothD:       3,
		BollWindow:       20,
		BollK:            2,
	}
}

// Validate rejects non-positive windows and an inverted MACD pair.
func (p Params) Validate() error {
	for _, w := range p.MAWindows {
		if w <= 0 {
			return domain.InvalidParam("ma_windows", "window %d must be positive", w)
		}
	}
	for _, d := range p.ReturnHorizons {
		if d <= 0 {
			return domain.InvalidParam("return_horizons", "horizon %d must be positive", d)
		}
	}
	positive := []struct {
		name string
		v    int
	}{
		{"volatility_window", p.VolatilityWindow},
		{"range_window", p.RangeWindow},
		{"macd_fast", p.MACDFast},
		{"macd_slow", p.MACDSlow},
		{"macd_signal", p.MACDSignal},
		{"rsi_period", p.RSIPeriod},
		{"kdj_period", p.KDJPeriod},
		{"kdj_smooth_k", p.KDJSmoothK},
		{"kdj_smooth_d", p.KDJSmoothD},
		{"boll_window", p.BollWindow},
	}
	for _, f := range positive {
		if f.v <= 0 {
			return domain.InvalidParam(f.name, "must be positive, got %d", f.v)
		}
	}
	if p.MACDFast >= p.MACDSlow {
		return domain.InvalidParam("macd_fast", "fast period %d must be below slow period %d", p.MACDFast, p.MACDSlow)
	}
	if p.BollK <= 0 {
		return domain.InvalidParam("boll_k", "must be positive, got %v", p.BollK)
	}
	return nil
}
