// Package perf computes performance and risk metrics from a periodic return
// series: annualised return and volatility, Sharpe, Sortino and Calmar
// ratios, maximum drawdown with its peak/trough span, and historical VaR.
package perf

import (
	"math"
	"sort"
	"time"

	"fundquant/internal/domain"
)

// Params controls annualisation and the VaR level.
type Params struct {
	RiskFreeRate    float64 `yaml:"risk_free_rate"`   // annual, fractional
	PeriodsPerYear  int     `yaml:"periods_per_year"` // 252 for daily bars
	VaRConfidence   float64 `yaml:"var_confidence"`   // e.g. 0.95
	MinObservations int     `yaml:"min_observations"`
}

// DefaultParams returns rf 0, 252 periods, 95% VaR, 5 observations minimum.
func DefaultParams() Params {
	return Params{
		RiskFreeRate:    0,
		PeriodsPerYear:  252,
		VaRConfidence:   0.95,
		MinObservations: 5,
	}
}

// Validate rejects a non-positive annualisation factor and a confidence
// outside (0, 1).
func (p Params) Validate() error {
	if p.PeriodsPerYear <= 0 {
		return domain.InvalidParam("periods_per_year", "must be positive, got %d", p.PeriodsPerYear)
	}
	if p.VaRConfidence <= 0 || p.VaRConfidence >= 1 {
		return domain.InvalidParam("var_confidence", "must be in (0, 1), got %v", p.VaRConfidence)
	}
	if p.MinObservations < 1 {
		return domain.InvalidParam("min_observations", "must be at least 1, got %d", p.MinObservations)
	}
	return nil
}

// Drawdown is the deepest peak-to-trough decline of the cumulative curve.
// Value is non-positive. Peak and Trough are zero when Value is 0.
type Drawdown struct {
	Value  domain.Num `json:"value"`
	Peak   time.Time  `json:"peak"`
	Trough time.Time  `json:"trough"`
}

// Metrics is the fixed performance record. Every field is absent when the
// series has fewer than Params.MinObservations returns.
type Metrics struct {
	Observations     int        `json:"observations"`
	TotalReturn      domain.Num `json:"totalReturn"`
	AnnualReturn     domain.Num `json:"annualReturn"`
	AnnualVolatility domain.Num `json:"annualVolatility"`
	Sharpe           domain.Num `json:"sharpe"`
	Sortino          domain.Num `json:"sortino"`
	Calmar           domain.Num `json:"calmar"`
	MaxDrawdown      Drawdown   `json:"maxDrawdown"`
	VaR              domain.Num `json:"var"`
	VaRConfidence    float64    `json:"varConfidence"`
}

// Compute derives Metrics from r. It only fails on invalid params; short
// series produce absent fields.
func Compute(r domain.ReturnSeries, p Params) (Metrics, error) {
	if err := p.Validate(); err != nil {
		return Metrics{}, err
	}
	m := Metrics{Observations: r.Len(), VaRConfidence: p.VaRConfidence}
	if r.Len() < p.MinObservations {
		return m, nil
	}

	ppy := float64(p.PeriodsPerYear)
	mean := Mean(r.Values)
	annRet := math.Pow(1+mean, ppy) - 1
	annVol := SampleStdDev(r.Values) * math.Sqrt(ppy)

	var downside []float64
	for _, v := range r.Values {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	downDev := SampleStdDev(downside) * math.Sqrt(ppy)

	dd := MaxDrawdown(r)

	m.TotalReturn = domain.Some(Cumulative(r.Values))
	m.AnnualReturn = domain.Some(annRet)
	m.AnnualVolatility = domain.Some(annVol)
	m.Sharpe = domain.Some(ratio(annRet-p.RiskFreeRate, annVol))
	m.Sortino = domain.Some(ratio(annRet-p.RiskFreeRate, downDev))
	m.MaxDrawdown = dd
	m.Calmar = domain.Some(ratio(annRet, math.Abs(dd.Value.V)))
	m.VaR = domain.Some(Percentile(r.Values, 1-p.VaRConfidence))
	return m, nil
}

// ratio returns num/den, or 0 when den is zero or not finite.
func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0
	}
	return num / den
}

// MaxDrawdown walks the compounded curve (base 1 at r.Start) once, tracking
// the running peak.
func MaxDrawdown(r domain.ReturnSeries) Drawdown {
	equity, peak := 1.0, 1.0
	peakDate := r.Start
	worst := 0.0
	var out Drawdown
	for i, v := range r.Values {
		equity *= 1 + v
		date := dateAt(r, i)
		if equity > peak {
			peak, peakDate = equity, date
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (equity - peak) / peak; dd < worst {
			worst = dd
			out.Peak, out.Trough = peakDate, date
		}
	}
	out.Value = domain.Some(worst)
	return out
}

func dateAt(r domain.ReturnSeries, i int) time.Time {
	if i < len(r.Dates) {
		return r.Dates[i]
	}
	return time.Time{}
}

// Cumulative compounds the returns: Π(1+r) − 1.
func Cumulative(xs []float64) float64 {
	acc := 1.0
	for _, x := range xs {
		acc *= 1 + x
	}
	return acc - 1
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev returns the n−1 standard deviation, or 0 with fewer than two
// observations.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Percentile returns the p-quantile (0 ≤ p ≤ 1) of xs with linear
// interpolation between closest ranks. xs is not modified.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo < 0 {
		lo = 0
	}
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
