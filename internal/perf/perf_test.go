package perf

import (
	"errors"
	"math"
	"testing"
	"time"

	"fundquant/internal/domain"
)

func returnsOf(vals ...float64) domain.ReturnSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r := domain.ReturnSeries{Start: start, Values: vals, Dates: make([]time.Time, len(vals))}
	for i := range vals {
		r.Dates[i] = start.AddDate(0, 0, i+1)
	}
	return r
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeFlatSeries(t *testing.T) {
	m, err := Compute(returnsOf(0, 0, 0, 0, 0, 0, 0, 0), DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	checks := map[string]domain.Num{
		"AnnualReturn":     m.AnnualReturn,
		"AnnualVolatility": m.AnnualVolatility,
		"Sharpe":           m.Sharpe,
		"Sortino":          m.Sortino,
		"Calmar":           m.Calmar,
		"MaxDrawdown":      m.MaxDrawdown.Value,
		"VaR":              m.VaR,
	}
	for name, n := range checks {
		if !n.Valid {
			t.Errorf("%s absent, want 0", name)
			continue
		}
		if n.V != 0 {
			t.Errorf("%s = %v, want 0", name, n.V)
		}
	}
	if !m.MaxDrawdown.Peak.IsZero() || !m.MaxDrawdown.Trough.IsZero() {
		t.Errorf("drawdown span set for flat series: %v..%v", m.MaxDrawdown.Peak, m.MaxDrawdown.Trough)
	}
}

func TestComputeRisingSeries(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 0.01
	}
	m, err := Compute(returnsOf(vals...), DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.AnnualReturn.V <= 0 {
		t.Errorf("AnnualReturn = %v, want > 0", m.AnnualReturn.V)
	}
	if m.MaxDrawdown.Value.V != 0 {
		t.Errorf("MaxDrawdown = %v, want 0", m.MaxDrawdown.Value.V)
	}
	want := math.Pow(1.01, 30) - 1
	if !near(m.TotalReturn.V, want) {
		t.Errorf("TotalReturn = %v, want %v", m.TotalReturn.V, want)
	}
	if m.Sortino.V != 0 {
		t.Errorf("Sortino = %v, want 0 with no losing periods", m.Sortino.V)
	}
}

func TestComputeTooFewObservations(t *testing.T) {
	m, err := Compute(returnsOf(0.01, -0.02, 0.03), DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.Observations != 3 {
		t.Errorf("Observations = %d, want 3", m.Observations)
	}
	if m.Sharpe.Valid || m.AnnualReturn.Valid || m.MaxDrawdown.Value.Valid || m.VaR.Valid {
		t.Errorf("metrics present with 3 observations: %+v", m)
	}
}

func TestMaxDrawdownSpan(t *testing.T) {
	r := returnsOf(0.10, 0.05, -0.20, 0.02, -0.10, 0.30)
	dd := MaxDrawdown(r)
	if dd.Value.V > 0 {
		t.Fatalf("drawdown = %v, want <= 0", dd.Value.V)
	}
	// Peak after the second return: 1.1*1.05 = 1.155. Trough after the fifth:
	// 1.155*0.8*1.02*0.9 = 0.848232.
	want := (0.848232 - 1.155) / 1.155
	if !near(dd.Value.V, want) {
		t.Errorf("drawdown = %v, want %v", dd.Value.V, want)
	}
	if !dd.Peak.Equal(r.Dates[1]) {
		t.Errorf("peak = %v, want %v", dd.Peak, r.Dates[1])
	}
	if !dd.Trough.Equal(r.Dates[4]) {
		t.Errorf("trough = %v, want %v", dd.Trough, r.Dates[4])
	}
	if !dd.Trough.After(dd.Peak) {
		t.Errorf("trough %v not after peak %v", dd.Trough, dd.Peak)
	}
}

func TestMaxDrawdownFromStart(t *testing.T) {
	r := returnsOf(-0.5, 0.1)
	dd := MaxDrawdown(r)
	if !near(dd.Value.V, -0.5) {
		t.Errorf("drawdown = %v, want -0.5", dd.Value.V)
	}
	if !dd.Peak.Equal(r.Start) {
		t.Errorf("peak = %v, want series start %v", dd.Peak, r.Start)
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{5, 1, 4, 2, 3}
	tests := []struct {
		p, want float64
	}{
		{0, 1},
		{1, 5},
		{0.5, 3},
		{0.25, 2},
		{0.1, 1.4},
	}
	for _, tt := range tests {
		if got := Percentile(xs, tt.p); !near(got, tt.want) {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if xs[0] != 5 {
		t.Errorf("Percentile modified its input")
	}
}

func TestVaRIsLowerTail(t *testing.T) {
	r := returnsOf(0.02, -0.03, 0.01, -0.01, 0.04, -0.05, 0.00, 0.03, -0.02, 0.01)
	m, err := Compute(r, DefaultParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if m.VaR.V >= 0 {
		t.Errorf("VaR = %v, want negative", m.VaR.V)
	}
	if m.VaR.V < -0.05 {
		t.Errorf("VaR = %v, below the worst return", m.VaR.V)
	}
}

func TestSampleStdDev(t *testing.T) {
	if got := SampleStdDev([]float64{1}); got != 0 {
		t.Errorf("SampleStdDev(single) = %v, want 0", got)
	}
	if got := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !near(got, math.Sqrt(32.0/7)) {
		t.Errorf("SampleStdDev = %v, want %v", got, math.Sqrt(32.0/7))
	}
}

func TestValidate(t *testing.T) {
	bad := []Params{
		{PeriodsPerYear: 0, VaRConfidence: 0.95, MinObservations: 5},
		{PeriodsPerYear: 252, VaRConfidence: 1, MinObservations: 5},
		{PeriodsPerYear: 252, VaRConfidence: 0.95, MinObservations: 0},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("case %d: Validate() = %v, want ErrInvalidParameter", i, err)
		}
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("DefaultParams().Validate() = %v", err)
	}
}
