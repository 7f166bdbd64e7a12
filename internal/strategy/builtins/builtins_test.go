package builtins

import (
	"errors"
	"math"
	"testing"
	"time"

	"fundquant/internal/domain"
	"fundquant/internal/perf"
	"fundquant/internal/strategy"
)

func seriesOf(t *testing.T, closes []float64) domain.Series {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "161226", Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	s, err := domain.NewSeries(bars)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func run(t *testing.T, s domain.Series, kind strategy.Kind) *strategy.Result {
	t.Helper()
	bt := strategy.NewBacktester(NewRegistry(), perf.DefaultParams())
	res, err := bt.Run(s, kind, strategy.DefaultParams())
	if err != nil {
		t.Fatalf("Run(%s): %v", kind, err)
	}
	return res
}

func TestMACrossRisingSeries(t *testing.T) {
	closes := make([]float64, 30)
	c := 1.0
	for i := range closes {
		closes[i] = c
		c *= 1.01
	}
	s := seriesOf(t, closes)
	res := run(t, s, strategy.KindMACross)

	if res.NumTrades != 1 {
		t.Fatalf("NumTrades = %d, want 1", res.NumTrades)
	}
	tr := res.Trades[0]
	if !tr.OpenAtEnd {
		t.Errorf("trade not flagged open at end: %+v", tr)
	}
	if tr.Return <= 0 {
		t.Errorf("trade return = %v, want > 0", tr.Return)
	}
	// Slow SMA is first defined at bar 19.
	if !tr.EntryDate.Equal(s.Bar(19).Date) {
		t.Errorf("entry date = %v, want %v", tr.EntryDate, s.Bar(19).Date)
	}
	if len(res.Equity) != 30 || res.Equity[0].Value != 1 {
		t.Fatalf("equity len %d start %v, want 30 and 1", len(res.Equity), res.Equity[0].Value)
	}
	if want := math.Pow(1.01, 10); math.Abs(res.FinalEquity()-want) > 1e-9 {
		t.Errorf("final equity = %v, want %v", res.FinalEquity(), want)
	}
	if !res.WinRate.Valid || res.WinRate.V != 1 {
		t.Errorf("WinRate = %v, want 1", res.WinRate)
	}
	if res.Metrics.MaxDrawdown.Value.V != 0 {
		t.Errorf("MaxDrawdown = %v, want 0", res.Metrics.MaxDrawdown.Value.V)
	}
}

func TestFlatSeriesHasNoTrades(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1.5
	}
	s := seriesOf(t, closes)
	for _, kind := range []strategy.Kind{strategy.KindMACross, strategy.KindRSIThreshold} {
		res := run(t, s, kind)
		if res.NumTrades != 0 {
			t.Errorf("%s: NumTrades = %d, want 0", kind, res.NumTrades)
		}
		if res.WinRate.Valid {
			t.Errorf("%s: WinRate = %v, want absent (no trades)", kind, res.WinRate)
		}
		m := res.Metrics
		if m.Sharpe.V != 0 || m.Sortino.V != 0 || m.Calmar.V != 0 || m.MaxDrawdown.Value.V != 0 {
			t.Errorf("%s: metrics = %+v, want zero ratios", kind, m)
		}
	}
}

func TestRSIThresholdRoundTrip(t *testing.T) {
	var closes []float64
	for i := 0; i <= 20; i++ {
		closes = append(closes, 100-float64(i))
	}
	for k := 1; k <= 20; k++ {
		closes = append(closes, 80+float64(k))
	}
	s := seriesOf(t, closes)
	res := run(t, s, strategy.KindRSIThreshold)

	if res.NumTrades != 1 {
		t.Fatalf("NumTrades = %d, want 1 (%+v)", res.NumTrades, res.Trades)
	}
	tr := res.Trades[0]
	if !tr.EntryDate.Equal(s.Bar(14).Date) {
		t.Errorf("entry date = %v, want first defined RSI bar %v", tr.EntryDate, s.Bar(14).Date)
	}
	if tr.OpenAtEnd {
		t.Errorf("trade still open, want exit on overbought")
	}
	if !tr.ExitDate.After(s.Bar(20).Date) {
		t.Errorf("exit date = %v, want during the rebound", tr.ExitDate)
	}
	if tr.Return <= 0 {
		t.Errorf("trade return = %v, want > 0", tr.Return)
	}
}

func TestConstructorsValidate(t *testing.T) {
	if _, err := NewMACross(strategy.MACrossParams{Fast: 20, Slow: 20}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("NewMACross(20,20) error = %v, want ErrInvalidParameter", err)
	}
	if _, err := NewRSIThreshold(strategy.RSIParams{Period: 0, Oversold: 30, Overbought: 70}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("NewRSIThreshold(period 0) error = %v, want ErrInvalidParameter", err)
	}
	s, err := NewMACross(strategy.MACrossParams{Fast: 5, Slow: 20})
	if err != nil {
		t.Fatalf("NewMACross: %v", err)
	}
	if s.Name() != "ma-cross(5,20)" || s.Lookback() != 20 {
		t.Errorf("Name/Lookback = %q/%d", s.Name(), s.Lookback())
	}
}
