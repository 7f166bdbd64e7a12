package indicator

import (
	"math"

	"fundquant/internal/domain"
)

// MACDSeries holds the aligned MACD line, signal line and histogram.
type MACDSeries struct {
	Line   []domain.Num
	Signal []domain.Num
	Hist   []domain.Num
}

// MACD computes EMA(fast) − EMA(slow), its EMA(signal), and their difference.
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	in := present(closes)
	ef := EMA(in, fast)
	es := EMA(in, slow)
	line := make([]domain.Num, len(closes))
	for i := range closes {
		if ef[i].Valid && es[i].Valid {
			line[i] = domain.Some(ef[i].V - es[i].V)
		}
	}
	sig := EMA(line, signal)
	hist := make([]domain.Num, len(closes))
	for i := range closes {
		if line[i].Valid && sig[i].Valid {
			hist[i] = domain.Some(line[i].V - sig[i].V)
		}
	}
	return MACDSeries{Line: line, Signal: sig, Hist: hist}
}

// RSI computes Wilder's relative strength index. The first value appears at
// index period, i.e. it needs period+1 closes. When there were no losses the
// index is 100, or 50 when there was no movement at all.
func RSI(closes []float64, period int) []domain.Num {
	out := make([]domain.Num, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := split(closes[i] - closes[i-1])
		gain += g
		loss += l
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = domain.Some(rsiValue(avgGain, avgLoss))

	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
		out[i] = domain.Some(rsiValue(avgGain, avgLoss))
	}
	return out
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return math.Max(0, math.Min(100, 100-100/(1+rs)))
}

// KDJSeries holds the aligned stochastic %K, %D and %J lines.
type KDJSeries struct {
	K []domain.Num
	D []domain.Num
	J []domain.Num
}

// KDJ computes the stochastic oscillator over period bars with %K and %D
// smoothing factors m1 and m2: K = ((m1−1)·K' + RSV)/m1,
// D = ((m2−1)·D' + K)/m2, J = 3K − 2D. K and D start from 50. A window with
// no range gives RSV 50.
func KDJ(s domain.Series, period, m1, m2 int) KDJSeries {
	n := s.Len()
	out := KDJSeries{
		K: make([]domain.Num, n),
		D: make([]domain.Num, n),
		J: make([]domain.Num, n),
	}
	if period <= 0 || m1 <= 0 || m2 <= 0 || n < period {
		return out
	}
	k, d := 50.0, 50.0
	for i := period - 1; i < n; i++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for j := i - period + 1; j <= i; j++ {
			b := s.Bar(j)
			hi = math.Max(hi, barHigh(b))
			lo = math.Min(lo, barLow(b))
		}
		rsv := 50.0
		if hi > lo {
			rsv = (s.Bar(i).Close - lo) / (hi - lo) * 100
		}
		k = (float64(m1-1)*k + rsv) / float64(m1)
		d = (float64(m2-1)*d + k) / float64(m2)
		out.K[i] = domain.Some(k)
		out.D[i] = domain.Some(d)
		out.J[i] = domain.Some(3*k - 2*d)
	}
	return out
}

// BollingerSeries holds the aligned upper, middle and lower bands.
type BollingerSeries struct {
	Upper  []domain.Num
	Middle []domain.Num
	Lower  []domain.Num
}

// Bollinger computes SMA(window) ± k × population standard deviation over
// the same window.
func Bollinger(closes []float64, window int, k float64) BollingerSeries {
	mid := SMA(closes, window)
	out := BollingerSeries{
		Upper:  make([]domain.Num, len(closes)),
		Middle: mid,
		Lower:  make([]domain.Num, len(closes)),
	}
	for i := range closes {
		if !mid[i].Valid {
			continue
		}
		sd := popStdDev(closes[i-window+1 : i+1])
		out.Upper[i] = domain.Some(mid[i].V + k*sd)
		out.Lower[i] = domain.Some(mid[i].V - k*sd)
	}
	return out
}
