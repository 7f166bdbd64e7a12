// Package indicator computes technical indicators over a daily price series:
// moving averages, MACD, RSI, KDJ, Bollinger Bands, trailing returns and
// volatility, and a moving-average trend classification.
//
// Every function here is pure. A value that cannot be computed because the
// series is too short is reported as absent (domain.None), never computed
// over a shorter window.
package indicator

import (
	"math"

	"fundquant/internal/domain"
)

// SMA returns the simple moving average of values over window, aligned with
// values. Entries before index window-1 are absent.
func SMA(values []float64, window int) []domain.Num {
	out := make([]domain.Num, len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = domain.Some(sum / float64(window))
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the simple average of the first period inputs. Absent inputs
// before the first present one are skipped; the output is aligned with in.
func EMA(in []domain.Num, period int) []domain.Num {
	out := make([]domain.Num, len(in))
	if period <= 0 {
		return out
	}
	first := -1
	for i, v := range in {
		if v.Valid {
			first = i
			break
		}
	}
	if first < 0 || len(in)-first < period {
		return out
	}
	alpha := 2.0 / float64(period+1)
	seed := 0.0
	for i := first; i < first+period; i++ {
		seed += in[i].V
	}
	prev := seed / float64(period)
	out[first+period-1] = domain.Some(prev)
	for i := first + period; i < len(in); i++ {
		if !in[i].Valid {
			continue
		}
		prev = alpha*in[i].V + (1-alpha)*prev
		out[i] = domain.Some(prev)
	}
	return out
}

func present(values []float64) []domain.Num {
	out := make([]domain.Num, len(values))
	for i, v := range values {
		out[i] = domain.Some(v)
	}
	return out
}

// Last returns the final element of xs, or absent for an empty slice.
func Last(xs []domain.Num) domain.Num {
	if len(xs) == 0 {
		return domain.None
	}
	return xs[len(xs)-1]
}

// PctReturn returns the percentage change of the last value over the value
// days periods earlier. It is absent with fewer than days+1 values or a zero
// base.
func PctReturn(values []float64, days int) domain.Num {
	if days <= 0 || len(values) < days+1 {
		return domain.None
	}
	base := values[len(values)-1-days]
	if base == 0 {
		return domain.None
	}
	return domain.Some((values[len(values)-1] - base) / base * 100)
}

// Volatility returns the population standard deviation of the trailing
// window values.
func Volatility(values []float64, window int) domain.Num {
	if window <= 0 || len(values) < window {
		return domain.None
	}
	return domain.Some(popStdDev(values[len(values)-window:]))
}

func popStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / float64(len(xs)))
}

// HighLow returns the highest high and lowest low over the trailing window
// bars. Bars without a high or low fall back to their close.
func HighLow(s domain.Series, window int) (high, low domain.Num) {
	if window <= 0 || s.Len() < window {
		return domain.None, domain.None
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for i := s.Len() - window; i < s.Len(); i++ {
		b := s.Bar(i)
		hi = math.Max(hi, barHigh(b))
		lo = math.Min(lo, barLow(b))
	}
	return domain.Some(hi), domain.Some(lo)
}

func barHigh(b domain.Bar) float64 {
	if b.High <= 0 {
		return b.Close
	}
	return b.High
}

func barLow(b domain.Bar) float64 {
	if b.Low <= 0 {
		return b.Close
	}
	return b.Low
}
