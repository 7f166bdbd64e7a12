package indicator

import "fundquant/internal/domain"

// Trend is the moving-average trend label.
type Trend string

const (
	TrendStrongUp   Trend = "strong-uptrend"
	TrendUp         Trend = "uptrend"
	TrendSideways   Trend = "sideways"
	TrendDown       Trend = "downtrend"
	TrendStrongDown Trend = "strong-downtrend"
)

// Score maps the trend to -2..2.
func (t Trend) Score() float64 {
	switch t {
	case TrendStrongUp:
		return 2
	case TrendUp:
		return 1
	case TrendDown:
		return -1
	case TrendStrongDown:
		return -2
	default:
		return 0
	}
}

// ClassifyTrend applies the rule ladder below, first match wins. Any absent
// average gives sideways.
//
//	price > ma5 > ma10 > ma20  strong-uptrend
//	price > ma5 > ma10         uptrend
//	price < ma5 < ma10 < ma20  strong-downtrend
//	price < ma5 < ma10         downtrend
//
// The uptrend rung ignores ma20, so price can sit below ma20 and still be
// labelled uptrend.
func ClassifyTrend(price float64, ma5, ma10, ma20 domain.Num) Trend {
	if !ma5.Valid || !ma10.Valid || !ma20.Valid {
		return TrendSideways
	}
	a, b, c := ma5.V, ma10.V, ma20.V
	switch {
	case price > a && a > b && b > c:
		return TrendStrongUp
	case price > a && a > b:
		return TrendUp
	case price < a && a < b && b < c:
		return TrendStrongDown
	case price < a && a < b:
		return TrendDown
	default:
		return TrendSideways
	}
}
