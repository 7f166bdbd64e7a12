package indicator

import (
	"fmt"
	"sort"
	"time"

	"fundquant/internal/domain"
)

// MACDValue is the MACD state at the last bar.
type MACDValue struct {
	Line   domain.Num `json:"line"`
	Signal domain.Num `json:"signal"`
	Hist   domain.Num `json:"hist"`
}

// KDJValue is the stochastic state at the last bar.
type KDJValue struct {
	K domain.Num `json:"k"`
	D domain.Num `json:"d"`
	J domain.Num `json:"j"`
}

// BollValue is the Bollinger state at the last bar.
type BollValue struct {
	Upper  domain.Num `json:"upper"`
	Middle domain.Num `json:"middle"`
	Lower  domain.Num `json:"lower"`
}

// Arrays carries the full per-bar indicator lines, aligned with the input
// series, for consumers that replay history.
type Arrays struct {
	SMA  map[int][]domain.Num
	MACD MACDSeries
	RSI  []domain.Num
	KDJ  KDJSeries
	Boll BollingerSeries
}

// Set is the indicator snapshot for the last bar of a series.
type Set struct {
	Symbol     string             `json:"symbol"`
	Date       time.Time          `json:"date"`
	Bars       int                `json:"bars"`
	Price      float64            `json:"price"`
	ChangeRate float64            `json:"changeRate"`
	MA         map[int]domain.Num `json:"ma"`
	Returns    map[int]domain.Num `json:"returns"`
	Volatility domain.Num         `json:"volatility"`
	High       domain.Num         `json:"high"`
	Low        domain.Num         `json:"low"`
	MACD       MACDValue          `json:"macd"`
	RSI        domain.Num         `json:"rsi"`
	KDJ        KDJValue           `json:"kdj"`
	Boll       BollValue          `json:"boll"`
	Trend      Trend              `json:"trend"`

	Params Params `json:"-"`
	Arrays Arrays `json:"-"`
}

// Compute builds the indicator Set for the last bar of s. An empty series
// yields a Set with every indicator absent and a sideways trend.
func Compute(s domain.Series, p Params) (*Set, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	set := &Set{
		Bars:    s.Len(),
		MA:      make(map[int]domain.Num, len(p.MAWindows)),
		Returns: make(map[int]domain.Num, len(p.ReturnHorizons)),
		Trend:   TrendSideways,
		Params:  p,
		Arrays:  Arrays{SMA: make(map[int][]domain.Num)},
	}
	if s.Len() == 0 {
		return set, nil
	}

	last := s.Last()
	set.Symbol = last.Symbol
	set.Date = last.Date
	set.Price = last.Close
	set.ChangeRate = last.PctChg

	closes := s.Closes()
	sma := func(w int) []domain.Num {
		if a, ok := set.Arrays.SMA[w]; ok {
			return a
		}
		a := SMA(closes, w)
		set.Arrays.SMA[w] = a
		return a
	}

	for _, w := range p.MAWindows {
		set.MA[w] = Last(sma(w))
	}
	for _, d := range p.ReturnHorizons {
		set.Returns[d] = PctReturn(closes, d)
	}
	set.Volatility = Volatility(closes, p.VolatilityWindow)
	set.High, set.Low = HighLow(s, p.RangeWindow)

	set.Arrays.MACD = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	set.MACD = MACDValue{
		Line:   Last(set.Arrays.MACD.Line),
		Signal: Last(set.Arrays.MACD.Signal),
		Hist:   Last(set.Arrays.MACD.Hist),
	}

	set.Arrays.RSI = RSI(closes, p.RSIPeriod)
	set.RSI = Last(set.Arrays.RSI)

	set.Arrays.KDJ = KDJ(s, p.KDJPeriod, p.KDJSmoothK, p.KDJSmoothD)
	set.KDJ = KDJValue{K: Last(set.Arrays.KDJ.K), D: Last(set.Arrays.KDJ.D), J: Last(set.Arrays.KDJ.J)}

	set.Arrays.Boll = Bollinger(closes, p.BollWindow, p.BollK)
	set.Boll = BollValue{
		Upper:  Last(set.Arrays.Boll.Upper),
		Middle: Last(set.Arrays.Boll.Middle),
		Lower:  Last(set.Arrays.Boll.Lower),
	}

	set.Trend = ClassifyTrend(set.Price, Last(sma(5)), Last(sma(10)), Last(sma(20)))
	return set, nil
}

// MAWindows returns the configured moving-average windows in ascending order.
func (s *Set) MAWindows() []int {
	ws := make([]int, 0, len(s.MA))
	for w := range s.MA {
		ws = append(ws, w)
	}
	sort.Ints(ws)
	return ws
}

// ReturnHorizons returns the configured return horizons in ascending order.
func (s *Set) ReturnHorizons() []int {
	ds := make([]int, 0, len(s.Returns))
	for d := range s.Returns {
		ds = append(ds, d)
	}
	sort.Ints(ds)
	return ds
}

// Values flattens the set into a name → value mapping, e.g. "ma5",
// "return_10d", "rsi", "macd_hist".
func (s *Set) Values() map[string]domain.Num {
	m := map[string]domain.Num{
		"price":       domain.Some(s.Price),
		"volatility":  s.Volatility,
		"high":        s.High,
		"low":         s.Low,
		"macd":        s.MACD.Line,
		"macd_signal": s.MACD.Signal,
		"macd_hist":   s.MACD.Hist,
		"rsi":         s.RSI,
		"kdj_k":       s.KDJ.K,
		"kdj_d":       s.KDJ.D,
		"kdj_j":       s.KDJ.J,
		"boll_upper":  s.Boll.Upper,
		"boll_middle": s.Boll.Middle,
		"boll_lower":  s.Boll.Lower,
	}
	if s.Bars == 0 {
		m["price"] = domain.None
	}
	for w, v := range s.MA {
		m[fmt.Sprintf("ma%d", w)] = v
	}
	for d, v := range s.Returns {
		m[fmt.Sprintf("return_%dd", d)] = v
	}
	return m
}
