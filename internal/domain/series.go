package domain

import (
	"fmt"
	"sort"
	"time"
)

// Series is a non-empty, date-ascending sequence of bars for one instrument.
// Construct it with NewSeries; the zero value is an empty series.
type Series struct {
	bars []Bar
}

// NewSeries validates bars and returns a Series over a copy of them. Dates
// must be strictly increasing.
func NewSeries(bars []Bar) (Series, error) {
	if len(bars) == 0 {
		return Series{}, fmt.Errorf("%w: empty series", ErrInsufficientHistory)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return Series{}, InvalidParam("series", "date %s not after %s at index %d",
				bars[i].Date.Format("2006-01-02"), bars[i-1].Date.Format("2006-01-02"), i)
		}
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return Series{bars: cp}, nil
}

// SeriesFromUnordered sorts bars by date, keeps the last bar seen for any
// duplicate date, and builds a Series.
func SeriesFromUnordered(bars []Bar) (Series, error) {
	byDay := make(map[string]int, len(bars))
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		key := b.Date.Format("2006-01-02")
		if i, ok := byDay[key]; ok {
			out[i] = b
			continue
		}
		byDay[key] = len(out)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return NewSeries(out)
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.bars) }

// Bar returns the i-th bar, oldest first.
func (s Series) Bar(i int) Bar { return s.bars[i] }

// Last returns the most recent bar. It panics on an empty series.
func (s Series) Last() Bar { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the bars.
func (s Series) Bars() []Bar {
	cp := make([]Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Closes returns the close prices, oldest first.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices, oldest first.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices, oldest first.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Low
	}
	return out
}

// Dates returns the bar dates, oldest first.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Date
	}
	return out
}

// Tail returns the last n bars as a new Series, or s itself when it is not
// longer than n.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s.bars) {
		return s
	}
	return Series{bars: s.bars[len(s.bars)-n:]}
}

// Head returns the first n bars as a new Series sharing storage with s.
func (s Series) Head(n int) Series {
	if n >= len(s.bars) {
		return s
	}
	if n < 0 {
		n = 0
	}
	return Series{bars: s.bars[:n]}
}

// Returns derives the simple close-to-close returns. Element i is the return
// from bar i to bar i+1, so its date is Dates()[i+1]. A zero previous close
// yields a zero return.
func (s Series) Returns() ReturnSeries {
	if len(s.bars) < 2 {
		return ReturnSeries{}
	}
	rs := ReturnSeries{
		Start:  s.bars[0].Date,
		Values: make([]float64, len(s.bars)-1),
		Dates:  make([]time.Time, len(s.bars)-1),
	}
	for i := 1; i < len(s.bars); i++ {
		prev := s.bars[i-1].Close
		if prev != 0 {
			rs.Values[i-1] = (s.bars[i].Close - prev) / prev
		}
		rs.Dates[i-1] = s.bars[i].Date
	}
	return rs
}

// ReturnSeries is a sequence of fractional periodic returns with the date
// each return was realised on. Start is the date of the base observation
// preceding the first return.
type ReturnSeries struct {
	Start  time.Time
	Values []float64
	Dates  []time.Time
}

// Len returns the number of observations.
func (r ReturnSeries) Len() int { return len(r.Values) }
