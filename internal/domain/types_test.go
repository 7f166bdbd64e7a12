package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestNewSeriesRejectsEmpty(t *testing.T) {
	_, err := NewSeries(nil)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("NewSeries(nil) error = %v, want ErrInsufficientHistory", err)
	}
}

func TestNewSeriesRejectsNonIncreasingDates(t *testing.T) {
	bars := []Bar{{Date: day(1), Close: 1}, {Date: day(1), Close: 2}}
	_, err := NewSeries(bars)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("NewSeries error = %v, want ErrInvalidParameter", err)
	}
}

func TestSeriesFromUnorderedSortsAndDedupes(t *testing.T) {
	bars := []Bar{
		{Date: day(3), Close: 3},
		{Date: day(1), Close: 1},
		{Date: day(3), Close: 33},
		{Date: day(2), Close: 2},
	}
	s, err := SeriesFromUnordered(bars)
	if err != nil {
		t.Fatalf("SeriesFromUnordered: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	want := []float64{1, 2, 33}
	for i, c := range s.Closes() {
		if c != want[i] {
			t.Errorf("Closes()[%d] = %v, want %v", i, c, want[i])
		}
	}
}

func TestSeriesReturns(t *testing.T) {
	s, err := NewSeries([]Bar{
		{Date: day(0), Close: 100},
		{Date: day(1), Close: 110},
		{Date: day(2), Close: 99},
	})
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	rs := s.Returns()
	if rs.Len() != s.Len()-1 {
		t.Fatalf("Returns().Len() = %d, want %d", rs.Len(), s.Len()-1)
	}
	if math.Abs(rs.Values[0]-0.10) > 1e-12 {
		t.Errorf("Values[0] = %v, want 0.10", rs.Values[0])
	}
	if math.Abs(rs.Values[1]-(-0.10)) > 1e-12 {
		t.Errorf("Values[1] = %v, want -0.10", rs.Values[1])
	}
	if !rs.Dates[0].Equal(day(1)) {
		t.Errorf("Dates[0] = %v, want %v", rs.Dates[0], day(1))
	}
}

func TestSeriesTail(t *testing.T) {
	s, _ := NewSeries([]Bar{{Date: day(0)}, {Date: day(1)}, {Date: day(2)}})
	if got := s.Tail(2).Len(); got != 2 {
		t.Errorf("Tail(2).Len() = %d, want 2", got)
	}
	if got := s.Tail(10).Len(); got != 3 {
		t.Errorf("Tail(10).Len() = %d, want 3", got)
	}
	if !s.Tail(2).Bar(0).Date.Equal(day(1)) {
		t.Errorf("Tail(2) first date = %v, want %v", s.Tail(2).Bar(0).Date, day(1))
	}
}

func TestNum(t *testing.T) {
	if Some(math.NaN()).Valid {
		t.Error("Some(NaN) should be absent")
	}
	if got := None.Format(2); got != "N/A" {
		t.Errorf("None.Format = %q, want N/A", got)
	}
	if got := Some(1.23456).Format(2); got != "1.23" {
		t.Errorf("Some(1.23456).Format(2) = %q, want 1.23", got)
	}
	b, err := json.Marshal(struct{ A, B Num }{Some(1.5), None})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"A":1.5,"B":null}` {
		t.Errorf("Marshal = %s", b)
	}
}

func TestProviderErrorClassification(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &ProviderError{Provider: "eastmoney", Attempt: 2, Err: errors.New("timeout")})
	if !errors.Is(err, ErrProviderFailure) {
		t.Error("ProviderError should match ErrProviderFailure")
	}
	if got := UserMessage(err); got == "" || got == err.Error() {
		t.Errorf("UserMessage(provider failure) = %q, want retry-later text", got)
	}
	if got := UserMessage(fmt.Errorf("x: %w", ErrNotFound)); got != "instrument not found" {
		t.Errorf("UserMessage(not found) = %q", got)
	}
}

func TestSnapshotAsStale(t *testing.T) {
	s := &Snapshot{Dataset: DatasetLOF, Source: "sina", Quotes: []Quote{{Code: "161226"}}}
	st := s.AsStale()
	if !st.Stale || s.Stale {
		t.Errorf("AsStale: copy.Stale=%v original.Stale=%v, want true/false", st.Stale, s.Stale)
	}
	if st.Len() != 1 {
		t.Errorf("stale Len() = %d, want 1", st.Len())
	}
}
