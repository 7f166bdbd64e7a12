package util

import (
	"time"

	"fundquant/internal/domain"
)

// TradingCalendar provides weekday-based trading-day arithmetic for a market.
// Exchange holidays are not modelled; callers over-fetch calendar days and
// trim by bar count instead.
type TradingCalendar struct {
	market domain.Market
	loc    *time.Location
}

// NewTradingCalendar creates a TradingCalendar for the given market. CN dates
// are evaluated in Asia/Shanghai, US dates in America/New_York; UTC is used
// when the zone database is unavailable.
func NewTradingCalendar(market domain.Market) *TradingCalendar {
	name := "Asia/Shanghai"
	if market == domain.MarketUS {
		name = "America/New_York"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	return &TradingCalendar{market: market, loc: loc}
}

// Location returns the calendar's time zone.
func (tc *TradingCalendar) Location() *time.Location { return tc.loc }

// IsTradingDay reports whether t falls on a weekday in the market's zone.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.In(tc.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// LookbackWindow returns a [start, end] calendar window ending at now that
// comfortably contains tradingDays sessions: twice as many calendar days,
// plus a week so that very short lookbacks still span a weekend.
func (tc *TradingCalendar) LookbackWindow(now time.Time, tradingDays int) (start, end time.Time) {
	end = now.In(tc.loc)
	if tradingDays < 1 {
		tradingDays = 1
	}
	start = end.AddDate(0, 0, -(tradingDays*2 + 7))
	return start, end
}
