package quote

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, -1},
		{"float", 1.5, 1.5},
		{"nan", math.NaN(), -1},
		{"inf", math.Inf(1), -1},
		{"int", 42, 42},
		{"json number", json.Number("3.25"), 3.25},
		{"string", " 12.5 ", 12.5},
		{"percent", "3.2%", 3.2},
		{"thousands", "1,234.5", 1234.5},
		{"dash", "-", -1},
		{"garbage", "abc", -1},
		{"bool", true, -1},
		{"scientific", "1.5e3", 1500},
		{"overflow", "1e999", -1},
		{"negative overflow", "-1e400", -1},
		{"overflow json number", json.Number("1e999"), -1},
		{"overflow bytes", []byte("1e999"), -1},
	}
	for _, tt := range tests {
		if got := SafeFloat(tt.in, -1); got != tt.want {
			t.Errorf("SafeFloat(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSafeDate(t *testing.T) {
	for _, in := range []any{"2024-03-01", "20240301", "2024-03-01 00:00:00", "2024/03/01"} {
		d, ok := SafeDate(in, time.UTC)
		if !ok {
			t.Errorf("SafeDate(%v) failed", in)
			continue
		}
		if d.Year() != 2024 || d.Month() != 3 || d.Day() != 1 {
			t.Errorf("SafeDate(%v) = %v", in, d)
		}
	}
	if _, ok := SafeDate("yesterday", time.UTC); ok {
		t.Error("SafeDate(yesterday) should fail")
	}
}

func TestNormalizeQuotesUsesFallbackColumns(t *testing.T) {
	tbl := &RawTable{
		Source: "sina",
		Schema: Schema{
			FieldCode:   {"code", "symbol"},
			FieldName:   {"name"},
			FieldLatest: {"最新价", "trade"},
			FieldPE:     {"per"},
		},
		Rows: []Row{
			{"symbol": "sz161226", "name": "白银LOF", "trade": "1.234"},
			{"symbol": "", "name": "no code"},
			{"code": "501018", "name": "南方原油", "最新价": math.NaN(), "per": nil},
		},
	}
	qs := NormalizeQuotes(tbl, 0)
	if len(qs) != 2 {
		t.Fatalf("NormalizeQuotes returned %d quotes, want 2", len(qs))
	}
	if qs[0].Code != "161226" {
		t.Errorf("Code = %q, want 161226 (prefix stripped)", qs[0].Code)
	}
	if qs[0].Latest != 1.234 {
		t.Errorf("Latest = %v, want 1.234", qs[0].Latest)
	}
	if qs[1].Latest != 0 || qs[1].PE != 0 {
		t.Errorf("NaN/nil cells = %v/%v, want defaults 0/0", qs[1].Latest, qs[1].PE)
	}
}

func TestNormalizeBarsDerivesPctChg(t *testing.T) {
	tbl := &RawTable{
		Schema: Schema{FieldDate: {"day"}, FieldClose: {"close"}},
		Rows: []Row{
			{"day": "2024-01-02", "close": "10"},
			{"day": "bad", "close": "11"},
			{"day": "2024-01-03", "close": "11"},
		},
	}
	bars := NormalizeBars(tbl, "161226", time.UTC, 0)
	if len(bars) != 2 {
		t.Fatalf("NormalizeBars returned %d bars, want 2", len(bars))
	}
	if math.Abs(bars[1].PctChg-10) > 1e-9 {
		t.Errorf("derived PctChg = %v, want 10", bars[1].PctChg)
	}
}

func TestFindAndSearch(t *testing.T) {
	tbl := &RawTable{
		Schema: Schema{FieldCode: {"c"}, FieldName: {"n"}},
		Rows: []Row{
			{"c": "161226", "n": "国投白银LOF"},
			{"c": "161116", "n": "易方达黄金主题"},
			{"c": "501018", "n": "南方原油LOF"},
		},
	}
	qs := NormalizeQuotes(tbl, 0)

	if _, ok := Find(qs, "1612"); ok {
		t.Error("Find should be exact-match only")
	}
	if q, ok := Find(qs, " 161226 "); !ok || q.Name != "国投白银LOF" {
		t.Errorf("Find(161226) = %+v, %v", q, ok)
	}

	got := Search(qs, "lof", 10)
	if len(got) != 2 {
		t.Errorf("Search(lof) returned %d, want 2", len(got))
	}
	if got := Search(qs, "161", 1); len(got) != 1 || got[0].Code != "161226" {
		t.Errorf("Search(161, 1) = %+v", got)
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.23456, 2); got != 1.23 {
		t.Errorf("Round = %v, want 1.23", got)
	}
	if got := Round(-2.345, 2); got != -2.35 {
		t.Errorf("Round = %v, want -2.35", got)
	}
}

func TestStripExchangePrefix(t *testing.T) {
	tests := map[string]string{
		"sh501018": "501018",
		"SZ161226": "161226",
		"bj830799": "830799",
		" 161226 ": "161226",
		"SHOP":     "SHOP",
		"SZNE":     "SZNE",
		"bjrk":     "bjrk",
		"sh":       "sh",
		"sh50101a": "sh50101a",
	}
	for in, want := range tests {
		if got := StripExchangePrefix(in); got != want {
			t.Errorf("StripExchangePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
