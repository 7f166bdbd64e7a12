// Package quote normalises loosely typed provider tables into canonical
// domain quotes and bars. Every field extraction is total: missing, null,
// non-numeric and NaN cells become a default rather than an error.
package quote

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SafeFloat converts v to a float64, returning def for nil, NaN, ±Inf,
// booleans, and anything that does not parse as a number. Strings may carry
// thousands separators and a trailing percent sign.
func SafeFloat(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return def
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		return parseNumber(string(x), def)
	case decimal.Decimal:
		f = x.InexactFloat64()
	case string:
		return parseNumber(x, def)
	case []byte:
		return parseNumber(string(x), def)
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func parseNumber(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	switch strings.ToLower(s) {
	case "", "-", "--", "nan", "null", "none":
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// SafeString renders v as a trimmed string; nil becomes "".
func SafeString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%.0f", x)
		}
		return fmt.Sprint(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
}

// SafeDate parses a bar date in any of the layouts providers use. The zero
// time and false are returned when nothing matches.
func SafeDate(v any, loc *time.Location) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case int64:
		return time.UnixMilli(x).In(loc), x > 0
	}
	s := SafeString(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Round rounds v to places decimal digits, half away from zero.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
