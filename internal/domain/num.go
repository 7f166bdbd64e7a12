package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Num is a float that may be absent, e.g. an indicator computed over a
// series that is too short for its window.
type Num struct {
	V     float64
	Valid bool
}

// Some returns a present Num. NaN and ±Inf are treated as absent.
func Some(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Num{}
	}
	return Num{V: v, Valid: true}
}

// None is the absent value.
var None = Num{}

// Or returns the value, or def when absent.
func (n Num) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.V
}

// Format renders n with the given number of decimals, or "N/A" when absent.
func (n Num) Format(prec int) string {
	if !n.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(n.V, 'f', prec, 64)
}

func (n Num) String() string { return n.Format(4) }

// MarshalJSON encodes absent values as null.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

// UnmarshalJSON accepts a number or null.
func (n *Num) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = None
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}
