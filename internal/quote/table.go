package quote

import (
	"strings"
	"time"

	"fundquant/internal/domain"
)

// Row is one loosely typed record keyed by the provider's column names.
type Row map[string]any

// RawTable is what a provider adapter returns before normalisation.
type RawTable struct {
	Source string
	Schema Schema
	Rows   []Row
}

// Field is a canonical column.
type Field string

const (
	FieldCode          Field = "code"
	FieldName          Field = "name"
	FieldLatest        Field = "latest"
	FieldChangeAmount  Field = "change_amount"
	FieldChangeRate    Field = "change_rate"
	FieldOpen          Field = "open"
	FieldHigh          Field = "high"
	FieldLow           Field = "low"
	FieldClose         Field = "close"
	FieldPrevClose     Field = "prev_close"
	FieldVolume        Field = "volume"
	FieldAmount        Field = "amount"
	FieldAmplitude     Field = "amplitude"
	FieldTurnover      Field = "turnover"
	FieldPE            Field = "pe"
	FieldPB            Field = "pb"
	FieldTotalCap      Field = "total_cap"
	FieldCirculatedCap Field = "circulated_cap"
	FieldDate          Field = "date"
)

// Schema maps each canonical field to the provider columns that may hold it,
// in order of preference.
type Schema map[Field][]string

// lookup returns the first present, non-nil cell for f.
func (s Schema) lookup(r Row, f Field) (any, bool) {
	for _, col := range s[f] {
		if v, ok := r[col]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Float extracts f from r, or def when absent or unparsable.
func (s Schema) Float(r Row, f Field, def float64) float64 {
	v, ok := s.lookup(r, f)
	if !ok {
		return def
	}
	return SafeFloat(v, def)
}

// String extracts f from r, or "" when absent.
func (s Schema) String(r Row, f Field) string {
	v, ok := s.lookup(r, f)
	if !ok {
		return ""
	}
	return SafeString(v)
}

// Date extracts f from r as a date in loc.
func (s Schema) Date(r Row, f Field, loc *time.Location) (time.Time, bool) {
	v, ok := s.lookup(r, f)
	if !ok {
		return time.Time{}, false
	}
	return SafeDate(v, loc)
}

// NormalizeQuotes converts t into canonical quotes. Rows without a code are
// dropped. Codes are trimmed; a leading exchange prefix such as "sz" or "sh"
// is removed so lookups match across providers.
func NormalizeQuotes(t *RawTable, def float64) []domain.Quote {
	if t == nil {
		return nil
	}
	s := t.Schema
	out := make([]domain.Quote, 0, len(t.Rows))
	for _, r := range t.Rows {
		code := StripExchangePrefix(s.String(r, FieldCode))
		if code == "" {
			continue
		}
		out = append(out, domain.Quote{
			Code:          code,
			Name:          s.String(r, FieldName),
			Latest:        s.Float(r, FieldLatest, def),
			ChangeAmount:  s.Float(r, FieldChangeAmount, def),
			ChangeRate:    s.Float(r, FieldChangeRate, def),
			Open:          s.Float(r, FieldOpen, def),
			High:          s.Float(r, FieldHigh, def),
			Low:           s.Float(r, FieldLow, def),
			PrevClose:     s.Float(r, FieldPrevClose, def),
			Volume:        s.Float(r, FieldVolume, def),
			Amount:        s.Float(r, FieldAmount, def),
			Amplitude:     s.Float(r, FieldAmplitude, def),
			Turnover:      s.Float(r, FieldTurnover, def),
			PE:            s.Float(r, FieldPE, def),
			PB:            s.Float(r, FieldPB, def),
			TotalCap:      s.Float(r, FieldTotalCap, def),
			CirculatedCap: s.Float(r, FieldCirculatedCap, def),
		})
	}
	return out
}

// NormalizeBars converts t into bars for symbol. Rows whose date cannot be
// parsed are dropped; the result is in table order and may still need
// sorting. When the table carries no change-rate column, PctChg is derived
// from consecutive closes.
func NormalizeBars(t *RawTable, symbol string, loc *time.Location, def float64) []domain.Bar {
	if t == nil {
		return nil
	}
	s := t.Schema
	_, hasPct := s[FieldChangeRate]
	out := make([]domain.Bar, 0, len(t.Rows))
	for _, r := range t.Rows {
		d, ok := s.Date(r, FieldDate, loc)
		if !ok {
			continue
		}
		b := domain.Bar{
			Symbol:   symbol,
			Date:     d,
			Open:     s.Float(r, FieldOpen, def),
			High:     s.Float(r, FieldHigh, def),
			Low:      s.Float(r, FieldLow, def),
			Close:    s.Float(r, FieldClose, def),
			Volume:   s.Float(r, FieldVolume, def),
			Amount:   s.Float(r, FieldAmount, def),
			PctChg:   s.Float(r, FieldChangeRate, def),
			Turnover: s.Float(r, FieldTurnover, def),
		}
		if !hasPct && len(out) > 0 {
			if prev := out[len(out)-1].Close; prev != 0 {
				b.PctChg = (b.Close - prev) / prev * 100
			}
		}
		out = append(out, b)
	}
	return out
}

// StripExchangePrefix removes a two-letter market prefix ("sh", "sz", "bj")
// from a CN instrument code. The prefix is only dropped when the rest is all
// digits, so tickers such as "SHOP" pass through unchanged.
func StripExchangePrefix(code string) string {
	code = strings.TrimSpace(code)
	if len(code) > 2 && allDigits(code[2:]) {
		switch strings.ToLower(code[:2]) {
		case "sh", "sz", "bj":
			return code[2:]
		}
	}
	return code
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Find returns the quote whose code equals code exactly.
func Find(quotes []domain.Quote, code string) (domain.Quote, bool) {
	code = strings.TrimSpace(code)
	for _, q := range quotes {
		if q.Code == code {
			return q, true
		}
	}
	return domain.Quote{}, false
}

// Search returns up to max quotes whose code or name contains keyword,
// case-insensitively, in table order.
func Search(quotes []domain.Quote, keyword string, max int) []domain.Quote {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || max <= 0 {
		return nil
	}
	var out []domain.Quote
	for _, q := range quotes {
		if strings.Contains(strings.ToLower(q.Code), keyword) || strings.Contains(strings.ToLower(q.Name), keyword) {
			out = append(out, q)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// CanonicalSchema maps every field to a column of the same name. Adapters
// that already hold canonical values (archives, typed SDKs) emit rows keyed
// this way.
func CanonicalSchema() Schema {
	fields := []Field{
		FieldCode, FieldName, FieldLatest, FieldChangeAmount, FieldChangeRate,
		FieldOpen, FieldHigh, FieldLow, FieldClose, FieldPrevClose, FieldVolume,
		FieldAmount, FieldAmplitude, FieldTurnover, FieldPE, FieldPB,
		FieldTotalCap, FieldCirculatedCap, FieldDate,
	}
	s := make(Schema, len(fields))
	for _, f := range fields {
		s[f] = []string{string(f)}
	}
	return s
}

// QuoteRow renders q as a canonical row.
func QuoteRow(q domain.Quote) Row {
	return Row{
		string(FieldCode):          q.Code,
		string(FieldName):          q.Name,
		string(FieldLatest):        q.Latest,
		string(FieldChangeAmount):  q.ChangeAmount,
		string(FieldChangeRate):    q.ChangeRate,
		string(FieldOpen):          q.Open,
		string(FieldHigh):          q.High,
		string(FieldLow):           q.Low,
		string(FieldPrevClose):     q.PrevClose,
		string(FieldVolume):        q.Volume,
		string(FieldAmount):        q.Amount,
		string(FieldAmplitude):     q.Amplitude,
		string(FieldTurnover):      q.Turnover,
		string(FieldPE):            q.PE,
		string(FieldPB):            q.PB,
		string(FieldTotalCap):      q.TotalCap,
		string(FieldCirculatedCap): q.CirculatedCap,
	}
}

// BarRow renders b as a canonical row.
func BarRow(b domain.Bar) Row {
	return Row{
		string(FieldDate):       b.Date,
		string(FieldOpen):       b.Open,
		string(FieldHigh):       b.High,
		string(FieldLow):        b.Low,
		string(FieldClose):      b.Close,
		string(FieldVolume):     b.Volume,
		string(FieldAmount):     b.Amount,
		string(FieldChangeRate): b.PctChg,
		string(FieldTurnover):   b.Turnover,
	}
}
