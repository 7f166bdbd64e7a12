package signal

import (
	"fmt"
	"strconv"
	"strings"

	"fundquant/internal/domain"
	"fundquant/internal/indicator"
	"fundquant/internal/perf"
	"fundquant/internal/quote"
	"fundquant/internal/strategy"
)

// Input gathers the already computed outputs a report is rendered from.
// Any field may be nil or empty; missing sections are left out and absent
// values print as N/A.
type Input struct {
	Quote      *domain.Quote
	Series     domain.Series
	Indicators *indicator.Set
	Metrics    *perf.Metrics
	Backtests  []*strategy.Result
}

// historyRows is how many recent bars the report lists.
const historyRows = 10

// Summarize scores in and renders the report text.
func Summarize(in Input, cfg Config) (Score, string, error) {
	sc, err := Evaluate(in.Indicators, in.Backtests, cfg)
	if err != nil {
		return Score{}, "", err
	}
	return sc, Report(in, sc), nil
}

// Report renders a plain-text report. It formats values only.
func Report(in Input, sc Score) string {
	var b strings.Builder

	title := ""
	if in.Quote != nil {
		title = fmt.Sprintf("%s %s", in.Quote.Code, in.Quote.Name)
	} else if in.Indicators != nil {
		title = in.Indicators.Symbol
	}
	fmt.Fprintf(&b, "== %s ==\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Signal: %s (score %+.2f)\n", sc.Label, sc.Value)
	for _, c := range sc.Components {
		fmt.Fprintf(&b, "  - %-24s %+.2f x %.2f = %+.2f\n", c.Name, c.Raw, c.Weight, c.Contribution)
	}

	if q := in.Quote; q != nil {
		b.WriteString("\nQuote\n")
		fmt.Fprintf(&b, "  latest %.4f  change %+.4f (%+.2f%%)\n", q.Latest, q.ChangeAmount, q.ChangeRate)
		fmt.Fprintf(&b, "  open %.4f  high %.4f  low %.4f  prev close %.4f\n", q.Open, q.High, q.Low, q.PrevClose)
		fmt.Fprintf(&b, "  volume %.0f  amount %.2f  turnover %.2f%%\n", q.Volume, q.Amount, q.Turnover)
	}

	if n := in.Series.Len(); n > 0 {
		b.WriteString("\nRecent history\n")
		from := n - historyRows
		if from < 0 {
			from = 0
		}
		for i := from; i < n; i++ {
			bar := in.Series.Bar(i)
			fmt.Fprintf(&b, "  %s  close %.4f  change %+.2f%%\n", bar.Date.Format("2006-01-02"), bar.Close, bar.PctChg)
		}
	}

	if set := in.Indicators; set != nil {
		writeIndicators(&b, set)
	}
	if m := in.Metrics; m != nil {
		b.WriteString("\nPerformance\n")
		writeMetrics(&b, m, "  ")
	}
	for _, r := range in.Backtests {
		if r != nil {
			writeBacktest(&b, r)
		}
	}
	return b.String()
}

func writeIndicators(b *strings.Builder, set *indicator.Set) {
	b.WriteString("\nTechnical indicators\n")
	price := domain.None
	if set.Bars > 0 {
		price = domain.Some(set.Price)
	}
	fmt.Fprintf(b, "  price %s  trend %s\n", price.Format(4), set.Trend)
	for _, w := range set.MAWindows() {
		fmt.Fprintf(b, "  %-12s %s\n", maName(w), set.MA[w].Format(4))
	}
	for _, d := range set.ReturnHorizons() {
		fmt.Fprintf(b, "  %-12s %s%%\n", fmt.Sprintf("return %dd", d), set.Returns[d].Format(2))
	}
	fmt.Fprintf(b, "  %-12s %s\n", "volatility", set.Volatility.Format(4))
	fmt.Fprintf(b, "  %-12s %s / %s\n", "high / low", set.High.Format(4), set.Low.Format(4))
	fmt.Fprintf(b, "  %-12s %s / %s / %s\n", "macd", set.MACD.Line.Format(4), set.MACD.Signal.Format(4), set.MACD.Hist.Format(4))
	fmt.Fprintf(b, "  %-12s %s\n", "rsi", set.RSI.Format(2))
	fmt.Fprintf(b, "  %-12s %s / %s / %s\n", "kdj", set.KDJ.K.Format(2), set.KDJ.D.Format(2), set.KDJ.J.Format(2))
	fmt.Fprintf(b, "  %-12s %s / %s / %s\n", "bollinger", set.Boll.Upper.Format(4), set.Boll.Middle.Format(4), set.Boll.Lower.Format(4))
}

func writeMetrics(b *strings.Builder, m *perf.Metrics, indent string) {
	fmt.Fprintf(b, "%sobservations %d\n", indent, m.Observations)
	fmt.Fprintf(b, "%stotal return %s  annual return %s  annual volatility %s\n",
		indent, pct(m.TotalReturn), pct(m.AnnualReturn), pct(m.AnnualVolatility))
	fmt.Fprintf(b, "%ssharpe %s  sortino %s  calmar %s\n",
		indent, m.Sharpe.Format(2), m.Sortino.Format(2), m.Calmar.Format(2))
	dd := m.MaxDrawdown
	span := ""
	if dd.Value.Valid && dd.Value.V < 0 {
		span = fmt.Sprintf(" (%s -> %s)", dd.Peak.Format("2006-01-02"), dd.Trough.Format("2006-01-02"))
	}
	fmt.Fprintf(b, "%smax drawdown %s%s\n", indent, pct(dd.Value), span)
	fmt.Fprintf(b, "%sVaR %.0f%% %s\n", indent, m.VaRConfidence*100, pct(m.VaR))
}

func writeBacktest(b *strings.Builder, r *strategy.Result) {
	fmt.Fprintf(b, "\nBacktest %s\n", r.Strategy)
	win := "no trades"
	if r.WinRate.Valid {
		win = fixed(r.WinRate.V*100, 1) + "%"
	}
	fmt.Fprintf(b, "  trades %d  win rate %s  final equity %.4f\n", r.NumTrades, win, r.FinalEquity())
	for _, t := range r.Trades {
		note := ""
		if t.OpenAtEnd {
			note = " (open)"
		}
		ret := fixed(t.Return*100, 2)
		if t.Return >= 0 {
			ret = "+" + ret
		}
		fmt.Fprintf(b, "  %s %.4f -> %s %.4f  %s%%%s\n",
			t.EntryDate.Format("2006-01-02"), t.EntryPrice,
			t.ExitDate.Format("2006-01-02"), t.ExitPrice, ret, note)
	}
	writeMetrics(b, &r.Metrics, "  ")
}

func pct(n domain.Num) string {
	if !n.Valid {
		return n.Format(2)
	}
	return fixed(n.V*100, 2) + "%"
}

// fixed rounds half away from zero in decimal, so 0.125 prints as 0.13
// rather than the 0.12 strconv gives for an exact binary half.
func fixed(v float64, places int32) string {
	return strconv.FormatFloat(quote.Round(v, places), 'f', int(places), 64)
}

func maName(w int) string { return fmt.Sprintf("ma%d", w) }
