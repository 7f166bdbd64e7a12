package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"fundquant/internal/domain"
	"fundquant/internal/quote"
	"fundquant/internal/store"
)

var cst = time.FixedZone("CST", 8*3600)

func TestEastMoneySnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fs"); got != eastMoneyFilters[domain.DatasetLOF] {
			t.Errorf("fs = %q, want LOF filter", got)
		}
		fmt.Fprint(w, `{"data":{"total":2,"diff":[
			{"f12":"161226","f14":"国投白银LOF","f2":1.234,"f3":2.5,"f4":0.03,"f5":120000,"f6":"1.5e7","f9":"-","f17":1.2,"f18":1.204},
			{"f12":"160216","f14":"国泰商品","f2":"-","f3":"-"}
		]}}`)
	}))
	defer srv.Close()

	em := NewEastMoney(srv.URL, srv.URL, nil)
	tbl, err := em.Snapshot(context.Background(), domain.DatasetLOF)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	quotes := quote.NormalizeQuotes(tbl, 0)
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}
	q := quotes[0]
	if q.Code != "161226" || q.Latest != 1.234 || q.ChangeRate != 2.5 || q.Amount != 1.5e7 || q.PrevClose != 1.204 {
		t.Errorf("quote = %+v", q)
	}
	if q.PE != 0 {
		t.Errorf("PE = %v, want 0 for \"-\"", q.PE)
	}
	if quotes[1].Latest != 0 {
		t.Errorf("missing latest = %v, want 0", quotes[1].Latest)
	}
}

func TestEastMoneyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("secid") {
		case "0.161226":
			if q.Get("beg") != "20240101" || q.Get("end") != "20240131" {
				t.Errorf("range = %s..%s", q.Get("beg"), q.Get("end"))
			}
			fmt.Fprint(w, `{"data":{"code":"161226","klines":[
				"2024-01-02,1.200,1.210,1.220,1.190,1000,1210.0,2.5,0.83,0.01,0.4",
				"2024-01-03,1.210,1.240,1.250,1.200,2000,2480.0,4.1,2.48,0.03,0.9"
			]}}`)
		default:
			fmt.Fprint(w, `{"data":null}`)
		}
	}))
	defer srv.Close()

	em := NewEastMoney(srv.URL, srv.URL, nil)
	req := HistoryRequest{
		Code:   "161226",
		Market: domain.MarketCN,
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, cst),
		End:    time.Date(2024, 1, 31, 0, 0, 0, 0, cst),
	}
	tbl, err := em.History(context.Background(), req)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	bars := quote.NormalizeBars(tbl, "161226", cst, 0)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	b := bars[1]
	if b.Open != 1.21 || b.Close != 1.24 || b.High != 1.25 || b.Low != 1.2 || b.PctChg != 2.48 || b.Turnover != 0.9 {
		t.Errorf("bar = %+v", b)
	}
	if want := time.Date(2024, 1, 3, 0, 0, 0, 0, cst); !b.Date.Equal(want) {
		t.Errorf("date = %v, want %v", b.Date, want)
	}

	req.Code = "999999"
	tbl, err = em.History(context.Background(), req)
	if err != nil {
		t.Fatalf("History(unknown): %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Errorf("unknown code returned %d rows, want 0", len(tbl.Rows))
	}

	req.Market = domain.MarketUS
	if _, err := em.History(context.Background(), req); !errors.Is(err, ErrUnsupported) {
		t.Errorf("US history error = %v, want ErrUnsupported", err)
	}
}

func TestEastMoneyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewEastMoney(srv.URL, srv.URL, nil).Snapshot(context.Background(), domain.DatasetStock)
	if err == nil {
		t.Fatal("Snapshot succeeded on 502")
	}
}

func TestSinaSnapshotPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		n := sinaPageSize
		if page == 2 {
			n = 3
		}
		w.Write([]byte("["))
		for i := 0; i < n; i++ {
			if i > 0 {
				w.Write([]byte(","))
			}
			fmt.Fprintf(w, `{"symbol":"sz16%04d","name":"LOF %d","trade":"1.%03d","changepercent":"0.5","settlement":"1.0"}`, page*1000+i, i, i)
		}
		w.Write([]byte("]"))
	}))
	defer srv.Close()

	tbl, err := NewSina(srv.URL, srv.URL, nil).Snapshot(context.Background(), domain.DatasetLOF)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	quotes := quote.NormalizeQuotes(tbl, 0)
	if len(quotes) != sinaPageSize+3 {
		t.Fatalf("got %d quotes, want %d", len(quotes), sinaPageSize+3)
	}
	if quotes[0].Code != "161000" {
		t.Errorf("code = %q, want prefix stripped 161000", quotes[0].Code)
	}
	if quotes[1].Latest != 1.001 {
		t.Errorf("latest = %v, want 1.001", quotes[1].Latest)
	}
}

func TestSinaHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sym := r.URL.Query().Get("symbol"); sym != "sh501018" {
			t.Errorf("symbol = %q, want sh501018", sym)
		}
		if n := r.URL.Query().Get("datalen"); n != "60" {
			t.Errorf("datalen = %q, want 60", n)
		}
		fmt.Fprint(w, `[{"day":"2024-01-02","open":"1.000","high":"1.050","low":"0.990","close":"1.000","volume":"100"},
			{"day":"2024-01-03","open":"1.000","high":"1.100","low":"1.000","close":"1.100","volume":"200"}]`)
	}))
	defer srv.Close()

	tbl, err := NewSina(srv.URL, srv.URL, nil).History(context.Background(), HistoryRequest{Code: "501018", Limit: 60})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	bars := quote.NormalizeBars(tbl, "501018", cst, 0)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if pct := bars[1].PctChg; pct < 9.999 || pct > 10.001 {
		t.Errorf("derived PctChg = %v, want 10", pct)
	}
}

func TestExchangePrefixes(t *testing.T) {
	tests := []struct {
		code, secid, sina string
	}{
		{"161226", "0.161226", "sz161226"},
		{"501018", "1.501018", "sh501018"},
		{"600519", "1.600519", "sh600519"},
		{"sz000001", "0.000001", "sz000001"},
	}
	for _, tt := range tests {
		if got := eastMoneySecID(tt.code); got != tt.secid {
			t.Errorf("eastMoneySecID(%q) = %q, want %q", tt.code, got, tt.secid)
		}
		if got := sinaSymbol(tt.code); got != tt.sina {
			t.Errorf("sinaSymbol(%q) = %q, want %q", tt.code, got, tt.sina)
		}
	}
}

func TestLocalProvider(t *testing.T) {
	dir := t.TempDir()
	snaps, err := store.NewSQLiteStore(filepath.Join(dir, "fundquant.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer snaps.Close()
	bars := store.NewParquetStore(dir)
	ctx := context.Background()

	local := NewLocal(snaps, bars, 0)
	if _, err := local.Snapshot(ctx, domain.DatasetLOF); !errors.Is(err, store.ErrNoSnapshot) {
		t.Fatalf("empty archive error = %v, want ErrNoSnapshot", err)
	}

	fetched := time.Date(2024, 6, 3, 15, 0, 0, 0, cst)
	if err := snaps.SaveSnapshot(ctx, &domain.Snapshot{
		Dataset: domain.DatasetLOF, Source: "eastmoney", FetchedAt: fetched,
		Quotes: []domain.Quote{{Code: "161226", Name: "Silver", Latest: 1.3, PB: 1.1}},
	}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	tbl, err := local.Snapshot(ctx, domain.DatasetLOF)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	quotes := quote.NormalizeQuotes(tbl, 0)
	if len(quotes) != 1 || quotes[0].Latest != 1.3 || quotes[0].PB != 1.1 {
		t.Errorf("quotes = %+v", quotes)
	}

	local.maxAge = time.Hour
	local.now = func() time.Time { return fetched.Add(2 * time.Hour) }
	if _, err := local.Snapshot(ctx, domain.DatasetLOF); err == nil {
		t.Error("Snapshot accepted an archive older than maxAge")
	}

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, cst)
	if err := bars.WriteBars(ctx, domain.MarketCN, []domain.Bar{
		{Symbol: "161226", Date: day, Close: 1.3, PctChg: 1.5},
		{Symbol: "161226", Date: day.AddDate(0, 0, 1), Close: 1.32, PctChg: 1.54},
	}); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	tbl, err = local.History(ctx, HistoryRequest{Code: "sz161226", Start: day.AddDate(0, 0, -10), End: day.AddDate(0, 0, 10)})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	got := quote.NormalizeBars(tbl, "161226", cst, 0)
	if len(got) != 2 || got[1].Close != 1.32 || got[1].PctChg != 1.54 {
		t.Errorf("bars = %+v", got)
	}
}

func TestAlpacaRejectsCN(t *testing.T) {
	a := NewAlpaca("key", "secret", "", "", nil)
	if _, err := a.Snapshot(context.Background(), domain.DatasetLOF); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Snapshot error = %v, want ErrUnsupported", err)
	}
	if _, err := a.History(context.Background(), HistoryRequest{Code: "161226", Market: domain.MarketCN}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("History(cn) error = %v, want ErrUnsupported", err)
	}
}
