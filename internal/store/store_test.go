package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fundquant/internal/domain"
)

var shanghai = time.FixedZone("CST", 8*3600)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("161226", domain.MarketCN, 2024)

	wantBarPath := filepath.Join("/data", "cn", "daily", "161226", "2024.parquet")
	if bp != wantBarPath {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, wantBarPath)
	}
	if !strings.Contains(bp, "cn") {
		t.Errorf("barPath should contain market segment 'cn': %s", bp)
	}
	if up := ps.barPath("aapl", domain.MarketUS, 2023); !strings.Contains(up, "AAPL") {
		t.Errorf("barPath should upper-case the symbol: %s", up)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol: "161226",
			Date:   time.Date(2024, 1, 3, 0, 0, 0, 0, shanghai),
			Open:   1.20, High: 1.25, Low: 1.19, Close: 1.24,
			Volume: 1200000, Amount: 1480000, PctChg: 2.48, Turnover: 1.1,
		},
		{
			Symbol: "161226",
			Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, shanghai),
			Open:   1.18, High: 1.21, Low: 1.17, Close: 1.21,
			Volume: 900000, Amount: 1080000, PctChg: 0.83, Turnover: 0.8,
		},
	}

	if err := ps.WriteBars(ctx, domain.MarketCN, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, shanghai)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, shanghai)
	got, err := ps.ReadBars(ctx, "161226", domain.MarketCN, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	// Bars come back oldest first.
	if got[0].Close != 1.21 {
		t.Errorf("first bar Close = %v, want 1.21", got[0].Close)
	}
	if got[1].PctChg != 2.48 || got[1].Amount != 1480000 || got[1].Turnover != 1.1 {
		t.Errorf("second bar = %+v, want amount/pct_chg/turnover preserved", got[1])
	}
	if !got[1].Date.Equal(bars[0].Date) {
		t.Errorf("second bar date = %v, want %v", got[1].Date, bars[0].Date)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, shanghai)
	if err := ps.WriteBars(ctx, domain.MarketCN, []domain.Bar{
		{Symbol: "160216", Date: day, Open: 0.9, High: 0.92, Low: 0.89, Close: 0.91},
	}); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same day again plus a new one: the day is replaced, not duplicated.
	if err := ps.WriteBars(ctx, domain.MarketCN, []domain.Bar{
		{Symbol: "160216", Date: day, Open: 0.9, High: 0.93, Low: 0.89, Close: 0.92},
		{Symbol: "160216", Date: day.AddDate(0, 0, 3), Open: 0.92, High: 0.95, Low: 0.91, Close: 0.94},
	}); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "160216", domain.MarketCN, day.AddDate(0, -1, 0), day.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 0.92 {
		t.Errorf("merged bar Close = %v, want 0.92", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, shanghai)
	bars := []domain.Bar{
		{Symbol: "161226", Date: day, Close: 1.2},
		{Symbol: "160216", Date: day, Close: 0.9},
	}
	if err := ps.WriteBars(ctx, domain.MarketCN, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, domain.MarketCN)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("ListSymbols returned %d symbols, want 2", len(symbols))
	}
	if symbols[0] != "160216" || symbols[1] != "161226" {
		t.Errorf("ListSymbols = %v, want [160216 161226]", symbols)
	}

	none, err := ps.ListSymbols(ctx, domain.MarketUS)
	if err != nil || len(none) != 0 {
		t.Errorf("ListSymbols(us) = %v, %v; want empty", none, err)
	}
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return store
}

func TestSQLiteStoreOpen(t *testing.T) {
	store := openSQLite(t)

	// Verify the store is usable by pinging the database.
	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func TestSQLiteStoreSnapshots(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	if _, err := store.LatestSnapshot(ctx, domain.DatasetLOF); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("LatestSnapshot on empty db error = %v, want ErrNoSnapshot", err)
	}

	base := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	older := &domain.Snapshot{
		Dataset: domain.DatasetLOF, Source: "sina", FetchedAt: base,
		Quotes: []domain.Quote{{Code: "161226", Name: "old", Latest: 1.0}},
	}
	newer := &domain.Snapshot{
		Dataset: domain.DatasetLOF, Source: "eastmoney", FetchedAt: base.Add(5 * time.Minute),
		Quotes: []domain.Quote{
			{Code: "161226", Name: "Silver LOF", Latest: 1.234, ChangeRate: 2.5, PE: 0},
			{Code: "160216", Name: "Oil LOF", Latest: 0.9, TotalCap: 1e9},
		},
	}
	other := &domain.Snapshot{Dataset: domain.DatasetStock, Source: "eastmoney", FetchedAt: base.Add(time.Hour)}
	for _, s := range []*domain.Snapshot{older, newer, other} {
		if err := store.SaveSnapshot(ctx, s); err != nil {
			t.Fatalf("SaveSnapshot(%s/%s): %v", s.Dataset, s.Source, err)
		}
	}

	got, err := store.LatestSnapshot(ctx, domain.DatasetLOF)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got.Source != "eastmoney" || !got.FetchedAt.Equal(newer.FetchedAt) {
		t.Errorf("LatestSnapshot = %s at %v, want eastmoney at %v", got.Source, got.FetchedAt, newer.FetchedAt)
	}
	if len(got.Quotes) != 2 {
		t.Fatalf("LatestSnapshot has %d quotes, want 2", len(got.Quotes))
	}
	if got.Quotes[0] != newer.Quotes[0] || got.Quotes[1] != newer.Quotes[1] {
		t.Errorf("quotes = %+v, want %+v", got.Quotes, newer.Quotes)
	}

	n, err := store.Prune(ctx, domain.DatasetLOF, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d snapshots, want 1", n)
	}
	if got, err := store.LatestSnapshot(ctx, domain.DatasetLOF); err != nil || got.Source != "eastmoney" {
		t.Errorf("LatestSnapshot after prune = %v, %v", got, err)
	}
}
