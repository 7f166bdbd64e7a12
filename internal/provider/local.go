package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundquant/internal/domain"
	"fundquant/internal/quote"
	"fundquant/internal/store"
)

var _ Provider = (*Local)(nil)

// Local serves snapshots and bars archived by fundquant-gather. It is the
// last resort when the network providers are down. Either store may be nil.
type Local struct {
	snapshots store.SnapshotStore
	bars      store.BarStore
	maxAge    time.Duration
	now       func() time.Time
}

// NewLocal creates a Local provider. Archived snapshots older than maxAge are
// refused; maxAge <= 0 accepts any age.
func NewLocal(snapshots store.SnapshotStore, bars store.BarStore, maxAge time.Duration) *Local {
	return &Local{snapshots: snapshots, bars: bars, maxAge: maxAge, now: time.Now}
}

func (l *Local) Name() string { return "local" }

// Snapshot returns the newest archived snapshot for dataset.
func (l *Local) Snapshot(ctx context.Context, dataset domain.Dataset) (*quote.RawTable, error) {
	if l.snapshots == nil {
		return nil, fmt.Errorf("local snapshots: %w", ErrUnsupported)
	}
	snap, err := l.snapshots.LatestSnapshot(ctx, dataset)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil, fmt.Errorf("local %s: %w", dataset, err)
	}
	if err != nil {
		return nil, err
	}
	if age := l.now().Sub(snap.FetchedAt); l.maxAge > 0 && age > l.maxAge {
		return nil, fmt.Errorf("local %s: archive is %s old", dataset, age.Round(time.Minute))
	}
	t := &quote.RawTable{Source: l.Name(), Schema: quote.CanonicalSchema(), Rows: make([]quote.Row, 0, len(snap.Quotes))}
	for _, q := range snap.Quotes {
		t.Rows = append(t.Rows, quote.QuoteRow(q))
	}
	return t, nil
}

// History reads archived bars in [Start, End].
func (l *Local) History(ctx context.Context, req HistoryRequest) (*quote.RawTable, error) {
	if l.bars == nil {
		return nil, fmt.Errorf("local bars: %w", ErrUnsupported)
	}
	market := req.Market
	if market == "" {
		market = domain.MarketCN
	}
	bars, err := l.bars.ReadBars(ctx, quote.StripExchangePrefix(req.Code), market, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	t := &quote.RawTable{Source: l.Name(), Schema: quote.CanonicalSchema(), Rows: make([]quote.Row, 0, len(bars))}
	for _, b := range bars {
		t.Rows = append(t.Rows, quote.BarRow(b))
	}
	return t, nil
}
