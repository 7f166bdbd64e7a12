// Package gather archives live market data for offline use: full-market
// quote snapshots go to SQLite and daily bar histories to Parquet, which is
// what the local provider later serves from.
package gather

import (
	"context"

	"fundquant/internal/domain"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// SnapshotSource yields full-market snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context, ds domain.Dataset) (*domain.Snapshot, error)
}

// HistorySource yields daily bar histories.
type HistorySource interface {
	History(ctx context.Context, code string, lookbackDays int) (domain.Series, error)
}

// archivable reports whether snap came from a live provider. Stale copies
// and snapshots replayed from the archive itself are skipped.
func archivable(snap *domain.Snapshot) bool {
	return snap != nil && !snap.Stale && snap.Source != "local" && snap.Len() > 0
}
