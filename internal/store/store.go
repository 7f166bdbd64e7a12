// Package store defines storage interfaces for archiving daily bars and
// quote snapshots, with Parquet and SQLite implementations. The archive feeds
// the local provider; the analytics core itself never persists anything.
package store

import (
	"context"
	"errors"
	"time"

	"fundquant/internal/domain"
)

// ErrNoSnapshot is returned when no snapshot has been archived for a dataset.
var ErrNoSnapshot = errors.New("store: no snapshot archived")

// BarStore persists and retrieves daily bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end],
	// oldest first.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// SnapshotStore persists full-market quote snapshots.
type SnapshotStore interface {
	// SaveSnapshot archives snap. Stale snapshots are archived like any other.
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// LatestSnapshot returns the most recently fetched snapshot for dataset,
	// or ErrNoSnapshot.
	LatestSnapshot(ctx context.Context, dataset domain.Dataset) (*domain.Snapshot, error)
}
