package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fundquant/internal/domain"
	"fundquant/internal/store"
)

var _ Gatherer = (*SnapshotGatherer)(nil)

// Pruner trims old snapshots from an archive.
type Pruner interface {
	Prune(ctx context.Context, dataset domain.Dataset, keep int) (int64, error)
}

// SnapshotGatherer archives the current snapshot of each dataset.
type SnapshotGatherer struct {
	source   SnapshotSource
	store    store.SnapshotStore
	pruner   Pruner // optional
	datasets []domain.Dataset
	keep     int
	log      *slog.Logger
}

// NewSnapshotGatherer creates a SnapshotGatherer. When pruner is non-nil and
// keep > 0, only the newest keep snapshots per dataset are retained.
func NewSnapshotGatherer(source SnapshotSource, s store.SnapshotStore, pruner Pruner, datasets []domain.Dataset, keep int, log *slog.Logger) *SnapshotGatherer {
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotGatherer{
		source:   source,
		store:    s,
		pruner:   pruner,
		datasets: datasets,
		keep:     keep,
		log:      log.With("gatherer", "snapshot"),
	}
}

// Name returns the gatherer identifier.
func (g *SnapshotGatherer) Name() string { return "snapshot" }

// Run archives every dataset. A dataset that cannot be fetched is logged and
// skipped; the returned error joins all failures.
func (g *SnapshotGatherer) Run(ctx context.Context) error {
	var errs []error
	for _, ds := range g.datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.archive(ctx, ds); err != nil {
			g.log.Error("snapshot archive failed", "dataset", ds, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ds, err))
		}
	}
	return errors.Join(errs...)
}

func (g *SnapshotGatherer) archive(ctx context.Context, ds domain.Dataset) error {
	snap, err := g.source.Snapshot(ctx, ds)
	if err != nil {
		return err
	}
	if !archivable(snap) {
		g.log.Warn("snapshot not archived", "dataset", ds, "source", snap.Source,
			"stale", snap.Stale, "rows", snap.Len())
		return nil
	}
	if err := g.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	g.log.Info("snapshot archived", "dataset", ds, "source", snap.Source, "rows", snap.Len())

	if g.pruner != nil && g.keep > 0 {
		n, err := g.pruner.Prune(ctx, ds, g.keep)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}
		if n > 0 {
			g.log.Info("old snapshots pruned", "dataset", ds, "removed", n)
		}
	}
	return nil
}
