package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fundquant/internal/domain"
	"fundquant/internal/fetch"
	"fundquant/internal/store"
	"fundquant/internal/util"
)

var _ Gatherer = (*HistoryGatherer)(nil)

// HistoryConfig controls a history run.
type HistoryConfig struct {
	Symbols        []string // always gathered
	SymbolsFromLOF bool     // also gather every code in the LOF snapshot
	LookbackDays   int
	MaxWorkers     int
	ProgressDir    string
}

// HistoryGatherer fetches daily bars for a symbol list and writes them to a
// BarStore. A run is skipped when the same trading day already completed.
type HistoryGatherer struct {
	history   HistorySource
	snapshots SnapshotSource // optional, for SymbolsFromLOF
	store     store.BarStore
	cfg       HistoryConfig
	calendar  *util.TradingCalendar
	log       *slog.Logger
	now       func() time.Time
}

// NewHistoryGatherer creates a HistoryGatherer.
func NewHistoryGatherer(history HistorySource, snapshots SnapshotSource, s store.BarStore, cfg HistoryConfig, log *slog.Logger) *HistoryGatherer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	return &HistoryGatherer{
		history:   history,
		snapshots: snapshots,
		store:     s,
		cfg:       cfg,
		calendar:  util.NewTradingCalendar(domain.MarketCN),
		log:       log.With("gatherer", "history"),
		now:       time.Now,
	}
}

// Name returns the gatherer identifier.
func (g *HistoryGatherer) Name() string { return "history" }

// Run gathers every pending symbol with a bounded worker pool.
func (g *HistoryGatherer) Run(ctx context.Context) error {
	day := g.now().In(g.calendar.Location()).Format(time.DateOnly)

	tracker, err := newProgressTracker(filepath.Join(g.cfg.ProgressDir, "history"))
	if err != nil {
		return err
	}
	defer tracker.Close()

	last := tracker.LastCompleted()
	if last == day {
		g.log.Info("already completed", "day", day)
		return nil
	}
	if last != "" {
		if err := tracker.Reset(); err != nil {
			return fmt.Errorf("resetting progress: %w", err)
		}
	}

	symbols, err := g.symbols(ctx)
	if err != nil {
		return err
	}
	var pending []string
	for _, code := range symbols {
		if !tracker.IsEmpty(code) {
			pending = append(pending, code)
		}
	}
	g.log.Info("starting history run", "day", day, "symbols", len(symbols), "pending", len(pending))

	codeCh := make(chan string, len(pending))
	for _, code := range pending {
		codeCh <- code
	}
	close(codeCh)

	var (
		wg       sync.WaitGroup
		written  atomic.Int64
		empty    atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)
	workers := min(g.cfg.MaxWorkers, max(len(pending), 1))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range codeCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.gatherOne(ctx, code)
				switch {
				case errors.Is(err, domain.ErrNotFound):
					empty.Add(1)
					if err := tracker.MarkEmpty(code); err != nil {
						g.log.Error("marking empty failed", "code", code, "error", err)
					}
				case err != nil:
					failed.Add(1)
					g.log.Error("history fetch failed", "code", code, "error", err)
				default:
					written.Add(int64(n))
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed.Load() > 0 {
		return fmt.Errorf("history run: %d of %d symbols failed: %w", failed.Load(), len(pending), domain.ErrDataUnavailable)
	}
	if err := tracker.MarkCompleted(day); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	g.log.Info("history run complete",
		"bars", written.Load(),
		"empty", empty.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

func (g *HistoryGatherer) gatherOne(ctx context.Context, code string) (int, error) {
	s, err := g.history.History(ctx, code, g.cfg.LookbackDays)
	if err != nil {
		return 0, err
	}
	bars := s.Bars()
	if err := g.store.WriteBars(ctx, fetch.MarketOf(code), bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	return len(bars), nil
}

// symbols returns the configured codes plus, optionally, the LOF universe,
// deduplicated and sorted.
func (g *HistoryGatherer) symbols(ctx context.Context) ([]string, error) {
	set := make(map[string]struct{}, len(g.cfg.Symbols))
	for _, c := range g.cfg.Symbols {
		set[c] = struct{}{}
	}
	if g.cfg.SymbolsFromLOF && g.snapshots != nil {
		snap, err := g.snapshots.Snapshot(ctx, domain.DatasetLOF)
		if err != nil {
			return nil, fmt.Errorf("listing LOF codes: %w", err)
		}
		for _, q := range snap.Quotes {
			if q.Code != "" {
				set[q.Code] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}
