// Package analysis ties the data layer to the analytics engines: it fetches
// a quote and bar history, computes indicators and metrics, runs backtests
// and scores the result into a report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fundquant/internal/domain"
	"fundquant/internal/indicator"
	"fundquant/internal/perf"
	"fundquant/internal/signal"
	"fundquant/internal/strategy"
)

// DefaultLookbackDays is used when a request leaves LookbackDays zero.
const DefaultLookbackDays = 120

// Fetcher is the slice of the fetch service the analysis needs.
type Fetcher interface {
	Lookup(ctx context.Context, ds domain.Dataset, code string) (domain.Quote, error)
	History(ctx context.Context, code string, lookbackDays int) (domain.Series, error)
}

// Config carries the analytics parameter sections.
type Config struct {
	Indicators indicator.Params
	Metrics    perf.Params
	Backtest   strategy.Params
	Signal     signal.Config
	Strategies []strategy.Kind // run when a request names none
}

// Request selects the instrument and the strategies to backtest.
type Request struct {
	Dataset      domain.Dataset  `json:"dataset,omitempty"`
	Code         string          `json:"code"`
	LookbackDays int             `json:"lookbackDays,omitempty"`
	Strategies   []strategy.Kind `json:"strategies,omitempty"`
}

// Report is the full analysis of one instrument.
type Report struct {
	Code        string             `json:"code"`
	Dataset     domain.Dataset     `json:"dataset,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Quote       *domain.Quote      `json:"quote,omitempty"`
	Bars        []domain.Bar       `json:"bars"`
	Indicators  *indicator.Set     `json:"indicators"`
	Metrics     perf.Metrics       `json:"metrics"`
	Backtests   []*strategy.Result `json:"backtests"`
	Score       signal.Score       `json:"score"`
	Text        string             `json:"text"`

	Series domain.Series `json:"-"`
}

// Service runs analyses. It is safe for concurrent use.
type Service struct {
	fetcher    Fetcher
	registry   *strategy.Registry
	backtester *strategy.Backtester
	cfg        Config
	log        *slog.Logger
	now        func() time.Time
}

// New creates a Service after validating every parameter section.
func New(f Fetcher, registry *strategy.Registry, cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Indicators.Validate(); err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := cfg.Backtest.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if err := cfg.Signal.Validate(); err != nil {
		return nil, fmt.Errorf("signal: %w", err)
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = registry.List()
	}
	for _, k := range cfg.Strategies {
		if !registry.Has(k) {
			return nil, domain.InvalidParam("strategies", "unknown strategy %q", k)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher:    f,
		registry:   registry,
		backtester: strategy.NewBacktester(registry, cfg.Metrics),
		cfg:        cfg,
		log:        logger.With("component", "analysis"),
		now:        time.Now,
	}, nil
}

// Strategies lists the registered strategy kinds.
func (s *Service) Strategies() []strategy.Kind { return s.registry.List() }

// Analyze produces the full report for req. A failed quote lookup only drops
// the quote section; a failed history fetch fails the analysis.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, domain.InvalidParam("code", "must not be empty")
	}
	days := req.LookbackDays
	if days == 0 {
		days = DefaultLookbackDays
	}
	if days < 0 {
		return nil, domain.InvalidParam("lookback_days", "must be positive, got %d", days)
	}
	kinds := req.Strategies
	if len(kinds) == 0 {
		kinds = s.cfg.Strategies
	}
	for _, k := range kinds {
		if !s.registry.Has(k) {
			return nil, domain.InvalidParam("strategy", "unknown strategy %q", k)
		}
	}

	rep := &Report{Code: code, Dataset: req.Dataset, GeneratedAt: s.now()}

	if req.Dataset != "" {
		q, err := s.fetcher.Lookup(ctx, req.Dataset, code)
		switch {
		case err == nil:
			rep.Quote = &q
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			s.log.Warn("quote lookup failed, continuing without quote",
				"code", code, "dataset", req.Dataset, "error", err)
		}
	}

	series, err := s.fetcher.History(ctx, code, days)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", code, err)
	}
	rep.Series = series
	rep.Bars = series.Bars()

	set, err := indicator.Compute(series, s.cfg.Indicators)
	if err != nil {
		return nil, err
	}
	rep.Indicators = set

	rep.Metrics, err = perf.Compute(series.Returns(), s.cfg.Metrics)
	if err != nil {
		return nil, err
	}

	rep.Backtests, err = s.runBacktests(ctx, series, kinds, s.cfg.Backtest)
	if err != nil {
		return nil, err
	}

	rep.Score, rep.Text, err = signal.Summarize(signal.Input{
		Quote:      rep.Quote,
		Series:     series,
		Indicators: set,
		Metrics:    &rep.Metrics,
		Backtests:  rep.Backtests,
	}, s.cfg.Signal)
	if err != nil {
		return nil, err
	}

	s.log.Info("analysis complete", "code", code, "bars", series.Len(),
		"label", rep.Score.Label, "score", rep.Score.Value)
	return rep, nil
}

// runBacktests replays series through each kind concurrently. Results keep
// the order of kinds.
func (s *Service) runBacktests(ctx context.Context, series domain.Series, kinds []strategy.Kind, p strategy.Params) ([]*strategy.Result, error) {
	results := make([]*strategy.Result, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.backtester.Run(series, k, p)
			if err != nil {
				return fmt.Errorf("backtest %s: %w", k, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Backtest runs a single strategy over code's history. A nil p selects the
// configured parameters.
func (s *Service) Backtest(ctx context.Context, code string, lookbackDays int, kind strategy.Kind, p *strategy.Params) (*strategy.Result, error) {
	if !s.registry.Has(kind) {
		return nil, domain.InvalidParam("strategy", "unknown strategy %q", kind)
	}
	params := s.cfg.Backtest
	if p != nil {
		params = *p
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if lookbackDays == 0 {
		lookbackDays = DefaultLookbackDays
	}
	series, err := s.fetcher.History(ctx, strings.TrimSpace(code), lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", code, err)
	}
	return s.backtester.Run(series, kind, params)
}
