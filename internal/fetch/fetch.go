// Package fetch is the resilient data layer: a TTL snapshot cache per
// dataset with single-flight refresh, bounded per-provider retries with a
// fixed delay, provider fallback, circuit breaking, and stale-snapshot
// fallback when every provider fails.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/sony/gobreaker"

	"fundquant/internal/domain"
	"fundquant/internal/provider"
	"fundquant/internal/quote"
	"fundquant/internal/util"
)

// DatasetConfig is the cache and timeout policy of one dataset.
type DatasetConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"` // per attempt
}

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// Config is the fetch policy.
type Config struct {
	Datasets       map[domain.Dataset]DatasetConfig `yaml:"datasets"`
	HistoryTimeout time.Duration                    `yaml:"history_timeout"`
	MaxAttempts    int                              `yaml:"max_attempts"` // per provider
	RetryDelay     time.Duration                    `yaml:"retry_delay"`
	Breaker        BreakerConfig                    `yaml:"breaker"`
	SearchLimit    int                              `yaml:"search_limit"`
	FloatDefault   float64                          `yaml:"float_default"`
}

// DefaultConfig returns LOF 5 min / 120 s, stock 10 min / 60 s, history
// 60 s, three attempts per provider with a fixed 2 s delay.
func DefaultConfig() Config {
	return Config{
		Datasets: map[domain.Dataset]DatasetConfig{
			domain.DatasetLOF:   {TTL: 5 * time.Minute, Timeout: 120 * time.Second},
			domain.DatasetStock: {TTL: 10 * time.Minute, Timeout: 60 * time.Second},
		},
		HistoryTimeout: 60 * time.Second,
		MaxAttempts:    3,
		RetryDelay:     2 * time.Second,
		Breaker:        BreakerConfig{Enabled: true, ConsecutiveFailures: 5, OpenTimeout: time.Minute},
		SearchLimit:    10,
	}
}

func (c Config) dataset(ds domain.Dataset) (DatasetConfig, error) {
	dc, ok := c.Datasets[ds]
	if !ok {
		return DatasetConfig{}, domain.InvalidParam("dataset", "unknown dataset %q", ds)
	}
	return dc, nil
}

// Service serves snapshots, quote lookups and daily history from an ordered
// list of providers.
type Service struct {
	cfg       Config
	providers []provider.Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	cache     *Cache
	calendars map[domain.Market]*util.TradingCalendar
	metrics   *Metrics
	log       *slog.Logger
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithCache injects a shared or pre-seeded cache.
func WithCache(c *Cache) Option { return func(s *Service) { s.cache = c } }

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a Service that tries providers in order.
func New(cfg Config, providers []provider.Provider, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		providers: providers,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		calendars: map[domain.Market]*util.TradingCalendar{
			domain.MarketCN: util.NewTradingCalendar(domain.MarketCN),
			domain.MarketUS: util.NewTradingCalendar(domain.MarketUS),
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = NewCache()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "fetch")
	if cfg.Breaker.Enabled {
		for _, p := range providers {
			s.breakers[p.Name()] = newBreaker(p.Name(), cfg.Breaker)
		}
	}
	return s
}

func newBreaker(name string, bc BreakerConfig) *gobreaker.CircuitBreaker {
	failures := bc.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{Name: name}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	st.Interval = 0
	st.Timeout = bc.OpenTimeout
	// Unsupported requests and caller cancellation say nothing about the
	// provider's health.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, provider.ErrUnsupported) || errors.Is(err, context.Canceled)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Cache returns the cache the service reads and fills.
func (s *Service) Cache() *Cache { return s.cache }

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Snapshot returns the cached snapshot for ds while it is younger than the
// dataset TTL. Otherwise one refresh runs for all concurrent callers. When
// every provider fails the previous snapshot is returned marked Stale; with
// no previous snapshot the error wraps domain.ErrDataUnavailable.
func (s *Service) Snapshot(ctx context.Context, ds domain.Dataset) (*domain.Snapshot, error) {
	dc, err := s.cfg.dataset(ds)
	if err != nil {
		return nil, err
	}
	if snap := s.fresh(ds, dc.TTL); snap != nil {
		s.metrics.CacheRequests.WithLabelValues(string(ds), "hit").Inc()
		s.log.Debug("cache hit", "dataset", ds, "age", s.now().Sub(snap.FetchedAt).Round(time.Second))
		return snap, nil
	}

	// The refresh outlives any single caller so that a cancelled caller
	// does not fail the others waiting on it.
	ch := s.cache.flight.DoChan(string(ds), func() (any, error) {
		return s.refreshSnapshot(context.WithoutCancel(ctx), ds, dc)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.Snapshot), nil
	}
}

func (s *Service) fresh(ds domain.Dataset, ttl time.Duration) *domain.Snapshot {
	snap := s.cache.Load(ds)
	if snap == nil || s.now().Sub(snap.FetchedAt) >= ttl {
		return nil
	}
	return snap
}

func (s *Service) refreshSnapshot(ctx context.Context, ds domain.Dataset, dc DatasetConfig) (*domain.Snapshot, error) {
	// A flight that finished just before this one started may have filled
	// the slot already.
	if snap := s.fresh(ds, dc.TTL); snap != nil {
		s.metrics.CacheRequests.WithLabelValues(string(ds), "hit").Inc()
		return snap, nil
	}

	start := time.Now()
	defer func() {
		s.metrics.RefreshDuration.WithLabelValues("snapshot").Observe(time.Since(start).Seconds())
	}()

	var errs []error
	for i, p := range s.providers {
		if i > 0 {
			s.log.Info("switching provider", "dataset", ds, "provider", p.Name())
		}
		var tbl *quote.RawTable
		err := s.call(ctx, p, "snapshot", dc.Timeout, func(ctx context.Context) error {
			var err error
			tbl, err = p.Snapshot(ctx, ds)
			return err
		})
		if err == nil {
			quotes := quote.NormalizeQuotes(tbl, s.cfg.FloatDefault)
			if len(quotes) > 0 {
				snap := &domain.Snapshot{Dataset: ds, Source: p.Name(), FetchedAt: s.now(), Quotes: quotes}
				s.cache.Store(ds, snap)
				s.metrics.CacheRequests.WithLabelValues(string(ds), "refreshed").Inc()
				s.metrics.SnapshotAge.WithLabelValues(string(ds)).Set(0)
				s.log.Info("snapshot refreshed", "dataset", ds, "source", p.Name(), "rows", len(quotes))
				return snap, nil
			}
			err = fmt.Errorf("%s returned no usable rows", p.Name())
		}
		errs = append(errs, err)
	}
	cause := errors.Join(errs...)
	if cause == nil {
		cause = errors.New("no providers configured")
	}

	if prev := s.cache.Load(ds); prev != nil {
		age := s.now().Sub(prev.FetchedAt)
		s.metrics.CacheRequests.WithLabelValues(string(ds), "stale").Inc()
		s.metrics.SnapshotAge.WithLabelValues(string(ds)).Set(age.Seconds())
		s.log.Warn("all providers failed, serving stale snapshot",
			"dataset", ds, "source", prev.Source, "age", age.Round(time.Second), "error", cause)
		return prev.AsStale(), nil
	}
	s.metrics.CacheRequests.WithLabelValues(string(ds), "failed").Inc()
	return nil, fmt.Errorf("%w: dataset %s: %w", domain.ErrDataUnavailable, ds, cause)
}

// call runs fn against p with the retry policy and the provider's breaker.
// Each attempt is bounded by timeout. Unsupported operations and an open
// breaker skip the provider without further attempts.
func (s *Service) call(ctx context.Context, p provider.Provider, op string, timeout time.Duration, fn func(context.Context) error) error {
	policy := util.RetryPolicy{
		MaxAttempts:    s.cfg.MaxAttempts,
		Delay:          s.cfg.RetryDelay,
		AttemptTimeout: timeout,
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	cb := s.breakers[p.Name()]

	err := util.RetryWith(ctx, policy, func(ctx context.Context, attempt int) error {
		var err error
		if cb != nil {
			_, err = cb.Execute(func() (interface{}, error) { return nil, fn(ctx) })
		} else {
			err = fn(ctx)
		}
		switch {
		case err == nil:
			s.metrics.ProviderAttempts.WithLabelValues(p.Name(), op, "ok").Inc()
			return nil
		case errors.Is(err, provider.ErrUnsupported),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			s.metrics.ProviderAttempts.WithLabelValues(p.Name(), op, "skipped").Inc()
			return util.Permanent(err)
		}
		s.metrics.ProviderAttempts.WithLabelValues(p.Name(), op, "error").Inc()
		return &domain.ProviderError{Provider: p.Name(), Attempt: attempt, Err: err}
	}, func(attempt int, err error) {
		if errors.Is(err, provider.ErrUnsupported) {
			return
		}
		s.log.Warn("provider attempt failed",
			"provider", p.Name(), "op", op, "attempt", fmt.Sprintf("%d/%d", attempt, attempts), "error", err)
	})
	if err != nil && !errors.Is(err, domain.ErrProviderFailure) {
		err = &domain.ProviderError{Provider: p.Name(), Err: err}
	}
	return err
}

// ---------------------------------------------------------------------------
// Lookup, search and cache inspection
// ---------------------------------------------------------------------------

// Lookup returns the quote whose code matches exactly. An exchange prefix
// on code is ignored. Absence wraps domain.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, ds domain.Dataset, code string) (domain.Quote, error) {
	snap, err := s.Snapshot(ctx, ds)
	if err != nil {
		return domain.Quote{}, err
	}
	q, ok := quote.Find(snap.Quotes, quote.StripExchangePrefix(code))
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s in %s", domain.ErrNotFound, code, ds)
	}
	return q, nil
}

// Search returns up to limit quotes whose code or name contains keyword.
// limit <= 0 selects the configured limit.
func (s *Service) Search(ctx context.Context, ds domain.Dataset, keyword string, limit int) ([]domain.Quote, error) {
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	snap, err := s.Snapshot(ctx, ds)
	if err != nil {
		return nil, err
	}
	return quote.Search(snap.Quotes, keyword, limit), nil
}

// CacheInfo describes the cache slot of one dataset.
type CacheInfo struct {
	Dataset   domain.Dataset `json:"dataset"`
	Cached    bool           `json:"cached"`
	Source    string         `json:"source,omitempty"`
	FetchedAt time.Time      `json:"fetchedAt,omitempty"`
	Age       time.Duration  `json:"age"`
	TTL       time.Duration  `json:"ttl"`
	Rows      int            `json:"rows"`
	Expired   bool           `json:"expired"`
}

// CacheInfo reports the state of ds without touching the network.
func (s *Service) CacheInfo(ds domain.Dataset) (CacheInfo, error) {
	dc, err := s.cfg.dataset(ds)
	if err != nil {
		return CacheInfo{}, err
	}
	info := CacheInfo{Dataset: ds, TTL: dc.TTL}
	snap := s.cache.Load(ds)
	if snap == nil {
		return info, nil
	}
	info.Cached = true
	info.Source = snap.Source
	info.FetchedAt = snap.FetchedAt
	info.Age = s.now().Sub(snap.FetchedAt)
	info.Rows = snap.Len()
	info.Expired = info.Age >= dc.TTL
	return info, nil
}

// Clear drops the cached snapshot of ds, or of every dataset when ds is
// empty.
func (s *Service) Clear(ds domain.Dataset) {
	s.cache.Clear(ds)
	s.log.Info("cache cleared", "dataset", ds)
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// MarketOf guesses the market from an instrument code: numeric codes
// (optionally exchange-prefixed) are CN, anything else is US.
func MarketOf(code string) domain.Market {
	c := quote.StripExchangePrefix(code)
	if c == "" {
		return domain.MarketCN
	}
	for _, r := range c {
		if !unicode.IsDigit(r) {
			return domain.MarketUS
		}
	}
	return domain.MarketCN
}

// History returns the last lookbackDays daily bars of code, oldest first.
// History is not cached. Providers are tried in order with the same retry
// policy as snapshots; one that answers with no bars passes to the next.
// When providers answered but none had bars the error wraps
// domain.ErrNotFound; when none answered it wraps domain.ErrDataUnavailable.
func (s *Service) History(ctx context.Context, code string, lookbackDays int) (domain.Series, error) {
	if lookbackDays <= 0 {
		return domain.Series{}, domain.InvalidParam("lookback_days", "must be positive, got %d", lookbackDays)
	}
	market := MarketOf(code)
	cal := s.calendars[market]
	symbol := quote.StripExchangePrefix(code)
	if market == domain.MarketUS {
		symbol = strings.ToUpper(symbol)
	}
	start, end := cal.LookbackWindow(s.now(), lookbackDays)
	req := provider.HistoryRequest{Code: symbol, Market: market, Start: start, End: end, Limit: lookbackDays}

	began := time.Now()
	defer func() {
		s.metrics.RefreshDuration.WithLabelValues("history").Observe(time.Since(began).Seconds())
	}()

	var (
		errs     []error
		answered bool
	)
	for _, p := range s.providers {
		var tbl *quote.RawTable
		err := s.call(ctx, p, "history", s.cfg.HistoryTimeout, func(ctx context.Context) error {
			var err error
			tbl, err = p.History(ctx, req)
			return err
		})
		if errors.Is(err, provider.ErrUnsupported) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		answered = true

		bars := usableBars(quote.NormalizeBars(tbl, symbol, cal.Location(), s.cfg.FloatDefault), end)
		if len(bars) == 0 {
			s.log.Info("provider has no history", "provider", p.Name(), "code", symbol)
			continue
		}
		series, err := domain.SeriesFromUnordered(bars)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Debug("history loaded", "provider", p.Name(), "code", symbol, "bars", series.Len())
		return series.Tail(lookbackDays), nil
	}
	if answered {
		return domain.Series{}, fmt.Errorf("%w: no history for %s", domain.ErrNotFound, code)
	}
	cause := errors.Join(errs...)
	if cause == nil {
		cause = errors.New("no provider serves this market")
	}
	return domain.Series{}, fmt.Errorf("%w: history %s: %w", domain.ErrDataUnavailable, code, cause)
}

// usableBars drops rows with no close and rows dated after end.
func usableBars(bars []domain.Bar, end time.Time) []domain.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Close <= 0 || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
