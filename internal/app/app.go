// Package app assembles the fundquant services from a loaded configuration.
// Every binary builds its dependencies through New.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fundquant/internal/analysis"
	"fundquant/internal/config"
	"fundquant/internal/fetch"
	"fundquant/internal/provider"
	"fundquant/internal/store"
	"fundquant/internal/strategy/builtins"
	"fundquant/internal/util"
)

// App holds the wired services. Close releases the SQLite handle.
type App struct {
	Config    *config.Config
	Log       *slog.Logger
	Metrics   *prometheus.Registry
	Bars      *store.ParquetStore
	Snapshots *store.SQLiteStore
	Fetch     *fetch.Service
	Analysis  *analysis.Service
}

// New opens the archive stores, builds the providers in configured order and
// creates the fetch and analysis services.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite dir: %w", err)
	}
	snaps, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Storage.SQLitePath, err)
	}
	bars := store.NewParquetStore(cfg.Storage.DataDir)

	providers, err := Providers(cfg, snaps, bars, log)
	if err != nil {
		snaps.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	fs := fetch.New(cfg.Fetch, providers,
		fetch.WithLogger(log),
		fetch.WithMetrics(fetch.NewMetrics(reg)),
	)

	as, err := analysis.New(fs, builtins.NewRegistry(), analysis.Config{
		Indicators: cfg.Indicators,
		Metrics:    cfg.Metrics,
		Backtest:   cfg.Backtest,
		Signal:     cfg.Signal,
	}, log)
	if err != nil {
		snaps.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Metrics:   reg,
		Bars:      bars,
		Snapshots: snaps,
		Fetch:     fs,
		Analysis:  as,
	}, nil
}

// Close releases the stores.
func (a *App) Close() error {
	if a.Snapshots != nil {
		return a.Snapshots.Close()
	}
	return nil
}

// Providers builds the configured providers in order. Alpaca is skipped
// when no credentials are set.
func Providers(cfg *config.Config, snaps store.SnapshotStore, bars store.BarStore, log *slog.Logger) ([]provider.Provider, error) {
	var limiter *util.RateLimiter
	if cfg.Providers.RateLimitPerMin > 0 {
		limiter = util.NewRateLimiter(cfg.Providers.RateLimitPerMin)
	}

	var out []provider.Provider
	for _, name := range cfg.Providers.Order {
		switch name {
		case "eastmoney":
			e := cfg.Providers.EastMoney
			out = append(out, provider.NewEastMoney(e.ListURL, e.KlineURL, limiter))
		case "sina":
			s := cfg.Providers.Sina
			out = append(out, provider.NewSina(s.ListURL, s.KlineURL, limiter))
		case "local":
			out = append(out, provider.NewLocal(snaps, bars, cfg.Providers.LocalMaxAge))
		case "alpaca":
			if !cfg.Alpaca.Enabled() {
				log.Debug("alpaca provider disabled, no credentials")
				continue
			}
			a := cfg.Alpaca
			out = append(out, provider.NewAlpaca(a.APIKey, a.APISecret, a.DataURL, a.Feed, limiter))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return out, nil
}
