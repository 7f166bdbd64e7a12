package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"fundquant/internal/domain"
	"fundquant/internal/fetch"
	"fundquant/internal/indicator"
	"fundquant/internal/perf"
	"fundquant/internal/signal"
	"fundquant/internal/strategy"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for fundquant.
type Config struct {
	Logging    Logging          `yaml:"logging"`
	Storage    Storage          `yaml:"storage"`
	Server     Server           `yaml:"server"`
	Fetch      fetch.Config     `yaml:"fetch"`
	Providers  Providers        `yaml:"providers"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Indicators indicator.Params `yaml:"indicators"`
	Metrics    perf.Params      `yaml:"metrics"`
	Backtest   strategy.Params  `yaml:"backtest"`
	Signal     signal.Config    `yaml:"signal"`
	Gather     Gather           `yaml:"gather"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage holds paths for the local archive.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Providers selects and orders the upstream sources. Names are
// "eastmoney", "sina", "local" and "alpaca".
type Providers struct {
	Order           []string      `yaml:"order"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	LocalMaxAge     time.Duration `yaml:"local_max_age"`
	EastMoney       Endpoints     `yaml:"eastmoney"`
	Sina            Endpoints     `yaml:"sina"`
}

// Endpoints overrides an HTTP provider's URLs. Empty values select the
// public endpoints.
type Endpoints struct {
	ListURL  string `yaml:"list_url"`
	KlineURL string `yaml:"kline_url"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Enabled reports whether credentials are present.
func (a Alpaca) Enabled() bool { return a.APIKey != "" && a.APISecret != "" }

// Gather controls the archive job.
type Gather struct {
	Datasets       []domain.Dataset `yaml:"datasets"`
	HistoryDays    int              `yaml:"history_days"`
	MaxWorkers     int              `yaml:"max_workers"`
	KeepSnapshots  int              `yaml:"keep_snapshots"`
	Symbols        []string         `yaml:"symbols"`
	SymbolsFromLOF bool             `yaml:"symbols_from_lof"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the analytics parameter sections.
func (c *Config) Validate() error {
	if err := c.Indicators.Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if err := c.Signal.Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	for _, name := range c.Providers.Order {
		switch name {
		case "eastmoney", "sina", "local", "alpaca":
		default:
			return domain.InvalidParam("providers.order", "unknown provider %q", name)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("FUNDQUANT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("FUNDQUANT_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FUNDQUANT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("FUNDQUANT_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FUNDQUANT_PORT: %w", err)
		}
		cfg.Server.Port = n
	}
	if v := os.Getenv("FUNDQUANT_GRPC_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FUNDQUANT_GRPC_PORT: %w", err)
		}
		cfg.Server.GRPCPort = n
	}

	if v := os.Getenv("FUNDQUANT_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FUNDQUANT_RETRY_DELAY: %w", err)
		}
		cfg.Fetch.RetryDelay = d
	}
	if v := os.Getenv("FUNDQUANT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FUNDQUANT_MAX_ATTEMPTS: %w", err)
		}
		cfg.Fetch.MaxAttempts = n
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars take precedence.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}

// applyDefaults fills zero-valued fields. Sections left entirely empty get
// their package defaults; partially filled sections keep what was set.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/fundquant.db"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}

	fetchDefaults(&cfg.Fetch)

	if len(cfg.Providers.Order) == 0 {
		cfg.Providers.Order = []string{"eastmoney", "sina", "local", "alpaca"}
	}
	if cfg.Providers.RateLimitPerMin == 0 {
		cfg.Providers.RateLimitPerMin = 120
	}
	if cfg.Providers.LocalMaxAge == 0 {
		cfg.Providers.LocalMaxAge = 72 * time.Hour
	}

	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}

	if isZeroIndicators(cfg.Indicators) {
		cfg.Indicators = indicator.DefaultParams()
	}
	metricsDefaults(&cfg.Metrics)
	backtestDefaults(&cfg.Backtest)
	signalDefaults(&cfg.Signal)

	if len(cfg.Gather.Datasets) == 0 {
		cfg.Gather.Datasets = []domain.Dataset{domain.DatasetLOF, domain.DatasetStock}
	}
	if cfg.Gather.HistoryDays == 0 {
		cfg.Gather.HistoryDays = 250
	}
	if cfg.Gather.MaxWorkers == 0 {
		cfg.Gather.MaxWorkers = 4
	}
	if cfg.Gather.KeepSnapshots == 0 {
		cfg.Gather.KeepSnapshots = 30
	}
}

func fetchDefaults(f *fetch.Config) {
	def := fetch.DefaultConfig()
	if f.Datasets == nil {
		f.Datasets = map[domain.Dataset]fetch.DatasetConfig{}
	}
	for ds, dc := range def.Datasets {
		cur := f.Datasets[ds]
		if cur.TTL == 0 {
			cur.TTL = dc.TTL
		}
		if cur.Timeout == 0 {
			cur.Timeout = dc.Timeout
		}
		f.Datasets[ds] = cur
	}
	if f.HistoryTimeout == 0 {
		f.HistoryTimeout = def.HistoryTimeout
	}
	if f.MaxAttempts == 0 {
		f.MaxAttempts = def.MaxAttempts
	}
	if f.RetryDelay == 0 {
		f.RetryDelay = def.RetryDelay
	}
	if f.Breaker == (fetch.BreakerConfig{}) {
		f.Breaker = def.Breaker
	}
	if f.Breaker.ConsecutiveFailures == 0 {
		f.Breaker.ConsecutiveFailures = def.Breaker.ConsecutiveFailures
	}
	if f.Breaker.OpenTimeout == 0 {
		f.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if f.SearchLimit == 0 {
		f.SearchLimit = def.SearchLimit
	}
}

func isZeroIndicators(p indicator.Params) bool {
	return len(p.MAWindows) == 0 && len(p.ReturnHorizons) == 0 &&
		p.VolatilityWindow == 0 && p.RangeWindow == 0 && p.MACDFast == 0 &&
		p.RSIPeriod == 0 && p.KDJPeriod == 0 && p.BollWindow == 0
}

func metricsDefaults(p *perf.Params) {
	def := perf.DefaultParams()
	if p.PeriodsPerYear == 0 {
		p.PeriodsPerYear = def.PeriodsPerYear
	}
	if p.VaRConfidence == 0 {
		p.VaRConfidence = def.VaRConfidence
	}
	if p.MinObservations == 0 {
		p.MinObservations = def.MinObservations
	}
}

func backtestDefaults(p *strategy.Params) {
	def := strategy.DefaultParams()
	if p.MACross == (strategy.MACrossParams{}) {
		p.MACross = def.MACross
	}
	if p.RSI == (strategy.RSIParams{}) {
		p.RSI = def.RSI
	}
}

func signalDefaults(c *signal.Config) {
	def := signal.DefaultConfig()
	if c.Weights == (signal.Weights{}) {
		c.Weights = def.Weights
	}
	if c.Oversold == 0 && c.Overbought == 0 {
		c.Oversold, c.Overbought = def.Oversold, def.Overbought
	}
	if c.MaxScore == 0 {
		c.MaxScore = def.MaxScore
	}
	if c.Cuts == (signal.Cuts{}) {
		c.Cuts = def.Cuts
	}
}
