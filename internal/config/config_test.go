package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fundquant/internal/domain"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "FUNDQUANT_DATA_DIR", "SQLITE_PATH", "FUNDQUANT_SQLITE_PATH",
		"LOG_LEVEL", "FUNDQUANT_LOG_FORMAT", "FUNDQUANT_PORT", "FUNDQUANT_GRPC_PORT",
		"FUNDQUANT_RETRY_DELAY", "FUNDQUANT_MAX_ATTEMPTS",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fundquant.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/fundquant/data"
  sqlite_path: "/tmp/fundquant/fundquant.db"
server:
  host: "127.0.0.1"
  port: 8181
  grpc_port: 9191
logging:
  level: "debug"
  format: "text"
fetch:
  datasets:
    lof:
      ttl: 3m
      timeout: 90s
  max_attempts: 4
  retry_delay: 500ms
providers:
  order: ["sina", "eastmoney"]
  rate_limit_per_min: 30
indicators:
  ma_windows: [5, 10, 20, 60]
  return_horizons: [1, 5, 20]
  volatility_window: 20
  range_window: 20
  macd_fast: 12
  macd_slow: 26
  macd_signal: 9
  rsi_period: 6
  kdj_period: 9
  kdj_smooth_k: 3
  kdj_smooth_d: 3
  boll_window: 20
  boll_k: 2
metrics:
  risk_free_rate: 0.02
backtest:
  ma_cross:
    fast: 10
    slow: 30
signal:
  weights:
    trend: 2
    rsi: 1
    ma: 0.5
    backtest: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage / server / logging --
	if cfg.Storage.DataDir != "/tmp/fundquant/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/fundquant/data")
	}
	if cfg.Server.Port != 8181 || cfg.Server.GRPCPort != 9191 {
		t.Errorf("Server ports = %d/%d, want 8181/9191", cfg.Server.Port, cfg.Server.GRPCPort)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}

	// -- Fetch --
	lof := cfg.Fetch.Datasets[domain.DatasetLOF]
	if lof.TTL != 3*time.Minute || lof.Timeout != 90*time.Second {
		t.Errorf("lof dataset = %+v, want 3m/90s", lof)
	}
	stock := cfg.Fetch.Datasets[domain.DatasetStock]
	if stock.TTL != 10*time.Minute || stock.Timeout != 60*time.Second {
		t.Errorf("stock dataset = %+v, want defaults 10m/60s", stock)
	}
	if cfg.Fetch.MaxAttempts != 4 {
		t.Errorf("Fetch.MaxAttempts = %d, want 4", cfg.Fetch.MaxAttempts)
	}
	if cfg.Fetch.RetryDelay != 500*time.Millisecond {
		t.Errorf("Fetch.RetryDelay = %v, want 500ms", cfg.Fetch.RetryDelay)
	}
	if cfg.Fetch.HistoryTimeout != 60*time.Second {
		t.Errorf("Fetch.HistoryTimeout = %v, want 60s", cfg.Fetch.HistoryTimeout)
	}

	// -- Providers --
	if len(cfg.Providers.Order) != 2 || cfg.Providers.Order[0] != "sina" {
		t.Errorf("Providers.Order = %v, want [sina eastmoney]", cfg.Providers.Order)
	}
	if cfg.Providers.RateLimitPerMin != 30 {
		t.Errorf("Providers.RateLimitPerMin = %d, want 30", cfg.Providers.RateLimitPerMin)
	}

	// -- Analytics --
	if cfg.Indicators.RSIPeriod != 6 {
		t.Errorf("Indicators.RSIPeriod = %d, want 6", cfg.Indicators.RSIPeriod)
	}
	if cfg.Metrics.RiskFreeRate != 0.02 {
		t.Errorf("Metrics.RiskFreeRate = %v, want 0.02", cfg.Metrics.RiskFreeRate)
	}
	if cfg.Metrics.PeriodsPerYear != 252 || cfg.Metrics.VaRConfidence != 0.95 {
		t.Errorf("Metrics defaults = %+v, want 252 / 0.95", cfg.Metrics)
	}
	if cfg.Backtest.MACross.Fast != 10 || cfg.Backtest.MACross.Slow != 30 {
		t.Errorf("Backtest.MACross = %+v, want 10/30", cfg.Backtest.MACross)
	}
	if cfg.Backtest.RSI.Period != 14 {
		t.Errorf("Backtest.RSI.Period = %d, want default 14", cfg.Backtest.RSI.Period)
	}
	if cfg.Signal.Weights.Trend != 2 {
		t.Errorf("Signal.Weights.Trend = %v, want 2", cfg.Signal.Weights.Trend)
	}
	if cfg.Signal.MaxScore != 5 || cfg.Signal.Cuts.StrongBuy != 3 {
		t.Errorf("Signal defaults = %+v, want max 5, strong buy 3", cfg.Signal)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("DATA_DIR", "/override/data")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("FUNDQUANT_PORT", "7000")
	t.Setenv("FUNDQUANT_RETRY_DELAY", "250ms")
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "apca-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/override/data")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Fetch.RetryDelay != 250*time.Millisecond {
		t.Errorf("Fetch.RetryDelay = %v, want 250ms", cfg.Fetch.RetryDelay)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "env-key")
	}
	if cfg.Alpaca.APISecret != "apca-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q", cfg.Alpaca.APISecret, "apca-secret")
	}
	if !cfg.Alpaca.Enabled() {
		t.Error("Alpaca.Enabled() = false, want true")
	}
}

func TestLoadBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FUNDQUANT_MAX_ATTEMPTS", "three")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric FUNDQUANT_MAX_ATTEMPTS")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Fetch.Datasets[domain.DatasetLOF].TTL != 5*time.Minute {
		t.Errorf("lof TTL = %v, want 5m", cfg.Fetch.Datasets[domain.DatasetLOF].TTL)
	}
	if cfg.Fetch.Datasets[domain.DatasetLOF].Timeout != 120*time.Second {
		t.Errorf("lof timeout = %v, want 120s", cfg.Fetch.Datasets[domain.DatasetLOF].Timeout)
	}
	if cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.RetryDelay != 2*time.Second {
		t.Errorf("retry = %d/%v, want 3/2s", cfg.Fetch.MaxAttempts, cfg.Fetch.RetryDelay)
	}
	if len(cfg.Indicators.MAWindows) == 0 {
		t.Error("Indicators.MAWindows empty, want defaults")
	}
	if cfg.Alpaca.Enabled() {
		t.Error("Alpaca.Enabled() = true without credentials")
	}
	if len(cfg.Gather.Datasets) != 2 {
		t.Errorf("Gather.Datasets = %v, want lof and stock", cfg.Gather.Datasets)
	}
}

func TestLoadRejectsInvalidParams(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"fast >= slow": "backtest:\n  ma_cross:\n    fast: 30\n    slow: 10\n",
		"confidence":   "metrics:\n  var_confidence: 1.5\n",
		"provider":     "providers:\n  order: [\"yahoo\"]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			if !errors.Is(err, domain.ErrInvalidParameter) {
				t.Errorf("Load() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRepoConfigLoads(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "config", "fundquant.yaml"))
	if err != nil {
		t.Fatalf("Load(config/fundquant.yaml) returned error: %v", err)
	}
	if cfg.Signal.Cuts.Buy != 1 {
		t.Errorf("Signal.Cuts.Buy = %v, want 1", cfg.Signal.Cuts.Buy)
	}
}
