package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fundquant/internal/app"
	"fundquant/internal/config"
	"fundquant/internal/domain"
	"fundquant/internal/util"
)

var rootCmd = &cobra.Command{
	Use:   "fundquant",
	Short: "LOF fund and A-share quotes, indicators, backtests and signals",
	Long: `fundquant fetches full-market LOF and A-share quotes and daily history,
computes technical indicators and risk metrics, backtests simple strategies
and combines everything into a buy/hold/sell signal.

Examples:
  fundquant quote 161226
  fundquant search silver --dataset lof
  fundquant analyze 161226 --days 250
  fundquant backtest 161226 --strategy rsi`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	jsonOutput bool
	logLevel   string
	serverURL  string
)

func init() {
	defaultPath := "config/fundquant.yaml"
	if p := os.Getenv("FUNDQUANT_CONFIG"); p != "" {
		defaultPath = p
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("FUNDQUANT_SERVER"), "Query a fundquant-server at this URL instead of fetching locally")
}

// loadConfig reads the configuration. A missing file falls back to the
// defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// loadApp loads the configuration and wires the services.
func loadApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := util.NewLogger(logLevel, "text")
	util.SetDefault(log)
	return app.New(cfg, log)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDataset(s string) (domain.Dataset, error) {
	switch ds := domain.Dataset(s); ds {
	case domain.DatasetLOF, domain.DatasetStock:
		return ds, nil
	}
	return "", domain.InvalidParam("dataset", "unknown dataset %q (lof|stock)", s)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", domain.UserMessage(err))
		os.Exit(1)
	}
}
