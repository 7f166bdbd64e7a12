package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fundquant/internal/api"
	"fundquant/internal/app"
	"fundquant/internal/config"
	"fundquant/internal/domain"
	"fundquant/internal/util"
)

func main() {
	cfgPath := "config/fundquant.yaml"
	if p := os.Getenv("FUNDQUANT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("initializing services: %v", err)
	}
	defer a.Close()

	datasets := []domain.Dataset{domain.DatasetLOF, domain.DatasetStock}
	handlers := api.NewHandlers(a.Fetch, a.Analysis, datasets, a.Metrics, logger)
	svc := api.NewGRPCService(a.Analysis, logger)
	srv := api.NewServer(cfg.Server, handlers, svc, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
