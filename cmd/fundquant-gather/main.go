package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fundquant/internal/app"
	"fundquant/internal/config"
	"fundquant/internal/gather"
	"fundquant/internal/util"
)

func main() {
	defaultPath := "config/fundquant.yaml"
	if p := os.Getenv("FUNDQUANT_CONFIG"); p != "" {
		defaultPath = p
	}
	cfgPath := flag.String("config", defaultPath, "path to the configuration file")
	job := flag.String("job", "all", "which gatherer to run: snapshot, history or all")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
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

	g := cfg.Gather
	snapshots := gather.NewSnapshotGatherer(a.Fetch, a.Snapshots, a.Snapshots, g.Datasets, g.KeepSnapshots, logger)
	history := gather.NewHistoryGatherer(a.Fetch, a.Fetch, a.Bars, gather.HistoryConfig{
		Symbols:        g.Symbols,
		SymbolsFromLOF: g.SymbolsFromLOF,
		LookbackDays:   g.HistoryDays,
		MaxWorkers:     g.MaxWorkers,
		ProgressDir:    cfg.Storage.DataDir,
	}, logger)

	var jobs []gather.Gatherer
	switch *job {
	case "snapshot":
		jobs = []gather.Gatherer{snapshots}
	case "history":
		jobs = []gather.Gatherer{history}
	case "all":
		jobs = []gather.Gatherer{snapshots, history}
	default:
		log.Fatalf("unknown job %q (snapshot|history|all)", *job)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var errs []error
	for _, j := range jobs {
		fmt.Printf("starting %s gatherer\n", j.Name())
		if err := j.Run(ctx); err != nil {
			logger.Error("gatherer failed", "gatherer", j.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.Close()
		log.Fatalf("gather finished with errors: %v", err)
	}
}
