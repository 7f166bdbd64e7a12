package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fundquant/internal/domain"
	"fundquant/internal/fetch"
	"fundquant/pkg/fundquant"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show snapshot cache state, optionally warming it first",
	Args:  cobra.NoArgs,
	RunE:  runCache,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop archived snapshots beyond the newest --keep per dataset",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dataset]",
	Short: "Drop a running server's cached snapshot (requires --server)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var (
	cacheWarm bool
	cacheKeep int
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd, cacheClearCmd)

	cacheCmd.Flags().BoolVar(&cacheWarm, "warm", false, "Fetch every dataset before reporting")
	cachePruneCmd.Flags().IntVar(&cacheKeep, "keep", 30, "Snapshots to keep per dataset")
}

var allDatasets = []domain.Dataset{domain.DatasetLOF, domain.DatasetStock}

func runCache(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	infos := make([]fetch.CacheInfo, 0, len(allDatasets))
	for _, ds := range allDatasets {
		if cacheWarm {
			if _, err := a.Fetch.Snapshot(cmd.Context(), ds); err != nil {
				fmt.Fprintf(os.Stderr, "warm %s: %s\n", ds, domain.UserMessage(err))
			}
		}
		info, err := a.Fetch.CacheInfo(ds)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	if jsonOutput {
		return printJSON(infos)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tCACHED\tSOURCE\tROWS\tAGE\tTTL\tEXPIRED")
	for _, info := range infos {
		age := "-"
		if info.Cached {
			age = info.Age.Truncate(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%s\t%s\t%t\n",
			info.Dataset, info.Cached, info.Source, info.Rows, age, info.TTL, info.Expired)
	}
	return w.Flush()
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	if cacheKeep < 1 {
		return domain.InvalidParam("keep", "must be at least 1, got %d", cacheKeep)
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, ds := range allDatasets {
		n, err := a.Snapshots.Prune(cmd.Context(), ds, cacheKeep)
		if err != nil {
			return fmt.Errorf("pruning %s: %w", ds, err)
		}
		fmt.Printf("%s: removed %d snapshots\n", ds, n)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if serverURL == "" {
		return domain.InvalidParam("server", "cache clear needs --server; a local process starts with an empty cache")
	}
	datasets := allDatasets
	if len(args) == 1 {
		ds, err := parseDataset(args[0])
		if err != nil {
			return err
		}
		datasets = []domain.Dataset{ds}
	}
	c := fundquant.NewClient(serverURL)
	for _, ds := range datasets {
		if err := c.ClearCache(cmd.Context(), ds); err != nil {
			return fmt.Errorf("clearing %s: %w", ds, err)
		}
		fmt.Printf("%s: cleared\n", ds)
	}
	return nil
}
