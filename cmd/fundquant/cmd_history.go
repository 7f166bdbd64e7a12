package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fundquant/internal/api"
	"fundquant/internal/fetch"
	"fundquant/pkg/fundquant"
)

var historyCmd = &cobra.Command{
	Use:   "history <code>",
	Short: "Print daily bars, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var historyDays int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyDays, "days", 30, "Number of trading days")
}

func runHistory(cmd *cobra.Command, args []string) error {
	var (
		h   *api.HistoryResponse
		err error
	)
	if serverURL != "" {
		h, err = fundquant.NewClient(serverURL).History(cmd.Context(), args[0], historyDays)
	} else {
		h, err = historyLocal(cmd, args[0])
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(h)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tCHANGE%\tVOLUME\t")
	for _, b := range h.Bars {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%+.2f\t%.0f\t\n",
			b.Date, b.Open, b.High, b.Low, b.Close, b.PctChg, b.Volume)
	}
	return w.Flush()
}

func historyLocal(cmd *cobra.Command, code string) (*api.HistoryResponse, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	s, err := a.Fetch.History(cmd.Context(), code, historyDays)
	if err != nil {
		return nil, err
	}
	return &api.HistoryResponse{
		Code:   code,
		Market: string(fetch.MarketOf(code)),
		Bars:   api.HistoryBars(s.Bars()),
	}, nil
}
