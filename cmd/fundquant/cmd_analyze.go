package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"fundquant/internal/analysis"
	"fundquant/internal/api"
	"fundquant/internal/strategy"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <code>",
	Short: "Indicators, risk metrics, backtests and a composite signal",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest <code>",
	Short: "Backtest one strategy over recent history",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

var (
	analyzeDays       int
	analyzeDataset    string
	analyzeStrategies []string
	analyzeRemote     string

	backtestStrategy string
	backtestDays     int
)

func init() {
	rootCmd.AddCommand(analyzeCmd, backtestCmd)

	analyzeCmd.Flags().IntVar(&analyzeDays, "days", analysis.DefaultLookbackDays, "Trading days of history")
	analyzeCmd.Flags().StringVar(&analyzeDataset, "dataset", "", "Dataset to look the quote up in (lof|stock)")
	analyzeCmd.Flags().StringSliceVar(&analyzeStrategies, "strategy", nil, "Strategies to backtest (default all)")
	analyzeCmd.Flags().StringVar(&analyzeRemote, "remote", "", "Run on a fundquant-server gRPC address instead of locally")

	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", string(strategy.KindMACross), "Strategy kind (ma-cross|rsi-threshold)")
	backtestCmd.Flags().IntVar(&backtestDays, "days", analysis.DefaultLookbackDays, "Trading days of history")
}

func analyzeRequest(code string) (analysis.Request, error) {
	req := analysis.Request{Code: code, LookbackDays: analyzeDays}
	if analyzeDataset != "" {
		ds, err := parseDataset(analyzeDataset)
		if err != nil {
			return req, err
		}
		req.Dataset = ds
	}
	for _, name := range analyzeStrategies {
		k, err := strategy.ParseKind(name)
		if err != nil {
			return req, err
		}
		req.Strategies = append(req.Strategies, k)
	}
	return req, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	req, err := analyzeRequest(args[0])
	if err != nil {
		return err
	}
	if analyzeRemote != "" {
		return runRemoteAnalyze(cmd, req)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.Analysis.Analyze(cmd.Context(), req)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(rep)
	}
	fmt.Print(rep.Text)
	return nil
}

func runRemoteAnalyze(cmd *cobra.Command, req analysis.Request) error {
	conn, err := grpc.NewClient(analyzeRemote, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dialing %s: %w", analyzeRemote, err)
	}
	defer conn.Close()

	out, err := api.NewAnalysisClient(conn).Analyze(cmd.Context(), req)
	if err != nil {
		return err
	}
	rep := out.AsMap()
	if jsonOutput {
		return printJSON(rep)
	}
	text, _ := rep["text"].(string)
	fmt.Print(text)
	return nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	kind, err := strategy.ParseKind(backtestStrategy)
	if err != nil {
		return err
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Analysis.Backtest(cmd.Context(), args[0], backtestDays, kind, nil)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}

	m := res.Metrics
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "strategy\t%s\n", res.Strategy)
	fmt.Fprintf(w, "bars\t%d\n", res.Bars)
	fmt.Fprintf(w, "trades\t%d\n", res.NumTrades)
	fmt.Fprintf(w, "win rate\t%s\n", res.WinRate.Format(2))
	fmt.Fprintf(w, "final equity\t%.4f\n", res.FinalEquity())
	fmt.Fprintf(w, "total return\t%s\n", m.TotalReturn.Format(4))
	fmt.Fprintf(w, "annual return\t%s\n", m.AnnualReturn.Format(4))
	fmt.Fprintf(w, "sharpe\t%s\n", m.Sharpe.Format(2))
	fmt.Fprintf(w, "max drawdown\t%s\n", m.MaxDrawdown.Value.Format(4))
	fmt.Fprintf(w, "in position\t%t\n", res.InPosition)
	fmt.Fprintf(w, "last action\t%s\n", res.LastAction)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(res.Trades) == 0 {
		return nil
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tEXIT\tENTRY PX\tEXIT PX\tRETURN")
	for _, t := range res.Trades {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%+.4f\n",
			t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"), t.EntryPrice, t.ExitPrice, t.Return)
	}
	return w.Flush()
}
