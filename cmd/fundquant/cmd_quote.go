package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fundquant/internal/domain"
	"fundquant/pkg/fundquant"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <code>",
	Short: "Show the latest quote of one instrument",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Find instruments by code or name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var (
	quoteDataset string
	searchLimit  int
)

func init() {
	rootCmd.AddCommand(quoteCmd, searchCmd)

	quoteCmd.Flags().StringVar(&quoteDataset, "dataset", "lof", "Dataset (lof|stock)")
	searchCmd.Flags().StringVar(&quoteDataset, "dataset", "lof", "Dataset (lof|stock)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
}

func runQuote(cmd *cobra.Command, args []string) error {
	ds, err := parseDataset(quoteDataset)
	if err != nil {
		return err
	}
	var q domain.Quote
	if serverURL != "" {
		q, err = fundquant.NewClient(serverURL).Quote(cmd.Context(), ds, args[0])
	} else {
		q, err = lookupLocal(cmd, ds, args[0])
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(q)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "code\t%s\n", q.Code)
	fmt.Fprintf(w, "name\t%s\n", q.Name)
	fmt.Fprintf(w, "latest\t%.4f\n", q.Latest)
	fmt.Fprintf(w, "change\t%+.4f (%+.2f%%)\n", q.ChangeAmount, q.ChangeRate)
	fmt.Fprintf(w, "open / high / low\t%.4f / %.4f / %.4f\n", q.Open, q.High, q.Low)
	fmt.Fprintf(w, "prev close\t%.4f\n", q.PrevClose)
	fmt.Fprintf(w, "volume\t%.0f\n", q.Volume)
	fmt.Fprintf(w, "amount\t%.2f\n", q.Amount)
	fmt.Fprintf(w, "turnover\t%.2f%%\n", q.Turnover)
	if q.PE != 0 || q.PB != 0 {
		fmt.Fprintf(w, "pe / pb\t%.2f / %.2f\n", q.PE, q.PB)
	}
	return w.Flush()
}

func runSearch(cmd *cobra.Command, args []string) error {
	ds, err := parseDataset(quoteDataset)
	if err != nil {
		return err
	}
	var res []domain.Quote
	if serverURL != "" {
		res, err = fundquant.NewClient(serverURL).Search(cmd.Context(), ds, args[0], searchLimit)
	} else {
		res, err = searchLocal(cmd, ds, args[0])
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		if res == nil {
			res = []domain.Quote{}
		}
		return printJSON(res)
	}
	if len(res) == 0 {
		fmt.Println("no matches")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tLATEST\tCHANGE%")
	for _, q := range res {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%+.2f\n", q.Code, q.Name, q.Latest, q.ChangeRate)
	}
	return w.Flush()
}

func lookupLocal(cmd *cobra.Command, ds domain.Dataset, code string) (domain.Quote, error) {
	a, err := loadApp()
	if err != nil {
		return domain.Quote{}, err
	}
	defer a.Close()
	return a.Fetch.Lookup(cmd.Context(), ds, code)
}

func searchLocal(cmd *cobra.Command, ds domain.Dataset, keyword string) ([]domain.Quote, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Fetch.Search(cmd.Context(), ds, keyword, searchLimit)
}
