package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent journaled trades",
	RunE:  runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of trades to show")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	j, err := openJournal(cmd.Context(), cfg.Journal)
	if err != nil {
		return err
	}
	if j == nil {
		return errors.New("journal is disabled")
	}
	defer j.Close()

	trades, err := j.ListTrades(cmd.Context(), journalLimit)
	if err != nil {
		return err
	}
	return printTrades(cmd, trades)
}

func printTrades(cmd *cobra.Command, trades []domain.TradeRecord) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tQTY\tPRICE\tREASON\tPROFIT")
	for _, t := range trades {
		profit := "-"
		if t.RealizedProfit != nil {
			profit = t.RealizedProfit.StringFixed(4)
		}
		fill := ""
		if !t.FillConfirmed {
			fill = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\t%s\n",
			t.Timestamp.Local().Format("2006-01-02 15:04:05"),
			t.Kind, t.Quantity, t.Price.StringFixed(4), fill, t.Reason, profit)
	}
	return w.Flush()
}
