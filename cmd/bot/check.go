package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/exchange"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check venue connectivity",
	Long: `Query the venue for the configured symbol: ticker, balances and open
orders. Private endpoints are skipped when no API key is configured.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	market, err := domain.ParseMarket(cfg.Bot.Symbol)
	if err != nil {
		return err
	}
	client := exchange.NewCoinExClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint, cfg.Exchange.Timeout)
	return checkVenue(cmd.Context(), cmd, client, market, cfg.Exchange.APIKey != "")
}

func checkVenue(ctx context.Context, cmd *cobra.Command, venue domain.Exchange, market domain.Market, private bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	symbol := market.String()
	failed := 0

	t, err := venue.GetTicker(ctx, symbol)
	if err != nil {
		failed++
		fmt.Fprintf(out, "FAIL ticker %s: %v\n", symbol, err)
	} else {
		fmt.Fprintf(out, "OK   ticker %s: last=%s bid=%s ask=%s\n", symbol, t.Last, t.Bid, t.Ask)
	}

	if !private {
		fmt.Fprintln(out, "SKIP balances and open orders: no API key")
	} else {
		for _, ccy := range []string{market.Base, market.Quote} {
			bal, err := venue.AvailableBalance(ctx, ccy)
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL balance %s: %v\n", ccy, err)
				continue
			}
			fmt.Fprintf(out, "OK   balance %s: %s\n", ccy, bal)
		}
		orders, err := venue.ListOpenOrders(ctx, symbol)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL open orders: %v\n", err)
		} else {
			fmt.Fprintf(out, "OK   open orders: %d\n", len(orders))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
