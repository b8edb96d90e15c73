package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_signal_bot/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Signal-driven spot trading bot",
	Long: `bot trades a single spot position on one symbol.

Every scheduled tick it reads a BUY/SELL signal, checks the venue, and opens
or closes the position. Without a subcommand it runs the service.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
