package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", cfg.Bot.Symbol)
	assert.Equal(t, 9.0, cfg.Bot.InvestmentAmount)
	assert.Equal(t, "paper", cfg.Bot.Mode)
	assert.Equal(t, time.Hour, cfg.Schedule.Interval)
	assert.True(t, cfg.Schedule.Align)
	assert.Zero(t, cfg.Risk.StopLoss)
	assert.Equal(t, "ema_cross", cfg.Signal.Kind)
	assert.Equal(t, 50, cfg.Signal.Window)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
bot:
  symbol: ETH/USDT
  investment_amount: 25
  mode: live
schedule:
  interval: 15m
exchange:
  api_key: file-key
  api_secret: file-secret
  guard:
    orders_per_minute: 2
risk:
  trade_timeout: 12h
`)
	t.Setenv("BOT_SERVER_PORT", "9090")
	t.Setenv("BOT_RISK_STOP_LOSS", "0.9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", cfg.Bot.Symbol)
	assert.Equal(t, 25.0, cfg.Bot.InvestmentAmount)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, 2, cfg.Exchange.Guard.OrdersPerMinute)
	assert.Equal(t, 12*time.Hour, cfg.Risk.TradeTimeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Risk.StopLoss)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRADING_SYMBOL", "SOL/USDT")
	t.Setenv("INVESTMENT_AMOUNT", "12.5")
	t.Setenv("BOT_START_RUNNING", "true")
	t.Setenv("STOP_LOSS_PERCENT", "0.95")
	t.Setenv("TAKE_PROFIT_PERCENT", "1.05")
	t.Setenv("TRADE_TIMEOUT_HOURS", "24")
	t.Setenv("COINEX_API_KEY", "k")
	t.Setenv("COINEX_API_SECRET", "s")
	t.Setenv("PORT", "5000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDT", cfg.Bot.Symbol)
	assert.Equal(t, 12.5, cfg.Bot.InvestmentAmount)
	assert.True(t, cfg.Bot.StartRunning)
	assert.Equal(t, 0.95, cfg.Risk.StopLoss)
	assert.Equal(t, 1.05, cfg.Risk.TakeProfit)
	assert.Equal(t, 24*time.Hour, cfg.Risk.TradeTimeout)
	assert.Equal(t, "k", cfg.Exchange.APIKey)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "zero investment", mutate: func(c *Config) { c.Bot.InvestmentAmount = 0 }, errMsg: "investment_amount"},
		{name: "empty symbol", mutate: func(c *Config) { c.Bot.Symbol = " " }, errMsg: "bot.symbol"},
		{name: "bad mode", mutate: func(c *Config) { c.Bot.Mode = "demo" }, errMsg: "bot.mode"},
		{name: "stop loss above one", mutate: func(c *Config) { c.Risk.StopLoss = 1.2 }, errMsg: "stop_loss"},
		{name: "take profit below one", mutate: func(c *Config) { c.Risk.TakeProfit = 0.8 }, errMsg: "take_profit"},
		{name: "negative timeout", mutate: func(c *Config) { c.Risk.TradeTimeout = -time.Hour }, errMsg: "trade_timeout"},
		{name: "unknown exchange", mutate: func(c *Config) { c.Exchange.Name = "bybit" }, errMsg: "exchange"},
		{name: "live without keys", mutate: func(c *Config) { c.Bot.Mode = "live" }, errMsg: "api_key"},
		{name: "unknown signal", mutate: func(c *Config) { c.Signal.Kind = "rsi" }, errMsg: "signal.kind"},
		{name: "bad ema periods", mutate: func(c *Config) { c.Signal.Fast = 30 }, errMsg: "signal.fast"},
		{name: "unknown journal", mutate: func(c *Config) { c.Journal.Driver = "mongo" }, errMsg: "journal.driver"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, errMsg: "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestYAMLMasksSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Exchange.APIKey = "real-key"
	cfg.Exchange.APISecret = "real-secret"
	cfg.Notify.DiscordWebhook = "https://discord.example/hook"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "real-key")
	assert.NotContains(t, string(out), "real-secret")
	assert.NotContains(t, string(out), "discord.example")

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "BTC/USDT", back.Bot.Symbol)
	assert.Equal(t, time.Hour, back.Schedule.Interval)
	// The receiver is untouched.
	assert.Equal(t, "real-key", cfg.Exchange.APIKey)
}
