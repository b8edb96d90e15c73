package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config stores all configuration for the bot. Values come from the config
// file, then BOT_-prefixed environment variables, then the legacy names.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot" yaml:"bot"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Risk     RiskConfig     `mapstructure:"risk" yaml:"risk"`
	Exchange ExchangeConfig `mapstructure:"exchange" yaml:"exchange"`
	Paper    PaperConfig    `mapstructure:"paper" yaml:"paper"`
	Signal   SignalConfig   `mapstructure:"signal" yaml:"signal"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

type BotConfig struct {
	Symbol           string  `mapstructure:"symbol" yaml:"symbol"`
	InvestmentAmount float64 `mapstructure:"investment_amount" yaml:"investment_amount"`
	StartRunning     bool    `mapstructure:"start_running" yaml:"start_running"`
	// Mode is "live" or "paper".
	Mode string `mapstructure:"mode" yaml:"mode"`
}

type ScheduleConfig struct {
	Interval        time.Duration `mapstructure:"interval" yaml:"interval"`
	Align           bool          `mapstructure:"align" yaml:"align"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// RiskConfig ratios are relative to the entry price. Zero disables a rule.
type RiskConfig struct {
	StopLoss     float64       `mapstructure:"stop_loss" yaml:"stop_loss"`
	TakeProfit   float64       `mapstructure:"take_profit" yaml:"take_profit"`
	TradeTimeout time.Duration `mapstructure:"trade_timeout" yaml:"trade_timeout"`
}

type ExchangeConfig struct {
	Name         string        `mapstructure:"name" yaml:"name"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	APISecret    string        `mapstructure:"api_secret" yaml:"api_secret"`
	RESTEndpoint string        `mapstructure:"rest_endpoint" yaml:"rest_endpoint"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Guard        GuardConfig   `mapstructure:"guard" yaml:"guard"`
}

type GuardConfig struct {
	OrdersPerMinute  int           `mapstructure:"orders_per_minute" yaml:"orders_per_minute"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	BreakerThreshold int           `mapstructure:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
}

type PaperConfig struct {
	QuoteBalance float64 `mapstructure:"quote_balance" yaml:"quote_balance"`
}

type SignalConfig struct {
	// Kind is "onnx", "ema_cross" or "none".
	Kind        string  `mapstructure:"kind" yaml:"kind"`
	ModelPath   string  `mapstructure:"model_path" yaml:"model_path"`
	LibraryPath string  `mapstructure:"library_path" yaml:"library_path"`
	InputName   string  `mapstructure:"input_name" yaml:"input_name"`
	OutputName  string  `mapstructure:"output_name" yaml:"output_name"`
	Features    string  `mapstructure:"features" yaml:"features"`
	Window      int     `mapstructure:"window" yaml:"window"`
	Candles     int     `mapstructure:"candles" yaml:"candles"`
	Threshold   float64 `mapstructure:"threshold" yaml:"threshold"`
	Timeframe   string  `mapstructure:"timeframe" yaml:"timeframe"`
	Fast        int     `mapstructure:"fast" yaml:"fast"`
	Slow        int     `mapstructure:"slow" yaml:"slow"`
}

type JournalConfig struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type NotifyConfig struct {
	DiscordWebhook string `mapstructure:"discord_webhook" yaml:"discord_webhook"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
	// TradeLog, when set, receives engine and scheduler logs as JSON.
	TradeLog string `mapstructure:"trade_log" yaml:"trade_log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// legacyEnv maps the environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"bot.symbol":            "TRADING_SYMBOL",
	"bot.investment_amount": "INVESTMENT_AMOUNT",
	"bot.start_running":     "BOT_START_RUNNING",
	"risk.stop_loss":        "STOP_LOSS_PERCENT",
	"risk.take_profit":      "TAKE_PROFIT_PERCENT",
	"exchange.api_key":      "COINEX_API_KEY",
	"exchange.api_secret":   "COINEX_API_SECRET",
	"server.port":           "PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.symbol", "BTC/USDT")
	v.SetDefault("bot.investment_amount", 9.0)
	v.SetDefault("bot.start_running", false)
	v.SetDefault("bot.mode", "paper")

	v.SetDefault("schedule.interval", time.Hour)
	v.SetDefault("schedule.align", true)
	v.SetDefault("schedule.refresh_interval", time.Minute)

	v.SetDefault("risk.stop_loss", 0.0)
	v.SetDefault("risk.take_profit", 0.0)
	v.SetDefault("risk.trade_timeout", time.Duration(0))

	v.SetDefault("exchange.name", "coinex")
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.rest_endpoint", "https://api.coinex.com/v2")
	v.SetDefault("exchange.timeout", 10*time.Second)
	v.SetDefault("exchange.guard.orders_per_minute", 6)
	v.SetDefault("exchange.guard.max_retries", 2)
	v.SetDefault("exchange.guard.retry_backoff", 500*time.Millisecond)
	v.SetDefault("exchange.guard.breaker_threshold", 3)
	v.SetDefault("exchange.guard.breaker_cooldown", 5*time.Minute)

	v.SetDefault("paper.quote_balance", 100.0)

	v.SetDefault("signal.kind", "ema_cross")
	v.SetDefault("signal.model_path", "model/model.onnx")
	v.SetDefault("signal.library_path", "")
	v.SetDefault("signal.input_name", "input")
	v.SetDefault("signal.output_name", "output")
	v.SetDefault("signal.features", "closes")
	v.SetDefault("signal.window", 50)
	v.SetDefault("signal.candles", 100)
	v.SetDefault("signal.threshold", 0.5)
	v.SetDefault("signal.timeframe", "1h")
	v.SetDefault("signal.fast", 12)
	v.SetDefault("signal.slow", 26)

	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.dsn", "data/journal.db")

	v.SetDefault("notify.discord_webhook", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.trade_log", "")

	v.SetDefault("server.port", 8080)
}

// Load reads configuration from path (or ./config/config.yaml, ./config.yaml
// when path is empty) and the environment. A missing default config file is
// not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	// A .env file is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, "BOT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// The legacy timeout is a number of hours rather than a duration.
	if h := os.Getenv("TRADE_TIMEOUT_HOURS"); h != "" && os.Getenv("BOT_RISK_TRADE_TIMEOUT") == "" {
		hours, err := strconv.ParseFloat(h, 64)
		if err != nil {
			return nil, fmt.Errorf("TRADE_TIMEOUT_HOURS: %w", err)
		}
		cfg.Risk.TradeTimeout = time.Duration(hours * float64(time.Hour))
	}

	return &cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.Symbol) == "" {
		errs = append(errs, errors.New("bot.symbol is required"))
	}
	if c.Bot.InvestmentAmount <= 0 {
		errs = append(errs, fmt.Errorf("bot.investment_amount must be positive, got %v", c.Bot.InvestmentAmount))
	}
	switch c.Bot.Mode {
	case "live", "paper":
	default:
		errs = append(errs, fmt.Errorf("bot.mode must be live or paper, got %q", c.Bot.Mode))
	}
	if c.Schedule.Interval <= 0 {
		errs = append(errs, errors.New("schedule.interval must be positive"))
	}
	if c.Risk.StopLoss < 0 || c.Risk.StopLoss >= 1 {
		errs = append(errs, fmt.Errorf("risk.stop_loss must be in (0,1) or 0 to disable, got %v", c.Risk.StopLoss))
	}
	if c.Risk.TakeProfit != 0 && c.Risk.TakeProfit <= 1 {
		errs = append(errs, fmt.Errorf("risk.take_profit must be above 1 or 0 to disable, got %v", c.Risk.TakeProfit))
	}
	if c.Risk.TradeTimeout < 0 {
		errs = append(errs, errors.New("risk.trade_timeout must not be negative"))
	}
	if c.Exchange.Name != "coinex" {
		errs = append(errs, fmt.Errorf("unknown exchange %q", c.Exchange.Name))
	}
	if c.Bot.Mode == "live" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		errs = append(errs, errors.New("live mode requires exchange.api_key and exchange.api_secret"))
	}
	switch c.Signal.Kind {
	case "onnx":
		if c.Signal.ModelPath == "" {
			errs = append(errs, errors.New("signal.model_path is required for onnx"))
		}
	case "ema_cross":
		if c.Signal.Fast <= 0 || c.Signal.Fast >= c.Signal.Slow {
			errs = append(errs, fmt.Errorf("signal.fast must be positive and below signal.slow"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown signal.kind %q", c.Signal.Kind))
	}
	switch c.Journal.Driver {
	case "sqlite", "postgres":
		if c.Journal.DSN == "" {
			errs = append(errs, fmt.Errorf("journal.dsn is required for %s", c.Journal.Driver))
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Errorf("unknown journal.driver %q", c.Journal.Driver))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

const masked = "****"

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	if c.Exchange.APIKey != "" {
		c.Exchange.APIKey = masked
	}
	if c.Exchange.APISecret != "" {
		c.Exchange.APISecret = masked
	}
	if c.Notify.DiscordWebhook != "" {
		c.Notify.DiscordWebhook = masked
	}
	if c.Journal.Driver == "postgres" && c.Journal.DSN != "" {
		c.Journal.DSN = masked
	}
	return c
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Masked())
}
