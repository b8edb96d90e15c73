package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/config"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/exchange"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/logger"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/notify"
	botsignal "github.com/vitos/crypto_signal_bot/internal/infrastructure/signal"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"github.com/vitos/crypto_signal_bot/internal/web"
	"go.uber.org/zap"
)

// app holds the wired service.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	status    *usecase.StatusStore
	engine    *usecase.Engine
	scheduler *usecase.Scheduler
	refresher *usecase.Refresher
	hub       *web.Hub
	server    *web.Server
	journal   domain.TradeJournal

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// Engine and scheduler logs optionally go to their own file as well.
	tradeLog := log
	if cfg.Logging.TradeLog != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.TradeLog), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create trade log dir: %w", err)
		}
		fl, err := logger.NewFileLogger(cfg.Logging.TradeLog, cfg.Logging.Level)
		if err != nil {
			log.Error("Failed to init trade logger, using default", zap.Error(err))
		} else {
			tradeLog = fl
			a.closers = append(a.closers, func() { _ = fl.Sync() })
		}
	}

	market, err := domain.ParseMarket(cfg.Bot.Symbol)
	if err != nil {
		return nil, err
	}

	client := exchange.NewCoinExClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint, cfg.Exchange.Timeout)
	var venue domain.Exchange = exchange.NewGuardedExchange(client, exchange.GuardConfig{
		OrdersPerMinute:  cfg.Exchange.Guard.OrdersPerMinute,
		MaxRetries:       cfg.Exchange.Guard.MaxRetries,
		RetryBackoff:     cfg.Exchange.Guard.RetryBackoff,
		BreakerThreshold: cfg.Exchange.Guard.BreakerThreshold,
		BreakerCooldown:  cfg.Exchange.Guard.BreakerCooldown,
	}, log.Named("venue"))
	if cfg.Bot.Mode == "paper" {
		venue = exchange.NewPaperVenue(venue, map[string]decimal.Decimal{
			market.Quote: decimal.NewFromFloat(cfg.Paper.QuoteBalance),
		})
		log.Info("Paper trading enabled", zap.Float64("quote_balance", cfg.Paper.QuoteBalance))
	}

	signals, err := newSignalSource(cfg, venue, log.Named("signal"))
	if err != nil {
		return nil, err
	}
	if c, ok := signals.(interface{ Close() }); ok {
		a.closers = append(a.closers, c.Close)
	}

	journal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}
	if journal != nil {
		a.journal = journal
		a.closers = append(a.closers, func() { _ = journal.Close() })
	}

	var opts []usecase.EngineOption
	if a.journal != nil {
		opts = append(opts, usecase.WithJournal(a.journal))
	}
	if cfg.Notify.DiscordWebhook != "" {
		opts = append(opts, usecase.WithNotifier(notify.NewDiscordNotifier(cfg.Notify.DiscordWebhook)))
	}

	investment := decimal.NewFromFloat(cfg.Bot.InvestmentAmount)
	a.status = usecase.NewStatusStore(cfg.Bot.Mode, cfg.Bot.Symbol, investment)
	ledger := usecase.NewLedger(cfg.Bot.Symbol)

	a.engine, err = usecase.NewEngine(usecase.EngineConfig{
		Symbol:           cfg.Bot.Symbol,
		InvestmentAmount: investment,
		Risk:             riskConfig(cfg.Risk),
	}, venue, signals, ledger, a.status, tradeLog.Named("engine"), opts...)
	if err != nil {
		return nil, err
	}

	a.refresher, err = usecase.NewRefresher(venue, venue, cfg.Bot.Symbol, a.status, cfg.Schedule.RefreshInterval, log.Named("refresher"))
	if err != nil {
		return nil, err
	}

	a.scheduler = usecase.NewScheduler(usecase.SchedulerConfig{
		Interval: cfg.Schedule.Interval,
		Align:    cfg.Schedule.Align,
	}, a.engine, a.refresher, a.status, tradeLog.Named("scheduler"))

	a.hub = web.NewHub(a.status, 0, log.Named("ws"))
	a.server, err = web.NewServer(cfg.Server.Port, a.engine, a.scheduler, a.status, a.journal, a.hub, log.Named("web"))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func riskConfig(r config.RiskConfig) usecase.RiskConfig {
	return usecase.RiskConfig{
		StopLoss:   decimal.NewFromFloat(r.StopLoss),
		TakeProfit: decimal.NewFromFloat(r.TakeProfit),
		Timeout:    r.TradeTimeout,
	}
}

func newSignalSource(cfg *config.Config, market domain.MarketData, log *zap.Logger) (domain.SignalSource, error) {
	sc := cfg.Signal
	switch sc.Kind {
	case "onnx":
		mcfg := botsignal.ModelConfig{
			Symbol:    cfg.Bot.Symbol,
			Timeframe: sc.Timeframe,
			Candles:   sc.Candles,
			Window:    sc.Window,
			Threshold: float32(sc.Threshold),
			Features:  sc.Features,
		}
		model, err := botsignal.NewONNXModel(botsignal.ModelSpec{
			Path:        sc.ModelPath,
			LibraryPath: sc.LibraryPath,
			InputName:   sc.InputName,
			OutputName:  sc.OutputName,
			InputShape:  mcfg.InputShape(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load model: %w", err)
		}
		src, err := botsignal.NewModelSource(market, model, mcfg, log)
		if err != nil {
			model.Close()
			return nil, err
		}
		return &closingSource{SignalSource: src, close: model.Close}, nil
	case "ema_cross":
		src, err := botsignal.NewEMACrossSource(market, cfg.Bot.Symbol, sc.Timeframe, sc.Fast, sc.Slow, log)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "none":
		// Manual triggers and risk exits only.
		return domain.SignalFunc(func(ctx context.Context) (domain.Signal, error) {
			return domain.SignalUnknown, nil
		}), nil
	}
	return nil, fmt.Errorf("unknown signal kind %q", sc.Kind)
}

type closingSource struct {
	domain.SignalSource
	close func()
}

func (c *closingSource) Close() { c.close() }

// openJournal returns nil when the journal is disabled.
func openJournal(ctx context.Context, jc config.JournalConfig) (domain.TradeJournal, error) {
	switch jc.Driver {
	case "sqlite":
		if dir := filepath.Dir(jc.DSN); dir != "." && jc.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create journal dir: %w", err)
			}
		}
		store, err := storage.NewSQLiteStore(jc.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite journal: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := storage.NewPostgresStore(ctx, jc.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres journal: %w", err)
		}
		return store, nil
	case "none", "":
		return nil, nil
	}
	return nil, errors.New("unknown journal driver " + jc.Driver)
}
