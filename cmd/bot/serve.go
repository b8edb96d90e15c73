package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/logger"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot with its web dashboard",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire venue, signal, journal, engine and web
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	log.Info("Bot configured",
		zap.String("symbol", cfg.Bot.Symbol),
		zap.String("mode", cfg.Bot.Mode),
		zap.String("signal", cfg.Signal.Kind),
		zap.Duration("interval", cfg.Schedule.Interval))

	// 4. Background loops
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.scheduler.Run(ctx)
	}()
	go a.refresher.Start(ctx)
	go a.hub.Run(ctx)

	if cfg.Bot.StartRunning {
		a.scheduler.Start()
	}

	// 5. Start Server
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- a.server.Start()
	}()

	// 6. Wait for Shutdown
	select {
	case <-ctx.Done():
	case err = <-srvErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
		}
		stop()
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown", zap.Error(err))
	}
	<-done
	a.scheduler.Wait()
	return err
}
