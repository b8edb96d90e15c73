package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// Refresher keeps the cached balances, prices and open-order count in the
// status store current. It never touches the ledger.
type Refresher struct {
	venue    domain.Venue
	market   domain.MarketData
	symbol   string
	pair     domain.Market
	status   *StatusStore
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// One refresh at a time; the scheduler also triggers refreshes.
	mu sync.Mutex
}

func NewRefresher(venue domain.Venue, market domain.MarketData, symbol string, status *StatusStore, interval time.Duration, logger *zap.Logger) (*Refresher, error) {
	pair, err := domain.ParseMarket(symbol)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		venue:    venue,
		market:   market,
		symbol:   symbol,
		pair:     pair,
		status:   status,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start refreshes immediately, then on every interval until ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("Starting balance refresher", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)

	go func() {
		defer ticker.Stop()
		r.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Refresh(ctx)
			}
		}
	}()
}

// Refresh reads balances, ticker and open orders. Parts that fail keep
// their previous cached value.
func (r *Refresher) Refresh(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	balances := make(map[string]decimal.Decimal, 2)
	for _, currency := range []string{r.pair.Quote, r.pair.Base} {
		bal, err := r.venue.AvailableBalance(ctx, currency)
		if err != nil {
			r.logger.Warn("Refresher: failed to get balance", zap.String("currency", currency), zap.Error(err))
			continue
		}
		balances[currency] = bal
	}

	prices := make(map[string]domain.Ticker, 1)
	if r.market != nil {
		t, err := r.market.GetTicker(ctx, r.symbol)
		if err != nil {
			r.logger.Warn("Refresher: failed to get ticker", zap.String("symbol", r.symbol), zap.Error(err))
		} else {
			prices[r.symbol] = t
		}
	}

	openOrders := -1
	orders, err := r.venue.ListOpenOrders(ctx, r.symbol)
	if err != nil {
		r.logger.Warn("Refresher: failed to list open orders", zap.Error(err))
	} else {
		openOrders = len(orders)
	}

	r.status.SetMarket(balances, prices, openOrders, r.now())
	r.logger.Debug("Refresher: market data updated",
		zap.Duration("duration", r.now().Sub(start)),
		zap.Int("balances", len(balances)),
		zap.Int("open_orders", openOrders))
}
