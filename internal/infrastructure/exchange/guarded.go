package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrRateLimited = errors.New("order rate limit hit")
	ErrBreakerOpen = errors.New("circuit breaker open")
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerHalfOpen
	breakerOpen
)

type GuardConfig struct {
	// OrdersPerMinute caps order placements; zero disables the cap.
	OrdersPerMinute int
	// MaxRetries applies to read calls only. Orders are never retried.
	MaxRetries   int
	RetryBackoff time.Duration
	// BreakerThreshold consecutive order failures open the breaker for
	// BreakerCooldown, after which a single probe order is allowed.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// GuardedExchange wraps an Exchange with read retries, an order rate cap
// and a circuit breaker on order failures.
type GuardedExchange struct {
	inner  domain.Exchange
	cfg    GuardConfig
	logger *zap.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error

	rateMu     sync.Mutex
	orderTimes []time.Time

	bMu        sync.Mutex
	bState     breakerState
	failStreak int
	openedAt   time.Time
	probing    bool
}

func NewGuardedExchange(inner domain.Exchange, cfg GuardConfig, logger *zap.Logger) *GuardedExchange {
	if cfg.BreakerThreshold < 1 {
		cfg.BreakerThreshold = 3
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 5 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	metrics.BreakerState.Set(0)
	return &GuardedExchange{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry runs fn up to MaxRetries+1 times with linear backoff.
func retry[T any](ctx context.Context, g *GuardedExchange, op string, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for i := 0; i <= g.cfg.MaxRetries; i++ {
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if i == g.cfg.MaxRetries {
			break
		}
		metrics.QueryRetries.Inc()
		g.logger.Debug("Retrying venue query", zap.String("op", op), zap.Int("attempt", i+1), zap.Error(err))
		if serr := g.sleep(ctx, time.Duration(i+1)*g.cfg.RetryBackoff); serr != nil {
			return v, err
		}
	}
	return v, err
}

func (g *GuardedExchange) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return retry(ctx, g, "last_price", func() (decimal.Decimal, error) { return g.inner.LastPrice(ctx, symbol) })
}

func (g *GuardedExchange) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	return retry(ctx, g, "balance", func() (decimal.Decimal, error) { return g.inner.AvailableBalance(ctx, currency) })
}

func (g *GuardedExchange) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return retry(ctx, g, "open_orders", func() ([]domain.Order, error) { return g.inner.ListOpenOrders(ctx, symbol) })
}

func (g *GuardedExchange) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return retry(ctx, g, "ticker", func() (domain.Ticker, error) { return g.inner.GetTicker(ctx, symbol) })
}

func (g *GuardedExchange) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	return retry(ctx, g, "candles", func() ([]domain.Candle, error) { return g.inner.GetCandles(ctx, symbol, timeframe, limit) })
}

func (g *GuardedExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return g.inner.CancelOrder(ctx, symbol, orderID)
}

// PlaceMarketOrder is sent at most once. A failed market order may still
// have executed, so it is reported rather than retried.
func (g *GuardedExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	now := g.now()
	metrics.OrdersAttempted.Inc()

	if !g.allowBreaker(now) {
		metrics.OrdersSuppressed.Inc()
		return domain.Fill{}, ErrBreakerOpen
	}
	if g.rateExceeded(now) {
		metrics.OrdersSuppressed.Inc()
		g.releaseProbe()
		return domain.Fill{}, ErrRateLimited
	}

	fill, err := g.inner.PlaceMarketOrder(ctx, symbol, side, quantity)
	if err != nil {
		g.noteFailure(now)
		return fill, err
	}
	g.noteSuccess(now)
	return fill, nil
}

func (g *GuardedExchange) rateExceeded(now time.Time) bool {
	g.rateMu.Lock()
	defer g.rateMu.Unlock()
	oneMin := now.Add(-time.Minute)
	j := 0
	for _, t := range g.orderTimes {
		if t.After(oneMin) {
			g.orderTimes[j] = t
			j++
		}
	}
	g.orderTimes = g.orderTimes[:j]
	return g.cfg.OrdersPerMinute > 0 && len(g.orderTimes) >= g.cfg.OrdersPerMinute
}

func (g *GuardedExchange) rateNote(t time.Time) {
	g.rateMu.Lock()
	g.orderTimes = append(g.orderTimes, t)
	g.rateMu.Unlock()
}

func (g *GuardedExchange) allowBreaker(now time.Time) bool {
	g.bMu.Lock()
	defer g.bMu.Unlock()

	switch g.bState {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.Sub(g.openedAt) >= g.cfg.BreakerCooldown {
			g.setState(breakerHalfOpen)
			g.probing = true
			return true
		}
		return false
	case breakerHalfOpen:
		if !g.probing {
			g.probing = true
			return true
		}
		return false
	default:
		return false
	}
}

func (g *GuardedExchange) releaseProbe() {
	g.bMu.Lock()
	g.probing = false
	g.bMu.Unlock()
}

func (g *GuardedExchange) noteSuccess(now time.Time) {
	g.rateNote(now)
	metrics.OrdersPlaced.Inc()

	g.bMu.Lock()
	defer g.bMu.Unlock()
	g.failStreak = 0
	g.probing = false
	if g.bState != breakerClosed {
		g.logger.Info("Circuit breaker closed")
		g.setState(breakerClosed)
	}
}

func (g *GuardedExchange) noteFailure(now time.Time) {
	g.rateNote(now)

	g.bMu.Lock()
	defer g.bMu.Unlock()
	g.probing = false

	switch g.bState {
	case breakerClosed:
		g.failStreak++
		if g.failStreak >= g.cfg.BreakerThreshold {
			g.openedAt = now
			g.setState(breakerOpen)
			g.logger.Warn("Circuit breaker opened", zap.Int("failures", g.failStreak), zap.Duration("cooldown", g.cfg.BreakerCooldown))
		}
	case breakerHalfOpen:
		g.openedAt = now
		g.setState(breakerOpen)
		g.logger.Warn("Circuit breaker probe failed, reopening")
	}
}

// setState must be called with bMu held.
func (g *GuardedExchange) setState(s breakerState) {
	g.bState = s
	metrics.BreakerState.Set(float64(s))
}
