package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_bot/internal/config"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Signal.Kind = "none"
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildAppPaper(t *testing.T) {
	cfg := testConfig(t)

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.journal)
	assert.IsType(t, &storage.SQLiteStore{}, a.journal)

	snap := a.status.Snapshot()
	assert.Equal(t, "paper", snap.Mode)
	assert.Equal(t, "BTC/USDT", snap.Symbol)
	assert.False(t, snap.Running)

	rr := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBuildAppJournalDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Driver = "none"

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.journal)
}

func TestNewSignalSource(t *testing.T) {
	cfg := testConfig(t)

	src, err := newSignalSource(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	sig, err := src.Signal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SignalUnknown, sig)

	cfg.Signal.Kind = "ema_cross"
	src, err = newSignalSource(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, src)

	cfg.Signal.Kind = "bogus"
	_, err = newSignalSource(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestRiskConfig(t *testing.T) {
	r := riskConfig(config.RiskConfig{StopLoss: 0.95, TakeProfit: 1.1, TradeTimeout: 2 * time.Hour})
	assert.True(t, r.StopLoss.Equal(decimal.RequireFromString("0.95")))
	assert.True(t, r.TakeProfit.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, 2*time.Hour, r.Timeout)
	assert.False(t, riskConfig(config.RiskConfig{}).Enabled())
}

type stubExchange struct {
	ticker    domain.Ticker
	tickerErr error
	balances  map[string]decimal.Decimal
	orders    []domain.Order
}

func (s *stubExchange) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return s.ticker, s.tickerErr
}

func (s *stubExchange) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	return nil, nil
}

func (s *stubExchange) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.ticker.Last, s.tickerErr
}

func (s *stubExchange) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	return s.balances[currency], nil
}

func (s *stubExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	return domain.Fill{}, errors.New("not supported")
}

func (s *stubExchange) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return s.orders, nil
}

func (s *stubExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return nil
}

func TestCheckVenue(t *testing.T) {
	market, err := domain.ParseMarket("BTC/USDT")
	require.NoError(t, err)
	venue := &stubExchange{
		ticker:   domain.Ticker{Symbol: "BTC/USDT", Last: decimal.NewFromInt(30000), Bid: decimal.NewFromInt(29999), Ask: decimal.NewFromInt(30001)},
		balances: map[string]decimal.Decimal{"USDT": decimal.NewFromInt(50)},
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, checkVenue(context.Background(), cmd, venue, market, true))
	assert.Contains(t, out.String(), "OK   ticker BTC/USDT: last=30000")
	assert.Contains(t, out.String(), "OK   balance USDT: 50")
	assert.Contains(t, out.String(), "OK   open orders: 0")

	out.Reset()
	require.NoError(t, checkVenue(context.Background(), cmd, venue, market, false))
	assert.Contains(t, out.String(), "SKIP balances")

	venue.tickerErr = errors.New("timeout")
	out.Reset()
	err = checkVenue(context.Background(), cmd, venue, market, false)
	assert.EqualError(t, err, "1 check(s) failed")
	assert.Contains(t, out.String(), "FAIL ticker")
}

func TestPrintTrades(t *testing.T) {
	profit := decimal.RequireFromString("1.5")
	entry := decimal.NewFromInt(30000)
	trades := []domain.TradeRecord{{
		ID:             "01",
		Symbol:         "BTC/USDT",
		Kind:           domain.TradeClose,
		Quantity:       decimal.RequireFromString("0.0003"),
		Price:          decimal.NewFromInt(35000),
		Timestamp:      time.Now(),
		Reason:         domain.ReasonSignal,
		FillConfirmed:  true,
		EntryPrice:     &entry,
		RealizedProfit: &profit,
	}}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, printTrades(cmd, trades))
	assert.Contains(t, out.String(), "CLOSE")
	assert.Contains(t, out.String(), "35000.0000")
	assert.Contains(t, out.String(), "1.5000")
}
