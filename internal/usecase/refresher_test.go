package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"go.uber.org/zap"
)

type fakeMarketData struct {
	ticker domain.Ticker
	err    error
}

func (m *fakeMarketData) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return m.ticker, m.err
}

func (m *fakeMarketData) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	return nil, nil
}

func TestRefresher_Refresh(t *testing.T) {
	venue := newFakeVenue("30000", "100")
	venue.balances["BTC"] = dec("0.5")
	venue.openOrders = []domain.Order{{ID: "x"}}
	md := &fakeMarketData{ticker: domain.Ticker{Symbol: testSymbol, Bid: dec("29999"), Ask: dec("30001"), Last: dec("30000")}}
	status := NewStatusStore("paper", testSymbol, dec("9"))

	r, err := NewRefresher(venue, md, testSymbol, status, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, r.interval)

	r.Refresh(context.Background())
	snap := status.Snapshot()
	assert.True(t, snap.Balances["USDT"].Equal(dec("100")))
	assert.True(t, snap.Balances["BTC"].Equal(dec("0.5")))
	assert.True(t, snap.Prices[testSymbol].Last.Equal(dec("30000")))
	assert.Equal(t, 1, snap.OpenOrders)
	assert.NotNil(t, snap.MarketRefreshedAt)
}

func TestRefresher_FailuresKeepPreviousValues(t *testing.T) {
	venue := newFakeVenue("30000", "100")
	md := &fakeMarketData{ticker: domain.Ticker{Symbol: testSymbol, Last: dec("30000")}}
	status := NewStatusStore("paper", testSymbol, dec("9"))
	r, err := NewRefresher(venue, md, testSymbol, status, time.Minute, zap.NewNop())
	require.NoError(t, err)
	r.Refresh(context.Background())

	venue.mu.Lock()
	venue.balanceErr = errVenueDown
	venue.mu.Unlock()
	md.err = errors.New("ticker down")
	r.Refresh(context.Background())

	snap := status.Snapshot()
	assert.True(t, snap.Balances["USDT"].Equal(dec("100")))
	assert.True(t, snap.Prices[testSymbol].Last.Equal(dec("30000")))
	assert.Nil(t, snap.LastError)
}

func TestRefresher_StartStopsWithContext(t *testing.T) {
	venue := newFakeVenue("30000", "42")
	status := NewStatusStore("paper", testSymbol, dec("9"))
	r, err := NewRefresher(venue, nil, testSymbol, status, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	assert.Eventually(t, func() bool {
		return status.Snapshot().Balances["USDT"].Equal(decimal.NewFromInt(42))
	}, time.Second, 5*time.Millisecond)
}

func TestNewRefresher_BadSymbol(t *testing.T) {
	_, err := NewRefresher(newFakeVenue("1", "1"), nil, "BTCUSDT", NewStatusStore("paper", "BTCUSDT", dec("9")), time.Minute, zap.NewNop())
	assert.Error(t, err)
}
