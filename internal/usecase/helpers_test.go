package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"go.uber.org/zap"
)

const testSymbol = "BTC/USDT"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeVenue is a thread-safe in-memory venue. Market orders fill at the
// configured price unless reportFill is false.
type fakeVenue struct {
	mu         sync.Mutex
	price      decimal.Decimal
	balances   map[string]decimal.Decimal
	reportFill bool
	fillPrice  decimal.Decimal
	delay      time.Duration

	priceErr   error
	balanceErr error
	orderErr   error

	orders     []domain.Side
	openOrders []domain.Order
	cancelled  []string
	queries    int
}

func newFakeVenue(price, quoteBalance string) *fakeVenue {
	return &fakeVenue{
		price:    dec(price),
		balances: map[string]decimal.Decimal{"USDT": dec(quoteBalance)},
	}
}

func (f *fakeVenue) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return f.price, f.priceErr
}

func (f *fakeVenue) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.balanceErr != nil {
		return decimal.Zero, f.balanceErr
	}
	return f.balances[currency], nil
}

func (f *fakeVenue) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return domain.Fill{}, f.orderErr
	}
	f.orders = append(f.orders, side)
	if !f.reportFill {
		return domain.Fill{OrderID: "ord"}, nil
	}
	price := f.price
	if f.fillPrice.IsPositive() {
		price = f.fillPrice
	}
	return domain.Fill{OrderID: "ord", Price: price, Quantity: quantity}, nil
}

func (f *fakeVenue) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Order(nil), f.openOrders...), nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeVenue) setPrice(p string) {
	f.mu.Lock()
	f.price = dec(p)
	f.mu.Unlock()
}

func (f *fakeVenue) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// MockVenue is used where the test asserts which venue calls happen.
type MockVenue struct {
	mock.Mock
}

func (m *MockVenue) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockVenue) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockVenue) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	args := m.Called(ctx, symbol, side, quantity)
	return args.Get(0).(domain.Fill), args.Error(1)
}

func (m *MockVenue) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockVenue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	args := m.Called(ctx, symbol, orderID)
	return args.Error(0)
}

func staticSignal(sig domain.Signal) domain.SignalSource {
	return domain.SignalFunc(func(ctx context.Context) (domain.Signal, error) { return sig, nil })
}

var errVenueDown = errors.New("venue unreachable")

type engineFixture struct {
	engine *Engine
	ledger *Ledger
	status *StatusStore
}

func newTestEngine(t *testing.T, venue domain.Venue, risk RiskConfig, opts ...EngineOption) engineFixture {
	t.Helper()
	ledger := NewLedger(testSymbol)
	status := NewStatusStore("paper", testSymbol, dec("9"))
	engine, err := NewEngine(EngineConfig{
		Symbol:           testSymbol,
		InvestmentAmount: dec("9"),
		Risk:             risk,
	}, venue, nil, ledger, status, zap.NewNop(), opts...)
	require.NoError(t, err)
	return engineFixture{engine: engine, ledger: ledger, status: status}
}

func countKinds(l *Ledger) (opens, closes int) {
	for rec := range l.History() {
		switch rec.Kind {
		case domain.TradeOpen:
			opens++
		case domain.TradeClose:
			closes++
		}
	}
	return opens, closes
}
