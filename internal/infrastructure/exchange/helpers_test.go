package exchange

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stubExchange returns queued errors before succeeding.
type stubExchange struct {
	mu         sync.Mutex
	price      decimal.Decimal
	priceErrs  []error
	orderErr   error
	orderCalls int
	priceCalls int
	candles    []domain.Candle
}

func (s *stubExchange) next() error {
	if len(s.priceErrs) == 0 {
		return nil
	}
	err := s.priceErrs[0]
	s.priceErrs = s.priceErrs[1:]
	return err
}

func (s *stubExchange) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceCalls++
	if err := s.next(); err != nil {
		return decimal.Zero, err
	}
	return s.price, nil
}

func (s *stubExchange) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}

func (s *stubExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal) (domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderCalls++
	if s.orderErr != nil {
		return domain.Fill{}, s.orderErr
	}
	return domain.Fill{OrderID: "1", Price: s.price, Quantity: qty}, nil
}

func (s *stubExchange) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (s *stubExchange) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceCalls++
	if err := s.next(); err != nil {
		return domain.Ticker{}, err
	}
	return domain.Ticker{Symbol: symbol, Last: s.price}, nil
}

func (s *stubExchange) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	return s.candles, nil
}
