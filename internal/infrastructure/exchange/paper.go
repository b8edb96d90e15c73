package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/id"
)

// PaperVenue fills market orders instantly at the live price reported by
// prices, against simulated balances. Nothing is sent to the venue.
type PaperVenue struct {
	prices domain.MarketData
	now    func() time.Time

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	fills    int
}

func NewPaperVenue(prices domain.MarketData, balances map[string]decimal.Decimal) *PaperVenue {
	b := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	return &PaperVenue{prices: prices, balances: b, now: time.Now}
}

func (p *PaperVenue) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return p.prices.GetTicker(ctx, symbol)
}

func (p *PaperVenue) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	return p.prices.GetCandles(ctx, symbol, timeframe, limit)
}

func (p *PaperVenue) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t, err := p.prices.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Last, nil
}

func (p *PaperVenue) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[currency], nil
}

// PlaceMarketOrder moves balances as if the order filled at the last price.
func (p *PaperVenue) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	m, err := domain.ParseMarket(symbol)
	if err != nil {
		return domain.Fill{}, err
	}
	price, err := p.LastPrice(ctx, symbol)
	if err != nil {
		return domain.Fill{}, err
	}
	if !price.IsPositive() {
		return domain.Fill{}, fmt.Errorf("paper: no price for %s", symbol)
	}
	cost := price.Mul(quantity)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch side {
	case domain.SideBuy:
		if p.balances[m.Quote].LessThan(cost) {
			return domain.Fill{}, fmt.Errorf("paper: insufficient %s: have %s, need %s", m.Quote, p.balances[m.Quote], cost)
		}
		p.balances[m.Quote] = p.balances[m.Quote].Sub(cost)
		p.balances[m.Base] = p.balances[m.Base].Add(quantity)
	case domain.SideSell:
		if p.balances[m.Base].LessThan(quantity) {
			return domain.Fill{}, fmt.Errorf("paper: insufficient %s: have %s, need %s", m.Base, p.balances[m.Base], quantity)
		}
		p.balances[m.Base] = p.balances[m.Base].Sub(quantity)
		p.balances[m.Quote] = p.balances[m.Quote].Add(cost)
	default:
		return domain.Fill{}, fmt.Errorf("paper: invalid side %q", side)
	}
	p.fills++

	return domain.Fill{
		OrderID:  "paper-" + id.New(p.now()),
		Price:    price,
		Quantity: quantity,
	}, nil
}

// ListOpenOrders is always empty: paper orders fill immediately.
func (p *PaperVenue) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}

func (p *PaperVenue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return fmt.Errorf("paper: order %s not found", orderID)
}

// Fills is the number of simulated executions so far.
func (p *PaperVenue) Fills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fills
}
