package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Venue is the narrow capability the core needs from a trading venue.
type Venue interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity decimal.Decimal) (Fill, error)
	ListOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// MarketData is used by the refresher and by signal sources that need features.
type MarketData interface {
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// Exchange is what concrete venue adapters implement.
type Exchange interface {
	Venue
	MarketData
}

// SignalSource produces the trading signal. Implementations must not block
// indefinitely and return ErrSignalUnavailable (possibly wrapped) when they
// have no answer.
type SignalSource interface {
	Signal(ctx context.Context) (Signal, error)
}

// TradeJournal is an audit sink for trade records. It is never read back
// into the ledger.
type TradeJournal interface {
	SaveTrade(ctx context.Context, rec TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]TradeRecord, error)
	Close() error
}

// Notifier pushes trade events to an operator channel.
type Notifier interface {
	NotifyTrade(ctx context.Context, rec TradeRecord) error
}

// SignalFunc adapts a function to SignalSource.
type SignalFunc func(ctx context.Context) (Signal, error)

func (f SignalFunc) Signal(ctx context.Context) (Signal, error) { return f(ctx) }
