package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

// TradeExecutor places market orders on the venue and wraps failures as
// VenueOrderError.
type TradeExecutor struct {
	venue  domain.Venue
	logger *zap.Logger
}

func NewTradeExecutor(venue domain.Venue, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		venue:  venue,
		logger: logger,
	}
}

func (e *TradeExecutor) Execute(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.Fill{}, &domain.VenueOrderError{Side: side, Err: fmt.Errorf("invalid side: %s", side)}
	}
	if !quantity.IsPositive() {
		return domain.Fill{}, &domain.VenueOrderError{Side: side, Err: fmt.Errorf("invalid quantity: %s", quantity)}
	}

	e.logger.Info("Placing market order",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Stringer("quantity", quantity))

	fill, err := e.venue.PlaceMarketOrder(ctx, symbol, side, quantity)
	if err != nil {
		metrics.OrdersFailed.Inc()
		return domain.Fill{}, &domain.VenueOrderError{Side: side, Err: err}
	}

	e.logger.Info("Market order filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("order_id", fill.OrderID),
		zap.Stringer("fill_price", fill.Price),
		zap.Stringer("fill_quantity", fill.Quantity))
	return fill, nil
}
