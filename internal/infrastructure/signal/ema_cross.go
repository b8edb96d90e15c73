package signal

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// EMA calculates the exponential moving average of closes, seeded with the
// simple average of the first period values.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period, len(closes))
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += closes[i]
	}
	ema := sma / float64(period)

	for i := period; i < len(closes); i++ {
		ema = (closes[i]-ema)*multiplier + ema
	}
	return ema, nil
}

// EMACrossSource signals BUY while the fast EMA is above the slow one and
// SELL while it is below. Equal averages yield no signal.
type EMACrossSource struct {
	market    domain.MarketData
	symbol    string
	timeframe string
	fast      int
	slow      int
	logger    *zap.Logger
}

func NewEMACrossSource(market domain.MarketData, symbol, timeframe string, fast, slow int, logger *zap.Logger) (*EMACrossSource, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("invalid EMA periods fast=%d slow=%d", fast, slow)
	}
	if timeframe == "" {
		timeframe = "1h"
	}
	return &EMACrossSource{market: market, symbol: symbol, timeframe: timeframe, fast: fast, slow: slow, logger: logger}, nil
}

func (s *EMACrossSource) Signal(ctx context.Context) (domain.Signal, error) {
	candles, err := s.market.GetCandles(ctx, s.symbol, s.timeframe, s.slow*3)
	if err != nil {
		return domain.SignalUnknown, fmt.Errorf("fetch candles: %w", err)
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast, err := EMA(closes, s.fast)
	if err != nil {
		return domain.SignalUnknown, err
	}
	slow, err := EMA(closes, s.slow)
	if err != nil {
		return domain.SignalUnknown, err
	}

	s.logger.Debug("EMA cross", zap.Float64("fast", fast), zap.Float64("slow", slow))
	switch {
	case fast > slow:
		return domain.SignalBuy, nil
	case fast < slow:
		return domain.SignalSell, nil
	default:
		return domain.SignalUnknown, fmt.Errorf("EMA(%d) equals EMA(%d)", s.fast, s.slow)
	}
}
