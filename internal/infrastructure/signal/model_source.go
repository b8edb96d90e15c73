package signal

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// Predictor scores a feature vector. Scores above the threshold mean BUY.
type Predictor interface {
	Predict(features []float32) (float32, error)
}

// Feature layouts understood by ModelSource.
const (
	// FeaturesCloses feeds the last Window closing prices, shape [1, Window].
	FeaturesCloses = "closes"
	// FeaturesOHLCV feeds the latest candle's open, high, low, close and
	// volume, shape [1, 1, 5].
	FeaturesOHLCV = "ohlcv"
)

type ModelConfig struct {
	Symbol    string
	Timeframe string
	// Candles fetched per prediction; must cover Window.
	Candles   int
	Window    int
	Threshold float32
	Features  string
}

// InputShape returns the model input tensor shape for cfg.
func (cfg ModelConfig) InputShape() []int64 {
	if cfg.Features == FeaturesOHLCV {
		return []int64{1, 1, 5}
	}
	return []int64{1, int64(cfg.Window)}
}

// ModelSource produces signals from a trained classifier over recent candles.
type ModelSource struct {
	market    domain.MarketData
	predictor Predictor
	cfg       ModelConfig
	logger    *zap.Logger
}

func NewModelSource(market domain.MarketData, predictor Predictor, cfg ModelConfig, logger *zap.Logger) (*ModelSource, error) {
	if cfg.Window <= 0 {
		cfg.Window = 50
	}
	if cfg.Candles < cfg.Window {
		cfg.Candles = max(100, cfg.Window)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1h"
	}
	switch cfg.Features {
	case "":
		cfg.Features = FeaturesCloses
	case FeaturesCloses, FeaturesOHLCV:
	default:
		return nil, fmt.Errorf("unknown feature layout %q", cfg.Features)
	}
	return &ModelSource{market: market, predictor: predictor, cfg: cfg, logger: logger}, nil
}

func (s *ModelSource) Signal(ctx context.Context) (domain.Signal, error) {
	candles, err := s.market.GetCandles(ctx, s.cfg.Symbol, s.cfg.Timeframe, s.cfg.Candles)
	if err != nil {
		return domain.SignalUnknown, fmt.Errorf("fetch candles: %w", err)
	}

	features, err := s.features(candles)
	if err != nil {
		return domain.SignalUnknown, err
	}

	score, err := s.predictor.Predict(features)
	if err != nil {
		return domain.SignalUnknown, err
	}

	sig := domain.SignalSell
	if score > s.cfg.Threshold {
		sig = domain.SignalBuy
	}
	s.logger.Debug("Model prediction",
		zap.Float32("score", score),
		zap.Float32("threshold", s.cfg.Threshold),
		zap.String("signal", sig.String()))
	return sig, nil
}

func (s *ModelSource) features(candles []domain.Candle) ([]float32, error) {
	if s.cfg.Features == FeaturesOHLCV {
		if len(candles) == 0 {
			return nil, fmt.Errorf("no candles")
		}
		c := candles[len(candles)-1]
		return []float32{float32(c.Open), float32(c.High), float32(c.Low), float32(c.Close), float32(c.Volume)}, nil
	}

	if len(candles) < s.cfg.Window {
		return nil, fmt.Errorf("not enough candles: need %d, got %d", s.cfg.Window, len(candles))
	}
	out := make([]float32, 0, s.cfg.Window)
	for _, c := range candles[len(candles)-s.cfg.Window:] {
		out = append(out, float32(c.Close))
	}
	return out, nil
}
