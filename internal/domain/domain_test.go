package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarket(t *testing.T) {
	tests := []struct {
		in      string
		base    string
		quote   string
		wantErr bool
	}{
		{in: "BTC/USDT", base: "BTC", quote: "USDT"},
		{in: "eth-usdt", base: "ETH", quote: "USDT"},
		{in: " SOL_USDC ", base: "SOL", quote: "USDC"},
		{in: "BTCUSDT", wantErr: true},
		{in: "/USDT", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMarket(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, m.Base)
			assert.Equal(t, tt.quote, m.Quote)
			assert.Equal(t, tt.base+"/"+tt.quote, m.String())
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, KindSignalUnavailable, ErrorKind(fmt.Errorf("%w: no model", ErrSignalUnavailable)))
	assert.Equal(t, KindVenueQuery, ErrorKind(&VenueQueryError{Op: "price", Err: errors.New("x")}))
	assert.Equal(t, KindVenueOrder, ErrorKind(fmt.Errorf("wrapped: %w", &VenueOrderError{Side: SideBuy, Err: errors.New("x")})))
	assert.Equal(t, KindConflict, ErrorKind(ErrConflict))
	assert.Equal(t, KindNoPosition, ErrorKind(ErrNoPosition))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("other")))
}

func TestPositionPnL(t *testing.T) {
	opened := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Position{EntryPrice: decimal.RequireFromString("30000"), Quantity: decimal.RequireFromString("0.001"), OpenedAt: opened}
	assert.Equal(t, "1", p.UnrealizedPnL(decimal.RequireFromString("31000")).String())
	assert.Equal(t, 3*time.Hour, p.Age(opened.Add(3*time.Hour)))
	assert.Equal(t, "-1", RealizedProfit(p.EntryPrice, decimal.RequireFromString("29000"), p.Quantity).String())
}

func TestParseSignal(t *testing.T) {
	assert.Equal(t, SignalBuy, ParseSignal("buy"))
	assert.Equal(t, SignalBuy, ParseSignal("1"))
	assert.Equal(t, SignalSell, ParseSignal("SELL"))
	assert.Equal(t, SignalUnknown, ParseSignal("hold"))
	assert.Equal(t, "UNKNOWN", Signal("").String())
}
