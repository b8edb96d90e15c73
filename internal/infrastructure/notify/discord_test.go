package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

func TestDiscordNotifier_NotifyTrade(t *testing.T) {
	var payload struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Color       int    `json:"color"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	profit := decimal.RequireFromString("-1.5")
	d := NewDiscordNotifier(srv.URL)
	err := d.NotifyTrade(context.Background(), domain.TradeRecord{
		Symbol:         "BTC/USDT",
		Kind:           domain.TradeClose,
		Price:          decimal.RequireFromString("29000"),
		Quantity:       decimal.RequireFromString("0.001"),
		Reason:         domain.ReasonStopLoss,
		Timestamp:      time.Now(),
		FillConfirmed:  true,
		RealizedProfit: &profit,
	})
	require.NoError(t, err)
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "CLOSE BTC/USDT", payload.Embeds[0].Title)
	assert.Contains(t, payload.Embeds[0].Description, "Profit: -1.5")
	assert.Contains(t, payload.Embeds[0].Description, "stop_loss")
	assert.Equal(t, colorRed, payload.Embeds[0].Color)
}

func TestDiscordNotifier_Disabled(t *testing.T) {
	d := NewDiscordNotifier("")
	assert.False(t, d.Enabled())
	assert.NoError(t, d.NotifyTrade(context.Background(), domain.TradeRecord{}))
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).SendAlert(context.Background(), "t", "m", colorBlue, time.Now())
	assert.ErrorContains(t, err, "429")
}
