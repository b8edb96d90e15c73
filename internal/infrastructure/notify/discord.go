package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
	colorBlue  = 0x3498db
)

// DiscordNotifier posts trade alerts to a Discord webhook. It is a no-op
// when no webhook is configured.
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *DiscordNotifier) Enabled() bool { return d.enabled }

func (d *DiscordNotifier) NotifyTrade(ctx context.Context, rec domain.TradeRecord) error {
	title := fmt.Sprintf("%s %s", rec.Kind, rec.Symbol)
	msg := fmt.Sprintf("Price: %s\nQuantity: %s\nReason: %s", rec.Price, rec.Quantity, rec.Reason)
	color := colorBlue
	if rec.RealizedProfit != nil {
		msg += fmt.Sprintf("\nProfit: %s", rec.RealizedProfit)
		color = colorGreen
		if rec.RealizedProfit.IsNegative() {
			color = colorRed
		}
	}
	if !rec.FillConfirmed {
		msg += "\n(price from ticker, fill not confirmed)"
	}
	return d.SendAlert(ctx, title, msg, color, rec.Timestamp)
}

func (d *DiscordNotifier) SendAlert(ctx context.Context, title, message string, color int, at time.Time) error {
	if !d.enabled {
		return nil
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"footer": map[string]string{
					"text": "crypto signal bot",
				},
				"timestamp": at.UTC().Format(time.RFC3339),
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}
