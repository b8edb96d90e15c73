package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Market splits a "BASE/QUOTE" trading symbol.
type Market struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParseMarket accepts "BTC/USDT", "BTC-USDT" and "BTC_USDT".
func ParseMarket(symbol string) (Market, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if base, quote, ok := strings.Cut(s, sep); ok && base != "" && quote != "" {
			return Market{Base: base, Quote: quote}, nil
		}
	}
	return Market{}, fmt.Errorf("invalid symbol %q, want BASE/QUOTE", symbol)
}

func (m Market) String() string { return m.Base + "/" + m.Quote }

// Ticker is the venue's top-of-book view of a symbol.
type Ticker struct {
	Symbol string          `json:"symbol"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Last   decimal.Decimal `json:"last"`
}

type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Fill is what the venue reports back for an executed market order.
// Zero values mean the venue did not report that field.
type Fill struct {
	OrderID  string          `json:"order_id"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Order is a resting order on the venue.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}
