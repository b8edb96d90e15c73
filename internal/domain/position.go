package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is the single open trade tracked by the ledger.
// Only BUY-entered (long spot) positions exist.
type Position struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// Age returns how long the position has been open at now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}

// UnrealizedPnL values the position at price.
func (p Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.EntryPrice).Mul(p.Quantity)
}

type TradeKind string

const (
	TradeOpen  TradeKind = "OPEN"
	TradeClose TradeKind = "CLOSE"
)

// ExitReason records why an action was taken.
type ExitReason string

const (
	ReasonSignal     ExitReason = "signal"
	ReasonStopLoss   ExitReason = "stop_loss"
	ReasonTakeProfit ExitReason = "take_profit"
	ReasonTimeout    ExitReason = "timeout"
	ReasonManual     ExitReason = "manual"
)

// TradeRecord is one entry of the append-only trade history.
type TradeRecord struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Kind      TradeKind       `json:"kind"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    ExitReason      `json:"reason,omitempty"`
	// FillConfirmed is false when Price fell back to the last ticker price
	// because the venue did not report a fill price.
	FillConfirmed bool `json:"fill_confirmed"`

	// CLOSE only.
	EntryPrice     *decimal.Decimal `json:"entry_price,omitempty"`
	RealizedProfit *decimal.Decimal `json:"realized_profit,omitempty"`
}

// RealizedProfit computes (exit - entry) * quantity for a long position.
func RealizedProfit(entry, exit, quantity decimal.Decimal) decimal.Decimal {
	return exit.Sub(entry).Mul(quantity)
}
