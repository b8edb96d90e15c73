package usecase

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

type ActionKind string

const (
	ActionNone  ActionKind = "none"
	ActionOpen  ActionKind = "open"
	ActionClose ActionKind = "close"
)

// RiskConfig holds the optional exit rules. A zero field disables its rule.
type RiskConfig struct {
	// StopLoss is a ratio of entry price, e.g. 0.95 exits at a 5% loss.
	StopLoss decimal.Decimal
	// TakeProfit is a ratio of entry price, e.g. 1.05 exits at a 5% gain.
	TakeProfit decimal.Decimal
	// Timeout forces an exit once the position is this old.
	Timeout time.Duration
}

func (r RiskConfig) Enabled() bool {
	return r.StopLoss.IsPositive() || r.TakeProfit.IsPositive() || r.Timeout > 0
}

// Breach returns the exit reason triggered by price and now, or "".
func (r RiskConfig) Breach(pos domain.Position, price decimal.Decimal, now time.Time) domain.ExitReason {
	if price.IsPositive() {
		if r.StopLoss.IsPositive() && price.LessThanOrEqual(pos.EntryPrice.Mul(r.StopLoss)) {
			return domain.ReasonStopLoss
		}
		if r.TakeProfit.IsPositive() && price.GreaterThanOrEqual(pos.EntryPrice.Mul(r.TakeProfit)) {
			return domain.ReasonTakeProfit
		}
	}
	if r.Timeout > 0 && pos.Age(now) >= r.Timeout {
		return domain.ReasonTimeout
	}
	return ""
}

// Snapshot is the venue state the decision is taken against.
type Snapshot struct {
	AvailableQuoteBalance decimal.Decimal
	LastPrice             decimal.Decimal
}

// Decision is the outcome of Decide before anything touches the venue.
type Decision struct {
	Kind     ActionKind
	Reason   domain.ExitReason
	Quantity decimal.Decimal
	Note     string
}

// Decide applies the signal/position decision table plus the risk exits.
// It is pure: no venue or ledger access.
func Decide(sig domain.Signal, pos *domain.Position, snap Snapshot, investment decimal.Decimal, risk RiskConfig, now time.Time) Decision {
	if pos != nil {
		reason := risk.Breach(*pos, snap.LastPrice, now)
		if reason == "" {
			switch sig {
			case domain.SignalSell:
				reason = domain.ReasonSignal
			case domain.SignalBuy:
				return Decision{Kind: ActionNone, Note: "position already open"}
			default:
				return Decision{Kind: ActionNone, Note: "signal unknown"}
			}
		}
		if !snap.LastPrice.IsPositive() {
			return Decision{Kind: ActionNone, Note: "no price to close at"}
		}
		return Decision{Kind: ActionClose, Reason: reason, Quantity: pos.Quantity}
	}

	switch sig {
	case domain.SignalBuy:
	case domain.SignalSell:
		return Decision{Kind: ActionNone, Note: "no position to close"}
	default:
		return Decision{Kind: ActionNone, Note: "signal unknown"}
	}

	if !snap.LastPrice.IsPositive() {
		return Decision{Kind: ActionNone, Note: "no price to open at"}
	}
	if snap.AvailableQuoteBalance.LessThan(investment) {
		return Decision{Kind: ActionNone, Note: "insufficient balance"}
	}
	return Decision{
		Kind:     ActionOpen,
		Reason:   domain.ReasonSignal,
		Quantity: investment.Div(snap.LastPrice),
	}
}
