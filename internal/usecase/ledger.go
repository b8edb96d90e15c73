package usecase

import (
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/id"
)

// Ledger owns the single active-position slot and the append-only trade
// history. Mutations are expected to be serialized by the Engine; the
// internal lock only makes concurrent reads from the web layer safe.
type Ledger struct {
	symbol string

	mu      sync.RWMutex
	current *domain.Position
	history []domain.TradeRecord
}

func NewLedger(symbol string) *Ledger {
	return &Ledger{symbol: symbol}
}

// RecordOption annotates the trade record appended by Open or Close.
type RecordOption func(*domain.TradeRecord)

func WithReason(r domain.ExitReason) RecordOption {
	return func(rec *domain.TradeRecord) { rec.Reason = r }
}

func WithFillConfirmed(ok bool) RecordOption {
	return func(rec *domain.TradeRecord) { rec.FillConfirmed = ok }
}

// Open starts a position and appends an OPEN record.
func (l *Ledger) Open(entryPrice, quantity decimal.Decimal, ts time.Time, opts ...RecordOption) (domain.Position, error) {
	if !entryPrice.IsPositive() || !quantity.IsPositive() {
		return domain.Position{}, fmt.Errorf("open: price %s and quantity %s must be positive", entryPrice, quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		return domain.Position{}, domain.ErrConflict
	}

	pos := domain.Position{
		Symbol:     l.symbol,
		Side:       domain.SideBuy,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		OpenedAt:   ts,
	}
	rec := domain.TradeRecord{
		ID:        id.New(ts),
		Symbol:    l.symbol,
		Kind:      domain.TradeOpen,
		Quantity:  quantity,
		Price:     entryPrice,
		Timestamp: ts,
	}
	for _, o := range opts {
		o(&rec)
	}

	l.current = &pos
	l.history = append(l.history, rec)
	return pos, nil
}

// Close exits the open position at exitPrice and appends a CLOSE record
// carrying the realized profit.
func (l *Ledger) Close(exitPrice decimal.Decimal, ts time.Time, opts ...RecordOption) (domain.TradeRecord, error) {
	if !exitPrice.IsPositive() {
		return domain.TradeRecord{}, fmt.Errorf("close: price %s must be positive", exitPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return domain.TradeRecord{}, domain.ErrNoPosition
	}

	pos := *l.current
	entry := pos.EntryPrice
	profit := domain.RealizedProfit(entry, exitPrice, pos.Quantity)
	rec := domain.TradeRecord{
		ID:             id.New(ts),
		Symbol:         l.symbol,
		Kind:           domain.TradeClose,
		Quantity:       pos.Quantity,
		Price:          exitPrice,
		Timestamp:      ts,
		EntryPrice:     &entry,
		RealizedProfit: &profit,
	}
	for _, o := range opts {
		o(&rec)
	}

	l.current = nil
	l.history = append(l.history, rec)
	return cloneRecord(rec), nil
}

// Current returns a copy of the open position, or nil when flat.
func (l *Ledger) Current() *domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return nil
	}
	p := *l.current
	return &p
}

// History yields the trade records in insertion order. Each iteration
// walks the history as it was when the iteration started.
func (l *Ledger) History() iter.Seq[domain.TradeRecord] {
	return func(yield func(domain.TradeRecord) bool) {
		l.mu.RLock()
		snapshot := l.history[:len(l.history):len(l.history)]
		l.mu.RUnlock()

		for _, rec := range snapshot {
			if !yield(cloneRecord(rec)) {
				return
			}
		}
	}
}

// Last returns the most recent record.
func (l *Ledger) Last() (domain.TradeRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.history) == 0 {
		return domain.TradeRecord{}, false
	}
	return cloneRecord(l.history[len(l.history)-1]), true
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.history)
}

func cloneRecord(rec domain.TradeRecord) domain.TradeRecord {
	if rec.EntryPrice != nil {
		v := *rec.EntryPrice
		rec.EntryPrice = &v
	}
	if rec.RealizedProfit != nil {
		v := *rec.RealizedProfit
		rec.RealizedProfit = &v
	}
	return rec
}
