package usecase

import (
	"maps"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// ErrorDescriptor is the last error as shown to operators.
type ErrorDescriptor struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EngineStatus is a point-in-time copy of the shared bot state.
type EngineStatus struct {
	Mode             string          `json:"mode"`
	Symbol           string          `json:"symbol"`
	InvestmentAmount decimal.Decimal `json:"investment_amount"`

	// Scheduler Loop
	Running      bool       `json:"running"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastCheck    *time.Time `json:"last_check,omitempty"`
	TicksSkipped uint64     `json:"ticks_skipped"`

	// Execution Engine
	LastSignal     domain.Signal    `json:"last_signal,omitempty"`
	LastAction     string           `json:"last_action,omitempty"`
	ActivePosition *domain.Position `json:"active_position,omitempty"`
	LastError      *ErrorDescriptor `json:"last_error,omitempty"`

	// Balance Refresher
	Balances          map[string]decimal.Decimal `json:"balances"`
	Prices            map[string]domain.Ticker   `json:"prices"`
	OpenOrders        int                        `json:"open_orders"`
	MarketRefreshedAt *time.Time                 `json:"market_refreshed_at,omitempty"`
}

// StatusStore holds the single shared EngineStatus. Each field group has
// exactly one writer (see EngineStatus); readers only ever get copies.
type StatusStore struct {
	mu      sync.RWMutex
	s       EngineStatus
	version uint64
}

func NewStatusStore(mode, symbol string, investment decimal.Decimal) *StatusStore {
	return &StatusStore{
		s: EngineStatus{
			Mode:             mode,
			Symbol:           symbol,
			InvestmentAmount: investment,
			Balances:         make(map[string]decimal.Decimal),
			Prices:           make(map[string]domain.Ticker),
		},
	}
}

func (st *StatusStore) update(fn func(s *EngineStatus)) {
	st.mu.Lock()
	fn(&st.s)
	st.version++
	st.mu.Unlock()
}

// Snapshot returns a deep copy of the current status.
func (st *StatusStore) Snapshot() EngineStatus {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := st.s
	out.Balances = maps.Clone(st.s.Balances)
	out.Prices = maps.Clone(st.s.Prices)
	if st.s.ActivePosition != nil {
		p := *st.s.ActivePosition
		out.ActivePosition = &p
	}
	if st.s.LastError != nil {
		e := *st.s.LastError
		out.LastError = &e
	}
	return out
}

// Version increases on every write. The websocket hub uses it to skip
// unchanged broadcasts.
func (st *StatusStore) Version() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.version
}

// --- Scheduler Loop fields ---

func (st *StatusStore) SetRunning(running bool, at time.Time) {
	st.update(func(s *EngineStatus) {
		s.Running = running
		if running {
			s.StartedAt = &at
			s.LastError = nil
		}
	})
}

func (st *StatusStore) MarkChecked(at time.Time) {
	st.update(func(s *EngineStatus) { s.LastCheck = &at })
}

func (st *StatusStore) SetTicksSkipped(n uint64) {
	st.update(func(s *EngineStatus) { s.TicksSkipped = n })
}

// --- Execution Engine fields ---

func (st *StatusStore) SetSignal(sig domain.Signal) {
	st.update(func(s *EngineStatus) { s.LastSignal = sig })
}

func (st *StatusStore) SetPosition(p *domain.Position) {
	st.update(func(s *EngineStatus) {
		if p == nil {
			s.ActivePosition = nil
			return
		}
		cp := *p
		s.ActivePosition = &cp
	})
}

func (st *StatusStore) SetLastAction(action string) {
	st.update(func(s *EngineStatus) { s.LastAction = action })
}

func (st *StatusStore) SetError(err error, at time.Time) {
	if err == nil {
		return
	}
	st.update(func(s *EngineStatus) {
		s.LastError = &ErrorDescriptor{
			Kind:    domain.ErrorKind(err),
			Message: err.Error(),
			At:      at,
		}
	})
}

// --- Balance Refresher fields ---

// SetMarket merges the refreshed balances and prices into the cache. Entries
// that failed to refresh keep their previous value.
func (st *StatusStore) SetMarket(balances map[string]decimal.Decimal, prices map[string]domain.Ticker, openOrders int, at time.Time) {
	st.update(func(s *EngineStatus) {
		maps.Copy(s.Balances, balances)
		maps.Copy(s.Prices, prices)
		if openOrders >= 0 {
			s.OpenOrders = openOrders
		}
		s.MarketRefreshedAt = &at
	})
}
