package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

type EngineConfig struct {
	Symbol           string
	InvestmentAmount decimal.Decimal
	Risk             RiskConfig
}

// Action is what one evaluation did. Err is set when the evaluation was
// aborted; it has already been recorded in the status store.
type Action struct {
	Kind   ActionKind          `json:"kind"`
	Signal domain.Signal       `json:"signal"`
	Reason domain.ExitReason   `json:"reason,omitempty"`
	Record *domain.TradeRecord `json:"record,omitempty"`
	Note   string              `json:"note,omitempty"`
	Err    error               `json:"-"`
}

func (a Action) String() string {
	switch a.Kind {
	case ActionOpen, ActionClose:
		return fmt.Sprintf("%s (%s)", a.Kind, a.Reason)
	}
	if a.Err != nil {
		return "none: " + a.Err.Error()
	}
	if a.Note != "" {
		return "none: " + a.Note
	}
	return string(ActionNone)
}

// Engine turns a signal plus a fresh venue snapshot into at most one ledger
// transition. Every decision runs under mu, so a scheduled tick and a
// manual trigger can never interleave.
type Engine struct {
	cfg      EngineConfig
	market   domain.Market
	venue    domain.Venue
	signals  domain.SignalSource
	ledger   *Ledger
	status   *StatusStore
	executor *TradeExecutor
	journal  domain.TradeJournal
	notifier domain.Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

type EngineOption func(*Engine)

func WithJournal(j domain.TradeJournal) EngineOption {
	return func(e *Engine) { e.journal = j }
}

func WithNotifier(n domain.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	cfg EngineConfig,
	venue domain.Venue,
	signals domain.SignalSource,
	ledger *Ledger,
	status *StatusStore,
	logger *zap.Logger,
	opts ...EngineOption,
) (*Engine, error) {
	market, err := domain.ParseMarket(cfg.Symbol)
	if err != nil {
		return nil, err
	}
	if !cfg.InvestmentAmount.IsPositive() {
		return nil, fmt.Errorf("investment amount must be positive, got %s", cfg.InvestmentAmount)
	}
	e := &Engine{
		cfg:      cfg,
		market:   market,
		venue:    venue,
		signals:  signals,
		ledger:   ledger,
		status:   status,
		executor: NewTradeExecutor(venue, logger),
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) Ledger() *Ledger { return e.ledger }

func (e *Engine) Market() domain.Market { return e.market }

// ReadSignal asks the signal source for the current signal. Any failure is
// recorded and reported as UNKNOWN.
func (e *Engine) ReadSignal(ctx context.Context) domain.Signal {
	sig, err := e.PeekSignal(ctx)
	if err != nil {
		e.fail(err)
	}
	return sig
}

// PeekSignal reads the signal without touching the status store. Failures
// return UNKNOWN and an error wrapping ErrSignalUnavailable.
func (e *Engine) PeekSignal(ctx context.Context) (domain.Signal, error) {
	if e.signals == nil {
		return domain.SignalUnknown, nil
	}
	sig, err := e.signals.Signal(ctx)
	if err != nil {
		return domain.SignalUnknown, fmt.Errorf("%w: %v", domain.ErrSignalUnavailable, err)
	}
	switch sig {
	case domain.SignalBuy, domain.SignalSell:
		return sig, nil
	default:
		return domain.SignalUnknown, nil
	}
}

// RunCycle is one scheduled evaluation: read the signal, then act on it.
func (e *Engine) RunCycle(ctx context.Context) Action {
	return e.Evaluate(ctx, e.ReadSignal(ctx))
}

// Evaluate acts on sig.
func (e *Engine) Evaluate(ctx context.Context, sig domain.Signal) Action {
	return e.evaluate(ctx, sig, "")
}

// ForceOpen is the manual BUY override.
func (e *Engine) ForceOpen(ctx context.Context) Action {
	return e.evaluate(ctx, domain.SignalBuy, domain.ReasonManual)
}

// ForceClose is the manual SELL override.
func (e *Engine) ForceClose(ctx context.Context) Action {
	return e.evaluate(ctx, domain.SignalSell, domain.ReasonManual)
}

func (e *Engine) evaluate(ctx context.Context, sig domain.Signal, override domain.ExitReason) Action {
	e.mu.Lock()
	action, committed := e.evaluateAndAct(ctx, sig, override)
	e.mu.Unlock()

	metrics.Evaluations.WithLabelValues(string(action.Kind)).Inc()
	if committed != nil {
		e.publish(ctx, *committed)
	}
	return action
}

// evaluateAndAct must be called with mu held.
func (e *Engine) evaluateAndAct(ctx context.Context, sig domain.Signal, override domain.ExitReason) (Action, *domain.TradeRecord) {
	// Manual triggers read no signal, so last_signal keeps the scheduled one.
	if override == "" {
		e.status.SetSignal(sig)
	}
	action := Action{Kind: ActionNone, Signal: sig}

	pos := e.ledger.Current()
	snap, err := e.snapshot(ctx, sig, pos)
	if err != nil {
		action.Err = e.fail(err)
		e.status.SetLastAction(action.String())
		return action, nil
	}

	now := e.now()
	d := Decide(sig, pos, snap, e.cfg.InvestmentAmount, e.cfg.Risk, now)
	action.Kind, action.Reason, action.Note = d.Kind, d.Reason, d.Note
	if override != "" && d.Reason == domain.ReasonSignal {
		action.Reason = override
	}

	var rec *domain.TradeRecord
	switch d.Kind {
	case ActionOpen:
		rec, err = e.open(ctx, d.Quantity, snap, action.Reason)
	case ActionClose:
		rec, err = e.close(ctx, pos, snap, action.Reason)
	default:
		e.logger.Debug("No action",
			zap.String("signal", sig.String()),
			zap.String("note", d.Note))
	}
	if err != nil {
		action.Kind, action.Reason, action.Err = ActionNone, "", e.fail(err)
	}
	action.Record = rec

	e.status.SetPosition(e.ledger.Current())
	e.status.SetLastAction(action.String())
	return action, rec
}

// snapshot reads only what the decision table needs, always fresh from the
// venue. Nothing is read when the outcome is NoAction regardless.
func (e *Engine) snapshot(ctx context.Context, sig domain.Signal, pos *domain.Position) (Snapshot, error) {
	var snap Snapshot
	needPrice := false
	needBalance := false
	if pos == nil {
		needPrice = sig == domain.SignalBuy
		needBalance = sig == domain.SignalBuy
	} else {
		needPrice = sig == domain.SignalSell || e.cfg.Risk.Enabled()
	}

	if needBalance {
		bal, err := e.venue.AvailableBalance(ctx, e.market.Quote)
		if err != nil {
			return snap, &domain.VenueQueryError{Op: "balance " + e.market.Quote, Err: err}
		}
		snap.AvailableQuoteBalance = bal
	}
	if needPrice {
		price, err := e.venue.LastPrice(ctx, e.cfg.Symbol)
		if err != nil {
			return snap, &domain.VenueQueryError{Op: "price " + e.cfg.Symbol, Err: err}
		}
		if !price.IsPositive() {
			return snap, &domain.VenueQueryError{Op: "price " + e.cfg.Symbol, Err: fmt.Errorf("non-positive price %s", price)}
		}
		snap.LastPrice = price
	}
	return snap, nil
}

func (e *Engine) open(ctx context.Context, qty decimal.Decimal, snap Snapshot, reason domain.ExitReason) (*domain.TradeRecord, error) {
	fill, err := e.executor.Execute(ctx, e.cfg.Symbol, domain.SideBuy, qty)
	if err != nil {
		return nil, err
	}

	price, confirmed := fillPrice(fill, snap.LastPrice)
	if fill.Quantity.IsPositive() {
		qty = fill.Quantity
	}
	pos, err := e.ledger.Open(price, qty, e.now(), WithReason(reason), WithFillConfirmed(confirmed))
	if err != nil {
		e.logger.Error("Order filled but ledger rejected open",
			zap.String("order_id", fill.OrderID), zap.Error(err))
		return nil, err
	}
	metrics.PositionOpen.Set(1)

	e.logger.Info("Position opened",
		zap.String("symbol", pos.Symbol),
		zap.Stringer("entry_price", pos.EntryPrice),
		zap.Stringer("quantity", pos.Quantity),
		zap.String("reason", string(reason)),
		zap.Bool("fill_confirmed", confirmed))
	rec, _ := e.ledger.Last()
	return &rec, nil
}

func (e *Engine) close(ctx context.Context, pos *domain.Position, snap Snapshot, reason domain.ExitReason) (*domain.TradeRecord, error) {
	fill, err := e.executor.Execute(ctx, e.cfg.Symbol, domain.SideSell, pos.Quantity)
	if err != nil {
		return nil, err
	}

	price, confirmed := fillPrice(fill, snap.LastPrice)
	rec, err := e.ledger.Close(price, e.now(), WithReason(reason), WithFillConfirmed(confirmed))
	if err != nil {
		e.logger.Error("Order filled but ledger rejected close",
			zap.String("order_id", fill.OrderID), zap.Error(err))
		return nil, err
	}
	metrics.PositionOpen.Set(0)
	profit, _ := rec.RealizedProfit.Float64()
	metrics.RealizedProfit.Add(profit)

	e.logger.Info("Position closed",
		zap.String("symbol", rec.Symbol),
		zap.Stringer("entry_price", rec.EntryPrice),
		zap.Stringer("exit_price", rec.Price),
		zap.Stringer("quantity", rec.Quantity),
		zap.Stringer("profit", rec.RealizedProfit),
		zap.String("reason", string(reason)),
		zap.Bool("fill_confirmed", confirmed))
	return &rec, nil
}

// CancelOpenOrders cancels every resting order for the symbol. It runs
// under the engine lock so it cannot race an order placement.
func (e *Engine) CancelOpenOrders(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders, err := e.venue.ListOpenOrders(ctx, e.cfg.Symbol)
	if err != nil {
		return 0, e.fail(&domain.VenueQueryError{Op: "open orders", Err: err})
	}
	cancelled := 0
	for _, o := range orders {
		if err := e.venue.CancelOrder(ctx, e.cfg.Symbol, o.ID); err != nil {
			return cancelled, e.fail(&domain.VenueOrderError{Side: o.Side, Err: fmt.Errorf("cancel %s: %w", o.ID, err)})
		}
		cancelled++
	}
	e.logger.Info("Cancelled open orders", zap.Int("count", cancelled))
	return cancelled, nil
}

// publish hands a committed record to the journal and notifier. Failures
// are logged only: the ledger is the source of truth.
func (e *Engine) publish(ctx context.Context, rec domain.TradeRecord) {
	if e.journal != nil {
		if err := e.journal.SaveTrade(ctx, rec); err != nil {
			e.logger.Error("Failed to journal trade", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyTrade(ctx, rec); err != nil {
			e.logger.Warn("Failed to send trade notification", zap.String("id", rec.ID), zap.Error(err))
		}
	}
}

func (e *Engine) fail(err error) error {
	kind := domain.ErrorKind(err)
	metrics.Errors.WithLabelValues(kind).Inc()
	e.status.SetError(err, e.now())
	e.logger.Warn("Evaluation aborted", zap.String("kind", kind), zap.Error(err))
	return err
}

// fillPrice prefers the venue-reported fill price and falls back to the
// last ticker price.
func fillPrice(fill domain.Fill, last decimal.Decimal) (decimal.Decimal, bool) {
	if fill.Price.IsPositive() {
		return fill.Price, true
	}
	return last, false
}
