package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitos/crypto_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

type SchedulerState string

const (
	StateIdle   SchedulerState = "IDLE"
	StateActive SchedulerState = "ACTIVE"
)

type SchedulerConfig struct {
	// Interval between ticks. Defaults to one hour.
	Interval time.Duration
	// Align fires ticks on interval boundaries (e.g. at the top of the hour)
	// instead of Interval after Run was called.
	Align bool
}

// Scheduler triggers one engine cycle per tick while ACTIVE. A tick that
// arrives while the previous cycle is still running is dropped.
type Scheduler struct {
	cfg       SchedulerConfig
	engine    *Engine
	refresher *Refresher
	status    *StatusStore
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool

	inFlight atomic.Bool
	skipped  atomic.Uint64
	wg       sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, engine *Engine, refresher *Refresher, status *StatusStore, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		cfg:       cfg,
		engine:    engine,
		refresher: refresher,
		status:    status,
		logger:    logger,
		now:       time.Now,
	}
}

// Start moves IDLE -> ACTIVE and clears the last error.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.logger.Info("Scheduler started", zap.Duration("interval", s.cfg.Interval))
	}
	s.running = true
	s.status.SetRunning(true, s.now())
}

// Stop moves ACTIVE -> IDLE. A cycle already running is left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Info("Scheduler stopped")
	}
	s.running = false
	s.status.SetRunning(false, s.now())
}

func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return StateActive
	}
	return StateIdle
}

// Skipped is the number of ticks coalesced so far.
func (s *Scheduler) Skipped() uint64 { return s.skipped.Load() }

// Run drives the periodic trigger until ctx is cancelled, then waits for
// any in-flight cycle.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler loop started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("align", s.cfg.Align))

	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("Scheduler loop stopped")
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.untilNext())
		}
	}
}

// Tick fires one scheduled trigger. It returns false when the tick was
// ignored because the scheduler is IDLE or a cycle is still running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.State() != StateActive {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		metrics.TicksCoalesced.Inc()
		s.status.SetTicksSkipped(n)
		s.logger.Warn("Tick dropped, previous evaluation still running", zap.Uint64("skipped", n))
		return false
	}

	// Shutdown must not abort venue calls mid-evaluation.
	cycleCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.cycle(cycleCtx)
	}()
	return true
}

// Wait blocks until the in-flight cycle, if any, has finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) cycle(ctx context.Context) {
	s.status.MarkChecked(s.now())
	s.logger.Info("Checking market")

	action := s.engine.RunCycle(ctx)
	s.logger.Info("Cycle finished",
		zap.String("signal", action.Signal.String()),
		zap.String("action", action.String()))

	if s.refresher != nil {
		s.refresher.Refresh(ctx)
	}
}

func (s *Scheduler) untilNext() time.Duration {
	if !s.cfg.Align {
		return s.cfg.Interval
	}
	now := s.now()
	next := now.Truncate(s.cfg.Interval).Add(s.cfg.Interval)
	return next.Sub(now)
}
