package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_evaluations_total",
		Help: "Engine evaluations by resulting action (none, open, close)",
	}, []string{"action"})
	Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_errors_total",
		Help: "Errors recorded in the status store by kind",
	}, []string{"kind"})
	TicksCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_ticks_coalesced_total",
		Help: "Scheduled ticks dropped because an evaluation was still running",
	})
	PositionOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_position_open",
		Help: "1 while a position is open, 0 when flat",
	})
	RealizedProfit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_realized_profit_quote",
		Help: "Cumulative realized profit in quote currency since process start",
	})

	OrdersAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_attempted_total",
		Help: "Orders the bot tried to place",
	})
	OrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_placed_total",
		Help: "Orders accepted by the venue",
	})
	OrdersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_failed_total",
		Help: "Orders that did not execute (rejected, failed or suppressed)",
	})
	OrdersSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_orders_suppressed_total",
		Help: "Orders blocked by the guard (rate limit or breaker)",
	})
	BreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_breaker_state",
		Help: "0=closed, 1=half_open, 2=open",
	})
	QueryRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_venue_query_retries_total",
		Help: "Venue read calls retried after an error",
	})
)

func init() {
	prometheus.MustRegister(
		Evaluations, Errors, TicksCoalesced, PositionOpen, RealizedProfit,
		OrdersAttempted, OrdersPlaced, OrdersFailed, OrdersSuppressed, BreakerState, QueryRetries,
	)
}
