package web

import (
	"html/template"
	"net/http"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

var templateFuncs = template.FuncMap{
	"fmtTime": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
	"fmtTS": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
	"fmtDec": func(d *decimal.Decimal) string {
		if d == nil {
			return "-"
		}
		return d.StringFixed(4)
	},
}

type dashboardView struct {
	Status     usecase.EngineStatus
	State      usecase.SchedulerState
	Trades     []domain.TradeRecord
	Unrealized *decimal.Decimal
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Status": s.status.Snapshot(),
		"State":  s.scheduler.State(),
	}
	s.render(w, "landing.html", data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	view := dashboardView{
		Status: snap,
		State:  s.scheduler.State(),
		Trades: s.recentTrades(50),
	}
	if snap.ActivePosition != nil {
		if t, ok := snap.Prices[snap.Symbol]; ok && t.Last.IsPositive() {
			pnl := snap.ActivePosition.UnrealizedPnL(t.Last)
			view.Unrealized = &pnl
		}
	}
	s.render(w, "dashboard.html", view)
}

// recentTrades returns up to limit ledger records, newest first.
func (s *Server) recentTrades(limit int) []domain.TradeRecord {
	trades := slices.Collect(s.engine.Ledger().History())
	slices.Reverse(trades)
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
