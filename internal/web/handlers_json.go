package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

type statusResponse struct {
	usecase.EngineStatus
	State      usecase.SchedulerState `json:"state"`
	TradeCount int                    `json:"trade_count"`
}

type actionResponse struct {
	usecase.Action
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) currentStatus() statusResponse {
	return statusResponse{
		EngineStatus: s.status.Snapshot(),
		State:        s.scheduler.State(),
		TradeCount:   s.engine.Ledger().Len(),
	}
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.currentStatus())
}

// handleTradesJSON lists ledger records newest first. source=journal reads
// the persisted audit journal instead.
func (s *Server) handleTradesJSON(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if r.URL.Query().Get("source") == "journal" {
		if s.journal == nil {
			http.Error(w, "journal disabled", http.StatusNotFound)
			return
		}
		trades, err := s.journal.ListTrades(r.Context(), limit)
		if err != nil {
			s.logger.Error("Failed to list journal trades", zap.Error(err))
			http.Error(w, "Failed to list trades", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, nonNil(trades))
		return
	}

	s.writeJSON(w, http.StatusOK, nonNil(s.recentTrades(limit)))
}

func nonNil(trades []domain.TradeRecord) []domain.TradeRecord {
	if trades == nil {
		return []domain.TradeRecord{}
	}
	return trades
}

// handleSignalJSON reads the signal without trading or touching status.
func (s *Server) handleSignalJSON(w http.ResponseWriter, r *http.Request) {
	sig, err := s.engine.PeekSignal(r.Context())
	resp := map[string]string{"signal": sig.String()}
	if err != nil {
		resp["error"] = err.Error()
		resp["error_kind"] = domain.ErrorKind(err)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Start()
	s.writeJSON(w, http.StatusOK, s.currentStatus())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	s.writeJSON(w, http.StatusOK, s.currentStatus())
}

// A client disconnect must not cancel an order in flight, so the manual
// triggers detach from the request context.
func (s *Server) handleForceBuy(w http.ResponseWriter, r *http.Request) {
	s.writeAction(w, s.engine.ForceOpen(context.WithoutCancel(r.Context())))
}

func (s *Server) handleForceSell(w http.ResponseWriter, r *http.Request) {
	s.writeAction(w, s.engine.ForceClose(context.WithoutCancel(r.Context())))
}

// writeAction maps an engine outcome to a status code: 200 executed,
// 409 nothing to do, 502 venue failure.
func (s *Server) writeAction(w http.ResponseWriter, a usecase.Action) {
	resp := actionResponse{Action: a}
	code := http.StatusOK
	switch {
	case a.Err != nil:
		resp.Error = a.Err.Error()
		resp.ErrorKind = domain.ErrorKind(a.Err)
		code = http.StatusBadGateway
	case a.Kind == usecase.ActionNone:
		code = http.StatusConflict
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handleCancelOrders(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.CancelOpenOrders(context.WithoutCancel(r.Context()))
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]any{
			"cancelled":  n,
			"error":      err.Error(),
			"error_kind": domain.ErrorKind(err),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}
