package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	templates *template.Template
	engine    *usecase.Engine
	scheduler *usecase.Scheduler
	status    *usecase.StatusStore
	journal   domain.TradeJournal
	hub       *Hub
	logger    *zap.Logger
}

// NewServer wires the dashboard, JSON API, metrics and websocket routes.
// journal and hub may be nil.
func NewServer(
	port int,
	engine *usecase.Engine,
	scheduler *usecase.Scheduler,
	status *usecase.StatusStore,
	journal domain.TradeJournal,
	hub *Hub,
	logger *zap.Logger,
) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		router:    http.NewServeMux(),
		templates: tmpl,
		engine:    engine,
		scheduler: scheduler,
		status:    status,
		journal:   journal,
		hub:       hub,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	// Landing Page
	s.router.HandleFunc("GET /{$}", s.handleLanding)

	// Dashboard
	s.router.HandleFunc("GET /dashboard", s.handleDashboard)

	// Read API
	s.router.HandleFunc("GET /api/status", s.handleStatusJSON)
	s.router.HandleFunc("GET /api/trades", s.handleTradesJSON)
	s.router.HandleFunc("GET /api/signal", s.handleSignalJSON)

	// Controls
	s.router.HandleFunc("POST /api/start", s.handleStart)
	s.router.HandleFunc("POST /api/stop", s.handleStop)
	s.router.HandleFunc("POST /api/force-buy", s.handleForceBuy)
	s.router.HandleFunc("POST /api/force-sell", s.handleForceSell)
	s.router.HandleFunc("POST /api/orders/cancel", s.handleCancelOrders)

	// Metrics
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Live status
	if s.hub != nil {
		s.router.HandleFunc("GET /ws", s.hub.ServeWS)
	}
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
