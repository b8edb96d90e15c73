package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// Hub pushes the status snapshot to websocket clients whenever the status
// store changes.
type Hub struct {
	status   *usecase.StatusStore
	interval time.Duration
	logger   *zap.Logger

	lock    sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub(status *usecase.StatusStore, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = time.Second
	}
	return &Hub{
		status:   status,
		interval: interval,
		logger:   logger,
		clients:  make(map[*websocket.Conn]bool),
	}
}

// Run polls the status version and broadcasts changes until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			v := h.status.Version()
			if v == last {
				continue
			}
			last = v
			msg, err := json.Marshal(h.status.Snapshot())
			if err != nil {
				h.logger.Error("Failed to encode status", zap.Error(err))
				continue
			}
			h.Broadcast(msg)
		}
	}
}

func (h *Hub) Broadcast(msg []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request, sends the current status and keeps the
// client registered until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS upgrade error", zap.Error(err))
		return
	}

	msg, err := json.Marshal(h.status.Snapshot())
	if err != nil {
		conn.Close()
		return
	}

	h.lock.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.lock.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = true
	h.lock.Unlock()

	// Drain reads so close frames are processed.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
