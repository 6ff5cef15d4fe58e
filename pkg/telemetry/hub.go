// Package telemetry exposes the running race to presentation clients: a
// websocket frame feed, Prometheus metrics, and a small control API.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-gaterace/pkg/logging"
)

// Message is the envelope every feed message is wrapped in
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub fans frames out to websocket clients. The client set and all writes
// belong to the Run goroutine, so each connection has a single writer.
// Other goroutines only read the atomic count.
type Hub struct {
	clients    map[*websocket.Conn]string
	count      atomic.Int32
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}

	maxClients   int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	metrics *Metrics
	logger  *logging.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(maxClients int, writeTimeout time.Duration, metrics *Metrics, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Hub{
		clients:      make(map[*websocket.Conn]string),
		broadcast:    make(chan []byte, 256),
		register:     make(chan *websocket.Conn),
		unregister:   make(chan *websocket.Conn),
		done:         make(chan struct{}),
		maxClients:   maxClients,
		writeTimeout: writeTimeout,
		metrics:      metrics,
		logger:       logger.With("component", "hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if sameOrigin(r) {
				return true
			}
			h.logger.Warn(r.Context(), "websocket connection rejected", "origin", r.Header.Get("Origin"))
			h.metrics.Rejected.WithLabelValues("origin").Inc()
			return false
		},
	}
	return h
}

// sameOrigin accepts non-browser clients, which send no Origin, and pages
// served from the same host
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.setCount()
			return

		case conn := <-h.register:
			// Upgrades race each other past the check in HandleWebSocket.
			if len(h.clients) >= h.maxClients {
				h.metrics.Rejected.WithLabelValues("limit").Inc()
				_ = conn.Close()
				continue
			}
			h.clients[conn] = conn.RemoteAddr().String()
			count := h.setCount()
			h.logger.Debug(ctx, "feed client connected", "remote", conn.RemoteAddr().String(), "clients", count)

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			count := h.setCount()
			h.logger.Debug(ctx, "feed client disconnected", "clients", count)

		case msg := <-h.broadcast:
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					delete(h.clients, conn)
					_ = conn.Close()
				}
			}
			h.setCount()
			h.metrics.WSMessages.Inc()
		}
	}
}

func (h *Hub) setCount() int {
	n := len(h.clients)
	h.count.Store(int32(n))
	h.metrics.WSConnections.Set(float64(n))
	return n
}

// Broadcast queues a message for every client. It never blocks; the message
// is dropped when the queue is full.
func (h *Hub) Broadcast(name string, data any) {
	payload, err := json.Marshal(Message{Event: name, Data: data})
	if err != nil {
		h.logger.Error(context.Background(), "failed to encode feed message", err, "event", name)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// HandleWebSocket upgrades the request and adds the connection to the feed
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= h.maxClients {
		h.metrics.Rejected.WithLabelValues("limit").Inc()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	// The feed is one-way; reading only detects the client going away.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
