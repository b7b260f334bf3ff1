// Package devtools exposes an out-of-band inspector for the reactive
// engine: a live WebSocket stream of track/trigger events plus a
// Prometheus metrics endpoint. It is development tooling; nothing in the
// core depends on it.
package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// Event is the wire form of one graph event sent to connected clients.
type Event struct {
	Op         string `json:"op"`
	EffectID   uint64 `json:"effectId"`
	TargetType string `json:"targetType"`
	Kind       string `json:"kind"`
	Key        any    `json:"key,omitempty"`
}

// Server manages WebSocket subscribers to the reactive graph event stream.
type Server struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// ServerOption configures a devtools Server.
type ServerOption func(*Server)

// WithLogger sets the diagnostic logger (default: slog.Default()).
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a devtools server and installs it as the reactive
// package's graph observer. Only one observer exists per process; creating
// a second server replaces the first one's subscription.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		clients: make(map[*websocket.Conn]bool),
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Tooling endpoint, typically bound to localhost.
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	reactive.SetObserver(s.publish)
	return s
}

// Handler returns the HTTP surface:
//
//	GET /events  - WebSocket stream of graph events
//	GET /metrics - Prometheus metrics (see the metrics package)
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/events", s.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// handleWebSocket upgrades the connection and holds it until the client
// disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Warn("reflow devtools: websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// publish fans a graph event out to every connected client. It runs inline
// with track/trigger, so it returns immediately when nobody is connected.
func (s *Server) publish(ev reactive.GraphEvent) {
	s.mu.RLock()
	n := len(s.clients)
	s.mu.RUnlock()
	if n == 0 {
		return
	}

	data, err := json.Marshal(Event{
		Op:         ev.Op,
		EffectID:   ev.EffectID,
		TargetType: ev.TargetType,
		Kind:       ev.Kind,
		Key:        ev.Key,
	})
	if err != nil {
		return
	}

	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.mu.Lock()
			delete(s.clients, client)
			s.mu.Unlock()
			client.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close detaches the server from the reactive observer hook and closes all
// client connections.
func (s *Server) Close() {
	reactive.SetObserver(nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}
