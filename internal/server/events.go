package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/barneyonline/core/internal/hub"
)

// EventStream forwards hub bus events to websocket clients as JSON.
// Clients that fall behind are dropped.
type EventStream struct {
	logger         *slog.Logger
	allowedOrigins []string

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
	off     func()
}

type streamClient struct {
	conn      *websocket.Conn
	send      chan []byte
	eventType string
}

func NewEventStream(bus *hub.EventBus, logger *slog.Logger, allowedOrigins ...string) *EventStream {
	s := &EventStream{
		logger:         logger,
		allowedOrigins: allowedOrigins,
		clients:        make(map[*streamClient]struct{}),
	}
	s.off = bus.OnAll(s.broadcast)
	return s
}

// Close unsubscribes from the bus and disconnects every client.
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.off()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *EventStream) broadcast(event hub.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("ws marshal", "event", event.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c.eventType != "" && c.eventType != event.Type {
			continue
		}
		select {
		case c.send <- data:
		default:
			delete(s.clients, c)
			close(c.send)
			s.logger.Warn("ws client evicted (too slow)")
		}
	}
}

// ServeHTTP upgrades the request. ?event_type= limits the stream to one type.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "error", err)
		return
	}
	conn.SetReadLimit(4096)

	client := &streamClient{
		conn:      conn,
		send:      make(chan []byte, 64),
		eventType: r.URL.Query().Get("event_type"),
	}
	if !s.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.writePump(ctx, client)

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	s.remove(client)
}

func (s *EventStream) add(c *streamClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	s.logger.Debug("ws client connected", "total", len(s.clients))
	return true
}

func (s *EventStream) remove(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.logger.Debug("ws client disconnected", "total", len(s.clients))
}

func (s *EventStream) writePump(ctx context.Context, c *streamClient) {
	for msg := range c.send {
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := c.conn.Write(writeCtx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	c.conn.Close(websocket.StatusNormalClosure, "")
}
