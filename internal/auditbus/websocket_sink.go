package auditbus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSink broadcasts audit events to connected operator
// dashboards in real time. It is always safe to construct — with zero
// subscribers, Publish is a no-op — so it can be wired unconditionally
// behind an authenticated endpoint.
type WebSocketSink struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

// NewWebSocketSink constructs an empty broadcast sink.
func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[*websocket.Conn]struct{}),
	}
}

// Handle upgrades an authenticated HTTP request to a WebSocket
// connection and registers it as a subscriber until it disconnects.
func (s *WebSocketSink) Handle(w http.ResponseWriter, r *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.subs[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard any client messages; this is a push-only feed.
	// The read loop's sole purpose is to detect disconnects promptly.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Publish broadcasts the event as JSON to every connected subscriber,
// dropping any connection that fails to receive it.
func (s *WebSocketSink) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.subs {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.subs, conn)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.subs {
		conn.Close()
		delete(s.subs, conn)
	}
	return nil
}
