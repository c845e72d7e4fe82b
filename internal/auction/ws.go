package auction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// wsConn adapts a gorilla connection to the hub's Conn interface. The mutex
// serializes writes (gorilla allows one concurrent writer) and preserves
// delivery order; the write deadline keeps a wedged peer from stalling the
// broadcast path, surfacing as a failed send instead.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) sendEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.Send(data)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// HandleWS handles WebSocket upgrade requests at GET /ws/lots/{lotID}.
// The client is subscribed to the lot's event stream until it disconnects,
// its send fails during a broadcast, or the lot ends.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	client := newWSConn(conn)

	// Unknown lot: accept the handshake so the client gets a structured
	// error message, then close.
	if _, err := s.engine.GetLot(r.Context(), lotID); err != nil {
		client.sendEvent(Event{
			Type:    EventError,
			LotID:   lotID,
			Message: "Lot not found",
		})
		client.Close()
		return
	}

	s.hub.Join(lotID, client)

	if err := client.sendEvent(Event{
		Type:    EventConnectionEstablished,
		LotID:   lotID,
		Message: fmt.Sprintf("Connected to lot %s updates", lotID),
	}); err != nil {
		s.hub.Leave(lotID, client)
		client.Close()
		return
	}

	// Ping ticker to keep the connection alive through proxies.
	stopPing := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := client.ping(); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	// Read pump: keep the connection alive and detect disconnects. Incoming
	// frames are ignored; clients only listen on this stream.
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}

	close(stopPing)
	s.hub.Leave(lotID, client)
	client.Close()
	slog.Info("ws client disconnected", "lot_id", lotID)
}
