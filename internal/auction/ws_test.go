package auction_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lotline/auction-engine/internal/auction"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) auction.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev auction.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestHandleWS_UnknownLot(t *testing.T) {
	_, _, router := newTestEnv(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/lots/missing")

	ev := readEvent(t, conn)
	if ev.Type != auction.EventError {
		t.Errorf("expected error event, got %s", ev.Type)
	}

	// Server closes after the error message.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed after error")
	}
}

func TestHandleWS_ReceivesLiveUpdates(t *testing.T) {
	_, _, router := newTestEnv(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	lot := createLot(t, router, 100)
	conn := dialWS(t, srv, "/ws/lots/"+lot.ID)

	// Handshake acknowledgment arrives first.
	ev := readEvent(t, conn)
	if ev.Type != auction.EventConnectionEstablished {
		t.Fatalf("expected connection_established, got %s", ev.Type)
	}
	if ev.LotID != lot.ID {
		t.Errorf("expected lot_id %s, got %s", lot.ID, ev.LotID)
	}

	// A committed bid reaches the subscriber.
	resp, err := http.Post(srv.URL+"/lots/"+lot.ID+"/bids", "application/json",
		strings.NewReader(`{"bidder":"alice","amount":"150"}`))
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place bid: expected 201, got %d", resp.StatusCode)
	}

	ev = readEvent(t, conn)
	if ev.Type != auction.EventBidPlaced || ev.Bidder != "alice" || ev.Amount != "150" {
		t.Errorf("unexpected event: %+v", ev)
	}

	// Ending the lot delivers the terminal event and closes the stream.
	resp, err = http.Post(srv.URL+"/lots/"+lot.ID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end lot: %v", err)
	}
	resp.Body.Close()

	ev = readEvent(t, conn)
	if ev.Type != auction.EventLotEnded {
		t.Errorf("expected lot_ended, got %s", ev.Type)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed after lot ended")
	}
}
