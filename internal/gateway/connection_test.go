package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ndbelyaev/whitecards/internal/affinity"
	"github.com/ndbelyaev/whitecards/internal/protocol"
)

// dialTestServer stands a controller up behind a real websocket endpoint and
// dials it.
func dialTestServer(t *testing.T) (*Controller, *websocket.Conn) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	c := newTestController(affinity.NewMemory(clock), clock)
	c.upgrader.CheckOrigin = func(*http.Request) bool { return true }

	mux := http.NewServeMux()
	c.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return c, ws
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.Outbound {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame protocol.Outbound
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return frame
}

func TestWebsocketCreateSessionRoundTrip(t *testing.T) {
	c, ws := dialTestServer(t)

	msg := `{"type":"createsession","details":{"nickname":"alice","avatarId":0,"appVersion":"1.0.0"}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, ws)
	if frame.Type != protocol.OutCreate {
		t.Fatalf("frame type: got %s", frame.Type)
	}
	cs := frame.Details.ChangedState
	if cs.ID == "" || cs.PlayerID == "" || len(cs.Players) != 1 {
		t.Fatalf("create snapshot: %+v", cs)
	}
	if got := c.registry.Len(); got != 1 {
		t.Fatalf("registry has %d sessions", got)
	}
}

func TestWebsocketMalformedFrameGetsError(t *testing.T) {
	_, ws := dialTestServer(t)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, ws)
	if frame.Type != protocol.OutError || frame.Details.Message == "" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestConnSendAfterTerminateDoesNotBlock(t *testing.T) {
	_, ws := dialTestServer(t)
	conn := newConn(ws, zerolog.Nop())

	conn.Terminate()
	conn.Terminate() // idempotent

	done := make(chan struct{})
	go func() {
		defer close(done)
		// More frames than the buffer holds; without the done guard this
		// would block forever with no pump draining.
		for i := 0; i < 2*sendBufferSize; i++ {
			conn.Send([]byte(`{"type":"ping"}`))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Send blocked on a terminated connection")
	}
}

func TestConnAliveFlag(t *testing.T) {
	_, ws := dialTestServer(t)
	conn := newConn(ws, zerolog.Nop())

	if !conn.checkAlive() {
		t.Fatalf("new connection must start alive")
	}
	if conn.checkAlive() {
		t.Fatalf("second tick without a pong must report dead")
	}
	conn.markAlive()
	if !conn.checkAlive() {
		t.Fatalf("pong must revive the connection")
	}
}
