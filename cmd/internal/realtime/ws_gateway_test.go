package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/goleak"
)

func leakOpts() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	}
}

func wsURL(srv *httptest.Server, room string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/messages/ws?chatroom_id=" + room
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestWSGateway_MessageFanout(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts()...)

	hub := NewHub(discardLogger(), nil)
	sender := SenderFunc(func(_ context.Context, room int64, content string) error {
		payload, _ := json.Marshal(map[string]any{"chatroom_id": room, "content": content})
		hub.Publish(room, payload)
		return nil
	})
	g := NewWSGateway(discardLogger(), hub, sender, GatewayConfig{})
	srv := httptest.NewServer(g)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, _, err := websocket.Dial(ctx, wsURL(srv, "7"), nil)
	if err != nil {
		t.Fatalf("dial alice: %v", err)
	}
	bob, _, err := websocket.Dial(ctx, wsURL(srv, "7"), nil)
	if err != nil {
		t.Fatalf("dial bob: %v", err)
	}
	waitFor(t, func() bool { return hub.Members(7) == 2 })

	if err := wsjson.Write(ctx, alice, inboundFrame{Type: TypeMessageSend, Content: "hi bob"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, c := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		var f Frame
		if err := wsjson.Read(ctx, c, &f); err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		if f.Type != TypeMessageNew || !strings.Contains(string(f.Message), "hi bob") {
			t.Fatalf("%s got %+v", name, f)
		}
	}

	_ = alice.Close(websocket.StatusNormalClosure, "")
	_ = bob.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return hub.Members(7) == 0 })

	if err := g.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestWSGateway_ReadOnlyWithoutSender(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts()...)

	g := NewWSGateway(discardLogger(), nil, nil, GatewayConfig{})
	srv := httptest.NewServer(g)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(srv, "1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := wsjson.Write(ctx, c, inboundFrame{Type: TypeMessageSend, Content: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var f Frame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Type != TypeError || f.Code != "read_only" {
		t.Fatalf("unexpected frame: %+v", f)
	}

	if err := c.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Code != "bad_json" {
		t.Fatalf("unexpected frame: %+v", f)
	}

	_ = c.Close(websocket.StatusNormalClosure, "")
	if err := g.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestWSGateway_ShutdownClosesSessions(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts()...)

	hub := NewHub(discardLogger(), nil)
	g := NewWSGateway(discardLogger(), hub, nil, GatewayConfig{})
	srv := httptest.NewServer(g)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(srv, "3"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.CloseNow() }()
	waitFor(t, func() bool { return hub.Members(3) == 1 })

	readErr := make(chan error, 1)
	go func() {
		_, _, err := c.Read(ctx)
		readErr <- err
	}()

	if err := g.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if err := <-readErr; err == nil {
		t.Fatalf("expected the connection to be closed")
	}

	// New sessions are refused after shutdown.
	resp, err := http.Get(srv.URL + "/messages/ws?chatroom_id=3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestWSGateway_RejectsBadRoom(t *testing.T) {
	g := NewWSGateway(discardLogger(), nil, nil, GatewayConfig{})

	for _, q := range []string{"", "?chatroom_id=0", "?chatroom_id=-1", "?chatroom_id=abc"} {
		r := httptest.NewRequest(http.MethodGet, "/messages/ws"+q, nil)
		w := httptest.NewRecorder()
		g.ServeHTTP(w, r)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q status=%d", q, w.Code)
		}
	}
}

func TestLoadGatewayConfigFromEnv(t *testing.T) {
	t.Setenv("COLLAB_WS_ORIGIN_PATTERNS", "app.example.com, *.example.org ,")
	t.Setenv("COLLAB_WS_SEND_QUEUE", "128")
	t.Setenv("COLLAB_WS_RATE_WINDOW", "bogus")

	cfg := LoadGatewayConfigFromEnv()
	if len(cfg.OriginPatterns) != 2 || cfg.OriginPatterns[1] != "*.example.org" {
		t.Fatalf("patterns=%v", cfg.OriginPatterns)
	}
	if cfg.SendQueueSize != 128 {
		t.Fatalf("queue=%d", cfg.SendQueueSize)
	}
	if cfg.RateWindow != rateLimitWindow {
		t.Fatalf("window=%v", cfg.RateWindow)
	}
}
