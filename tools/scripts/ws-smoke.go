// Package main is a CI-friendly WebSocket smoke test for the collab chat gateway.
//
// It connects two clients to one chat room, sends from A and expects both
// A and B to receive the message.new frame, then checks the history endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const maxReadBytes = 1 << 20

type outFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type inFrame struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type chatMessage struct {
	ID         int64  `json:"id"`
	ChatroomID int64  `json:"chatroom_id"`
	Content    string `json:"content"`
}

func main() {
	var (
		base    = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		origin  = flag.String("origin", "", "Origin header to send (browser-like WS handshake)")
		room    = flag.Int64("room", 1, "Chat room ID")
		text    = flag.String("text", "hello collab", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	wsURL, err := roomURL(*base, *room)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()

	a := mustConnect(root, "A", wsURL, *origin, *timeout)
	defer closeWS(a)
	b := mustConnect(root, "B", wsURL, *origin, *timeout)
	defer closeWS(b)

	if *verbose {
		fmt.Printf("connected: url=%s origin=%q\n", wsURL, *origin)
	}

	// Joins happen after the upgrade; give the server a moment before sending.
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(root, *timeout)
	defer cancel()
	if err := wsjson.Write(ctx, a, outFrame{Type: "message.send", Content: *text}); err != nil {
		fatalf("send: %v", err)
	}

	var got chatMessage
	for name, c := range map[string]*websocket.Conn{"A": a, "B": b} {
		got = mustReadMessage(ctx, name, c)
		if got.Content != *text || got.ChatroomID != *room {
			fatalf("%s: unexpected message %+v", name, got)
		}
	}

	mustHistoryContains(ctx, *base, *room, got.ID)

	fmt.Printf("OK: room=%d message_id=%d\n", *room, got.ID)
}

func roomURL(base string, room int64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/messages/ws"
	u.RawQuery = url.Values{"chatroom_id": {strconv.FormatInt(room, 10)}}.Encode()
	return u.String(), nil
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustReadMessage(ctx context.Context, name string, c *websocket.Conn) chatMessage {
	for {
		var f inFrame
		if err := wsjson.Read(ctx, c, &f); err != nil {
			fatalf("%s: read: %v", name, err)
		}
		switch f.Type {
		case "message.new":
			var m chatMessage
			if err := json.Unmarshal(f.Message, &m); err != nil {
				fatalf("%s: decode message: %v", name, err)
			}
			return m
		case "error":
			fatalf("%s: server error %s: %s", name, f.Code, f.Error)
		}
	}
}

func mustHistoryContains(ctx context.Context, base string, room, id int64) {
	u := strings.TrimSuffix(base, "/") + "/messages?chatroom_id=" + strconv.FormatInt(room, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		fatalf("history request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("history: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		fatalf("history: status %d", res.StatusCode)
	}

	var msgs []chatMessage
	if err := json.NewDecoder(res.Body).Decode(&msgs); err != nil {
		fatalf("history decode: %v", err)
	}
	for _, m := range msgs {
		if m.ID == id {
			return
		}
	}
	fatalf("history: message %d not found in %d messages", id, len(msgs))
}

func closeWS(c *websocket.Conn) {
	_ = c.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
