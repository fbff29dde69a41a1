package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	wsDefaultSendQueueSize = 64
	wsMinSendQueueSize     = 8

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3
)

// Sender stores a chat message; the stored message reaches subscribers
// through Hub.Publish.
type Sender interface {
	SendMessage(ctx context.Context, chatroomID int64, content string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatroomID int64, content string) error

func (f SenderFunc) SendMessage(ctx context.Context, chatroomID int64, content string) error {
	return f(ctx, chatroomID, content)
}

// GatewayConfig controls WebSocket session limits.
type GatewayConfig struct {
	// OriginPatterns authorizes cross-origin upgrades (host patterns as
	// understood by websocket.AcceptOptions). Same-host requests are always allowed.
	OriginPatterns []string

	WriteTimeout     time.Duration
	ReadIdleTimeout  time.Duration
	SendQueueSize    int
	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration
	RateEvents       int
	RateWindow       time.Duration
}

// LoadGatewayConfigFromEnv reads COLLAB_WS_* variables with safe defaults.
func LoadGatewayConfigFromEnv() GatewayConfig {
	return GatewayConfig{
		OriginPatterns:   envCSVWS("COLLAB_WS_ORIGIN_PATTERNS"),
		WriteTimeout:     envDurationWS("COLLAB_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout),
		ReadIdleTimeout:  envDurationWS("COLLAB_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle),
		SendQueueSize:    envIntWS("COLLAB_WS_SEND_QUEUE", wsDefaultSendQueueSize),
		HeartbeatEvery:   envDurationWS("COLLAB_WS_HEARTBEAT_INTERVAL", heartbeatInterval),
		HeartbeatTimeout: envDurationWS("COLLAB_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout),
		RateEvents:       envIntWS("COLLAB_WS_RATE_EVENTS", rateLimitEvents),
		RateWindow:       envDurationWS("COLLAB_WS_RATE_WINDOW", rateLimitWindow),
	}
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wsDefaultWriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = wsDefaultReadIdle
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsMinSendQueueSize
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = heartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = heartbeatTimeout
	}
	return c
}

// WSGateway is the WebSocket entrypoint for chat rooms.
type WSGateway struct {
	log    *slog.Logger
	hub    *Hub
	sender Sender
	cfg    GatewayConfig

	mu       sync.Mutex
	closed   bool
	sessions sync.WaitGroup
}

// NewWSGateway constructs a gateway. sender may be nil, in which case the
// socket is receive-only and message.send frames get an error frame back.
func NewWSGateway(log *slog.Logger, hub *Hub, sender Sender, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log, nil)
	}
	return &WSGateway{log: log, hub: hub, sender: sender, cfg: cfg.withDefaults()}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs the session until either side closes.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.URL.Query().Get("chatroom_id"), 10, 64)
	if err != nil || roomID <= 0 {
		http.Error(w, "chatroom_id must be a positive integer", http.StatusBadRequest)
		return
	}

	if !g.begin() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer g.sessions.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.log.Info("ws.accept.fail", "err", err, "origin", r.Header.Get("Origin"))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(maxFrameBytes)

	sessionID, err := NewSessionID(time.Now())
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	client := NewClient(sessionID, g.cfg.SendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	g.hub.Join(roomID, client)

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			// Leave before Close so no broadcaster targets a dying client.
			g.hub.Leave(roomID, sessionID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				shutdown(websocket.StatusGoingAway, "server shutting down")
				return
			case frame := <-client.Send:
				if err := writeFrame(ctx, conn, frame, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		in, err := readFrame(readCtx, conn)
		readCancel()

		if err != nil {
			if errors.Is(err, errBadFrame) {
				g.trySendError(client, "bad_json", "invalid JSON frame")
				continue
			}
			g.logReadErr(sessionID, err)
			shutdown(websocket.StatusNormalClosure, "bye")
			break
		}

		if !rl.Allow(time.Now()) {
			g.trySendError(client, "rate_limited", "too many frames")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break
		}

		switch in.Type {
		case TypeMessageSend:
			if g.sender == nil {
				g.trySendError(client, "read_only", "sending over the socket is disabled")
				continue
			}
			if err := g.sender.SendMessage(ctx, roomID, in.Content); err != nil {
				g.log.Info("ws.message.send.fail", "session_id", sessionID, "err", err)
				g.trySendError(client, "send_failed", "message rejected")
			}
		default:
			g.trySendError(client, "unsupported", "unsupported frame type")
		}
	}

	<-writerDone
	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// Shutdown closes every session and waits for their goroutines, or for ctx.
func (g *WSGateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *WSGateway) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.sessions.Add(1)
	return true
}

func (g *WSGateway) trySendError(client *Client, code, msg string) {
	frame := encodeFrame(Frame{Type: TypeError, Code: code, Error: msg})
	select {
	case <-client.Done():
	case client.Send <- frame:
	default:
	}
}

func (g *WSGateway) logReadErr(sessionID string, err error) {
	switch {
	case websocket.CloseStatus(err) != -1,
		errors.Is(err, context.Canceled),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF):
		g.log.Debug("ws.read.closed", "session_id", sessionID, "err", err)
	default:
		g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
	}
}

var errBadFrame = errors.New("realtime: bad frame")

func readFrame(ctx context.Context, conn *websocket.Conn) (inboundFrame, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return inboundFrame{}, err
	}
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return inboundFrame{}, errBadFrame
	}
	return in, nil
}

func writeFrame(parent context.Context, conn *websocket.Conn, frame []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
