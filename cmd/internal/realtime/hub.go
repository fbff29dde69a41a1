package realtime

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Hub owns the live rooms. Persistence happens elsewhere; the hub only fans out.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[int64]*Room

	connections prometheus.Gauge
	dropped     prometheus.Counter
}

// NewHub constructs a Hub and registers its collectors on reg when reg is non-nil.
func NewHub(log *slog.Logger, reg prometheus.Registerer) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		log:   log,
		rooms: make(map[int64]*Room),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open chat-room WebSocket connections.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "dropped_frames_total",
			Help:      "Frames not delivered because a client queue was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(h.connections, h.dropped)
	}
	return h
}

// Join adds c to the room, creating the room on first use.
func (h *Hub) Join(roomID int64, c *Client) {
	if h == nil || c == nil || c.SessionID == "" {
		return
	}

	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		h.rooms[roomID] = r
	}
	added := r.join(c)
	h.mu.Unlock()

	if !added {
		return
	}
	h.connections.Inc()
	h.log.Info("realtime.room.join", "chatroom_id", roomID, "session_id", c.SessionID)
}

// Leave removes the session from the room and drops empty rooms.
func (h *Hub) Leave(roomID int64, sessionID string) {
	if h == nil || sessionID == "" {
		return
	}

	removed := false
	h.mu.Lock()
	if r, ok := h.rooms[roomID]; ok {
		var remaining int
		removed, remaining = r.leave(sessionID)
		if remaining == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	if removed {
		h.connections.Dec()
		h.log.Info("realtime.room.leave", "chatroom_id", roomID, "session_id", sessionID)
	}
}

// Publish wraps a stored message in a message.new frame and sends it to every
// member of the room. It never blocks.
func (h *Hub) Publish(roomID int64, message []byte) {
	if h == nil {
		return
	}

	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r == nil {
		return
	}

	frame := encodeFrame(Frame{Type: TypeMessageNew, Message: message})
	if frame == nil {
		return
	}
	if n := r.broadcast(frame); n > 0 {
		h.dropped.Add(float64(n))
		h.log.Warn("realtime.publish.dropped", "chatroom_id", roomID, "dropped", n)
	}
}

// Members returns the number of clients in the room.
func (h *Hub) Members(roomID int64) int {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r == nil {
		return 0
	}
	return r.Len()
}

// CloseAll signals every connected client to stop.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.rooms {
		r.closeAll()
	}
}
