package realtime

import (
	"sync"
)

// Room is the live membership of one chat room.
//
// Join/Leave are safe under concurrent Broadcast, and Broadcast never blocks:
// a member whose queue is full misses the frame.
type Room struct {
	ID int64

	mu      sync.RWMutex
	members map[string]*Client
}

func newRoom(id int64) *Room {
	return &Room{ID: id, members: make(map[string]*Client)}
}

// join reports false when the session was already a member.
func (r *Room) join(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.members[c.SessionID]
	r.members[c.SessionID] = c
	return !exists
}

// leave removes the member. It reports whether the session was present and how many remain.
func (r *Room) leave(sessionID string) (removed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, removed = r.members[sessionID]
	delete(r.members, sessionID)
	return removed, len(r.members)
}

// Len returns the number of connected members.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// broadcast returns how many members were skipped.
func (r *Room) broadcast(frame []byte) (dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		select {
		case <-m.Done():
			continue
		default:
		}

		select {
		case m.Send <- frame:
		default:
			dropped++
		}
	}
	return dropped
}

func (r *Room) closeAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		m.Close()
	}
}
