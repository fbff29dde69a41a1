package records

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in dev mode and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	nextID        int64
	announcements []Announcement
	activity      []ActivityLog
	meetings      []Meeting
	messages      []Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// logActivity must be called with mu held.
func (s *MemoryStore) logActivity(action, actor string) {
	s.activity = append(s.activity, ActivityLog{ID: s.id(), Action: action, Actor: actor, CreatedAt: s.now()})
}

func (s *MemoryStore) CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	if err := ctx.Err(); err != nil {
		return Announcement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.id()
	s.announcements = append(s.announcements, a)
	s.logActivity(ActivityAnnouncementCreate, a.CreatedBy)
	return a, nil
}

func (s *MemoryStore) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := slices.Clone(s.announcements)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Announcement) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return capList(out), nil
}

func (s *MemoryStore) ListActivity(ctx context.Context) ([]ActivityLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := slices.Clone(s.activity)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b ActivityLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return capList(out), nil
}

func (s *MemoryStore) CreateMeeting(ctx context.Context, m Meeting) (Meeting, error) {
	if err := ctx.Err(); err != nil {
		return Meeting{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id()
	s.meetings = append(s.meetings, m)
	s.logActivity(ActivityMeetingCreate, "")
	return m, nil
}

func (s *MemoryStore) ListMeetings(ctx context.Context) ([]Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := slices.Clone(s.meetings)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Meeting) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return capList(out), nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id()
	s.messages = append(s.messages, m)
	s.logActivity(ActivityMessageSend, "")
	return m, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, chatroomID int64) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, m := range s.messages {
		if m.ChatroomID == chatroomID {
			out = append(out, m)
		}
	}
	// Keep the newest listLimit, oldest first.
	if len(out) > listLimit {
		out = out[len(out)-listLimit:]
	}
	return out, nil
}

func capList[T any](in []T) []T {
	if len(in) > listLimit {
		return in[:listLimit]
	}
	return in
}
