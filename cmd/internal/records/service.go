package records

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Publisher fans a stored chat message out to live subscribers of its room.
type Publisher interface {
	Publish(room int64, payload []byte)
}

// Service validates record input before it reaches the Store.
type Service struct {
	log   *slog.Logger
	store Store
	pub   Publisher
	now   func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPublisher pushes every stored message to pub.
func WithPublisher(pub Publisher) ServiceOption {
	return func(s *Service) { s.pub = pub }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service over store. Without WithPublisher messages are
// stored but not pushed anywhere.
func NewService(log *slog.Logger, store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("records: nil store")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:   log,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// PostAnnouncement validates and stores an announcement. An empty createdBy
// becomes DefaultAuthor.
func (s *Service) PostAnnouncement(ctx context.Context, title, content, createdBy string) (Announcement, error) {
	title = strings.TrimSpace(title)
	if err := checkTitle(title); err != nil {
		return Announcement{}, err
	}
	if err := checkContent(content); err != nil {
		return Announcement{}, err
	}
	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		createdBy = DefaultAuthor
	}

	a, err := s.store.CreateAnnouncement(ctx, Announcement{
		Title:     title,
		Content:   content,
		CreatedBy: createdBy,
		CreatedAt: s.now(),
	})
	if err != nil {
		return Announcement{}, err
	}
	s.log.Info("records.announcement.create", "id", a.ID, "created_by", a.CreatedBy)
	return a, nil
}

// Announcements lists announcements, newest first.
func (s *Service) Announcements(ctx context.Context) ([]Announcement, error) {
	return s.store.ListAnnouncements(ctx)
}

// Activity lists activity log entries, newest first.
func (s *Service) Activity(ctx context.Context) ([]ActivityLog, error) {
	return s.store.ListActivity(ctx)
}

// ScheduleMeeting parses startTime with ParseStartTime and stores the meeting.
func (s *Service) ScheduleMeeting(ctx context.Context, title, startTime string) (Meeting, error) {
	title = strings.TrimSpace(title)
	if err := checkTitle(title); err != nil {
		return Meeting{}, err
	}
	start, err := ParseStartTime(startTime)
	if err != nil {
		return Meeting{}, err
	}

	m, err := s.store.CreateMeeting(ctx, Meeting{Title: title, StartTime: start})
	if err != nil {
		return Meeting{}, err
	}
	s.log.Info("records.meeting.create", "id", m.ID, "start_time", m.StartTime)
	return m, nil
}

// Meetings lists meetings ordered by start time.
func (s *Service) Meetings(ctx context.Context) ([]Meeting, error) {
	return s.store.ListMeetings(ctx)
}

// SendMessage stores a chat message and publishes it to the room.
func (s *Service) SendMessage(ctx context.Context, chatroomID int64, content string) (Message, error) {
	if err := checkChatroom(chatroomID); err != nil {
		return Message{}, err
	}
	if err := checkContent(content); err != nil {
		return Message{}, err
	}

	m, err := s.store.CreateMessage(ctx, Message{
		ChatroomID: chatroomID,
		Content:    content,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return Message{}, err
	}

	if s.pub != nil {
		payload, err := json.Marshal(m)
		if err == nil {
			s.pub.Publish(m.ChatroomID, payload)
		}
	}
	return m, nil
}

// Messages returns the latest messages of a room, oldest first.
func (s *Service) Messages(ctx context.Context, chatroomID int64) ([]Message, error) {
	if err := checkChatroom(chatroomID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chatroomID)
}

var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseStartTime accepts RFC 3339 or a zone-less ISO 8601 date/time.
// Zone-less values are taken as UTC.
func ParseStartTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, invalid("invalid_start_time", "start_time is required")
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("invalid_start_time", "start_time must be an ISO 8601 date-time")
}

func checkTitle(title string) error {
	if title == "" {
		return invalid("invalid_title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		return invalid("invalid_title", "title is too long")
	}
	return nil
}

func checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return invalid("invalid_content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return invalid("invalid_content", "content is too long")
	}
	return nil
}

func checkChatroom(id int64) error {
	if id <= 0 {
		return invalid("invalid_chatroom", "chatroom_id must be a positive integer")
	}
	return nil
}
