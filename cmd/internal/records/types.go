package records

import "time"

// DefaultAuthor is used for announcements posted without created_by.
const DefaultAuthor = "admin"

// MaxContentRunes bounds announcement and message bodies.
const MaxContentRunes = 4000

// MaxTitleRunes bounds announcement and meeting titles.
const MaxTitleRunes = 100

// Activity actions appended by the store.
const (
	ActivityAnnouncementCreate = "announcement.create"
	ActivityMeetingCreate      = "meeting.create"
	ActivityMessageSend        = "message.send"
)

// Announcement is a titled notice posted to the whole team.
type Announcement struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLog is one entry of the activity trail. Actor is empty when unknown.
type ActivityLog struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"timestamp"`
}

// Meeting is a scheduled meeting; StartTime is UTC.
type Meeting struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
}

// Message is a chat message in a numbered chat room.
type Message struct {
	ID         int64     `json:"id"`
	ChatroomID int64     `json:"chatroom_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"timestamp"`
}
