package records

import "context"

// Store persists records. Each Create call also appends the matching
// activity entry atomically.
type Store interface {
	CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
	ListAnnouncements(ctx context.Context) ([]Announcement, error)

	ListActivity(ctx context.Context) ([]ActivityLog, error)

	CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
	ListMeetings(ctx context.Context) ([]Meeting, error)

	CreateMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, chatroomID int64) ([]Message, error)
}

// listLimit caps every list query.
const listLimit = 500
