package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on the tables created by cmd/internal/migrations.
type PostgresStore struct {
	db DB
}

// NewPostgresStore constructs a PostgresStore. The pool stays owned by the caller.
func NewPostgresStore(db DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("records: nil db")
	}
	return &PostgresStore{db: db}, nil
}

const insertActivitySQL = `INSERT INTO activity_logs (action, actor) VALUES ($1, $2)`

var writeTx = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// inTx runs fn in one transaction. The record row and its activity row commit together.
func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, writeTx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO announcements (title, content, created_by, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, a.Title, a.Content, a.CreatedBy, a.CreatedAt).Scan(&a.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertActivitySQL, ActivityAnnouncementCreate, a.CreatedBy)
		return err
	})
	if err != nil {
		return Announcement{}, fmt.Errorf("records: create announcement: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, content, created_by, created_at
		FROM announcements
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, listLimit)
	if err != nil {
		return nil, fmt.Errorf("records: list announcements: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Announcement, error) {
		var a Announcement
		err := row.Scan(&a.ID, &a.Title, &a.Content, &a.CreatedBy, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("records: list announcements: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListActivity(ctx context.Context) ([]ActivityLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, action, actor, created_at
		FROM activity_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, listLimit)
	if err != nil {
		return nil, fmt.Errorf("records: list activity: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ActivityLog, error) {
		var l ActivityLog
		err := row.Scan(&l.ID, &l.Action, &l.Actor, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("records: list activity: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateMeeting(ctx context.Context, m Meeting) (Meeting, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO meetings (title, start_time)
			VALUES ($1, $2)
			RETURNING id
		`, m.Title, m.StartTime).Scan(&m.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertActivitySQL, ActivityMeetingCreate, "")
		return err
	})
	if err != nil {
		return Meeting{}, fmt.Errorf("records: create meeting: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMeetings(ctx context.Context) ([]Meeting, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, start_time
		FROM meetings
		ORDER BY start_time ASC, id ASC
		LIMIT $1
	`, listLimit)
	if err != nil {
		return nil, fmt.Errorf("records: list meetings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Meeting, error) {
		var m Meeting
		err := row.Scan(&m.ID, &m.Title, &m.StartTime)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("records: list meetings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO messages (chatroom_id, content, created_at)
			VALUES ($1, $2, $3)
			RETURNING id
		`, m.ChatroomID, m.Content, m.CreatedAt).Scan(&m.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertActivitySQL, ActivityMessageSend, "")
		return err
	})
	if err != nil {
		return Message{}, fmt.Errorf("records: create message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatroomID int64) ([]Message, error) {
	// Newest listLimit rows, returned oldest first.
	rows, err := s.db.Query(ctx, `
		SELECT id, chatroom_id, content, created_at FROM (
			SELECT id, chatroom_id, content, created_at
			FROM messages
			WHERE chatroom_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`, chatroomID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("records: list messages: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.ChatroomID, &m.Content, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("records: list messages: %w", err)
	}
	return out, nil
}
