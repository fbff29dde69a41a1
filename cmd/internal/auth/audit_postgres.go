package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of *pgxpool.Pool used by PostgresAuditLog.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresAuditLog appends entries to the auth_audit_log table.
// The table's trigger rejects UPDATE and DELETE, so rows are immutable once written.
type PostgresAuditLog struct {
	db Execer
}

// NewPostgresAuditLog constructs a PostgresAuditLog. The pool stays owned by the caller.
func NewPostgresAuditLog(db Execer) *PostgresAuditLog {
	return &PostgresAuditLog{db: db}
}

// Append inserts one audit row.
func (l *PostgresAuditLog) Append(ctx context.Context, e AuditEntry) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO auth_audit_log (username, action, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.Username, string(e.Action), string(e.Outcome), e.Reason, e.At)
	if err != nil {
		return fmt.Errorf("auth: audit insert: %w", err)
	}
	return nil
}
