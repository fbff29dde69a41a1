package auth

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
	"unicode/utf8"
)

// Action names the flow an audit entry belongs to.
type Action string

const (
	ActionRegister Action = "register"
	ActionLogin    Action = "login"
)

// Outcome is the coarse result of an attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// Audit reasons. not_found and bad_password stay distinct here even though
// the HTTP response for both is identical.
const (
	ReasonOK              = "ok"
	ReasonInvalidUsername = "invalid_username"
	ReasonInvalidPassword = "invalid_password"
	ReasonUsernameTaken   = "username_taken"
	ReasonNotFound        = "not_found"
	ReasonBadPassword     = "bad_password"
	ReasonInvalidHash     = "invalid_hash"
	ReasonStoreError      = "store_error"
	ReasonHashError       = "hash_error"
)

// maxAuditUsernameRunes bounds attacker-controlled usernames written to the trail.
const maxAuditUsernameRunes = 64

// AuditEntry is one immutable record of an authentication attempt.
// It never carries the password.
type AuditEntry struct {
	Username string    `json:"username"`
	Action   Action    `json:"action"`
	Outcome  Outcome   `json:"outcome"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// AuditLog is an append-only sink for AuditEntry values.
type AuditLog interface {
	Append(ctx context.Context, e AuditEntry) error
}

func auditUsername(s string) string {
	if utf8.RuneCountInString(s) <= maxAuditUsernameRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxAuditUsernameRunes])
}

// MemoryAuditLog keeps entries in memory. Used in dev mode and tests.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditLog constructs an empty MemoryAuditLog.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Append records e.
func (l *MemoryAuditLog) Append(_ context.Context, e AuditEntry) error {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return nil
}

// Entries returns a copy of all recorded entries in append order.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// MultiAuditLog appends every entry to each sink in order.
type MultiAuditLog []AuditLog

// Append writes e to all sinks and joins their errors.
func (m MultiAuditLog) Append(ctx context.Context, e AuditEntry) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
