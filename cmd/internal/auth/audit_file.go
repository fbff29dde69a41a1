package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileAuditLog writes entries as JSON lines to a file opened in append mode.
// Each entry is synced before Append returns.
type FileAuditLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFileAuditLog opens (or creates) path for appending.
func OpenFileAuditLog(path string) (*FileAuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("auth: open audit file: %w", err)
	}
	return &FileAuditLog{f: f}, nil
}

// Append writes e as one JSON line.
func (l *FileAuditLog) Append(_ context.Context, e AuditEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Write(b); err != nil {
		return fmt.Errorf("auth: audit write: %w", err)
	}
	return l.f.Sync()
}

// Close closes the underlying file.
func (l *FileAuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
