package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"collab/cmd/identity/ids"
)

// MemoryStore is a dev-only Store used when no database is configured.
// A single mutex serializes writes, which makes CreateAccount insert-if-absent.
type MemoryStore struct {
	mu         sync.RWMutex
	byUsername map[string]Account
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUsername: make(map[string]Account)}
}

// CreateAccount inserts a new account unless the username is already taken.
func (s *MemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if in.Username == "" {
		return Account{}, invalid(op, "username is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, invalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Account{}, err
	}

	acc := Account{
		ID:           id,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         roleOrDefault(in.Role),
		CreatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[in.Username]; exists {
		return Account{}, ConflictError{Op: op, Field: "username"}
	}
	s.byUsername[in.Username] = acc
	return acc, nil
}

// FindByUsername returns the account for username or a NotFoundError.
func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.RLock()
	acc, ok := s.byUsername[username]
	s.mu.RUnlock()

	if !ok {
		return Account{}, NotFoundError{Op: "identity.FindByUsername", Resource: "account"}
	}
	return acc, nil
}

// GetRole returns the stored role for username.
func (s *MemoryStore) GetRole(ctx context.Context, username string) (string, error) {
	acc, err := s.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return acc.Role, nil
}

// SetRole replaces the role of username.
func (s *MemoryStore) SetRole(ctx context.Context, username, role string) (User, error) {
	const op = "identity.SetRole"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if !ValidRole(role) {
		return User{}, invalid(op, "invalid role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byUsername[username]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "account"}
	}
	acc.Role = role
	s.byUsername[username] = acc
	return acc.PublicUser(), nil
}

// ListUsers returns every account, oldest first, without password hashes.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]User, 0, len(s.byUsername))
	for _, acc := range s.byUsername {
		out = append(out, acc.PublicUser())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

// Len returns the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUsername)
}

func roleOrDefault(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return DefaultRole
	}
	return role
}
