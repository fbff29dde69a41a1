package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndFind(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	acc, err := s.CreateAccount(ctx, CreateAccountInput{
		Username:     "alice123",
		PasswordHash: "$argon2id$hash-1",
		Now:          now,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if len(acc.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", acc.ID)
	}
	if acc.Role != DefaultRole {
		t.Fatalf("expected default role, got %q", acc.Role)
	}
	if !acc.CreatedAt.Equal(now) {
		t.Fatalf("created_at mismatch: %v", acc.CreatedAt)
	}

	got, err := s.FindByUsername(ctx, "alice123")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got != acc {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", got, acc)
	}

	role, err := s.GetRole(ctx, "alice123")
	if err != nil || role != DefaultRole {
		t.Fatalf("GetRole=%q,%v", role, err)
	}
}

func TestMemoryStore_DuplicateLeavesOriginal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.CreateAccount(ctx, CreateAccountInput{Username: "alice123", PasswordHash: "hash-1"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "alice123", PasswordHash: "hash-2"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "username" {
		t.Fatalf("expected ConflictError{Field: username}, got %#v", err)
	}

	got, err := s.FindByUsername(ctx, "alice123")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.PasswordHash != "hash-1" || got.ID != first.ID {
		t.Fatalf("original account mutated: %+v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 account, got %d", s.Len())
	}
}

func TestMemoryStore_CaseSensitiveUsernames(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, CreateAccountInput{Username: "Alice123", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := s.CreateAccount(ctx, CreateAccountInput{Username: "alice123", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateAccount lower-case: %v", err)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.FindByUsername(context.Background(), "nouser")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetRole(context.Background(), "nouser"); !IsNotFound(err) {
		t.Fatalf("expected not found from GetRole, got %v", err)
	}
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, CreateAccountInput{PasswordHash: "h"}); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for empty username, got %v", err)
	}
	if _, err := s.CreateAccount(ctx, CreateAccountInput{Username: "alice123", PasswordHash: "  "}); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for empty hash, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected no rows, got %d", s.Len())
	}
}

func TestMemoryStore_ConcurrentCreateExactlyOne(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "racer_01", PasswordHash: "h"})
			switch {
			case err == nil:
				successes.Add(1)
			case IsConflict(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes.Load() != 1 || conflicts.Load() != workers-1 {
		t.Fatalf("successes=%d conflicts=%d", successes.Load(), conflicts.Load())
	}
	if s.Len() != 1 {
		t.Fatalf("expected exactly one row, got %d", s.Len())
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.CreateAccount(ctx, CreateAccountInput{Username: "alice123", PasswordHash: "h"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryStore_SetRoleAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	for i, name := range []string{"bobby_01", "alice123"} {
		if _, err := s.CreateAccount(ctx, CreateAccountInput{
			Username: name, PasswordHash: "$argon2id$x", Now: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	u, err := s.SetRole(ctx, "alice123", "admin")
	if err != nil || u.Role != "admin" {
		t.Fatalf("SetRole=%+v,%v", u, err)
	}
	if role, _ := s.GetRole(ctx, "alice123"); role != "admin" {
		t.Fatalf("GetRole after SetRole=%q", role)
	}

	// The credential survives a role change.
	acc, err := s.FindByUsername(ctx, "alice123")
	if err != nil || acc.PasswordHash != "$argon2id$x" {
		t.Fatalf("account after SetRole=%+v,%v", acc, err)
	}

	if _, err := s.SetRole(ctx, "nouser", "admin"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.SetRole(ctx, "bobby_01", ""); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "bobby_01" || users[1].Role != "admin" {
		t.Fatalf("unexpected users: %+v", users)
	}
}
