package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewULID(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	a, err := NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if len(a) != 26 {
		t.Fatalf("expected 26 chars, got %d (%q)", len(a), a)
	}

	parsed, err := ulid.ParseStrict(a)
	if err != nil {
		t.Fatalf("ParseStrict(%q): %v", a, err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(now) {
		t.Fatalf("timestamp mismatch: got=%v want=%v", got, now)
	}

	b, err := NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ids for the same instant")
	}
}
