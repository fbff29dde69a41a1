package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"collab/cmd/identity"
	"collab/cmd/security/password"
)

func testPasswordConfig() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, store identity.Store, opts ...Option) (*Service, *MemoryAuditLog) {
	t.Helper()

	audit := NewMemoryAuditLog()
	opts = append([]Option{WithAuditLog(audit)}, opts...)

	svc, err := NewService(discardLogger(), store, testPasswordConfig(), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, audit
}

// failingStore returns err from every call.
type failingStore struct {
	err     error
	creates atomic.Int32
}

func (s *failingStore) CreateAccount(context.Context, identity.CreateAccountInput) (identity.Account, error) {
	s.creates.Add(1)
	return identity.Account{}, s.err
}

func (s *failingStore) FindByUsername(context.Context, string) (identity.Account, error) {
	return identity.Account{}, s.err
}

func lastEntry(t *testing.T, l *MemoryAuditLog) AuditEntry {
	t.Helper()
	entries := l.Entries()
	if len(entries) == 0 {
		t.Fatalf("expected audit entries")
	}
	return entries[len(entries)-1]
}

func TestNewService_NilStore(t *testing.T) {
	if _, err := NewService(discardLogger(), nil, testPasswordConfig()); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestRegister_ThenLogin(t *testing.T) {
	store := identity.NewMemoryStore()
	svc, audit := newTestService(t, store)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "alice123", "secret12")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Username != "alice123" || acc.Role != identity.DefaultRole {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if acc.PasswordHash == "secret12" || strings.Contains(acc.PasswordHash, "secret12") {
		t.Fatalf("stored hash reveals plaintext: %q", acc.PasswordHash)
	}
	if !strings.HasPrefix(acc.PasswordHash, "$argon2id$") {
		t.Fatalf("unexpected hash encoding: %q", acc.PasswordHash)
	}

	got, err := svc.Login(ctx, "alice123", "secret12")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != acc.ID {
		t.Fatalf("login returned a different account: %q vs %q", got.ID, acc.ID)
	}

	entries := audit.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Action != ActionRegister || entries[0].Outcome != OutcomeSuccess {
		t.Fatalf("unexpected register entry: %+v", entries[0])
	}
	if entries[1].Action != ActionLogin || entries[1].Outcome != OutcomeSuccess || entries[1].Reason != ReasonOK {
		t.Fatalf("unexpected login entry: %+v", entries[1])
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	store := identity.NewMemoryStore()
	svc, audit := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice123", "secret12"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(ctx, "alice123", "other999x")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one account, got %d", store.Len())
	}
	if e := lastEntry(t, audit); e.Reason != ReasonUsernameTaken || e.Outcome != OutcomeFailure {
		t.Fatalf("unexpected audit entry: %+v", e)
	}

	// The original password still works.
	if _, err := svc.Login(ctx, "alice123", "secret12"); err != nil {
		t.Fatalf("original credentials rejected: %v", err)
	}
	if _, err := svc.Login(ctx, "alice123", "other999x"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("second password must not authenticate, got %v", err)
	}
}

func TestRegister_ValidationOrder(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		wantErr    error
		wantReason string
	}{
		{"short username", "bob", "secret12", ErrInvalidUsername, ReasonInvalidUsername},
		{"long username", strings.Repeat("a", 21), "secret12", ErrInvalidUsername, ReasonInvalidUsername},
		{"username with dash", "bob-smith", "secret12", ErrInvalidUsername, ReasonInvalidUsername},
		{"bad username wins over bad password", "bob", "short", ErrInvalidUsername, ReasonInvalidUsername},
		{"password too short", "bobsmith", "abc1", ErrInvalidPassword, ReasonInvalidPassword},
		{"password without digit", "bobsmith", "abcdefgh", ErrInvalidPassword, ReasonInvalidPassword},
		{"password without letter", "bobsmith", "12345678", ErrInvalidPassword, ReasonInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := identity.NewMemoryStore()
			svc, audit := newTestService(t, store)

			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if store.Len() != 0 {
				t.Fatalf("rejected registration must not store anything")
			}
			if e := lastEntry(t, audit); e.Reason != tt.wantReason {
				t.Fatalf("reason=%q want %q", e.Reason, tt.wantReason)
			}
		})
	}
}

func TestRegister_InvalidPasswordWrapsPolicyError(t *testing.T) {
	svc, _ := newTestService(t, identity.NewMemoryStore())

	_, err := svc.Register(context.Background(), "bobsmith", "abcdefgh")
	if !errors.Is(err, ErrInvalidPassword) || !errors.Is(err, password.ErrMissingDigit) {
		t.Fatalf("expected ErrInvalidPassword wrapping ErrMissingDigit, got %v", err)
	}
}

func TestLogin_UnknownUserAndWrongPasswordAreIndistinguishable(t *testing.T) {
	svc, audit := newTestService(t, identity.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice123", "secret12"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, errUnknown := svc.Login(ctx, "ghost_user", "secret12")
	unknown := lastEntry(t, audit)
	_, errWrong := svc.Login(ctx, "alice123", "wrongpass9")
	wrong := lastEntry(t, audit)

	if !errors.Is(errUnknown, ErrAuthenticationFailed) || !errors.Is(errWrong, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("error text differs: %q vs %q", errUnknown, errWrong)
	}

	if unknown.Reason != ReasonNotFound {
		t.Fatalf("unknown user reason=%q", unknown.Reason)
	}
	if wrong.Reason != ReasonBadPassword {
		t.Fatalf("wrong password reason=%q", wrong.Reason)
	}
}

func TestLogin_UsernameIsCaseSensitive(t *testing.T) {
	svc, _ := newTestService(t, identity.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Alice123", "secret12"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice123", "secret12"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected lowercase login to fail, got %v", err)
	}
}

func TestLogin_CorruptStoredHash(t *testing.T) {
	store := identity.NewMemoryStore()
	svc, audit := newTestService(t, store)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, identity.CreateAccountInput{
		Username:     "broken01",
		PasswordHash: "not-a-phc-string",
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = svc.Login(ctx, "broken01", "secret12")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if e := lastEntry(t, audit); e.Reason != ReasonInvalidHash {
		t.Fatalf("reason=%q want %q", e.Reason, ReasonInvalidHash)
	}
}

func TestStoreFailureIsServerError(t *testing.T) {
	boom := errors.New("connection reset")
	store := &failingStore{err: boom}
	svc, audit := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice123", "secret12")
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if IsClientError(err) {
		t.Fatalf("store failure must not be a client error: %v", err)
	}
	if e := lastEntry(t, audit); e.Outcome != OutcomeError || e.Reason != ReasonStoreError {
		t.Fatalf("unexpected audit entry: %+v", e)
	}

	_, err = svc.Login(ctx, "alice123", "secret12")
	if !errors.Is(err, boom) || IsClientError(err) {
		t.Fatalf("expected server error on login, got %v", err)
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("store failure must not look like bad credentials")
	}
}

func TestRegister_RejectedInputNeverReachesStore(t *testing.T) {
	store := &failingStore{err: errors.New("unreachable")}
	svc, _ := newTestService(t, store)

	_, _ = svc.Register(context.Background(), "bob", "secret12")
	_, _ = svc.Register(context.Background(), "bobsmith", "short")

	if n := store.creates.Load(); n != 0 {
		t.Fatalf("store called %d times for invalid input", n)
	}
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	store := identity.NewMemoryStore()
	svc, _ := newTestService(t, store)

	const n = 16
	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		taken   atomic.Int32
		unknown atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), "racer_01", "secret12")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrUsernameTaken):
				taken.Add(1)
			default:
				unknown.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || taken.Load() != n-1 || unknown.Load() != 0 {
		t.Fatalf("ok=%d taken=%d other=%d", ok.Load(), taken.Load(), unknown.Load())
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored account, got %d", store.Len())
	}
}

type failingAudit struct{ calls atomic.Int32 }

func (a *failingAudit) Append(context.Context, AuditEntry) error {
	a.calls.Add(1)
	return errors.New("disk full")
}

func TestAuditFailureDoesNotChangeOutcome(t *testing.T) {
	sink := &failingAudit{}
	svc, err := NewService(discardLogger(), identity.NewMemoryStore(), testPasswordConfig(), WithAuditLog(sink))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.Register(context.Background(), "alice123", "secret12"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice123", "secret12"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sink.calls.Load() != 2 {
		t.Fatalf("expected 2 audit calls, got %d", sink.calls.Load())
	}
}

func TestAuditEntryUsesClockAndTruncatesUsername(t *testing.T) {
	fixed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	svc, audit := newTestService(t, identity.NewMemoryStore(), WithClock(func() time.Time { return fixed }))

	long := strings.Repeat("x", 500)
	_, _ = svc.Register(context.Background(), long, "secret12")

	e := lastEntry(t, audit)
	if !e.At.Equal(fixed) {
		t.Fatalf("at=%v want %v", e.At, fixed)
	}
	if len([]rune(e.Username)) != maxAuditUsernameRunes {
		t.Fatalf("username not truncated: %d runes", len([]rune(e.Username)))
	}
}

func TestMetrics_CountAttempts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	svc, _ := newTestService(t, identity.NewMemoryStore(), WithMetrics(m))
	ctx := context.Background()

	_, _ = svc.Register(ctx, "alice123", "secret12")
	_, _ = svc.Login(ctx, "alice123", "secret12")
	_, _ = svc.Login(ctx, "alice123", "nope12345")
	_, _ = svc.Login(ctx, "nobody_1", "nope12345")

	if got := testutil.ToFloat64(m.attempts.WithLabelValues("register", "success", ReasonOK)); got != 1 {
		t.Fatalf("register success=%v", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues("login", "failure", ReasonBadPassword)); got != 1 {
		t.Fatalf("login bad_password=%v", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues("login", "failure", ReasonNotFound)); got != 1 {
		t.Fatalf("login not_found=%v", got)
	}
	if n := testutil.CollectAndCount(m.hashing); n != 2 {
		t.Fatalf("expected hash and verify series, got %d", n)
	}
}

func TestNewService_StrictPolicyStillStarts(t *testing.T) {
	cfg := testPasswordConfig()
	cfg.Policy.MinLength = 32
	cfg.Policy.MaxLength = 40

	svc, err := NewService(discardLogger(), identity.NewMemoryStore(), cfg)
	if err != nil {
		t.Fatalf("NewService with MinLength=32: %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody_here", strings.Repeat("a1", 16)); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestPlaintextNeverLogged(t *testing.T) {
	const (
		good    = "Plain7ext-good"
		wrong   = "Plain7ext-wrong"
		invalid = "nodigitsPLAIN"
	)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := identity.NewMemoryStore()
	svc, err := NewService(log, store, testPasswordConfig(), WithAuditLog(NewMemoryAuditLog()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	_, _ = svc.Register(ctx, "carol_01", good)
	_, _ = svc.Register(ctx, "carol_02", invalid)
	_, _ = svc.Register(ctx, "carol_01", good)
	_, _ = svc.Login(ctx, "carol_01", good)
	_, _ = svc.Login(ctx, "ghost_user", good)
	_, _ = svc.Login(ctx, "carol_01", wrong)

	if _, err := store.CreateAccount(ctx, identity.CreateAccountInput{
		Username: "broken02", PasswordHash: "not-a-phc-string", Now: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _ = svc.Login(ctx, "broken02", good)

	failing, err := NewService(log, &failingStore{err: errors.New("db down")}, testPasswordConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	_, _ = failing.Register(ctx, "carol_03", good)
	_, _ = failing.Login(ctx, "carol_03", good)

	out := buf.String()
	if out == "" {
		t.Fatalf("expected log output")
	}
	for _, secret := range []string{good, wrong, invalid} {
		if strings.Contains(out, secret) {
			t.Fatalf("log output contains plaintext %q:\n%s", secret, out)
		}
	}
}
