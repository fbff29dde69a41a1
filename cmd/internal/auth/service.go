package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"collab/cmd/identity"
	"collab/cmd/security/password"
)

// Service runs the registration and login flows.
// It holds no per-request state; one instance serves all requests.
type Service struct {
	log     *slog.Logger
	store   identity.Store
	pw      password.Config
	audit   AuditLog
	metrics *Metrics
	now     func() time.Time

	// dummyHash is verified against when the account does not exist,
	// so unknown usernames cost the same as wrong passwords.
	dummyHash string
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithAuditLog sets the audit sink (default: none beyond structured logs).
func WithAuditLog(l AuditLog) Option {
	return func(s *Service) {
		if l != nil {
			s.audit = l
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. It pre-computes the dummy hash, which costs one
// Argon2id run at startup.
func NewService(log *slog.Logger, store identity.Store, pw password.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: nil store")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		log:   log,
		store: store,
		pw:    pw,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}

	dummy, err := pw.DummyHash()
	if err != nil {
		return nil, fmt.Errorf("auth: dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

// Register validates the credentials, hashes the password and creates the account.
//
// Rules are checked username first, then password; the first failure decides the
// returned kind and nothing is hashed or stored on any rejection path.
func (s *Service) Register(ctx context.Context, username, plain string) (identity.Account, error) {
	if !identity.ValidUsername(username) {
		s.record(ctx, ActionRegister, username, OutcomeFailure, ReasonInvalidUsername)
		return identity.Account{}, ErrInvalidUsername
	}
	if err := s.pw.Validate(plain); err != nil {
		s.record(ctx, ActionRegister, username, OutcomeFailure, ReasonInvalidPassword)
		return identity.Account{}, fmt.Errorf("%w: %w", ErrInvalidPassword, err)
	}

	start := time.Now()
	hash, err := s.pw.Hash(plain)
	s.metrics.observeHash("hash", start)
	if err != nil {
		s.record(ctx, ActionRegister, username, OutcomeError, ReasonHashError)
		return identity.Account{}, fmt.Errorf("auth: hash password: %w", err)
	}

	acc, err := s.store.CreateAccount(ctx, identity.CreateAccountInput{
		Username:     username,
		PasswordHash: hash,
		Now:          s.now(),
	})
	if err != nil {
		if identity.IsConflict(err) {
			s.record(ctx, ActionRegister, username, OutcomeFailure, ReasonUsernameTaken)
			return identity.Account{}, ErrUsernameTaken
		}
		s.log.Error("auth.register.store.fail", "username", auditUsername(username), "err", err)
		s.record(ctx, ActionRegister, username, OutcomeError, ReasonStoreError)
		return identity.Account{}, fmt.Errorf("auth: create account: %w", err)
	}

	s.record(ctx, ActionRegister, username, OutcomeSuccess, ReasonOK)
	return acc, nil
}

// Login verifies plain against the stored hash for username.
//
// Unknown usernames and wrong passwords both return ErrAuthenticationFailed;
// only the audit trail tells them apart.
func (s *Service) Login(ctx context.Context, username, plain string) (identity.Account, error) {
	acc, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			start := time.Now()
			_, _ = s.pw.Verify(s.dummyHash, plain)
			s.metrics.observeHash("verify", start)

			s.record(ctx, ActionLogin, username, OutcomeFailure, ReasonNotFound)
			return identity.Account{}, ErrAuthenticationFailed
		}
		s.log.Error("auth.login.store.fail", "username", auditUsername(username), "err", err)
		s.record(ctx, ActionLogin, username, OutcomeError, ReasonStoreError)
		return identity.Account{}, fmt.Errorf("auth: find account: %w", err)
	}

	start := time.Now()
	ok, err := s.pw.Verify(acc.PasswordHash, plain)
	s.metrics.observeHash("verify", start)
	if err != nil {
		s.log.Error("auth.login.stored_hash.invalid", "username", username, "account_id", acc.ID, "err", err)
		s.record(ctx, ActionLogin, username, OutcomeFailure, ReasonInvalidHash)
		return identity.Account{}, ErrAuthenticationFailed
	}
	if !ok {
		s.record(ctx, ActionLogin, username, OutcomeFailure, ReasonBadPassword)
		return identity.Account{}, ErrAuthenticationFailed
	}

	s.record(ctx, ActionLogin, username, OutcomeSuccess, ReasonOK)
	return acc, nil
}

// record logs the attempt and appends it to the audit trail.
// Audit failures are logged and never change the outcome.
func (s *Service) record(ctx context.Context, action Action, username string, outcome Outcome, reason string) {
	e := AuditEntry{
		Username: auditUsername(username),
		Action:   action,
		Outcome:  outcome,
		Reason:   reason,
		At:       s.now(),
	}

	lvl := slog.LevelInfo
	if outcome != OutcomeSuccess {
		lvl = slog.LevelWarn
	}
	s.log.Log(ctx, lvl, "auth."+string(action)+"."+string(outcome),
		"username", e.Username,
		"reason", e.Reason,
	)

	s.metrics.observeAttempt(e)

	if s.audit == nil {
		return
	}
	// The request may already be canceled; the trail is still written.
	if err := s.audit.Append(context.WithoutCancel(ctx), e); err != nil {
		s.log.Error("auth.audit.append.fail", "err", err, "action", string(action), "outcome", string(outcome))
	}
}
