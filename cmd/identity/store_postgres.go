package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"collab/cmd/identity/ids"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
// pgxmock.PgxPoolIface satisfies it as well.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store and RoleDirectory over PostgreSQL.
//
// The pool is owned by the caller; this store never closes it.
// Uniqueness of usernames is enforced by the uq_accounts_username constraint,
// so CreateAccount is atomic without explicit locking.
type PostgresStore struct {
	db     DB
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema holding the accounts table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db DB, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return st, nil
}

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
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
	role := roleOrDefault(in.Role)

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, in.Username, in.PasswordHash, role, now,
	)
	if err != nil {
		if isUsernameViolation(err) {
			return Account{}, ConflictError{Op: op, Field: "username"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return Account{
		ID:           id,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}

// FindByUsername looks up an account by its unique username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	const op = "identity.FindByUsername"

	var acc Account
	err := s.db.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at
		   FROM `+s.table()+`
		  WHERE username = $1`,
		username,
	).Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &acc.Role, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// GetRole returns the stored role string for username.
func (s *PostgresStore) GetRole(ctx context.Context, username string) (string, error) {
	const op = "identity.GetRole"

	var role string
	err := s.db.QueryRow(ctx,
		`SELECT role FROM `+s.table()+` WHERE username = $1`,
		username,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", NotFoundError{Op: op, Resource: "account"}
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return role, nil
}

// SetRole replaces the role of username and returns the updated user.
func (s *PostgresStore) SetRole(ctx context.Context, username, role string) (User, error) {
	const op = "identity.SetRole"

	if !ValidRole(role) {
		return User{}, invalid(op, "invalid role")
	}

	var u User
	err := s.db.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET role = $2
		  WHERE username = $1
		RETURNING id, username, role, created_at`,
		username, role,
	).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "account"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers returns every account, oldest first. The hash column is never selected.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	const op = "identity.ListUsers"

	rows, err := s.db.Query(ctx,
		`SELECT id, username, role, created_at
		   FROM `+s.table()+`
		  ORDER BY created_at ASC, username ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "accounts"}.Sanitize()
}

// usernameConstraint is the UNIQUE constraint declared in migration 00001.
const usernameConstraint = "uq_accounts_username"

// isUsernameViolation reports a 23505 on the username constraint. Other unique
// violations (an ID collision, say) stay server errors.
func isUsernameViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == usernameConstraint
}
