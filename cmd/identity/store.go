package identity

import (
	"context"
	"time"
)

// DefaultRole is assigned to every account created through registration.
const DefaultRole = "member"

// Account is collab's credential record.
// PasswordHash is an encoded Argon2id string; the plaintext is never stored.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// CreateAccountInput describes a new account. The password must already be hashed.
type CreateAccountInput struct {
	Username     string
	PasswordHash string
	// Role defaults to DefaultRole when empty.
	Role string
	Now  time.Time
}

// Store is the credential persistence boundary.
//
// CreateAccount is an atomic insert-if-absent: for concurrent calls with the
// same username exactly one succeeds and the others get a ConflictError, with
// prior state left untouched.
type Store interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
}

// User is the public view of an Account. It never carries the password hash.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// PublicUser strips the credential from a.
func (a Account) PublicUser() User {
	return User{ID: a.ID, Username: a.Username, Role: a.Role, CreatedAt: a.CreatedAt}
}

// RoleDirectory reads and updates the stored role string of accounts.
// The role is a label only; nothing in collab authorizes on it.
type RoleDirectory interface {
	GetRole(ctx context.Context, username string) (string, error)
	SetRole(ctx context.Context, username, role string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}
