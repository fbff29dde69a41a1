// Package identity implements collab's credential store.
//
// It owns the Account record and the username uniqueness invariant, with a
// PostgreSQL implementation for production and an in-memory one for dev mode
// and tests. Password hashing lives in cmd/security/password; this package only
// ever sees the encoded hash.
package identity
