// Package auth implements registration and login for collab accounts.
//
// Service enforces the username/password policy, hashes and verifies passwords
// through cmd/security/password, persists through an identity.Store and writes
// one AuditEntry per attempt. The audit trail is observational only: nothing in
// this package reads it back to make a decision.
package auth
