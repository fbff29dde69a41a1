// Package password provides password hashing and verification utilities for collab.
//
// It implements Argon2id hashing using a PHC-like encoded string format and includes:
// - Configurable Argon2id parameters (via environment variables)
// - Password policy validation (length bounds, letter + digit composition)
// - Strict hash decoding and verification with anti-DoS bounds
//
// Hash strings are treated as untrusted input during Verify and are validated accordingly.
package password
