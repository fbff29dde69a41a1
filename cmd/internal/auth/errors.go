package auth

import "errors"

// Outcome kinds surfaced to callers. Match with errors.Is.
var (
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrUsernameTaken        = errors.New("username taken")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// IsClientError reports whether err is one of the caller-correctable outcome kinds.
// Anything else returned by Service is a server-side failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrInvalidPassword) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrAuthenticationFailed)
}
