package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrMissingLetter    = errors.New("password must contain a letter")
	ErrMissingDigit     = errors.New("password must contain a digit")
	ErrInvalidHash      = errors.New("invalid password hash")
)
