package records

import "errors"

// ErrInvalidInput is wrapped by every ValidationError.
var ErrInvalidInput = errors.New("records: invalid input")

// ValidationError names the rejected field with a stable code for API clients.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string { return "records: " + e.Message }

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(code, msg string) error {
	return ValidationError{Code: code, Message: msg}
}
