package identity

import "regexp"

const (
	UsernameMinLen = 5
	UsernameMaxLen = 20
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{5,20}$`)
	roleRe     = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
)

// ValidUsername reports whether s is 5..20 characters of [A-Za-z0-9_].
// Usernames are compared byte-exactly; no normalization is applied.
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// ValidRole reports whether s is a lowercase role label of at most 32 characters.
func ValidRole(s string) bool {
	return roleRe.MatchString(s)
}
