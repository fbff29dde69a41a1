package password

import "unicode/utf8"

// Validate checks password policy. It does not mutate input.
//
// Rules are applied in a fixed order so the reported error is deterministic:
// length bounds first, then composition (one ASCII letter, one ASCII digit).
func (c Config) Validate(password string) error {
	// Count characters (runes), not bytes.
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if c.Policy.MaxLength > 0 && n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	hasLetter, hasDigit := composition(password)
	if c.Policy.RequireLetter && !hasLetter {
		return ErrMissingLetter
	}
	if c.Policy.RequireDigit && !hasDigit {
		return ErrMissingDigit
	}

	return nil
}

func composition(pw string) (hasLetter, hasDigit bool) {
	for i := 0; i < len(pw); i++ {
		b := pw[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
			hasLetter = true
		case b >= '0' && b <= '9':
			hasDigit = true
		}
		if hasLetter && hasDigit {
			return
		}
	}
	return
}
