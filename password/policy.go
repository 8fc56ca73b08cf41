package password

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrTooWeak is returned by Policy.Validate for passwords outside the policy.
var ErrTooWeak = errors.New("password too weak")

// Policy is the strength rule applied before a password is hashed for
// registration, reset, or change. Lengths count runes.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy requires 12 to 128 characters.
func DefaultPolicy() Policy {
	return Policy{MinLength: 12, MaxLength: 128}
}

// Validate returns an error wrapping ErrTooWeak when password violates p.
func (p Policy) Validate(password string) error {
	if !utf8.ValidString(password) {
		return fmt.Errorf("%w: not valid UTF-8", ErrTooWeak)
	}
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrTooWeak, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrTooWeak, p.MaxLength)
	}
	return nil
}
