package password

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrPolicy is wrapped by every Policy.Validate failure.
var ErrPolicy = errors.New("password does not meet policy")

// Policy is the strength requirement for new passwords.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPolicy requires 10 characters with upper, lower, and digit classes.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:    minPassBytes,
		MaxLength:    DefaultMaxPasswordBytes,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Validate returns nil when password satisfies p.
func (p Policy) Validate(password string) error {
	if n := utf8.RuneCountInString(password); n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrPolicy, p.MinLength)
	}
	// Argon2 enforces a minimum in bytes, so the byte length matters too.
	if len(password) < minPassBytes {
		return fmt.Errorf("%w: must be at least %d bytes long", ErrPolicy, minPassBytes)
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return fmt.Errorf("%w: must be at most %d bytes long", ErrPolicy, p.MaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if p.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: must contain at least one uppercase letter", ErrPolicy)
	}
	if p.RequireLower && !hasLower {
		return fmt.Errorf("%w: must contain at least one lowercase letter", ErrPolicy)
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: must contain at least one number", ErrPolicy)
	}
	if p.RequireSymbol && !hasSymbol {
		return fmt.Errorf("%w: must contain at least one symbol", ErrPolicy)
	}
	return nil
}
