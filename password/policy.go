package password

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultMinLength = 8
	DefaultMaxLength = 128

	// Symbols is the punctuation set a strong password must draw from.
	Symbols = `!@#$%^&*(),.?":{}|<>`
)

// Policy holds the composition rules for new passwords.
type Policy struct {
	MinLength int
	MaxLength int
}

// Strength is the outcome of a policy check. Errors lists every rule the
// candidate violated, in a stable order.
type Strength struct {
	Valid  bool
	Errors []string
}

// DefaultPolicy returns the 8..128 policy.
func DefaultPolicy() Policy {
	return Policy{MinLength: DefaultMinLength, MaxLength: DefaultMaxLength}
}

// Validate checks length and composition of plain.
func (p Policy) Validate(plain string) Strength {
	var errs []string

	n := len([]rune(plain))
	if n < p.MinLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters long", p.MinLength))
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		errs = append(errs, fmt.Sprintf("password must not exceed %d characters", p.MaxLength))
	}

	var lower, upper, digit, symbol bool
	for _, r := range plain {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(Symbols, r):
			symbol = true
		}
	}

	if !lower {
		errs = append(errs, "password must contain at least one lowercase letter")
	}
	if !upper {
		errs = append(errs, "password must contain at least one uppercase letter")
	}
	if !digit {
		errs = append(errs, "password must contain at least one number")
	}
	if !symbol {
		errs = append(errs, "password must contain at least one special character")
	}

	return Strength{Valid: len(errs) == 0, Errors: errs}
}
