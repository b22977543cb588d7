package identifier

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Kind is the channel an identifier addresses.
type Kind int

const (
	// KindUnknown is returned for identifiers that match no supported shape.
	KindUnknown Kind = iota
	// KindUsername is a bare account name.
	KindUsername
	// KindEmail is a local@domain.tld address.
	KindEmail
	// KindPhone is a domestic or +country phone number.
	KindPhone
)

// ErrInvalidFormat is returned when an identifier cannot be classified.
var ErrInvalidFormat = errors.New("invalid identifier format")

var (
	emailPattern       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneSniffPattern  = regexp.MustCompile(`^(\+\d{1,3})?\d{10,14}$`)
	phoneStrictPattern = regexp.MustCompile(`^1[3-9]\d{9}$|^\+86[1-9]\d{10}$|^\+\d{1,3}\d{4,14}$`)
	usernamePattern    = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
)

func (k Kind) String() string {
	switch k {
	case KindUsername:
		return "username"
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	default:
		return "unknown"
	}
}

// Identifier is a classified identifier. Value is normalized: emails are
// lower-cased and phone numbers have whitespace removed.
type Identifier struct {
	Kind  Kind
	Value string
}

// Classify decides whether raw is an email, a phone number, or a username.
// Email wins over phone, and phone wins over username, so "13812345678" is a
// phone number even though it would also satisfy the username pattern.
func Classify(raw string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, ErrInvalidFormat
	}

	if IsEmail(trimmed) {
		return Identifier{Kind: KindEmail, Value: strings.ToLower(trimmed)}, nil
	}

	if compact := stripSpaces(trimmed); phoneSniffPattern.MatchString(compact) {
		return Identifier{Kind: KindPhone, Value: compact}, nil
	}

	if IsUsername(trimmed) {
		return Identifier{Kind: KindUsername, Value: trimmed}, nil
	}

	return Identifier{}, ErrInvalidFormat
}

// ClassifyStrict is Classify for identifiers about to be bound to a new
// account: phone numbers must also pass IsPhone.
func ClassifyStrict(raw string) (Identifier, error) {
	id, err := Classify(raw)
	if err != nil {
		return Identifier{}, err
	}
	if id.Kind == KindPhone && !IsPhone(id.Value) {
		return Identifier{}, ErrInvalidFormat
	}
	return id, nil
}

// Channel classifies raw for code delivery. Only email and phone identifiers
// can receive a code.
func Channel(raw string) (Identifier, error) {
	id, err := Classify(raw)
	if err != nil {
		return Identifier{}, err
	}
	if id.Kind != KindEmail && id.Kind != KindPhone {
		return Identifier{}, ErrInvalidFormat
	}
	return id, nil
}

// IsEmail reports whether s looks like local@domain.tld.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsPhone applies the strict phone rules: 11-digit domestic mobile numbers,
// +86 numbers, and generic +<country><number> forms.
func IsPhone(s string) bool {
	return phoneStrictPattern.MatchString(stripSpaces(s))
}

// IsUsername reports whether s is 3 to 50 letters, digits, or underscores.
func IsUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
