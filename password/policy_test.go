package password

import (
	"strings"
	"testing"
)

func TestPolicyAcceptsStrongPassword(t *testing.T) {
	s := DefaultPolicy().Validate("Abcd123!")
	if !s.Valid || len(s.Errors) != 0 {
		t.Fatalf("expected strong password to pass, got %+v", s)
	}
}

func TestPolicyReportsEveryViolation(t *testing.T) {
	s := DefaultPolicy().Validate("abc")
	if s.Valid {
		t.Fatal("expected weak password to fail")
	}
	// too short, no uppercase, no digit, no symbol
	if len(s.Errors) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(s.Errors), s.Errors)
	}
	if !strings.Contains(s.Errors[0], "at least 8") {
		t.Fatalf("expected length rule first, got %q", s.Errors[0])
	}
}

func TestPolicyMaxLength(t *testing.T) {
	p := Policy{MinLength: 8, MaxLength: 10}
	s := p.Validate("Abcdefgh12345!")
	if s.Valid {
		t.Fatal("expected long password to fail")
	}
	if len(s.Errors) != 1 || !strings.Contains(s.Errors[0], "exceed 10") {
		t.Fatalf("unexpected errors: %v", s.Errors)
	}
}

func TestPolicySymbolSet(t *testing.T) {
	for _, pw := range []string{"Abcd1234!", "Abcd1234?", "Abcd1234\"", "Abcd1234|"} {
		if s := DefaultPolicy().Validate(pw); !s.Valid {
			t.Fatalf("expected %q to pass, got %v", pw, s.Errors)
		}
	}
	if s := DefaultPolicy().Validate("Abcd1234-"); s.Valid {
		t.Fatal("expected '-' not to count as a symbol")
	}
}
