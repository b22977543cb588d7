package identifier

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		raw   string
		kind  Kind
		value string
	}{
		{raw: "User@Example.com", kind: KindEmail, value: "user@example.com"},
		{raw: "13812345678", kind: KindPhone, value: "13812345678"},
		{raw: "+86 138 1234 5678", kind: KindPhone, value: "+8613812345678"},
		{raw: "+14155550123", kind: KindPhone, value: "+14155550123"},
		{raw: "alice123", kind: KindUsername, value: "alice123"},
		{raw: "  bob_the_builder ", kind: KindUsername, value: "bob_the_builder"},
	}

	for _, tc := range tests {
		got, err := Classify(tc.raw)
		if err != nil {
			t.Fatalf("Classify(%q) returned error: %v", tc.raw, err)
		}
		if got.Kind != tc.kind || got.Value != tc.value {
			t.Fatalf("Classify(%q) = %+v, want kind=%s value=%q", tc.raw, got, tc.kind, tc.value)
		}
	}
}

func TestClassifyRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "ab", "not an id", "a@b", "x@y.", "bad-name!"} {
		if _, err := Classify(raw); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("Classify(%q) expected ErrInvalidFormat, got %v", raw, err)
		}
	}
}

func TestChannelRejectsUsername(t *testing.T) {
	if _, err := Channel("alice123"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected username to be rejected as a delivery channel, got %v", err)
	}
	id, err := Channel("user@example.com")
	if err != nil || id.Kind != KindEmail {
		t.Fatalf("expected email channel, got %+v err=%v", id, err)
	}
}

func TestIsPhoneStrict(t *testing.T) {
	valid := []string{"13812345678", "+8613812345678", "+447911123456", "+1 415 555 0123"}
	for _, s := range valid {
		if !IsPhone(s) {
			t.Fatalf("expected %q to be a valid phone", s)
		}
	}

	invalid := []string{"12812345678", "23812345678", "phone", "+12"}
	for _, s := range invalid {
		if IsPhone(s) {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestClassifyStrict(t *testing.T) {
	for _, raw := range []string{"13812345678", "+86 138 1234 5678", "alice123", "User@Example.com"} {
		if _, err := ClassifyStrict(raw); err != nil {
			t.Fatalf("expected %q to classify strictly, got %v", raw, err)
		}
	}
	for _, raw := range []string{"12345678901", "5551234567"} {
		if _, err := Classify(raw); err != nil {
			t.Fatalf("expected %q to pass the loose sniff, got %v", raw, err)
		}
		if _, err := ClassifyStrict(raw); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("expected %q to fail strict classification, got %v", raw, err)
		}
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"john@example.com": "j***@example.com",
		"13812345678":      "138****5678",
		"johnnie":          "jo***e",
		"abc":              "a***",
		"!!":               "***",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}
