package multiauth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrEthical07/multiauth/role"
)

func TestPublicMessage(t *testing.T) {
	internal := errors.Join(ErrInternal, errors.New("dial tcp 10.0.0.1:6379: connection refused"))

	tests := []struct {
		name       string
		err        error
		production bool
		want       string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "internal in production", err: internal, production: true, want: "internal server error"},
		{name: "internal in development", err: internal, production: false, want: internal.Error()},
		{name: "rate limited wrapped", err: fmt.Errorf("%w: %w", ErrRateLimited, errors.New("attempts=5")), production: true, want: ErrRateLimited.Error()},
		{name: "domain sentinel", err: ErrConflict, production: true, want: ErrConflict.Error()},
		{name: "merchant wording", err: role.ErrMerchantDisabled, production: true, want: "merchant account has not been approved"},
		{name: "weak password keeps violations", err: &WeakPasswordError{Violations: []string{"too short"}}, production: true, want: ErrWeakPassword.Error() + ": too short"},
		{name: "unknown error in production", err: errors.New("boom"), production: true, want: "internal server error"},
		{name: "unknown error in development", err: errors.New("boom"), production: false, want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err, tt.production))
		})
	}
}

func TestWeakPasswordErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("register: %w", &WeakPasswordError{})
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.NotErrorIs(t, err, ErrBadRequest)
}

func TestValidationErrorMatchesBadRequest(t *testing.T) {
	err := validateRequest(SendCodeRequest{})
	assert.ErrorIs(t, err, ErrBadRequest)

	var verr *ValidationError
	if assert.ErrorAs(t, err, &verr) {
		fields := verr.Fields()
		assert.Contains(t, fields, "Identifier")
		assert.Contains(t, fields, "Purpose")
	}
}
