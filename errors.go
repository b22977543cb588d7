package multiauth

import (
	"errors"
	"strings"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/role"
	"github.com/MrEthical07/multiauth/token"
	"github.com/MrEthical07/multiauth/verification"
)

var (
	// ErrInvalidIdentifierFormat is returned when an identifier is neither a
	// username, an email address, nor a phone number, or when a code flow
	// receives a username.
	ErrInvalidIdentifierFormat = identifier.ErrInvalidFormat
	// ErrRateLimited is returned for resend cooldowns and login lockouts.
	ErrRateLimited = errors.New("too many requests")
	// ErrDeliveryFailed is returned when the notifier could not deliver a code.
	ErrDeliveryFailed = verification.ErrDeliveryFailed
	// ErrCodeMismatch is returned for wrong, missing, or expired codes.
	ErrCodeMismatch = errors.New("verification code is invalid or expired")
	// ErrConflict is returned when an identifier is already registered.
	ErrConflict = errors.New("identifier already registered")
	// ErrInvalidCredentials is returned for every failed login proof.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned for inactive role grants.
	ErrAccountDisabled = role.ErrAccountDisabled
	// ErrAccountSuspended is returned for suspended role grants.
	ErrAccountSuspended = role.ErrAccountSuspended
	// ErrPendingApproval is returned for merchant grants awaiting approval.
	ErrPendingApproval = role.ErrPendingApproval
	// ErrRoleExpired is returned when a grant's expiry has passed.
	ErrRoleExpired = role.ErrRoleExpired
	// ErrRoleNotFound is returned by role transitions on a missing grant.
	ErrRoleNotFound = errors.New("role not found")
	// ErrInvalidRoleTransition is returned when a role is not in the state a
	// transition starts from.
	ErrInvalidRoleTransition = errors.New("invalid role transition")
	// ErrInvalidRefreshToken is the single error refresh reports.
	ErrInvalidRefreshToken = token.ErrInvalidRefreshToken
	// ErrInvalidAccessToken is returned for unusable access tokens.
	ErrInvalidAccessToken = token.ErrInvalidAccessToken
	// ErrTokenRevoked is returned for blacklisted access tokens.
	ErrTokenRevoked = token.ErrTokenRevoked
	// ErrBadRequest is returned when a request fails validation.
	ErrBadRequest = errors.New("bad request")
	// ErrWeakPassword is returned when a new password fails the policy.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrPasswordReuse is returned when a new password equals the old one.
	ErrPasswordReuse = errors.New("new password must differ from the current password")
	// ErrUserNotFound is returned when a user id resolves to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrInternal marks failures of the cache, repository, or signer.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// WeakPasswordError lists every policy rule a password violated.
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	if len(e.Violations) == 0 {
		return ErrWeakPassword.Error()
	}
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Violations, "; ")
}

// Is makes errors.Is(err, ErrWeakPassword) hold.
func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// PublicMessage maps err to a message that is safe to return to a client.
// Domain errors keep their own wording. Anything else is reported as a
// generic failure in production and verbatim otherwise.
func PublicMessage(err error, production bool) string {
	if err == nil {
		return ""
	}

	var weak *WeakPasswordError
	if errors.As(err, &weak) {
		return weak.Error()
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}

	if errors.Is(err, ErrInternal) {
		if production {
			return "internal server error"
		}
		return err.Error()
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	case errors.Is(err, ErrDeliveryFailed):
		return ErrDeliveryFailed.Error()
	case errors.Is(err, role.ErrMerchantDisabled):
		return "merchant account has not been approved"
	}

	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	if production {
		return "internal server error"
	}
	return err.Error()
}

var publicErrors = []error{
	ErrInvalidIdentifierFormat,
	ErrCodeMismatch,
	ErrConflict,
	ErrInvalidCredentials,
	ErrAccountDisabled,
	ErrAccountSuspended,
	ErrPendingApproval,
	ErrRoleExpired,
	ErrRoleNotFound,
	ErrInvalidRoleTransition,
	ErrInvalidRefreshToken,
	ErrInvalidAccessToken,
	ErrTokenRevoked,
	ErrBadRequest,
	ErrPasswordReuse,
	ErrUserNotFound,
	ErrEngineNotReady,
}
