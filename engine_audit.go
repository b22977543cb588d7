package multiauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/role"
	"github.com/MrEthical07/multiauth/user"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventRegisterDuplicate    = "register_duplicate"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventRoleDenied           = "role_denied"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventLogout               = "logout"
	auditEventCodeSent             = "verification_code_sent"
	auditEventCodeSuppressed       = "verification_code_suppressed"
	auditEventCodeFailure          = "verification_code_failure"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordResetFailure = "password_reset_failure"
	auditEventPasswordChange       = "password_change_success"
	auditEventPasswordChangeFailed = "password_change_failure"
	auditEventChannelVerified      = "channel_verified"
	auditEventChannelVerifyFailure = "channel_verify_failure"
	auditEventRoleStatusChange     = "role_status_change"
)

// AuditErrorCode is the stable, low-cardinality error label carried by
// audit events and the operations_total outcome label.
type AuditErrorCode string

const (
	auditErrInvalidIdentifier  AuditErrorCode = "invalid_identifier"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrCodeMismatch       AuditErrorCode = "code_mismatch"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountSuspended   AuditErrorCode = "account_suspended"
	auditErrPendingApproval    AuditErrorCode = "pending_approval"
	auditErrRoleExpired        AuditErrorCode = "role_expired"
	auditErrRoleNotFound       AuditErrorCode = "role_not_found"
	auditErrInvalidTransition  AuditErrorCode = "invalid_transition"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrBadRequest         AuditErrorCode = "bad_request"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrNotReady           AuditErrorCode = "not_ready"
	auditErrInternal           AuditErrorCode = "internal_error"
)

type auditFields struct {
	userID     string
	identifier string
	role       user.RoleType
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	f auditFields,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    f.userID,
		Role:      string(f.role),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if f.identifier != "" {
		event.Identifier = identifier.Mask(f.identifier)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInternal):
		return auditErrInternal
	case errors.Is(err, ErrInvalidIdentifierFormat):
		return auditErrInvalidIdentifier
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrCodeMismatch):
		return auditErrCodeMismatch
	case errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrPendingApproval):
		return auditErrPendingApproval
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountSuspended):
		return auditErrAccountSuspended
	case errors.Is(err, ErrRoleExpired):
		return auditErrRoleExpired
	case errors.Is(err, ErrRoleNotFound):
		return auditErrRoleNotFound
	case errors.Is(err, ErrInvalidRoleTransition):
		return auditErrInvalidTransition
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidAccessToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, role.ErrUnknownRole):
		return auditErrBadRequest
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	default:
		return auditErrInternal
	}
}
