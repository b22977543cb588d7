package multiauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/internal/logger"
	"github.com/MrEthical07/multiauth/internal/rate"
	"github.com/MrEthical07/multiauth/role"
	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/verification"
)

// Login authenticates req.Identifier with req.Proof and issues tokens.
//
// Both proof kinds count towards the failed-login lockout of the
// identifier (and of the client IP when enabled). While locked, Login
// fails with ErrRateLimited before the proof is looked at.
//
// With req.Role set, the role gate decides: a missing customer or merchant
// grant is provisioned, a missing admin grant is refused, and an inactive,
// suspended, or expired grant fails the login. The session is then scoped
// to that single role, refreshes included. Without req.Role the token
// carries every active role of the account.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (_ *AuthTokenResponse, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, end := e.begin(ctx, opLogin)
	defer end(&err)

	proof, ok := normalizeProof(req.Proof)
	if !ok {
		return nil, badRequest("login proof is required")
	}
	req.Proof = proof
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var u *user.User
	switch p := proof.(type) {
	case PasswordLogin:
		u, err = e.passwordLogin(ctx, req.Identifier, p.Password)
	case CodeLogin:
		u, err = e.codeLogin(ctx, req.Identifier, p.Code)
	}
	if err != nil {
		return nil, err
	}

	fields := auditFields{userID: strconv.FormatInt(u.ID, 10), identifier: req.Identifier, role: req.Role}

	var (
		roles []string
		scope string
	)
	if req.Role != "" {
		scoped, err := e.gate.Enter(ctx, u, req.Role)
		if err != nil {
			if !isRoleDenial(err) {
				return nil, e.internal(ctx, "enter role", err)
			}
			if errors.Is(err, role.ErrUnknownRole) {
				err = fmt.Errorf("%w: %w", ErrBadRequest, err)
			}
			e.emitAudit(ctx, auditEventRoleDenied, false, fields, err, nil)
			return nil, err
		}
		u = scoped
		scope = string(req.Role)
		roles = []string{scope}
	} else {
		roles = u.ActiveRoleTypes(e.now())
		if len(roles) == 0 {
			e.emitAudit(ctx, auditEventRoleDenied, false, fields, ErrAccountDisabled, nil)
			return nil, ErrAccountDisabled
		}
	}

	resp, err := e.issue(ctx, u, roles, scope)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventLoginSuccess, true, fields, nil, func() map[string]string {
		return map[string]string{"method": proofMethod(proof)}
	})
	return resp, nil
}

func (e *Engine) passwordLogin(ctx context.Context, raw, plain string) (*user.User, error) {
	key := lockoutKey(raw)
	if err := e.checkLockout(ctx, key); err != nil {
		return nil, err
	}

	u, err := e.auth.ValidateCredentials(ctx, key, plain)
	if err != nil {
		return nil, e.internal(ctx, "validate credentials", err)
	}
	if u == nil {
		e.recordLoginFailure(ctx, key, "password")
		return nil, ErrInvalidCredentials
	}

	e.resetLockout(ctx, key)
	return u, nil
}

func (e *Engine) codeLogin(ctx context.Context, raw, code string) (*user.User, error) {
	id, err := identifier.Channel(raw)
	if err != nil {
		return nil, ErrInvalidIdentifierFormat
	}
	if err := e.checkLockout(ctx, id.Value); err != nil {
		return nil, err
	}

	ok, err := e.codes.VerifyCode(ctx, id.Value, code, verification.PurposeLogin)
	if err != nil {
		return nil, e.internal(ctx, "verify login code", err)
	}
	if !ok {
		e.recordLoginFailure(ctx, id.Value, "code")
		return nil, ErrCodeMismatch
	}

	u, err := e.findByChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		e.recordLoginFailure(ctx, id.Value, "code")
		return nil, ErrInvalidCredentials
	}

	if err := e.codes.ClearCode(ctx, id.Value, verification.PurposeLogin); err != nil {
		logger.WithContext(ctx, e.logger).WarnContext(ctx, "failed to clear login code", "user_id", u.ID, "error", err)
	}

	now := e.now().UTC()
	if err := e.users.TouchChannel(ctx, u.ID, channelFor(id.Kind), now); err != nil {
		return nil, e.internal(ctx, "touch channel", err)
	}
	if err := e.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, e.internal(ctx, "update last login", err)
	}
	u.LastLoginAt = &now
	u.Credential.LastLoginAt = &now

	e.resetLockout(ctx, id.Value)
	return u, nil
}

func (e *Engine) checkLockout(ctx context.Context, key string) error {
	err := e.limiter.CheckLogin(ctx, key, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.emitAudit(ctx, auditEventLoginRateLimited, false, auditFields{identifier: key}, ErrRateLimited, nil)
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	default:
		return e.internal(ctx, "check lockout", err)
	}
}

// recordLoginFailure counts a failed proof. A lockout store failure does not
// change the answer the caller gets.
func (e *Engine) recordLoginFailure(ctx context.Context, key, method string) {
	err := e.limiter.RecordFailure(ctx, key, clientIPFromContext(ctx))
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		logger.WithContext(ctx, e.logger).WarnContext(ctx, "login locked out", "identifier", identifier.Mask(key))
	case err != nil:
		logger.WithContext(ctx, e.logger).ErrorContext(ctx, "failed to record login failure", "error", err)
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, auditFields{identifier: key}, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"method": method}
	})
}

func (e *Engine) resetLockout(ctx context.Context, key string) {
	if err := e.limiter.ResetLogin(ctx, key); err != nil {
		logger.WithContext(ctx, e.logger).WarnContext(ctx, "failed to reset login attempts", "error", err)
	}
}

// lockoutKey is the normalized identifier when raw classifies, and the
// trimmed input otherwise, so "User@Example.com" and "user@example.com"
// share a counter.
func lockoutKey(raw string) string {
	if id, err := identifier.Classify(raw); err == nil {
		return id.Value
	}
	return strings.TrimSpace(raw)
}

func normalizeProof(p Proof) (Proof, bool) {
	switch v := p.(type) {
	case PasswordLogin, CodeLogin:
		return v, true
	case *PasswordLogin:
		if v != nil {
			return *v, true
		}
	case *CodeLogin:
		if v != nil {
			return *v, true
		}
	}
	return nil, false
}

func proofMethod(p Proof) string {
	if _, ok := p.(CodeLogin); ok {
		return "code"
	}
	return "password"
}

func isRoleDenial(err error) bool {
	return errors.Is(err, role.ErrPendingApproval) ||
		errors.Is(err, role.ErrAccountDisabled) ||
		errors.Is(err, role.ErrAccountSuspended) ||
		errors.Is(err, role.ErrRoleExpired) ||
		errors.Is(err, role.ErrUnknownRole)
}
