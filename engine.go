package multiauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/multiauth/identifier"
	internalaudit "github.com/MrEthical07/multiauth/internal/audit"
	"github.com/MrEthical07/multiauth/internal/logger"
	"github.com/MrEthical07/multiauth/internal/rate"
	"github.com/MrEthical07/multiauth/jwt"
	"github.com/MrEthical07/multiauth/password"
	"github.com/MrEthical07/multiauth/role"
	"github.com/MrEthical07/multiauth/token"
	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/verification"
)

// Engine orchestrates registration, login, token rotation, and the
// account flows around them. Build one with New().…Build().
//
// Engine instances are configured during initialization and then treated as
// immutable. All methods are safe for concurrent use.
type Engine struct {
	config  Config
	users   user.Repository
	codes   *verification.Engine
	tokens  *token.Engine
	hasher  *password.Hasher
	auth    *password.Authenticator
	policy  password.Policy
	gate    *role.Gate
	limiter *rate.Limiter
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	closed  atomic.Bool
}

// Close stops the audit dispatcher after draining queued events. Calls
// made after Close fail with ErrEngineNotReady.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// VerifyAccess checks an access token the way every protected request
// must: signature, expiry, required claims, and the revocation blacklist.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (_ *jwt.AccessClaims, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, end := e.begin(ctx, opVerifyAccess)
	defer end(&err)

	claims, err := e.tokens.VerifyAccess(ctx, accessToken)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, token.ErrInvalidAccessToken), errors.Is(err, token.ErrTokenRevoked):
		return nil, err
	default:
		return nil, e.internal(ctx, "check blacklist", err)
	}
}

// Refresh rotates a refresh token. The user is reloaded so the new access
// token reflects current roles. A session opened for one role stays scoped
// to that role, and fails once the grant is no longer usable. Every
// failure is ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (_ *AuthTokenResponse, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, end := e.begin(ctx, opRefresh)
	defer end(&err)

	var loaded *user.User
	pair, subject, err := e.tokens.Refresh(ctx, refreshToken, func(ctx context.Context, userID, scope string) (token.Subject, error) {
		u, err := e.loadUser(ctx, userID)
		if err != nil {
			return token.Subject{}, err
		}
		if scope != "" {
			scoped, err := e.gate.Scope(u, user.RoleType(scope))
			if err != nil {
				return token.Subject{}, err
			}
			loaded = scoped
			return subjectFor(scoped, []string{scope}, scope), nil
		}
		roles := u.ActiveRoleTypes(e.now())
		if len(roles) == 0 {
			return token.Subject{}, ErrAccountDisabled
		}
		loaded = u
		return subjectFor(u, roles, ""), nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventRefreshInvalid, false, auditFields{}, ErrInvalidRefreshToken, nil)
		return nil, ErrInvalidRefreshToken
	}

	e.emitAudit(ctx, auditEventRefreshSuccess, true, auditFields{userID: subject.UserID}, nil, nil)
	return tokenResponse(pair, loaded), nil
}

// Logout ends the user's session: the refresh token is dropped and, when
// accessToken is non-empty and belongs to userID, it is blacklisted for the
// rest of its life. Logging out twice succeeds.
func (e *Engine) Logout(ctx context.Context, userID, accessToken string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opLogout)
	defer end(&err)

	if userID == "" {
		return badRequest("user id is required")
	}
	if err := e.tokens.Logout(ctx, userID); err != nil {
		return e.internal(ctx, "drop refresh token", err)
	}
	if accessToken != "" {
		if err := e.revokeOwnAccess(ctx, userID, accessToken); err != nil {
			return err
		}
	}

	e.emitAudit(ctx, auditEventLogout, true, auditFields{userID: userID}, nil, nil)
	return nil
}

// revokeOwnAccess blacklists accessToken only when its subject is userID.
func (e *Engine) revokeOwnAccess(ctx context.Context, userID, accessToken string) error {
	claims, err := e.tokens.VerifyAccess(ctx, accessToken)
	switch {
	case errors.Is(err, token.ErrInvalidAccessToken), errors.Is(err, token.ErrTokenRevoked):
		return nil
	case err != nil:
		return e.internal(ctx, "check access token", err)
	}
	if claims.Subject != userID {
		logger.WithContext(ctx, e.logger).WarnContext(ctx, "logout ignored access token of another subject",
			"user_id", userID, "token_subject", claims.Subject)
		return nil
	}
	if _, err := e.tokens.RevokeAccess(ctx, accessToken); err != nil {
		return e.internal(ctx, "revoke access token", err)
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// begin opens a span for op. The returned func ends it and records the
// operation metrics; it reads the final error through errp.
func (e *Engine) begin(ctx context.Context, op string) (context.Context, func(errp *error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "multiauth."+op)
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		span.SetAttributes(attribute.String("multiauth.outcome", outcome(err)))
		if errors.Is(err, ErrInternal) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "internal error")
		}
		span.End()
		e.metrics.observe(op, start, err)
	}
}

// internal logs err with full detail and returns it joined with ErrInternal.
func (e *Engine) internal(ctx context.Context, step string, err error) error {
	logger.WithContext(ctx, e.logger).ErrorContext(ctx, "multiauth operation failed", "step", step, "error", err)
	return errors.Join(ErrInternal, fmt.Errorf("%s: %w", step, err))
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*user.User, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrUserNotFound
	}
	u, err := e.users.FindByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, e.internal(ctx, "load user", err)
	}
	return u, nil
}

// findByChannel looks id up on the repository column its kind maps to.
func (e *Engine) findByChannel(ctx context.Context, id identifier.Identifier) (*user.User, error) {
	var (
		u   *user.User
		err error
	)
	switch id.Kind {
	case identifier.KindEmail:
		u, err = e.users.FindByEmail(ctx, id.Value)
	case identifier.KindPhone:
		u, err = e.users.FindByPhone(ctx, id.Value)
	default:
		u, err = e.users.FindByUsername(ctx, id.Value)
	}
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, e.internal(ctx, "find user", err)
	}
	return u, nil
}

// issue mints a pair for u carrying roles. A non-empty scope pins the
// session to that single role across refreshes.
func (e *Engine) issue(ctx context.Context, u *user.User, roles []string, scope string) (*AuthTokenResponse, error) {
	pair, err := e.tokens.Generate(ctx, subjectFor(u, roles, scope))
	if err != nil {
		return nil, e.internal(ctx, "issue tokens", err)
	}
	return tokenResponse(pair, u), nil
}

func subjectFor(u *user.User, roles []string, scope string) token.Subject {
	return token.Subject{
		UserID:   strconv.FormatInt(u.ID, 10),
		Username: u.Credential.Username,
		Email:    u.Credential.Email,
		Phone:    u.Credential.Phone,
		Roles:    roles,
		Scope:    scope,
	}
}

func tokenResponse(pair token.Pair, u *user.User) *AuthTokenResponse {
	resp := &AuthTokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    pair.TokenType,
	}
	if u != nil {
		resp.User = projectUser(u)
	}
	return resp
}

func channelFor(k identifier.Kind) user.Channel {
	switch k {
	case identifier.KindEmail:
		return user.ChannelEmail
	case identifier.KindPhone:
		return user.ChannelPhone
	default:
		return user.ChannelUsername
	}
}
