package multiauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/internal/logger"
	"github.com/MrEthical07/multiauth/role"
	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/verification"
)

// Register creates an account and logs it in.
//
// Email and phone identifiers must carry the REGISTER code sent to them;
// the channel is stored as verified. Username identifiers must carry a
// password. The user, credential, and first role are created together, so
// two concurrent registrations of one identifier leave exactly one account
// and the loser gets ErrConflict.
//
// A role that starts INACTIVE (MERCHANT) still creates the account, but no
// tokens are issued and ErrPendingApproval is returned.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (_ *AuthTokenResponse, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, end := e.begin(ctx, opRegister)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id, err := identifier.ClassifyStrict(req.Identifier)
	if err != nil {
		return nil, ErrInvalidIdentifierFormat
	}
	ch := channelFor(id.Kind)
	fields := auditFields{identifier: id.Value}

	codeChannel := id.Kind == identifier.KindEmail || id.Kind == identifier.KindPhone
	switch {
	case req.Code != "" && !codeChannel:
		return nil, badRequest("verification codes are only sent to email addresses and phone numbers")
	case codeChannel && req.Code == "":
		return nil, badRequest("verification code is required")
	case !codeChannel && req.Password == "":
		return nil, badRequest("password is required")
	}

	exists, err := e.users.ExistsByIdentifier(ctx, id.Value, ch)
	if err != nil {
		return nil, e.internal(ctx, "check identifier", err)
	}
	if exists {
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, fields, ErrConflict, nil)
		return nil, ErrConflict
	}

	if req.Code != "" {
		ok, err := e.codes.VerifyCode(ctx, id.Value, req.Code, verification.PurposeRegister)
		if err != nil {
			return nil, e.internal(ctx, "verify registration code", err)
		}
		if !ok {
			e.emitAudit(ctx, auditEventRegisterFailure, false, fields, ErrCodeMismatch, nil)
			return nil, ErrCodeMismatch
		}
	}

	cred := user.Credential{AdditionalData: req.AdditionalData}
	cred.Set(ch, id.Value)
	if req.Password != "" {
		if err := e.checkStrength(req.Password); err != nil {
			return nil, err
		}
		hash, err := e.hasher.Hash(req.Password)
		if err != nil {
			return nil, e.internal(ctx, "hash password", err)
		}
		cred.PasswordHash = hash
	}
	if req.Code != "" {
		now := e.now().UTC()
		cred.Verified = map[user.Channel]bool{ch: true}
		cred.LastUsedAt = map[user.Channel]time.Time{ch: now}
	}

	roleType := req.Role
	if roleType == "" {
		roleType = user.RoleType(e.config.Security.DefaultRole)
	}
	status := role.InitialStatus(roleType)
	fields.role = roleType

	u, err := e.users.CreateUserWithCredentialAndRole(ctx, user.CreateParams{
		Credential: cred,
		Role:       roleType,
		RoleStatus: status,
	})
	if errors.Is(err, user.ErrConflict) {
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, fields, ErrConflict, nil)
		return nil, ErrConflict
	}
	if err != nil {
		return nil, e.internal(ctx, "create user", err)
	}
	fields.userID = strconv.FormatInt(u.ID, 10)

	if req.Code != "" {
		if err := e.codes.ClearCode(ctx, id.Value, verification.PurposeRegister); err != nil {
			logger.WithContext(ctx, e.logger).WarnContext(ctx, "failed to clear registration code",
				"user_id", fields.userID, "error", err)
		}
	}

	if status != user.StatusActive {
		e.emitAudit(ctx, auditEventRegisterSuccess, true, fields, nil, func() map[string]string {
			return map[string]string{"role_status": string(status)}
		})
		return nil, ErrPendingApproval
	}

	resp, err := e.issue(ctx, u, []string{string(roleType)}, "")
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventRegisterSuccess, true, fields, nil, func() map[string]string {
		return map[string]string{"channel": string(ch)}
	})
	return resp, nil
}

func (e *Engine) checkStrength(plain string) error {
	if s := e.policy.Validate(plain); !s.Valid {
		return &WeakPasswordError{Violations: s.Errors}
	}
	return nil
}
