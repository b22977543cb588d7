package multiauth

import (
	"context"
	"strconv"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/internal/logger"
	"github.com/MrEthical07/multiauth/verification"
)

// ResetPassword sets a new password for the account bound to
// req.Identifier, proven with a RESET_PASSWORD code. The live refresh
// token is revoked and the failed-login counter cleared.
func (e *Engine) ResetPassword(ctx context.Context, req ResetPasswordRequest) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opResetPassword)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return err
	}
	id, err := identifier.Channel(req.Identifier)
	if err != nil {
		return ErrInvalidIdentifierFormat
	}
	fields := auditFields{identifier: id.Value}

	ok, err := e.codes.VerifyCode(ctx, id.Value, req.Code, verification.PurposeResetPassword)
	if err != nil {
		return e.internal(ctx, "verify reset code", err)
	}
	if !ok {
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, fields, ErrCodeMismatch, nil)
		return ErrCodeMismatch
	}
	if err := e.checkStrength(req.NewPassword); err != nil {
		return err
	}

	u, err := e.findByChannel(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, fields, ErrCodeMismatch, nil)
		return ErrCodeMismatch
	}
	userID := strconv.FormatInt(u.ID, 10)
	fields.userID = userID

	hash, err := e.hasher.Hash(req.NewPassword)
	if err != nil {
		return e.internal(ctx, "hash password", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return e.internal(ctx, "update password", err)
	}
	if err := e.codes.ClearCode(ctx, id.Value, verification.PurposeResetPassword); err != nil {
		logger.WithContext(ctx, e.logger).WarnContext(ctx, "failed to clear reset code", "user_id", userID, "error", err)
	}
	if err := e.tokens.Logout(ctx, userID); err != nil {
		return e.internal(ctx, "revoke refresh token", err)
	}
	e.resetLockout(ctx, id.Value)

	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, fields, nil, nil)
	return nil
}

// ChangePassword replaces the password of req.UserID after checking the
// current one. The new password must differ from the old one and pass the
// strength policy. The live refresh token is revoked.
func (e *Engine) ChangePassword(ctx context.Context, req ChangePasswordRequest) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opChangePassword)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return err
	}
	u, err := e.loadUser(ctx, req.UserID)
	if err != nil {
		return err
	}
	fields := auditFields{userID: req.UserID}

	if !u.Credential.HasPassword() || !e.hasher.Compare(req.OldPassword, u.Credential.PasswordHash) {
		e.emitAudit(ctx, auditEventPasswordChangeFailed, false, fields, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if req.NewPassword == req.OldPassword {
		e.emitAudit(ctx, auditEventPasswordChangeFailed, false, fields, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}
	if err := e.checkStrength(req.NewPassword); err != nil {
		return err
	}

	hash, err := e.hasher.Hash(req.NewPassword)
	if err != nil {
		return e.internal(ctx, "hash password", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return e.internal(ctx, "update password", err)
	}
	if err := e.tokens.Logout(ctx, req.UserID); err != nil {
		return e.internal(ctx, "revoke refresh token", err)
	}

	e.emitAudit(ctx, auditEventPasswordChange, true, fields, nil, nil)
	return nil
}
