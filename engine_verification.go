package multiauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/internal/logger"
	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/verification"
)

// SendCode delivers a verification code for req.Purpose.
//
// REGISTER fails with ErrConflict for an identifier that is already
// bound. LOGIN, RESET_PASSWORD, VERIFY_EMAIL and VERIFY_PHONE report
// success for unknown identifiers without sending anything, and still arm
// the resend cooldown, so the response does not reveal whether an account
// exists.
func (e *Engine) SendCode(ctx context.Context, req SendCodeRequest) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opSendCode)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return err
	}
	id, err := identifier.Channel(req.Identifier)
	if err != nil {
		return ErrInvalidIdentifierFormat
	}
	switch {
	case req.Purpose == verification.PurposeRegister && id.Kind == identifier.KindPhone && !identifier.IsPhone(id.Value):
		return ErrInvalidIdentifierFormat
	case req.Purpose == verification.PurposeVerifyEmail && id.Kind != identifier.KindEmail:
		return badRequest("VERIFY_EMAIL codes are sent to email addresses")
	case req.Purpose == verification.PurposeVerifyPhone && id.Kind != identifier.KindPhone:
		return badRequest("VERIFY_PHONE codes are sent to phone numbers")
	}

	fields := auditFields{identifier: id.Value}
	meta := func() map[string]string {
		return map[string]string{"purpose": string(req.Purpose), "channel": id.Kind.String()}
	}

	exists, err := e.users.ExistsByIdentifier(ctx, id.Value, channelFor(id.Kind))
	if err != nil {
		return e.internal(ctx, "check identifier", err)
	}
	if req.Purpose == verification.PurposeRegister && exists {
		e.emitAudit(ctx, auditEventCodeFailure, false, fields, ErrConflict, meta)
		return ErrConflict
	}

	if req.Purpose != verification.PurposeRegister && !exists {
		err := e.codes.ArmCooldown(ctx, id.Value, req.Purpose)
		if err = e.codeError(ctx, err); err != nil {
			return err
		}
		logger.WithContext(ctx, e.logger).InfoContext(ctx, "verification code suppressed for unknown identifier",
			"identifier", identifier.Mask(id.Value), "purpose", string(req.Purpose))
		e.emitAudit(ctx, auditEventCodeSuppressed, true, fields, nil, meta)
		return nil
	}

	if err := e.codeError(ctx, e.codes.SendCode(ctx, id.Value, req.Purpose)); err != nil {
		e.emitAudit(ctx, auditEventCodeFailure, false, fields, err, meta)
		return err
	}

	e.emitAudit(ctx, auditEventCodeSent, true, fields, nil, meta)
	return nil
}

// CheckUserExists reports whether value is bound on channel. An empty
// channel is inferred from the shape of value.
func (e *Engine) CheckUserExists(ctx context.Context, value string, channel user.Channel) (_ bool, err error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	ctx, end := e.begin(ctx, opCheckUser)
	defer end(&err)

	normalized := strings.TrimSpace(value)
	id, classifyErr := identifier.Classify(value)
	if classifyErr == nil {
		normalized = id.Value
	}
	if normalized == "" {
		return false, badRequest("identifier is required")
	}

	if channel == "" {
		if classifyErr != nil {
			return false, ErrInvalidIdentifierFormat
		}
		channel = channelFor(id.Kind)
	}
	if !channel.Valid() {
		return false, badRequest("unknown channel")
	}

	exists, err := e.users.ExistsByIdentifier(ctx, normalized, channel)
	if err != nil {
		return false, e.internal(ctx, "check identifier", err)
	}
	return exists, nil
}

// VerifyChannel confirms that the user owns the email address or phone
// number bound to the account, using a VERIFY_EMAIL or VERIFY_PHONE code.
func (e *Engine) VerifyChannel(ctx context.Context, req VerifyChannelRequest) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opVerifyChannel)
	defer end(&err)

	if err := validateRequest(req); err != nil {
		return err
	}
	id, err := identifier.Channel(req.Identifier)
	if err != nil {
		return ErrInvalidIdentifierFormat
	}
	u, err := e.loadUser(ctx, req.UserID)
	if err != nil {
		return err
	}

	ch := channelFor(id.Kind)
	fields := auditFields{userID: req.UserID, identifier: id.Value}
	if u.Credential.Value(ch) != id.Value {
		return badRequest("identifier is not bound to this account")
	}

	purpose := verification.PurposeVerifyEmail
	if id.Kind == identifier.KindPhone {
		purpose = verification.PurposeVerifyPhone
	}
	ok, err := e.codes.VerifyCode(ctx, id.Value, req.Code, purpose)
	if err != nil {
		return e.internal(ctx, "verify channel code", err)
	}
	if !ok {
		e.emitAudit(ctx, auditEventChannelVerifyFailure, false, fields, ErrCodeMismatch, nil)
		return ErrCodeMismatch
	}

	if err := e.users.MarkChannelVerified(ctx, u.ID, ch); err != nil {
		return e.internal(ctx, "mark channel verified", err)
	}
	if err := e.users.TouchChannel(ctx, u.ID, ch, e.now().UTC()); err != nil {
		return e.internal(ctx, "touch channel", err)
	}
	if err := e.codes.ClearCode(ctx, id.Value, purpose); err != nil {
		logger.WithContext(ctx, e.logger).WarnContext(ctx, "failed to clear verification code",
			"user_id", strconv.FormatInt(u.ID, 10), "error", err)
	}

	e.emitAudit(ctx, auditEventChannelVerified, true, fields, nil, func() map[string]string {
		return map[string]string{"channel": string(ch)}
	})
	return nil
}

// codeError maps verification engine errors onto the public sentinels.
func (e *Engine) codeError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, verification.ErrRateLimited):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.Is(err, verification.ErrDeliveryFailed):
		return err
	case errors.Is(err, verification.ErrInvalidIdentifier):
		return ErrInvalidIdentifierFormat
	case errors.Is(err, verification.ErrInvalidPurpose):
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	default:
		return e.internal(ctx, "send verification code", err)
	}
}
