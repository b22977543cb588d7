package multiauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/multiauth/user"
)

// GrantRole gives the user an ACTIVE grant of roleType, optionally expiring
// at expiresAt. This is how ADMIN grants are created; logins never
// provision them. A grant that is already ACTIVE is left alone. A grant in
// any other status must go through ApproveRole or ReactivateRole and fails
// with ErrInvalidRoleTransition.
func (e *Engine) GrantRole(ctx context.Context, userID string, roleType user.RoleType, expiresAt *time.Time) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opRoleStatus)
	defer end(&err)

	if !roleType.Valid() {
		return badRequest("unknown role")
	}
	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	fields := auditFields{userID: userID, role: roleType}

	if grant, ok := u.Role(roleType); ok {
		return e.grantExisting(ctx, fields, grant)
	}

	_, err = e.users.AddRole(ctx, u.ID, roleType, user.StatusActive, expiresAt)
	if errors.Is(err, user.ErrConflict) {
		grant, findErr := e.users.FindRole(ctx, u.ID, roleType)
		if findErr != nil {
			return e.internal(ctx, "load role", findErr)
		}
		return e.grantExisting(ctx, fields, *grant)
	}
	if err != nil {
		return e.internal(ctx, "add role", err)
	}

	e.emitAudit(ctx, auditEventRoleStatusChange, true, fields, nil, func() map[string]string {
		return map[string]string{"action": "grant", "to": string(user.StatusActive)}
	})
	return nil
}

func (e *Engine) grantExisting(ctx context.Context, fields auditFields, grant user.Role) error {
	if grant.Status == user.StatusActive {
		return nil
	}
	e.emitAudit(ctx, auditEventRoleStatusChange, false, fields, ErrInvalidRoleTransition, func() map[string]string {
		return map[string]string{"action": "grant", "from": string(grant.Status), "to": string(user.StatusActive)}
	})
	return ErrInvalidRoleTransition
}

// ApproveRole activates an INACTIVE grant, for example a newly registered
// merchant.
func (e *Engine) ApproveRole(ctx context.Context, userID string, roleType user.RoleType) error {
	return e.transitionRole(ctx, userID, roleType, "approve", user.StatusActive, user.StatusInactive)
}

// SuspendRole suspends an ACTIVE or INACTIVE grant. The live refresh token
// is revoked; issued access tokens stay valid until they expire.
func (e *Engine) SuspendRole(ctx context.Context, userID string, roleType user.RoleType) error {
	return e.transitionRole(ctx, userID, roleType, "suspend", user.StatusSuspended, user.StatusActive, user.StatusInactive)
}

// ReactivateRole lifts a suspension.
func (e *Engine) ReactivateRole(ctx context.Context, userID string, roleType user.RoleType) error {
	return e.transitionRole(ctx, userID, roleType, "reactivate", user.StatusActive, user.StatusSuspended)
}

// transitionRole moves a grant to target when its current status is one of
// from. A grant already at target is left alone and reported as success.
func (e *Engine) transitionRole(
	ctx context.Context,
	userID string,
	roleType user.RoleType,
	action string,
	target user.RoleStatus,
	from ...user.RoleStatus,
) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, end := e.begin(ctx, opRoleStatus)
	defer end(&err)

	if !roleType.Valid() {
		return badRequest("unknown role")
	}
	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	fields := auditFields{userID: userID, role: roleType}

	grant, ok := u.Role(roleType)
	if !ok {
		return ErrRoleNotFound
	}
	if grant.Status == target {
		return nil
	}
	allowed := false
	for _, s := range from {
		if grant.Status == s {
			allowed = true
			break
		}
	}
	meta := func() map[string]string {
		return map[string]string{"action": action, "from": string(grant.Status), "to": string(target)}
	}
	if !allowed {
		e.emitAudit(ctx, auditEventRoleStatusChange, false, fields, ErrInvalidRoleTransition, meta)
		return ErrInvalidRoleTransition
	}

	if _, err := e.users.UpdateRoleStatus(ctx, u.ID, roleType, target); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrRoleNotFound
		}
		return e.internal(ctx, "update role status", err)
	}
	if target == user.StatusSuspended {
		if err := e.tokens.Logout(ctx, userID); err != nil {
			return e.internal(ctx, "revoke refresh token", err)
		}
	}

	e.emitAudit(ctx, auditEventRoleStatusChange, true, fields, nil, meta)
	return nil
}
