// Package role gates role-scoped logins for multi-role accounts.
package role

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/multiauth/user"
)

var (
	// ErrPendingApproval is returned when a merchant grant was just created
	// and waits for an administrator.
	ErrPendingApproval = errors.New("role is pending approval")
	// ErrAccountDisabled is returned for INACTIVE grants.
	ErrAccountDisabled = errors.New("role is inactive")
	// ErrMerchantDisabled wraps ErrAccountDisabled with the merchant wording.
	ErrMerchantDisabled = fmt.Errorf("%w: merchant account has not been approved", ErrAccountDisabled)
	// ErrAccountSuspended is returned for SUSPENDED grants.
	ErrAccountSuspended = errors.New("role is suspended")
	// ErrRoleExpired is returned when the grant's expiresAt has passed.
	ErrRoleExpired = errors.New("role has expired")
	// ErrRoleNotGranted is returned for a role the user does not hold and
	// cannot obtain by logging in.
	ErrRoleNotGranted = fmt.Errorf("%w: role has not been granted", ErrAccountDisabled)
	// ErrUnknownRole is returned for role types outside CUSTOMER, MERCHANT, ADMIN.
	ErrUnknownRole = errors.New("unknown role type")
)

// Gate decides whether a user may act in a given role.
type Gate struct {
	users user.Repository
	now   func() time.Time
}

// NewGate returns a Gate that provisions missing grants through users.
func NewGate(users user.Repository) *Gate {
	return &Gate{users: users, now: time.Now}
}

// InitialStatus is the status a new grant of type t starts in. Only
// CUSTOMER grants are active from the start.
func InitialStatus(t user.RoleType) user.RoleStatus {
	if t == user.RoleCustomer {
		return user.StatusActive
	}
	return user.StatusInactive
}

// Provisionable reports whether a login may create a missing grant of
// type t. ADMIN grants are only ever given by an operator.
func Provisionable(t user.RoleType) bool {
	return t == user.RoleCustomer || t == user.RoleMerchant
}

// Enter checks u's grant for roleType and returns a copy of u whose Roles
// holds only that grant. A missing customer grant is provisioned active,
// a missing merchant grant is provisioned inactive and fails with
// ErrPendingApproval, and a missing admin grant fails with
// ErrRoleNotGranted without touching the repository.
func (g *Gate) Enter(ctx context.Context, u *user.User, roleType user.RoleType) (*user.User, error) {
	if !roleType.Valid() {
		return nil, ErrUnknownRole
	}

	grant, ok := u.Role(roleType)
	if !ok {
		if !Provisionable(roleType) {
			return nil, ErrRoleNotGranted
		}
		created, err := g.provision(ctx, u.ID, roleType)
		if err != nil {
			return nil, err
		}
		if roleType == user.RoleMerchant && created.Status == user.StatusInactive {
			return nil, ErrPendingApproval
		}
		grant = *created
	}

	if err := g.check(roleType, grant); err != nil {
		return nil, err
	}

	out := u.Clone()
	out.Roles = []user.Role{grant}
	return out, nil
}

// Scope is Enter without provisioning: u must already hold an active,
// unexpired grant for roleType.
func (g *Gate) Scope(u *user.User, roleType user.RoleType) (*user.User, error) {
	if !roleType.Valid() {
		return nil, ErrUnknownRole
	}
	grant, ok := u.Role(roleType)
	if !ok {
		return nil, ErrRoleNotGranted
	}
	if err := g.check(roleType, grant); err != nil {
		return nil, err
	}
	out := u.Clone()
	out.Roles = []user.Role{grant}
	return out, nil
}

func (g *Gate) check(roleType user.RoleType, grant user.Role) error {
	switch grant.Status {
	case user.StatusInactive:
		if roleType == user.RoleMerchant {
			return ErrMerchantDisabled
		}
		return ErrAccountDisabled
	case user.StatusSuspended:
		return ErrAccountSuspended
	}
	if grant.Expired(g.now()) {
		return ErrRoleExpired
	}
	return nil
}

// provision adds the grant. Losing a race against a concurrent login for the
// same role is resolved by reading the winner's row.
func (g *Gate) provision(ctx context.Context, id int64, t user.RoleType) (*user.Role, error) {
	created, err := g.users.AddRole(ctx, id, t, InitialStatus(t), nil)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, user.ErrConflict) {
		return nil, fmt.Errorf("provision role: %w", err)
	}
	existing, err := g.users.FindRole(ctx, id, t)
	if err != nil {
		return nil, fmt.Errorf("load role: %w", err)
	}
	return existing, nil
}
