package user

import (
	"context"
	"time"
)

// CreateParams describes a new account: its credential and the initial role
// grant. Both are written together with the user row or not at all.
type CreateParams struct {
	Credential Credential
	Role       RoleType
	RoleStatus RoleStatus
}

// Repository persists users. Lookups return ErrNotFound when nothing matches;
// writes that collide with a unique identifier or (user, role) pair return
// ErrConflict.
type Repository interface {
	// CreateUserWithCredentialAndRole writes the user, its credential, and
	// its first role in a single transaction.
	CreateUserWithCredentialAndRole(ctx context.Context, p CreateParams) (*User, error)

	// FindByIdentifier matches value against username, email, and phone.
	FindByIdentifier(ctx context.Context, value string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	ExistsByIdentifier(ctx context.Context, value string, ch Channel) (bool, error)

	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	TouchChannel(ctx context.Context, id int64, ch Channel, at time.Time) error
	MarkChannelVerified(ctx context.Context, id int64, ch Channel) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	AddRole(ctx context.Context, id int64, t RoleType, s RoleStatus, expiresAt *time.Time) (*Role, error)
	FindRole(ctx context.Context, id int64, t RoleType) (*Role, error)
	UpdateRoleStatus(ctx context.Context, id int64, t RoleType, s RoleStatus) (*Role, error)
}
