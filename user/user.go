// Package user defines the account aggregate (User, Credential, Role) and the
// Repository contract the authentication engine persists it through.
package user

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned by repository lookups that match nothing.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when a write would violate identifier or role uniqueness.
	ErrConflict = errors.New("user identifier already bound")
	// ErrNoIdentifier is returned when a credential carries no identifying attribute.
	ErrNoIdentifier = errors.New("credential requires at least one identifier")
)

// Channel names an identifying attribute of a credential.
type Channel string

const (
	ChannelUsername Channel = "username"
	ChannelEmail    Channel = "email"
	ChannelPhone    Channel = "phone"
	ChannelFacebook Channel = "facebook"
	ChannelGoogle   Channel = "google"
)

// Channels lists every channel in lookup order.
var Channels = []Channel{ChannelUsername, ChannelEmail, ChannelPhone, ChannelFacebook, ChannelGoogle}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return slices.Contains(Channels, c)
}

// RoleType is the capability scope of a role grant.
type RoleType string

const (
	RoleCustomer RoleType = "CUSTOMER"
	RoleMerchant RoleType = "MERCHANT"
	RoleAdmin    RoleType = "ADMIN"
)

// Valid reports whether r is a known role type.
func (r RoleType) Valid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleAdmin:
		return true
	}
	return false
}

// RoleStatus is the lifecycle state of a role grant.
type RoleStatus string

const (
	StatusActive    RoleStatus = "ACTIVE"
	StatusInactive  RoleStatus = "INACTIVE"
	StatusSuspended RoleStatus = "SUSPENDED"
)

// Credential is the authentication surface of a user. Empty strings stand for
// unset attributes.
type Credential struct {
	Username     string
	Email        string
	Phone        string
	FacebookID   string
	GoogleID     string
	PasswordHash string

	Verified       map[Channel]bool
	LastUsedAt     map[Channel]time.Time
	LastLoginAt    *time.Time
	AdditionalData map[string]any
}

// Value returns the identifier stored for ch.
func (c Credential) Value(ch Channel) string {
	switch ch {
	case ChannelUsername:
		return c.Username
	case ChannelEmail:
		return c.Email
	case ChannelPhone:
		return c.Phone
	case ChannelFacebook:
		return c.FacebookID
	case ChannelGoogle:
		return c.GoogleID
	}
	return ""
}

// Set stores value under ch.
func (c *Credential) Set(ch Channel, value string) {
	switch ch {
	case ChannelUsername:
		c.Username = value
	case ChannelEmail:
		c.Email = value
	case ChannelPhone:
		c.Phone = value
	case ChannelFacebook:
		c.FacebookID = value
	case ChannelGoogle:
		c.GoogleID = value
	}
}

// Validate enforces that at least one identifying attribute is present.
func (c Credential) Validate() error {
	for _, ch := range Channels {
		if c.Value(ch) != "" {
			return nil
		}
	}
	return ErrNoIdentifier
}

// HasPassword reports whether the credential can be used for password login.
func (c Credential) HasPassword() bool {
	return c.PasswordHash != ""
}

// Role is a grant of one role type to a user.
type Role struct {
	UserID    int64
	Type      RoleType
	Status    RoleStatus
	ExpiresAt *time.Time
	ProfileID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the grant carried an expiry that has passed at now.
func (r Role) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// User is the identity anchor. Credential and Roles are loaded with it.
type User struct {
	ID          int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
	Credential  Credential
	Roles       []Role
}

// ActiveRoleTypes returns the role types of grants that are active and not expired.
func (u *User) ActiveRoleTypes(now time.Time) []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r.Status == StatusActive && !r.Expired(now) {
			out = append(out, string(r.Type))
		}
	}
	return out
}

// Role returns the grant for t, if any.
func (u *User) Role(t RoleType) (Role, bool) {
	for _, r := range u.Roles {
		if r.Type == t {
			return r, true
		}
	}
	return Role{}, false
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.LastLoginAt = cloneTime(u.LastLoginAt)
	out.Credential = u.Credential.clone()
	out.Roles = make([]Role, len(u.Roles))
	for i, r := range u.Roles {
		r.ExpiresAt = cloneTime(r.ExpiresAt)
		out.Roles[i] = r
	}
	return &out
}

func (c Credential) clone() Credential {
	out := c
	out.LastLoginAt = cloneTime(c.LastLoginAt)
	if c.Verified != nil {
		out.Verified = make(map[Channel]bool, len(c.Verified))
		for k, v := range c.Verified {
			out.Verified[k] = v
		}
	}
	if c.LastUsedAt != nil {
		out.LastUsedAt = make(map[Channel]time.Time, len(c.LastUsedAt))
		for k, v := range c.LastUsedAt {
			out.LastUsedAt[k] = v
		}
	}
	if c.AdditionalData != nil {
		out.AdditionalData = make(map[string]any, len(c.AdditionalData))
		for k, v := range c.AdditionalData {
			out.AdditionalData[k] = v
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
