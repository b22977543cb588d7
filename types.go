package multiauth

import (
	"strconv"
	"time"

	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/verification"
)

// RegisterRequest creates an account. Email and phone registrations need a
// REGISTER code; username registrations need a password. Role defaults to
// Config.Security.DefaultRole.
type RegisterRequest struct {
	Identifier     string        `validate:"required,max=254"`
	Password       string        `validate:"omitempty,max=1024"`
	Code           string        `validate:"omitempty,numeric,min=4,max=10"`
	Role           user.RoleType `validate:"omitempty,oneof=CUSTOMER MERCHANT ADMIN"`
	AdditionalData map[string]any
}

// LoginRequest authenticates Identifier with Proof. When Role is set the
// login is scoped to that role and the token carries it alone.
type LoginRequest struct {
	Identifier string        `validate:"required,max=254"`
	Proof      Proof         `validate:"required"`
	Role       user.RoleType `validate:"omitempty,oneof=CUSTOMER MERCHANT ADMIN"`
}

// Proof is what a login presents: PasswordLogin or CodeLogin.
type Proof interface {
	proof()
}

// PasswordLogin proves identity with the account password.
type PasswordLogin struct {
	Password string
}

// CodeLogin proves identity with a LOGIN code sent to an email address or
// phone number.
type CodeLogin struct {
	Code string
}

func (PasswordLogin) proof() {}
func (CodeLogin) proof()     {}

// SendCodeRequest asks for a code to be delivered to Identifier.
type SendCodeRequest struct {
	Identifier string               `validate:"required,max=254"`
	Purpose    verification.Purpose `validate:"required,oneof=REGISTER LOGIN RESET_PASSWORD VERIFY_EMAIL VERIFY_PHONE"`
}

// ResetPasswordRequest sets a new password with a RESET_PASSWORD code.
type ResetPasswordRequest struct {
	Identifier  string `validate:"required,max=254"`
	Code        string `validate:"required,numeric,min=4,max=10"`
	NewPassword string `validate:"required,max=1024"`
}

// ChangePasswordRequest replaces the password of an authenticated user.
type ChangePasswordRequest struct {
	UserID      string `validate:"required,numeric"`
	OldPassword string `validate:"required,max=1024"`
	NewPassword string `validate:"required,max=1024"`
}

// VerifyChannelRequest confirms ownership of the user's email or phone.
type VerifyChannelRequest struct {
	UserID     string `validate:"required,numeric"`
	Identifier string `validate:"required,max=254"`
	Code       string `validate:"required,numeric,min=4,max=10"`
}

// AuthTokenResponse is returned by Register, Login, and Refresh.
type AuthTokenResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
	TokenType    string         `json:"tokenType"`
	User         UserProjection `json:"user"`
}

// UserProjection is the client-facing view of a user. It never carries
// the password hash.
type UserProjection struct {
	ID            string           `json:"id"`
	Username      string           `json:"username,omitempty"`
	Email         string           `json:"email,omitempty"`
	Phone         string           `json:"phone,omitempty"`
	EmailVerified bool             `json:"emailVerified"`
	PhoneVerified bool             `json:"phoneVerified"`
	LastLoginAt   *time.Time       `json:"lastLoginAt,omitempty"`
	Roles         []RoleProjection `json:"roles"`
}

// RoleProjection is one role grant in a UserProjection.
type RoleProjection struct {
	Type      user.RoleType   `json:"type"`
	Status    user.RoleStatus `json:"status"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

func projectUser(u *user.User) UserProjection {
	p := UserProjection{
		ID:            strconv.FormatInt(u.ID, 10),
		Username:      u.Credential.Username,
		Email:         u.Credential.Email,
		Phone:         u.Credential.Phone,
		EmailVerified: u.Credential.Verified[user.ChannelEmail],
		PhoneVerified: u.Credential.Verified[user.ChannelPhone],
		LastLoginAt:   u.LastLoginAt,
		Roles:         make([]RoleProjection, 0, len(u.Roles)),
	}
	for _, r := range u.Roles {
		p.Roles = append(p.Roles, RoleProjection{Type: r.Type, Status: r.Status, ExpiresAt: r.ExpiresAt})
	}
	return p
}
