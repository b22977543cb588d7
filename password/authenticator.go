package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/multiauth/user"
)

// Authenticator checks identifier/password pairs against stored hashes.
type Authenticator struct {
	users   user.Repository
	hasher  *Hasher
	upgrade bool
	now     func() time.Time
}

// NewAuthenticator returns an Authenticator. When upgradeOnLogin is set, a
// successful login re-hashes passwords stored with a weaker bcrypt cost.
func NewAuthenticator(users user.Repository, hasher *Hasher, upgradeOnLogin bool) *Authenticator {
	return &Authenticator{
		users:   users,
		hasher:  hasher,
		upgrade: upgradeOnLogin,
		now:     time.Now,
	}
}

// ValidateCredentials resolves identifier as a username, then an email, then
// a phone number, and compares plain against the stored hash.
//
// It returns (nil, nil) for an unknown identifier, a credential without a
// password, and a wrong password alike. Only a successful match touches
// state: last-login and the matched channel's last-used time are updated.
func (a *Authenticator) ValidateCredentials(ctx context.Context, identifier, plain string) (*user.User, error) {
	u, ch, err := a.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Credential.HasPassword() {
		return nil, nil
	}
	if !a.hasher.Compare(plain, u.Credential.PasswordHash) {
		return nil, nil
	}

	now := a.now().UTC()
	if err := a.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	if err := a.users.TouchChannel(ctx, u.ID, ch, now); err != nil {
		return nil, fmt.Errorf("touch %s channel: %w", ch, err)
	}
	u.LastLoginAt = &now
	u.Credential.LastLoginAt = &now
	if u.Credential.LastUsedAt == nil {
		u.Credential.LastUsedAt = map[user.Channel]time.Time{}
	}
	u.Credential.LastUsedAt[ch] = now

	if a.upgrade && a.hasher.NeedsUpgrade(u.Credential.PasswordHash) {
		if hash, err := a.hasher.Hash(plain); err == nil {
			if err := a.users.UpdatePasswordHash(ctx, u.ID, hash); err == nil {
				u.Credential.PasswordHash = hash
			}
		}
	}

	return u, nil
}

func (a *Authenticator) lookup(ctx context.Context, identifier string) (*user.User, user.Channel, error) {
	finders := []struct {
		ch   user.Channel
		find func(context.Context, string) (*user.User, error)
	}{
		{user.ChannelUsername, a.users.FindByUsername},
		{user.ChannelEmail, a.users.FindByEmail},
		{user.ChannelPhone, a.users.FindByPhone},
	}

	for _, f := range finders {
		u, err := f.find(ctx, identifier)
		if err == nil {
			return u, f.ch, nil
		}
		if !errors.Is(err, user.ErrNotFound) {
			return nil, "", fmt.Errorf("find by %s: %w", f.ch, err)
		}
	}
	return nil, "", nil
}
