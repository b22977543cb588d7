// Package memory is an in-process user.Repository. It enforces the same
// uniqueness rules as the Postgres adapter and is safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/multiauth/user"
)

// Repository keeps users in maps guarded by a single mutex.
type Repository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*user.User
	index  map[user.Channel]map[string]int64
	now    func() time.Time
}

// New returns an empty repository.
func New() *Repository {
	index := make(map[user.Channel]map[string]int64, len(user.Channels))
	for _, ch := range user.Channels {
		index[ch] = make(map[string]int64)
	}
	return &Repository{
		users: make(map[int64]*user.User),
		index: index,
		now:   time.Now,
	}
}

func (r *Repository) CreateUserWithCredentialAndRole(ctx context.Context, p user.CreateParams) (*user.User, error) {
	if err := p.Credential.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range user.Channels {
		if v := p.Credential.Value(ch); v != "" {
			if _, taken := r.index[ch][v]; taken {
				return nil, user.ErrConflict
			}
		}
	}

	now := r.now().UTC()
	r.nextID++
	u := (&user.User{Credential: p.Credential}).Clone()
	u.ID = r.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Credential.Verified == nil {
		u.Credential.Verified = map[user.Channel]bool{}
	}
	if u.Credential.LastUsedAt == nil {
		u.Credential.LastUsedAt = map[user.Channel]time.Time{}
	}
	if p.Role != "" {
		u.Roles = []user.Role{{
			UserID:    u.ID,
			Type:      p.Role,
			Status:    p.RoleStatus,
			CreatedAt: now,
			UpdatedAt: now,
		}}
	}

	r.users[u.ID] = u
	for _, ch := range user.Channels {
		if v := u.Credential.Value(ch); v != "" {
			r.index[ch][v] = u.ID
		}
	}

	return u.Clone(), nil
}

func (r *Repository) FindByIdentifier(ctx context.Context, value string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range []user.Channel{user.ChannelUsername, user.ChannelEmail, user.ChannelPhone} {
		if id, ok := r.index[ch][value]; ok {
			return r.users[id].Clone(), nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.findBy(user.ChannelUsername, username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findBy(user.ChannelEmail, email)
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (*user.User, error) {
	return r.findBy(user.ChannelPhone, phone)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *Repository) ExistsByIdentifier(ctx context.Context, value string, ch user.Channel) (bool, error) {
	if !ch.Valid() {
		return false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.index[ch][value]
	return ok, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.mutate(id, func(u *user.User) error {
		t := at
		u.LastLoginAt = &t
		c := at
		u.Credential.LastLoginAt = &c
		return nil
	})
}

func (r *Repository) TouchChannel(ctx context.Context, id int64, ch user.Channel, at time.Time) error {
	return r.mutate(id, func(u *user.User) error {
		u.Credential.LastUsedAt[ch] = at
		return nil
	})
}

func (r *Repository) MarkChannelVerified(ctx context.Context, id int64, ch user.Channel) error {
	return r.mutate(id, func(u *user.User) error {
		u.Credential.Verified[ch] = true
		return nil
	})
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.mutate(id, func(u *user.User) error {
		u.Credential.PasswordHash = hash
		return nil
	})
}

func (r *Repository) AddRole(ctx context.Context, id int64, t user.RoleType, s user.RoleStatus, expiresAt *time.Time) (*user.Role, error) {
	var added user.Role
	err := r.mutate(id, func(u *user.User) error {
		if _, exists := u.Role(t); exists {
			return user.ErrConflict
		}
		now := r.now().UTC()
		added = user.Role{
			UserID:    id,
			Type:      t,
			Status:    s,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		u.Roles = append(u.Roles, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (r *Repository) FindRole(ctx context.Context, id int64, t user.RoleType) (*user.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	role, ok := u.Role(t)
	if !ok {
		return nil, user.ErrNotFound
	}
	return &role, nil
}

func (r *Repository) UpdateRoleStatus(ctx context.Context, id int64, t user.RoleType, s user.RoleStatus) (*user.Role, error) {
	var updated user.Role
	err := r.mutate(id, func(u *user.User) error {
		for i := range u.Roles {
			if u.Roles[i].Type == t {
				u.Roles[i].Status = s
				u.Roles[i].UpdatedAt = r.now().UTC()
				updated = u.Roles[i]
				return nil
			}
		}
		return user.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *Repository) findBy(ch user.Channel, value string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.index[ch][value]
	if !ok {
		return nil, user.ErrNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *Repository) mutate(id int64, fn func(*user.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = r.now().UTC()
	return nil
}

var _ user.Repository = (*Repository)(nil)
