package password

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/user/memory"
)

func seedUser(t *testing.T, repo *memory.Repository, h *Hasher, cred user.Credential, plain string) *user.User {
	t.Helper()
	if plain != "" {
		hash, err := h.Hash(plain)
		require.NoError(t, err)
		cred.PasswordHash = hash
	}
	u, err := repo.CreateUserWithCredentialAndRole(context.Background(), user.CreateParams{
		Credential: cred,
		Role:       user.RoleCustomer,
		RoleStatus: user.StatusActive,
	})
	require.NoError(t, err)
	return u
}

func TestValidateCredentialsByEveryChannel(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	h := newTestHasher(t)
	seeded := seedUser(t, repo, h, user.Credential{
		Username: "alice123",
		Email:    "alice@example.com",
		Phone:    "13812345678",
	}, "Abcd123!")

	auth := NewAuthenticator(repo, h, false)
	for _, id := range []string{"alice123", "alice@example.com", "13812345678"} {
		u, err := auth.ValidateCredentials(ctx, id, "Abcd123!")
		require.NoError(t, err)
		require.NotNil(t, u, "identifier %s", id)
		assert.Equal(t, seeded.ID, u.ID)
	}

	stored, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.False(t, stored.Credential.LastUsedAt[user.ChannelPhone].IsZero())
}

func TestValidateCredentialsFailsClosed(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	h := newTestHasher(t)
	social := seedUser(t, repo, h, user.Credential{Email: "social@example.com", GoogleID: "g-1"}, "")
	withPassword := seedUser(t, repo, h, user.Credential{Username: "bob_builder"}, "Abcd123!")

	auth := NewAuthenticator(repo, h, false)

	u, err := auth.ValidateCredentials(ctx, "social@example.com", "anything")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = auth.ValidateCredentials(ctx, "nobody", "Abcd123!")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = auth.ValidateCredentials(ctx, "bob_builder", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u)

	for _, id := range []int64{social.ID, withPassword.ID} {
		stored, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, stored.LastLoginAt, "failed attempts must not touch last-login")
	}
}

func TestValidateCredentialsUpgradesWeakHash(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	weak := newTestHasher(t)
	seeded := seedUser(t, repo, weak, user.Credential{Username: "carol_c"}, "Abcd123!")

	strong, err := NewHasher(Config{Cost: bcrypt.MinCost + 1})
	require.NoError(t, err)

	u, err := NewAuthenticator(repo, strong, true).ValidateCredentials(ctx, "carol_c", "Abcd123!")
	require.NoError(t, err)
	require.NotNil(t, u)

	stored, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.False(t, strong.NeedsUpgrade(stored.Credential.PasswordHash))
	assert.True(t, strong.Compare("Abcd123!", stored.Credential.PasswordHash))
}
