package role

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/user/memory"
)

func newCustomer(t *testing.T, repo *memory.Repository) *user.User {
	t.Helper()
	u, err := repo.CreateUserWithCredentialAndRole(context.Background(), user.CreateParams{
		Credential: user.Credential{Email: "alice@example.com"},
		Role:       user.RoleCustomer,
		RoleStatus: user.StatusActive,
	})
	require.NoError(t, err)
	return u
}

func TestEnterExistingActiveRole(t *testing.T) {
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	out, err := g.Enter(context.Background(), u, user.RoleCustomer)
	require.NoError(t, err)
	require.Len(t, out.Roles, 1)
	assert.Equal(t, user.RoleCustomer, out.Roles[0].Type)
}

func newMerchant(t *testing.T, repo *memory.Repository) *user.User {
	t.Helper()
	u, err := repo.CreateUserWithCredentialAndRole(context.Background(), user.CreateParams{
		Credential: user.Credential{Username: "bob"},
		Role:       user.RoleMerchant,
		RoleStatus: user.StatusActive,
	})
	require.NoError(t, err)
	return u
}

func TestEnterProvisionsCustomer(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newMerchant(t, repo)

	out, err := g.Enter(ctx, u, user.RoleCustomer)
	require.NoError(t, err)
	require.Len(t, out.Roles, 1)
	assert.Equal(t, user.RoleCustomer, out.Roles[0].Type)
	assert.Equal(t, user.StatusActive, out.Roles[0].Status)

	stored, err := repo.FindRole(ctx, u.ID, user.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, stored.Status)
}

func TestEnterNeverProvisionsAdmin(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	_, err := g.Enter(ctx, u, user.RoleAdmin)
	require.ErrorIs(t, err, ErrRoleNotGranted)
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, err = repo.FindRole(ctx, u.ID, user.RoleAdmin)
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, user.StatusActive, InitialStatus(user.RoleCustomer))
	assert.Equal(t, user.StatusInactive, InitialStatus(user.RoleMerchant))
	assert.Equal(t, user.StatusInactive, InitialStatus(user.RoleAdmin))
	assert.False(t, Provisionable(user.RoleAdmin))
}

func TestScopeRequiresExistingGrant(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	out, err := g.Scope(u, user.RoleCustomer)
	require.NoError(t, err)
	require.Len(t, out.Roles, 1)

	_, err = g.Scope(u, user.RoleMerchant)
	require.ErrorIs(t, err, ErrRoleNotGranted)
	_, err = repo.FindRole(ctx, u.ID, user.RoleMerchant)
	require.ErrorIs(t, err, user.ErrNotFound)

	_, err = repo.UpdateRoleStatus(ctx, u.ID, user.RoleCustomer, user.StatusSuspended)
	require.NoError(t, err)
	u, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	_, err = g.Scope(u, user.RoleCustomer)
	require.ErrorIs(t, err, ErrAccountSuspended)
}

func TestEnterMerchantFirstTimeIsPending(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	_, err := g.Enter(ctx, u, user.RoleMerchant)
	require.ErrorIs(t, err, ErrPendingApproval)

	stored, err := repo.FindRole(ctx, u.ID, user.RoleMerchant)
	require.NoError(t, err)
	assert.Equal(t, user.StatusInactive, stored.Status)

	reloaded, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	_, err = g.Enter(ctx, reloaded, user.RoleMerchant)
	require.ErrorIs(t, err, ErrAccountDisabled)
	assert.ErrorIs(t, err, ErrMerchantDisabled)
}

func TestEnterMerchantAfterApproval(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	_, err := g.Enter(ctx, u, user.RoleMerchant)
	require.ErrorIs(t, err, ErrPendingApproval)
	_, err = repo.UpdateRoleStatus(ctx, u.ID, user.RoleMerchant, user.StatusActive)
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Roles, 2)

	out, err := g.Enter(ctx, reloaded, user.RoleMerchant)
	require.NoError(t, err)
	require.Len(t, out.Roles, 1)
	assert.Equal(t, user.RoleMerchant, out.Roles[0].Type)
	assert.Len(t, reloaded.Roles, 2, "input user must not be modified")
}

func TestEnterStatusGating(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	_, err := repo.UpdateRoleStatus(ctx, u.ID, user.RoleCustomer, user.StatusInactive)
	require.NoError(t, err)
	u, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	_, err = g.Enter(ctx, u, user.RoleCustomer)
	require.ErrorIs(t, err, ErrAccountDisabled)
	assert.False(t, errors.Is(err, ErrMerchantDisabled))

	_, err = repo.UpdateRoleStatus(ctx, u.ID, user.RoleCustomer, user.StatusSuspended)
	require.NoError(t, err)
	u, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	_, err = g.Enter(ctx, u, user.RoleCustomer)
	require.ErrorIs(t, err, ErrAccountSuspended)
}

func TestEnterExpiredRole(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	past := time.Now().Add(-time.Hour)
	_, err := repo.AddRole(ctx, u.ID, user.RoleAdmin, user.StatusActive, &past)
	require.NoError(t, err)
	u, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)

	_, err = g.Enter(ctx, u, user.RoleAdmin)
	require.ErrorIs(t, err, ErrRoleExpired)

	g.now = func() time.Time { return past.Add(-time.Minute) }
	_, err = g.Enter(ctx, u, user.RoleAdmin)
	require.NoError(t, err)
}

func TestEnterUnknownRole(t *testing.T) {
	repo := memory.New()
	g := NewGate(repo)
	u := newCustomer(t, repo)

	_, err := g.Enter(context.Background(), u, user.RoleType("OWNER"))
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestEnterProvisionRaceReadsWinner(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	g := NewGate(repo)
	u := newMerchant(t, repo)

	// u is stale: another login provisioned CUSTOMER after it was loaded.
	_, err := repo.AddRole(ctx, u.ID, user.RoleCustomer, user.StatusActive, nil)
	require.NoError(t, err)

	out, err := g.Enter(ctx, u, user.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, user.RoleCustomer, out.Roles[0].Type)
}
