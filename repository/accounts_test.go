package repository

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAccounts(t *testing.T) (*Manager, func()) {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	manager := NewRepositoryManager(db)
	manager.MustValidate()
	require.NoError(t, manager.Migrate(context.Background()))

	cleanup := func() {
		_ = db.Close()
	}
	return manager, cleanup
}

func TestAccountsCreateAndFind(t *testing.T) {
	manager, cleanup := setupAccounts(t)
	defer cleanup()

	ctx := context.Background()
	repo := manager.Accounts()

	created, err := repo.Create(ctx, "User@Example.com", "hash", false)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.SecurityStamp().IsZero())

	byID, err := repo.GetAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", byID.Email())
	assert.Equal(t, "hash", byID.PasswordHash())
	assert.Equal(t, created.SecurityStamp(), byID.SecurityStamp())

	byEmail, err := repo.FindAccountByEmail(ctx, "user@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.AccountID())

	_, err = repo.Create(ctx, "user@example.com", "hash", false)
	assert.Error(t, err)

	_, err = repo.Create(ctx, " USER@example.com ", "hash", false)
	assert.Error(t, err)

	_, err = repo.Create(ctx, "", "hash", false)
	assert.Error(t, err)

	_, err = repo.Create(ctx, "   ", "hash", false)
	assert.Error(t, err)
}

func TestAccountsEmailIsCaseInsensitive(t *testing.T) {
	manager, cleanup := setupAccounts(t)
	defer cleanup()

	ctx := context.Background()
	repo := manager.Accounts()

	first, err := repo.Create(ctx, "first@example.com", "hash", false)
	require.NoError(t, err)
	second, err := repo.Create(ctx, "second@example.com", "hash", false)
	require.NoError(t, err)

	_, err = repo.UpdateEmail(ctx, second.ID, "First@Example.com")
	assert.Error(t, err)

	_, err = repo.UpdateEmail(ctx, second.ID, "")
	assert.Error(t, err)

	stamp, err := repo.UpdateEmail(ctx, second.ID, "Renamed@Example.com")
	require.NoError(t, err)
	assert.False(t, stamp.IsZero())

	found, err := repo.FindAccountByEmail(ctx, "RENAMED@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.AccountID())
	assert.Equal(t, "renamed@example.com", found.Email())

	found, err = repo.FindAccountByEmail(ctx, "FIRST@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.AccountID())
}

func TestAccountsNotFound(t *testing.T) {
	manager, cleanup := setupAccounts(t)
	defer cleanup()

	ctx := context.Background()
	repo := manager.Accounts()

	_, err := repo.GetAccount(ctx, 404)
	assert.True(t, auth.IsAccountNotFound(err))

	_, err = repo.FindAccountByEmail(ctx, "ghost@example.com")
	assert.True(t, auth.IsAccountNotFound(err))

	_, err = repo.RotateSecurityStamp(ctx, 404)
	assert.True(t, auth.IsAccountNotFound(err))

	err = repo.ReplacePasswordHash(ctx, 404, "hash")
	assert.True(t, auth.IsAccountNotFound(err))
}

func TestAccountsStampRotation(t *testing.T) {
	manager, cleanup := setupAccounts(t)
	defer cleanup()

	ctx := context.Background()
	repo := manager.Accounts()

	created, err := repo.Create(ctx, "user@example.com", "hash", false)
	require.NoError(t, err)

	stamps := map[auth.SecurityStamp]string{created.SecurityStamp(): "create"}
	record := func(step string, stamp auth.SecurityStamp, err error) {
		t.Helper()
		require.NoError(t, err, step)
		_, seen := stamps[stamp]
		assert.False(t, seen, "%s reused a stamp", step)
		stamps[stamp] = step

		current, err := repo.GetAccount(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, stamp, current.SecurityStamp(), step)
	}

	stamp, err := repo.UpdatePasswordHash(ctx, created.ID, "new-hash")
	record("password", stamp, err)

	stamp, err = repo.UpdateEmail(ctx, created.ID, "renamed@example.com")
	record("email", stamp, err)

	stamp, err = repo.SetTwoFactorEnabled(ctx, created.ID, true)
	record("two factor", stamp, err)

	stamp, err = repo.RotateSecurityStamp(ctx, created.ID)
	record("rotate", stamp, err)

	role, err := repo.CreateRole(ctx, "admin")
	require.NoError(t, err)

	stamp, err = repo.AssignRole(ctx, created.ID, role.ID)
	record("role", stamp, err)

	stamp, err = repo.AddAccountClaim(ctx, created.ID, auth.Claim{Type: "tenant", Value: "acme"})
	record("claim", stamp, err)

	current, err := repo.GetAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed@example.com", current.Email())
	assert.Equal(t, "new-hash", current.PasswordHash())
	assert.True(t, current.TwoFactorEnabled())

	before := current.SecurityStamp()
	require.NoError(t, repo.ReplacePasswordHash(ctx, created.ID, "rehashed"))
	current, err = repo.GetAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, current.SecurityStamp())
	assert.Equal(t, "rehashed", current.PasswordHash())
}

func TestAccountsRolesAndClaims(t *testing.T) {
	manager, cleanup := setupAccounts(t)
	defer cleanup()

	ctx := context.Background()
	repo := manager.Accounts()

	account, err := repo.Create(ctx, "user@example.com", "hash", false)
	require.NoError(t, err)

	roles, err := repo.GetRoles(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)

	editor, err := repo.CreateRole(ctx, "editor")
	require.NoError(t, err)
	admin, err := repo.CreateRole(ctx, "admin")
	require.NoError(t, err)

	require.NoError(t, repo.AddRoleClaim(ctx, admin.ID, auth.Claim{Type: "perm", Value: "users:write"}))
	require.NoError(t, repo.AddRoleClaim(ctx, admin.ID, auth.Claim{Type: "perm", Value: "users:read"}))

	_, err = repo.AssignRole(ctx, account.ID, admin.ID)
	require.NoError(t, err)
	_, err = repo.AssignRole(ctx, account.ID, editor.ID)
	require.NoError(t, err)
	_, err = repo.AssignRole(ctx, account.ID, editor.ID)
	require.NoError(t, err)

	_, err = repo.AddAccountClaim(ctx, account.ID, auth.Claim{Type: "tenant", Value: "acme"})
	require.NoError(t, err)

	roles, err = repo.GetRoles(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{editor, admin}, roles)

	claims, err := repo.GetRoleClaims(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Claim{
		{Type: "perm", Value: "users:write"},
		{Type: "perm", Value: "users:read"},
	}, claims)

	claims, err = repo.GetAccountClaims(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Claim{{Type: "tenant", Value: "acme"}}, claims)
}

func TestManagerRunInTx(t *testing.T) {
	manager, cleanup := setupAccounts(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := manager.RunInTx(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Error(t, (&Manager{}).Validate())
}
