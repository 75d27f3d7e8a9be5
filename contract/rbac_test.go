package contract_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pifp_protocol/contract"
	"pifp_protocol/sdk"
)

// =============================================================================
// Bootstrap
// =============================================================================

// TestInitSetsSuperAdmin checks the bootstrap grant and its event.
func TestInitSetsSuperAdmin(t *testing.T) {
	e := setupBareTest(t)
	require.NoError(t, e.c.Init(as(superAdmin), superAdmin))

	sa, ok, err := e.c.SuperAdmin(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, superAdmin, sa)

	has, err := e.c.HasRole(context.Background(), superAdmin, contract.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, has)

	evs := e.events(contract.TopicRoleSet)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"role_set", "hive:tibfox", "supadmin"}, evs[0].Topics)
	assert.Equal(t, "", evs[0].Data["by"])
}

// TestInitTwiceFails checks the second init is rejected even by the same signer.
func TestInitTwiceFails(t *testing.T) {
	e := setupBareTest(t)
	require.NoError(t, e.c.Init(as(superAdmin), superAdmin))
	requireCode(t, e.c.Init(as(outsider), outsider), contract.CodeAlreadyInitialized)
}

// TestInitRequiresSignature checks nobody can claim super admin for somebody else.
func TestInitRequiresSignature(t *testing.T) {
	e := setupBareTest(t)
	err := e.c.Init(as(outsider), superAdmin)
	assert.ErrorIs(t, err, sdk.ErrMissingAuth)

	_, ok, err := e.c.SuperAdmin(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// Grant and revoke
// =============================================================================

// TestGrantRoleByAdmin checks an admin hands out non super roles.
func TestGrantRoleByAdmin(t *testing.T) {
	e := setupContractTest(t)
	require.NoError(t, e.c.GrantRole(as(admin), admin, outsider, contract.RoleAuditor))

	role, ok, err := e.c.RoleOf(context.Background(), outsider)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, contract.RoleAuditor, role)
}

// TestGrantRoleOverwrites checks roles are exclusive, the latest grant wins.
func TestGrantRoleOverwrites(t *testing.T) {
	e := setupContractTest(t)
	require.NoError(t, e.c.GrantRole(as(admin), admin, outsider, contract.RoleAuditor))
	require.NoError(t, e.c.GrantRole(as(admin), admin, outsider, contract.RoleOracle))

	has, err := e.c.HasRole(context.Background(), outsider, contract.RoleAuditor)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = e.c.HasRole(context.Background(), outsider, contract.RoleOracle)
	require.NoError(t, err)
	assert.True(t, has)
}

// TestGrantSuperAdminOnlyBySuperAdmin checks admins cannot mint new super admins.
func TestGrantSuperAdminOnlyBySuperAdmin(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.GrantRole(as(admin), admin, outsider, contract.RoleSuperAdmin), contract.CodeNotAuthorized)
	require.NoError(t, e.c.GrantRole(as(superAdmin), superAdmin, outsider, contract.RoleSuperAdmin))

	// the pointer stays where it was
	sa, _, err := e.c.SuperAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, superAdmin, sa)
}

// TestGrantRoleUnauthorized checks plain accounts and lower roles cannot grant.
func TestGrantRoleUnauthorized(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.GrantRole(as(outsider), outsider, donator, contract.RoleAdmin), contract.CodeNotAuthorized)
	requireCode(t, e.c.GrantRole(as(oracle), oracle, donator, contract.RoleAuditor), contract.CodeNotAuthorized)
	requireCode(t, e.c.GrantRole(as(manager), manager, donator, contract.RoleAuditor), contract.CodeNotAuthorized)
}

// TestGrantRoleMissingSignature checks the caller has to sign.
func TestGrantRoleMissingSignature(t *testing.T) {
	e := setupContractTest(t)
	err := e.c.GrantRole(as(outsider), admin, donator, contract.RoleAuditor)
	assert.ErrorIs(t, err, sdk.ErrMissingAuth)
}

// TestGrantRoleUnknownRole checks out of range roles are rejected.
func TestGrantRoleUnknownRole(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.GrantRole(as(admin), admin, donator, contract.Role(42)), contract.CodeRoleNotFound)
}

// TestCannotDemoteSuperAdmin checks a grant cannot overwrite the super admin.
func TestCannotDemoteSuperAdmin(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.GrantRole(as(admin), admin, superAdmin, contract.RoleAuditor), contract.CodeNotAuthorized)
}

// TestRevokeRole checks revoke clears the role and emits role_del.
func TestRevokeRole(t *testing.T) {
	e := setupContractTest(t)
	require.NoError(t, e.c.RevokeRole(as(admin), admin, oracle))

	_, ok, err := e.c.RoleOf(context.Background(), oracle)
	require.NoError(t, err)
	assert.False(t, ok)

	evs := e.events(contract.TopicRoleDel)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"role_del", "hive:oracle"}, evs[0].Topics)
	assert.Equal(t, "hive:admin", evs[0].Data["by"])
}

// TestRevokeWithoutRoleIsNoop checks revoking nothing succeeds without an event.
func TestRevokeWithoutRoleIsNoop(t *testing.T) {
	e := setupContractTest(t)
	require.NoError(t, e.c.RevokeRole(as(admin), admin, outsider))
	assert.Empty(t, e.events(contract.TopicRoleDel))
}

// TestRevokeSuperAdminFails checks the super admin can only leave by transfer.
func TestRevokeSuperAdminFails(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.RevokeRole(as(superAdmin), superAdmin, superAdmin), contract.CodeNotAuthorized)
	requireCode(t, e.c.RevokeRole(as(admin), admin, superAdmin), contract.CodeNotAuthorized)
}

// TestRevokeUnauthorized checks oracles cannot revoke.
func TestRevokeUnauthorized(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.RevokeRole(as(oracle), oracle, manager), contract.CodeNotAuthorized)
}

// =============================================================================
// Transfer
// =============================================================================

// TestTransferSuperAdmin checks the role and pointer move together.
func TestTransferSuperAdmin(t *testing.T) {
	e := setupContractTest(t)
	require.NoError(t, e.c.TransferSuperAdmin(as(superAdmin), superAdmin, outsider))

	sa, _, err := e.c.SuperAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outsider, sa)

	_, ok, err := e.c.RoleOf(context.Background(), superAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	has, err := e.c.HasRole(context.Background(), outsider, contract.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, has)

	// the old one lost its powers
	requireCode(t, e.c.GrantRole(as(superAdmin), superAdmin, donator, contract.RoleAuditor), contract.CodeNotAuthorized)
	require.NoError(t, e.c.GrantRole(as(outsider), outsider, donator, contract.RoleAuditor))
}

// TestTransferSuperAdminUnauthorized checks admins cannot take over.
func TestTransferSuperAdminUnauthorized(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.TransferSuperAdmin(as(admin), admin, admin), contract.CodeNotAuthorized)
}

// TestSetOracleRequiresAdmin checks only admins and above set oracles.
func TestSetOracleRequiresAdmin(t *testing.T) {
	e := setupContractTest(t)
	requireCode(t, e.c.SetOracle(as(manager), manager, outsider), contract.CodeNotAuthorized)
	require.NoError(t, e.c.SetOracle(as(superAdmin), superAdmin, outsider))

	has, err := e.c.HasRole(context.Background(), outsider, contract.RoleOracle)
	require.NoError(t, err)
	assert.True(t, has)
}

// TestParseRole checks symbols and long names both resolve.
func TestParseRole(t *testing.T) {
	for in, want := range map[string]contract.Role{
		"supadmin":        contract.RoleSuperAdmin,
		"Admin":           contract.RoleAdmin,
		"oracle":          contract.RoleOracle,
		"auditor":         contract.RoleAuditor,
		"proj_mgr":        contract.RoleProjectManager,
		"project_manager": contract.RoleProjectManager,
	} {
		got, err := contract.ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := contract.ParseRole("janitor")
	requireCode(t, err, contract.CodeRoleNotFound)
}
