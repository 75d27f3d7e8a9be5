package contract

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pifp_protocol/kv"
	"pifp_protocol/ledger"
	"pifp_protocol/sdk"
)

const (
	testSelf  = sdk.Address("contract:pifp")
	testToken = sdk.Address("contract:usdc")
	testAdmin = sdk.Address("hive:tibfox")
	testStart = uint64(1_756_857_600)
)

// newTestRuntime is a runtime that skips signature checks, internal tests poke storage directly.
func newTestRuntime(t *testing.T) (*ledger.Runtime, *sdk.ManualClock) {
	t.Helper()
	clock := sdk.NewManualClock(testStart)
	rt := ledger.New(kv.NewMemoryStore(), testSelf, ledger.WithClock(clock), ledger.WithMockAllAuths())
	return rt, clock
}

func invoke(t *testing.T, rt *ledger.Runtime, fn func(c *call) error) error {
	t.Helper()
	return rt.Invoke(context.Background(), "test", func(h *sdk.Host) error { return fn(newCall(h)) })
}

func query(t *testing.T, rt *ledger.Runtime, fn func(c *call) error) {
	t.Helper()
	require.NoError(t, rt.Query(context.Background(), func(h *sdk.Host) error { return fn(newCall(h)) }))
}

// seedProject bootstraps a super admin and registers one usdc project.
func seedProject(t *testing.T, rt *ledger.Runtime) *Project {
	t.Helper()
	var p *Project
	require.NoError(t, invoke(t, rt, func(c *call) error {
		if err := c.initSuperAdmin(testAdmin); err != nil {
			return err
		}
		var err error
		p, err = c.registerProject(testAdmin, []sdk.Address{testToken}, uint256.NewInt(1000),
			crypto.Keccak256Hash([]byte("proof")), c.h.Env.Now()+7*day)
		return err
	}))
	return p
}

// =============================================================================
// TTL
// =============================================================================

// TestProjectRecordsOutliveDefaultTTL checks registration bumps records past the fresh lifetime.
func TestProjectRecordsOutliveDefaultTTL(t *testing.T) {
	rt, clock := newTestRuntime(t)
	p := seedProject(t, rt)

	clock.Advance(20 * day)
	query(t, rt, func(c *call) error {
		got, err := c.getProject(p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		role, ok := c.roleOf(testAdmin)
		assert.True(t, ok)
		assert.Equal(t, RoleSuperAdmin, role)
		return nil
	})
}

// TestProjectRecordsArchiveWithoutAccess checks untouched records are archived after the
// lifetime, never reported as an unknown project.
func TestProjectRecordsArchiveWithoutAccess(t *testing.T) {
	rt, clock := newTestRuntime(t)
	p := seedProject(t, rt)

	clock.Advance(PersistentLifetime + 1)
	err := rt.Query(context.Background(), func(h *sdk.Host) error {
		_, err := newCall(h).getProject(p.ID)
		return err
	})
	assert.ErrorIs(t, err, sdk.ErrArchived)
	assert.NotErrorIs(t, err, ErrProjectNotFound)
}

// TestRestoreRequiresArchive checks the store refuses to restore from a plain invocation.
func TestRestoreRequiresArchive(t *testing.T) {
	rt, _ := newTestRuntime(t)
	err := invoke(t, rt, func(c *call) error {
		_, err := c.s.restore(nil, nil)
		return err
	})
	assert.Error(t, err)
}

// TestReadsBumpRecords checks a mutating read keeps a record alive past its original expiry.
func TestReadsBumpRecords(t *testing.T) {
	rt, clock := newTestRuntime(t)
	p := seedProject(t, rt)

	// 25 days in, less than the threshold remains, a committed read bumps to 30 more days
	clock.Advance(25 * day)
	require.NoError(t, invoke(t, rt, func(c *call) error {
		_, err := c.getProject(p.ID)
		return err
	}))

	clock.Advance(25 * day)
	query(t, rt, func(c *call) error {
		_, err := c.getProject(p.ID)
		assert.NoError(t, err)
		return nil
	})
}

// TestInstanceBump checks counter and pause flag survive while entry points keep bumping.
func TestInstanceBump(t *testing.T) {
	rt, clock := newTestRuntime(t)
	seedProject(t, rt)

	for i := 0; i < 4; i++ {
		clock.Advance(6*day + day/2)
		require.NoError(t, invoke(t, rt, func(c *call) error {
			c.s.setPaused(i%2 == 0)
			return nil
		}))
	}
	query(t, rt, func(c *call) error {
		assert.Equal(t, uint64(1), c.s.projectCount())
		assert.False(t, c.s.isPaused())
		return nil
	})
}

// =============================================================================
// Status edges
// =============================================================================

// TestVerifyExpiredProject checks an Expired status blocks verification and deposits.
func TestVerifyExpiredProject(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := seedProject(t, rt)
	require.NoError(t, invoke(t, rt, func(c *call) error {
		if err := c.grantRole(testAdmin, "hive:oracle", RoleOracle); err != nil {
			return err
		}
		c.s.saveProjectState(p.ID, &ProjectState{Status: StatusExpired})
		return nil
	}))

	err := invoke(t, rt, func(c *call) error {
		return c.verifyAndRelease("hive:oracle", p.ID, p.ProofHash)
	})
	assert.ErrorIs(t, err, ErrProjectExpired)

	err = invoke(t, rt, func(c *call) error {
		return c.deposit(p.ID, "hive:donor", testToken, uint256.NewInt(1))
	})
	assert.ErrorIs(t, err, ErrProjectNotActive)
}

// TestVerifyActiveProject checks Active still verifies and accepts deposits.
func TestVerifyActiveProject(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := seedProject(t, rt)
	require.NoError(t, rt.Mint(context.Background(), testToken, "hive:donor", uint256.NewInt(10)))
	require.NoError(t, invoke(t, rt, func(c *call) error {
		if err := c.grantRole(testAdmin, "hive:oracle", RoleOracle); err != nil {
			return err
		}
		c.s.saveProjectState(p.ID, &ProjectState{Status: StatusActive})
		return nil
	}))

	require.NoError(t, invoke(t, rt, func(c *call) error {
		return c.deposit(p.ID, "hive:donor", testToken, uint256.NewInt(10))
	}))
	require.NoError(t, invoke(t, rt, func(c *call) error {
		return c.verifyAndRelease("hive:oracle", p.ID, p.ProofHash)
	}))
}

// TestCorruptStateSurfaces checks an undecodable record is a host error, not ProjectNotFound.
func TestCorruptStateSurfaces(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := seedProject(t, rt)
	require.NoError(t, rt.Invoke(context.Background(), "corrupt", func(h *sdk.Host) error {
		h.Persistent.Set(projectStateKey(p.ID), []byte{9, 9, 9})
		return nil
	}))
	query(t, rt, func(c *call) error {
		_, err := c.getProject(p.ID)
		require.Error(t, err)
		_, isProtocol := CodeOf(err)
		assert.False(t, isProtocol)
		return nil
	})
}
