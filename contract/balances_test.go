package contract

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pifp_protocol/sdk"
)

// TestAddToTokenBalanceOverflow checks the cap is inclusive and one more is Overflow.
func TestAddToTokenBalanceOverflow(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := seedProject(t, rt)

	require.NoError(t, invoke(t, rt, func(c *call) error {
		sum, err := c.s.addToTokenBalance(p.ID, testToken, MaxBalance())
		require.NoError(t, err)
		assert.True(t, sum.Eq(maxBalance))
		return nil
	}))

	err := invoke(t, rt, func(c *call) error {
		_, err := c.s.addToTokenBalance(p.ID, testToken, uint256.NewInt(1))
		return err
	})
	assert.ErrorIs(t, err, ErrOverflow)

	// a full 256 bit wrap is Overflow too, never a small number
	err = invoke(t, rt, func(c *call) error {
		allOnes := new(uint256.Int).SetAllOne()
		_, err := c.s.addToTokenBalance(p.ID, testToken, allOnes)
		return err
	})
	assert.ErrorIs(t, err, ErrOverflow)

	query(t, rt, func(c *call) error {
		bal, err := c.s.getTokenBalance(p.ID, testToken)
		require.NoError(t, err)
		assert.True(t, bal.Eq(maxBalance))
		return nil
	})
}

// TestDrainTokenBalance checks drain hands back the balance and leaves zero.
func TestDrainTokenBalance(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := seedProject(t, rt)

	require.NoError(t, invoke(t, rt, func(c *call) error {
		_, err := c.s.addToTokenBalance(p.ID, testToken, uint256.NewInt(77))
		return err
	}))
	require.NoError(t, invoke(t, rt, func(c *call) error {
		got, err := c.s.drainTokenBalance(p.ID, testToken)
		require.NoError(t, err)
		assert.Equal(t, "77", got.Dec())
		return nil
	}))
	query(t, rt, func(c *call) error {
		bal, err := c.s.getTokenBalance(p.ID, testToken)
		require.NoError(t, err)
		assert.True(t, bal.IsZero())
		return nil
	})
}

// TestGetAllBalancesOrder checks the snapshot follows the registration order of tokens.
func TestGetAllBalancesOrder(t *testing.T) {
	rt, _ := newTestRuntime(t)
	cfg := &ProjectConfig{
		ID:             3,
		Creator:        testAdmin,
		AcceptedTokens: []sdk.Address{"contract:b", "contract:a", "contract:c"},
		Goal:           uint256.NewInt(1),
		Deadline:       testStart + day,
	}
	require.NoError(t, invoke(t, rt, func(c *call) error {
		c.s.setTokenBalance(cfg.ID, "contract:a", uint256.NewInt(2))
		c.s.setTokenBalance(cfg.ID, "contract:c", uint256.NewInt(3))
		return nil
	}))
	query(t, rt, func(c *call) error {
		out, err := c.s.getAllBalances(cfg)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), out.ProjectID)
		require.Len(t, out.Balances, 3)
		assert.Equal(t, sdk.Address("contract:b"), out.Balances[0].Token)
		assert.True(t, out.Balances[0].Balance.IsZero())
		assert.Equal(t, "2", out.Balances[1].Balance.Dec())
		assert.Equal(t, "3", out.Balances[2].Balance.Dec())
		return nil
	})
}

// TestBalanceKeysDoNotCollide checks project and token boundaries stay apart in the key space.
func TestBalanceKeysDoNotCollide(t *testing.T) {
	assert.NotEqual(t, projectBalanceKey(1, "contract:a"), projectBalanceKey(256, "contract:a"))
	assert.NotEqual(t, projectConfigKey(1), projectStateKey(1))
	assert.Equal(t, projectBalanceKey(1, "hive:Bob"), projectBalanceKey(1, "hive:bob"))
	assert.Equal(t, roleKey("hive:Bob"), roleKey("hive:bob"))
}
