////////////////////////////////////////////////////////////////////////////////
// PIFP: proof-of-impact funding protocol
////////////////////////////////////////////////////////////////////////////////

// Package contract holds the protocol: roles, projects, balances and the lifecycle
// entry points. Every exported method is one invocation on the ledger runtime.
package contract

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"pifp_protocol/ledger"
	"pifp_protocol/sdk"
)

// Contract is the public surface. Signers come from ctx, see sdk.WithAuth.
type Contract struct {
	rt  *ledger.Runtime
	log zerolog.Logger
}

func New(rt *ledger.Runtime, log zerolog.Logger) *Contract {
	return &Contract{rt: rt, log: log.With().Str("component", "contract").Logger()}
}

// Runtime exposes the host, the API uses it for events and the token bank.
func (c *Contract) Runtime() *ledger.Runtime { return c.rt }

func (c *Contract) invoke(ctx context.Context, op string, fn func(x *call) error) error {
	return c.rt.Invoke(ctx, op, func(h *sdk.Host) error { return fn(newCall(h)) })
}

func (c *Contract) query(ctx context.Context, fn func(x *call) error) error {
	return c.rt.Query(ctx, func(h *sdk.Host) error { return fn(newCall(h)) })
}

// -----------------------------------------------------------------------------
// RBAC
// -----------------------------------------------------------------------------

// Init makes superAdmin the one super admin. It has to sign, and it only works once.
func (c *Contract) Init(ctx context.Context, superAdmin sdk.Address) error {
	err := c.invoke(ctx, "init", func(x *call) error {
		if err := x.h.Env.RequireAuth(superAdmin); err != nil {
			return err
		}
		return x.initSuperAdmin(superAdmin)
	})
	if err == nil {
		c.log.Info().Str("super_admin", superAdmin.String()).Msg("protocol initialized")
	}
	return err
}

func (c *Contract) GrantRole(ctx context.Context, caller, target sdk.Address, role Role) error {
	err := c.invoke(ctx, "grant_role", func(x *call) error {
		if err := x.h.Env.RequireAuth(caller); err != nil {
			return err
		}
		return x.grantRole(caller, target, role)
	})
	if err == nil {
		c.log.Info().Str("by", caller.String()).Str("target", target.String()).Stringer("role", role).Msg("role granted")
	}
	return err
}

func (c *Contract) RevokeRole(ctx context.Context, caller, target sdk.Address) error {
	err := c.invoke(ctx, "revoke_role", func(x *call) error {
		if err := x.h.Env.RequireAuth(caller); err != nil {
			return err
		}
		return x.revokeRole(caller, target)
	})
	if err == nil {
		c.log.Info().Str("by", caller.String()).Str("target", target.String()).Msg("role revoked")
	}
	return err
}

func (c *Contract) TransferSuperAdmin(ctx context.Context, current, next sdk.Address) error {
	err := c.invoke(ctx, "transfer_super_admin", func(x *call) error {
		if err := x.h.Env.RequireAuth(current); err != nil {
			return err
		}
		return x.transferSuperAdmin(current, next)
	})
	if err == nil {
		c.log.Info().Str("from", current.String()).Str("to", next.String()).Msg("super admin transferred")
	}
	return err
}

// RoleOf returns the role of addr, false when it holds none.
func (c *Contract) RoleOf(ctx context.Context, addr sdk.Address) (Role, bool, error) {
	var (
		role Role
		ok   bool
	)
	err := c.query(ctx, func(x *call) error {
		role, ok = x.roleOf(addr)
		return nil
	})
	return role, ok, err
}

func (c *Contract) HasRole(ctx context.Context, addr sdk.Address, role Role) (bool, error) {
	var ok bool
	err := c.query(ctx, func(x *call) error {
		ok = x.hasRole(addr, role)
		return nil
	})
	return ok, err
}

// SuperAdmin returns the current super admin pointer, false before Init.
func (c *Contract) SuperAdmin(ctx context.Context) (sdk.Address, bool, error) {
	var (
		addr sdk.Address
		ok   bool
	)
	err := c.query(ctx, func(x *call) error {
		addr, ok = x.s.superAdmin()
		return nil
	})
	return addr, ok, err
}

// SetOracle grants the oracle role, admins and above only.
func (c *Contract) SetOracle(ctx context.Context, caller, oracle sdk.Address) error {
	err := c.invoke(ctx, "set_oracle", func(x *call) error {
		return x.setOracle(caller, oracle)
	})
	if err == nil {
		c.log.Info().Str("by", caller.String()).Str("oracle", oracle.String()).Msg("oracle set")
	}
	return err
}

// Restore revives archived state with its old values: the instance, the super admin,
// the roles of accounts and the listed projects. Nothing changes hands, so no signer is needed.
func (c *Contract) Restore(ctx context.Context, projectIDs []uint64, accounts []sdk.Address) (int, error) {
	var n int
	err := c.rt.Restore(ctx, func(h *sdk.Host) error {
		var err error
		n, err = newCall(h).s.restore(projectIDs, accounts)
		return err
	})
	if err != nil {
		return 0, err
	}
	c.log.Info().Int("entries", n).Int("projects", len(projectIDs)).Msg("archived state restored")
	return n, nil
}

// -----------------------------------------------------------------------------
// Pause
// -----------------------------------------------------------------------------

func (c *Contract) Pause(ctx context.Context, caller sdk.Address) error {
	err := c.invoke(ctx, "pause", func(x *call) error { return x.pause(caller) })
	if err == nil {
		c.log.Warn().Str("by", caller.String()).Msg("protocol paused")
	}
	return err
}

func (c *Contract) Unpause(ctx context.Context, caller sdk.Address) error {
	err := c.invoke(ctx, "unpause", func(x *call) error { return x.unpause(caller) })
	if err == nil {
		c.log.Info().Str("by", caller.String()).Msg("protocol unpaused")
	}
	return err
}

func (c *Contract) IsPaused(ctx context.Context) (bool, error) {
	var paused bool
	err := c.query(ctx, func(x *call) error {
		paused = x.s.isPaused()
		return nil
	})
	return paused, err
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

// RegisterProject creates a project in Funding and returns its view.
func (c *Contract) RegisterProject(ctx context.Context, creator sdk.Address, tokens []sdk.Address, goal *uint256.Int, proofHash common.Hash, deadline uint64) (*Project, error) {
	var p *Project
	err := c.invoke(ctx, "register_project", func(x *call) error {
		var err error
		p, err = x.registerProject(creator, tokens, goal, proofHash, deadline)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Uint64("project", p.ID).Str("creator", p.Creator.String()).Str("goal", p.Goal.Dec()).Msg("project registered")
	return p, nil
}

func (c *Contract) GetProject(ctx context.Context, id uint64) (*Project, error) {
	var p *Project
	err := c.query(ctx, func(x *call) error {
		var err error
		p, err = x.getProject(id)
		return err
	})
	return p, err
}

// ProjectCount is the number of projects ever registered, also the next id.
func (c *Contract) ProjectCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.query(ctx, func(x *call) error {
		n = x.s.projectCount()
		return nil
	})
	return n, err
}

func (c *Contract) GetBalance(ctx context.Context, id uint64, token sdk.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := c.query(ctx, func(x *call) error {
		var err error
		bal, err = x.getBalance(id, token)
		return err
	})
	return bal, err
}

func (c *Contract) GetBalances(ctx context.Context, id uint64) (*ProjectBalances, error) {
	var out *ProjectBalances
	err := c.query(ctx, func(x *call) error {
		var err error
		out, err = x.getBalances(id)
		return err
	})
	return out, err
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (c *Contract) Deposit(ctx context.Context, id uint64, donator, token sdk.Address, amount *uint256.Int) error {
	err := c.invoke(ctx, "deposit", func(x *call) error {
		return x.deposit(id, donator, token, amount)
	})
	if err == nil {
		c.log.Info().Uint64("project", id).Str("donator", donator.String()).Str("token", token.String()).Str("amount", amount.Dec()).Msg("deposit")
	}
	return err
}

func (c *Contract) VerifyAndRelease(ctx context.Context, oracle sdk.Address, id uint64, proofHash common.Hash) error {
	err := c.invoke(ctx, "verify_and_release", func(x *call) error {
		return x.verifyAndRelease(oracle, id, proofHash)
	})
	if err == nil {
		c.log.Info().Uint64("project", id).Str("oracle", oracle.String()).Msg("project verified")
	}
	return err
}
