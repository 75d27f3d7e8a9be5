package contract

import "pifp_protocol/sdk"

// call is the program logic of one invocation, bound to the host it runs on.
type call struct {
	h *sdk.Host
	s store
}

func newCall(h *sdk.Host) *call {
	return &call{h: h, s: store{h: h}}
}

// -----------------------------------------------------------------------------
// Guards
// -----------------------------------------------------------------------------

// requireRole passes only if addr holds exactly role.
func (c *call) requireRole(addr sdk.Address, role Role) error {
	if r, ok := c.s.role(addr); ok && r == role {
		return nil
	}
	return errorf(CodeNotAuthorized, "%s does not hold %s", addr, role)
}

// requireAnyOf passes if addr holds one of allowed.
func (c *call) requireAnyOf(addr sdk.Address, allowed ...Role) error {
	if r, ok := c.s.role(addr); ok {
		for _, a := range allowed {
			if r == a {
				return nil
			}
		}
	}
	return errorf(CodeNotAuthorized, "%s holds none of %v", addr, allowed)
}

func (c *call) requireAdminOrAbove(addr sdk.Address) error {
	return c.requireAnyOf(addr, RoleSuperAdmin, RoleAdmin)
}

func (c *call) requireOracle(addr sdk.Address) error {
	return c.requireRole(addr, RoleOracle)
}

// requireCanRegister lets project managers in next to the admins.
func (c *call) requireCanRegister(addr sdk.Address) error {
	return c.requireAnyOf(addr, RoleSuperAdmin, RoleAdmin, RoleProjectManager)
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// initSuperAdmin bootstraps the one super admin, a second call fails.
func (c *call) initSuperAdmin(addr sdk.Address) error {
	if _, ok := c.s.superAdmin(); ok {
		return errorf(CodeAlreadyInitialized, "super admin already set")
	}
	addr = addr.Normalize()
	c.s.setSuperAdmin(addr)
	c.s.setRole(addr, RoleSuperAdmin)
	emitRoleSet(c.h, addr, RoleSuperAdmin, "")
	return nil
}

// grantRole overwrites whatever target held. Only a super admin hands out super admin,
// and a super admin target cannot be demoted this way.
func (c *call) grantRole(caller, target sdk.Address, role Role) error {
	if !role.valid() {
		return errorf(CodeRoleNotFound, "role %d", uint8(role))
	}
	if role == RoleSuperAdmin {
		if err := c.requireRole(caller, RoleSuperAdmin); err != nil {
			return err
		}
	} else if err := c.requireAdminOrAbove(caller); err != nil {
		return err
	}
	if cur, ok := c.s.role(target); ok && cur == RoleSuperAdmin && role != RoleSuperAdmin {
		return errorf(CodeNotAuthorized, "super admin %s cannot be demoted, transfer instead", target)
	}
	target = target.Normalize()
	c.s.setRole(target, role)
	emitRoleSet(c.h, target, role, caller.Normalize())
	return nil
}

// revokeRole clears target's role, silently doing nothing when there is none.
func (c *call) revokeRole(caller, target sdk.Address) error {
	if err := c.requireAdminOrAbove(caller); err != nil {
		return err
	}
	target = target.Normalize()
	if sa, ok := c.s.superAdmin(); ok && sa == target {
		return errorf(CodeNotAuthorized, "super admin cannot be revoked, transfer instead")
	}
	if _, ok := c.s.role(target); !ok {
		return nil
	}
	c.s.clearRole(target)
	emitRoleDel(c.h, target, caller.Normalize())
	return nil
}

// transferSuperAdmin is the only way a super admin ever loses the role.
func (c *call) transferSuperAdmin(current, next sdk.Address) error {
	if err := c.requireRole(current, RoleSuperAdmin); err != nil {
		return err
	}
	current, next = current.Normalize(), next.Normalize()
	c.s.clearRole(current)
	emitRoleDel(c.h, current, current)
	c.s.setSuperAdmin(next)
	c.s.setRole(next, RoleSuperAdmin)
	emitRoleSet(c.h, next, RoleSuperAdmin, current)
	return nil
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

func (c *call) roleOf(addr sdk.Address) (Role, bool) {
	return c.s.role(addr)
}

func (c *call) hasRole(addr sdk.Address, role Role) bool {
	r, ok := c.s.role(addr)
	return ok && r == role
}
