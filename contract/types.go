package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pifp_protocol/sdk"
)

const (
	// MaxAcceptedTokens caps the token list of a single project.
	MaxAcceptedTokens = 10
	// MaxDeadlineHorizon is five 365 day years in seconds.
	MaxDeadlineHorizon uint64 = 5 * 365 * 24 * 60 * 60
)

var (
	maxGoal    = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(30))
	maxBalance = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 127), uint256.NewInt(1))
)

// MaxGoal is 10^30, the largest goal a project may ask for.
func MaxGoal() *uint256.Int { return maxGoal.Clone() }

// MaxBalance is the largest balance a (project, token) pair may hold, 2^127-1.
func MaxBalance() *uint256.Int { return maxBalance.Clone() }

// Role is the single role an address may hold.
type Role uint8

const (
	RoleSuperAdmin Role = iota
	RoleAdmin
	RoleOracle
	RoleAuditor
	RoleProjectManager
)

// String returns the short symbol used in events and storage dumps.
// Example payload: RoleProjectManager.String() == "proj_mgr"
func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "supadmin"
	case RoleAdmin:
		return "admin"
	case RoleOracle:
		return "oracle"
	case RoleAuditor:
		return "auditor"
	case RoleProjectManager:
		return "proj_mgr"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r Role) valid() bool { return r <= RoleProjectManager }

// ParseRole accepts the event symbol or the spelled out name.
// Example payload: ParseRole("project_manager")
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supadmin", "super_admin", "superadmin":
		return RoleSuperAdmin, nil
	case "admin":
		return RoleAdmin, nil
	case "oracle":
		return RoleOracle, nil
	case "auditor":
		return RoleAuditor, nil
	case "proj_mgr", "project_manager", "projectmanager":
		return RoleProjectManager, nil
	}
	return 0, errorf(CodeRoleNotFound, "unknown role %q", s)
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus uint8

const (
	StatusFunding ProjectStatus = iota
	StatusActive
	StatusCompleted
	StatusExpired
)

func (s ProjectStatus) String() string {
	switch s {
	case StatusFunding:
		return "funding"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// IsTerminal is true for Completed and Expired.
func (s ProjectStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// acceptsDeposits is true while money may still flow in.
func (s ProjectStatus) acceptsDeposits() bool {
	return s == StatusFunding || s == StatusActive
}

// ProjectConfig is written once at registration and never again.
type ProjectConfig struct {
	ID             uint64
	Creator        sdk.Address
	AcceptedTokens []sdk.Address
	Goal           *uint256.Int
	ProofHash      common.Hash
	Deadline       uint64
}

// Accepts reports whether token is in the accepted list.
func (c *ProjectConfig) Accepts(token sdk.Address) bool {
	token = token.Normalize()
	for _, t := range c.AcceptedTokens {
		if t == token {
			return true
		}
	}
	return false
}

// ProjectState is the small mutable half, rewritten by deposit and verify.
type ProjectState struct {
	Status        ProjectStatus
	DonationCount uint32
}

// Project is the reconstructed view, it is never stored as one record.
type Project struct {
	ID             uint64
	Creator        sdk.Address
	AcceptedTokens []sdk.Address
	Goal           *uint256.Int
	ProofHash      common.Hash
	Deadline       uint64
	Status         ProjectStatus
	DonationCount  uint32
}

func newProjectView(cfg *ProjectConfig, st *ProjectState) *Project {
	return &Project{
		ID:             cfg.ID,
		Creator:        cfg.Creator,
		AcceptedTokens: append([]sdk.Address(nil), cfg.AcceptedTokens...),
		Goal:           cfg.Goal.Clone(),
		ProofHash:      cfg.ProofHash,
		Deadline:       cfg.Deadline,
		Status:         st.Status,
		DonationCount:  st.DonationCount,
	}
}

// Config extracts the immutable half of the view again.
func (p *Project) Config() ProjectConfig {
	return ProjectConfig{
		ID:             p.ID,
		Creator:        p.Creator,
		AcceptedTokens: append([]sdk.Address(nil), p.AcceptedTokens...),
		Goal:           p.Goal.Clone(),
		ProofHash:      p.ProofHash,
		Deadline:       p.Deadline,
	}
}

// TokenBalance is one entry of a balance snapshot.
type TokenBalance struct {
	Token   sdk.Address
	Balance *uint256.Int
}

// ProjectBalances is the snapshot over all accepted tokens, in registration order.
type ProjectBalances struct {
	ProjectID uint64
	Balances  []TokenBalance
}
