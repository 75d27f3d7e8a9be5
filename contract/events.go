package contract

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pifp_protocol/sdk"
)

// Event topics, kept short so indexers can match on the first topic alone.
const (
	TopicCreated  = "created"
	TopicFunded   = "funded"
	TopicVerified = "verified"
	TopicRoleSet  = "role_set"
	TopicRoleDel  = "role_del"
	TopicPaused   = "paused"
	TopicUnpaused = "unpaused"
)

// emitProjectCreated gives explorers a neat ping without scanning full storage diffs.
func emitProjectCreated(h *sdk.Host, cfg *ProjectConfig) {
	h.Events.Publish(
		[]string{TopicCreated, sdk.FormatUint(cfg.ID)},
		map[string]string{
			"creator": cfg.Creator.String(),
			"token":   cfg.AcceptedTokens[0].String(),
			"goal":    cfg.Goal.Dec(),
		},
	)
}

// emitProjectFunded carries the token too, a project may accept several.
func emitProjectFunded(h *sdk.Host, projectID uint64, donator, token sdk.Address, amount *uint256.Int) {
	h.Events.Publish(
		[]string{TopicFunded, sdk.FormatUint(projectID)},
		map[string]string{
			"donator": donator.String(),
			"token":   token.String(),
			"amount":  amount.Dec(),
		},
	)
}

func emitProjectVerified(h *sdk.Host, projectID uint64, oracle sdk.Address, proofHash common.Hash) {
	h.Events.Publish(
		[]string{TopicVerified, sdk.FormatUint(projectID)},
		map[string]string{
			"oracle":     oracle.String(),
			"proof_hash": proofHash.Hex(),
		},
	)
}

// emitRoleSet leaves "by" empty for the bootstrap grant at init.
func emitRoleSet(h *sdk.Host, target sdk.Address, role Role, by sdk.Address) {
	h.Events.Publish(
		[]string{TopicRoleSet, target.String(), role.String()},
		map[string]string{"by": by.String()},
	)
}

func emitRoleDel(h *sdk.Host, target, by sdk.Address) {
	h.Events.Publish(
		[]string{TopicRoleDel, target.String()},
		map[string]string{"by": by.String()},
	)
}

func emitPaused(h *sdk.Host, admin sdk.Address) {
	h.Events.Publish([]string{TopicPaused}, map[string]string{"admin": admin.String()})
}

func emitUnpaused(h *sdk.Host, admin sdk.Address) {
	h.Events.Publish([]string{TopicUnpaused}, map[string]string{"admin": admin.String()})
}
