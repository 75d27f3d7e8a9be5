package contract

import (
	"errors"
	"fmt"
	"slices"

	"github.com/holiman/uint256"
)

// ErrInvariant marks a broken internal invariant. It never maps to a protocol code
// because no caller input should be able to produce it.
var ErrInvariant = errors.New("invariant violated")

// CanTransitionTo lists the forward edges of the status machine. Terminal states have none.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	switch s {
	case StatusFunding:
		return next == StatusActive || next == StatusCompleted || next == StatusExpired
	case StatusActive:
		return next == StatusCompleted || next == StatusExpired
	default:
		return false
	}
}

// CheckProject runs the stateless checks on a view: goal in range, deadline set, known status.
func CheckProject(p *Project) error {
	if p.Goal == nil || p.Goal.IsZero() || p.Goal.Gt(maxGoal) {
		return fmt.Errorf("%w: project %d goal out of range", ErrInvariant, p.ID)
	}
	if p.Deadline == 0 {
		return fmt.Errorf("%w: project %d has zero deadline", ErrInvariant, p.ID)
	}
	if p.Status > StatusExpired {
		return fmt.Errorf("%w: project %d has unknown status %d", ErrInvariant, p.ID, p.Status)
	}
	return nil
}

// checkDepositInvariant confirms after == before + amount.
func checkDepositInvariant(before, amount, after *uint256.Int) error {
	want, overflow := new(uint256.Int).AddOverflow(before, amount)
	if overflow || !want.Eq(after) {
		return fmt.Errorf("%w: %s + %s != %s", ErrInvariant, before.Dec(), amount.Dec(), after.Dec())
	}
	return nil
}

// CheckSequentialIDs expects ids 0..n-1 in order.
func CheckSequentialIDs(projects []*Project) error {
	for i, p := range projects {
		if p.ID != uint64(i) {
			return fmt.Errorf("%w: expected id %d, got %d", ErrInvariant, i, p.ID)
		}
	}
	return nil
}

// CheckImmutable compares the fields that registration fixes forever.
func CheckImmutable(original, current *Project) error {
	switch {
	case original.ID != current.ID:
		return fmt.Errorf("%w: project id changed", ErrInvariant)
	case original.Creator != current.Creator:
		return fmt.Errorf("%w: project %d creator changed", ErrInvariant, original.ID)
	case !slices.Equal(original.AcceptedTokens, current.AcceptedTokens):
		return fmt.Errorf("%w: project %d accepted tokens changed", ErrInvariant, original.ID)
	case !original.Goal.Eq(current.Goal):
		return fmt.Errorf("%w: project %d goal changed", ErrInvariant, original.ID)
	case original.ProofHash != current.ProofHash:
		return fmt.Errorf("%w: project %d proof hash changed", ErrInvariant, original.ID)
	case original.Deadline != current.Deadline:
		return fmt.Errorf("%w: project %d deadline changed", ErrInvariant, original.ID)
	}
	return nil
}
