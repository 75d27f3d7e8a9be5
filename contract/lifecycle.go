package contract

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pifp_protocol/sdk"
)

// deposit pulls tokens into custody first and only then credits the project.
func (c *call) deposit(projectID uint64, donator, token sdk.Address, amount *uint256.Int) error {
	if c.s.isPaused() {
		return errorf(CodeProtocolPaused, "deposit")
	}
	if err := c.h.Env.RequireAuth(donator); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return errorf(CodeInvalidAmount, "amount must be positive")
	}
	cfg, st, err := c.s.loadProjectPair(projectID)
	if err != nil {
		return err
	}
	if c.h.Env.Now() >= cfg.Deadline {
		return errorf(CodeProjectExpired, "project %d deadline %d passed", projectID, cfg.Deadline)
	}
	if !st.Status.acceptsDeposits() {
		return errorf(CodeProjectNotActive, "project %d is %s", projectID, st.Status)
	}
	token = token.Normalize()
	if !cfg.Accepts(token) {
		return errorf(CodeTokenNotAccepted, "project %d does not accept %s", projectID, token)
	}
	c.s.bumpInstance()

	// an external token client moves funds outside the overlay, so nothing may fail after it
	if err := c.s.checkBalanceRoom(projectID, token, amount); err != nil {
		return err
	}
	if st.DonationCount == ^uint32(0) {
		return errorf(CodeOverflow, "project %d donation count", projectID)
	}
	if err := c.h.Tokens.Transfer(token, donator, c.h.Env.CurrentContract(), amount); err != nil {
		return errorf(CodeInsufficientBalance, "transfer from %s", donator).WithCause(err)
	}

	before, err := c.s.getTokenBalance(projectID, token)
	if err != nil {
		return err
	}
	after, err := c.s.addToTokenBalance(projectID, token, amount)
	if err != nil {
		return err
	}
	if err := checkDepositInvariant(before, amount, after); err != nil {
		return err
	}

	st.DonationCount++
	c.s.saveProjectState(projectID, st)

	emitProjectFunded(c.h, projectID, donator.Normalize(), token, amount)
	return nil
}

// verifyAndRelease flips the project to Completed when the submitted hash matches the commitment.
// Custody stays where it is.
func (c *call) verifyAndRelease(oracle sdk.Address, projectID uint64, submitted common.Hash) error {
	if c.s.isPaused() {
		return errorf(CodeProtocolPaused, "verify")
	}
	if err := c.h.Env.RequireAuth(oracle); err != nil {
		return err
	}
	if err := c.requireOracle(oracle); err != nil {
		return err
	}
	cfg, st, err := c.s.loadProjectPair(projectID)
	if err != nil {
		return err
	}
	switch st.Status {
	case StatusCompleted:
		return errorf(CodeMilestoneAlreadyReleased, "project %d already verified", projectID)
	case StatusExpired:
		return errorf(CodeProjectExpired, "project %d expired", projectID)
	}
	if submitted != cfg.ProofHash {
		return errorf(CodeVerificationFailed, "project %d proof hash mismatch", projectID)
	}
	if !st.Status.CanTransitionTo(StatusCompleted) {
		return errorf(CodeProjectNotActive, "project %d is %s", projectID, st.Status)
	}
	c.s.bumpInstance()

	st.Status = StatusCompleted
	c.s.saveProjectState(projectID, st)
	emitProjectVerified(c.h, projectID, oracle.Normalize(), submitted)
	return nil
}

func (c *call) pause(caller sdk.Address) error {
	if err := c.h.Env.RequireAuth(caller); err != nil {
		return err
	}
	if err := c.requireAdminOrAbove(caller); err != nil {
		return err
	}
	c.s.setPaused(true)
	emitPaused(c.h, caller.Normalize())
	return nil
}

func (c *call) unpause(caller sdk.Address) error {
	if err := c.h.Env.RequireAuth(caller); err != nil {
		return err
	}
	if err := c.requireAdminOrAbove(caller); err != nil {
		return err
	}
	c.s.setPaused(false)
	emitUnpaused(c.h, caller.Normalize())
	return nil
}

// setOracle is grantRole with the role fixed.
func (c *call) setOracle(caller, oracle sdk.Address) error {
	if err := c.h.Env.RequireAuth(caller); err != nil {
		return err
	}
	return c.grantRole(caller, oracle, RoleOracle)
}
