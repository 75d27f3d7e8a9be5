package contract

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pifp_protocol/sdk"
)

// registerProject validates in a fixed order so every bad input maps to exactly one error.
func (c *call) registerProject(creator sdk.Address, tokens []sdk.Address, goal *uint256.Int, proofHash common.Hash, deadline uint64) (*Project, error) {
	if c.s.isPaused() {
		return nil, errorf(CodeProtocolPaused, "register")
	}
	if err := c.h.Env.RequireAuth(creator); err != nil {
		return nil, err
	}
	if err := c.requireCanRegister(creator); err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, errorf(CodeEmptyAcceptedTokens, "at least one token required")
	}
	if len(tokens) > MaxAcceptedTokens {
		return nil, errorf(CodeTooManyTokens, "%d tokens, max %d", len(tokens), MaxAcceptedTokens)
	}
	accepted := make([]sdk.Address, 0, len(tokens))
	for _, t := range tokens {
		t = t.Normalize()
		for _, seen := range accepted {
			if seen == t {
				return nil, errorf(CodeDuplicateToken, "%s listed twice", t)
			}
		}
		accepted = append(accepted, t)
	}

	if goal == nil || goal.IsZero() || goal.Gt(maxGoal) {
		return nil, errorf(CodeInvalidGoal, "goal must be in (0, 10^30]")
	}
	now := c.h.Env.Now()
	if deadline <= now || deadline > now+MaxDeadlineHorizon {
		return nil, errorf(CodeInvalidDeadline, "deadline %d outside (%d, %d]", deadline, now, now+MaxDeadlineHorizon)
	}

	c.s.bumpInstance()
	cfg := &ProjectConfig{
		ID:             c.s.nextProjectID(),
		Creator:        creator.Normalize(),
		AcceptedTokens: accepted,
		Goal:           goal.Clone(),
		ProofHash:      proofHash,
		Deadline:       deadline,
	}
	st := &ProjectState{Status: StatusFunding}
	c.s.saveProjectConfig(cfg)
	c.s.saveProjectState(cfg.ID, st)
	for _, t := range cfg.AcceptedTokens {
		c.s.setTokenBalance(cfg.ID, t, new(uint256.Int))
	}

	view := newProjectView(cfg, st)
	if err := CheckProject(view); err != nil {
		return nil, err
	}
	emitProjectCreated(c.h, cfg)
	return view, nil
}

func (c *call) getProject(id uint64) (*Project, error) {
	cfg, st, err := c.s.loadProjectPair(id)
	if err != nil {
		return nil, err
	}
	return newProjectView(cfg, st), nil
}

// getBalance needs the project to exist, a token outside the accepted list reads as zero.
func (c *call) getBalance(id uint64, token sdk.Address) (*uint256.Int, error) {
	if !c.s.projectExists(id) {
		return nil, errorf(CodeProjectNotFound, "project %d", id)
	}
	return c.s.getTokenBalance(id, token)
}

func (c *call) getBalances(id uint64) (*ProjectBalances, error) {
	cfg, err := c.s.loadProjectConfig(id)
	if err != nil {
		return nil, err
	}
	return c.s.getAllBalances(cfg)
}
