package contract

import (
	"fmt"

	"github.com/holiman/uint256"

	"pifp_protocol/sdk"
)

// getTokenBalance retrieves the balance of a single token in the project, zero if never written.
func (s store) getTokenBalance(projectID uint64, token sdk.Address) (*uint256.Int, error) {
	key := projectBalanceKey(projectID, token)
	raw, ok := s.h.Persistent.Get(key)
	if !ok {
		return new(uint256.Int), nil
	}
	bal, err := decodeAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("decode balance of project %d token %s: %w", projectID, token, err)
	}
	s.bump(key)
	return bal, nil
}

// setTokenBalance overwrites the balance, only add and drain call it after registration.
func (s store) setTokenBalance(projectID uint64, token sdk.Address, amount *uint256.Int) {
	key := projectBalanceKey(projectID, token)
	s.h.Persistent.Set(key, encodeAmount(amount))
	s.bump(key)
}

// checkBalanceRoom fails with Overflow when amount does not fit under MaxBalance.
func (s store) checkBalanceRoom(projectID uint64, token sdk.Address, amount *uint256.Int) error {
	current, err := s.getTokenBalance(projectID, token)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow || sum.Gt(maxBalance) {
		return errorf(CodeOverflow, "project %d token %s: %s + %s", projectID, token, current.Dec(), amount.Dec())
	}
	return nil
}

// addToTokenBalance adds amount and fails with Overflow instead of wrapping past MaxBalance.
func (s store) addToTokenBalance(projectID uint64, token sdk.Address, amount *uint256.Int) (*uint256.Int, error) {
	current, err := s.getTokenBalance(projectID, token)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow || sum.Gt(maxBalance) {
		return nil, errorf(CodeOverflow, "project %d token %s: %s + %s", projectID, token, current.Dec(), amount.Dec())
	}
	s.setTokenBalance(projectID, token, sum)
	return sum, nil
}

// drainTokenBalance zeroes the balance and hands back what was there, for a future payout path.
func (s store) drainTokenBalance(projectID uint64, token sdk.Address) (*uint256.Int, error) {
	current, err := s.getTokenBalance(projectID, token)
	if err != nil {
		return nil, err
	}
	s.setTokenBalance(projectID, token, new(uint256.Int))
	return current, nil
}

// getAllBalances loads every accepted token balance, keeping registration order.
func (s store) getAllBalances(cfg *ProjectConfig) (*ProjectBalances, error) {
	out := &ProjectBalances{
		ProjectID: cfg.ID,
		Balances:  make([]TokenBalance, 0, len(cfg.AcceptedTokens)),
	}
	for _, token := range cfg.AcceptedTokens {
		bal, err := s.getTokenBalance(cfg.ID, token)
		if err != nil {
			return nil, err
		}
		out.Balances = append(out.Balances, TokenBalance{Token: token, Balance: bal})
	}
	return out, nil
}
