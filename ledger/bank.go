package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"pifp_protocol/kv"
	"pifp_protocol/sdk"
)

// bank is the native token ledger. Balances live in the same overlay as program state,
// so a transfer and the bookkeeping that follows it commit or vanish together.
type bank struct{ t *txn }

func (t *txn) bank() bank { return bank{t: t} }

func bankKey(token, owner sdk.Address) string {
	return prefixBank + token.Normalize().String() + "|" + owner.Normalize().String()
}

func (b bank) Balance(token, owner sdk.Address) *uint256.Int {
	rec, ok := b.t.read(bankKey(token, owner))
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).SetBytes(rec.Value)
}

func (b bank) set(token, owner sdk.Address, v *uint256.Int) {
	if v.IsZero() {
		b.t.remove(bankKey(token, owner))
		return
	}
	b.t.write(bankKey(token, owner), kv.Record{Value: v.Bytes()})
}

func (b bank) Transfer(token, from, to sdk.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: nil amount", sdk.ErrInvalidTransfer)
	}
	if b.t.err != nil {
		return b.t.err
	}
	fromBal := b.Balance(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", sdk.ErrInsufficientFunds, from, fromBal.Dec(), token, amount.Dec())
	}
	if amount.IsZero() || from.Normalize() == to.Normalize() {
		return nil
	}
	toBal := b.Balance(token, to)
	sum, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow for %s", sdk.ErrInvalidTransfer, to)
	}
	b.set(token, from, new(uint256.Int).Sub(fromBal, amount))
	b.set(token, to, sum)
	return nil
}

func (b bank) mint(token, to sdk.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: mint needs a positive amount", sdk.ErrInvalidTransfer)
	}
	sum, overflow := new(uint256.Int).AddOverflow(b.Balance(token, to), amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow for %s", sdk.ErrInvalidTransfer, to)
	}
	b.set(token, to, sum)
	return nil
}
