package sdk

import (
	"errors"

	"github.com/holiman/uint256"
)

// Host errors. They are not part of the protocol error codes, the host raises them before
// or around the program logic.
var (
	ErrMissingAuth       = errors.New("sdk: invocation not authorized by address")
	ErrInsufficientFunds = errors.New("sdk: insufficient token balance")
	ErrInvalidTransfer   = errors.New("sdk: invalid transfer")
	// ErrArchived fails an invocation that touched an expired entry. The entry keeps its
	// value and comes back through a restore.
	ErrArchived = errors.New("sdk: entry archived")
)

// Clock is the monotonic host clock in unix seconds.
type Clock interface {
	Now() uint64
}

// Env is the per-invocation environment.
type Env interface {
	Clock
	// RequireAuth fails with ErrMissingAuth unless addr signed the current invocation.
	RequireAuth(addr Address) error
	// CurrentContract is the custody address of the program.
	CurrentContract() Address
}

// InstanceStorage is the program-lifetime tier. All keys share a single expiry, past it
// every access fails the invocation with ErrArchived.
type InstanceStorage interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Has(key string) bool
	Remove(key string)
	// Extend bumps the shared expiry to now+extendTo when less than threshold seconds remain.
	Extend(threshold, extendTo uint64)
}

// PersistentStorage is the per-entry tier, every key carries its own expiry. Touching an
// expired key fails the invocation with ErrArchived.
type PersistentStorage interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Has(key string) bool
	Remove(key string)
	// Extend bumps the expiry of key to now+extendTo when less than threshold seconds remain.
	// Missing keys are ignored.
	Extend(key string, threshold, extendTo uint64)
}

// TokenClient moves fungible tokens. A failing transfer moves nothing.
type TokenClient interface {
	Transfer(token, from, to Address, amount *uint256.Int) error
	Balance(token, owner Address) *uint256.Int
}

// EventLog is fire-and-forget, events only become visible if the invocation commits.
type EventLog interface {
	Publish(topics []string, data map[string]string)
}

// Archive revives expired entries with their old values. Only restore invocations get one.
type Archive interface {
	// RestoreInstance revives the instance tier, false when it is live or was never written.
	RestoreInstance() bool
	// RestorePersistent revives key, false when it is live or missing.
	RestorePersistent(key string) bool
}

// Host bundles the capabilities handed to the program for one invocation.
type Host struct {
	Env        Env
	Instance   InstanceStorage
	Persistent PersistentStorage
	Tokens     TokenClient
	Events     EventLog
	// Archive is nil outside restore invocations.
	Archive Archive
}
