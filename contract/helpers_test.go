package contract_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pifp_protocol/contract"
	"pifp_protocol/kv"
	"pifp_protocol/ledger"
	"pifp_protocol/sdk"
)

const (
	contractAddr = sdk.Address("contract:pifp")
	usdc         = sdk.Address("contract:usdc")
	xlm          = sdk.Address("contract:xlm")
	superAdmin   = sdk.Address("hive:tibfox")
	admin        = sdk.Address("hive:admin")
	oracle       = sdk.Address("hive:oracle")
	manager      = sdk.Address("hive:manager")
	donator      = sdk.Address("hive:someone")
	outsider     = sdk.Address("hive:outsider")

	startTime uint64 = 1_756_857_600 // 2025-09-03T00:00:00Z
	week      uint64 = 7 * 24 * 60 * 60
)

var defaultProof = crypto.Keccak256Hash([]byte("impact report v1"))

// testEnv bundles everything one test needs.
type testEnv struct {
	t     *testing.T
	c     *contract.Contract
	rt    *ledger.Runtime
	clock *sdk.ManualClock
	store *kv.MemoryStore
}

// setupContractTest spins up a fresh runtime on an in-memory store with the usual cast:
// a super admin, an admin, an oracle and a project manager, plus funded donators.
func setupContractTest(t *testing.T, opts ...ledger.Option) *testEnv {
	t.Helper()
	clock := sdk.NewManualClock(startTime)
	store := kv.NewMemoryStore()
	rt := ledger.New(store, contractAddr, append([]ledger.Option{ledger.WithClock(clock)}, opts...)...)
	env := &testEnv{t: t, c: contract.New(rt, zerolog.Nop()), rt: rt, clock: clock, store: store}

	require.NoError(t, env.c.Init(as(superAdmin), superAdmin))
	require.NoError(t, env.c.GrantRole(as(superAdmin), superAdmin, admin, contract.RoleAdmin))
	require.NoError(t, env.c.SetOracle(as(admin), admin, oracle))
	require.NoError(t, env.c.GrantRole(as(admin), admin, manager, contract.RoleProjectManager))

	for _, who := range []sdk.Address{donator, outsider} {
		require.NoError(t, rt.Mint(context.Background(), usdc, who, uint256.NewInt(200_000)))
		require.NoError(t, rt.Mint(context.Background(), xlm, who, uint256.NewInt(200_000)))
	}
	return env
}

// setupBareTest is a runtime without Init, for bootstrap tests.
func setupBareTest(t *testing.T) *testEnv {
	t.Helper()
	clock := sdk.NewManualClock(startTime)
	store := kv.NewMemoryStore()
	rt := ledger.New(store, contractAddr, ledger.WithClock(clock))
	return &testEnv{t: t, c: contract.New(rt, zerolog.Nop()), rt: rt, clock: clock, store: store}
}

// as signs the invocation by the given addresses.
func as(signers ...sdk.Address) context.Context {
	return sdk.SignedBy(context.Background(), signers...)
}

func amt(v uint64) *uint256.Int { return uint256.NewInt(v) }

// createDefaultProject registers a 1000 usdc project with a one week deadline.
func (e *testEnv) createDefaultProject() uint64 {
	e.t.Helper()
	p, err := e.c.RegisterProject(as(manager), manager, []sdk.Address{usdc}, amt(1000), defaultProof, e.clock.Now()+week)
	require.NoError(e.t, err)
	return p.ID
}

func (e *testEnv) deposit(id uint64, who, token sdk.Address, v uint64) error {
	return e.c.Deposit(as(who), id, who, token, amt(v))
}

func (e *testEnv) verify(id uint64, hash common.Hash) error {
	return e.c.VerifyAndRelease(as(oracle), oracle, id, hash)
}

// events returns every committed event with the given first topic.
func (e *testEnv) events(topic string) []sdk.Event {
	e.t.Helper()
	all, err := e.rt.Events(context.Background(), 1, 10_000)
	require.NoError(e.t, err)
	var out []sdk.Event
	for _, ev := range all {
		if ev.Topic() == topic {
			out = append(out, ev)
		}
	}
	return out
}

// requireCode asserts err carries the protocol code.
func requireCode(t *testing.T, err error, want contract.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	code, ok := contract.CodeOf(err)
	require.Truef(t, ok, "expected protocol error %s, got %v", want, err)
	require.Equalf(t, want, code, "got %v", err)
}
