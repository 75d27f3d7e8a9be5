package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pifp_protocol/sdk"
)

// TestProjectConfigCodec checks a full config survives and wrong lengths are rejected.
func TestProjectConfigCodec(t *testing.T) {
	cfg := &ProjectConfig{
		ID:             42,
		Creator:        "0x52908400098527886E0F7030069857D2E4169EE7",
		AcceptedTokens: []sdk.Address{"contract:usdc", "contract:xlm"},
		Goal:           MaxGoal(),
		ProofHash:      crypto.Keccak256Hash([]byte("report")),
		Deadline:       1_900_000_000,
	}
	raw := EncodeProjectConfig(cfg)
	got, err := DecodeProjectConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = DecodeProjectConfig(raw[:len(raw)-1])
	assert.Error(t, err)
	_, err = DecodeProjectConfig(append(append([]byte(nil), raw...), 0))
	assert.Error(t, err)
}

// TestProjectStateCodec checks the compact state record.
func TestProjectStateCodec(t *testing.T) {
	st := &ProjectState{Status: StatusCompleted, DonationCount: 70_000}
	raw := EncodeProjectState(st)
	assert.Len(t, raw, 4) // status byte plus a three byte varint
	got, err := DecodeProjectState(raw)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	_, err = DecodeProjectState([]byte{7, 0})
	assert.Error(t, err)
	_, err = DecodeProjectState(nil)
	assert.Error(t, err)
}

// TestAmountCodec checks zero is one byte and lengths past 32 are rejected.
func TestAmountCodec(t *testing.T) {
	assert.Equal(t, []byte{0}, encodeAmount(new(uint256.Int)))
	assert.Equal(t, []byte{2, 0x03, 0xe8}, encodeAmount(uint256.NewInt(1000)))

	v, err := decodeAmount(encodeAmount(MaxBalance()))
	require.NoError(t, err)
	assert.True(t, v.Eq(maxBalance))

	_, err = decodeAmount([]byte{33})
	assert.Error(t, err)
	_, err = decodeAmount([]byte{2, 1})
	assert.True(t, errors.Is(err, errShortRead))
}

// =============================================================================
// Invariants
// =============================================================================

func TestCanTransitionTo(t *testing.T) {
	allowed := map[[2]ProjectStatus]bool{
		{StatusFunding, StatusActive}:    true,
		{StatusFunding, StatusCompleted}: true,
		{StatusFunding, StatusExpired}:   true,
		{StatusActive, StatusCompleted}:  true,
		{StatusActive, StatusExpired}:    true,
	}
	all := []ProjectStatus{StatusFunding, StatusActive, StatusCompleted, StatusExpired}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]ProjectStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestCheckProject(t *testing.T) {
	ok := &Project{ID: 1, Goal: uint256.NewInt(5), Deadline: 10}
	require.NoError(t, CheckProject(ok))

	for name, p := range map[string]*Project{
		"zero goal": {ID: 1, Goal: new(uint256.Int), Deadline: 10},
		"big goal":  {ID: 1, Goal: new(uint256.Int).AddUint64(MaxGoal(), 1), Deadline: 10},
		"deadline":  {ID: 1, Goal: uint256.NewInt(5)},
		"status":    {ID: 1, Goal: uint256.NewInt(5), Deadline: 10, Status: 9},
	} {
		assert.ErrorIs(t, CheckProject(p), ErrInvariant, name)
	}
}

func TestCheckDepositInvariant(t *testing.T) {
	assert.NoError(t, checkDepositInvariant(uint256.NewInt(3), uint256.NewInt(4), uint256.NewInt(7)))
	assert.ErrorIs(t, checkDepositInvariant(uint256.NewInt(3), uint256.NewInt(4), uint256.NewInt(8)), ErrInvariant)
}

func TestCheckSequentialIDs(t *testing.T) {
	assert.NoError(t, CheckSequentialIDs([]*Project{{ID: 0}, {ID: 1}, {ID: 2}}))
	assert.ErrorIs(t, CheckSequentialIDs([]*Project{{ID: 0}, {ID: 2}}), ErrInvariant)
}

func TestCheckImmutable(t *testing.T) {
	base := &Project{ID: 1, Creator: "hive:a", AcceptedTokens: []sdk.Address{"contract:x"}, Goal: uint256.NewInt(5), Deadline: 10}
	same := *base
	same.Status = StatusCompleted
	same.DonationCount = 3
	assert.NoError(t, CheckImmutable(base, &same))

	moved := *base
	moved.AcceptedTokens = []sdk.Address{"contract:y"}
	assert.ErrorIs(t, CheckImmutable(base, &moved), ErrInvariant)
}

// =============================================================================
// Errors
// =============================================================================

func TestErrorMatching(t *testing.T) {
	cause := errors.New("trap")
	err := fmt.Errorf("deposit: %w", errorf(CodeInsufficientBalance, "from %s", "hive:a").WithCause(cause))

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrOverflow)

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeInsufficientBalance, code)
	assert.Equal(t, "InsufficientBalance: from hive:a: trap", errors.Unwrap(err).Error())

	_, ok = CodeOf(cause)
	assert.False(t, ok)
}

// TestErrorCodesStable pins the numeric codes clients depend on.
func TestErrorCodesStable(t *testing.T) {
	assert.Equal(t, ErrorCode(1), CodeProjectNotFound)
	assert.Equal(t, ErrorCode(3), CodeMilestoneAlreadyReleased)
	assert.Equal(t, ErrorCode(6), CodeNotAuthorized)
	assert.Equal(t, ErrorCode(14), CodeProjectExpired)
	assert.Equal(t, ErrorCode(18), CodeOverflow)
	assert.Equal(t, ErrorCode(19), CodeProtocolPaused)
	assert.Equal(t, ErrorCode(20), CodeTokenNotAccepted)
	assert.Equal(t, "ErrorCode(99)", ErrorCode(99).String())
}
