package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"pifp_protocol/contract"
	"pifp_protocol/sdk"
)

// signed bodies, every one carries the signer nonce

type signedRequest interface {
	nonce() uint64
}

type nonceRequest struct {
	Nonce uint64 `json:"nonce"`
}

func (r *nonceRequest) nonce() uint64 { return r.Nonce }

type grantRequest struct {
	Target string `json:"target"`
	Role   string `json:"role"`
	Nonce  uint64 `json:"nonce"`
}

func (r *grantRequest) nonce() uint64 { return r.Nonce }

type revokeRequest struct {
	Target string `json:"target"`
	Nonce  uint64 `json:"nonce"`
}

func (r *revokeRequest) nonce() uint64 { return r.Nonce }

type transferRequest struct {
	NewSuperAdmin string `json:"new_super_admin"`
	Nonce         uint64 `json:"nonce"`
}

func (r *transferRequest) nonce() uint64 { return r.Nonce }

type oracleRequest struct {
	Oracle string `json:"oracle"`
	Nonce  uint64 `json:"nonce"`
}

func (r *oracleRequest) nonce() uint64 { return r.Nonce }

type registerRequest struct {
	AcceptedTokens []string `json:"accepted_tokens"`
	Goal           string   `json:"goal"`
	ProofHash      string   `json:"proof_hash"`
	Deadline       uint64   `json:"deadline"`
	Nonce          uint64   `json:"nonce"`
}

func (r *registerRequest) nonce() uint64 { return r.Nonce }

type depositRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
	Nonce  uint64 `json:"nonce"`
}

func (r *depositRequest) nonce() uint64 { return r.Nonce }

type verifyRequest struct {
	ProofHash string `json:"proof_hash"`
	Nonce     uint64 `json:"nonce"`
}

func (r *verifyRequest) nonce() uint64 { return r.Nonce }

// restore is unsigned, it only revives archived entries with their old values
type restoreRequest struct {
	ProjectIDs []uint64 `json:"project_ids"`
	Accounts   []string `json:"accounts"`
}

// faucet is unsigned and only mounted on dev nodes
type faucetRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type projectResponse struct {
	ID             uint64   `json:"id"`
	Creator        string   `json:"creator"`
	AcceptedTokens []string `json:"accepted_tokens"`
	Goal           string   `json:"goal"`
	ProofHash      string   `json:"proof_hash"`
	Deadline       uint64   `json:"deadline"`
	Status         string   `json:"status"`
	DonationCount  uint32   `json:"donation_count"`
}

func newProjectResponse(p *contract.Project) projectResponse {
	tokens := make([]string, len(p.AcceptedTokens))
	for i, t := range p.AcceptedTokens {
		tokens[i] = t.String()
	}
	return projectResponse{
		ID:             p.ID,
		Creator:        p.Creator.String(),
		AcceptedTokens: tokens,
		Goal:           p.Goal.Dec(),
		ProofHash:      p.ProofHash.Hex(),
		Deadline:       p.Deadline,
		Status:         p.Status.String(),
		DonationCount:  p.DonationCount,
	}
}

type tokenBalance struct {
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type balancesResponse struct {
	ProjectID uint64         `json:"project_id"`
	Balances  []tokenBalance `json:"balances"`
}

func newBalancesResponse(b *contract.ProjectBalances) balancesResponse {
	out := balancesResponse{ProjectID: b.ProjectID, Balances: make([]tokenBalance, len(b.Balances))}
	for i, tb := range b.Balances {
		out.Balances[i] = tokenBalance{Token: tb.Token.String(), Balance: tb.Balance.Dec()}
	}
	return out
}

type roleResponse struct {
	Address string  `json:"address"`
	Role    *string `json:"role"`
}

// parseAmount accepts decimal strings only, json numbers lose precision past 2^53.
func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

func parseHash(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("proof_hash: %w", err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("proof_hash must be %d bytes, got %d", common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

func parseAddress(field, s string) (sdk.Address, error) {
	a := sdk.Address(s).Normalize()
	if !a.IsValid() {
		return "", fmt.Errorf("%s: %q is not a valid address", field, s)
	}
	return a, nil
}
