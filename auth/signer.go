// Package auth signs and verifies HTTP request bodies with secp256k1 keys.
// The signer of a body is the ethereum address recovered from the signature.
package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"pifp_protocol/sdk"
)

// SignatureHeader carries the 0x hex signature over keccak256(body).
const SignatureHeader = "X-Pifp-Signature"

var (
	ErrMissingSignature = errors.New("auth: missing signature")
	ErrBadSignature     = errors.New("auth: bad signature")
)

// Signer holds one private key.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr sdk.Address
}

// GenerateKey creates a fresh random key.
func GenerateKey() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return newSigner(key), nil
}

// NewSignerFromHex loads a key, with or without the 0x prefix.
func NewSignerFromHex(s string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	return newSigner(key), nil
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, addr: sdk.AddressFromEVM(crypto.PubkeyToAddress(key.PublicKey))}
}

// Address is the checksummed 0x address of the key.
func (s *Signer) Address() sdk.Address { return s.addr }

// PrivateKeyHex returns the raw key as hex without prefix.
func (s *Signer) PrivateKeyHex() string { return fmt.Sprintf("%x", crypto.FromECDSA(s.key)) }

// PublicKeyHex returns the compressed public key.
func (s *Signer) PublicKeyHex() string { return fmt.Sprintf("%x", crypto.CompressPubkey(&s.key.PublicKey)) }

// Sign returns the header value for body.
func (s *Signer) Sign(body []byte) (string, error) {
	sig, err := crypto.Sign(Digest(body), s.key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// Digest is what gets signed.
func Digest(body []byte) []byte { return crypto.Keccak256(body) }

// Recover returns the address that signed body. Both the 0/1 and the 27/28 recovery ids are accepted.
func Recover(body []byte, signature string) (sdk.Address, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return "", ErrMissingSignature
	}
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: want %d bytes, got %d", ErrBadSignature, crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(Digest(body), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return sdk.AddressFromEVM(crypto.PubkeyToAddress(*pub)), nil
}
