package sdk

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type AddressDomain string

const (
	AddressDomainUser     AddressDomain = "user"
	AddressDomainContract AddressDomain = "contract"
	AddressDomainSystem   AddressDomain = "system"
)

type AddressType string

const (
	AddressTypeEVM      AddressType = "evm"
	AddressTypeKey      AddressType = "key"
	AddressTypeHive     AddressType = "hive"
	AddressTypeContract AddressType = "contract"
	AddressTypeSystem   AddressType = "system"
	AddressTypeUnknown  AddressType = "unknown"
)

// Address identifies an account, a token contract or the program itself.
type Address string

// AddressFromEVM renders an ethereum address in checksum form so the same key always maps to one Address.
// Example payload: sdk.AddressFromEVM(crypto.PubkeyToAddress(pk))
func AddressFromEVM(a common.Address) Address {
	return Address(a.Hex())
}

// String returns the literal representation (like hive:alice) of the address.
// Example payload: sdk.Address("hive:foo").String()
func (a Address) String() string {
	return string(a)
}

// Domain quickly checks the prefix to guess if we deal with user/contract/system domain.
// Example payload: sdk.Address("contract:pifp").Domain()
func (a Address) Domain() AddressDomain {
	if strings.HasPrefix(a.String(), "system:") {
		return AddressDomainSystem
	}
	if strings.HasPrefix(a.String(), "contract:") {
		return AddressDomainContract
	}
	return AddressDomainUser
}

// Type inspects the prefix to categorize the address (evm, key, hive,...).
// Example payload: sdk.Address("0x52908400098527886E0F7030069857D2E4169EE7").Type()
func (a Address) Type() AddressType {
	s := a.String()
	switch {
	case strings.HasPrefix(s, "0x") && common.IsHexAddress(s):
		return AddressTypeEVM
	case strings.HasPrefix(s, "did:pkh:eip155"):
		return AddressTypeEVM
	case strings.HasPrefix(s, "did:key:"):
		return AddressTypeKey
	case strings.HasPrefix(s, "hive:"):
		return AddressTypeHive
	case strings.HasPrefix(s, "contract:"):
		return AddressTypeContract
	case strings.HasPrefix(s, "system:"):
		return AddressTypeSystem
	default:
		return AddressTypeUnknown
	}
}

// IsValid returns false if the address type detection failed, used as a light sanity check.
// Example payload: sdk.Address("foo").IsValid()
func (a Address) IsValid() bool {
	return a.Type() != AddressTypeUnknown
}

// Normalize lower-cases hive names and checksums evm addresses so map keys and storage keys agree.
func (a Address) Normalize() Address {
	s := strings.TrimSpace(a.String())
	if strings.HasPrefix(s, "0x") && common.IsHexAddress(s) {
		return Address(common.HexToAddress(s).Hex())
	}
	if strings.HasPrefix(s, "hive:") {
		return Address(strings.ToLower(s))
	}
	return Address(s)
}
