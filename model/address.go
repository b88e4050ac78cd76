package model

import (
	"encoding/hex"

	"github.com/arcsign/walletcore/corechain"
)

// AddressKind discriminates the Address tagged union.
type AddressKind int

const (
	AddressUTXO AddressKind = iota
	AddressETH
	AddressGeneric
)

// Address is a tagged variant over the three supported chain families.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Address struct {
	Kind AddressKind

	// UTXO payload.
	UTXOEncoded    string
	IsBitcoinCash  bool

	// ETH payload (20 bytes).
	ETHBytes [20]byte

	// Generic payload.
	GenericChainType corechain.ChainType
	GenericBytes     []byte
}

// NewUTXOAddress constructs a UTXO-family address.
func NewUTXOAddress(encoded string, isBCH bool) *Address {
	return &Address{Kind: AddressUTXO, UTXOEncoded: encoded, IsBitcoinCash: isBCH}
}

// NewETHAddress constructs an Ethereum-family address from 20 raw bytes.
func NewETHAddress(b [20]byte) *Address {
	return &Address{Kind: AddressETH, ETHBytes: b}
}

// NewGenericAddress constructs a generic-family address: a chain-type tag
// plus opaque, chain-defined bytes.
func NewGenericAddress(chainType corechain.ChainType, raw []byte) *Address {
	return &Address{Kind: AddressGeneric, GenericChainType: chainType, GenericBytes: append([]byte(nil), raw...)}
}

// String renders the address. UTXO and generic addresses carry their own
// chain-defined string form; ETH is hex-encoded with 0x prefix.
func (a *Address) String() string {
	switch a.Kind {
	case AddressUTXO:
		return a.UTXOEncoded
	case AddressETH:
		return "0x" + hex.EncodeToString(a.ETHBytes[:])
	case AddressGeneric:
		return string(a.GenericBytes)
	default:
		return ""
	}
}

// Equal reports whether a and other denote the same address. Cross-kind
// comparisons are always unequal.
func (a *Address) Equal(other *Address) bool {
	if a.Kind != other.Kind {
		return false
	}
	switch a.Kind {
	case AddressUTXO:
		return a.UTXOEncoded == other.UTXOEncoded
	case AddressETH:
		return a.ETHBytes == other.ETHBytes
	case AddressGeneric:
		if a.GenericChainType != other.GenericChainType || len(a.GenericBytes) != len(other.GenericBytes) {
			return false
		}
		for i := range a.GenericBytes {
			if a.GenericBytes[i] != other.GenericBytes[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
