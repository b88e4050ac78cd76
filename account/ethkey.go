package account

import (
	"crypto/ecdsa"

	"github.com/arcsign/walletcore/corechain"
	"github.com/ethereum/go-ethereum/crypto"
)

// uncompressedPublicKey encodes pub as the 65-byte uncompressed SEC1 form
// (0x04 || X || Y), the form the account serialization layout mandates.
func uncompressedPublicKey(pub *ecdsa.PublicKey) []byte {
	return crypto.FromECDSAPub(pub)
}

// uncompressedToPublicKey parses the 65-byte uncompressed SEC1 form back
// into an *ecdsa.PublicKey. Recreating an Account from the uncompressed
// public key must yield the identical primary address.
func uncompressedToPublicKey(b []byte) (*ecdsa.PublicKey, error) {
	pub, err := crypto.UnmarshalPubkey(b)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "malformed ethereum uncompressed public key", err)
	}
	return pub, nil
}

// ethAddressFromPublicKey derives the 20-byte Ethereum address from a
// public key (Keccak256(pub.X||pub.Y)[12:]).
func ethAddressFromPublicKey(pub *ecdsa.PublicKey) []byte {
	return crypto.PubkeyToAddress(*pub).Bytes()
}

// FromPublicKey reconstructs a watch-only Account from the account's
// uncompressed Ethereum public key and UTXO master public key bytes,
// without any private material — the handler-registry-level analogue of
// Account.Account.FromPublicKey for the two built-in chain families.
func FromPublicKey(ethPubUncompressed []byte, utxoMPKBytes []byte, uids string) (*Account, error) {
	ethPub, err := uncompressedToPublicKey(ethPubUncompressed)
	if err != nil {
		return nil, err
	}
	mpk, err := deserializeMasterPublicKey(utxoMPKBytes)
	if err != nil {
		return nil, err
	}
	var addr [20]byte
	copy(addr[:], ethAddressFromPublicKey(ethPub))
	return &Account{
		UTXOMasterPublicKey: mpk,
		Ethereum:            &EthereumAccount{Public: ethPub, Address: addr},
		UIDS:                uids,
	}, nil
}
