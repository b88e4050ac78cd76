package manager

import (
	"github.com/arcsign/walletcore/corechain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
)

// deriveETHSigningKey re-derives m/44'/60'/0'/0/0 from seed, matching
// account.deriveEthereumAccount's path so the signing key always matches
// the account's own primary Ethereum address.
func deriveETHSigningKey(seed []byte) (*corechain.Key, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 master key derivation failed", err)
	}
	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 60,
		bip32.FirstHardenedChild + 0,
		0,
		0,
	}
	key := master
	for _, idx := range path {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 ethereum derivation failed", err)
		}
	}
	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "invalid ethereum private scalar", err)
	}
	return corechain.NewKeyFromPrivate(priv), nil
}

// deriveUTXOSigningKey derives m/44'/0'/0'/0/0, the conventional
// single-address UTXO receive path, for signing a specific input.
func deriveUTXOSigningKey(seed []byte) (*corechain.Key, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 master key derivation failed", err)
	}
	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 0,
		bip32.FirstHardenedChild + 0,
		0,
		0,
	}
	key := master
	for _, idx := range path {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 utxo derivation failed", err)
		}
	}
	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "invalid utxo private scalar", err)
	}
	return corechain.NewKeyFromPrivate(priv), nil
}
