package utxo

import (
	"github.com/arcsign/walletcore/corechain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip32"
)

func coinType(params *chaincfg.Params) uint32 {
	if params == &chaincfg.TestNet3Params || params == &chaincfg.RegressionNetParams {
		return 1
	}
	return 0
}

// deriveMasterPublicKey derives m/44'/coinType'/0' from seed, keeping only
// the neutered (public) extended key, matching the account package's
// "account-level MPK only" rule for UTXO chains.
func deriveMasterPublicKey(seed []byte, coin uint32) (*corechain.MasterPublicKey, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 master key derivation failed", err)
	}
	purpose, err := master.NewChildKey(bip32.FirstHardenedChild + 44)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 purpose derivation failed", err)
	}
	coinKey, err := purpose.NewChildKey(bip32.FirstHardenedChild + coin)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 coin-type derivation failed", err)
	}
	acct, err := coinKey.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 account derivation failed", err)
	}
	var chainCode [32]byte
	copy(chainCode[:], acct.ChainCode)
	var pub [33]byte
	copy(pub[:], acct.PublicKey().Key)
	return &corechain.MasterPublicKey{
		Fingerprint: bytes4ToUint32(acct.FingerPrint),
		ChainCode:   chainCode,
		PublicKey:   pub,
		Depth:       uint8(acct.Depth),
		ChildNumber: bytes4ToUint32(acct.ChildNumber),
	}, nil
}

func deserializeMasterPublicKey(data []byte) (*corechain.MasterPublicKey, error) {
	key, err := bip32.Deserialize(data)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "malformed extended public key", err)
	}
	var chainCode [32]byte
	copy(chainCode[:], key.ChainCode)
	var pub [33]byte
	copy(pub[:], key.Key)
	return &corechain.MasterPublicKey{
		Fingerprint: bytes4ToUint32(key.FingerPrint),
		ChainCode:   chainCode,
		PublicKey:   pub,
		Depth:       uint8(key.Depth),
		ChildNumber: bytes4ToUint32(key.ChildNumber),
	}, nil
}

func bytes4ToUint32(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// deriveReceiveAddress derives m/change/index below mpk and encodes it
// as a native SegWit (P2WPKH) address, or legacy P2PKH when legacy is
// true (used for the rare counterparty that cannot parse bech32 yet).
func deriveReceiveAddress(mpk *corechain.MasterPublicKey, params *chaincfg.Params, index uint32, legacy bool) (string, error) {
	pub, err := childPublicKey(mpk, 0, index)
	if err != nil {
		return "", err
	}
	hash160 := btcutil.Hash160(pub.SerializeCompressed())
	if legacy {
		addr, err := btcutil.NewAddressPubKeyHash(hash160, params)
		if err != nil {
			return "", corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "legacy address encoding failed", err)
		}
		return addr.EncodeAddress(), nil
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash160, params)
	if err != nil {
		return "", corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "segwit address encoding failed", err)
	}
	return addr.EncodeAddress(), nil
}

// childPublicKey derives m/change/index below the account-level MPK
// without ever touching a private scalar, since a UTXO account record
// only ever carries the public extended key.
func childPublicKey(mpk *corechain.MasterPublicKey, change, index uint32) (*btcec.PublicKey, error) {
	extKey := &bip32.Key{
		Key:         mpk.PublicKey[:],
		ChainCode:   mpk.ChainCode[:],
		Depth:       byte(mpk.Depth),
		ChildNumber: toBytes4(mpk.ChildNumber),
		FingerPrint: toBytes4(mpk.Fingerprint),
		IsPrivate:   false,
	}
	changeKey, err := extKey.NewChildKey(change)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "change-branch derivation failed", err)
	}
	indexKey, err := changeKey.NewChildKey(index)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "index derivation failed", err)
	}
	return btcec.ParsePubKey(indexKey.Key)
}

func toBytes4(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
