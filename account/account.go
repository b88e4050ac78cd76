// Package account implements multi-chain key custody: deterministic
// derivation from a BIP-39 seed phrase, and versioned serialization with a
// Fletcher-16 checksum.
package account

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/arcsign/walletcore/corechain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// CurrentVersion is the only version this implementation will deserialize.
// A mismatch is never an error the embedder should surface to the user —
// it is a signal to rebuild the account from the phrase.
const CurrentVersion uint16 = 2

// EthereumAccount holds Ethereum's private/public key pair, primary
// address, and nonce counter.
type EthereumAccount struct {
	Private *ecdsa.PrivateKey
	Public  *ecdsa.PublicKey
	Address [20]byte
	Nonce   uint64 // mutable; nothing in this module advances it
}

// GenericRecord holds whatever a generic chain handler's Account.ToSerialization
// produced, keyed by the chain-type tag that owns it.
type GenericRecord struct {
	ChainType corechain.ChainType
	Payload   []byte
}

// Account is long-lived and immutable after construction (its Ethereum
// nonce counter is the sole exception; access to it is not synchronized).
type Account struct {
	UTXOMasterPublicKey *corechain.MasterPublicKey
	Ethereum            *EthereumAccount
	Generic             []GenericRecord

	Timestamp time.Time
	UIDS      string
}

// DeriveSeed derives a 512-bit seed from a BIP-39 mnemonic phrase. No
// passphrase is applied, matching the single-factor mnemonic model named
// in the specification.
func DeriveSeed(phrase string) []byte {
	return bip39.NewSeed(phrase, "")
}

// GeneratePaperKey draws 128 random bits from crypto/rand (the platform
// source; crypto/rand itself falls back to getrandom(2)/urandom on
// failure of the primary OS entropy call, which is the documented
// fallback) and BIP-39 encodes them against wordlist. wordlist must
// already be installed via bip39.SetWordList before calling this for a
// non-English language.
func GeneratePaperKey() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", corechain.NewNonRetryableError(corechain.ErrCodeSeedRequired, "failed to generate entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", corechain.NewNonRetryableError(corechain.ErrCodeSeedRequired, "failed to encode mnemonic", err)
	}
	return mnemonic, nil
}

// ValidatePaperKey checks the BIP-39 checksum of phrase.
func ValidatePaperKey(phrase string) bool {
	return bip39.IsMnemonicValid(phrase)
}

// Create installs handlers (via corechain.DefaultRegistry, idempotent),
// derives the seed, then for every chain family with an installed handler
// constructs its account record. UTXO keeps only the BIP-32 master public
// key (never the private key); Ethereum keeps both; generic chains hold
// whatever their handler returns.
func Create(phrase string, timestamp time.Time, uids string, genericChainTypes []corechain.ChainType) (*Account, error) {
	if !ValidatePaperKey(phrase) {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "invalid paper key", nil)
	}
	seed := DeriveSeed(phrase)
	defer zeroize(seed)

	mpk, err := deriveUTXOMasterPublicKey(seed)
	if err != nil {
		return nil, err
	}

	eth, err := deriveEthereumAccount(seed)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		UTXOMasterPublicKey: mpk,
		Ethereum:            eth,
		Timestamp:           timestamp,
		UIDS:                uids,
	}

	registry := corechain.DefaultRegistry()
	for _, ct := range genericChainTypes {
		h, err := registry.Lookup(ct)
		if err != nil {
			return nil, err
		}
		record, err := h.Account.FromSeed(seed)
		if err != nil {
			return nil, err
		}
		acct.Generic = append(acct.Generic, GenericRecord{
			ChainType: ct,
			Payload:   h.Account.ToSerialization(record),
		})
	}
	return acct, nil
}

// deriveUTXOMasterPublicKey derives m/44'/0'/0' (BIP-44 account level) and
// keeps only the neutered (public-only) extended key.
func deriveUTXOMasterPublicKey(seed []byte) (*corechain.MasterPublicKey, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 master key derivation failed", err)
	}
	purpose, err := master.NewChildKey(bip32.FirstHardenedChild + 44)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 purpose derivation failed", err)
	}
	coinType, err := purpose.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 coin-type derivation failed", err)
	}
	accountKey, err := coinType.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 account derivation failed", err)
	}
	pub := accountKey.PublicKey()

	mpk := &corechain.MasterPublicKey{
		Fingerprint: uint32(pub.FingerPrint[0])<<24 | uint32(pub.FingerPrint[1])<<16 | uint32(pub.FingerPrint[2])<<8 | uint32(pub.FingerPrint[3]),
		Depth:       pub.Depth,
		ChildNumber: uint32(pub.ChildNumber[0])<<24 | uint32(pub.ChildNumber[1])<<16 | uint32(pub.ChildNumber[2])<<8 | uint32(pub.ChildNumber[3]),
	}
	copy(mpk.ChainCode[:], pub.ChainCode)
	copy(mpk.PublicKey[:], pub.Key)
	return mpk, nil
}

// deriveEthereumAccount derives m/44'/60'/0'/0/0, the conventional
// single-address Ethereum path.
func deriveEthereumAccount(seed []byte) (*EthereumAccount, error) {
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
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	var addrBytes [20]byte
	copy(addrBytes[:], addr.Bytes())
	return &EthereumAccount{
		Private: priv,
		Public:  &priv.PublicKey,
		Address: addrBytes,
	}, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// SerializationIdentifier is the first 32 hex characters of double-SHA256
// over the UTXO master public key's standard serialization — a stable
// on-disk folder name independent of the account's mutable timestamp/uids.
func (a *Account) SerializationIdentifier() string {
	ser := a.UTXOMasterPublicKey.Serialize()
	h := corechain.HashOf(ser)
	return hex.EncodeToString(h[:16])
}

// String is a human-debug summary, never logged with key material.
func (a *Account) String() string {
	return fmt.Sprintf("Account{uids=%q, eth=0x%x}", a.UIDS, a.Ethereum.Address)
}
