package corechain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// HashSize is the byte length of a Hash.
const HashSize = 32

// Hash is an opaque 256-bit identifier for transactions, blocks and logs.
// It is comparable and usable as a map key, which doubles as its
// lookup-hash function.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. It is an error if b is not exactly
// HashSize bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, NewNonRetryableError(ErrCodeInvalidTransaction,
			fmt.Sprintf("hash must be %d bytes, got %d", HashSize, len(b)), nil)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded (optionally 0x-prefixed) hash string.
func HashFromHex(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, NewNonRetryableError(ErrCodeInvalidTransaction, "malformed hash hex", err)
	}
	return HashFromBytes(b)
}

// Bytes returns a copy of the underlying 32 bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// String returns the 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero sentinel (used for "not yet
// assigned" transfer hashes prior to signing).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashOf computes the double-SHA256 hash used throughout the core wherever
// a chain-agnostic content hash is needed (account identifiers, generic
// transfer dedup keys).
func HashOf(data []byte) Hash {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return Hash(second)
}

// Key is an elliptic-curve key pair. It may hold only a public key, in
// which case Sign returns an error. Private key material, when present,
// must be wiped via Zeroize once no longer needed.
type Key struct {
	private *ecdsa.PrivateKey
	public  *ecdsa.PublicKey
}

// NewKeyFromPrivate builds a Key holding both private and public material.
func NewKeyFromPrivate(priv *ecdsa.PrivateKey) *Key {
	return &Key{private: priv, public: &priv.PublicKey}
}

// NewKeyFromPublic builds a public-only Key. Sign will fail on it.
func NewKeyFromPublic(pub *ecdsa.PublicKey) *Key {
	return &Key{public: pub}
}

// HasSecret reports whether this Key carries private material.
func (k *Key) HasSecret() bool {
	return k != nil && k.private != nil
}

// PublicKey returns the public half of the key pair.
func (k *Key) PublicKey() *ecdsa.PublicKey {
	return k.public
}

// PrivateKey returns the private key, or nil if this Key is public-only.
func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.private
}

// CompressedPublicKey returns the SEC1-compressed encoding of the public key.
func (k *Key) CompressedPublicKey() []byte {
	uncompressed := elliptic.Marshal(k.public.Curve, k.public.X, k.public.Y)
	pub, err := btcec.ParsePubKey(uncompressed)
	if err != nil {
		return nil
	}
	return pub.SerializeCompressed()
}

// Zeroize wipes the private scalar in place. Called on every exit path
// (including error paths) of any operation that derived a Key from a
// mnemonic seed.
func (k *Key) Zeroize() {
	if k == nil || k.private == nil {
		return
	}
	b := k.private.D.Bits()
	for i := range b {
		b[i] = 0
	}
	k.private = nil
}

// MasterPublicKey is a BIP-32 serializable public-key + chain-code tuple
// permitting hardened-free public derivation of descendant addresses
// without private material. It corresponds to the UTXO account's MPK.
type MasterPublicKey struct {
	Fingerprint      uint32
	ChainCode        [32]byte
	PublicKey        [33]byte // compressed
	Depth            uint8
	ChildNumber      uint32
}

// Serialize produces the BIP-32 extended-key byte layout understood by
// tyler-smith/go-bip32 (version bytes are supplied by the caller per
// network, since MasterPublicKey itself is network-agnostic).
func (m *MasterPublicKey) Serialize() []byte {
	buf := make([]byte, 0, 78)
	buf = append(buf, byte(m.Depth))
	var fp [4]byte
	fp[0] = byte(m.Fingerprint >> 24)
	fp[1] = byte(m.Fingerprint >> 16)
	fp[2] = byte(m.Fingerprint >> 8)
	fp[3] = byte(m.Fingerprint)
	buf = append(buf, fp[:]...)
	var cn [4]byte
	cn[0] = byte(m.ChildNumber >> 24)
	cn[1] = byte(m.ChildNumber >> 16)
	cn[2] = byte(m.ChildNumber >> 8)
	cn[3] = byte(m.ChildNumber)
	buf = append(buf, cn[:]...)
	buf = append(buf, m.ChainCode[:]...)
	buf = append(buf, m.PublicKey[:]...)
	return buf
}
