package generic

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"
	"sync"

	"github.com/arcsign/walletcore/account"
	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/holiman/uint256"
	"github.com/tyler-smith/go-bip32"
)

// newUint256FromBig converts a drops-denominated big.Int fee into the
// uint256 magnitude model.FeeBasis/Amount store, mirroring the eth
// package's equivalent helper for its wei-denominated fees.
func newUint256FromBig(v *big.Int) (*uint256.Int, error) {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("generic: value %s overflows uint256", v.String())
	}
	return u, nil
}

// xrpDerivationPath is m/44'/144'/0'/0/0, the SLIP-44 Ripple single-address
// path (coin type 144, per CoinMetadata in registry.go).
var xrpDerivationPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 144,
	bip32.FirstHardenedChild + 0,
	0,
	0,
}

// xrpAlphabet is Ripple's own base58 alphabet, a reordering of Bitcoin's
// that avoids the same ambiguous-glyph set; btcutil's base58 codec is
// fixed to Bitcoin's alphabet and offers no substitution hook, so the
// encode/decode here is hand-rolled against Ripple's table directly (no
// pack dependency implements a configurable-alphabet base58; see
// DESIGN.md).
const xrpAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

func xrpBase58Encode(b []byte) string {
	zero := xrpAlphabet[0]
	x := new(big.Int).SetBytes(b)
	mod := big.NewInt(58)
	var out []byte
	for x.Sign() > 0 {
		var r big.Int
		x.DivMod(x, mod, &r)
		out = append(out, xrpAlphabet[r.Int64()])
	}
	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, zero)
	}
	// reverse
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func xrpBase58CheckEncode(version byte, payload []byte) string {
	body := append([]byte{version}, payload...)
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	full := append(body, second[:4]...)
	return xrpBase58Encode(full)
}

// xrpAccountRecord is the generic handler's per-account payload: the
// compressed secp256k1 public key, stored verbatim in the account's
// account.GenericRecord so FromPublicKey/ToSerialization round-trip.
type xrpAccountRecord struct {
	Public  []byte // 33-byte compressed SEC1
	Address string // "r..." classic address
}

func xrpAddressFromPublicKey(compressed []byte) string {
	hash160 := btcutil.Hash160(compressed)
	return xrpBase58CheckEncode(0x00, hash160)
}

func xrpAccountFromSeed(seed []byte) (interface{}, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 master key derivation failed", err)
	}
	key := master
	for _, idx := range xrpDerivationPath {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 xrp derivation failed", err)
		}
	}
	priv, _ := btcec.PrivKeyFromBytes(key.Key)
	compressed := priv.PubKey().SerializeCompressed()
	return &xrpAccountRecord{Public: compressed, Address: xrpAddressFromPublicKey(compressed)}, nil
}

func xrpAccountFromPublicKey(pub []byte) (interface{}, error) {
	if len(pub) != 33 {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "xrp public key must be 33 bytes compressed", nil)
	}
	if _, err := btcec.ParsePubKey(pub); err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "malformed xrp compressed public key", err)
	}
	return &xrpAccountRecord{Public: pub, Address: xrpAddressFromPublicKey(pub)}, nil
}

// xrpSubWallet is the XRP sub-wallet's mutable state: classic address,
// account sequence number (XRP's analog of a nonce), and drops balance.
type xrpSubWallet struct {
	mu sync.Mutex

	address  string
	sequence uint32
	balance  *big.Int // drops
	key      []byte   // compressed public key from the account record

	defaultFee *model.FeeBasis
}

// xrpTransfer is a simplified XRP Payment transaction: source/destination
// classic addresses, a drops amount, a drops fee, the account sequence it
// was built against, and once signed, the detached ECDSA signature over a
// SHA-512-half digest of a canonical field encoding. This is not XRPL's
// exact field-ID wire serialization; it is this build's own deterministic
// encoding, sufficient for the hash/signature contract the rest of the
// core relies on (Sign, Hash, Sources, Targets, Amount, Fee).
type xrpTransfer struct {
	source      string
	destination string
	amount      *big.Int // drops
	fee         *big.Int // drops
	sequence    uint32

	signature []byte
	publicKey []byte
	hash      corechain.Hash
}

// xrpSigningPayload deterministically encodes the fields XRPL's own
// Payment transaction signs over, in a fixed field order.
func xrpSigningPayload(t *xrpTransfer) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, []byte(t.source)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(t.destination)...)
	buf = append(buf, 0)
	buf = append(buf, t.amount.Bytes()...)
	buf = append(buf, 0)
	buf = append(buf, t.fee.Bytes()...)
	buf = append(buf, 0)
	var seq [4]byte
	seq[0] = byte(t.sequence >> 24)
	seq[1] = byte(t.sequence >> 16)
	seq[2] = byte(t.sequence >> 8)
	seq[3] = byte(t.sequence)
	buf = append(buf, seq[:]...)
	return buf
}

// xrpTxnSigningPrefix is the 4-byte signing-namespace code XRPL prefixes
// to a transaction's payload before hashing ("STX\0").
var xrpTxnSigningPrefix = [4]byte{0x53, 0x54, 0x58, 0x00}

// xrpSigningHash is XRPL's sha512Half convention: the first 32 bytes of a
// SHA-512 digest over the prefixed signing payload.
func xrpSigningHash(t *xrpTransfer) corechain.Hash {
	payload := append(append([]byte{}, xrpTxnSigningPrefix[:]...), xrpSigningPayload(t)...)
	digest := sha512.Sum512(payload)
	var h corechain.Hash
	copy(h[:], digest[:32])
	return h
}

type xrpHandler struct {
	chainType corechain.ChainType
}

func xrpHandlers(m CoinMetadata) *corechain.Handlers {
	h := &xrpHandler{chainType: m.ChainType()}
	return &corechain.Handlers{
		Type:   m.ChainType(),
		Family: corechain.FamilyGeneric,
		Account: corechain.AccountHandlers{
			FromSeed:          func(seed []byte) (interface{}, error) { return xrpAccountFromSeed(seed) },
			FromPublicKey:     func(pub []byte) (interface{}, error) { return xrpAccountFromPublicKey(pub) },
			FromSerialization: func(data []byte) (interface{}, error) { return xrpAccountFromPublicKey(data) },
			ToSerialization:   func(record interface{}) []byte { return record.(*xrpAccountRecord).Public },
			Address:           h.accountAddress,
		},
		Address: corechain.AddressHandlers{
			String: h.addressString,
			Equal:  h.addressEqual,
		},
		Transfer: corechain.TransferHandlers{
			Build:   h.transferBuild,
			Sign:    h.transferSign,
			Sources: h.transferSources,
			Targets: h.transferTargets,
			Amount:  h.transferAmount,
			Fee:     h.transferFee,
			Hash:    h.transferHash,
		},
		Wallet: corechain.WalletHandlers{
			Create:             h.walletCreate,
			Balance:            h.walletBalance,
			GetAddress:         h.walletGetAddress,
			SetDefaultFeeBasis: h.walletSetDefaultFeeBasis,
			EstimateFee:        h.walletEstimateFee,
		},
		Manager: corechain.ManagerHandlers{
			RecoverTransfer: h.recoverTransfer,
		},
	}
}

func (h *xrpHandler) accountAddress(record interface{}) (corechain.ChainAddress, error) {
	r := record.(*xrpAccountRecord)
	return model.NewGenericAddress(h.chainType, []byte(r.Address)), nil
}

func (h *xrpHandler) addressString(addr corechain.ChainAddress) string {
	return string(addr.(*model.Address).GenericBytes)
}

func (h *xrpHandler) addressEqual(a, b corechain.ChainAddress) bool {
	return a.(*model.Address).Equal(b.(*model.Address))
}

// walletCreate looks up this chain's GenericRecord out of the account's
// Generic slice (populated at account.Create time, one record per
// corechain.DefaultRegistry() generic chain type the account was created
// for) and rebuilds the xrpSubWallet from its stored compressed public key.
func (h *xrpHandler) walletCreate(acc interface{}) (interface{}, error) {
	a, ok := acc.(*account.Account)
	if !ok {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "not an account.Account", nil)
	}
	for _, rec := range a.Generic {
		if rec.ChainType != h.chainType {
			continue
		}
		parsed, err := xrpAccountFromPublicKey(rec.Payload)
		if err != nil {
			return nil, err
		}
		r := parsed.(*xrpAccountRecord)
		return &xrpSubWallet{address: r.Address, key: r.Public, balance: big.NewInt(0)}, nil
	}
	return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt,
		"account has no generic record for "+string(h.chainType), nil)
}

func (h *xrpHandler) walletBalance(sw interface{}) (*big.Int, error) {
	w := sw.(*xrpSubWallet)
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.balance), nil
}

func (h *xrpHandler) walletGetAddress(sw interface{}, scheme corechain.AddressScheme) (corechain.ChainAddress, error) {
	if scheme != corechain.SchemeGenDefault {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidAddress,
			"address scheme is not the generic default", nil)
	}
	w := sw.(*xrpSubWallet)
	return model.NewGenericAddress(h.chainType, []byte(w.address)), nil
}

func (h *xrpHandler) walletSetDefaultFeeBasis(sw interface{}, basis corechain.ChainFeeBasis) error {
	w := sw.(*xrpSubWallet)
	fb, ok := basis.(*model.FeeBasis)
	if !ok || fb.Kind != model.FeeBasisGeneric {
		return corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "fee basis is not generic-shaped", nil)
	}
	w.mu.Lock()
	w.defaultFee = fb
	w.mu.Unlock()
	return nil
}

// walletEstimateFee prices every XRP Payment at its own fixed server-quoted
// cost factor of 1 (drops-per-transaction, not per-byte), matching XRPL's
// flat base-fee model.
func (h *xrpHandler) walletEstimateFee(sw interface{}, target corechain.ChainAddress, amount *big.Int) (corechain.ChainFeeBasis, error) {
	w := sw.(*xrpSubWallet)
	w.mu.Lock()
	defaultFee := w.defaultFee
	w.mu.Unlock()
	if defaultFee == nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete, "no fee quote known; sync has not run yet", nil)
	}
	return model.NewGenericFeeBasis(defaultFee.PricePerCostFactor, 1.0, defaultFee.Unit), nil
}

func (h *xrpHandler) transferBuild(sw interface{}, target corechain.ChainAddress, amount *big.Int, feeBasis corechain.ChainFeeBasis) (corechain.ChainTransfer, error) {
	w := sw.(*xrpSubWallet)
	targetAddr, ok := target.(*model.Address)
	if !ok || targetAddr.Kind != model.AddressGeneric {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "target is not a generic address", nil)
	}
	fb, ok := feeBasis.(*model.FeeBasis)
	if !ok || fb.Kind != model.FeeBasisGeneric {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "fee basis is not generic-shaped", nil)
	}

	w.mu.Lock()
	source, sequence := w.address, w.sequence
	w.mu.Unlock()

	fee := fb.Fee()
	return &xrpTransfer{
		source:      source,
		destination: string(targetAddr.GenericBytes),
		amount:      new(big.Int).Set(amount),
		fee:         fee.Magnitude.ToBig(),
		sequence:    sequence,
	}, nil
}

func (h *xrpHandler) transferSign(transfer corechain.ChainTransfer, key *corechain.Key) error {
	t := transfer.(*xrpTransfer)
	if !key.HasSecret() {
		return corechain.NewNonRetryableError(corechain.ErrCodeSeedRequired, "signing key has no private material", nil)
	}
	priv, _ := btcec.PrivKeyFromBytes(key.PrivateKey().D.Bytes())
	t.hash = xrpSigningHash(t)
	sig := ecdsa.Sign(priv, t.hash[:])
	t.signature = sig.Serialize()
	t.publicKey = priv.PubKey().SerializeCompressed()
	return nil
}

func (h *xrpHandler) transferSources(transfer corechain.ChainTransfer) []corechain.ChainAddress {
	t := transfer.(*xrpTransfer)
	return []corechain.ChainAddress{model.NewGenericAddress(h.chainType, []byte(t.source))}
}

func (h *xrpHandler) transferTargets(transfer corechain.ChainTransfer) []corechain.ChainAddress {
	t := transfer.(*xrpTransfer)
	return []corechain.ChainAddress{model.NewGenericAddress(h.chainType, []byte(t.destination))}
}

func (h *xrpHandler) transferAmount(transfer corechain.ChainTransfer) *big.Int {
	return transfer.(*xrpTransfer).amount
}

func (h *xrpHandler) transferFee(transfer corechain.ChainTransfer) corechain.ChainFeeBasis {
	t := transfer.(*xrpTransfer)
	mag, _ := newUint256FromBig(t.fee)
	return model.NewGenericFeeBasis(mag, 1.0, nil)
}

func (h *xrpHandler) transferHash(transfer corechain.ChainTransfer) corechain.Hash {
	return transfer.(*xrpTransfer).hash
}

// recoverTransfer builds an xrpTransfer from the raw JSON-shaped fields
// the generic sub-manager's GetTransfers callback reports, used for
// transfers this wallet did not itself build or sign, which is every
// transfer discovered by chain sync.
func (h *xrpHandler) recoverTransfer(wallet interface{}, fields corechain.TransferRecoveryFields) (corechain.ChainTransfer, error) {
	amount := new(big.Int)
	if fields.Amount != nil {
		amount.Set(fields.Amount)
	}
	fee := new(big.Int)
	if fields.Fee != nil {
		fee.Set(fields.Fee)
	}
	hash, err := corechain.HashFromHex(fields.Hash)
	if err != nil {
		return nil, err
	}
	return &xrpTransfer{
		source:      fields.From,
		destination: fields.To,
		amount:      amount,
		fee:         fee,
		hash:        hash,
	}, nil
}
