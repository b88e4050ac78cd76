package utxo

import (
	"math/big"
	"sync"

	"github.com/arcsign/walletcore/account"
	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/btcsuite/btcd/chaincfg"
)

// UTXOOutput is one unspent output the sub-wallet knows about, populated
// by the sub-manager's sync loop (ListUnspent-equivalent) rather than
// computed from a full local chain index.
type UTXOOutput struct {
	TxID     corechain.Hash
	Vout     uint32
	Value    int64 // satoshis
	PkScript []byte
	Address  string
}

// subWallet is the opaque "subWallet interface{}" the registry's
// WalletHandlers operate on for a single UTXO-family wallet.
type subWallet struct {
	mu sync.Mutex

	mpk       *corechain.MasterPublicKey
	params    *chaincfg.Params
	chainType corechain.ChainType

	nextIndex  uint32
	utxos      []UTXOOutput
	defaultFee *model.FeeBasis
}

func (h *handler) walletCreate(acc interface{}) (interface{}, error) {
	a := acc.(*account.Account)
	if a.UTXOMasterPublicKey == nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "account has no UTXO master public key", nil)
	}
	return &subWallet{mpk: a.UTXOMasterPublicKey, params: h.params, chainType: h.chainType}, nil
}

func (h *handler) walletBalance(sw interface{}) (*big.Int, error) {
	w := sw.(*subWallet)
	w.mu.Lock()
	defer w.mu.Unlock()
	total := big.NewInt(0)
	for _, u := range w.utxos {
		total.Add(total, big.NewInt(u.Value))
	}
	return total, nil
}

func (h *handler) walletGetAddress(sw interface{}, scheme corechain.AddressScheme) (corechain.ChainAddress, error) {
	if scheme != corechain.SchemeBTCLegacy && scheme != corechain.SchemeBTCSegwit {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidAddress,
			"address scheme is not a UTXO scheme", nil)
	}
	w := sw.(*subWallet)
	legacy := scheme == corechain.SchemeBTCLegacy
	addr, err := deriveReceiveAddress(w.mpk, w.params, 0, legacy)
	if err != nil {
		return nil, err
	}
	return model.NewUTXOAddress(addr, w.chainType == corechain.ChainTypeBCH), nil
}

func (h *handler) walletSetDefaultFeeBasis(sw interface{}, basis corechain.ChainFeeBasis) error {
	w := sw.(*subWallet)
	fb, ok := basis.(*model.FeeBasis)
	if !ok || fb.Kind != model.FeeBasisUTXO {
		return corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "fee basis is not UTXO-shaped", nil)
	}
	w.mu.Lock()
	w.defaultFee = fb
	w.mu.Unlock()
	return nil
}

// walletEstimateFee sizes a synthetic transaction (one input-per-UTXO
// until amount is covered, one output for the target, one
// change output) and prices it at the wallet's own default fee-per-KB.
func (h *handler) walletEstimateFee(sw interface{}, target corechain.ChainAddress, amount *big.Int) (corechain.ChainFeeBasis, error) {
	w := sw.(*subWallet)
	w.mu.Lock()
	utxos := append([]UTXOOutput(nil), w.utxos...)
	feeRate := w.defaultFee
	w.mu.Unlock()

	if feeRate == nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete, "no fee rate known; sync has not run yet", nil)
	}

	numInputs := 0
	covered := big.NewInt(0)
	for _, u := range utxos {
		covered.Add(covered, big.NewInt(u.Value))
		numInputs++
		if covered.Cmp(amount) >= 0 {
			break
		}
	}
	if numInputs == 0 {
		numInputs = 1
	}
	sizeBytes := estimateTxVBytes(numInputs, 2)
	return model.NewUTXOFeeBasis(feeRate.FeePerKB, sizeBytes, feeRate.Unit), nil
}

// estimateTxVBytes approximates virtual size for a P2WPKH transaction:
// ~10 bytes overhead, ~68 vbytes per witness input, ~31 bytes per output.
func estimateTxVBytes(numInputs, numOutputs int) uint64 {
	return uint64(10 + numInputs*68 + numOutputs*31)
}
