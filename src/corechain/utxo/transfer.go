package utxo

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/btcsuite/btcd/wire"
)

// Transfer is the UTXO-family ChainTransfer: a built (and, once Sign has
// run, witness-populated) wire.MsgTx alongside the logical source/target
// addresses and fee basis the wallet layer reports to listeners.
type Transfer struct {
	tx      *wire.MsgTx
	inputs  []UTXOOutput // spent outputs, index-aligned with tx.TxIn
	sources []*model.Address
	targets []*model.Address
	amount  *big.Int
	fee     *model.FeeBasis
	hash    corechain.Hash
	signed  bool
}

func (h *handler) transferBuild(sw interface{}, target corechain.ChainAddress, amount *big.Int, feeBasis corechain.ChainFeeBasis) (corechain.ChainTransfer, error) {
	w := sw.(*subWallet)
	targetAddr, ok := target.(*model.Address)
	if !ok || targetAddr.Kind != model.AddressUTXO {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "target is not a UTXO address", nil)
	}
	fb, ok := feeBasis.(*model.FeeBasis)
	if !ok || fb.Kind != model.FeeBasisUTXO {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "fee basis is not UTXO-shaped", nil)
	}

	w.mu.Lock()
	utxos := append([]UTXOOutput(nil), w.utxos...)
	mpk, params, index := w.mpk, w.params, w.nextIndex
	w.mu.Unlock()

	selected, changeValue, err := selectCoins(utxos, amount, fb.Fee().Magnitude.ToBig())
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	sources := make([]*model.Address, 0, len(selected))
	for _, u := range selected {
		outPoint := wire.NewOutPoint((*wireHash)(&u.TxID), u.Vout)
		tx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
		sources = append(sources, model.NewUTXOAddress(u.Address, w.chainType == corechain.ChainTypeBCH))
	}

	targetScript, err := addressToScript(targetAddr.UTXOEncoded, params)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(amount.Int64(), targetScript))

	if changeValue.Sign() > 0 {
		changeAddr, err := deriveReceiveAddress(mpk, params, index+1, false)
		if err != nil {
			return nil, err
		}
		changeScript, err := addressToScript(changeAddr, params)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(changeValue.Int64(), changeScript))
	}

	return &Transfer{
		tx:      tx,
		inputs:  selected,
		sources: sources,
		targets: []*model.Address{targetAddr},
		amount:  new(big.Int).Set(amount),
		fee:     fb,
	}, nil
}

func (h *handler) transferSign(transfer corechain.ChainTransfer, key *corechain.Key) error {
	t := transfer.(*Transfer)
	if err := signTransaction(t.tx, t.inputs, key); err != nil {
		return err
	}
	t.signed = true
	t.hash = corechain.HashOf(serializeTx(t.tx))
	return nil
}

func (h *handler) transferSources(transfer corechain.ChainTransfer) []corechain.ChainAddress {
	t := transfer.(*Transfer)
	out := make([]corechain.ChainAddress, len(t.sources))
	for i, a := range t.sources {
		out[i] = a
	}
	return out
}

func (h *handler) transferTargets(transfer corechain.ChainTransfer) []corechain.ChainAddress {
	t := transfer.(*Transfer)
	out := make([]corechain.ChainAddress, len(t.targets))
	for i, a := range t.targets {
		out[i] = a
	}
	return out
}

func (h *handler) transferAmount(transfer corechain.ChainTransfer) *big.Int {
	return transfer.(*Transfer).amount
}

func (h *handler) transferFee(transfer corechain.ChainTransfer) corechain.ChainFeeBasis {
	return transfer.(*Transfer).fee
}

func (h *handler) transferHash(transfer corechain.ChainTransfer) corechain.Hash {
	return transfer.(*Transfer).hash
}

// selectCoins greedily accumulates utxos until amount+fee is covered,
// returning the selected set and the leftover change value.
func selectCoins(utxos []UTXOOutput, amount, fee *big.Int) ([]UTXOOutput, *big.Int, error) {
	need := new(big.Int).Add(amount, fee)
	covered := big.NewInt(0)
	var selected []UTXOOutput
	for _, u := range utxos {
		selected = append(selected, u)
		covered.Add(covered, big.NewInt(u.Value))
		if covered.Cmp(need) >= 0 {
			break
		}
	}
	if covered.Cmp(need) < 0 {
		return nil, nil, corechain.NewNonRetryableError(corechain.ErrCodeInsufficientFunds, "insufficient UTXOs to cover amount and fee", nil)
	}
	change := new(big.Int).Sub(covered, need)
	return selected, change, nil
}
