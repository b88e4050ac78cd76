package eth

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/ethereum/go-ethereum/core/types"
)

// Transfer is the Ethereum-family ChainTransfer: an unsigned (then, once
// Sign has run, signed) EIP-1559 DynamicFeeTx alongside the logical
// source/target/amount/fee the wallet layer reports to listeners.
type Transfer struct {
	tx      *types.Transaction
	signed  *types.Transaction
	sources []*model.Address
	targets []*model.Address
	amount  *big.Int
	fee     *model.FeeBasis
	hash    corechain.Hash
}

func (h *handler) transferBuild(sw interface{}, target corechain.ChainAddress, amount *big.Int, feeBasis corechain.ChainFeeBasis) (corechain.ChainTransfer, error) {
	w := sw.(*subWallet)
	targetAddr, ok := target.(*model.Address)
	if !ok || targetAddr.Kind != model.AddressETH {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "target is not an ethereum address", nil)
	}
	fb, ok := feeBasis.(*model.FeeBasis)
	if !ok || fb.Kind != model.FeeBasisETH {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "fee basis is not ETH-shaped", nil)
	}

	w.mu.Lock()
	nonce, addr, token := w.nonce, w.address, w.token
	w.mu.Unlock()

	var sourceAddr [20]byte
	copy(sourceAddr[:], addr.Bytes())

	tx, err := buildTransaction(h.chainID, nonce, targetAddr.ETHBytes, amount, fb, token)
	if err != nil {
		return nil, err
	}

	return &Transfer{
		tx:      tx,
		sources: []*model.Address{model.NewETHAddress(sourceAddr)},
		targets: []*model.Address{targetAddr},
		amount:  new(big.Int).Set(amount),
		fee:     fb,
	}, nil
}

func (h *handler) transferSign(transfer corechain.ChainTransfer, key *corechain.Key) error {
	t := transfer.(*Transfer)
	signed, err := signTransaction(h.chainID, t.tx, key)
	if err != nil {
		return err
	}
	t.signed = signed
	t.hash, _ = corechain.HashFromBytes(signed.Hash().Bytes())
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
