package eth

import (
	"math/big"
	"sync"

	"github.com/arcsign/walletcore/account"
	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/ethereum/go-ethereum/common"
)

// subWallet is the opaque "subWallet interface{}" the registry's
// WalletHandlers operate on for a single Ethereum-family wallet: the
// primary ETH wallet when token == nil, or an ERC-20 token wallet sharing
// the same address/nonce state when token is set.
type subWallet struct {
	mu sync.Mutex

	address common.Address
	nonce   uint64

	balance    *big.Int
	defaultFee *model.FeeBasis

	token *ERC20Token // nil for the primary ETH wallet
}

func (h *handler) walletCreate(acc interface{}) (interface{}, error) {
	a := acc.(*account.Account)
	if a.Ethereum == nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "account has no ethereum key material", nil)
	}
	return &subWallet{address: common.BytesToAddress(a.Ethereum.Address[:]), balance: big.NewInt(0)}, nil
}

// WalletCreateToken builds a token sub-wallet for acc's address. Token
// wallets are registered on demand, separately from the primary ETH
// wallet the manager creates up front.
func (h *handler) WalletCreateToken(acc interface{}, token *ERC20Token) (interface{}, error) {
	w, err := h.walletCreate(acc)
	if err != nil {
		return nil, err
	}
	sw := w.(*subWallet)
	sw.token = token
	return sw, nil
}

func (h *handler) walletBalance(sw interface{}) (*big.Int, error) {
	w := sw.(*subWallet)
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.balance), nil
}

func (h *handler) walletGetAddress(sw interface{}, scheme corechain.AddressScheme) (corechain.ChainAddress, error) {
	if scheme != corechain.SchemeETHDefault {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidAddress,
			"address scheme is not the ethereum default", nil)
	}
	w := sw.(*subWallet)
	var b [20]byte
	copy(b[:], w.address.Bytes())
	return model.NewETHAddress(b), nil
}

func (h *handler) walletSetDefaultFeeBasis(sw interface{}, basis corechain.ChainFeeBasis) error {
	w := sw.(*subWallet)
	fb, ok := basis.(*model.FeeBasis)
	if !ok || fb.Kind != model.FeeBasisETH {
		return corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch, "fee basis is not ETH-shaped", nil)
	}
	w.mu.Lock()
	w.defaultFee = fb
	w.mu.Unlock()
	return nil
}

// walletEstimateFee prices a standard transfer (21000 gas) or an ERC-20
// transfer (21000 + erc20TransferGasOverhead, see erc20.go) at the wallet's own
// default gas price.
func (h *handler) walletEstimateFee(sw interface{}, target corechain.ChainAddress, amount *big.Int) (corechain.ChainFeeBasis, error) {
	w := sw.(*subWallet)
	w.mu.Lock()
	defaultFee := w.defaultFee
	isToken := w.token != nil
	w.mu.Unlock()

	if defaultFee == nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete, "no gas price known; sync has not run yet", nil)
	}
	gasLimit := uint64(21000)
	if isToken {
		gasLimit += erc20TransferGasOverhead
	}
	return model.NewETHFeeBasis(gasLimit, defaultFee.GasPrice, defaultFee.Unit), nil
}
