package eth

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// buildTransaction constructs an unsigned EIP-1559 DynamicFeeTx: a plain
// ETH transfer when token is nil, or an ERC-20 transfer(address,uint256)
// call against token's contract address otherwise.
func buildTransaction(chainID *big.Int, nonce uint64, target [20]byte, amount *big.Int, fee *model.FeeBasis, token *ERC20Token) (*types.Transaction, error) {
	if fee.GasPrice == nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete, "fee basis has no gas price", nil)
	}
	maxFeePerGas := fee.GasPrice.ToBig()
	maxPriorityFeePerGas := new(big.Int).Set(maxFeePerGas)

	to := common.BytesToAddress(target[:])
	value := new(big.Int).Set(amount)
	var data []byte

	if token != nil {
		data = encodeERC20Transfer(to, amount)
		to = token.Contract
		value = big.NewInt(0)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasFeeCap: maxFeePerGas,
		GasTipCap: maxPriorityFeePerGas,
		Gas:       fee.GasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	return tx, nil
}
