package eth

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/corechain/rpc"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// feeEstimator computes EIP-1559 maxFeePerGas from the chain's current
// base fee plus a priority-fee tip read from eth_feeHistory.
type feeEstimator struct {
	client rpc.Client
}

func newFeeEstimator(client rpc.Client) *feeEstimator {
	return &feeEstimator{client: client}
}

// defaultPriorityFeeWei is the fallback tip (2 Gwei) used whenever
// eth_feeHistory is unavailable.
var defaultPriorityFeeWei = big.NewInt(2e9)

func (f *feeEstimator) gasPrice(ctx context.Context) (*big.Int, error) {
	raw, err := f.client.Call(ctx, "eth_getBlockByNumber", []interface{}{"latest", false})
	if err != nil {
		return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getBlockByNumber failed", nil, err)
	}
	var block struct {
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed block response", err)
	}
	baseFee, err := hexutil.DecodeBig(block.BaseFeePerGas)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed baseFeePerGas", err)
	}

	priority := new(big.Int).Set(defaultPriorityFeeWei)
	historyRaw, err := f.client.Call(ctx, "eth_feeHistory", []interface{}{10, "latest", []interface{}{50}})
	if err == nil {
		var history struct {
			Reward [][]string `json:"reward"`
		}
		if json.Unmarshal(historyRaw, &history) == nil && len(history.Reward) > 0 {
			last := history.Reward[len(history.Reward)-1]
			if len(last) > 0 {
				if tip, err := hexutil.DecodeBig(last[0]); err == nil {
					priority = tip
				}
			}
		}
	}

	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, priority)
	return maxFee, nil
}
