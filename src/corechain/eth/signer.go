package eth

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/ethereum/go-ethereum/core/types"
)

// signTransaction signs tx with key using the EIP-155/London signer for
// chainID.
func signTransaction(chainID *big.Int, tx *types.Transaction, key *corechain.Key) (*types.Transaction, error) {
	if !key.HasSecret() {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeSeedRequired, "signing key has no private material", nil)
	}
	signer := types.NewLondonSigner(chainID)
	signed, err := types.SignTx(tx, signer, key.PrivateKey())
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "ethereum transaction signing failed", err)
	}
	return signed, nil
}
