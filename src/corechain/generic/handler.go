package generic

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
)

// stubHandlers builds a complete-but-inert vtable for a generic chain this
// build names in Registry but does not implement. Every field is non-nil
// (corechain.HandlerRegistry.Install rejects an incomplete vtable) and
// every call with an error result returns an explicit
// ErrCodeUnsupportedAsset CoreError; the accessors with no error result
// return zero values.
func stubHandlers(m CoinMetadata) *corechain.Handlers {
	unsupported := func() error {
		return corechain.NewNonRetryableError(corechain.ErrCodeUnsupportedAsset,
			m.Name+" ("+m.Symbol+") is registered but not implemented in this build", nil)
	}
	return &corechain.Handlers{
		Type:   m.ChainType(),
		Family: corechain.FamilyGeneric,
		Account: corechain.AccountHandlers{
			FromSeed:          func(seed []byte) (interface{}, error) { return nil, unsupported() },
			FromPublicKey:     func(pub []byte) (interface{}, error) { return nil, unsupported() },
			FromSerialization: func(data []byte) (interface{}, error) { return nil, unsupported() },
			ToSerialization:   func(record interface{}) []byte { return nil },
			Address:           func(record interface{}) (corechain.ChainAddress, error) { return nil, unsupported() },
		},
		Address: corechain.AddressHandlers{
			String: func(addr corechain.ChainAddress) string { return "" },
			Equal:  func(a, b corechain.ChainAddress) bool { return false },
		},
		Transfer: corechain.TransferHandlers{
			Build: func(wallet interface{}, target corechain.ChainAddress, amount *big.Int, feeBasis corechain.ChainFeeBasis) (corechain.ChainTransfer, error) {
				return nil, unsupported()
			},
			Sign:    func(transfer corechain.ChainTransfer, key *corechain.Key) error { return unsupported() },
			Sources: func(transfer corechain.ChainTransfer) []corechain.ChainAddress { return nil },
			Targets: func(transfer corechain.ChainTransfer) []corechain.ChainAddress { return nil },
			Amount:  func(transfer corechain.ChainTransfer) *big.Int { return nil },
			Fee:     func(transfer corechain.ChainTransfer) corechain.ChainFeeBasis { return nil },
			Hash:    func(transfer corechain.ChainTransfer) corechain.Hash { return corechain.Hash{} },
		},
		Wallet: corechain.WalletHandlers{
			Create:  func(account interface{}) (interface{}, error) { return nil, unsupported() },
			Balance: func(subWallet interface{}) (*big.Int, error) { return nil, unsupported() },
			GetAddress: func(subWallet interface{}, scheme corechain.AddressScheme) (corechain.ChainAddress, error) {
				return nil, unsupported()
			},
			SetDefaultFeeBasis: func(subWallet interface{}, basis corechain.ChainFeeBasis) error { return unsupported() },
			EstimateFee: func(subWallet interface{}, target corechain.ChainAddress, amount *big.Int) (corechain.ChainFeeBasis, error) {
				return nil, unsupported()
			},
		},
		Manager: corechain.ManagerHandlers{
			RecoverTransfer: func(wallet interface{}, fields corechain.TransferRecoveryFields) (corechain.ChainTransfer, error) {
				return nil, unsupported()
			},
		},
	}
}
