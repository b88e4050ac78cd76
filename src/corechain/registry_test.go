package corechain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeHandlers(chainType ChainType) *Handlers {
	return &Handlers{
		Type: chainType,
		Account: AccountHandlers{
			FromSeed:          func([]byte) (interface{}, error) { return nil, nil },
			FromPublicKey:     func([]byte) (interface{}, error) { return nil, nil },
			FromSerialization: func([]byte) (interface{}, error) { return nil, nil },
			ToSerialization:   func(interface{}) []byte { return nil },
			Address:           func(interface{}) (ChainAddress, error) { return nil, nil },
		},
		Address: AddressHandlers{
			String: func(ChainAddress) string { return "" },
			Equal:  func(a, b ChainAddress) bool { return true },
		},
		Transfer: TransferHandlers{
			Build: func(interface{}, ChainAddress, *big.Int, ChainFeeBasis) (ChainTransfer, error) {
				return nil, nil
			},
			Sign:    func(ChainTransfer, *Key) error { return nil },
			Sources: func(ChainTransfer) []ChainAddress { return nil },
			Targets: func(ChainTransfer) []ChainAddress { return nil },
			Amount:  func(ChainTransfer) *big.Int { return nil },
			Fee:     func(ChainTransfer) ChainFeeBasis { return nil },
			Hash:    func(ChainTransfer) Hash { return Hash{} },
		},
		Wallet: WalletHandlers{
			Create:             func(interface{}) (interface{}, error) { return nil, nil },
			Balance:            func(interface{}) (*big.Int, error) { return nil, nil },
			GetAddress:         func(interface{}, AddressScheme) (ChainAddress, error) { return nil, nil },
			SetDefaultFeeBasis: func(interface{}, ChainFeeBasis) error { return nil },
			EstimateFee: func(interface{}, ChainAddress, *big.Int) (ChainFeeBasis, error) {
				return nil, nil
			},
		},
		Manager: ManagerHandlers{
			RecoverTransfer: func(interface{}, TransferRecoveryFields) (ChainTransfer, error) { return nil, nil },
		},
	}
}

func TestRegistryInstallAndLookup(t *testing.T) {
	r := &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	h := completeHandlers("test-chain")

	require.NoError(t, r.Install(h))
	got, err := r.Lookup("test-chain")
	require.NoError(t, err)
	assert.Same(t, h, got)
}

func TestRegistryInstallIsIdempotent(t *testing.T) {
	r := &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	h := completeHandlers("test-chain")

	require.NoError(t, r.Install(h))
	require.NoError(t, r.Install(h)) // same pointer: no-op, not an error
}

func TestRegistryRejectsConflictingReinstall(t *testing.T) {
	r := &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	require.NoError(t, r.Install(completeHandlers("test-chain")))

	err := r.Install(completeHandlers("test-chain"))
	assert.Error(t, err)
}

func TestRegistryRejectsIncompleteVtable(t *testing.T) {
	r := &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	h := completeHandlers("test-chain")
	h.Wallet.GetAddress = nil

	err := r.Install(h)
	assert.Error(t, err)

	_, lookupErr := r.Lookup("test-chain")
	assert.Error(t, lookupErr, "a rejected install must not be visible to Lookup")
}

func TestRegistryLookupUnknownChainType(t *testing.T) {
	r := &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	_, err := r.Lookup("nonexistent")
	assert.Error(t, err)
}

func TestRegistryInstalledTypesSorted(t *testing.T) {
	r := &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	require.NoError(t, r.Install(completeHandlers("zeta")))
	require.NoError(t, r.Install(completeHandlers("alpha")))

	assert.Equal(t, []ChainType{"alpha", "zeta"}, r.InstalledTypes())
}
