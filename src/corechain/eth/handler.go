// Package eth implements the Ethereum-account chain family: the
// corechain.Handlers vtable over the account's single derived address, an
// EIP-1559 DynamicFeeTx builder/signer, ERC-20 token transfers, and a
// SubManager that hands block-of-interest discovery to corechain/eth/bcs.
package eth

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
)

// Handlers builds the corechain.Handlers vtable for the Ethereum chain
// family, parameterized by the EIP-155 chain ID.
func Handlers(chainID int64) *corechain.Handlers {
	h := &handler{chainID: big.NewInt(chainID)}
	return &corechain.Handlers{
		Type:   corechain.ChainTypeETH,
		Family: corechain.FamilyEthereum,
		Account: corechain.AccountHandlers{
			FromSeed:          h.accountFromSeed,
			FromPublicKey:     h.accountFromPublicKey,
			FromSerialization: h.accountFromSerialization,
			ToSerialization:   h.accountToSerialization,
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

type handler struct {
	chainID *big.Int
}

// mainnetChainID backs the default "eth" registry entry; an EVM fork
// installs its own tag via Handlers(chainID) with its own chain ID.
const mainnetChainID = 1

func init() {
	corechain.RegisterBuiltin(func(r *corechain.HandlerRegistry) {
		if err := r.Install(Handlers(mainnetChainID)); err != nil {
			panic(err)
		}
	})
}

// accountRecord is the chain-specific record used only when eth.Handlers is
// installed under a non-default ChainType (e.g. an EVM fork reusing this
// package under its own tag); the built-in ETH chain instead reads
// account.Account.Ethereum directly, the same split utxo.handler uses for
// accountRecord vs. UTXOMasterPublicKey.
type accountRecord struct {
	Public  []byte // 65-byte uncompressed SEC1
	Address [20]byte
}

// ethDerivationPath is m/44'/60'/0'/0/0, the conventional single-address
// Ethereum path (mirrored from account.deriveEthereumAccount for the
// non-built-in fork-chain case this handler's Account vtable exists for).
var ethDerivationPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild + 0,
	0,
	0,
}

func (h *handler) accountFromSeed(seed []byte) (interface{}, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 master key derivation failed", err)
	}
	key := master
	for _, idx := range ethDerivationPath {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "bip32 ethereum derivation failed", err)
		}
	}
	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "invalid ethereum private scalar", err)
	}
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	var addr [20]byte
	copy(addr[:], crypto.PubkeyToAddress(priv.PublicKey).Bytes())
	return &accountRecord{Public: pub, Address: addr}, nil
}

func (h *handler) accountFromPublicKey(pub []byte) (interface{}, error) {
	if len(pub) != 65 {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "ethereum public key must be 65 bytes uncompressed", nil)
	}
	ecdsaPub, err := crypto.UnmarshalPubkey(pub)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "malformed ethereum uncompressed public key", err)
	}
	var addr [20]byte
	copy(addr[:], crypto.PubkeyToAddress(*ecdsaPub).Bytes())
	return &accountRecord{Public: pub, Address: addr}, nil
}

func (h *handler) accountFromSerialization(data []byte) (interface{}, error) {
	return h.accountFromPublicKey(data)
}

func (h *handler) accountToSerialization(record interface{}) []byte {
	return record.(*accountRecord).Public
}

func (h *handler) accountAddress(record interface{}) (corechain.ChainAddress, error) {
	return model.NewETHAddress(record.(*accountRecord).Address), nil
}

func (h *handler) addressString(addr corechain.ChainAddress) string {
	a := addr.(*model.Address)
	return common.BytesToAddress(a.ETHBytes[:]).Hex()
}

func (h *handler) addressEqual(a, b corechain.ChainAddress) bool {
	return a.(*model.Address).Equal(b.(*model.Address))
}

// recoverTransfer builds a model.Transfer from fields BCS's transaction/log
// extraction (or an embedder's out-of-band Client) observed directly.
func (h *handler) recoverTransfer(wallet interface{}, fields corechain.TransferRecoveryFields) (corechain.ChainTransfer, error) {
	source := ethAddressFromHex(fields.From)
	target := ethAddressFromHex(fields.To)
	amount := &big.Int{}
	if fields.Amount != nil {
		amount.Set(fields.Amount)
	}
	return &Transfer{
		sources: []*model.Address{source},
		targets: []*model.Address{target},
		amount:  amount,
		hash:    mustHash(fields.Hash),
	}, nil
}

func ethAddressFromHex(s string) *model.Address {
	var b [20]byte
	copy(b[:], common.HexToAddress(s).Bytes())
	return model.NewETHAddress(b)
}

func mustHash(hex string) corechain.Hash {
	h, err := corechain.HashFromHex(hex)
	if err != nil {
		return corechain.Hash{}
	}
	return h
}
