// Package utxo implements the Bitcoin/Bitcoin-Cash chain family: the
// corechain.Handlers vtable (address derivation from an account's UTXO
// master public key, P2WPKH/P2PKH transaction building, fee-per-KB
// estimation, signing) and a SubManager that syncs by polling a single
// RPC endpoint's mempool and block tip instead of running a full P2P peer
// pool. An embedded peer-to-peer sync engine is out of scope for this
// core, but the wire format and
// derivation are unchanged.
package utxo

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/btcsuite/btcd/chaincfg"
)

// Handlers builds the corechain.Handlers vtable for chainType (BTC or
// BCH) against params, the btcd network parameters selecting address
// encoding and P2P magic.
func Handlers(chainType corechain.ChainType, params *chaincfg.Params) *corechain.Handlers {
	h := &handler{chainType: chainType, params: params}
	return &corechain.Handlers{
		Type:   chainType,
		Family: corechain.FamilyUTXO,
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
	chainType corechain.ChainType
	params    *chaincfg.Params
}

func init() {
	corechain.RegisterBuiltin(func(r *corechain.HandlerRegistry) {
		// BCH shares btcd's mainnet params; its divergent address encoding
		// is carried by model.Address's IsBitcoinCash flag instead.
		for _, ct := range []corechain.ChainType{corechain.ChainTypeBTC, corechain.ChainTypeBCH} {
			if err := r.Install(Handlers(ct, &chaincfg.MainNetParams)); err != nil {
				panic(err)
			}
		}
	})
}

// accountRecord is the chain-specific record embedded in
// account.Account.Generic for a UTXO chain installed through the generic
// path; the built-in BTC/BCH chains instead use account.Account's own
// UTXOMasterPublicKey field directly, so these hooks only matter when
// utxo.Handlers is installed under a non-default ChainType (e.g. a
// Litecoin fork reusing this package).
type accountRecord struct {
	MasterPublicKey *corechain.MasterPublicKey
}

func (h *handler) accountFromSeed(seed []byte) (interface{}, error) {
	mpk, err := deriveMasterPublicKey(seed, coinType(h.params))
	if err != nil {
		return nil, err
	}
	return &accountRecord{MasterPublicKey: mpk}, nil
}

func (h *handler) accountFromPublicKey(pub []byte) (interface{}, error) {
	mpk, err := deserializeMasterPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &accountRecord{MasterPublicKey: mpk}, nil
}

func (h *handler) accountFromSerialization(data []byte) (interface{}, error) {
	return h.accountFromPublicKey(data)
}

func (h *handler) accountToSerialization(record interface{}) []byte {
	r := record.(*accountRecord)
	return r.MasterPublicKey.Serialize()
}

func (h *handler) accountAddress(record interface{}) (corechain.ChainAddress, error) {
	r := record.(*accountRecord)
	addr, err := deriveReceiveAddress(r.MasterPublicKey, h.params, 0, false)
	if err != nil {
		return nil, err
	}
	return model.NewUTXOAddress(addr, h.chainType == corechain.ChainTypeBCH), nil
}

func (h *handler) addressString(addr corechain.ChainAddress) string {
	return addr.(*model.Address).String()
}

func (h *handler) addressEqual(a, b corechain.ChainAddress) bool {
	return a.(*model.Address).Equal(b.(*model.Address))
}

// recoverTransfer builds a model.Transfer from an externally observed
// on-chain event (e.g. a block-explorer webhook or a resynced peer log),
// used by the manager's persisted-transfer replay path.
func (h *handler) recoverTransfer(wallet interface{}, fields corechain.TransferRecoveryFields) (corechain.ChainTransfer, error) {
	source := model.NewUTXOAddress(fields.From, h.chainType == corechain.ChainTypeBCH)
	target := model.NewUTXOAddress(fields.To, h.chainType == corechain.ChainTypeBCH)
	amount := &big.Int{}
	if fields.Amount != nil {
		amount.Set(fields.Amount)
	}
	return &Transfer{
		sources: []*model.Address{source},
		targets: []*model.Address{target},
		amount:  amount,
	}, nil
}
