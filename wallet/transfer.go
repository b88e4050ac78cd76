package wallet

import (
	"math/big"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
)

// GetAddress dispatches on address-scheme and the wallet's chain type via
// the handler registry. Using the wrong scheme for a wallet's family is a
// programmer error (asserted by the handler, which returns
// ErrCodeInvalidAddress rather than silently coercing).
func (w *Wallet) GetAddress(scheme corechain.AddressScheme) (*model.Address, error) {
	h, err := corechain.DefaultRegistry().Lookup(w.ChainType)
	if err != nil {
		return nil, err
	}
	addr, err := h.Wallet.GetAddress(w.SubWallet(), scheme)
	if err != nil {
		return nil, err
	}
	return addr.(*model.Address), nil
}

// DefaultFeeBasis returns the wallet's current default fee basis via the
// sub-wallet handler.
func (w *Wallet) DefaultFeeBasis() *model.FeeBasis {
	w.mu.Lock()
	fb, _ := w.feeBasis.(*model.FeeBasis)
	w.mu.Unlock()
	return fb
}

// SetDefaultFeeBasis asserts type agreement with the sub-wallet's fee
// family and routes to the handler, then emits FEE_BASIS_UPDATED.
func (w *Wallet) SetDefaultFeeBasis(basis *model.FeeBasis) error {
	h, err := corechain.DefaultRegistry().Lookup(w.ChainType)
	if err != nil {
		return err
	}
	if err := h.Wallet.SetDefaultFeeBasis(w.SubWallet(), basis); err != nil {
		return err
	}
	w.mu.Lock()
	w.feeBasis = basis
	w.mu.Unlock()
	w.emit(Event{Kind: EventFeeBasisUpdated, FeeBasis: basis})
	return nil
}

// addressKindForFamily and feeBasisKindForFamily report the model.Address /
// model.FeeBasis tagged-union variant a given chain family's handler vtable
// is built to consume.
func addressKindForFamily(family corechain.ChainFamily) model.AddressKind {
	switch family {
	case corechain.FamilyUTXO:
		return model.AddressUTXO
	case corechain.FamilyEthereum:
		return model.AddressETH
	default:
		return model.AddressGeneric
	}
}

func feeBasisKindForFamily(family corechain.ChainFamily) model.FeeBasisKind {
	switch family {
	case corechain.FamilyUTXO:
		return model.FeeBasisUTXO
	case corechain.FamilyEthereum:
		return model.FeeBasisETH
	default:
		return model.FeeBasisGeneric
	}
}

// CreateTransfer asserts type agreement between the wallet, target address
// and fee basis, asserts the amount's currency matches the wallet's
// currency, then dispatches to the chain-specific Transfer.Build handler.
func (w *Wallet) CreateTransfer(target *model.Address, amount *model.Amount, estimatedFee *model.FeeBasis) (*model.Transfer, error) {
	if !amount.Unit.Compatible(w.defaultUnit) {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch,
			"transfer amount currency does not match wallet currency", nil)
	}
	h, err := corechain.DefaultRegistry().Lookup(w.ChainType)
	if err != nil {
		return nil, err
	}
	if target.Kind != addressKindForFamily(h.Family) {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch,
			"target address family does not match wallet chain family", nil)
	}
	if estimatedFee.Kind != feeBasisKindForFamily(h.Family) {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeCurrencyMismatch,
			"fee basis family does not match wallet chain family", nil)
	}
	built, err := h.Transfer.Build(w.SubWallet(), target, amount.Magnitude.ToBig(), estimatedFee)
	if err != nil {
		return nil, err
	}
	underlying := built
	t := model.NewTransfer(w.ChainType, nil, target, amount, w.unitForFee, estimatedFee, model.DirectionSent)
	t.Underlying = underlying
	return t, nil
}

// EstimateLimit returns either the minimum sendable amount or the maximum
// sendable amount for a prospective transfer to target, per family:
//   - UTXO: minimum is the below-dust floor; maximum is total UTXO value
//     minus fees. If balance is insufficient the amount is zero and
//     isZeroIfInsufficient is set.
//   - Ethereum: maximum is the current balance, minimum is zero;
//     needsEstimate is set in both directions since the caller must still
//     run asynchronous gas estimation.
//   - Generic: delegates to the handler's cost model.
func (w *Wallet) EstimateLimit(asMaximum bool, target *model.Address, fee *model.FeeBasis) (amount *model.Amount, isZeroIfInsufficient, needsEstimate bool, err error) {
	h, err := corechain.DefaultRegistry().Lookup(w.ChainType)
	if err != nil {
		return nil, false, false, err
	}
	balance := w.Balance()
	switch h.Family {
	case corechain.FamilyUTXO:
		if !asMaximum {
			return model.NewAmountFromUint64(dustLimitSatoshis, w.defaultUnit), false, false, nil
		}
		feeAmount := fee.Fee()
		max, err := balance.Sub(feeAmount)
		if err != nil || max.Negative {
			return model.NewAmountFromUint64(0, w.defaultUnit), true, false, nil
		}
		return max, false, false, nil
	case corechain.FamilyEthereum:
		if asMaximum {
			return balance, false, true, nil
		}
		return model.NewAmountFromUint64(0, w.defaultUnit), false, true, nil
	default:
		basis, err := h.Wallet.EstimateFee(w.SubWallet(), target, new(big.Int))
		if err != nil {
			return nil, false, false, err
		}
		fb := basis.(*model.FeeBasis)
		if asMaximum {
			max, err := balance.Sub(fb.Fee())
			if err != nil || max.Negative {
				return model.NewAmountFromUint64(0, w.defaultUnit), true, false, nil
			}
			return max, false, false, nil
		}
		return model.NewAmountFromUint64(0, w.defaultUnit), false, false, nil
	}
}

// dustLimitSatoshis is the conventional Bitcoin-family below-dust floor.
const dustLimitSatoshis = 546
