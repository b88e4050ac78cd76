package manager

import (
	"math/big"
	"time"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/holiman/uint256"
)

func unixTime(seconds int64) time.Time {
	return time.Unix(seconds, 0)
}

// TransferRecoverer is implemented by a chain-family sub-manager that
// discovers transfers asynchronously rather than through Sign/Submit it
// issued itself — the generic family's periodic dispatcher, polling
// account history for transactions the wallet did not build. The manager
// subscribes at construction time so every discovered transfer is folded
// into the primary wallet via handleRecoveredTransferGeneric.
type TransferRecoverer interface {
	SetOnTransferRecovered(func(fields corechain.TransferRecoveryFields))
}

// handleRecoveredTransferGeneric implements the generic family's
// find-or-create recovery pipeline: look up the wallet's existing transfer
// by hash; if unknown, rebuild a ChainTransfer via the handler registry's
// RecoverTransfer and add it to the wallet (TRANSFER_ADDED+BALANCE_UPDATED),
// then, only if its state is not freshly CREATED, report the transition
// separately (TRANSFER_CHANGED+BALANCE_UPDATED); if already known, update
// its state in place when it changed.
func (m *Manager) handleRecoveredTransferGeneric(fields corechain.TransferRecoveryFields) {
	hash, err := corechain.HashFromHex(fields.Hash)
	if err != nil {
		return
	}
	w := m.PrimaryWallet()

	newState := transferStateFromRecoveryFields(fields)

	if existing, ok := w.FindTransferByHash(hash); ok {
		if existing.State.Kind != newState.Kind {
			w.SetTransferState(existing, newState)
		}
		return
	}

	h, err := corechain.DefaultRegistry().Lookup(m.ChainType)
	if err != nil {
		return
	}
	underlying, err := h.Manager.RecoverTransfer(w.SubWallet(), fields)
	if err != nil {
		return
	}

	direction := model.DirectionReceived
	if addr, err := w.GetAddress(m.AddressScheme); err == nil && addr.String() == fields.From {
		direction = model.DirectionSent
	}

	source := model.NewGenericAddress(m.ChainType, []byte(fields.From))
	target := model.NewGenericAddress(m.ChainType, []byte(fields.To))
	amount := amountFromBig(fields.Amount, w.DefaultUnit())
	feeMag, _ := uint256.FromBig(absBig(fields.Fee))
	feeBasis := model.NewGenericFeeBasis(feeMag, 1.0, w.UnitForFee())

	t := model.NewTransfer(m.ChainType, source, target, amount, w.UnitForFee(), feeBasis, direction)
	t.Underlying = underlying
	t.Hash = hash

	if !w.AddTransfer(t) {
		return
	}
	if newState.Kind != model.StateCreated {
		w.SetTransferState(t, newState)
	}
}

// transferStateFromRecoveryFields maps the handler-reported state string
// onto the wallet's TransferState union.
func transferStateFromRecoveryFields(fields corechain.TransferRecoveryFields) model.TransferState {
	switch fields.State {
	case "included":
		return model.IncludedState(fields.BlockHeight, 0, unixTime(fields.Timestamp), nil)
	case "errored":
		return model.ErroredState(fields.ErrorMsg)
	case "submitted":
		return model.SubmittedState()
	case "signed":
		return model.SignedState()
	default:
		return model.CreatedState()
	}
}

func amountFromBig(v *big.Int, unit *model.Unit) *model.Amount {
	mag, overflow := uint256.FromBig(absBig(v))
	if overflow {
		mag = new(uint256.Int)
	}
	return &model.Amount{Unit: unit, Magnitude: mag, Negative: v != nil && v.Sign() < 0}
}

func absBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Abs(v)
}
