// Package wallet implements the per-currency balance and transfer index
// described by the wallet core: a type tag, state, default unit, an
// ordered transfer sequence guarded by a lock, and a chain-specific
// sub-wallet reference.
//
// Locking convention: every method that needs the lock has a "Locked"
// counterpart that assumes the caller already holds it, and a public
// wrapper that acquires the lock and calls the Locked version. No method
// ever re-acquires the lock it already holds, so a plain sync.Mutex
// suffices with no need for recursion.
package wallet

import (
	"sync"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
)

// State is the Wallet lifecycle state.
type State int

const (
	StateCreated State = iota
	StateDeleted
)

// Listener receives wallet-level events. The core calls Listener methods
// with the wallet's lock already released, so implementations may safely
// call back into the wallet (e.g. to read balance) from within a handler.
type Listener interface {
	OnWalletEvent(w *Wallet, event Event)
}

// Wallet is a per-currency balance and transfer index.
type Wallet struct {
	mu sync.Mutex

	ChainType  corechain.ChainType
	state      State
	defaultUnit *model.Unit
	unitForFee  *model.Unit
	transfers   []*model.Transfer
	subWallet   interface{} // chain-family-specific sub-wallet handle
	feeBasis    interface{} // current default fee basis (*model.FeeBasis)

	listener Listener
}

// New constructs a CREATED wallet for the given chain type and units.
func New(chainType corechain.ChainType, defaultUnit, unitForFee *model.Unit, subWallet interface{}, listener Listener) *Wallet {
	return &Wallet{
		ChainType:   chainType,
		state:       StateCreated,
		defaultUnit: defaultUnit,
		unitForFee:  unitForFee,
		subWallet:   subWallet,
		listener:    listener,
	}
}

// State returns the wallet's current lifecycle state.
func (w *Wallet) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// DefaultUnit returns the wallet's default display unit.
func (w *Wallet) DefaultUnit() *model.Unit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.defaultUnit
}

// UnitForFee returns the unit fees are denominated in.
func (w *Wallet) UnitForFee() *model.Unit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unitForFee
}

// SubWallet returns the chain-family-specific sub-wallet handle.
func (w *Wallet) SubWallet() interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subWallet
}

// HasTransfer reports whether t is present in the wallet's transfer
// sequence.
func (w *Wallet) HasTransfer(t *model.Transfer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasTransferLocked(t)
}

func (w *Wallet) hasTransferLocked(t *model.Transfer) bool {
	for _, existing := range w.transfers {
		if existing == t || (existing.Hash == t.Hash && !existing.Hash.IsZero()) {
			return true
		}
	}
	return false
}

// FindTransferByHash iterates the transfer sequence under lock looking for
// a transfer whose hash matches h.
func (w *Wallet) FindTransferByHash(h corechain.Hash) (*model.Transfer, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.transfers {
		if t.Hash == h {
			return t, true
		}
	}
	return nil, false
}

// Transfers returns a snapshot copy of the wallet's ordered transfer
// sequence.
func (w *Wallet) Transfers() []*model.Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*model.Transfer, len(w.transfers))
	copy(out, w.transfers)
	return out
}

// AddTransfer appends t to the sequence if not already present (checked
// under lock), emitting TRANSFER_ADDED then BALANCE_UPDATED — in that
// order, per the ordering guarantee that a wallet's TRANSFER_ADDED
// precedes its subsequent BALANCE_UPDATED. Returns false if t was already
// a member (idempotent).
func (w *Wallet) AddTransfer(t *model.Transfer) bool {
	w.mu.Lock()
	if w.hasTransferLocked(t) {
		w.mu.Unlock()
		return false
	}
	w.transfers = append(w.transfers, t)
	balance := w.balanceLocked()
	w.mu.Unlock()

	w.emit(Event{Kind: EventTransferAdded, Transfer: t})
	w.emit(Event{Kind: EventBalanceUpdated, Balance: balance})
	return true
}

// RemTransfer detaches t from the sequence under lock, then releases the
// reference and invokes listener callbacks *outside* the lock, matching
// the invariant that a wallet's transfer reference is dropped outside its
// lock to avoid release-callback reentrancy.
func (w *Wallet) RemTransfer(t *model.Transfer) bool {
	w.mu.Lock()
	idx := -1
	for i, existing := range w.transfers {
		if existing == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mu.Unlock()
		return false
	}
	w.transfers = append(w.transfers[:idx], w.transfers[idx+1:]...)
	balance := w.balanceLocked()
	w.mu.Unlock()

	w.emit(Event{Kind: EventTransferDeleted, Transfer: t})
	w.emit(Event{Kind: EventBalanceUpdated, Balance: balance})
	return true
}

// SetTransferState updates t's tracked state in place and emits
// TRANSFER_CHANGED then BALANCE_UPDATED, for a recovery pipeline that
// discovers a state transition for a transfer already present in the
// wallet (e.g. CREATED -> INCLUDED). Returns false if t is not a member.
func (w *Wallet) SetTransferState(t *model.Transfer, newState model.TransferState) bool {
	w.mu.Lock()
	if !w.hasTransferLocked(t) {
		w.mu.Unlock()
		return false
	}
	oldState := t.State
	t.SetState(newState)
	balance := w.balanceLocked()
	w.mu.Unlock()

	w.emit(Event{Kind: EventTransferChanged, Transfer: t, OldTransferState: oldState, NewTransferState: newState})
	w.emit(Event{Kind: EventBalanceUpdated, Balance: balance})
	return true
}

// Balance computes the net directional sum of the wallet's non-errored
// transfers' amounts, in the wallet's default unit.
func (w *Wallet) Balance() *model.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balanceLocked()
}

func (w *Wallet) balanceLocked() *model.Amount {
	total := model.NewAmountFromUint64(0, w.defaultUnit)
	for _, t := range w.transfers {
		if t.State.Kind == model.StateErrored || t.State.Kind == model.StateDeleted {
			continue
		}
		signed := *t.Amount
		switch t.Direction {
		case model.DirectionSent:
			signed.Negative = !signed.IsZero()
		case model.DirectionReceived, model.DirectionRecovered:
			signed.Negative = false
		}
		if sum, err := total.Add(&signed); err == nil {
			total = sum
		}
	}
	return total
}

func (w *Wallet) emit(e Event) {
	if w.listener != nil {
		w.listener.OnWalletEvent(w, e)
	}
}

// markDeleted transitions the wallet to DELETED. Called by the manager
// under its own lock discipline; it does not itself emit WALLET_DELETED
// (the manager does, since it owns the wallet's membership in its list).
func (w *Wallet) markDeleted() {
	w.mu.Lock()
	w.state = StateDeleted
	w.mu.Unlock()
}

// MarkDeleted exposes markDeleted to the manager package.
func (w *Wallet) MarkDeleted() { w.markDeleted() }
