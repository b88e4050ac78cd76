package bcs

import (
	"sync"

	"github.com/arcsign/walletcore/corechain"
)

// TxStatus is one peer's reported status for a transaction.
type TxStatus int

const (
	StatusUnknown TxStatus = iota
	StatusQueued
	StatusPending
	StatusIncluded
	StatusErrored
)

// Reconciler applies a two-of-a-kind rule to peer reports: a transaction is
// un-pended only once two consecutive reports agree it is INCLUDED, or two
// consecutive reports agree it is ERRORED. UNKNOWN reports never un-pend
// and break any streak in progress. Reports of QUEUED/PENDING are surfaced to the listener (via
// OnTransition) but never un-pend.
type Reconciler struct {
	mu   sync.Mutex
	last map[corechain.Hash]TxStatus

	// OnTransition is called for every non-UNKNOWN report, before the
	// two-of-a-kind check, so the listener can surface transient states.
	OnTransition func(hash corechain.Hash, status TxStatus)
}

// NewReconciler builds an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{last: map[corechain.Hash]TxStatus{}}
}

// Report records one peer's status for hash and returns true once this
// report is the second consecutive agreement on INCLUDED or ERRORED,
// meaning the caller should un-pend the transaction from status polling.
// INCLUDED is advisory only. The caller must wait for the block itself
// to land in Chain before treating the transfer as definitively included.
//
// An UNKNOWN report is itself ignored (never un-pends, never surfaced via
// OnTransition), but it breaks a streak of agreeing reports already in
// progress: it clears the tracked "last" status so a subsequent INCLUDED
// or ERRORED report starts a fresh streak rather than being compared
// against a report an intervening UNKNOWN never actually reaffirmed.
func (r *Reconciler) Report(hash corechain.Hash, status TxStatus) (unpend bool) {
	if status == StatusUnknown {
		r.mu.Lock()
		delete(r.last, hash)
		r.mu.Unlock()
		return false
	}
	if r.OnTransition != nil {
		r.OnTransition(hash, status)
	}
	if status != StatusIncluded && status != StatusErrored {
		r.mu.Lock()
		r.last[hash] = status
		r.mu.Unlock()
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.last[hash]
	r.last[hash] = status
	return ok && prev == status
}

// Forget drops any reconciliation state for hash, called once a
// transaction is un-pended or its block is reclaimed.
func (r *Reconciler) Forget(hash corechain.Hash) {
	r.mu.Lock()
	delete(r.last, hash)
	r.mu.Unlock()
}

// isZeroDifficultySentinel treats a zero totalDifficulty as a
// proof-failure sentinel everywhere except genesis (block 0), the only
// block where zero is a legitimate value.
func isZeroDifficultySentinel(h *Header) bool {
	return h.Number != 0 && (h.TotalDifficulty == nil || h.TotalDifficulty.Sign() == 0)
}

// ValidateDifficulty returns an error if h's totalDifficulty looks like a
// proof failure rather than a legitimate non-genesis zero.
func ValidateDifficulty(h *Header) error {
	if isZeroDifficultySentinel(h) {
		return corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable,
			"zero totalDifficulty on non-genesis header, treating as proof failure", nil, nil)
	}
	return nil
}
