package bcs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcsign/walletcore/corechain"
)

func TestReconcilerIgnoresUnknown(t *testing.T) {
	r := NewReconciler()
	h := hashN(1)

	// Alternating INCLUDED/UNKNOWN never un-pends: every UNKNOWN clears the
	// tracked streak, so no INCLUDED report is ever the second consecutive
	// agreement.
	for i := 0; i < 10; i++ {
		unpend := r.Report(h, StatusIncluded)
		assert.False(t, unpend)
		unpend = r.Report(h, StatusUnknown)
		assert.False(t, unpend)
	}
}

func TestReconcilerTwoConsecutiveIncludedUnpends(t *testing.T) {
	r := NewReconciler()
	h := hashN(2)

	assert.False(t, r.Report(h, StatusIncluded))
	assert.True(t, r.Report(h, StatusIncluded))
}

func TestReconcilerTwoConsecutiveErroredUnpends(t *testing.T) {
	r := NewReconciler()
	h := hashN(3)

	assert.False(t, r.Report(h, StatusErrored))
	assert.True(t, r.Report(h, StatusErrored))
}

func TestReconcilerIncludedThenErroredDoesNotUnpend(t *testing.T) {
	r := NewReconciler()
	h := hashN(4)

	assert.False(t, r.Report(h, StatusIncluded))
	assert.False(t, r.Report(h, StatusErrored))
	// Two different terminal states in a row: no agreement yet, but the
	// state is now primed to un-pend on a second consecutive ERRORED.
	assert.True(t, r.Report(h, StatusErrored))
}

func TestReconcilerQueuedPendingNeverUnpend(t *testing.T) {
	r := NewReconciler()
	h := hashN(5)

	var transitions []TxStatus
	r.OnTransition = func(_ corechain.Hash, s TxStatus) { transitions = append(transitions, s) }

	assert.False(t, r.Report(h, StatusQueued))
	assert.False(t, r.Report(h, StatusPending))
	assert.False(t, r.Report(h, StatusPending))
	assert.Equal(t, []TxStatus{StatusQueued, StatusPending, StatusPending}, transitions)
}

func TestValidateDifficultyZeroSentinelExceptGenesis(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	assert.NoError(t, ValidateDifficulty(genesis))

	nonGenesisZero := header(1, 1, 0, 0)
	assert.Error(t, ValidateDifficulty(nonGenesisZero))

	nonGenesisNonZero := header(2, 2, 1, 42)
	assert.NoError(t, ValidateDifficulty(nonGenesisNonZero))
}

func TestValidateDifficultyNilTotalDifficulty(t *testing.T) {
	h := &Header{Number: 7}
	assert.Error(t, ValidateDifficulty(h))
}
