package wallet

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/corechain"
	_ "github.com/arcsign/walletcore/corechain/utxo" // registers the btc handler vtable
	"github.com/arcsign/walletcore/model"
)

func testWalletUnit() *model.Unit {
	cur := model.NewCurrency("btc", "Bitcoin", "BTC")
	return model.NewBaseUnit(cur, "btc-sat", "SAT", "SAT")
}

func makeTransfer(unit *model.Unit, amount uint64, dir model.TransferDirection, errored bool) *model.Transfer {
	addr := model.NewUTXOAddress("mm7DDqVkFd35XcWecFipfTYM5dByBzn7nq", false)
	other := model.NewUTXOAddress("2N8P6KqChGTw6Nspx5mcgqz2V8LGSoPmJtr", false)
	xfer := model.NewTransfer(corechain.ChainTypeBTC, other, addr, model.NewAmountFromUint64(amount, unit), unit, nil, dir)
	if errored {
		xfer.SetState(model.ErroredState("boom"))
	}
	return xfer
}

func TestWalletBalanceInvariantUnderRegistrationOrder(t *testing.T) {
	unit := testWalletUnit()

	build := func() []*model.Transfer {
		return []*model.Transfer{
			makeTransfer(unit, 100000, model.DirectionReceived, false),
			makeTransfer(unit, 30000, model.DirectionSent, false),
			makeTransfer(unit, 5000, model.DirectionReceived, false),
			makeTransfer(unit, 1000, model.DirectionSent, false),
			makeTransfer(unit, 250000, model.DirectionReceived, false),
			makeTransfer(unit, 2000, model.DirectionSent, true), // errored, excluded from balance
		}
	}

	orders := [][]int{
		{0, 1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1, 0},
		{2, 0, 4, 1, 5, 3},
	}

	var balances []float64
	for _, order := range orders {
		transfers := build()
		w := New(corechain.ChainTypeBTC, unit, unit, nil, nil)
		for _, i := range order {
			w.AddTransfer(transfers[i])
		}
		v, ok := w.Balance().GetDouble(unit)
		require.True(t, ok)
		balances = append(balances, v)
	}

	for i := 1; i < len(balances); i++ {
		assert.Equal(t, balances[0], balances[i], "balance must not depend on registration order")
	}
	assert.Equal(t, 324000.0, balances[0])
}

func TestWalletBalanceRandomOrderInvariant(t *testing.T) {
	unit := testWalletUnit()
	n := 20
	base := make([]*model.Transfer, n)
	for i := 0; i < n; i++ {
		dir := model.DirectionReceived
		if i%3 == 0 {
			dir = model.DirectionSent
		}
		base[i] = makeTransfer(unit, uint64(1000*(i+1)), dir, false)
	}

	var want float64
	for trial := 0; trial < 5; trial++ {
		order := rand.Perm(n)
		w := New(corechain.ChainTypeBTC, unit, unit, nil, nil)
		for _, i := range order {
			w.AddTransfer(base[i])
		}
		v, ok := w.Balance().GetDouble(unit)
		require.True(t, ok)
		if trial == 0 {
			want = v
		} else {
			assert.Equal(t, want, v)
		}
	}
}

func TestWalletAddTransferIdempotent(t *testing.T) {
	unit := testWalletUnit()
	w := New(corechain.ChainTypeBTC, unit, unit, nil, nil)
	xfer := makeTransfer(unit, 1000, model.DirectionReceived, false)

	assert.True(t, w.AddTransfer(xfer))
	assert.False(t, w.AddTransfer(xfer))
	assert.Len(t, w.Transfers(), 1)
}

func TestWalletEstimateLimitUTXO(t *testing.T) {
	unit := testWalletUnit()
	target := model.NewUTXOAddress("mm7DDqVkFd35XcWecFipfTYM5dByBzn7nq", false)
	// 1000 sat/KB over 250 bytes: 250 sat total fee.
	fee := model.NewUTXOFeeBasis(uint256.NewInt(1000), 250, unit)

	w := New(corechain.ChainTypeBTC, unit, unit, nil, nil)
	w.AddTransfer(makeTransfer(unit, 100000, model.DirectionReceived, false))

	max, zeroIfInsufficient, needsEstimate, err := w.EstimateLimit(true, target, fee)
	require.NoError(t, err)
	assert.False(t, zeroIfInsufficient)
	assert.False(t, needsEstimate)
	v, ok := max.GetDouble(unit)
	require.True(t, ok)
	assert.Equal(t, 99750.0, v)

	min, _, _, err := w.EstimateLimit(false, target, fee)
	require.NoError(t, err)
	v, _ = min.GetDouble(unit)
	assert.Equal(t, 546.0, v, "minimum sendable is the dust floor")

	empty := New(corechain.ChainTypeBTC, unit, unit, nil, nil)
	zero, zeroIfInsufficient, _, err := empty.EstimateLimit(true, target, fee)
	require.NoError(t, err)
	assert.True(t, zeroIfInsufficient, "an empty wallet cannot cover any fee")
	assert.True(t, zero.IsZero())
}

func TestWalletRemTransferReleasesOutsideLock(t *testing.T) {
	unit := testWalletUnit()
	w := New(corechain.ChainTypeBTC, unit, unit, nil, nil)
	xfer := makeTransfer(unit, 1000, model.DirectionReceived, false)
	w.AddTransfer(xfer)

	assert.True(t, w.RemTransfer(xfer))
	assert.False(t, w.HasTransfer(xfer))
	assert.Equal(t, 0.0, func() float64 { v, _ := w.Balance().GetDouble(unit); return v }())
}
