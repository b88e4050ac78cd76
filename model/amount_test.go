package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnits() (*Unit, *Unit) {
	cur := NewCurrency("eth", "Ether", "ETH")
	base := NewBaseUnit(cur, "eth-wei", "WEI", "WEI")
	derived := NewDerivedUnit(base, "eth-eth", "ETH", "ETH", 18)
	return base, derived
}

func TestAmountCreateDoubleRoundTrip(t *testing.T) {
	_, eth := testUnits()
	a, ok := CreateDouble(25.25434525155732538797258871, eth)
	require.True(t, ok)
	v, ok := a.GetDouble(eth)
	require.True(t, ok)
	assert.InEpsilon(t, 25.25434525155732538797258871, v, 1e-10)
}

func TestAmountCreateDoubleBaseUnitTruncates(t *testing.T) {
	// The same value in a base unit truncates to an integer (25.0).
	base, _ := testUnits()
	a, ok := CreateDouble(25.25434525155732538797258871, base)
	require.True(t, ok)
	v, ok := a.GetDouble(base)
	require.True(t, ok)
	assert.Equal(t, 25.0, v)
}

func TestAmountCreateDoubleOverflow(t *testing.T) {
	base, _ := testUnits()
	_, ok := CreateDouble(1e100, base)
	assert.False(t, ok, "1e100 in a base unit must overflow 256 bits")
}

func TestAmountCreateDoubleRejectsNonFinite(t *testing.T) {
	base, _ := testUnits()
	_, ok := CreateDouble(math.NaN(), base)
	assert.False(t, ok)
	_, ok = CreateDouble(math.Inf(1), base)
	assert.False(t, ok)
}

func TestAmountCrossCurrencyArithmeticErrors(t *testing.T) {
	eth := NewCurrency("eth", "Ether", "ETH")
	ethBase := NewBaseUnit(eth, "eth-wei", "WEI", "WEI")
	btc := NewCurrency("btc", "Bitcoin", "BTC")
	btcBase := NewBaseUnit(btc, "btc-sat", "SAT", "SAT")

	a := NewAmountFromUint64(100, ethBase)
	b := NewAmountFromUint64(100, btcBase)

	_, err := a.Add(b)
	assert.Error(t, err)
	_, err = a.Compare(b)
	assert.Error(t, err)
}

func TestAmountAddSubDirectional(t *testing.T) {
	base, _ := testUnits()
	a := NewAmountFromUint64(500, base)
	b := NewAmountFromUint64(200, base)

	sum, err := a.Add(b)
	require.NoError(t, err)
	v, _ := sum.GetDouble(base)
	assert.Equal(t, 700.0, v)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	v, _ = diff.GetDouble(base)
	assert.Equal(t, 300.0, v)
}

func TestUnitCompatibleVsIdentical(t *testing.T) {
	base, derived := testUnits()
	assert.True(t, base.Compatible(derived))
	assert.False(t, base.Identical(derived))
	assert.True(t, base.Identical(base))
}
