package utxo

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/holiman/uint256"
	"github.com/tyler-smith/go-bip39"
)

const testPhrase = "ginger settle marine tissue robot crane night number ramp coast roast critic"

func testMPK(t *testing.T) *corechain.MasterPublicKey {
	t.Helper()
	seed := bip39.NewSeed(testPhrase, "")
	mpk, err := deriveMasterPublicKey(seed, 0)
	require.NoError(t, err)
	return mpk
}

func utxoAt(n byte, value int64) UTXOOutput {
	var h corechain.Hash
	h[0] = n
	return UTXOOutput{TxID: h, Vout: 0, Value: value, Address: "addr"}
}

func TestSelectCoinsCoversAmountPlusFee(t *testing.T) {
	utxos := []UTXOOutput{utxoAt(1, 50000), utxoAt(2, 30000), utxoAt(3, 20000)}

	selected, change, err := selectCoins(utxos, big.NewInt(60000), big.NewInt(1000))
	require.NoError(t, err)
	assert.Len(t, selected, 2, "the first two outputs cover 61000")
	assert.Equal(t, int64(19000), change.Int64())
}

func TestSelectCoinsExactCoverYieldsZeroChange(t *testing.T) {
	utxos := []UTXOOutput{utxoAt(1, 61000)}
	selected, change, err := selectCoins(utxos, big.NewInt(60000), big.NewInt(1000))
	require.NoError(t, err)
	assert.Len(t, selected, 1)
	assert.Zero(t, change.Sign())
}

func TestSelectCoinsInsufficientFunds(t *testing.T) {
	utxos := []UTXOOutput{utxoAt(1, 100)}
	_, _, err := selectCoins(utxos, big.NewInt(60000), big.NewInt(1000))
	require.Error(t, err)
	assert.True(t, corechain.IsNonRetryable(err))
}

func TestEstimateTxVBytes(t *testing.T) {
	assert.Equal(t, uint64(140), estimateTxVBytes(1, 2))
	assert.Equal(t, uint64(276), estimateTxVBytes(3, 2))
}

func TestDeriveReceiveAddressDeterministicAndSchemeDistinct(t *testing.T) {
	mpk := testMPK(t)

	segwit1, err := deriveReceiveAddress(mpk, &chaincfg.MainNetParams, 0, false)
	require.NoError(t, err)
	segwit2, err := deriveReceiveAddress(mpk, &chaincfg.MainNetParams, 0, false)
	require.NoError(t, err)
	assert.Equal(t, segwit1, segwit2)
	assert.True(t, strings.HasPrefix(segwit1, "bc1"), "mainnet segwit addresses are bech32")

	legacy, err := deriveReceiveAddress(mpk, &chaincfg.MainNetParams, 0, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(legacy, "1"), "mainnet legacy addresses are base58 P2PKH")
	assert.NotEqual(t, segwit1, legacy)

	next, err := deriveReceiveAddress(mpk, &chaincfg.MainNetParams, 1, false)
	require.NoError(t, err)
	assert.NotEqual(t, segwit1, next, "distinct indexes derive distinct addresses")
}

func TestWalletGetAddressRejectsForeignScheme(t *testing.T) {
	h := &handler{chainType: corechain.ChainTypeBTC, params: &chaincfg.MainNetParams}
	sw := &subWallet{mpk: testMPK(t), params: &chaincfg.MainNetParams, chainType: corechain.ChainTypeBTC}

	_, err := h.walletGetAddress(sw, corechain.SchemeETHDefault)
	assert.Error(t, err)

	addr, err := h.walletGetAddress(sw, corechain.SchemeBTCSegwit)
	require.NoError(t, err)
	assert.Equal(t, model.AddressUTXO, addr.(*model.Address).Kind)
}

func TestTransferBuildSpendsSelectedOutputsAndMakesChange(t *testing.T) {
	h := &handler{chainType: corechain.ChainTypeBTC, params: &chaincfg.MainNetParams}
	mpk := testMPK(t)
	sw := &subWallet{mpk: mpk, params: &chaincfg.MainNetParams, chainType: corechain.ChainTypeBTC}
	sw.utxos = []UTXOOutput{utxoAt(1, 100000)}

	target, err := deriveReceiveAddress(mpk, &chaincfg.MainNetParams, 5, false)
	require.NoError(t, err)

	fee := model.NewUTXOFeeBasis(uint256.NewInt(1000), 250, nil) // 250 sat total
	built, err := h.transferBuild(sw, model.NewUTXOAddress(target, false), big.NewInt(40000), fee)
	require.NoError(t, err)

	tr := built.(*Transfer)
	require.Len(t, tr.tx.TxIn, 1)
	require.Len(t, tr.tx.TxOut, 2, "target output plus change")
	assert.Equal(t, int64(40000), tr.tx.TxOut[0].Value)
	assert.Equal(t, int64(100000-40000-250), tr.tx.TxOut[1].Value)
	assert.Len(t, tr.inputs, 1, "spent outputs ride along for witness signing")
}

func TestTransferBuildRejectsForeignTarget(t *testing.T) {
	h := &handler{chainType: corechain.ChainTypeBTC, params: &chaincfg.MainNetParams}
	sw := &subWallet{mpk: testMPK(t), params: &chaincfg.MainNetParams, chainType: corechain.ChainTypeBTC}

	var ethTarget [20]byte
	_, err := h.transferBuild(sw, model.NewETHAddress(ethTarget), big.NewInt(1000),
		model.NewUTXOFeeBasis(uint256.NewInt(1000), 250, nil))
	assert.Error(t, err)
}
