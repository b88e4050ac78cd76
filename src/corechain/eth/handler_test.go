package eth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/corechain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const testPhrase = "ginger settle marine tissue robot crane night number ramp coast roast critic"

func deriveTestKey(t *testing.T) (*corechain.Key, error) {
	t.Helper()
	priv, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		return nil, err
	}
	return corechain.NewKeyFromPrivate(priv), nil
}

func TestAccountFromSeedThenFromPublicKeyYieldsSameAddress(t *testing.T) {
	h := &handler{}
	seed := bip39.NewSeed(testPhrase, "")

	fromSeed, err := h.accountFromSeed(seed)
	require.NoError(t, err)
	rec := fromSeed.(*accountRecord)

	fromPub, err := h.accountFromPublicKey(rec.Public)
	require.NoError(t, err)

	assert.Equal(t, rec.Address, fromPub.(*accountRecord).Address,
		"recreating from the uncompressed public key must yield the identical primary address")
}

func TestAccountSerializationRoundTrip(t *testing.T) {
	h := &handler{}
	seed := bip39.NewSeed(testPhrase, "")

	fromSeed, err := h.accountFromSeed(seed)
	require.NoError(t, err)

	data := h.accountToSerialization(fromSeed)
	require.Len(t, data, 65)

	back, err := h.accountFromSerialization(data)
	require.NoError(t, err)
	assert.Equal(t, fromSeed.(*accountRecord).Address, back.(*accountRecord).Address)
}

func TestAccountFromPublicKeyRejectsMalformedInput(t *testing.T) {
	h := &handler{}
	_, err := h.accountFromPublicKey([]byte{0x04, 0x01})
	assert.Error(t, err)

	bad := make([]byte, 65)
	_, err = h.accountFromPublicKey(bad)
	assert.Error(t, err)
}

func TestWalletGetAddressRejectsForeignScheme(t *testing.T) {
	h := &handler{}
	sw := &subWallet{address: testTransferTo}

	_, err := h.walletGetAddress(sw, corechain.SchemeBTCSegwit)
	assert.Error(t, err)

	addr, err := h.walletGetAddress(sw, corechain.SchemeETHDefault)
	require.NoError(t, err)
	assert.Equal(t, testTransferTo.Hex(), h.addressString(addr))
}
