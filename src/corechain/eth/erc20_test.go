package eth

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
)

// The token-transfer vector: 5968.77 tokens (18 decimals) of the contract
// at 0x558e... to 0x932a..., gas limit 74858, gas price 50 Gwei.
var (
	testTokenContract = common.HexToAddress("0x558ec3152e2eb2174905cd19aea4e34a23de9ad6")
	testTransferTo    = common.HexToAddress("0x932a27e1bc84f5b74c29af3d888926b1307f4a5c")
)

func testTransferAmount(t *testing.T) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString("5968770000000000000000", 10)
	require.True(t, ok)
	return v
}

func TestEncodeERC20TransferCallData(t *testing.T) {
	amount := testTransferAmount(t)
	data := encodeERC20Transfer(testTransferTo, amount)

	require.Len(t, data, 4+32+32)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]),
		"selector must be keccak(transfer(address,uint256))[:4]")

	// First argument word: the recipient, left-padded to 32 bytes.
	assert.Equal(t, make([]byte, 12), data[4:16])
	assert.Equal(t, testTransferTo.Bytes(), data[16:36])

	// Second argument word: the amount as a 256-bit big-endian integer.
	assert.Zero(t, amount.Cmp(new(big.Int).SetBytes(data[36:68])))
}

func TestEncodeERC20BalanceOfCallData(t *testing.T) {
	data := encodeERC20BalanceOf(testTransferTo)
	require.Len(t, data, 4+32)
	assert.Equal(t, "70a08231", hex.EncodeToString(data[:4]))
	assert.Equal(t, testTransferTo.Bytes(), data[16:36])
}
