package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// erc20TransferGasOverhead is added to the base 21000-gas transfer estimate
// for token wallets; real contracts vary, but this matches the common
// OpenZeppelin ERC-20 transfer() cost on a warm storage slot.
const erc20TransferGasOverhead = uint64(45000)

// ERC20Token identifies an installed token wallet's contract.
type ERC20Token struct {
	Contract common.Address
	Symbol   string
	Decimals uint8
}

// NewERC20Token builds a token descriptor from a hex contract address.
func NewERC20Token(contractHex, symbol string, decimals uint8) *ERC20Token {
	return &ERC20Token{Contract: common.HexToAddress(contractHex), Symbol: symbol, Decimals: decimals}
}

var erc20TransferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
var erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// encodeERC20Transfer ABI-encodes a transfer(address,uint256) call, using
// go-ethereum's abi package rather than hand-rolled 32-byte padding.
func encodeERC20Transfer(to common.Address, amount *big.Int) []byte {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	args := abi.Arguments{{Type: addressType}, {Type: uint256Type}}
	packed, _ := args.Pack(to, amount)
	return append(append([]byte{}, erc20TransferSelector...), packed...)
}

// encodeERC20BalanceOf ABI-encodes a balanceOf(address) call.
func encodeERC20BalanceOf(owner common.Address) []byte {
	addressType, _ := abi.NewType("address", "", nil)
	args := abi.Arguments{{Type: addressType}}
	packed, _ := args.Pack(owner)
	return append(append([]byte{}, erc20BalanceOfSelector...), packed...)
}
