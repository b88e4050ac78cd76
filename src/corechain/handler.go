package corechain

import "math/big"

// ChainType is the process-wide tag used to key the handler registry and to
// discriminate tagged-union value types (Address, FeeBasis, Transfer).
type ChainType string

const (
	ChainTypeBTC     ChainType = "btc"
	ChainTypeBCH     ChainType = "bch"
	ChainTypeETH     ChainType = "eth"
	ChainTypeGeneric ChainType = "generic" // catch-all family tag; real chains use their own sub-tag (xrp, xlm, ...)
)

// ChainFamily groups chain types sharing a transfer/address/sync model.
type ChainFamily int

const (
	FamilyUTXO ChainFamily = iota
	FamilyEthereum
	FamilyGeneric
)

// AccountHandlers is the per-chain vtable for account-record lifecycle.
type AccountHandlers struct {
	// FromSeed derives the chain's account record from a 512-bit BIP-39 seed.
	FromSeed func(seed []byte) (interface{}, error)

	// FromPublicKey reconstructs a watch-only account record from the bytes
	// produced by ToSerialization. Recreating from the public key must
	// yield the identical primary address.
	FromPublicKey func(pub []byte) (interface{}, error)

	// FromSerialization reconstructs a record from bytes produced by
	// ToSerialization. Returns an error on any malformed input.
	FromSerialization func(data []byte) (interface{}, error)

	// ToSerialization produces the chain-specific byte payload embedded in
	// the generic-accounts section of the Account serialization.
	ToSerialization func(record interface{}) []byte

	// Address returns the chain's primary/default address for the record.
	Address func(record interface{}) (ChainAddress, error)
}

// AddressHandlers is the per-chain vtable for address string/equality ops.
type AddressHandlers struct {
	String func(addr ChainAddress) string
	Equal  func(a, b ChainAddress) bool
}

// TransferHandlers is the per-chain vtable for transfer construction/signing.
type TransferHandlers struct {
	// Build constructs an unsigned transfer for (target, amount, feeBasis).
	Build func(wallet interface{}, target ChainAddress, amount *big.Int, feeBasis ChainFeeBasis) (ChainTransfer, error)

	// Sign signs a previously built transfer using the derived key.
	Sign func(transfer ChainTransfer, key *Key) error

	Sources func(transfer ChainTransfer) []ChainAddress
	Targets func(transfer ChainTransfer) []ChainAddress
	Amount  func(transfer ChainTransfer) *big.Int
	Fee     func(transfer ChainTransfer) ChainFeeBasis
	Hash    func(transfer ChainTransfer) Hash
}

// WalletHandlers is the per-chain vtable for wallet-level operations.
type WalletHandlers struct {
	Create  func(account interface{}) (interface{}, error)
	Balance func(subWallet interface{}) (*big.Int, error)

	// GetAddress resolves the wallet's receive address under the requested
	// scheme. A handler that cannot supply an address MUST return an
	// explicit error rather than nil; the registry rejects incomplete
	// vtables at Install time instead of allowing a silent stub.
	GetAddress func(subWallet interface{}, scheme AddressScheme) (ChainAddress, error)

	// SetDefaultFeeBasis sets the wallet's default fee basis, asserting
	// type agreement with the sub-wallet's chain family.
	SetDefaultFeeBasis func(subWallet interface{}, basis ChainFeeBasis) error

	// EstimateFee computes price-per-cost-factor x handler-supplied cost
	// estimate for the given transfer shape.
	EstimateFee func(subWallet interface{}, target ChainAddress, amount *big.Int) (ChainFeeBasis, error)
}

// ManagerHandlers is the per-chain vtable for sub-manager level recovery.
type ManagerHandlers struct {
	// RecoverTransfer reconstructs a Transfer from externally-supplied raw
	// fields (used by the generic sub-manager's Client-driven recovery path
	// and by BCS's transaction/log extraction).
	RecoverTransfer func(wallet interface{}, fields TransferRecoveryFields) (ChainTransfer, error)
}

// Handlers is the complete per-chain-type vtable. Every polymorphic
// operation in the core resolves through one of these function groups.
// A chain MUST install a non-nil function for every field the wallet
// lifecycle can reach; HandlerRegistry.Install validates this eagerly (ErrCodeHandlerIncomplete)
// rather than deferring to a nil-pointer panic at call time.
type Handlers struct {
	Type     ChainType
	Family   ChainFamily
	Account  AccountHandlers
	Address  AddressHandlers
	Transfer TransferHandlers
	Wallet   WalletHandlers
	Manager  ManagerHandlers
}

// AddressScheme selects the address-derivation flavor passed to
// Wallet.GetAddress. Using the wrong scheme for a wallet's chain family is
// a programmer error.
type AddressScheme int

const (
	SchemeBTCLegacy AddressScheme = iota
	SchemeBTCSegwit
	SchemeETHDefault
	SchemeGenDefault
)

// ChainAddress, ChainFeeBasis and ChainTransfer are opaque handles the
// registry passes between handler calls and the model package's tagged
// unions. They are defined as empty interfaces here to avoid an import
// cycle between corechain (the registry) and model (the tagged unions);
// model wraps them with typed accessors.
type (
	ChainAddress  = interface{}
	ChainFeeBasis = interface{}
	ChainTransfer = interface{}
)

// TransferRecoveryFields carries the raw, JSON-shaped fields the generic
// sub-manager's Client delivers for an out-of-band-observed transfer.
type TransferRecoveryFields struct {
	Hash        string
	UIDS        string
	From        string
	To          string
	Amount      *big.Int
	Currency    string
	Fee         *big.Int
	Timestamp   int64
	BlockHeight uint64
	State       string
	ErrorMsg    string
}
